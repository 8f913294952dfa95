package imageutil

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeTestImage renders a noisy gradient so the encoded bytes stay above
// the minimum-size threshold.
func makeTestImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(x * 7 % 256),
				G: uint8(y * 13 % 256),
				B: uint8((x + y) * 3 % 256),
				A: 255,
			})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestValidate(t *testing.T) {
	t.Run("AcceptsPNG", func(t *testing.T) {
		assert.NoError(t, Validate(encodePNG(t, makeTestImage(64, 64))))
	})

	t.Run("AcceptsJPEG", func(t *testing.T) {
		assert.NoError(t, Validate(encodeJPEG(t, makeTestImage(64, 64))))
	})

	t.Run("RejectsTooSmallPayload", func(t *testing.T) {
		err := Validate([]byte("tiny"))
		assert.ErrorIs(t, err, ErrImageTooSmall)
	})

	t.Run("RejectsNonImagePayload", func(t *testing.T) {
		err := Validate(bytes.Repeat([]byte("not an image "), 20))
		assert.ErrorIs(t, err, ErrUnsupportedImage)
	})

	t.Run("RejectsUnsupportedFormat", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, gif.Encode(&buf, makeTestImage(64, 64), nil))

		err := Validate(buf.Bytes())
		assert.ErrorIs(t, err, ErrUnsupportedImage)
	})
}

func TestResize(t *testing.T) {
	t.Run("SmallImagePassesThrough", func(t *testing.T) {
		original := encodePNG(t, makeTestImage(100, 80))

		resized, err := Resize(original, nil)
		require.NoError(t, err)
		assert.Equal(t, original, resized)
	})

	t.Run("LargeImageIsDownscaled", func(t *testing.T) {
		original := encodePNG(t, makeTestImage(400, 200))

		resized, err := Resize(original, &ResizeConfig{MaxDimension: 100, OutputFormat: "png"})
		require.NoError(t, err)

		cfg, format, err := image.DecodeConfig(bytes.NewReader(resized))
		require.NoError(t, err)
		assert.Equal(t, "png", format)
		assert.Equal(t, 100, cfg.Width)
		assert.Equal(t, 50, cfg.Height)
	})

	t.Run("PortraitKeepsAspectRatio", func(t *testing.T) {
		original := encodePNG(t, makeTestImage(200, 400))

		resized, err := Resize(original, &ResizeConfig{MaxDimension: 100, OutputFormat: "png"})
		require.NoError(t, err)

		cfg, _, err := image.DecodeConfig(bytes.NewReader(resized))
		require.NoError(t, err)
		assert.Equal(t, 50, cfg.Width)
		assert.Equal(t, 100, cfg.Height)
	})

	t.Run("UndecodableBytes", func(t *testing.T) {
		_, err := Resize([]byte("not an image"), nil)
		assert.Error(t, err)
	})
}

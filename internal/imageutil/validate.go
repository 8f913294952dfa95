package imageutil

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
)

// MinImageBytes is the smallest upload accepted as a plausible photo.
// Anything below this is rejected before any network call is made.
const MinImageBytes = 128

var (
	// ErrImageTooSmall indicates an undersized or truncated upload.
	ErrImageTooSmall = errors.New("image data is too small to be a valid receipt photo")

	// ErrUnsupportedImage indicates bytes that are not a decodable JPEG or PNG.
	ErrUnsupportedImage = errors.New("unsupported image format: expected JPEG or PNG")
)

// Validate checks that imageData is a decodable JPEG or PNG of plausible
// size. The pipeline must not proceed past intake on failure.
func Validate(imageData []byte) error {
	if len(imageData) < MinImageBytes {
		return ErrImageTooSmall
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(imageData))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	switch format {
	case "jpeg", "png":
		return nil
	default:
		return fmt.Errorf("%w: got %q", ErrUnsupportedImage, format)
	}
}

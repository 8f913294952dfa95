package imageutil

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// DefaultMaxDimension is the default maximum dimension for resizing
const DefaultMaxDimension = 1600

// ResizeConfig holds configuration for image resizing
type ResizeConfig struct {
	MaxDimension int    // Maximum width or height (default 1600)
	Quality      int    // JPEG quality 1-100 (default 85)
	OutputFormat string // "png" or "jpeg" (default "png")
}

// DefaultConfig returns default resize configuration
func DefaultConfig() *ResizeConfig {
	return &ResizeConfig{
		MaxDimension: DefaultMaxDimension,
		Quality:      85,
		OutputFormat: "png",
	}
}

// Resize shrinks an image that exceeds the max dimension while maintaining
// aspect ratio. Images already within bounds are returned untouched. Cloud
// OCR bills by payload size, so uploads are downscaled before analysis.
func Resize(imageData []byte, config *ResizeConfig) ([]byte, error) {
	if config == nil {
		config = DefaultConfig()
	}

	img, format, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width <= config.MaxDimension && height <= config.MaxDimension {
		return imageData, nil
	}

	// Calculate new dimensions maintaining aspect ratio
	var newWidth, newHeight int
	if width > height {
		newWidth = config.MaxDimension
		newHeight = int(float64(height) * float64(config.MaxDimension) / float64(width))
	} else {
		newHeight = config.MaxDimension
		newWidth = int(float64(width) * float64(config.MaxDimension) / float64(height))
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))

	// CatmullRom resampling keeps line-item text legible after downscale
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	outputFormat := config.OutputFormat
	if outputFormat == "" {
		outputFormat = format
	}

	switch outputFormat {
	case "jpeg", "jpg":
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: config.Quality})
	default:
		err = png.Encode(&buf, dst)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to encode resized image: %w", err)
	}

	return buf.Bytes(), nil
}

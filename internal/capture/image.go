package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"github.com/kozaktomas/attendance-kiosk/internal/constants"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// NormalizeFrame decodes an image, downsizes it to fit within maxSize (width or height)
// while keeping aspect ratio, and re-encodes it as JPEG.
func NormalizeFrame(data []byte, maxSize int) (Frame, error) {
	if len(data) == 0 {
		return Frame{}, ErrNoFrame
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Frame{}, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return Frame{}, ErrNoFrame
	}

	// Check if resizing is needed.
	if maxSize <= 0 || (width <= maxSize && height <= maxSize) {
		// Re-encode as JPEG to ensure consistent format.
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: constants.FrameJPEGQuality}); err != nil {
			return Frame{}, fmt.Errorf("failed to encode image: %w", err)
		}
		return Frame{Data: buf.Bytes(), Width: width, Height: height, Scale: 1}, nil
	}

	// Calculate new dimensions.
	var newWidth, newHeight int
	var scale float64
	if width > height {
		newWidth = maxSize
		newHeight = int(float64(height) * float64(maxSize) / float64(width))
		scale = float64(width) / float64(maxSize)
	} else {
		newHeight = maxSize
		newWidth = int(float64(width) * float64(maxSize) / float64(height))
		scale = float64(height) / float64(maxSize)
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: constants.FrameJPEGQuality}); err != nil {
		return Frame{}, fmt.Errorf("failed to encode resized image: %w", err)
	}

	return Frame{Data: buf.Bytes(), Width: newWidth, Height: newHeight, Scale: scale}, nil
}

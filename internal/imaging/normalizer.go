// Package imaging downsizes uploaded photos before they are handed to the
// vision model.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrProcessingFailure = errors.New("image processing failed")
)

const (
	DefaultMaxDimension = 512
	DefaultJPEGQuality  = 85
	DefaultMaxPixels    = 40_000_000
)

// Constraints bound the normalized image. MaxDimension caps both width and
// height. MaxPixels caps the decoded source; zero means DefaultMaxPixels.
type Constraints struct {
	MaxDimension int
	JPEGQuality  int
	MaxPixels    int
}

func DefaultConstraints() Constraints {
	return Constraints{
		MaxDimension: DefaultMaxDimension,
		JPEGQuality:  DefaultJPEGQuality,
		MaxPixels:    DefaultMaxPixels,
	}
}

// Image is a re-encoded image.
type Image struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// Normalize decodes data, shrinks it so that neither side exceeds
// c.MaxDimension while keeping the aspect ratio, and re-encodes it. Images
// already inside the bound are re-encoded at their original size.
func Normalize(data []byte, c Constraints) (*Image, error) {
	if c.MaxDimension <= 0 {
		return nil, fmt.Errorf("%w: max dimension must be positive, got %d", ErrProcessingFailure, c.MaxDimension)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrUnsupportedFormat)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	maxPixels := c.MaxPixels
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrProcessingFailure, cfg.Width, cfg.Height, maxPixels)
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	bounds := src.Bounds()
	w, h := FitWithin(bounds.Dx(), bounds.Dy(), c.MaxDimension)

	dst := src
	if w != bounds.Dx() || h != bounds.Dy() {
		scaled := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), src, bounds, draw.Over, nil)
		dst = scaled
	}

	var buf bytes.Buffer
	contentType := "image/jpeg"
	switch format {
	case "png", "gif":
		contentType = "image/png"
		err = png.Encode(&buf, dst)
	default:
		quality := c.JPEGQuality
		if quality <= 0 || quality > 100 {
			quality = DefaultJPEGQuality
		}
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality})
	}
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s: %v", ErrProcessingFailure, contentType, err)
	}

	return &Image{
		Data:        buf.Bytes(),
		ContentType: contentType,
		Width:       w,
		Height:      h,
	}, nil
}

// FitWithin returns the largest size with the same aspect ratio as w×h whose
// sides do not exceed max. It never upscales and never returns a zero side.
func FitWithin(w, h, max int) (int, int) {
	if w <= max && h <= max {
		return w, h
	}
	if w >= h {
		nh := (h*max + w/2) / w
		if nh < 1 {
			nh = 1
		}
		return max, nh
	}
	nw := (w*max + h/2) / h
	if nw < 1 {
		nw = 1
	}
	return nw, max
}

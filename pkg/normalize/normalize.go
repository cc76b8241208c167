// Package normalize prepares a cropped bitmap for submission to a detection
// service: transparency is flattened onto a white background and the result
// is encoded as an opaque lossy JPEG buffer.
package normalize

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
)

// ErrEncode marks failures to produce a submission buffer.
var ErrEncode = errors.New("encoding failed")

// DefaultQuality is the JPEG quality used when the caller passes 0.
const DefaultQuality = 90

// Flatten composites an image with transparency onto a solid white background
// of identical dimensions, using the alpha channel as the blend mask. JPEG has
// no alpha support, and converting without flattening renders transparent
// regions black. Fully opaque images are returned unchanged; the input is
// never mutated, so Flatten is idempotent.
func Flatten(img image.Image) image.Image {
	if opaque(img) {
		return img
	}

	bounds := img.Bounds()
	flat := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(flat, flat.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), img, bounds.Min, draw.Over)
	return flat
}

// EncodeJPEG encodes an image into a lossy JPEG buffer. Zero-dimension input
// and encoder failures are reported as ErrEncode.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("%w: empty image %v", ErrEncode, bounds)
	}
	if quality <= 0 {
		quality = DefaultQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return buf.Bytes(), nil
}

// Normalize runs the full pipeline: flatten transparency, then encode.
func Normalize(img image.Image, quality int) ([]byte, error) {
	return EncodeJPEG(Flatten(img), quality)
}

// opaque reports whether every pixel of the image is fully opaque. Images
// that expose an Opaque method answer directly; anything else is scanned.
func opaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0xffff {
				return false
			}
		}
	}
	return true
}

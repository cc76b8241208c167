// Package ingest turns uploaded bytes into in-memory bitmaps and enforces the
// upload format boundary.
package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	"github.com/chai2010/webp"
	_ "golang.org/x/image/webp"
)

// ErrDecode marks uploads whose bytes are not a valid image.
var ErrDecode = errors.New("not a decodable image")

// ErrUnsupportedFormat marks uploads whose declared or detected format is
// outside the accepted set.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// UploadFormats is the set of formats accepted on the web upload boundary.
var UploadFormats = []string{"jpg", "jpeg", "png"}

// Decode decodes uploaded bytes into a bitmap and returns the detected format.
// Only formats in UploadFormats are accepted; anything else is rejected even
// when the bytes would decode.
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if !formatAllowed(format) {
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	return img, format, nil
}

// LoadFile loads an image from disk for the one-shot CLI path. Unlike the
// upload boundary this additionally accepts WebP, falling back to an explicit
// WebP decode when the registered decoders cannot handle the file.
func LoadFile(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}

	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrDecode, path)
}

func formatAllowed(format string) bool {
	for _, f := range UploadFormats {
		if strings.EqualFold(format, f) {
			return true
		}
	}
	return false
}

// Package cropscope provides interactive image cropping with cloud object
// localization.
//
// This package wires together the crop-to-API pipeline: an uploaded image is
// decoded, a user-selected region is cropped out, transparency is flattened
// onto a white background, the crop is JPEG-encoded, submitted to an
// object-localization backend, and the response is rendered as deterministic
// display messages.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//		"os"
//
//		"github.com/mpetrov/cropscope"
//		"github.com/mpetrov/cropscope/pkg/cropper"
//		"github.com/mpetrov/cropscope/pkg/gvision"
//	)
//
//	func main() {
//		ctx := context.Background()
//
//		creds, err := os.ReadFile("service-account.json")
//		if err != nil {
//			log.Fatal(err)
//		}
//		locator, err := gvision.New(ctx, creds, gvision.DefaultConfig())
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		pipeline := cropscope.New(locator)
//
//		data, err := os.ReadFile("photo.png")
//		if err != nil {
//			log.Fatal(err)
//		}
//		img, err := pipeline.Decode(data)
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		sel := cropper.Default(img.Bounds(), cropper.Widescreen)
//		result, err := pipeline.Detect(ctx, img, sel)
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		fmt.Println(pipeline.RenderText(result))
//	}
//
// The pipeline consists of five stages:
//
// 1. Ingest (pkg/ingest): decoding and the upload format boundary
// 2. Cropper (pkg/cropper): the selection model and aspect-ratio constraints
// 3. Normalize (pkg/normalize): alpha flattening and JPEG encoding
// 4. Locator (pkg/gvision, pkg/ollama, pkg/llamacpp): detection backends
// 5. Render (pkg/render): deterministic result formatting
//
// Each stage hands over a copy; no bitmap is shared mutably across stages.
package cropscope

import (
	"context"
	"fmt"
	"image"

	"github.com/mpetrov/cropscope/pkg/client"
	"github.com/mpetrov/cropscope/pkg/cropper"
	"github.com/mpetrov/cropscope/pkg/ingest"
	"github.com/mpetrov/cropscope/pkg/normalize"
	"github.com/mpetrov/cropscope/pkg/render"
	"github.com/mpetrov/cropscope/pkg/types"
)

// Version of the cropscope library
const Version = "1.0.0"

// Pipeline is a high-level interface over the crop-and-detect flow.
type Pipeline struct {
	locator client.ObjectLocator
	quality int
}

// New creates a Pipeline with the default JPEG quality. The locator may be
// nil when detection is unavailable; Detect then reports client.ErrNotReady.
func New(locator client.ObjectLocator) *Pipeline {
	return &Pipeline{locator: locator, quality: normalize.DefaultQuality}
}

// NewWithQuality creates a Pipeline with a custom submission JPEG quality.
func NewWithQuality(locator client.ObjectLocator, quality int) *Pipeline {
	return &Pipeline{locator: locator, quality: quality}
}

// Ready reports whether a detection backend is available.
func (p *Pipeline) Ready() bool {
	return p.locator != nil
}

// Decode decodes uploaded bytes, enforcing the upload format boundary.
func (p *Pipeline) Decode(data []byte) (image.Image, error) {
	img, _, err := ingest.Decode(data)
	return img, err
}

// Crop copies the selected region out of the source image.
func (p *Pipeline) Crop(img image.Image, sel cropper.Selection) (image.Image, error) {
	return cropper.Apply(img, sel)
}

// Normalize flattens transparency and encodes the image for submission.
func (p *Pipeline) Normalize(img image.Image) ([]byte, error) {
	return normalize.Normalize(img, p.quality)
}

// Detect runs crop, normalize, and localization in one step.
func (p *Pipeline) Detect(ctx context.Context, img image.Image, sel cropper.Selection) (types.DetectionResult, error) {
	if !p.Ready() {
		return types.DetectionResult{}, client.ErrNotReady
	}

	crop, err := p.Crop(img, sel)
	if err != nil {
		return types.DetectionResult{}, err
	}
	buf, err := p.Normalize(crop)
	if err != nil {
		return types.DetectionResult{}, fmt.Errorf("normalization failed: %w", err)
	}
	return p.locator.Localize(ctx, buf)
}

// Render maps a detection result to display messages.
func (p *Pipeline) Render(res types.DetectionResult) []render.Message {
	return render.Render(res)
}

// RenderText renders a detection result as plain text.
func (p *Pipeline) RenderText(res types.DetectionResult) string {
	return render.Text(res)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}

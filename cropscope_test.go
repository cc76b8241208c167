package cropscope

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/mpetrov/cropscope/pkg/client"
	"github.com/mpetrov/cropscope/pkg/cropper"
	"github.com/mpetrov/cropscope/pkg/types"
)

// stubLocator returns a canned result and records what it was sent
type stubLocator struct {
	result  types.DetectionResult
	gotData []byte
}

func (s *stubLocator) Localize(ctx context.Context, jpegData []byte) (types.DetectionResult, error) {
	s.gotData = jpegData
	return s.result, nil
}

// createTestPNG encodes a test image with a transparent right half
func createTestPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x < width/2 {
				img.Set(x, y, color.NRGBA{180, 40, 40, 255})
			} else {
				img.Set(x, y, color.NRGBA{0, 0, 0, 0})
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestNew(t *testing.T) {
	pipeline := New(&stubLocator{})
	if pipeline == nil {
		t.Fatal("New() returned nil")
	}
	if !pipeline.Ready() {
		t.Error("Expected pipeline with locator to be ready")
	}

	if New(nil).Ready() {
		t.Error("Expected pipeline without locator to not be ready")
	}
}

func TestDecode(t *testing.T) {
	pipeline := New(nil)

	img, err := pipeline.Decode(createTestPNG(t, 40, 30))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 30 {
		t.Errorf("Unexpected dimensions %v", img.Bounds())
	}

	if _, err := pipeline.Decode([]byte("garbage")); err == nil {
		t.Error("Expected error for undecodable bytes")
	}
}

func TestDetectEndToEnd(t *testing.T) {
	locator := &stubLocator{result: types.DetectionResult{Objects: []types.DetectedObject{
		{Label: "Cat", Score: 0.8734, Polygon: types.BoxVertices(0.1, 0.2, 0.8, 0.6)},
	}}}
	pipeline := New(locator)

	img, err := pipeline.Decode(createTestPNG(t, 100, 100))
	if err != nil {
		t.Fatal(err)
	}

	sel := cropper.Selection{X: 25, Y: 25, W: 50, H: 50}
	result, err := pipeline.Detect(context.Background(), img, sel)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	// The submitted buffer is an opaque JPEG of the crop
	sub, format, err := image.Decode(bytes.NewReader(locator.gotData))
	if err != nil {
		t.Fatalf("Submission does not decode: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("Expected jpeg submission, got %s", format)
	}
	if sub.Bounds().Dx() != 50 || sub.Bounds().Dy() != 50 {
		t.Errorf("Expected 50x50 submission, got %v", sub.Bounds())
	}
	// The crop spans the transparent half, which must arrive white
	if r, g, b, _ := sub.At(49, 25).RGBA(); r>>8 < 250 || g>>8 < 250 || b>>8 < 250 {
		t.Errorf("Transparent region not flattened to white: %d %d %d", r>>8, g>>8, b>>8)
	}

	want := "Cat (Score: 87.34%)\nBox: (0.10, 0.20) to (0.90, 0.80)"
	if got := pipeline.RenderText(result); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestDetectNotReady(t *testing.T) {
	pipeline := New(nil)

	img, err := pipeline.Decode(createTestPNG(t, 20, 20))
	if err != nil {
		t.Fatal(err)
	}

	_, err = pipeline.Detect(context.Background(), img, cropper.Selection{W: 10, H: 10})
	if !errors.Is(err, client.ErrNotReady) {
		t.Errorf("Expected ErrNotReady, got %v", err)
	}
}

func TestRenderNoObjects(t *testing.T) {
	pipeline := New(nil)

	msgs := pipeline.Render(types.DetectionResult{})
	if len(msgs) != 1 || msgs[0].Text != "no objects found" {
		t.Errorf("Unexpected rendering %+v", msgs)
	}
}

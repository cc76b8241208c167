// Package cropper implements the interactive crop selection model: a
// rectangular selection over a source bitmap, optionally constrained to a
// fixed aspect ratio.
package cropper

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/disintegration/imaging"
)

// ErrInvalidSelection marks selections that violate the source bounds or the
// active aspect-ratio constraint.
var ErrInvalidSelection = errors.New("invalid crop selection")

// ratioTolerance is the allowed deviation between a selection's aspect ratio
// and its constraint, accounting for integer rounding of the edges.
const ratioTolerance = 0.02

// AspectRatio represents a width:height crop constraint. A zero Width or
// Height means the selection is unconstrained.
type AspectRatio struct {
	Width  int
	Height int
	Name   string
}

// Ratio options exposed by the UI selector.
var (
	Free       = AspectRatio{0, 0, "free"}
	Square     = AspectRatio{1, 1, "1:1"}
	Widescreen = AspectRatio{16, 9, "16:9"}
	Standard   = AspectRatio{4, 3, "4:3"}
)

// Options returns the selectable aspect ratios in display order.
func Options() []AspectRatio {
	return []AspectRatio{Free, Square, Widescreen, Standard}
}

// ParseAspect maps a selector value ("free", "1:1", "16:9", "4:3") to its
// AspectRatio. Matching is case-insensitive; "" means Free.
func ParseAspect(name string) (AspectRatio, error) {
	if name == "" {
		return Free, nil
	}
	for _, r := range Options() {
		if strings.EqualFold(name, r.Name) {
			return r, nil
		}
	}
	return Free, fmt.Errorf("unknown aspect ratio %q", name)
}

// Constrained reports whether the ratio restricts selection shape.
func (r AspectRatio) Constrained() bool {
	return r.Width > 0 && r.Height > 0
}

// Value returns the ratio as width/height, or 0 when unconstrained.
func (r AspectRatio) Value() float64 {
	if !r.Constrained() {
		return 0
	}
	return float64(r.Width) / float64(r.Height)
}

// Selection is a crop rectangle in source pixel coordinates.
type Selection struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Rect returns the selection as an image.Rectangle.
func (s Selection) Rect() image.Rectangle {
	return image.Rect(s.X, s.Y, s.X+s.W, s.Y+s.H)
}

// Empty reports whether the selection has no area.
func (s Selection) Empty() bool {
	return s.W <= 0 || s.H <= 0
}

// Clamp clips the selection to the source bounds, dropping any part that
// hangs outside. The result may be empty when the selection lies entirely
// outside the source.
func (s Selection) Clamp(bounds image.Rectangle) Selection {
	r := s.Rect().Intersect(bounds)
	return Selection{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

// FitRatio shrinks the selection around its center until it matches the
// given ratio. Unconstrained ratios return the selection unchanged.
func (s Selection) FitRatio(ratio AspectRatio) Selection {
	if !ratio.Constrained() || s.Empty() {
		return s
	}
	target := ratio.Value()
	current := float64(s.W) / float64(s.H)
	if math.Abs(current-target) <= ratioTolerance {
		return s
	}

	w, h := s.W, s.H
	if current > target {
		w = int(math.Round(float64(h) * target))
	} else {
		h = int(math.Round(float64(w) / target))
	}
	return Selection{
		X: s.X + (s.W-w)/2,
		Y: s.Y + (s.H-h)/2,
		W: w,
		H: h,
	}
}

// Validate checks the selection invariants: positive area, fully inside the
// source bounds, and matching the ratio constraint within tolerance.
func (s Selection) Validate(bounds image.Rectangle, ratio AspectRatio) error {
	if s.Empty() {
		return fmt.Errorf("%w: empty rectangle", ErrInvalidSelection)
	}
	if !s.Rect().In(bounds) {
		return fmt.Errorf("%w: %v outside source bounds %v", ErrInvalidSelection, s.Rect(), bounds)
	}
	if ratio.Constrained() {
		got := float64(s.W) / float64(s.H)
		if math.Abs(got-ratio.Value()) > ratioTolerance {
			return fmt.Errorf("%w: ratio %.3f does not match %s", ErrInvalidSelection, got, ratio.Name)
		}
	}
	return nil
}

// Default builds the initial selection for a fresh upload: the largest
// centered rectangle that satisfies the ratio, or the full image when
// unconstrained.
func Default(bounds image.Rectangle, ratio AspectRatio) Selection {
	full := Selection{X: bounds.Min.X, Y: bounds.Min.Y, W: bounds.Dx(), H: bounds.Dy()}
	return full.FitRatio(ratio)
}

// Apply copies the selected subregion out of the source image. The source is
// never mutated; the returned image owns its pixels.
func Apply(img image.Image, sel Selection) (image.Image, error) {
	clamped := sel.Clamp(img.Bounds())
	if clamped.Empty() {
		return nil, fmt.Errorf("%w: selection %v does not overlap image %v", ErrInvalidSelection, sel.Rect(), img.Bounds())
	}
	return imaging.Crop(img, clamped.Rect()), nil
}

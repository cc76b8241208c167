// Package render turns a detection result into a deterministic, ordered
// sequence of display messages. Rendering is a pure function of its input.
package render

import (
	"fmt"
	"strings"

	"github.com/mpetrov/cropscope/pkg/types"
)

// Level classifies a rendered message for display styling.
type Level string

const (
	LevelError   Level = "error"
	LevelInfo    Level = "info"
	LevelResult  Level = "result"
	LevelCaption Level = "caption"
)

// Message is one line of rendered output.
type Message struct {
	Level Level  `json:"level"`
	Text  string `json:"text"`
}

// NoObjectsText is shown when a successful request localized nothing.
const NoObjectsText = "no objects found"

// NoBoxText replaces the box caption when an entry carries no usable polygon.
const NoBoxText = "bounding box unavailable"

// Render maps a DetectionResult to display messages. A service-reported error
// is authoritative: it renders alone, regardless of any entries. Otherwise
// each object renders in service order as a label/score line followed by a
// caption giving the diagonal corners of its bounding polygon, or a fallback
// caption when the polygon has fewer than three vertices.
func Render(res types.DetectionResult) []Message {
	if res.Failed() {
		return []Message{{Level: LevelError, Text: res.Err}}
	}
	if len(res.Objects) == 0 {
		return []Message{{Level: LevelInfo, Text: NoObjectsText}}
	}

	msgs := make([]Message, 0, 2*len(res.Objects))
	for _, obj := range res.Objects {
		msgs = append(msgs, Message{
			Level: LevelResult,
			Text:  fmt.Sprintf("%s (Score: %.2f%%)", obj.Label, obj.Score*100),
		})
		msgs = append(msgs, Message{Level: LevelCaption, Text: boxCaption(obj.Polygon)})
	}
	return msgs
}

// Text renders a DetectionResult as plain text, one message per line.
func Text(res types.DetectionResult) string {
	msgs := Render(res)
	lines := make([]string, len(msgs))
	for i, m := range msgs {
		lines[i] = m.Text
	}
	return strings.Join(lines, "\n")
}

// boxCaption formats the first and third vertex (diagonal corners) of the
// bounding polygon. Polygons shorter than three vertices have no usable
// diagonal and fall back to NoBoxText.
func boxCaption(poly []types.Vertex) string {
	if len(poly) < 3 {
		return NoBoxText
	}
	return fmt.Sprintf("Box: (%.2f, %.2f) to (%.2f, %.2f)", poly[0].X, poly[0].Y, poly[2].X, poly[2].Y)
}

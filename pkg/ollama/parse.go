package ollama

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/mpetrov/cropscope/pkg/types"
)

// wireResult mirrors the JSON shape the localization prompt requests.
type wireResult struct {
	Objects []wireObject `json:"objects"`
	Error   string       `json:"error"`
}

type wireObject struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        wireBox `json:"box"`
}

type wireBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// ParseLocalization parses the model's reply into a DetectionResult. Vision
// models frequently wrap JSON in fences or add commentary, so the raw text is
// sanitized first. Replies with no usable JSON become a result carrying an
// error string rather than a hard failure.
func ParseLocalization(raw string) types.DetectionResult {
	raw = sanitizeModelJSON(raw)

	if !strings.HasPrefix(strings.TrimSpace(raw), "{") {
		return types.DetectionResult{Err: "model returned non-JSON response"}
	}

	var wire wireResult
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return types.DetectionResult{Err: "failed to parse model response"}
	}
	if wire.Error != "" {
		// Error wins over any objects delivered alongside it.
		return types.DetectionResult{Err: wire.Error}
	}

	objects := make([]types.DetectedObject, 0, len(wire.Objects))
	for _, o := range wire.Objects {
		if o.Label == "" {
			continue
		}
		box := clampBox(o.Box)
		objects = append(objects, types.DetectedObject{
			Label:   o.Label,
			Score:   clamp(o.Confidence, 0, 1),
			Polygon: types.BoxVertices(box.X, box.Y, box.W, box.H),
		})
	}
	return types.DetectionResult{Objects: objects}
}

// clampBox forces a box into the normalized unit square.
func clampBox(b wireBox) wireBox {
	x := clamp(b.X, 0, 1)
	y := clamp(b.Y, 0, 1)
	return wireBox{
		X: x,
		Y: y,
		W: clamp(b.W, 0, 1-x),
		H: clamp(b.H, 0, 1-y),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

var (
	reBlockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment  = regexp.MustCompile(`(?m)^\s*//.*$`)
	reTrailingComma = regexp.MustCompile(`,(\s*[}\]])`)
)

// sanitizeModelJSON strips code fences, comments, and trailing commas, then
// keeps only the outermost JSON object.
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")

	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reTrailingComma.ReplaceAllString(raw, "$1")

	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}

package types

// Vertex is a normalized polygon coordinate with both components in [0,1],
// relative to image width and height.
type Vertex struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DetectedObject is a single localized object returned by a detection backend.
// Polygon holds the bounding polygon in service order (top-left, top-right,
// bottom-right, bottom-left); it may be missing or short when the service
// omitted box data for the entry.
type DetectedObject struct {
	Label   string   `json:"label"`
	Score   float64  `json:"score"`
	Polygon []Vertex `json:"polygon,omitempty"`
}

// DetectionResult is the normalized outcome of one detection request.
// A non-empty Err means the service itself reported a failure; entries are
// then not authoritative and Objects is left empty. Empty Objects with an
// empty Err is a valid "nothing found" success.
type DetectionResult struct {
	Objects []DetectedObject `json:"objects"`
	Err     string           `json:"error,omitempty"`
}

// Failed reports whether the service flagged an error for this request.
func (r DetectionResult) Failed() bool {
	return r.Err != ""
}

// BoxVertices expands a normalized {x, y, w, h} box into the canonical
// four-vertex polygon order used by detection services.
func BoxVertices(x, y, w, h float64) []Vertex {
	return []Vertex{
		{X: x, Y: y},
		{X: x + w, Y: y},
		{X: x + w, Y: y + h},
		{X: x, Y: y + h},
	}
}

package render

import (
	"reflect"
	"testing"

	"github.com/mpetrov/cropscope/pkg/types"
)

func TestRenderEmptyResult(t *testing.T) {
	msgs := Render(types.DetectionResult{})

	if len(msgs) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Level != LevelInfo {
		t.Errorf("Expected info level, got %s", msgs[0].Level)
	}
	if msgs[0].Text != NoObjectsText {
		t.Errorf("Expected %q, got %q", NoObjectsText, msgs[0].Text)
	}
}

func TestRenderErrorWinsOverEntries(t *testing.T) {
	res := types.DetectionResult{
		Err: "quota exceeded",
		Objects: []types.DetectedObject{
			{Label: "Cat", Score: 0.9},
		},
	}

	msgs := Render(res)
	if len(msgs) != 1 {
		t.Fatalf("Expected only the error message, got %d messages", len(msgs))
	}
	if msgs[0].Level != LevelError {
		t.Errorf("Expected error level, got %s", msgs[0].Level)
	}
	if msgs[0].Text != "quota exceeded" {
		t.Errorf("Expected %q, got %q", "quota exceeded", msgs[0].Text)
	}
}

func TestRenderEntryWithBox(t *testing.T) {
	res := types.DetectionResult{
		Objects: []types.DetectedObject{
			{
				Label: "Cat",
				Score: 0.8734,
				Polygon: []types.Vertex{
					{X: 0.1, Y: 0.2}, {X: 0.9, Y: 0.2}, {X: 0.9, Y: 0.8}, {X: 0.1, Y: 0.8},
				},
			},
		},
	}

	msgs := Render(res)
	if len(msgs) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Text != "Cat (Score: 87.34%)" {
		t.Errorf("Expected label line %q, got %q", "Cat (Score: 87.34%)", msgs[0].Text)
	}
	if msgs[0].Level != LevelResult {
		t.Errorf("Expected result level, got %s", msgs[0].Level)
	}
	if msgs[1].Text != "Box: (0.10, 0.20) to (0.90, 0.80)" {
		t.Errorf("Expected box caption %q, got %q", "Box: (0.10, 0.20) to (0.90, 0.80)", msgs[1].Text)
	}
	if msgs[1].Level != LevelCaption {
		t.Errorf("Expected caption level, got %s", msgs[1].Level)
	}
}

func TestRenderShortPolygonFallback(t *testing.T) {
	res := types.DetectionResult{
		Objects: []types.DetectedObject{
			{
				Label:   "Dog",
				Score:   0.5,
				Polygon: []types.Vertex{{X: 0.1, Y: 0.1}, {X: 0.9, Y: 0.9}},
			},
		},
	}

	msgs := Render(res)
	if len(msgs) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Text != "Dog (Score: 50.00%)" {
		t.Errorf("Unexpected label line %q", msgs[0].Text)
	}
	if msgs[1].Text != NoBoxText {
		t.Errorf("Expected fallback caption %q, got %q", NoBoxText, msgs[1].Text)
	}
}

func TestRenderMissingPolygonFallback(t *testing.T) {
	res := types.DetectionResult{
		Objects: []types.DetectedObject{{Label: "Bird", Score: 0.25}},
	}

	msgs := Render(res)
	if msgs[1].Text != NoBoxText {
		t.Errorf("Expected fallback caption %q, got %q", NoBoxText, msgs[1].Text)
	}
}

func TestRenderPreservesServiceOrder(t *testing.T) {
	res := types.DetectionResult{
		Objects: []types.DetectedObject{
			{Label: "Second", Score: 0.2},
			{Label: "First", Score: 0.9},
		},
	}

	msgs := Render(res)
	if msgs[0].Text != "Second (Score: 20.00%)" || msgs[2].Text != "First (Score: 90.00%)" {
		t.Errorf("Rendering reordered entries: %q, %q", msgs[0].Text, msgs[2].Text)
	}
}

func TestRenderDeterministic(t *testing.T) {
	res := types.DetectionResult{
		Objects: []types.DetectedObject{
			{Label: "Cat", Score: 0.8734, Polygon: types.BoxVertices(0.1, 0.2, 0.8, 0.6)},
			{Label: "Dog", Score: 0.5},
		},
	}

	first := Render(res)
	second := Render(res)
	if !reflect.DeepEqual(first, second) {
		t.Error("Render is not deterministic for identical input")
	}
}

func TestText(t *testing.T) {
	res := types.DetectionResult{
		Objects: []types.DetectedObject{
			{Label: "Cat", Score: 0.8734, Polygon: types.BoxVertices(0.1, 0.2, 0.8, 0.6)},
		},
	}

	want := "Cat (Score: 87.34%)\nBox: (0.10, 0.20) to (0.90, 0.80)"
	if got := Text(res); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

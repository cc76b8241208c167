// Package ollama implements the object-localization backend on a local
// Ollama vision model. The model is prompted for a strict-JSON object list;
// its output is sanitized and normalized into the same result shape the
// cloud backend produces.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/mpetrov/cropscope/pkg/client"
	"github.com/mpetrov/cropscope/pkg/types"
)

// LocalizePrompt asks the vision model for the same contract the cloud
// service provides: labeled objects with normalized bounding boxes.
const LocalizePrompt = `You are an object localizer.

Return JSON only:
{
  "objects": [
    {"label": "string", "confidence": 0.0, "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}}
  ],
  "error": ""
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels).
- Each box tightly encloses one visible object; list objects in order of confidence.
- Confidence is in [0,1].
- If nothing is identifiable, return {"objects": [], "error": ""}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// Client localizes objects via a local Ollama server. It satisfies
// client.ObjectLocator.
type Client struct {
	client  *api.Client
	model   string
	timeout time.Duration
}

// NewClient creates a localizer against the given Ollama server URL. Any path
// component on the URL is ignored; only scheme and host are used.
func NewClient(serverURL, model string) (*Client, error) {
	parsed, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}
	base := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host}

	return &Client{
		client:  api.NewClient(base, http.DefaultClient),
		model:   model,
		timeout: 300 * time.Second,
	}, nil
}

// Localize sends the encoded image with the localization prompt and parses
// the model's JSON reply. Chat failures wrap client.ErrTransport; unparseable
// replies degrade to a DetectionResult carrying an error string.
func (c *Client) Localize(ctx context.Context, jpegData []byte) (types.DetectionResult, error) {
	if c == nil || c.client == nil {
		return types.DetectionResult{}, client.ErrNotReady
	}
	if len(jpegData) == 0 {
		return types.DetectionResult{}, fmt.Errorf("%w: empty image buffer", client.ErrTransport)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	streamFalse := false
	req := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: LocalizePrompt,
				Images:  []api.ImageData{api.ImageData(jpegData)},
			},
		},
		Stream: &streamFalse,
	}

	var responseContent string
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		responseContent = resp.Message.Content
		return nil
	})
	if err != nil {
		return types.DetectionResult{}, fmt.Errorf("%w: %v", client.ErrTransport, err)
	}
	if responseContent == "" {
		return types.DetectionResult{}, fmt.Errorf("%w: empty response from ollama", client.ErrTransport)
	}

	return ParseLocalization(responseContent), nil
}

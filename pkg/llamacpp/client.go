// Package llamacpp implements the object-localization backend on a llama.cpp
// server's OpenAI-compatible chat endpoint. It shares the localization prompt
// and reply parsing with the ollama backend.
package llamacpp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mpetrov/cropscope/pkg/client"
	"github.com/mpetrov/cropscope/pkg/ollama"
	"github.com/mpetrov/cropscope/pkg/types"
)

// Client localizes objects via a llama.cpp server. It satisfies
// client.ObjectLocator.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// Message is an OpenAI-compatible chat message.
type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // string or []ContentPart
}

// ContentPart is one element of a multimodal message.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL carries an inline data URL.
type ImageURL struct {
	URL string `json:"url"`
}

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// NewClient creates a localizer against the given llama.cpp server URL.
func NewClient(serverURL, model string) (*Client, error) {
	if serverURL == "" {
		serverURL = "http://localhost:8080"
	}
	return &Client{
		baseURL: strings.TrimSuffix(serverURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}, nil
}

// Localize sends the encoded image with the localization prompt and parses
// the model's JSON reply.
func (c *Client) Localize(ctx context.Context, jpegData []byte) (types.DetectionResult, error) {
	if c == nil || c.httpClient == nil {
		return types.DetectionResult{}, client.ErrNotReady
	}
	if len(jpegData) == 0 {
		return types.DetectionResult{}, fmt.Errorf("%w: empty image buffer", client.ErrTransport)
	}

	req := chatCompletionRequest{
		Model: c.model,
		Messages: []Message{
			{
				Role: "user",
				Content: []ContentPart{
					{Type: "text", Text: ollama.LocalizePrompt},
					{Type: "image_url", ImageURL: &ImageURL{
						URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpegData),
					}},
				},
			},
		},
		Temperature: 0.2,
		MaxTokens:   2048,
		Stream:      false,
	}

	respBody, err := c.sendRequest(ctx, "/v1/chat/completions", req)
	if err != nil {
		return types.DetectionResult{}, fmt.Errorf("%w: %v", client.ErrTransport, err)
	}

	var resp chatCompletionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return types.DetectionResult{}, fmt.Errorf("%w: failed to parse response: %v", client.ErrTransport, err)
	}
	if len(resp.Choices) == 0 {
		return types.DetectionResult{}, fmt.Errorf("%w: no choices in response", client.ErrTransport)
	}

	text := messageText(resp.Choices[0].Message)
	if text == "" {
		return types.DetectionResult{}, fmt.Errorf("%w: no text content in response", client.ErrTransport)
	}
	return ollama.ParseLocalization(text), nil
}

// messageText extracts reply text, handling both string and part-list forms.
func messageText(msg Message) string {
	switch content := msg.Content.(type) {
	case string:
		return content
	case []interface{}:
		for _, item := range content {
			if partMap, ok := item.(map[string]interface{}); ok {
				if text, ok := partMap["text"].(string); ok && text != "" {
					return text
				}
			}
		}
	}
	return ""
}

func (c *Client) sendRequest(ctx context.Context, endpoint string, payload interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

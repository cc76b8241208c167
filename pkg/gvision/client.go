// Package gvision implements the object-localization backend on the Google
// Cloud Vision API, including service-account credential loading.
package gvision

import (
	"context"
	"fmt"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"

	"github.com/mpetrov/cropscope/pkg/client"
	"github.com/mpetrov/cropscope/pkg/types"
)

// Config holds tuning for the Vision backend.
type Config struct {
	// MaxResults caps the number of localized objects per request.
	MaxResults int
	// Retries is the number of additional attempts after a transport
	// failure. The default 0 preserves single-request semantics.
	Retries int
	// RetryBackoff is the initial delay between attempts; it doubles after
	// each failure.
	RetryBackoff time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MaxResults:   50,
		Retries:      0,
		RetryBackoff: 250 * time.Millisecond,
	}
}

// Client is an authenticated handle to the Vision object-localization
// capability. It satisfies client.ObjectLocator.
type Client struct {
	annotator *vision.ImageAnnotatorClient
	config    Config
}

// New validates the service-account secret and constructs an authenticated
// client. Credential problems wrap ErrCredentials.
func New(ctx context.Context, credsJSON []byte, config Config) (*Client, error) {
	if _, err := ParseServiceAccount(credsJSON); err != nil {
		return nil, err
	}

	annotator, err := vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON(credsJSON))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentials, err)
	}
	if config.MaxResults <= 0 {
		config.MaxResults = DefaultConfig().MaxResults
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = DefaultConfig().RetryBackoff
	}
	return &Client{annotator: annotator, config: config}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.annotator.Close()
}

// Localize submits one encoded image buffer for object localization. A
// service-reported error becomes DetectionResult.Err with no entries; a
// request that never reached the service wraps client.ErrTransport, retried
// with exponential backoff when Retries is set.
func (c *Client) Localize(ctx context.Context, jpegData []byte) (types.DetectionResult, error) {
	if c == nil || c.annotator == nil {
		return types.DetectionResult{}, client.ErrNotReady
	}
	if len(jpegData) == 0 {
		return types.DetectionResult{}, fmt.Errorf("%w: empty image buffer", client.ErrTransport)
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image: &visionpb.Image{Content: jpegData},
			Features: []*visionpb.Feature{{
				Type:       visionpb.Feature_OBJECT_LOCALIZATION,
				MaxResults: int32(c.config.MaxResults),
			}},
		}},
	}

	var resp *visionpb.BatchAnnotateImagesResponse
	var err error
	backoff := c.config.RetryBackoff
	for attempt := 0; ; attempt++ {
		resp, err = c.annotator.BatchAnnotateImages(ctx, req)
		if err == nil {
			break
		}
		if attempt >= c.config.Retries || ctx.Err() != nil {
			return types.DetectionResult{}, fmt.Errorf("%w: %v", client.ErrTransport, err)
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return types.DetectionResult{}, fmt.Errorf("%w: %v", client.ErrTransport, ctx.Err())
		}
		backoff *= 2
	}

	if len(resp.GetResponses()) == 0 {
		return types.DetectionResult{}, fmt.Errorf("%w: empty batch response", client.ErrTransport)
	}
	return FromAnnotateResponse(resp.GetResponses()[0]), nil
}

// FromAnnotateResponse normalizes one AnnotateImageResponse. The service's
// error field wins over any entries that arrived alongside it.
func FromAnnotateResponse(res *visionpb.AnnotateImageResponse) types.DetectionResult {
	if msg := res.GetError().GetMessage(); msg != "" {
		return types.DetectionResult{Err: msg}
	}

	annotations := res.GetLocalizedObjectAnnotations()
	objects := make([]types.DetectedObject, 0, len(annotations))
	for _, ann := range annotations {
		objects = append(objects, types.DetectedObject{
			Label:   ann.GetName(),
			Score:   float64(ann.GetScore()),
			Polygon: fromBoundingPoly(ann.GetBoundingPoly()),
		})
	}
	return types.DetectionResult{Objects: objects}
}

func fromBoundingPoly(poly *visionpb.BoundingPoly) []types.Vertex {
	vertices := poly.GetNormalizedVertices()
	if len(vertices) == 0 {
		return nil
	}
	out := make([]types.Vertex, len(vertices))
	for i, v := range vertices {
		out[i] = types.Vertex{X: float64(v.GetX()), Y: float64(v.GetY())}
	}
	return out
}

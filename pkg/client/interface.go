package client

import (
	"context"
	"errors"

	"github.com/mpetrov/cropscope/pkg/types"
)

// ErrNotReady is returned when detection is attempted without an initialized
// backend, e.g. after a credential failure at startup. Callers check the
// locator before invoking it rather than inferring readiness from a crash.
var ErrNotReady = errors.New("detection client not initialized")

// ErrTransport marks requests that never produced a service response
// (network failure, authentication rejection). Distinct from a successful
// response with zero objects and from a service-reported error.
var ErrTransport = errors.New("detection request failed")

// ObjectLocator submits an encoded image buffer to a detection backend and
// returns the normalized result. Implementations issue one synchronous
// request per call.
type ObjectLocator interface {
	Localize(ctx context.Context, jpegData []byte) (types.DetectionResult, error)
}

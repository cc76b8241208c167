package gvision

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrCredentials marks service-account secrets that are absent, malformed, or
// rejected by the identity service. A credential failure disables detection
// but never takes the process down.
var ErrCredentials = errors.New("invalid service account credentials")

// ServiceAccount is the subset of a Google service-account document the
// loader validates before handing the raw JSON to the auth library.
type ServiceAccount struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	PrivateKey  string `json:"private_key"`
	ClientEmail string `json:"client_email"`
}

// ParseServiceAccount validates a JSON-encoded service-account secret.
// The document is otherwise treated opaquely and passed through to the
// authentication library unmodified.
func ParseServiceAccount(data []byte) (ServiceAccount, error) {
	if len(data) == 0 {
		return ServiceAccount{}, fmt.Errorf("%w: empty secret", ErrCredentials)
	}

	var sa ServiceAccount
	if err := json.Unmarshal(data, &sa); err != nil {
		return ServiceAccount{}, fmt.Errorf("%w: %v", ErrCredentials, err)
	}
	if sa.Type != "service_account" {
		return ServiceAccount{}, fmt.Errorf("%w: unexpected credential type %q", ErrCredentials, sa.Type)
	}
	if sa.ClientEmail == "" {
		return ServiceAccount{}, fmt.Errorf("%w: missing client_email", ErrCredentials)
	}
	if sa.PrivateKey == "" {
		return ServiceAccount{}, fmt.Errorf("%w: missing private_key", ErrCredentials)
	}
	return sa, nil
}

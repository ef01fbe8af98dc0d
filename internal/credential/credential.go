// Package credential stores the model endpoints and API keys used by the
// judge. Backends live in sub-packages (sqlite, filestore).
package credential

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned when deleting a model that is not stored.
var ErrNotFound = errors.New("model not found")

// Credential is one configured model endpoint.
type Credential struct {
	ModelName string `json:"model_name" toml:"model_name"`
	BaseURL   string `json:"base_url" toml:"base_url"`
	APIKey    string `json:"api_key" toml:"api_key"`
}

// Masked returns a copy with all but the last four characters of the key
// hidden.
func (c Credential) Masked() Credential {
	c.APIKey = MaskKey(c.APIKey)
	return c
}

// MaskKey hides all but the last four characters of key.
func MaskKey(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

// Store persists credentials. Get returns them in insertion order; the first
// entry is the active judge model.
type Store interface {
	Get(ctx context.Context) ([]Credential, error)
	Upsert(ctx context.Context, c Credential) error
	Delete(ctx context.Context, modelName string) error
	Close() error
}

package providers

import (
	"errors"
	"fmt"
)

var (
	// ErrNoProviderConfigured is returned when neither a default nor any active provider exists
	ErrNoProviderConfigured = errors.New("no active AI provider configured")

	// ErrProviderInactive is returned when loading a disabled provider
	ErrProviderInactive = errors.New("provider is not active")

	// ErrUnsupportedType is returned by the factory for unknown backend types
	ErrUnsupportedType = errors.New("unsupported provider type")
)

// ProviderError wraps a transport or protocol failure with the provider's display name.
type ProviderError struct {
	Provider   string
	Type       string
	Op         string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %q: %s: status %d: %v", e.Type, e.Provider, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %q: %s: %v", e.Type, e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

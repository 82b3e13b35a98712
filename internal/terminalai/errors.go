package terminalai

import (
	"errors"
	"fmt"

	"jaterm_gateway/internal/providers"
	"jaterm_gateway/internal/secrets"
)

// ErrorKind classifies gateway failures
type ErrorKind string

const (
	KindPolicyDenied        ErrorKind = "policy_denied"
	KindValidationFailed    ErrorKind = "validation_failed"
	KindProviderUnavailable ErrorKind = "provider_unavailable"
	KindTransportFailure    ErrorKind = "transport_failure"
	KindParseFailure        ErrorKind = "parse_failure"
	KindDecryptionFailure   ErrorKind = "decryption_failure"
	KindInternal            ErrorKind = "internal"
)

// GatewayError is the error type surfaced by the service
type GatewayError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, message string, err error) *GatewayError {
	return &GatewayError{Kind: kind, Message: message, Err: err}
}

// KindOf classifies any error, including ones that never passed through the service
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Kind
	}
	var provErr *providers.ProviderError
	switch {
	case errors.Is(err, providers.ErrNoProviderConfigured),
		errors.Is(err, providers.ErrProviderInactive),
		errors.Is(err, providers.ErrUnsupportedType):
		return KindProviderUnavailable
	case errors.Is(err, secrets.ErrMalformedCiphertext), errors.Is(err, secrets.ErrDecryptionFailed):
		return KindDecryptionFailure
	case errors.As(err, &provErr):
		return KindTransportFailure
	}
	return KindInternal
}

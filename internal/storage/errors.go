package storage

import (
	"fmt"

	"jaterm_gateway/internal/models"
)

// Every sentinel wraps models.ErrNotFound so callers outside storage can
// test for absence without importing this package.
var (
	// ErrProviderNotFound is returned when a provider is not found
	ErrProviderNotFound = fmt.Errorf("provider %w", models.ErrNotFound)

	// ErrPolicyNotFound is returned when no (active) policy exists
	ErrPolicyNotFound = fmt.Errorf("policy %w", models.ErrNotFound)

	// ErrProfileNotFound is returned when a user has no behaviour profile yet
	ErrProfileNotFound = fmt.Errorf("behavior profile %w", models.ErrNotFound)

	// ErrTemplateNotFound is returned when a prompt template is not found
	ErrTemplateNotFound = fmt.Errorf("prompt template %w", models.ErrNotFound)
)

package prompt

import (
	"errors"
	"fmt"

	"jaterm_gateway/internal/models"
)

var (
	// ErrTemplateNotFound is returned when no active template has the requested name
	ErrTemplateNotFound = fmt.Errorf("prompt template %w", models.ErrNotFound)

	// ErrTemplateForbidden is returned when the caller's role may not use a template
	ErrTemplateForbidden = errors.New("prompt template not allowed for role")

	// ErrTemplateFeatureMismatch is returned when a template belongs to another feature
	ErrTemplateFeatureMismatch = errors.New("prompt template belongs to a different feature")
)

package models

import (
	"time"

	"github.com/google/uuid"
)

// ProviderType enumerates supported backend kinds.
type ProviderType string

const (
	ProviderTypeOllama ProviderType = "ollama"
	ProviderTypeVLLM   ProviderType = "vllm"
)

// IsValid reports whether t is a built-in provider type.
func (t ProviderType) IsValid() bool {
	return t == ProviderTypeOllama || t == ProviderTypeVLLM
}

const (
	DefaultProviderTimeoutMs = 60000
	DefaultProviderMaxTokens = 2048
)

// ProviderConfig is a persisted LLM backend configuration.
type ProviderConfig struct {
	ID                  uuid.UUID    `db:"id" json:"id"`
	Name                string       `db:"name" json:"name"`
	Type                ProviderType `db:"provider_type" json:"type"`
	BaseURL             string       `db:"base_url" json:"base_url"`
	EncryptedCredential *string      `db:"encrypted_credential" json:"-"`
	DefaultModel        string       `db:"default_model" json:"default_model"`
	TimeoutMs           int          `db:"timeout_ms" json:"timeout_ms"`
	MaxTokens           int          `db:"max_tokens" json:"max_tokens"`
	SupportsStreaming   bool         `db:"supports_streaming" json:"supports_streaming"`
	IsDefault           bool         `db:"is_default" json:"is_default"`
	IsActive            bool         `db:"is_active" json:"is_active"`
	CreatedAt           time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time    `db:"updated_at" json:"updated_at"`
}

// Timeout returns the configured request timeout, falling back to the default.
func (p *ProviderConfig) Timeout() time.Duration {
	if p.TimeoutMs <= 0 {
		return DefaultProviderTimeoutMs * time.Millisecond
	}
	return time.Duration(p.TimeoutMs) * time.Millisecond
}

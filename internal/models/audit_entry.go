package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditStatus is the outcome recorded for a gateway call.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailed  AuditStatus = "failed"
	AuditStatusBlocked AuditStatus = "blocked"
)

// AuditEntry records one gateway invocation. The prompt itself is never stored.
type AuditEntry struct {
	ID             uuid.UUID   `db:"id" json:"id"`
	UserID         string      `db:"user_id" json:"user_id"`
	ProviderID     *uuid.UUID  `db:"provider_id" json:"provider_id,omitempty"`
	Model          *string     `db:"model" json:"model,omitempty"`
	Feature        Feature     `db:"feature" json:"feature"`
	PromptHash     string      `db:"prompt_hash" json:"prompt_hash"`
	PromptLength   int         `db:"prompt_length" json:"prompt_length"`
	ResponseTokens int         `db:"response_tokens" json:"response_tokens"`
	DurationMs     int64       `db:"duration_ms" json:"duration_ms"`
	Status         AuditStatus `db:"status" json:"status"`
	ErrorMessage   *string     `db:"error_message" json:"error_message,omitempty"`
	IPAddress      *string     `db:"ip_address" json:"ip_address,omitempty"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
}

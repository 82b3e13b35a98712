package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	DefaultRiskThreshold   = 0.6
	DefaultPromptMaxLength = 4000
)

// Policy governs who may use which feature, when, and how often.
// Exactly one active policy applies at a time; the newest one wins.
type Policy struct {
	ID                   uuid.UUID `db:"id" json:"id"`
	Name                 string    `db:"name" json:"name"`
	IsActive             bool      `db:"is_active" json:"is_active"`
	AllowedRoles         StringSet `db:"allowed_roles" json:"allowed_roles"`
	AllowedFeatures      StringSet `db:"allowed_features" json:"allowed_features"`
	TimeWindowStart      *string   `db:"time_window_start" json:"time_window_start,omitempty"` // "HH:MM"
	TimeWindowEnd        *string   `db:"time_window_end" json:"time_window_end,omitempty"`     // "HH:MM"
	RateLimitPerHour     int       `db:"rate_limit_per_hour" json:"rate_limit_per_hour"`       // 0 = unlimited
	RiskThreshold        float64   `db:"risk_threshold" json:"risk_threshold"`
	AutoBlock            bool      `db:"auto_block" json:"auto_block"`
	PromptMaxLength      int       `db:"prompt_max_length" json:"prompt_max_length"`
	MaskSensitiveResults bool      `db:"mask_sensitive_results" json:"mask_sensitive_results"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
}

// EffectiveRiskThreshold returns the warn threshold, defaulting when unset.
func (p *Policy) EffectiveRiskThreshold() float64 {
	if p == nil || p.RiskThreshold <= 0 {
		return DefaultRiskThreshold
	}
	return p.RiskThreshold
}


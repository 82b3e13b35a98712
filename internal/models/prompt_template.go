package models

import (
	"time"

	"github.com/google/uuid"
)

// PromptTemplate is a reusable, role-gated prompt skeleton with {{var}} placeholders.
type PromptTemplate struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Feature      Feature   `db:"feature" json:"feature"`
	Template     string    `db:"template" json:"template"`
	AllowedRoles StringSet `db:"allowed_roles" json:"allowed_roles"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"jaterm_gateway/internal/models"
)

const templateColumns = `id, name, feature, template, allowed_roles, is_active, created_at`

// TemplateRepository stores reusable prompt templates
type TemplateRepository struct {
	db *DB
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(db *DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// ListByFeature returns the active templates for a feature, by name
func (r *TemplateRepository) ListByFeature(ctx context.Context, feature models.Feature) ([]*models.PromptTemplate, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var templates []*models.PromptTemplate
	query := r.db.Rebind(`SELECT ` + templateColumns + ` FROM ai_prompt_templates
		WHERE feature = ? AND is_active = ? ORDER BY name`)
	if err := r.db.conn.SelectContext(ctx, &templates, query, feature, true); err != nil {
		return nil, fmt.Errorf("failed to list prompt templates: %w", err)
	}
	return templates, nil
}

// GetByName returns a template regardless of its active flag
func (r *TemplateRepository) GetByName(ctx context.Context, name string) (*models.PromptTemplate, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var tpl models.PromptTemplate
	query := r.db.Rebind(`SELECT ` + templateColumns + ` FROM ai_prompt_templates WHERE name = ?`)
	if err := r.db.conn.GetContext(ctx, &tpl, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to get prompt template: %w", err)
	}
	return &tpl, nil
}

// Create stores a template; names are unique
func (r *TemplateRepository) Create(ctx context.Context, tpl *models.PromptTemplate) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if tpl.ID == uuid.Nil {
		tpl.ID = uuid.New()
	}
	if tpl.AllowedRoles == nil {
		tpl.AllowedRoles = models.StringSet{}
	}
	tpl.CreatedAt = time.Now().UTC()

	query := r.db.Rebind(`INSERT INTO ai_prompt_templates (` + templateColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.conn.ExecContext(ctx, query,
		tpl.ID, tpl.Name, tpl.Feature, tpl.Template, tpl.AllowedRoles, tpl.IsActive, tpl.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create prompt template: %w", err)
	}
	return nil
}

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

const policyColumns = `id, name, is_active, allowed_roles, allowed_features, time_window_start, time_window_end,
	rate_limit_per_hour, risk_threshold, auto_block, prompt_max_length, mask_sensitive_results, created_at`

// PolicyRepository handles usage policy persistence
type PolicyRepository struct {
	db *DB
}

// NewPolicyRepository creates a new policy repository
func NewPolicyRepository(db *DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// GetActive returns the most recently created active policy
func (r *PolicyRepository) GetActive(ctx context.Context) (*models.Policy, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var policy models.Policy
	query := r.db.Rebind(`SELECT ` + policyColumns + ` FROM ai_policies
		WHERE is_active = ?
		ORDER BY created_at DESC LIMIT 1`)
	if err := r.db.conn.GetContext(ctx, &policy, query, true); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPolicyNotFound
		}
		return nil, fmt.Errorf("failed to get active policy: %w", err)
	}
	return &policy, nil
}

// List returns all policies, newest first
func (r *PolicyRepository) List(ctx context.Context) ([]*models.Policy, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var policies []*models.Policy
	query := `SELECT ` + policyColumns + ` FROM ai_policies ORDER BY created_at DESC`
	if err := r.db.conn.SelectContext(ctx, &policies, query); err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	return policies, nil
}

// Create stores a new policy
func (r *PolicyRepository) Create(ctx context.Context, p *models.Policy) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	p.CreatedAt = p.CreatedAt.UTC()
	if p.AllowedRoles == nil {
		p.AllowedRoles = models.StringSet{}
	}
	if p.AllowedFeatures == nil {
		p.AllowedFeatures = models.StringSet{}
	}

	query := r.db.Rebind(`INSERT INTO ai_policies (` + policyColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.conn.ExecContext(ctx, query,
		p.ID, p.Name, p.IsActive, p.AllowedRoles, p.AllowedFeatures, p.TimeWindowStart, p.TimeWindowEnd,
		p.RateLimitPerHour, p.RiskThreshold, p.AutoBlock, p.PromptMaxLength, p.MaskSensitiveResults, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create policy: %w", err)
	}
	return nil
}

// Update rewrites every mutable policy field
func (r *PolicyRepository) Update(ctx context.Context, p *models.Policy) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	query := r.db.Rebind(`
		UPDATE ai_policies
		SET name = ?, is_active = ?, allowed_roles = ?, allowed_features = ?,
		    time_window_start = ?, time_window_end = ?, rate_limit_per_hour = ?,
		    risk_threshold = ?, auto_block = ?, prompt_max_length = ?, mask_sensitive_results = ?
		WHERE id = ?
	`)
	result, err := r.db.conn.ExecContext(ctx, query,
		p.Name, p.IsActive, p.AllowedRoles, p.AllowedFeatures,
		p.TimeWindowStart, p.TimeWindowEnd, p.RateLimitPerHour,
		p.RiskThreshold, p.AutoBlock, p.PromptMaxLength, p.MaskSensitiveResults, p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update policy: %w", err)
	}
	return expectRows(result, ErrPolicyNotFound)
}

// Deactivate switches a policy off
func (r *PolicyRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	result, err := r.db.conn.ExecContext(ctx, r.db.Rebind(`UPDATE ai_policies SET is_active = ? WHERE id = ?`), false, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate policy: %w", err)
	}
	return expectRows(result, ErrPolicyNotFound)
}

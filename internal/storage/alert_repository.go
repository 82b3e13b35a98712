package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"jaterm_gateway/internal/models"
)

const alertColumns = `id, user_id, kind, severity, title, detail, score, command, server_id, created_at`

// AlertRepository stores security alerts raised by risk and anomaly checks
type AlertRepository struct {
	db *DB
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create stores an alert
func (r *AlertRepository) Create(ctx context.Context, a *models.Alert) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	a.CreatedAt = a.CreatedAt.UTC()

	query := r.db.Rebind(`INSERT INTO security_alerts (` + alertColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.conn.ExecContext(ctx, query,
		a.ID, a.UserID, a.Kind, a.Severity, a.Title, a.Detail, a.Score, a.Command, a.ServerID, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

// ListRecent returns the newest alerts. Limit defaults to 50.
func (r *AlertRepository) ListRecent(ctx context.Context, limit int) ([]*models.Alert, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}

	var alerts []*models.Alert
	query := r.db.Rebind(`SELECT ` + alertColumns + ` FROM security_alerts ORDER BY created_at DESC LIMIT ?`)
	if err := r.db.conn.SelectContext(ctx, &alerts, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"jaterm_gateway/internal/models"
)

// ProfileRepository persists per-user behaviour baselines
type ProfileRepository struct {
	db *DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Get returns the user's profile or ErrProfileNotFound
func (r *ProfileRepository) Get(ctx context.Context, userID string) (*models.BehaviorProfile, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var profile models.BehaviorProfile
	query := r.db.Rebind(`SELECT user_id, avg_session_duration_sec, command_prefixes, servers,
		access_hours, session_count, updated_at
		FROM user_behavior_profiles WHERE user_id = ?`)
	if err := r.db.conn.GetContext(ctx, &profile, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get behavior profile: %w", err)
	}
	return &profile, nil
}

// Upsert inserts or replaces the user's profile
func (r *ProfileRepository) Upsert(ctx context.Context, p *models.BehaviorProfile) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	p.UpdatedAt = time.Now().UTC()

	query := r.db.Rebind(`
		INSERT INTO user_behavior_profiles (user_id, avg_session_duration_sec, command_prefixes,
			servers, access_hours, session_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			avg_session_duration_sec = excluded.avg_session_duration_sec,
			command_prefixes = excluded.command_prefixes,
			servers = excluded.servers,
			access_hours = excluded.access_hours,
			session_count = excluded.session_count,
			updated_at = excluded.updated_at
	`)
	_, err := r.db.conn.ExecContext(ctx, query,
		p.UserID, p.AvgSessionDurationSec, p.CommandPrefixes, p.Servers,
		p.AccessHours, p.SessionCount, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert behavior profile: %w", err)
	}
	return nil
}

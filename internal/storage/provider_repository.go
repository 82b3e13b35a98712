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

const providerColumns = `id, name, provider_type, base_url, encrypted_credential, default_model,
	timeout_ms, max_tokens, supports_streaming, is_default, is_active, created_at, updated_at`

// ProviderRepository handles provider database operations
type ProviderRepository struct {
	db *DB
}

// NewProviderRepository creates a new provider repository
func NewProviderRepository(db *DB) *ProviderRepository {
	return &ProviderRepository{db: db}
}

func (r *ProviderRepository) getOne(ctx context.Context, query string, args ...interface{}) (*models.ProviderConfig, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var provider models.ProviderConfig
	err := r.db.conn.GetContext(ctx, &provider, r.db.Rebind(query), args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}
	return &provider, nil
}

// GetByID retrieves a provider by ID
func (r *ProviderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ProviderConfig, error) {
	return r.getOne(ctx, `SELECT `+providerColumns+` FROM ai_providers WHERE id = ?`, id)
}

// GetDefault retrieves the active provider flagged as default
func (r *ProviderRepository) GetDefault(ctx context.Context) (*models.ProviderConfig, error) {
	return r.getOne(ctx, `SELECT `+providerColumns+` FROM ai_providers
		WHERE is_default = ? AND is_active = ?
		ORDER BY created_at LIMIT 1`, true, true)
}

// GetAnyActive retrieves the oldest active provider
func (r *ProviderRepository) GetAnyActive(ctx context.Context) (*models.ProviderConfig, error) {
	return r.getOne(ctx, `SELECT `+providerColumns+` FROM ai_providers
		WHERE is_active = ?
		ORDER BY created_at LIMIT 1`, true)
}

// List returns all providers
func (r *ProviderRepository) List(ctx context.Context) ([]*models.ProviderConfig, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var providers []*models.ProviderConfig
	query := `SELECT ` + providerColumns + ` FROM ai_providers ORDER BY name`
	if err := r.db.conn.SelectContext(ctx, &providers, query); err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	return providers, nil
}

// Create creates a new provider. Flagging it as default clears the flag elsewhere.
func (r *ProviderRepository) Create(ctx context.Context, provider *models.ProviderConfig) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if provider.ID == uuid.Nil {
		provider.ID = uuid.New()
	}
	now := time.Now().UTC()
	provider.CreatedAt = now
	provider.UpdatedAt = now

	tx, err := r.db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if provider.IsDefault {
		if _, err := tx.ExecContext(ctx, r.db.Rebind(`UPDATE ai_providers SET is_default = ? WHERE is_default = ?`), false, true); err != nil {
			return fmt.Errorf("failed to clear default provider: %w", err)
		}
	}

	query := r.db.Rebind(`INSERT INTO ai_providers (` + providerColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = tx.ExecContext(ctx, query,
		provider.ID, provider.Name, provider.Type, provider.BaseURL, provider.EncryptedCredential,
		provider.DefaultModel, provider.TimeoutMs, provider.MaxTokens, provider.SupportsStreaming,
		provider.IsDefault, provider.IsActive, provider.CreatedAt, provider.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Update updates an existing provider
func (r *ProviderRepository) Update(ctx context.Context, provider *models.ProviderConfig) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	provider.UpdatedAt = time.Now().UTC()

	tx, err := r.db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if provider.IsDefault {
		if _, err := tx.ExecContext(ctx, r.db.Rebind(`UPDATE ai_providers SET is_default = ? WHERE id <> ?`), false, provider.ID); err != nil {
			return fmt.Errorf("failed to clear default provider: %w", err)
		}
	}

	query := r.db.Rebind(`
		UPDATE ai_providers
		SET name = ?, provider_type = ?, base_url = ?, encrypted_credential = ?,
		    default_model = ?, timeout_ms = ?, max_tokens = ?, supports_streaming = ?,
		    is_default = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`)
	result, err := tx.ExecContext(ctx, query,
		provider.Name, provider.Type, provider.BaseURL, provider.EncryptedCredential,
		provider.DefaultModel, provider.TimeoutMs, provider.MaxTokens, provider.SupportsStreaming,
		provider.IsDefault, provider.IsActive, provider.UpdatedAt, provider.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update provider: %w", err)
	}
	if err := expectRows(result, ErrProviderNotFound); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Delete deletes a provider
func (r *ProviderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	result, err := r.db.conn.ExecContext(ctx, r.db.Rebind(`DELETE FROM ai_providers WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete provider: %w", err)
	}
	return expectRows(result, ErrProviderNotFound)
}

// expectRows maps zero affected rows to notFound
func expectRows(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return notFound
	}
	return nil
}

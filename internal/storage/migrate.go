package storage

import (
	"context"
	"fmt"
	"strings"
)

// schema is written for postgres; sqliteTypes rewrites the column types.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS ai_providers (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		provider_type TEXT NOT NULL,
		base_url TEXT NOT NULL,
		encrypted_credential TEXT,
		default_model TEXT NOT NULL DEFAULT '',
		timeout_ms INTEGER NOT NULL DEFAULT 60000,
		max_tokens INTEGER NOT NULL DEFAULT 2048,
		supports_streaming BOOLEAN NOT NULL DEFAULT TRUE,
		is_default BOOLEAN NOT NULL DEFAULT FALSE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ai_policies (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		allowed_roles TEXT NOT NULL DEFAULT '[]',
		allowed_features TEXT NOT NULL DEFAULT '[]',
		time_window_start TEXT,
		time_window_end TEXT,
		rate_limit_per_hour INTEGER NOT NULL DEFAULT 0,
		risk_threshold DOUBLE PRECISION NOT NULL DEFAULT 0.6,
		auto_block BOOLEAN NOT NULL DEFAULT TRUE,
		prompt_max_length INTEGER NOT NULL DEFAULT 4000,
		mask_sensitive_results BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ai_audit_logs (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		provider_id UUID,
		model TEXT,
		feature TEXT NOT NULL,
		prompt_hash TEXT NOT NULL,
		prompt_length INTEGER NOT NULL,
		response_tokens INTEGER NOT NULL DEFAULT 0,
		duration_ms BIGINT NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error_message TEXT,
		ip_address TEXT,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ai_audit_logs_user_created ON ai_audit_logs (user_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_ai_audit_logs_created ON ai_audit_logs (created_at)`,
	`CREATE TABLE IF NOT EXISTS user_behavior_profiles (
		user_id TEXT PRIMARY KEY,
		avg_session_duration_sec DOUBLE PRECISION NOT NULL DEFAULT 0,
		command_prefixes TEXT NOT NULL DEFAULT '[]',
		servers TEXT NOT NULL DEFAULT '[]',
		access_hours TEXT NOT NULL DEFAULT '[]',
		session_count INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ai_prompt_templates (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		feature TEXT NOT NULL,
		template TEXT NOT NULL,
		allowed_roles TEXT NOT NULL DEFAULT '[]',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS security_alerts (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		severity TEXT NOT NULL,
		title TEXT NOT NULL,
		detail TEXT NOT NULL,
		score DOUBLE PRECISION NOT NULL,
		command TEXT,
		server_id TEXT,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_security_alerts_created ON security_alerts (created_at)`,
}

var sqliteTypes = strings.NewReplacer(
	"UUID", "TEXT",
	"TIMESTAMPTZ", "DATETIME",
	"DOUBLE PRECISION", "REAL",
	"BIGINT", "INTEGER",
	"TRUE", "1",
	"FALSE", "0",
)

// Migrate creates the schema idempotently
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if db.driver == DriverSQLite {
			stmt = sqliteTypes.Replace(stmt)
		}
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

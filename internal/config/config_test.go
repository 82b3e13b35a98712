package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("JATERM_MASTER_SECRET", "master")
	t.Setenv("JWT_SECRET", "jwt")
	t.Setenv("DATABASE_URL", "postgres://localhost/jaterm")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "sha256", cfg.KDF)
	assert.Equal(t, "memory", cfg.RateLimit.Backend)
	assert.Equal(t, 0.6, cfg.Risk.WarnThreshold)
	assert.Equal(t, 0.9, cfg.Risk.BlockThreshold)
	assert.Equal(t, 0.7, cfg.Anomaly.Threshold)
	assert.Equal(t, 30*time.Second, cfg.Policy.CacheTTL)
	assert.Equal(t, 4000, cfg.Prompt.MaxLength)
	assert.True(t, cfg.Prompt.Masking)
	assert.False(t, cfg.InsecureDevSecrets)
	assert.False(t, cfg.UsesRedis())
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, time.Local, cfg.Location())
}

func TestLoad_MissingMasterSecretFailsClosed(t *testing.T) {
	setRequired(t)
	t.Setenv("JATERM_MASTER_SECRET", "")

	_, err := Load()
	assert.ErrorIs(t, err, ErrMissingMasterSecret)
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	setRequired(t)
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.ErrorIs(t, err, ErrMissingJWTSecret)
}

func TestLoad_InsecureDevSecret(t *testing.T) {
	setRequired(t)
	t.Setenv("JATERM_MASTER_SECRET", "")
	t.Setenv("JATERM_ALLOW_INSECURE_DEV_SECRET", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, devMasterSecret, cfg.MasterSecret)
	assert.Equal(t, []byte("jwt"), cfg.JWTSecret)
	assert.True(t, cfg.InsecureDevSecrets)
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	setRequired(t)
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("DATABASE_DRIVER", "SQLite")
	t.Setenv("RATE_LIMIT_BACKEND", "redis")
	t.Setenv("RISK_WARN_THRESHOLD", "0.5")
	t.Setenv("RISK_RULES_FILE", "/etc/jaterm/rules.yaml")
	t.Setenv("AUDIT_ASYNC", "true")
	t.Setenv("POLICY_TIMEZONE", "UTC")
	t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")
	t.Setenv("PROMPT_MAX_LENGTH", "1200")
	t.Setenv("PROMPT_MASKING", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 0.5, cfg.Risk.WarnThreshold)
	assert.Equal(t, "/etc/jaterm/rules.yaml", cfg.Risk.RulesFile)
	assert.True(t, cfg.Audit.Async)
	assert.True(t, cfg.UsesRedis())
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, time.UTC, cfg.Location())
	assert.Equal(t, 1200, cfg.Prompt.MaxLength)
	assert.False(t, cfg.Prompt.Masking)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"driver", map[string]string{"DATABASE_DRIVER": "mysql"}},
		{"kdf", map[string]string{"JATERM_KDF": "md5"}},
		{"rate limit backend", map[string]string{"RATE_LIMIT_BACKEND": "memcached"}},
		{"thresholds", map[string]string{"RISK_WARN_THRESHOLD": "0.95"}},
		{"archive bucket", map[string]string{"AUDIT_ARCHIVE_ENABLED": "true"}},
		{"timezone", map[string]string{"POLICY_TIMEZONE": "Mars/Olympus"}},
		{"prompt max length", map[string]string{"PROMPT_MAX_LENGTH": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

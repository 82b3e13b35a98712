// Package config loads gateway settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"jaterm_gateway/internal/utils"
)

var (
	// ErrMissingMasterSecret is returned when JATERM_MASTER_SECRET is unset
	ErrMissingMasterSecret = errors.New("JATERM_MASTER_SECRET is required")

	// ErrMissingJWTSecret is returned when JWT_SECRET is unset
	ErrMissingJWTSecret = errors.New("JWT_SECRET is required")
)

// Fixed values used only with JATERM_ALLOW_INSECURE_DEV_SECRET=true
const (
	devMasterSecret = "jaterm-insecure-development-master-secret"
	devJWTSecret    = "jaterm-insecure-development-jwt-secret"
)

// Config holds configuration for the gateway.
type Config struct {
	HTTPPort        string
	ShutdownTimeout time.Duration
	LogLevel        utils.LogLevel

	// MasterSecret derives the credential encryption key
	MasterSecret string
	// KDF is "sha256" (default) or "hkdf"
	KDF string
	// JWTSecret verifies identity tokens issued by jaTerm
	JWTSecret []byte
	// InsecureDevSecrets is set when fixed development secrets are in use
	InsecureDevSecrets bool

	Database     DatabaseConfig
	Redis        RedisConfig
	Provider     ProviderConfig
	Policy       PolicyConfig
	Prompt       PromptConfig
	RateLimit    RateLimitConfig
	Risk         RiskConfig
	Anomaly      AnomalyConfig
	Audit        AuditConfig
	AuditArchive AuditArchiveConfig
	AccessLog    AccessLogConfig
	Metrics      MetricsConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // postgres or sqlite
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	QueryTimeout    time.Duration
}

// RedisConfig holds Redis connection settings. Redis is only dialled when a
// component is configured to use it.
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ProviderConfig holds provider-related settings
type ProviderConfig struct {
	RequestTimeout time.Duration // fallback when a provider has no timeout_ms
}

// PolicyConfig tunes the policy engine
type PolicyConfig struct {
	CacheTTL time.Duration
	// Timezone for time windows, an IANA name; empty means the server's local zone
	Timezone string
}

// PromptConfig holds the prompt gateway defaults; an active policy's
// prompt_max_length overrides MaxLength
type PromptConfig struct {
	MaxLength int
	Masking   bool
}

// RateLimitConfig selects the rate-limit counter backend
type RateLimitConfig struct {
	Backend string // memory or redis
}

// RiskConfig tunes the command risk analyzer
type RiskConfig struct {
	RulesFile      string
	WarnThreshold  float64
	BlockThreshold float64
}

// AnomalyConfig tunes the anomaly detector
type AnomalyConfig struct {
	Threshold float64
}

// AuditConfig selects how audit entries reach the database
type AuditConfig struct {
	// Async routes entries through a queue drained by the audit worker
	Async        bool
	UseRedis     bool
	BatchSize    int
	BatchTimeout time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// AuditArchiveConfig holds the optional S3 archive of audit batches
type AuditArchiveConfig struct {
	Enabled  bool
	Bucket   string
	Region   string
	Prefix   string
	PodName  string
	Endpoint string // S3-compatible endpoint such as MinIO; empty for AWS
}

// AccessLogConfig holds the rotated HTTP access log settings
type AccessLogConfig struct {
	Enabled          bool
	FilePathTemplate string
	MaxSize          int64
	MaxFiles         int
	BufferSize       int
	FlushInterval    time.Duration
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled   bool
	Namespace string
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvInt64(key string, defaultValue int64) int64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	intVal, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return defaultValue
	}
	return intVal
}

func getEnvFloat(key string, defaultValue float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func getEnvBool(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	logger := utils.NewLogger("config")
	insecureDev := getEnvBool("JATERM_ALLOW_INSECURE_DEV_SECRET", false)

	masterSecret := os.Getenv("JATERM_MASTER_SECRET")
	if masterSecret == "" {
		if !insecureDev {
			return nil, ErrMissingMasterSecret
		}
		logger.Warn("JATERM_MASTER_SECRET is unset, using the insecure development secret")
		masterSecret = devMasterSecret
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		if !insecureDev {
			return nil, ErrMissingJWTSecret
		}
		logger.Warn("JWT_SECRET is unset, using the insecure development secret")
		jwtSecret = devJWTSecret
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg := &Config{
		HTTPPort:           getEnvString("HTTP_PORT", "8080"),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		LogLevel:           utils.ParseLogLevel(getEnvString("LOG_LEVEL", "info")),
		MasterSecret:       masterSecret,
		KDF:                strings.ToLower(getEnvString("JATERM_KDF", "sha256")),
		JWTSecret:          []byte(jwtSecret),
		InsecureDevSecrets: insecureDev && (os.Getenv("JATERM_MASTER_SECRET") == "" || os.Getenv("JWT_SECRET") == ""),
		Database: DatabaseConfig{
			Driver:          strings.ToLower(getEnvString("DATABASE_DRIVER", "postgres")),
			URL:             dbURL,
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
			QueryTimeout:    getEnvDuration("DB_QUERY_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			Address:      getEnvString("REDIS_ADDRESS", "localhost:6379"),
			Password:     getEnvString("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Provider: ProviderConfig{
			RequestTimeout: getEnvDuration("PROVIDER_REQUEST_TIMEOUT", 60*time.Second),
		},
		Policy: PolicyConfig{
			CacheTTL: getEnvDuration("POLICY_CACHE_TTL", 30*time.Second),
			Timezone: getEnvString("POLICY_TIMEZONE", ""),
		},
		Prompt: PromptConfig{
			MaxLength: getEnvInt("PROMPT_MAX_LENGTH", 4000),
			Masking:   getEnvBool("PROMPT_MASKING", true),
		},
		RateLimit: RateLimitConfig{
			Backend: strings.ToLower(getEnvString("RATE_LIMIT_BACKEND", "memory")),
		},
		Risk: RiskConfig{
			RulesFile:      getEnvString("RISK_RULES_FILE", ""),
			WarnThreshold:  getEnvFloat("RISK_WARN_THRESHOLD", 0.6),
			BlockThreshold: getEnvFloat("RISK_BLOCK_THRESHOLD", 0.9),
		},
		Anomaly: AnomalyConfig{
			Threshold: getEnvFloat("ANOMALY_THRESHOLD", 0.7),
		},
		Audit: AuditConfig{
			Async:        getEnvBool("AUDIT_ASYNC", false),
			UseRedis:     getEnvBool("AUDIT_QUEUE_REDIS", false),
			BatchSize:    getEnvInt("AUDIT_BATCH_SIZE", 100),
			BatchTimeout: getEnvDuration("AUDIT_BATCH_TIMEOUT", 5*time.Second),
			MaxRetries:   getEnvInt("AUDIT_MAX_RETRIES", 3),
			RetryBackoff: getEnvDuration("AUDIT_RETRY_BACKOFF", time.Second),
		},
		AuditArchive: AuditArchiveConfig{
			Enabled:  getEnvBool("AUDIT_ARCHIVE_ENABLED", false),
			Bucket:   getEnvString("AUDIT_ARCHIVE_S3_BUCKET", ""),
			Region:   getEnvString("AUDIT_ARCHIVE_S3_REGION", "us-east-1"),
			Prefix:   getEnvString("AUDIT_ARCHIVE_S3_PREFIX", "audit/"),
			PodName:  getEnvString("POD_NAME", "gateway-0"),
			Endpoint: getEnvString("AUDIT_ARCHIVE_S3_ENDPOINT", ""),
		},
		AccessLog: AccessLogConfig{
			Enabled:          getEnvBool("ACCESS_LOG_ENABLED", false),
			FilePathTemplate: getEnvString("ACCESS_LOG_FILE_PATH_TEMPLATE", "/var/log/jaterm-gateway/access-%s.jsonl"),
			MaxSize:          getEnvInt64("ACCESS_LOG_MAX_SIZE", 10_485_760),
			MaxFiles:         getEnvInt("ACCESS_LOG_MAX_FILES", 5),
			BufferSize:       getEnvInt("ACCESS_LOG_BUFFER_SIZE", 1000),
			FlushInterval:    getEnvDuration("ACCESS_LOG_FLUSH_INTERVAL", 10*time.Second),
		},
		Metrics: MetricsConfig{
			Enabled:   getEnvBool("METRICS_ENABLED", true),
			Namespace: getEnvString("METRICS_NAMESPACE", "jaterm_gateway"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted silently
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "postgresql", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.Database.Driver)
	}
	switch c.KDF {
	case "sha256", "hkdf":
	default:
		return fmt.Errorf("unsupported JATERM_KDF %q", c.KDF)
	}
	switch c.RateLimit.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported RATE_LIMIT_BACKEND %q", c.RateLimit.Backend)
	}
	if c.Risk.WarnThreshold < 0 || c.Risk.BlockThreshold > 1 || c.Risk.WarnThreshold > c.Risk.BlockThreshold {
		return fmt.Errorf("risk thresholds must satisfy 0 <= warn <= block <= 1")
	}
	if c.Prompt.MaxLength <= 0 {
		return fmt.Errorf("PROMPT_MAX_LENGTH must be positive")
	}
	if c.AuditArchive.Enabled && c.AuditArchive.Bucket == "" {
		return fmt.Errorf("AUDIT_ARCHIVE_S3_BUCKET is required when the audit archive is enabled")
	}
	if c.Policy.Timezone != "" {
		if _, err := time.LoadLocation(c.Policy.Timezone); err != nil {
			return fmt.Errorf("invalid POLICY_TIMEZONE: %w", err)
		}
	}
	return nil
}

// UsesRedis reports whether any component needs the Redis client
func (c *Config) UsesRedis() bool {
	return c.RateLimit.Backend == "redis" || (c.Audit.Async && c.Audit.UseRedis)
}

// Location returns the zone policy time windows are evaluated in
func (c *Config) Location() *time.Location {
	if c.Policy.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Policy.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

// Supported database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func init() {
	// modernc registers as "sqlite", which sqlx does not know by name
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// DB wraps the database connection and provides health checks
type DB struct {
	conn         *sqlx.DB
	driver       string
	queryTimeout time.Duration
}

// DBConfig holds database configuration
type DBConfig struct {
	// Driver is "postgres" or "sqlite"
	Driver string

	// DSN is a postgres connection URL or a sqlite file path
	DSN string

	// Pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// QueryTimeout bounds every repository call
	QueryTimeout time.Duration

	// SkipMigrations leaves the schema untouched on connect
	SkipMigrations bool
}

// DefaultDBConfig returns default database configuration
func DefaultDBConfig() DBConfig {
	return DBConfig{
		Driver: DriverPostgres,
		DSN:    "postgres://postgres@localhost:5432/jaterm?sslmode=disable",

		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,

		QueryTimeout: 5 * time.Second,
	}
}

// NewDB opens the database, configures the pool and runs migrations
func NewDB(cfg DBConfig) (*DB, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	dsn := cfg.DSN

	switch driver {
	case DriverPostgres, "postgresql":
		driver = DriverPostgres
	case DriverSQLite, "sqlite3":
		driver = DriverSQLite
		dsn = sqliteDSN(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	conn, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == DriverSQLite {
		// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
		conn.SetMaxIdleConns(cfg.MaxIdleConns)
		conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		conn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	db := &DB{
		conn:         conn,
		driver:       driver,
		queryTimeout: cfg.QueryTimeout,
	}

	if !cfg.SkipMigrations {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := db.Migrate(ctx); err != nil {
			conn.Close()
			return nil, err
		}
	}

	return db, nil
}

func sqliteDSN(dsn string) string {
	if dsn == "" {
		dsn = "jaterm.db"
	}
	dsn = strings.TrimPrefix(dsn, "sqlite://")
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite"
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks if the database is reachable
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Health returns the health status of the database
func (db *DB) Health(ctx context.Context) error {
	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var result int
	if err := db.conn.GetContext(ctx, &result, "SELECT 1"); err != nil {
		return fmt.Errorf("health check query failed: %w", err)
	}

	return nil
}

// Dialect returns the normalised driver name
func (db *DB) Dialect() string {
	return db.driver
}

// Rebind converts ? placeholders to the driver's bind style
func (db *DB) Rebind(query string) string {
	return db.conn.Rebind(query)
}

// DayExpr returns an expression bucketing a timestamp column into YYYY-MM-DD.
// SQLite timestamps are stored as UTC text, so the first ten characters are the day.
func (db *DB) DayExpr(col string) string {
	if db.driver == DriverSQLite {
		return fmt.Sprintf("substr(%s, 1, 10)", col)
	}
	return fmt.Sprintf("to_char(%s AT TIME ZONE 'UTC', 'YYYY-MM-DD')", col)
}

// withTimeout applies the configured query timeout to ctx
func (db *DB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if db.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, db.queryTimeout)
}

// DBStats returns database statistics
type DBStats struct {
	Driver             string
	MaxOpenConnections int
	OpenConnections    int
	InUse              int
	Idle               int
	WaitCount          int64
	WaitDuration       time.Duration
}

// GetStats returns current pool statistics
func (db *DB) GetStats() DBStats {
	stats := db.conn.Stats()

	return DBStats{
		Driver:             db.driver,
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,
	}
}

// BeginTx starts a new transaction
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return db.conn.BeginTxx(ctx, opts)
}

// Conn returns the underlying sqlx connection
func (db *DB) Conn() *sqlx.DB {
	return db.conn
}

// Repository factory methods

func (db *DB) NewProviderRepository() *ProviderRepository {
	return NewProviderRepository(db)
}

func (db *DB) NewPolicyRepository() *PolicyRepository {
	return NewPolicyRepository(db)
}

func (db *DB) NewAuditRepository() *AuditRepository {
	return NewAuditRepository(db)
}

func (db *DB) NewProfileRepository() *ProfileRepository {
	return NewProfileRepository(db)
}

func (db *DB) NewTemplateRepository() *TemplateRepository {
	return NewTemplateRepository(db)
}

func (db *DB) NewAlertRepository() *AlertRepository {
	return NewAlertRepository(db)
}

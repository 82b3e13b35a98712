package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"jaterm_gateway/internal/models"
)

const auditColumns = `id, user_id, provider_id, model, feature, prompt_hash, prompt_length,
	response_tokens, duration_ms, status, error_message, ip_address, created_at`

// Grouping columns accepted by CountBy
const (
	AuditGroupStatus  = "status"
	AuditGroupFeature = "feature"
)

// AuditFilter narrows audit queries. Zero values are ignored.
type AuditFilter struct {
	UserID  string
	Feature models.Feature
	Status  models.AuditStatus
	From    *time.Time
	To      *time.Time
	Limit   int
	Offset  int
}

// DayCount is the number of entries recorded on one UTC day
type DayCount struct {
	Day   string `db:"day" json:"day"`
	Count int    `db:"count" json:"count"`
}

type groupCount struct {
	Key   string `db:"grp"`
	Count int    `db:"count"`
}

// AuditRepository is the append-only store of gateway invocations
type AuditRepository struct {
	db *DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func prepareAuditEntry(e *models.AuditEntry) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = e.CreatedAt.UTC()
}

func auditArgs(e *models.AuditEntry) []interface{} {
	return []interface{}{
		e.ID, e.UserID, e.ProviderID, e.Model, e.Feature, e.PromptHash, e.PromptLength,
		e.ResponseTokens, e.DurationMs, e.Status, e.ErrorMessage, e.IPAddress, e.CreatedAt,
	}
}

func (r *AuditRepository) insertQuery() string {
	return r.db.Rebind(`INSERT INTO ai_audit_logs (` + auditColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
}

// Create appends one entry
func (r *AuditRepository) Create(ctx context.Context, entry *models.AuditEntry) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	prepareAuditEntry(entry)
	if _, err := r.db.conn.ExecContext(ctx, r.insertQuery(), auditArgs(entry)...); err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}
	return nil
}

// CreateBatch appends entries in a single transaction; either all land or none
func (r *AuditRepository) CreateBatch(ctx context.Context, entries []*models.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}

	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tx, err := r.db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, r.insertQuery())
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		prepareAuditEntry(entry)
		if _, err := stmt.ExecContext(ctx, auditArgs(entry)...); err != nil {
			return fmt.Errorf("failed to insert audit entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (f AuditFilter) where() (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if f.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Feature != "" {
		clauses = append(clauses, "feature = ?")
		args = append(args, f.Feature)
	}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	if f.From != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		clauses = append(clauses, "created_at < ?")
		args = append(args, f.To.UTC())
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// Search returns matching entries, newest first. Limit defaults to 50.
func (r *AuditRepository) Search(ctx context.Context, filter AuditFilter) ([]*models.AuditEntry, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	where, args := filter.where()
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)

	query := r.db.Rebind(`SELECT ` + auditColumns + ` FROM ai_audit_logs` + where +
		` ORDER BY created_at DESC LIMIT ? OFFSET ?`)

	var entries []*models.AuditEntry
	if err := r.db.conn.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("failed to search audit log: %w", err)
	}
	return entries, nil
}

// Count returns the number of matching entries
func (r *AuditRepository) Count(ctx context.Context, filter AuditFilter) (int, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	where, args := filter.where()
	var total int
	if err := r.db.conn.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM ai_audit_logs`+where), args...); err != nil {
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}
	return total, nil
}

// CountBy groups matching entries by status or feature
func (r *AuditRepository) CountBy(ctx context.Context, filter AuditFilter, column string) (map[string]int, error) {
	if column != AuditGroupStatus && column != AuditGroupFeature {
		return nil, fmt.Errorf("unsupported audit grouping %q", column)
	}

	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	where, args := filter.where()
	query := r.db.Rebind(fmt.Sprintf(`SELECT %s AS grp, COUNT(*) AS count FROM ai_audit_logs%s GROUP BY %s`, column, where, column))

	var rows []groupCount
	if err := r.db.conn.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to group audit entries: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Key] = row.Count
	}
	return counts, nil
}

// CountByDay returns per-day totals since the given instant, oldest day first
func (r *AuditRepository) CountByDay(ctx context.Context, since time.Time) ([]DayCount, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	day := r.db.DayExpr("created_at")
	query := r.db.Rebind(fmt.Sprintf(`SELECT %s AS day, COUNT(*) AS count FROM ai_audit_logs
		WHERE created_at >= ? GROUP BY %s ORDER BY day`, day, day))

	var days []DayCount
	if err := r.db.conn.SelectContext(ctx, &days, query, since.UTC()); err != nil {
		return nil, fmt.Errorf("failed to count audit entries by day: %w", err)
	}
	return days, nil
}

// Package audit records one entry per gateway call and aggregates them for reporting.
package audit

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"jaterm_gateway/internal/models"
	"jaterm_gateway/internal/secrets"
	"jaterm_gateway/internal/storage"
	"jaterm_gateway/internal/utils"
)

// Call identifies the gateway invocation being audited. Prompt is hashed
// before anything is written.
type Call struct {
	UserID  string
	Feature models.Feature
	Prompt  string
	IP      string
}

// Reader is the query side of the audit repository
type Reader interface {
	Search(ctx context.Context, filter storage.AuditFilter) ([]*models.AuditEntry, error)
	Count(ctx context.Context, filter storage.AuditFilter) (int, error)
	CountBy(ctx context.Context, filter storage.AuditFilter, column string) (map[string]int, error)
	CountByDay(ctx context.Context, since time.Time) ([]storage.DayCount, error)
}

// Logger writes audit entries through a Sink and answers queries through a Reader
type Logger struct {
	sink   Sink
	reader Reader
	now    func() time.Time
	logger *utils.Logger
}

// Option configures a Logger
type Option func(*Logger)

// WithClock sets the time source for entry timestamps and dashboard windows
func WithClock(now func() time.Time) Option {
	return func(l *Logger) { l.now = now }
}

// NewLogger creates an audit logger. reader may be nil if stats are not served.
func NewLogger(sink Sink, reader Reader, opts ...Option) *Logger {
	l := &Logger{
		sink:   sink,
		reader: reader,
		now:    time.Now,
		logger: utils.NewLogger("audit"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LogSuccess records a completed provider call
func (l *Logger) LogSuccess(ctx context.Context, call Call, providerID, model string, responseTokens int, duration time.Duration) error {
	entry := l.newEntry(call, models.AuditStatusSuccess)
	entry.ProviderID = parseProviderID(providerID)
	entry.Model = optional(model)
	entry.ResponseTokens = responseTokens
	entry.DurationMs = duration.Milliseconds()
	return l.write(ctx, entry)
}

// LogFailure records a provider call that was attempted and failed
func (l *Logger) LogFailure(ctx context.Context, call Call, providerID, model, errMsg string, duration time.Duration) error {
	entry := l.newEntry(call, models.AuditStatusFailed)
	entry.ProviderID = parseProviderID(providerID)
	entry.Model = optional(model)
	entry.ErrorMessage = optional(errMsg)
	entry.DurationMs = duration.Milliseconds()
	return l.write(ctx, entry)
}

// LogBlocked records a call rejected before any provider was contacted
func (l *Logger) LogBlocked(ctx context.Context, call Call, reason string) error {
	entry := l.newEntry(call, models.AuditStatusBlocked)
	entry.ErrorMessage = optional(reason)
	return l.write(ctx, entry)
}

func (l *Logger) newEntry(call Call, status models.AuditStatus) *models.AuditEntry {
	return &models.AuditEntry{
		ID:           uuid.New(),
		UserID:       call.UserID,
		Feature:      call.Feature,
		PromptHash:   secrets.HashPrompt(call.Prompt),
		PromptLength: utf8.RuneCountInString(call.Prompt),
		Status:       status,
		IPAddress:    optional(call.IP),
		CreatedAt:    l.now().UTC(),
	}
}

func (l *Logger) write(ctx context.Context, entry *models.AuditEntry) error {
	if err := l.sink.Write(ctx, entry); err != nil {
		l.logger.Error("Failed to write audit entry", "id", entry.ID, "user", entry.UserID, "status", entry.Status, "error", err)
		return err
	}
	l.logger.Debug("Audit entry written", "id", entry.ID, "user", entry.UserID, "feature", entry.Feature, "status", entry.Status)
	return nil
}

func parseProviderID(id string) *uuid.UUID {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil
	}
	return &parsed
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jaterm_gateway/internal/models"
	"jaterm_gateway/internal/storage"
)

// ErrNoReader is returned by query methods on a write-only logger
var ErrNoReader = errors.New("audit logger has no reader configured")

// DefaultDashboardDays is the dashboard window when none is given
const DefaultDashboardDays = 7

// Stats are per-user totals
type Stats struct {
	Total     int            `json:"total"`
	ByStatus  map[string]int `json:"by_status"`
	ByFeature map[string]int `json:"by_feature"`
}

// DashboardStats are gateway-wide totals over a trailing window
type DashboardStats struct {
	Days      int                `json:"days"`
	Total     int                `json:"total"`
	ByStatus  map[string]int     `json:"by_status"`
	ByFeature map[string]int     `json:"by_feature"`
	ByDay     []storage.DayCount `json:"by_day"`
}

// UserStats aggregates a user's calls over an optional [from, to) range
func (l *Logger) UserStats(ctx context.Context, userID string, from, to *time.Time) (*Stats, error) {
	if l.reader == nil {
		return nil, ErrNoReader
	}

	filter := storage.AuditFilter{UserID: userID, From: from, To: to}
	byStatus, byFeature, err := l.grouped(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Total:     sum(byStatus),
		ByStatus:  byStatus,
		ByFeature: byFeature,
	}, nil
}

// Dashboard aggregates every call over the last days days, bucketed by UTC day
func (l *Logger) Dashboard(ctx context.Context, days int) (*DashboardStats, error) {
	if l.reader == nil {
		return nil, ErrNoReader
	}
	if days <= 0 {
		days = DefaultDashboardDays
	}

	now := l.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	since := today.AddDate(0, 0, -(days - 1))

	byStatus, byFeature, err := l.grouped(ctx, storage.AuditFilter{From: &since})
	if err != nil {
		return nil, err
	}
	byDay, err := l.reader.CountByDay(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily counts: %w", err)
	}

	return &DashboardStats{
		Days:      days,
		Total:     sum(byStatus),
		ByStatus:  byStatus,
		ByFeature: byFeature,
		ByDay:     byDay,
	}, nil
}

// Search returns matching entries, newest first
func (l *Logger) Search(ctx context.Context, filter storage.AuditFilter) ([]*models.AuditEntry, int, error) {
	if l.reader == nil {
		return nil, 0, ErrNoReader
	}
	entries, err := l.reader.Search(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := l.reader.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (l *Logger) grouped(ctx context.Context, filter storage.AuditFilter) (map[string]int, map[string]int, error) {
	byStatus, err := l.reader.CountBy(ctx, filter, storage.AuditGroupStatus)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to count by status: %w", err)
	}
	byFeature, err := l.reader.CountBy(ctx, filter, storage.AuditGroupFeature)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to count by feature: %w", err)
	}
	return byStatus, byFeature, nil
}

func sum(counts map[string]int) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}

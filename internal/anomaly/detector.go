// Package anomaly keeps per-user behaviour baselines and scores new sessions against them.
package anomaly

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"jaterm_gateway/internal/models"
	"jaterm_gateway/internal/utils"
)

const (
	// DefaultThreshold is the score at which a session counts as anomalous
	DefaultThreshold = 0.7

	// CriticalScore raises critical rather than high alerts
	CriticalScore = 0.8

	// emaWeight is the share of the previous average kept by each update
	emaWeight = 0.8

	hourDeviationLimit = 6.0
	unseenCommandLimit = 5

	hourWeight    = 0.3
	serverWeight  = 0.3
	commandWeight = 0.2
)

// ProfileStore persists behaviour profiles. A missing profile wraps models.ErrNotFound.
type ProfileStore interface {
	Get(ctx context.Context, userID string) (*models.BehaviorProfile, error)
	Upsert(ctx context.Context, profile *models.BehaviorProfile) error
}

// AlertSink stores raised alerts
type AlertSink interface {
	Create(ctx context.Context, alert *models.Alert) error
}

// Session is one completed or in-progress terminal session
type Session struct {
	Commands  []string      `json:"commands"`
	ServerID  string        `json:"server_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Result is the anomaly verdict for one session
type Result struct {
	Score     float64  `json:"score"`
	IsAnomaly bool     `json:"is_anomaly"`
	Reasons   []string `json:"reasons"`
}

// Detector scores sessions against stored profiles
type Detector struct {
	store     ProfileStore
	alerts    AlertSink
	threshold float64
	location  *time.Location
	now       func() time.Time
	logger    *utils.Logger

	// serializes read-modify-write of profiles
	updateMu sync.Mutex
}

// Option configures a Detector
type Option func(*Detector)

// WithThreshold sets the anomaly threshold
func WithThreshold(threshold float64) Option {
	return func(d *Detector) { d.threshold = threshold }
}

// WithLocation sets the zone access hours are taken in (default time.Local)
func WithLocation(loc *time.Location) Option {
	return func(d *Detector) { d.location = loc }
}

// WithClock sets the time source used for sessions without a start time
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

// NewDetector creates a detector. alerts may be nil when DetectAndAlert is not used.
func NewDetector(store ProfileStore, alerts AlertSink, opts ...Option) *Detector {
	d := &Detector{
		store:     store,
		alerts:    alerts,
		threshold: DefaultThreshold,
		location:  time.Local,
		now:       time.Now,
		logger:    utils.NewLogger("anomaly"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Threshold returns the configured anomaly threshold
func (d *Detector) Threshold() float64 {
	return d.threshold
}

func (d *Detector) load(ctx context.Context, userID string) (*models.BehaviorProfile, error) {
	p, err := d.store.Get(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load behavior profile: %w", err)
	}
	return p, nil
}

func (d *Detector) hour(s Session) int {
	started := s.StartedAt
	if started.IsZero() {
		started = d.now()
	}
	return started.In(d.location).Hour()
}

// UpdateProfile folds a session into the user's profile, creating it on first use
func (d *Detector) UpdateProfile(ctx context.Context, userID string, s Session) (*models.BehaviorProfile, error) {
	d.updateMu.Lock()
	defer d.updateMu.Unlock()

	p, err := d.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = &models.BehaviorProfile{UserID: userID}
	}

	seconds := s.Duration.Seconds()
	if p.SessionCount == 0 {
		p.AvgSessionDurationSec = seconds
	} else {
		p.AvgSessionDurationSec = emaWeight*p.AvgSessionDurationSec + (1-emaWeight)*seconds
	}

	for _, cmd := range s.Commands {
		p.CommandPrefixes = p.CommandPrefixes.Add(commandPrefix(cmd))
	}
	p.CommandPrefixes = p.CommandPrefixes.Last(models.MaxProfileCommands)

	p.Servers = p.Servers.Add(s.ServerID).Last(models.MaxProfileServers)
	p.AccessHours = append(p.AccessHours, d.hour(s)).Last(models.MaxProfileHours)
	p.SessionCount++

	if err := d.store.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save behavior profile: %w", err)
	}
	return p, nil
}

// DetectAnomalies scores s against the stored profile without modifying it
func (d *Detector) DetectAnomalies(ctx context.Context, userID string, s Session) (Result, error) {
	p, err := d.load(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	if p == nil {
		return Result{Reasons: []string{}}, nil
	}

	var score float64
	reasons := []string{}

	if len(p.AccessHours) > 0 {
		hour := d.hour(s)
		mean := p.AccessHours.Mean()
		if math.Abs(float64(hour)-mean) > hourDeviationLimit {
			score += hourWeight
			reasons = append(reasons, fmt.Sprintf("unusual access hour %02d:00 (typical around %02.0f:00)", hour, mean))
		}
	}

	if s.ServerID != "" && !p.Servers.Contains(s.ServerID) {
		score += serverWeight
		reasons = append(reasons, fmt.Sprintf("first access to server %s", s.ServerID))
	}

	unseenCount := 0
	unseen := models.StringSet{}
	for _, cmd := range s.Commands {
		if prefix := commandPrefix(cmd); prefix != "" && !p.CommandPrefixes.Contains(prefix) {
			unseenCount++
			unseen = unseen.Add(prefix)
		}
	}
	if unseenCount > unseenCommandLimit {
		score += commandWeight
		reasons = append(reasons, fmt.Sprintf("%d commands with never-seen prefixes: %s", unseenCount, strings.Join(unseen, ", ")))
	}

	score = math.Min(1, math.Round(score*1e9)/1e9)
	return Result{
		Score:     score,
		IsAnomaly: score >= d.threshold,
		Reasons:   reasons,
	}, nil
}

// DetectAndAlert scores s and raises an alert when it is anomalous
func (d *Detector) DetectAndAlert(ctx context.Context, userID string, s Session) (Result, error) {
	result, err := d.DetectAnomalies(ctx, userID, s)
	if err != nil || !result.IsAnomaly || d.alerts == nil {
		return result, err
	}

	severity := models.AlertSeverityHigh
	if result.Score >= CriticalScore {
		severity = models.AlertSeverityCritical
	}

	alert := &models.Alert{
		UserID:   userID,
		Kind:     models.AlertKindAnomaly,
		Severity: severity,
		Title:    "Anomalous session behaviour",
		Detail:   strings.Join(result.Reasons, "; "),
		Score:    result.Score,
	}
	if s.ServerID != "" {
		alert.ServerID = utils.StringPtr(s.ServerID)
	}
	if err := d.alerts.Create(ctx, alert); err != nil {
		d.logger.Error("Failed to store anomaly alert", "user", userID, "score", result.Score, "error", err)
		return result, fmt.Errorf("failed to store anomaly alert: %w", err)
	}

	d.logger.Warn("Anomaly alert raised", "user", userID, "severity", severity, "score", result.Score)
	return result, nil
}

func commandPrefix(cmd string) string {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

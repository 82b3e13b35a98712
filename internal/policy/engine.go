// Package policy decides whether a caller may use an AI feature right now.
package policy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jaterm_gateway/internal/models"
	"jaterm_gateway/internal/ratelimit"
	"jaterm_gateway/internal/storage"
	"jaterm_gateway/internal/utils"
)

const (
	// RateWindow is the length of one rate-limit window
	RateWindow = time.Hour

	// DefaultCacheTTL is how long the active policy is reused before reloading
	DefaultCacheTTL = 30 * time.Second

	activePolicyKey = "active"
)

// Source loads the active policy. No active policy is an error wrapping models.ErrNotFound.
type Source interface {
	GetActive(ctx context.Context) (*models.Policy, error)
}

// Decision is the outcome of CheckPermission
type Decision struct {
	Allowed bool
	Reason  string
	// Remaining is -1 when no rate limit applies
	Remaining int
	ResetAt   time.Time
	Policy    *models.Policy
}

// RiskDecision is the outcome of CheckRiskThreshold
type RiskDecision struct {
	Recommendation Recommendation
	// Blocked is set when the recommendation is block and auto-block is on
	Blocked bool
}

type cachedPolicy struct {
	policy *models.Policy
}

// Engine evaluates the active policy
type Engine struct {
	source   Source
	store    ratelimit.Store
	cache    *storage.LRUCache[cachedPolicy]
	now      func() time.Time
	location *time.Location
	logger   *utils.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithClock sets the time source for windows and rate limits
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithCacheTTL sets how long the active policy is cached
func WithCacheTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.cache = storage.NewLRUCache[cachedPolicy](1, ttl) }
}

// WithLocation sets the zone time windows are evaluated in (default time.Local)
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) { e.location = loc }
}

// NewEngine creates a policy engine
func NewEngine(source Source, store ratelimit.Store, opts ...Option) *Engine {
	e := &Engine{
		source:   source,
		store:    store,
		cache:    storage.NewLRUCache[cachedPolicy](1, DefaultCacheTTL),
		now:      time.Now,
		location: time.Local,
		logger:   utils.NewLogger("policy"),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.cache.WithClock(e.now)
	return e
}

// ActivePolicy returns the active policy, or nil when none is configured
func (e *Engine) ActivePolicy(ctx context.Context) (*models.Policy, error) {
	if cached, ok := e.cache.Get(activePolicyKey); ok {
		return cached.policy, nil
	}

	p, err := e.source.GetActive(ctx)
	if errors.Is(err, models.ErrNotFound) {
		p, err = nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load active policy: %w", err)
	}

	e.cache.Set(activePolicyKey, cachedPolicy{policy: p})
	return p, nil
}

// InvalidateCache forces the next call to reload the policy
func (e *Engine) InvalidateCache() {
	e.cache.Clear()
}

// CheckPermission evaluates role, feature, time window and rate limit in that
// order and stops at the first failure
func (e *Engine) CheckPermission(ctx context.Context, userID string, role models.Role, feature models.Feature) (Decision, error) {
	p, err := e.ActivePolicy(ctx)
	if err != nil {
		return Decision{}, err
	}
	if p == nil {
		return Decision{Allowed: true, Remaining: -1}, nil
	}

	deny := func(reason string) (Decision, error) {
		e.logger.Debug("Permission denied", "user", userID, "role", role, "feature", feature, "reason", reason)
		return Decision{Allowed: false, Reason: reason, Remaining: -1, Policy: p}, nil
	}

	if len(p.AllowedRoles) > 0 && !p.AllowedRoles.Contains(string(role)) {
		return deny(fmt.Sprintf("role %s is not allowed to use AI features", role))
	}

	if len(p.AllowedFeatures) > 0 && !p.AllowedFeatures.Contains(string(feature)) {
		return deny(fmt.Sprintf("feature %s is not enabled by policy", feature))
	}

	if p.TimeWindowStart != nil && p.TimeWindowEnd != nil {
		ok, err := inWindow(e.now().In(e.location), *p.TimeWindowStart, *p.TimeWindowEnd)
		if err != nil {
			// A broken window denies rather than silently lifting the restriction.
			e.logger.Warn("Active policy has a malformed time window", "policy", p.ID, "error", err)
			return deny("policy time window is misconfigured")
		}
		if !ok {
			return deny(fmt.Sprintf("AI features are only available between %s and %s", *p.TimeWindowStart, *p.TimeWindowEnd))
		}
	}

	decision := Decision{Allowed: true, Remaining: -1, Policy: p}
	if p.RateLimitPerHour > 0 {
		w, err := e.store.Get(ctx, userID)
		if err != nil {
			return Decision{}, fmt.Errorf("failed to read rate limit: %w", err)
		}
		if w.Count >= p.RateLimitPerHour {
			return Decision{
				Allowed:   false,
				Reason:    fmt.Sprintf("rate limit of %d requests per hour exceeded", p.RateLimitPerHour),
				Remaining: 0,
				ResetAt:   w.ResetAt,
				Policy:    p,
			}, nil
		}
		decision.Remaining = ratelimit.Remaining(w, p.RateLimitPerHour)
		decision.ResetAt = w.ResetAt
	}

	return decision, nil
}

// IncrementRateLimit counts one completed call for userID
func (e *Engine) IncrementRateLimit(ctx context.Context, userID string) (ratelimit.Window, error) {
	w, err := e.store.Increment(ctx, userID, RateWindow)
	if err != nil {
		return ratelimit.Window{}, fmt.Errorf("failed to increment rate limit: %w", err)
	}
	return w, nil
}

// CheckRiskThreshold applies the active policy's thresholds to a risk score
func (e *Engine) CheckRiskThreshold(ctx context.Context, score float64) (RiskDecision, error) {
	p, err := e.ActivePolicy(ctx)
	if err != nil {
		return RiskDecision{}, err
	}

	autoBlock := true
	if p != nil {
		autoBlock = p.AutoBlock
	}

	rec := Recommend(score, p.EffectiveRiskThreshold(), DefaultBlockThreshold)
	return RiskDecision{
		Recommendation: rec,
		Blocked:        rec == RecommendBlock && autoBlock,
	}, nil
}

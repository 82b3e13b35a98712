package policy

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"jaterm_gateway/internal/models"
)

// parseClock turns "HH:MM" into minutes after midnight
func parseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeWindow, s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeWindow, s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeWindow, s)
	}
	return h*60 + m, nil
}

// inWindow reports whether t falls in [start, end). A start after end wraps
// midnight; equal bounds cover the whole day.
func inWindow(t time.Time, start, end string) (bool, error) {
	from, err := parseClock(start)
	if err != nil {
		return false, err
	}
	to, err := parseClock(end)
	if err != nil {
		return false, err
	}

	cur := t.Hour()*60 + t.Minute()
	switch {
	case from == to:
		return true, nil
	case from < to:
		return cur >= from && cur < to, nil
	default:
		return cur >= from || cur < to, nil
	}
}

// ValidatePolicy rejects policies the engine could not evaluate.
// Both window bounds must be set together.
func ValidatePolicy(p *models.Policy) error {
	if (p.TimeWindowStart == nil) != (p.TimeWindowEnd == nil) {
		return fmt.Errorf("%w: both bounds are required", ErrInvalidTimeWindow)
	}
	if p.TimeWindowStart != nil {
		if _, err := parseClock(*p.TimeWindowStart); err != nil {
			return err
		}
		if _, err := parseClock(*p.TimeWindowEnd); err != nil {
			return err
		}
	}
	for _, role := range p.AllowedRoles {
		if !models.Role(role).IsValid() {
			return fmt.Errorf("invalid role %q", role)
		}
	}
	for _, feature := range p.AllowedFeatures {
		if !models.Feature(feature).IsValid() {
			return fmt.Errorf("invalid feature %q", feature)
		}
	}
	if p.RateLimitPerHour < 0 {
		return fmt.Errorf("rate_limit_per_hour must not be negative")
	}
	if p.RiskThreshold < 0 || p.RiskThreshold > 1 {
		return fmt.Errorf("risk_threshold must be within [0, 1]")
	}
	if p.PromptMaxLength < 0 {
		return fmt.Errorf("prompt_max_length must not be negative")
	}
	return nil
}

// Package risk scores terminal commands with weighted patterns and shell heuristics.
// No AI call is involved.
package risk

import (
	"context"
	"fmt"
	"math"
	"strings"

	"jaterm_gateway/internal/models"
	"jaterm_gateway/internal/policy"
	"jaterm_gateway/internal/utils"
)

// AlertSink stores raised alerts
type AlertSink interface {
	Create(ctx context.Context, alert *models.Alert) error
}

// Analysis is the local verdict on one command
type Analysis struct {
	Score          float64               `json:"score"`
	Categories     []string              `json:"categories"`
	Explanation    string                `json:"explanation"`
	Recommendation policy.Recommendation `json:"recommendation"`
}

// Analyzer evaluates commands. It is safe for concurrent use.
type Analyzer struct {
	rules          []Rule
	warnThreshold  float64
	blockThreshold float64
	alerts         AlertSink
	logger         *utils.Logger
}

// Option configures an Analyzer
type Option func(*Analyzer)

// WithThresholds overrides the warn and block thresholds
func WithThresholds(warn, block float64) Option {
	return func(a *Analyzer) {
		a.warnThreshold = warn
		a.blockThreshold = block
	}
}

// WithRules appends rules to the built-in table
func WithRules(rules ...Rule) Option {
	return func(a *Analyzer) { a.rules = append(a.rules, rules...) }
}

// NewAnalyzer creates an analyzer. alerts may be nil when AnalyzeAndAlert is not used.
func NewAnalyzer(alerts AlertSink, opts ...Option) *Analyzer {
	a := &Analyzer{
		rules:          BuiltinRules(),
		warnThreshold:  policy.DefaultWarnThreshold,
		blockThreshold: policy.DefaultBlockThreshold,
		alerts:         alerts,
		logger:         utils.NewLogger("risk"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze scores command. Empty input scores 0.
func (a *Analyzer) Analyze(command string) Analysis {
	text := strings.ToLower(strings.TrimSpace(command))

	var (
		score      float64
		categories []string
		seen       = map[string]string{}
	)
	add := func(category, description string, weight float64) {
		score += weight
		if _, ok := seen[category]; !ok {
			seen[category] = describe(category, description)
			categories = append(categories, category)
		}
	}

	for _, rule := range a.rules {
		if rule.Pattern.MatchString(text) {
			add(rule.Category, rule.Description, rule.Weight)
		}
	}

	if text != "" {
		facts, ok := parseShell(text)
		if !ok {
			facts = fallbackFacts(text)
		}
		for _, h := range heuristics {
			if h.match(facts) {
				add(h.category, "", h.weight)
			}
		}
	}

	score = clamp(score)
	explanation := "위험 패턴 없음 / no risky patterns detected"
	if len(categories) > 0 {
		parts := make([]string, 0, len(categories))
		for _, c := range categories {
			parts = append(parts, seen[c])
		}
		explanation = strings.Join(parts, "; ")
	}

	return Analysis{
		Score:          score,
		Categories:     categories,
		Explanation:    explanation,
		Recommendation: policy.Recommend(score, a.warnThreshold, a.blockThreshold),
	}
}

// AnalyzeAndAlert analyzes command and raises an alert on warn (high) or block (critical)
func (a *Analyzer) AnalyzeAndAlert(ctx context.Context, userID, command, serverID string) (Analysis, error) {
	analysis := a.Analyze(command)

	var severity models.AlertSeverity
	switch analysis.Recommendation {
	case policy.RecommendBlock:
		severity = models.AlertSeverityCritical
	case policy.RecommendWarn:
		severity = models.AlertSeverityHigh
	default:
		return analysis, nil
	}
	if a.alerts == nil {
		return analysis, nil
	}

	alert := &models.Alert{
		UserID:   userID,
		Kind:     models.AlertKindRisk,
		Severity: severity,
		Title:    fmt.Sprintf("Risky command (%s)", strings.Join(analysis.Categories, ", ")),
		Detail:   analysis.Explanation,
		Score:    analysis.Score,
		Command:  utils.StringPtr(command),
	}
	if serverID != "" {
		alert.ServerID = utils.StringPtr(serverID)
	}
	if err := a.alerts.Create(ctx, alert); err != nil {
		a.logger.Error("Failed to store risk alert", "user", userID, "score", analysis.Score, "error", err)
		return analysis, fmt.Errorf("failed to store risk alert: %w", err)
	}

	a.logger.Warn("Risk alert raised", "user", userID, "severity", severity, "score", analysis.Score)
	return analysis, nil
}

func clamp(score float64) float64 {
	// Round off float summation noise so 0.6+0.3 compares equal to 0.9.
	score = math.Round(score*1e9) / 1e9
	return math.Max(0, math.Min(1, score))
}

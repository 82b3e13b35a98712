// Package prompt validates user prompts and assembles the messages sent to a provider.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"jaterm_gateway/internal/models"
	"jaterm_gateway/internal/providers"
	"jaterm_gateway/internal/secrets"
	"jaterm_gateway/internal/utils"
)

// DefaultMaxLength is used when neither the gateway nor the caller sets a limit
const DefaultMaxLength = models.DefaultPromptMaxLength

var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?previous\s+instructions`),
	regexp.MustCompile(`(?i)you\s+are\s+now`),
	regexp.MustCompile(`(?i)forget\s+everything`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+)?(prior|previous)\s+instructions`),
	regexp.MustCompile(`(?i)system\s+prompt\s*:`),
}

// TemplateSource loads stored templates. Missing templates wrap models.ErrNotFound.
type TemplateSource interface {
	GetByName(ctx context.Context, name string) (*models.PromptTemplate, error)
	ListByFeature(ctx context.Context, feature models.Feature) ([]*models.PromptTemplate, error)
}

// ValidationResult is the outcome of ValidatePrompt
type ValidationResult struct {
	Valid     bool
	Reason    string
	Sanitized string
}

// Gateway validates prompts and builds provider messages
type Gateway struct {
	templates TemplateSource
	maxLength int
	masking   bool
	logger    *utils.Logger
}

// Option configures a Gateway
type Option func(*Gateway)

// WithMaxLength sets the default prompt length limit in characters
func WithMaxLength(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.maxLength = n
		}
	}
}

// WithMasking toggles masking of sensitive substrings in validated prompts
func WithMasking(enabled bool) Option {
	return func(g *Gateway) { g.masking = enabled }
}

// NewGateway creates a prompt gateway. templates may be nil when templates are not used.
func NewGateway(templates TemplateSource, opts ...Option) *Gateway {
	g := &Gateway{
		templates: templates,
		maxLength: DefaultMaxLength,
		masking:   true,
		logger:    utils.NewLogger("prompt-gateway"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ValidatePrompt rejects empty, oversized and injection-like prompts.
// maxLen <= 0 uses the gateway default.
func (g *Gateway) ValidatePrompt(prompt string, maxLen int) ValidationResult {
	if maxLen <= 0 {
		maxLen = g.maxLength
	}

	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return ValidationResult{Reason: "prompt is empty"}
	}

	if n := utf8.RuneCountInString(prompt); n > maxLen {
		return ValidationResult{Reason: fmt.Sprintf("prompt is too long (%d characters, maximum %d)", n, maxLen)}
	}

	for _, pattern := range injectionPatterns {
		if pattern.MatchString(prompt) {
			g.logger.Warn("Prompt rejected by injection filter", "pattern", pattern.String(), "hash", secrets.HashPrompt(prompt))
			return ValidationResult{Reason: "prompt contains a disallowed instruction pattern"}
		}
	}

	sanitized := trimmed
	if g.masking {
		sanitized = secrets.Mask(trimmed)
	}
	return ValidationResult{Valid: true, Sanitized: sanitized}
}

// BuildMessages assembles the system prompt, an optional context exchange and the user prompt
func BuildMessages(feature models.Feature, userPrompt string, sessionContext *string) []providers.Message {
	messages := []providers.Message{
		{Role: providers.RoleSystem, Content: SystemPrompt(feature)},
	}
	if sessionContext != nil && strings.TrimSpace(*sessionContext) != "" {
		messages = append(messages,
			providers.Message{Role: providers.RoleUser, Content: "Context: " + *sessionContext},
			providers.Message{Role: providers.RoleAssistant, Content: contextAck},
		)
	}
	return append(messages, providers.Message{Role: providers.RoleUser, Content: userPrompt})
}

// ApplyTemplate replaces each {{name}} with vars[name]. Unknown placeholders are left as is.
func ApplyTemplate(tpl string, vars map[string]string) string {
	if len(vars) == 0 {
		return tpl
	}
	pairs := make([]string, 0, len(vars)*2)
	for name, value := range vars {
		pairs = append(pairs, "{{"+name+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}

// ResolveTemplate returns the named template if it is active, belongs to feature and allows role
func (g *Gateway) ResolveTemplate(ctx context.Context, feature models.Feature, role models.Role, name string) (*models.PromptTemplate, error) {
	if g.templates == nil {
		return nil, ErrTemplateNotFound
	}

	tpl, err := g.templates.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to load template: %w", err)
	}
	if !tpl.IsActive {
		return nil, ErrTemplateNotFound
	}
	if tpl.Feature != feature {
		return nil, ErrTemplateFeatureMismatch
	}
	if !templateAllows(tpl, role) {
		return nil, ErrTemplateForbidden
	}
	return tpl, nil
}

// ListTemplates returns the active templates for feature that role may use
func (g *Gateway) ListTemplates(ctx context.Context, feature models.Feature, role models.Role) ([]*models.PromptTemplate, error) {
	if g.templates == nil {
		return nil, nil
	}
	all, err := g.templates.ListByFeature(ctx, feature)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	var out []*models.PromptTemplate
	for _, tpl := range all {
		if templateAllows(tpl, role) {
			out = append(out, tpl)
		}
	}
	return out, nil
}

func templateAllows(tpl *models.PromptTemplate, role models.Role) bool {
	return len(tpl.AllowedRoles) == 0 || tpl.AllowedRoles.Contains(string(role))
}

// Package terminalai runs the governed AI features behind the jaTerm terminal:
// policy check, prompt validation, provider call, rate accounting and audit.
package terminalai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"jaterm_gateway/internal/audit"
	"jaterm_gateway/internal/metrics"
	"jaterm_gateway/internal/models"
	"jaterm_gateway/internal/policy"
	"jaterm_gateway/internal/prompt"
	"jaterm_gateway/internal/providers"
	"jaterm_gateway/internal/ratelimit"
	"jaterm_gateway/internal/risk"
	"jaterm_gateway/internal/secrets"
	"jaterm_gateway/internal/utils"
)

// EnrichmentThreshold is the local risk score from which AnalyzeRisk asks the AI for more detail
const EnrichmentThreshold = 0.5

// PolicyChecker is the policy engine as seen by the service
type PolicyChecker interface {
	CheckPermission(ctx context.Context, userID string, role models.Role, feature models.Feature) (policy.Decision, error)
	IncrementRateLimit(ctx context.Context, userID string) (ratelimit.Window, error)
	CheckRiskThreshold(ctx context.Context, score float64) (policy.RiskDecision, error)
}

// ProviderResolver returns the adapter for id, or the default one when id is nil
type ProviderResolver interface {
	Resolve(ctx context.Context, id *uuid.UUID) (providers.Adapter, error)
}

// AuditRecorder writes exactly one entry per call
type AuditRecorder interface {
	LogSuccess(ctx context.Context, call audit.Call, providerID, model string, responseTokens int, duration time.Duration) error
	LogFailure(ctx context.Context, call audit.Call, providerID, model, errMsg string, duration time.Duration) error
	LogBlocked(ctx context.Context, call audit.Call, reason string) error
}

// RiskAnalyzer scores commands locally and raises alerts for risky ones
type RiskAnalyzer interface {
	AnalyzeAndAlert(ctx context.Context, userID, command, serverID string) (risk.Analysis, error)
}

// Deps are the collaborators of a Service
type Deps struct {
	Policy    PolicyChecker
	Prompts   *prompt.Gateway
	Providers ProviderResolver
	Audit     AuditRecorder
	Risk      RiskAnalyzer
	Metrics   metrics.Metrics
}

// Caller identifies who is asking
type Caller struct {
	UserID string
	Role   models.Role
	IP     string
}

// Options tune a single call
type Options struct {
	ProviderID *uuid.UUID
	Context    *string
	ServerID   string

	// Template names a stored prompt template; the user input is bound to {{input}}
	Template string
	Vars     map[string]string

	// OnChunk streams text deltas when the provider supports streaming
	OnChunk providers.ChunkHandler
}

// Service is the gateway orchestrator
type Service struct {
	deps   Deps
	now    func() time.Time
	logger *utils.Logger
}

// NewService creates the orchestrator
func NewService(deps Deps) *Service {
	if deps.Prompts == nil {
		deps.Prompts = prompt.NewGateway(nil)
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NoopMetrics{}
	}
	return &Service{
		deps:   deps,
		now:    time.Now,
		logger: utils.NewLogger("terminal-ai"),
	}
}

type completion struct {
	content string
	info    CallInfo
}

// complete runs the shared pipeline for one feature. A non-nil permitted
// decision is reused instead of evaluating the policy again.
func (s *Service) complete(ctx context.Context, feature models.Feature, caller Caller, userPrompt string, opts Options, permitted *policy.Decision) (*completion, *GatewayError) {
	start := s.now()
	call := audit.Call{UserID: caller.UserID, Feature: feature, Prompt: userPrompt, IP: caller.IP}
	finish := func(status models.AuditStatus) {
		s.deps.Metrics.ObserveGatewayCall(string(feature), string(status), s.now().Sub(start))
	}

	var decision policy.Decision
	var err error
	if permitted != nil {
		decision = *permitted
	} else {
		decision, err = s.deps.Policy.CheckPermission(ctx, caller.UserID, caller.Role, feature)
		if err != nil {
			s.logger.Error("Policy evaluation failed", "user", caller.UserID, "feature", feature, "error", err)
			decision = policy.Decision{Allowed: false, Reason: "policy could not be evaluated"}
		}
	}
	if !decision.Allowed {
		if err := s.deps.Audit.LogBlocked(ctx, call, decision.Reason); err != nil {
			s.logger.Error("Failed to audit blocked call", "user", caller.UserID, "error", err)
		}
		finish(models.AuditStatusBlocked)
		return nil, newError(KindPolicyDenied, decision.Reason, err)
	}

	text := userPrompt
	if opts.Template != "" {
		tpl, err := s.deps.Prompts.ResolveTemplate(ctx, feature, caller.Role, opts.Template)
		if err != nil {
			return nil, newError(KindValidationFailed, "prompt template unavailable", err)
		}
		vars := map[string]string{"input": userPrompt}
		for k, v := range opts.Vars {
			vars[k] = v
		}
		text = prompt.ApplyTemplate(tpl.Template, vars)
	}

	// zero falls back to the gateway's configured limit
	maxLen := 0
	if decision.Policy != nil {
		maxLen = decision.Policy.PromptMaxLength
	}
	validation := s.deps.Prompts.ValidatePrompt(text, maxLen)
	if !validation.Valid {
		return nil, newError(KindValidationFailed, validation.Reason, nil)
	}

	var sessionContext *string
	if opts.Context != nil {
		ctxValidation := s.deps.Prompts.ValidatePrompt(*opts.Context, maxLen)
		if !ctxValidation.Valid {
			return nil, newError(KindValidationFailed, "context: "+ctxValidation.Reason, nil)
		}
		sessionContext = &ctxValidation.Sanitized
	}

	messages := prompt.BuildMessages(feature, validation.Sanitized, sessionContext)

	adapter, err := s.deps.Providers.Resolve(ctx, opts.ProviderID)
	if err != nil {
		kind := KindProviderUnavailable
		if KindOf(err) == KindDecryptionFailure {
			kind = KindDecryptionFailure
		}
		if auditErr := s.deps.Audit.LogFailure(ctx, call, "", "", err.Error(), s.now().Sub(start)); auditErr != nil {
			s.logger.Error("Failed to audit provider resolution failure", "user", caller.UserID, "error", auditErr)
		}
		finish(models.AuditStatusFailed)
		return nil, newError(kind, "no AI provider available", err)
	}

	masking := decision.Policy != nil && decision.Policy.MaskSensitiveResults

	req := providers.CompletionRequest{Messages: messages}
	var resp *providers.CompletionResponse
	if opts.OnChunk != nil {
		onChunk := opts.OnChunk
		var masked *maskedStream
		if masking {
			masked = newMaskedStream(opts.OnChunk)
			onChunk = masked.write
		}
		resp, err = adapter.CompleteStream(ctx, req, onChunk)
		if err == nil && masked != nil {
			err = masked.flush()
		}
	} else {
		resp, err = adapter.Complete(ctx, req)
	}
	elapsed := s.now().Sub(start)

	kind := KindTransportFailure
	message := fmt.Sprintf("AI provider %q request failed", adapter.Name())
	if err == nil && resp.SkippedFrames > 0 {
		s.deps.Metrics.IncSkippedFrames(adapter.Name(), resp.SkippedFrames)
		s.logger.Warn("Provider stream had undecodable frames", "provider", adapter.Name(), "skipped", resp.SkippedFrames)
		if strings.TrimSpace(resp.Content) == "" {
			kind = KindParseFailure
			message = fmt.Sprintf("AI provider %q returned an unreadable response", adapter.Name())
			err = fmt.Errorf("no decodable frames in response (%d skipped)", resp.SkippedFrames)
		}
	}
	if err != nil {
		if auditErr := s.deps.Audit.LogFailure(ctx, call, adapter.ID(), req.Model, err.Error(), elapsed); auditErr != nil {
			s.logger.Error("Failed to audit provider failure", "user", caller.UserID, "error", auditErr)
		}
		finish(models.AuditStatusFailed)
		return nil, newError(kind, message, err)
	}

	if _, err := s.deps.Policy.IncrementRateLimit(ctx, caller.UserID); err != nil {
		s.logger.Warn("Failed to count call against rate limit", "user", caller.UserID, "error", err)
	}

	if err := s.deps.Audit.LogSuccess(ctx, call, adapter.ID(), resp.Model, resp.Usage.CompletionTokens, elapsed); err != nil {
		// The call is not returned unless it is on record.
		finish(models.AuditStatusFailed)
		return nil, newError(KindInternal, "audit log unavailable", err)
	}
	finish(models.AuditStatusSuccess)

	content := resp.Content
	if masking {
		content = secrets.Mask(content)
	}

	return &completion{
		content: content,
		info: CallInfo{
			Provider:   adapter.Name(),
			Model:      resp.Model,
			Tokens:     resp.Usage.TotalTokens,
			Incomplete: resp.SkippedFrames > 0,
		},
	}, nil
}

// ExplainCommand asks the provider what command does
func (s *Service) ExplainCommand(ctx context.Context, caller Caller, command string, opts Options) Result[ExplainResult] {
	c, gwErr := s.complete(ctx, models.FeatureExplain, caller, command, opts, nil)
	if gwErr != nil {
		return failure[ExplainResult](gwErr)
	}
	return success(ExplainResult{Explanation: c.content, CallInfo: c.info})
}

// GenerateCommand asks the provider for a command that does what description says
func (s *Service) GenerateCommand(ctx context.Context, caller Caller, description string, opts Options) Result[GenerateResult] {
	c, gwErr := s.complete(ctx, models.FeatureGenerate, caller, description, opts, nil)
	if gwErr != nil {
		return failure[GenerateResult](gwErr)
	}
	command, explanation := extractCommand(c.content)
	if command == "" {
		return failure[GenerateResult](newError(KindParseFailure, "AI provider returned no command", nil))
	}
	return success(GenerateResult{Command: command, Explanation: explanation, CallInfo: c.info})
}

// SummarizeSession asks the provider to summarize a session's commands
func (s *Service) SummarizeSession(ctx context.Context, caller Caller, commands []string, opts Options) Result[SummaryResult] {
	listing := formatCommands(commands)
	if listing == "" {
		return failure[SummaryResult](newError(KindValidationFailed, "no commands to summarize", nil))
	}

	c, gwErr := s.complete(ctx, models.FeatureSummarize, caller, listing, opts, nil)
	if gwErr != nil {
		return failure[SummaryResult](gwErr)
	}
	return success(SummaryResult{Summary: c.content, CommandCount: countCommands(commands), CallInfo: c.info})
}

// AnalyzeRisk always runs the local analyzer. When the score reaches
// EnrichmentThreshold and policy permits the analyze feature, the provider
// adds an explanation; enrichment failures never fail the call.
func (s *Service) AnalyzeRisk(ctx context.Context, caller Caller, command string, opts Options) Result[RiskResult] {
	local, err := s.deps.Risk.AnalyzeAndAlert(ctx, caller.UserID, command, opts.ServerID)
	if err != nil {
		s.logger.Error("Failed to raise risk alert", "user", caller.UserID, "error", err)
	}
	s.deps.Metrics.ObserveRiskScore(local.Score)

	result := RiskResult{Local: local}
	if verdict, err := s.deps.Policy.CheckRiskThreshold(ctx, local.Score); err != nil {
		s.logger.Warn("Risk threshold check failed, assuming block", "user", caller.UserID, "error", err)
		result.Blocked = local.Recommendation == policy.RecommendBlock
	} else {
		result.PolicyRecommendation = verdict.Recommendation
		result.Blocked = verdict.Blocked
	}

	if local.Score < EnrichmentThreshold {
		return success(result)
	}

	decision, err := s.deps.Policy.CheckPermission(ctx, caller.UserID, caller.Role, models.FeatureAnalyze)
	if err != nil || !decision.Allowed {
		result.EnrichmentError = "AI enrichment not permitted"
		if decision.Reason != "" {
			result.EnrichmentError += ": " + decision.Reason
		}
		return success(result)
	}

	c, gwErr := s.complete(ctx, models.FeatureAnalyze, caller, command, opts, &decision)
	if gwErr != nil {
		s.logger.Warn("AI enrichment failed, returning local analysis", "user", caller.UserID, "kind", gwErr.Kind, "error", gwErr)
		result.EnrichmentError = gwErr.Error()
		return success(result)
	}

	result.AIExplanation = &c.content
	result.Enriched = true
	info := c.info
	result.CallInfo = &info
	return success(result)
}

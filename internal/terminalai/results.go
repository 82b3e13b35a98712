package terminalai

import (
	"fmt"
	"strings"

	"jaterm_gateway/internal/policy"
	"jaterm_gateway/internal/risk"
)

// Result wraps every gateway outcome. Data is nil unless Success is set.
type Result[T any] struct {
	Success bool      `json:"success"`
	Data    *T        `json:"data,omitempty"`
	Error   string    `json:"error,omitempty"`
	Kind    ErrorKind `json:"error_kind,omitempty"`
}

func success[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: &data}
}

func failure[T any](err *GatewayError) Result[T] {
	return Result[T]{Error: err.Message, Kind: err.Kind}
}

// CallInfo describes the provider call behind a result
type CallInfo struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Tokens   int    `json:"tokens"`
	// Incomplete is set when part of a streamed response could not be decoded
	Incomplete bool `json:"incomplete,omitempty"`
}

type ExplainResult struct {
	Explanation string `json:"explanation"`
	CallInfo
}

type GenerateResult struct {
	Command     string `json:"command"`
	Explanation string `json:"explanation"`
	CallInfo
}

type SummaryResult struct {
	Summary      string `json:"summary"`
	CommandCount int    `json:"command_count"`
	CallInfo
}

// RiskResult always carries the local analysis. The AI fields are only set
// when enrichment ran.
type RiskResult struct {
	Local                risk.Analysis         `json:"local"`
	PolicyRecommendation policy.Recommendation `json:"policy_recommendation,omitempty"`
	Blocked              bool                  `json:"blocked"`
	AIExplanation        *string               `json:"ai_explanation,omitempty"`
	Enriched             bool                  `json:"enriched"`
	EnrichmentError      string                `json:"enrichment_error,omitempty"`
	CallInfo             *CallInfo             `json:"call,omitempty"`
}

var fenceLanguages = map[string]bool{
	"bash": true, "sh": true, "shell": true, "zsh": true, "fish": true,
	"console": true, "powershell": true, "ps1": true, "cmd": true, "text": true,
}

// extractCommand takes the first fenced code block as the command and the
// remaining text as its explanation. Without a fence the first non-empty line
// is the command.
func extractCommand(content string) (command, explanation string) {
	if start := strings.Index(content, "```"); start >= 0 {
		rest := content[start+3:]
		if end := strings.Index(rest, "```"); end >= 0 {
			block := rest[:end]
			// a lone word on the opening line is a language tag when code follows it
			if nl := strings.IndexByte(block, '\n'); nl >= 0 {
				tag := strings.TrimSpace(block[:nl])
				body := block[nl+1:]
				if !strings.ContainsAny(tag, " \t") && (strings.TrimSpace(body) != "" || fenceLanguages[strings.ToLower(tag)]) {
					block = body
				}
			}
			command = strings.TrimSpace(block)
			explanation = strings.TrimSpace(content[:start] + rest[end+3:])
			return command, explanation
		}
	}

	lines := strings.Split(strings.TrimSpace(content), "\n")
	for i, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			command = strings.Trim(line, "`$ ")
			explanation = strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
			return command, explanation
		}
	}
	return "", ""
}

// formatCommands renders a numbered listing, skipping blank commands
func formatCommands(commands []string) string {
	var b strings.Builder
	n := 0
	for _, c := range commands {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		n++
		fmt.Fprintf(&b, "%d. %s\n", n, c)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func countCommands(commands []string) int {
	n := 0
	for _, c := range commands {
		if strings.TrimSpace(c) != "" {
			n++
		}
	}
	return n
}

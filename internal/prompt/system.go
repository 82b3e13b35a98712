package prompt

import "jaterm_gateway/internal/models"

const contextAck = "Understood. I will take this context into account."

var systemPrompts = map[models.Feature]string{
	models.FeatureExplain: `You are a terminal assistant for Linux system operators.
Explain what the given shell command does, step by step.
Describe every flag and argument, mention side effects and point out anything destructive or irreversible.
Answer concisely. Do not suggest running commands that were not asked about.`,

	models.FeatureGenerate: `You are a terminal assistant that writes shell commands.
Produce a single command that accomplishes the user's request on a typical Linux host.
Put the command in one fenced code block, followed by a short explanation.
Prefer safe, non-destructive options. Never include credentials in the command.`,

	models.FeatureAnalyze: `You are a security reviewer for shell commands.
Assess the security risk of the given command: what it can damage, what it can leak and how it could be abused.
State a risk level (low, medium, high, critical) and suggest a safer alternative when one exists.`,

	models.FeatureSummarize: `You are a terminal session auditor.
Summarize the given sequence of shell commands: the overall goal, the systems touched and any risky or unusual actions.
Keep the summary short and factual.`,
}

// SystemPrompt returns the fixed instruction block for feature.
// Unknown features fall back to the explain prompt.
func SystemPrompt(feature models.Feature) string {
	if p, ok := systemPrompts[feature]; ok {
		return p
	}
	return systemPrompts[models.FeatureExplain]
}

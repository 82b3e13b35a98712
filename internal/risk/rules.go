package risk

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Categories
const (
	CategoryDestructive    = "destructive"
	CategorySystem         = "system"
	CategoryPermission     = "permission"
	CategoryPrivilege      = "privilege"
	CategoryCredential     = "credential"
	CategoryNetwork        = "network"
	CategoryRemoteExec     = "remote_exec"
	CategoryObfuscation    = "obfuscation"
	CategoryForkBomb       = "fork_bomb"
	CategoryPipeline       = "pipeline"
	CategoryRedirect       = "redirect"
	CategoryHistoryEvasion = "history_evasion"
	CategoryEnvironment    = "environment"
	CategoryPersistence    = "persistence"
)

// Rule is one weighted pattern, matched against the lower-cased command
type Rule struct {
	Pattern     *regexp.Regexp
	Weight      float64
	Category    string
	Description string
}

var categoryDescriptions = map[string]string{
	CategoryDestructive:    "파일시스템 파괴 위험 / destructive filesystem operation",
	CategorySystem:         "시스템 전원 상태 변경 / system power state change",
	CategoryPermission:     "과도한 권한 부여 / overly permissive file mode",
	CategoryPrivilege:      "권한 상승 / privilege escalation",
	CategoryCredential:     "자격 증명 파일 접근 / credential file access",
	CategoryNetwork:        "방화벽 규칙 변경 / firewall rule change",
	CategoryRemoteExec:     "원격 스크립트 실행 / remote code execution via pipe",
	CategoryObfuscation:    "난독화된 명령 / obfuscated command",
	CategoryForkBomb:       "포크 폭탄 / fork bomb",
	CategoryPipeline:       "과도한 파이프 연결 / long pipeline",
	CategoryRedirect:       "장치 또는 시스템 설정 덮어쓰기 / redirect into /dev or /etc",
	CategoryHistoryEvasion: "명령 기록 회피 / shell history suppression",
	CategoryEnvironment:    "환경 변수 변경 / environment export",
	CategoryPersistence:    "예약 작업 변경 / crontab change",
}

func describe(category, fallback string) string {
	if d, ok := categoryDescriptions[category]; ok {
		return d
	}
	if fallback != "" {
		return fallback
	}
	return category
}

var builtinRules = []Rule{
	{regexp.MustCompile(`\brm\s+-[a-z]*(rf|fr)[a-z]*\b`), 0.7, CategoryDestructive, ""},
	{regexp.MustCompile(`\brm\s+-[a-z]*(rf|fr)[a-z]*\s+(/|/\*)(\s|;|&|\||$)`), 0.3, CategoryDestructive, ""},
	{regexp.MustCompile(`\bmkfs(\.[a-z0-9]+)?\b`), 0.9, CategoryDestructive, ""},
	{regexp.MustCompile(`\bdd\b.*\bof=/dev/`), 0.9, CategoryDestructive, ""},
	{regexp.MustCompile(`\b(shutdown|reboot|halt|poweroff)\b`), 0.7, CategorySystem, ""},
	{regexp.MustCompile(`\binit\s+[06]\b`), 0.7, CategorySystem, ""},
	{regexp.MustCompile(`\bchmod\s+(-[a-z]+\s+)*0?777\b`), 0.5, CategoryPermission, ""},
	{regexp.MustCompile(`\bsudo\s+(su|-i|-s)\b`), 0.6, CategoryPrivilege, ""},
	{regexp.MustCompile(`(^|[;&|]\s*)su\s+-(\s|$)`), 0.5, CategoryPrivilege, ""},
	{regexp.MustCompile(`/etc/shadow\b`), 0.7, CategoryCredential, ""},
	{regexp.MustCompile(`/etc/passwd\b`), 0.4, CategoryCredential, ""},
	{regexp.MustCompile(`(~|\$home)?/\.ssh\b`), 0.5, CategoryCredential, ""},
	{regexp.MustCompile(`\bid_(rsa|dsa|ecdsa|ed25519)\b`), 0.6, CategoryCredential, ""},
	{regexp.MustCompile(`\biptables\s+(-f|--flush)\b`), 0.6, CategoryNetwork, ""},
	{regexp.MustCompile(`\bufw\s+disable\b`), 0.6, CategoryNetwork, ""},
	{regexp.MustCompile(`\b(curl|wget)\b[^|]*\|\s*(sudo\s+)?(ba|z)?sh\b`), 0.8, CategoryRemoteExec, ""},
	{regexp.MustCompile(`\bbase64\s+(-d|--decode)\b[^|]*\|\s*(ba|z)?sh\b`), 0.7, CategoryObfuscation, ""},
	{regexp.MustCompile(`\beval\b`), 0.4, CategoryObfuscation, ""},
	{regexp.MustCompile(`\\x[0-9a-f]{2}`), 0.3, CategoryObfuscation, ""},
	{regexp.MustCompile(`:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`), 1.0, CategoryForkBomb, ""},
}

// BuiltinRules returns a copy of the built-in rule table
func BuiltinRules() []Rule {
	out := make([]Rule, len(builtinRules))
	copy(out, builtinRules)
	return out
}

type rulesFile struct {
	Rules []struct {
		Pattern     string  `yaml:"pattern"`
		Weight      float64 `yaml:"weight"`
		Category    string  `yaml:"category"`
		Description string  `yaml:"description"`
	} `yaml:"rules"`
}

// LoadRules reads a YAML rules pack:
//
//	rules:
//	  - pattern: '\bterraform\s+destroy\b'
//	    weight: 0.6
//	    category: destructive
//	    description: infrastructure teardown
//
// Patterns are matched against the lower-cased command.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes a YAML rules pack
func ParseRules(data []byte) ([]Rule, error) {
	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}

	rules := make([]Rule, 0, len(file.Rules))
	for i, r := range file.Rules {
		if r.Pattern == "" || r.Category == "" {
			return nil, fmt.Errorf("rule %d: pattern and category are required", i)
		}
		if r.Weight < 0 || r.Weight > 1 {
			return nil, fmt.Errorf("rule %d: weight %v outside [0,1]", i, r.Weight)
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %d: invalid pattern: %w", i, err)
		}
		rules = append(rules, Rule{Pattern: re, Weight: r.Weight, Category: r.Category, Description: r.Description})
	}
	return rules, nil
}

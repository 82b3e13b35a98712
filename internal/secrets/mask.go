package secrets

import "regexp"

// MaskPlaceholder replaces every sensitive substring found by Mask.
const MaskPlaceholder = "[MASKED]"

// Order matters: PEM blocks are removed before the line-oriented patterns
// so a key body cannot be partially matched as a credential pair. Every
// pattern but the PEM one stays within a single line.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)-----BEGIN [A-Z ]*PRIVATE KEY-----.*?-----END [A-Z ]*PRIVATE KEY-----`),
	regexp.MustCompile(`(?i)\b(password|passwd|pwd|secret|token|api[_-]?key|access[_-]?key|private[_-]?key|client[_-]?secret)[ \t]*[=:][ \t]*['"]?[^\s'"]+['"]?`),
	regexp.MustCompile(`(?i)bearer[ \t]+[A-Za-z0-9._~+/-]{16,}=*`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`),
	regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4][0-9]|1[0-9]{2}|[1-9]?[0-9])\.){3}(?:25[0-5]|2[0-4][0-9]|1[0-9]{2}|[1-9]?[0-9])\b`),
}

// Mask replaces credential pairs, IPv4 addresses, email addresses and PEM
// private keys with MaskPlaceholder. Best effort only.
func Mask(text string) string {
	result := text
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllString(result, MaskPlaceholder)
	}
	return result
}

// ContainsSensitive reports whether Mask would change text.
func ContainsSensitive(text string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}

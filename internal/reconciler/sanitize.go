package reconciler

import "regexp"

var sanitizeRules = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9\-._~+/]+=*`), "${1}[REDACTED]"},
	{regexp.MustCompile(`(?i)\b(password|passwd|secret|token|apikey|api_key)=\S+`), "${1}=[REDACTED]"},
	{regexp.MustCompile(`[A-Za-z0-9+/]{40,}={0,2}`), "[REDACTED]"},
	// Keep only the last element of absolute paths.
	{regexp.MustCompile(`(?:/[^/\s"']+)+/([^/\s"']+)`), ".../${1}"},
}

// SanitizeErrorMessage removes credentials and filesystem layout from an
// error message before it is stored in status or logged at a user-facing
// level.
func SanitizeErrorMessage(msg string) string {
	for _, rule := range sanitizeRules {
		msg = rule.pattern.ReplaceAllString(msg, rule.replacement)
	}
	return msg
}

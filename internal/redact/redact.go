// Package redact scrubs credentials and infrastructure details from strings
// before they reach logs or failure reasons stored alongside jobs. Upstream
// errors from the database driver and the image model API can echo
// connection strings, keys, and SQL back to the caller.
package redact

import "regexp"

// Placeholders substituted for redacted fragments.
const (
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
	RedactedSQLPlaceholder        = "[REDACTED_SQL]"
)

type rule struct {
	pattern     *regexp.Regexp
	placeholder string
}

// Order matters: connection strings must be handled before the generic
// key=value and path rules see their fragments.
var rules = []rule{
	{
		regexp.MustCompile(`(?i)\b(postgres|postgresql|mysql|redis|amqp)://[^\s@/]+@`),
		RedactedCredentialPlaceholder + "@",
	},
	{
		regexp.MustCompile(`(?i)(password|passwd|pwd)([=:\s]+['"]?)[^'"&\s]{3,}`),
		"${1}${2}" + RedactedCredentialPlaceholder,
	},
	{
		// Google API keys, including the Gemini developer keys.
		regexp.MustCompile(`AIza[0-9A-Za-z_\-]{20,}`),
		RedactedKeyPlaceholder,
	},
	{
		regexp.MustCompile(`(?i)(api[_-]?key|token|secret)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`),
		"${1}${2}" + RedactedKeyPlaceholder,
	},
	{
		regexp.MustCompile(
			`(?i)\b(SELECT|INSERT|UPDATE|DELETE)\b[\s\w,*()=$.'"]+\b(FROM|INTO|SET)\b[\s\w,*()=$.'"]*`,
		),
		RedactedSQLPlaceholder,
	},
	{
		regexp.MustCompile(`(?:/[\w.-]+){3,}`),
		RedactedPathPlaceholder,
	},
}

// String redacts sensitive information from the input string.
func String(input string) string {
	if input == "" {
		return input
	}
	result := input
	for _, r := range rules {
		result = r.pattern.ReplaceAllString(result, r.placeholder)
	}
	return result
}

// Error redacts sensitive information from an error's Error() output.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}

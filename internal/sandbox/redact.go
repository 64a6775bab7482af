// SPDX-License-Identifier: AGPL-3.0-or-later

package sandbox

import "regexp"

// RedactedMarker replaces every secret-shaped match.
const RedactedMarker = "[REDACTED]"

// SecretPattern is a named expression for secret-shaped text.
type SecretPattern struct {
	Name    string
	Pattern *regexp.Regexp
}

// DefaultSecretPatterns returns the patterns applied to captured output.
// They catch accidental disclosure in logs; they are not a security boundary.
func DefaultSecretPatterns() []SecretPattern {
	return []SecretPattern{
		{
			// API_KEY=..., github_token: ..., PGPASSWORD=..., accessToken: ...
			// The keyword may sit anywhere inside the name.
			Name:    "assignment",
			Pattern: regexp.MustCompile(`(?i)[a-z0-9_.-]*(?:api[_-]?key|token|secret|password|credential|auth)s?\s*[=:]\s*\S+`),
		},
		{
			// SSH_KEY=..., key: ... but not monkey: ...
			Name:    "key_assignment",
			Pattern: regexp.MustCompile(`(?i)\b(?:[a-z0-9]+[_.-])*keys?\s*[=:]\s*\S+`),
		},
		{
			Name:    "uuid",
			Pattern: regexp.MustCompile(`[A-Fa-f0-9]{8}-[A-Fa-f0-9]{4}-[A-Fa-f0-9]{4}-[A-Fa-f0-9]{4}-[A-Fa-f0-9]{12}`),
		},
		{
			Name:    "api_key_prefix",
			Pattern: regexp.MustCompile(`\b(?:sk-|pk-|ghp_|gho_|github_pat_)\S+`),
		},
	}
}

// Redactor masks secret-shaped substrings.
type Redactor struct {
	patterns []SecretPattern
}

// NewRedactor builds a Redactor. With no patterns it uses DefaultSecretPatterns.
func NewRedactor(patterns ...SecretPattern) *Redactor {
	if len(patterns) == 0 {
		patterns = DefaultSecretPatterns()
	}
	return &Redactor{patterns: patterns}
}

// Redact applies every pattern in order. A nil Redactor uses the defaults.
func (r *Redactor) Redact(text string) string {
	if r == nil {
		return defaultRedactor.Redact(text)
	}
	for _, p := range r.patterns {
		text = p.Pattern.ReplaceAllString(text, RedactedMarker)
	}
	return text
}

var defaultRedactor = NewRedactor()

// Redact masks text with the default patterns.
func Redact(text string) string {
	return defaultRedactor.Redact(text)
}

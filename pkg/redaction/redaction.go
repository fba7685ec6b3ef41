// Package redaction scrubs secret-shaped strings and structured fields.
// RedactString rewrites key/value and Bearer-token patterns; RedactMap
// replaces the values of fields whose names contain a blocked pattern.
// No other package in this module calls these helpers: RuntimeError
// details and log fields are not passed through a Redactor automatically.
package redaction

import (
	"regexp"
	"strings"
)

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|apikey)["']?\s*[:=]\s*["']?([^"'\s,}]+)["']?`),
	regexp.MustCompile(`(?i)(secret|token|auth)["']?\s*[:=]\s*["']?([^"'\s,}]+)["']?`),
	regexp.MustCompile(`(?i)(Bearer)\s+([a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+)`),
	regexp.MustCompile(`(?i)(password)["']?\s*[:=]\s*["']?([^"'\s,}]+)["']?`),
	regexp.MustCompile(`(?i)(private[_-]?key|privkey)["']?\s*[:=]\s*["']?([^"'\s,}]+)["']?`),
	regexp.MustCompile(`(?i)(nonce|ciphertext|tag)["']?\s*[:=]\s*["']?([^"'\s,}]+)["']?`),
}

// Config controls redaction behavior.
type Config struct {
	Enabled         bool
	RedactionText   string
	BlockedPatterns []string
}

func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		RedactionText: "***REDACTED***",
		BlockedPatterns: []string{
			"password", "secret", "token", "apikey", "private_key",
			"credential", "nonce", "ciphertext",
		},
	}
}

// Redactor scrubs strings and maps according to a Config.
type Redactor struct {
	config Config
}

func NewRedactor(cfg Config) *Redactor {
	if cfg.RedactionText == "" {
		cfg.RedactionText = "***REDACTED***"
	}
	return &Redactor{config: cfg}
}

func (r *Redactor) RedactString(s string) string {
	if !r.config.Enabled {
		return s
	}
	result := s
	for _, pattern := range secretPatterns {
		result = pattern.ReplaceAllString(result, "${1}: "+r.config.RedactionText)
	}
	return result
}

func (r *Redactor) RedactMap(m map[string]interface{}) map[string]interface{} {
	if !r.config.Enabled {
		return m
	}
	result := make(map[string]interface{}, len(m))
	for k, v := range m {
		switch {
		case r.isSecretField(k):
			result[k] = r.config.RedactionText
		case v == nil:
			result[k] = v
		default:
			switch val := v.(type) {
			case string:
				result[k] = r.RedactString(val)
			case map[string]interface{}:
				result[k] = r.RedactMap(val)
			default:
				result[k] = v
			}
		}
	}
	return result
}

func (r *Redactor) isSecretField(fieldName string) bool {
	lowerName := strings.ToLower(fieldName)
	for _, blocked := range r.config.BlockedPatterns {
		if strings.Contains(lowerName, strings.ToLower(blocked)) {
			return true
		}
	}
	return false
}

// RedactAll applies the default Redactor to a string.
func RedactAll(s string) string {
	return NewRedactor(DefaultConfig()).RedactString(s)
}

// RedactDetails applies the default Redactor to a RuntimeError.Details-shaped
// map.
func RedactDetails(m map[string]interface{}) map[string]interface{} {
	return NewRedactor(DefaultConfig()).RedactMap(m)
}

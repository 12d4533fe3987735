// Package classifier maps raw ingestion errors onto a small, deterministic
// taxonomy so the scheduler can decide whether to retry.
package classifier

import "strings"

// Error categories.
const (
	CategoryTransient = "transient"
	CategoryPermanent = "permanent"
	CategorySystem    = "system"
)

// transientIndicators are checked first: precedence matters, a message
// containing both a transient and a permanent indicator classifies as
// transient.
var transientIndicators = []string{
	"rate limit", "429", "too many requests", "timeout", "timed out", "408",
	"connection", "network", "econnrefused", "econnreset", "temporary",
	"retry", "502", "503", "504", "socket", "ssl", "certificate",
}

var permanentIndicators = []string{
	"validation", "invalid", "400", "not found", "404", "unauthorized", "401",
	"forbidden", "403", "conflict", "409", "symbol", "asset", "format",
	"malformed", "unsupported",
}

var systemIndicators = []string{
	"database", "postgres", "sql", "connection pool", "memory", "disk",
	"ioerror", "oserror", "internal server error", "500",
}

// recoverySuggestions gives a short operator-facing hint per category.
var recoverySuggestions = map[string]string{
	CategoryTransient: "Transient failure; the scheduler will retry automatically with backoff.",
	CategoryPermanent: "Permanent failure; check the job's symbol and parameters, then trigger manually if corrected.",
	CategorySystem:    "Infrastructure failure; check database and system health. No automatic retry is scheduled.",
}

// Classify maps an error (and optional explicit message) to a category and
// a recovery suggestion. Matching is case-insensitive substring matching
// over message, or over err.Error() when message is empty; unmatched
// errors default to transient,
// since retrying is the safer default.
func Classify(err error, message string) (category string, recoverySuggestion string) {
	text := message
	if text == "" && err != nil {
		text = err.Error()
	}
	text = strings.ToLower(text)

	switch {
	case containsAny(text, transientIndicators):
		category = CategoryTransient
	case containsAny(text, permanentIndicators):
		category = CategoryPermanent
	case containsAny(text, systemIndicators):
		category = CategorySystem
	default:
		category = CategoryTransient
	}

	return category, recoverySuggestions[category]
}

func containsAny(text string, indicators []string) bool {
	for _, ind := range indicators {
		if strings.Contains(text, ind) {
			return true
		}
	}
	return false
}

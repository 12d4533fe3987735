package classifier_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marketpulse/scheduler/internal/classifier"
)

func TestClassify_Transient(t *testing.T) {
	cases := []string{
		"HTTP 429 rate limit exceeded",
		"connection timed out after 30s",
		"502 Bad Gateway",
		"socket hang up",
	}
	for _, msg := range cases {
		category, suggestion := classifier.Classify(nil, msg)
		assert.Equal(t, classifier.CategoryTransient, category, msg)
		assert.NotEmpty(t, suggestion)
	}
}

func TestClassify_Permanent(t *testing.T) {
	cases := []string{
		"400 invalid symbol",
		"404 not found",
		"unauthorized access",
	}
	for _, msg := range cases {
		category, _ := classifier.Classify(nil, msg)
		assert.Equal(t, classifier.CategoryPermanent, category, msg)
	}
}

func TestClassify_System(t *testing.T) {
	cases := []string{
		"database deadlock detected",
		"internal server error",
		"out of disk space",
	}
	for _, msg := range cases {
		category, _ := classifier.Classify(nil, msg)
		assert.Equal(t, classifier.CategorySystem, category, msg)
	}
}

func TestClassify_DefaultsToTransient(t *testing.T) {
	category, _ := classifier.Classify(errors.New("something unexpected happened"), "")
	assert.Equal(t, classifier.CategoryTransient, category)
}

func TestClassify_PrecedenceTransientWinsOverPermanent(t *testing.T) {
	// Contains both "rate limit" (transient) and "invalid symbol" (permanent).
	category, _ := classifier.Classify(nil, "rate limit exceeded for invalid symbol request")
	assert.Equal(t, classifier.CategoryTransient, category)
}

func TestClassify_UsesErrorWhenMessageEmpty(t *testing.T) {
	category, _ := classifier.Classify(errors.New("429 too many requests"), "")
	assert.Equal(t, classifier.CategoryTransient, category)
}

func TestClassify_CaseInsensitive(t *testing.T) {
	category, _ := classifier.Classify(nil, "RATE LIMIT EXCEEDED")
	assert.Equal(t, classifier.CategoryTransient, category)
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"agenthub/internal/domain"
)

func TestIsQuotaError(t *testing.T) {
	c := NewErrorClassifier()
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"openai quota message", errors.New("You exceeded your current quota, please check your plan"), true},
		{"insufficient_quota code", errors.New("error, status code: 429, type: insufficient_quota"), true},
		{"rate limit", errors.New("Rate limit reached for gpt-4o"), true},
		{"billing", errors.New("Billing hard limit has been reached"), true},
		{"quota upper case", errors.New("QUOTA exhausted"), true},
		{"wrapped sentinel", fmt.Errorf("OpenAI.Complete: %w", domain.ErrQuotaExceeded), true},
		{"malformed request", errors.New("invalid request: malformed JSON"), false},
		{"auth", errors.New("401 unauthorized"), false},
		{"deadline", context.DeadlineExceeded, false},
		{"you exceeded is case sensitive", errors.New("you exceeded the limit"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.IsQuotaError(tt.err))
		})
	}
}

func TestClassify(t *testing.T) {
	c := NewErrorClassifier()
	tests := []struct {
		name     string
		err      error
		category ErrorCategory
		status   int
	}{
		{"quota", errors.New("You exceeded your current quota"), ErrorCategoryQuota, 0},
		{"429 without keywords", errors.New("API error 429: slow down"), ErrorCategoryQuota, 429},
		{"server error", errors.New("API error 503: overloaded"), ErrorCategoryTransient, 503},
		{"status code style", errors.New("error, status code: 500, message: boom"), ErrorCategoryTransient, 500},
		{"bad request", errors.New("API error 400: bad field"), ErrorCategoryPermanent, 400},
		{"auth sentinel", fmt.Errorf("x: %w", domain.ErrAuthInvalid), ErrorCategoryPermanent, 0},
		{"connection refused", errors.New("dial tcp: connection refused"), ErrorCategoryTransient, 0},
		{"malformed", errors.New("invalid request: malformed JSON"), ErrorCategoryPermanent, 0},
		{"unknown", errors.New("something odd"), ErrorCategoryUnknown, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.err)
			assert.Equal(t, tt.category, got.Category, got.Category.String())
			assert.Equal(t, tt.status, got.StatusCode)
			assert.Equal(t, tt.err, got.Original)
		})
	}
}

func TestClassifyNil(t *testing.T) {
	got := NewErrorClassifier().Classify(nil)
	assert.Equal(t, ErrorCategoryUnknown, got.Category)
	assert.Nil(t, got.Original)
}

func TestErrorCategoryString(t *testing.T) {
	assert.Equal(t, "quota", ErrorCategoryQuota.String())
	assert.Equal(t, "transient", ErrorCategoryTransient.String())
	assert.Equal(t, "permanent", ErrorCategoryPermanent.String())
	assert.Equal(t, "unknown", ErrorCategory(42).String())
}

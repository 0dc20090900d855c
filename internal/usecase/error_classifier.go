package usecase

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"agenthub/internal/domain"
)

// ErrorCategory describes how a completion error should be handled.
type ErrorCategory int

const (
	ErrorCategoryUnknown   ErrorCategory = iota
	ErrorCategoryQuota                   // quota, billing, rate limit: eligible for model fallback
	ErrorCategoryTransient               // 5xx, connection errors, timeouts
	ErrorCategoryPermanent               // auth failures, malformed requests
)

func (c ErrorCategory) String() string {
	switch c {
	case ErrorCategoryQuota:
		return "quota"
	case ErrorCategoryTransient:
		return "transient"
	case ErrorCategoryPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// ClassifiedError holds the result of error classification.
type ClassifiedError struct {
	Original   error
	Category   ErrorCategory
	StatusCode int // extracted HTTP status, or 0 if unknown
}

// ErrorClassifier inspects completion provider errors. It is the single place
// that decides whether a failure is quota-related.
type ErrorClassifier struct{}

// NewErrorClassifier creates a new classifier.
func NewErrorClassifier() *ErrorClassifier {
	return &ErrorClassifier{}
}

var (
	quotaPattern = regexp.MustCompile(`(?i)quota|rate limit|billing`)
	// statusPattern matches "status 429" and "API error 429:" style messages.
	statusPattern = regexp.MustCompile(`(?i)(?:status(?: code)?|API error)[ :=]*(\d{3})`)
)

var quotaMarkers = []string{"insufficient_quota", "You exceeded"}

// IsQuotaError reports whether err signals that the account or model quota is
// exhausted. A nil error is never a quota error.
func (c *ErrorClassifier) IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrQuotaExceeded) {
		return true
	}
	msg := err.Error()
	if quotaPattern.MatchString(msg) {
		return true
	}
	for _, m := range quotaMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// Classify categorizes err for logging and response mapping.
func (c *ErrorClassifier) Classify(err error) ClassifiedError {
	if err == nil {
		return ClassifiedError{}
	}

	out := ClassifiedError{Original: err}
	if m := statusPattern.FindStringSubmatch(err.Error()); len(m) == 2 {
		out.StatusCode, _ = strconv.Atoi(m[1])
	}

	switch {
	case c.IsQuotaError(err) || out.StatusCode == 429:
		out.Category = ErrorCategoryQuota
	case errors.Is(err, domain.ErrAuthInvalid),
		out.StatusCode == 400, out.StatusCode == 401, out.StatusCode == 403, out.StatusCode == 404:
		out.Category = ErrorCategoryPermanent
	case out.StatusCode >= 500 && out.StatusCode < 600:
		out.Category = ErrorCategoryTransient
	default:
		out.Category = c.classifyByString(err.Error())
	}
	return out
}

func (c *ErrorClassifier) classifyByString(msg string) ErrorCategory {
	lower := strings.ToLower(msg)
	for _, p := range []string{
		"connection refused", "no such host", "timeout",
		"deadline exceeded", "connection reset", "circuit breaker",
	} {
		if strings.Contains(lower, p) {
			return ErrorCategoryTransient
		}
	}
	for _, p := range []string{"invalid request", "malformed", "unauthorized"} {
		if strings.Contains(lower, p) {
			return ErrorCategoryPermanent
		}
	}
	return ErrorCategoryUnknown
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"agenthub/internal/domain"
	"agenthub/internal/infra/config"
)

// Default circuit breaker settings.
const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second
)

// CircuitBreakerProvider wraps a Completer with circuit breaker protection.
// Only transport-level failures count against the breaker: quota, auth and
// caller cancellations pass through so model fallback still sees them.
type CircuitBreakerProvider struct {
	inner   domain.Completer
	breaker *gobreaker.CircuitBreaker[*domain.CompletionResponse]
	logger  *slog.Logger
}

// NewCircuitBreakerProvider wraps inner with a circuit breaker.
// Zero-valued settings fall back to defaults.
func NewCircuitBreakerProvider(inner domain.Completer, cfg config.CircuitBreakerConfig, logger *slog.Logger) *CircuitBreakerProvider {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultCBTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultCBInterval
	}

	cb := gobreaker.NewCircuitBreaker[*domain.CompletionResponse](gobreaker.Settings{
		Name:        "llm:" + inner.Name(),
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: countsAsHealthy,
	})

	return &CircuitBreakerProvider{inner: inner, breaker: cb, logger: logger}
}

// countsAsHealthy reports whether err leaves the provider's health unaffected.
func countsAsHealthy(err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, domain.ErrQuotaExceeded),
		errors.Is(err, domain.ErrAuthInvalid),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, context.Canceled):
		return true
	default:
		return false
	}
}

// Complete implements domain.Completer. Calls are routed through the breaker.
func (p *CircuitBreakerProvider) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error) {
	resp, err := p.breaker.Execute(func() (*domain.CompletionResponse, error) {
		return p.inner.Complete(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("provider %q circuit open: %w: %w", p.inner.Name(), domain.ErrProviderError, err)
	}
	return resp, err
}

// Name implements domain.Completer.
func (p *CircuitBreakerProvider) Name() string { return p.inner.Name() }

// State returns the current circuit breaker state for monitoring.
func (p *CircuitBreakerProvider) State() gobreaker.State {
	return p.breaker.State()
}

// Counts returns the current circuit breaker failure/success counts.
func (p *CircuitBreakerProvider) Counts() gobreaker.Counts {
	return p.breaker.Counts()
}

var _ domain.Completer = (*CircuitBreakerProvider)(nil)

package llm

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"agenthub/internal/domain"
	"agenthub/internal/infra/config"
)

// defaultMaxTokens bounds completions for providers that require a limit.
const defaultMaxTokens = 4096

// Default provider timeouts.
const (
	defaultConnTimeout = 30 * time.Second
	defaultRespTimeout = 120 * time.Second
)

// Connection pool settings sized for few hosts and long-lived connections.
const (
	defaultMaxIdleConns        = 20
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 20
	defaultIdleConnTimeout     = 120 * time.Second
)

// NewHTTPClient creates an *http.Client with a pooled transport for a
// completion provider. cfg.Timeout bounds the whole request.
func NewHTTPClient(cfg config.ProviderConfig) *http.Client {
	respTimeout := cfg.Timeout
	if respTimeout <= 0 {
		respTimeout = defaultRespTimeout
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   defaultConnTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: respTimeout,
		MaxIdleConns:          defaultMaxIdleConns,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		MaxConnsPerHost:       defaultMaxConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   defaultConnTimeout + respTimeout,
	}
}

// mapAPIError attaches a domain sentinel to a provider API error while
// keeping the provider's message and the original error in the chain.
func mapAPIError(op string, status int, code string, err error) error {
	switch {
	case status == http.StatusTooManyRequests || code == "insufficient_quota":
		return fmt.Errorf("%s: %w: %w", op, domain.ErrQuotaExceeded, err)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%s: %w: %w", op, domain.ErrAuthInvalid, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, domain.ErrProviderError, err)
	}
}

func maxTokens(req domain.CompletionRequest, fallback int) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if fallback > 0 {
		return fallback
	}
	return defaultMaxTokens
}

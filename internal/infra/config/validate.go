package config

import (
	"fmt"
	"net"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateServer(cfg, ve)
	validateRouting(cfg, ve)
	validateLLM(cfg, ve)
	validateCatalog(cfg, ve)
	validateLogger(cfg, ve)
	validateAudit(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateServer(cfg *Config, ve *ValidationError) {
	if cfg.Server.Addr == "" {
		ve.Add("server.addr must not be empty")
	} else if _, _, err := net.SplitHostPort(cfg.Server.Addr); err != nil {
		ve.Add("server.addr %q is not a valid host:port: %v", cfg.Server.Addr, err)
	}
	switch cfg.Server.Mode {
	case "release", "debug", "test":
	default:
		ve.Add("server.mode %q must be one of release, debug, test", cfg.Server.Mode)
	}
	if cfg.Server.RequestTimeout <= 0 {
		ve.Add("server.request_timeout must be > 0")
	}
	if cfg.Server.RateLimit.Enabled {
		if cfg.Server.RateLimit.RequestsPerMin <= 0 {
			ve.Add("server.rate_limit.requests_per_min must be > 0 when rate limiting is enabled")
		}
		if cfg.Server.RateLimit.Burst <= 0 {
			ve.Add("server.rate_limit.burst must be > 0 when rate limiting is enabled")
		}
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		ve.Add("server.max_body_bytes must be > 0")
	}
}

func validateRouting(cfg *Config, ve *ValidationError) {
	if cfg.Routing.PrimaryModel == "" {
		ve.Add("routing.primary_model must not be empty")
	}
	if cfg.Routing.FallbackModel == "" {
		ve.Add("routing.fallback_model must not be empty")
	}
	if cfg.Routing.MaxSpecialists <= 0 {
		ve.Add("routing.max_specialists must be > 0")
	}
	if strings.TrimSpace(cfg.Routing.TaskPrompt) == "" {
		ve.Add("routing.task_prompt must not be empty")
	}
}

var validProviderTypes = map[string]bool{
	"openai":    true,
	"anthropic": true,
}

func validateLLM(cfg *Config, ve *ValidationError) {
	if len(cfg.LLM.Providers) == 0 {
		ve.Add("llm.providers must contain at least one provider")
	}
	seen := make(map[string]bool, len(cfg.LLM.Providers))
	for i, p := range cfg.LLM.Providers {
		if p.Name == "" {
			ve.Add("llm.providers[%d].name must not be empty", i)
			continue
		}
		if seen[p.Name] {
			ve.Add("llm.providers[%d]: duplicate provider name %q", i, p.Name)
		}
		seen[p.Name] = true
		if !validProviderTypes[p.Type] {
			ve.Add("llm.providers[%d].type %q must be one of openai, anthropic", i, p.Type)
		}
		if p.Timeout < 0 {
			ve.Add("llm.providers[%d].timeout must be >= 0", i)
		}
	}
	if cfg.LLM.DefaultProvider != "" && len(cfg.LLM.Providers) > 0 && !seen[cfg.LLM.DefaultProvider] {
		ve.Add("llm.default_provider %q does not match any configured provider", cfg.LLM.DefaultProvider)
	}
	if cb := cfg.LLM.CircuitBreaker; cb.Enabled && cb.MaxFailures == 0 {
		ve.Add("llm.circuit_breaker.max_failures must be > 0 when enabled")
	}
}

func validateCatalog(cfg *Config, ve *ValidationError) {
	switch cfg.Catalog.Backend {
	case "sqlite", "file":
	default:
		ve.Add("catalog.backend %q must be sqlite or file", cfg.Catalog.Backend)
	}
	if cfg.Catalog.Path == "" {
		ve.Add("catalog.path must not be empty")
	}
	if cfg.Catalog.CacheTTL < 0 {
		ve.Add("catalog.cache_ttl must be >= 0")
	}
	if cfg.Catalog.Watch && cfg.Catalog.Backend != "file" {
		ve.Add("catalog.watch is only supported by the file backend")
	}
}

func validateLogger(cfg *Config, ve *ValidationError) {
	switch strings.ToLower(cfg.Logger.Format) {
	case "text", "json", "":
	default:
		ve.Add("logger.format %q must be text or json", cfg.Logger.Format)
	}
}

func validateAudit(cfg *Config, ve *ValidationError) {
	if !cfg.Audit.Enabled {
		return
	}
	if cfg.Audit.Path == "" {
		ve.Add("audit.path must not be empty when audit is enabled")
	}
	if cfg.Audit.MaxAge < 0 {
		ve.Add("audit.max_age must be >= 0")
	}
}

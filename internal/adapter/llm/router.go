package llm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"agenthub/internal/domain"
	"agenthub/internal/infra/config"
	"agenthub/internal/infra/tracer"
)

// ModelRouter dispatches each completion to a provider chosen by model name
// prefix, falling back to the default provider. It implements domain.Completer.
type ModelRouter struct {
	registry    *Registry
	prefixes    []prefixRoute // longest prefix first
	defaultName string
	logger      *slog.Logger
}

type prefixRoute struct {
	prefix   string
	provider string
}

// NewModelRouter creates a router over registry. prefixes maps lower-case
// model name prefixes (e.g. "claude") to provider names.
func NewModelRouter(registry *Registry, prefixes map[string]string, defaultName string, logger *slog.Logger) *ModelRouter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	routes := make([]prefixRoute, 0, len(prefixes))
	for p, name := range prefixes {
		routes = append(routes, prefixRoute{prefix: strings.ToLower(p), provider: name})
	}
	sort.Slice(routes, func(i, j int) bool {
		if len(routes[i].prefix) != len(routes[j].prefix) {
			return len(routes[i].prefix) > len(routes[j].prefix)
		}
		return routes[i].prefix < routes[j].prefix
	})
	return &ModelRouter{registry: registry, prefixes: routes, defaultName: defaultName, logger: logger}
}

// Resolve returns the provider that serves model.
func (r *ModelRouter) Resolve(model string) (domain.Completer, error) {
	lower := strings.ToLower(model)
	for _, route := range r.prefixes {
		if strings.HasPrefix(lower, route.prefix) {
			return r.registry.Get(route.provider)
		}
	}
	if r.defaultName == "" {
		return nil, domain.NewDomainError("ModelRouter.Resolve", domain.ErrProviderNotFound, "no provider for model "+model)
	}
	return r.registry.Get(r.defaultName)
}

// Providers returns the registered provider names in sorted order.
func (r *ModelRouter) Providers() []string { return r.registry.List() }

// Complete implements domain.Completer.
func (r *ModelRouter) Complete(ctx context.Context, req domain.CompletionRequest) (resp *domain.CompletionResponse, err error) {
	ctx, span := tracer.StartSpan(ctx, tracer.SpanComplete)
	defer func() { tracer.End(span, err) }()
	span.SetAttributes(tracer.StringAttr("model", req.Model))

	provider, err := r.Resolve(req.Model)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(tracer.StringAttr("provider", provider.Name()))
	r.logger.DebugContext(ctx, "completion dispatched", "provider", provider.Name(), "model", req.Model)

	resp, err = provider.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		tracer.IntAttr("prompt_tokens", resp.Usage.PromptTokens),
		tracer.IntAttr("completion_tokens", resp.Usage.CompletionTokens),
	)
	return resp, nil
}

// Name implements domain.Completer.
func (r *ModelRouter) Name() string { return "router" }

// NewFromConfig builds every configured provider, wraps each in a circuit
// breaker when enabled, and returns a router over them.
func NewFromConfig(cfg config.LLMConfig, logger *slog.Logger) (*ModelRouter, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	registry := NewRegistry()
	prefixes := make(map[string]string)

	for _, pc := range cfg.Providers {
		var p domain.Completer
		switch pc.Type {
		case "openai":
			p = NewOpenAIProvider(pc, logger)
		case "anthropic":
			p = NewAnthropicProvider(pc, logger)
		default:
			return nil, fmt.Errorf("provider %q: unsupported type %q", pc.Name, pc.Type)
		}
		if cfg.CircuitBreaker.Enabled {
			p = NewCircuitBreakerProvider(p, cfg.CircuitBreaker, logger)
		}
		if err := registry.Register(p); err != nil {
			return nil, err
		}

		routes := pc.ModelPrefixes
		if len(routes) == 0 && pc.Type == "anthropic" {
			routes = []string{"claude"}
		}
		for _, prefix := range routes {
			prefixes[prefix] = pc.Name
		}
		logger.Info("completion provider registered", "name", pc.Name, "type", pc.Type, "prefixes", routes)
	}

	return NewModelRouter(registry, prefixes, cfg.DefaultProvider, logger), nil
}

var _ domain.Completer = (*ModelRouter)(nil)

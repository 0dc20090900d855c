package multiagent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"agenthub/internal/domain"
	"agenthub/internal/infra/config"
	"agenthub/internal/infra/tracer"
	"agenthub/internal/usecase"
)

// Orchestrator answers a query as the master agent, briefed with the
// specialists most relevant to that query.
type Orchestrator struct {
	catalog    domain.AgentCatalog
	completer  domain.Completer
	cfg        config.RoutingConfig
	detector   QuotaDetector
	classifier *usecase.ErrorClassifier
	logger     *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithQuotaDetector replaces the default quota classifier.
func WithQuotaDetector(d QuotaDetector) Option {
	return func(o *Orchestrator) { o.detector = d }
}

// NewOrchestrator creates an Orchestrator. A nil logger discards output.
func NewOrchestrator(catalog domain.AgentCatalog, completer domain.Completer, cfg config.RoutingConfig, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.MaxSpecialists <= 0 {
		cfg.MaxSpecialists = 3
	}
	if cfg.TaskPrompt == "" {
		cfg.TaskPrompt = config.DefaultTaskPrompt
	}
	if cfg.Guidance == "" {
		cfg.Guidance = config.DefaultGuidance
	}
	classifier := usecase.NewErrorClassifier()
	o := &Orchestrator{
		catalog:    catalog,
		completer:  completer,
		cfg:        cfg,
		detector:   classifier,
		classifier: classifier,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Route loads the master agent and specialists, selects the top matches for
// query, and returns the master agent's completion. Catalog failures surface
// as domain.ErrNoMasterAgent or domain.ErrCatalogUnavailable; completion
// errors are returned as the provider reported them.
func (o *Orchestrator) Route(ctx context.Context, query string) (result *domain.RouteResult, err error) {
	ctx, span := tracer.StartSpan(ctx, tracer.SpanRoute)
	defer func() { tracer.End(span, err) }()

	master, err := o.catalog.MasterAgent(ctx)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil, domain.NewDomainError("Orchestrator.Route", domain.ErrNoMasterAgent, "")
	case err != nil:
		return nil, fmt.Errorf("%w: %w", domain.ErrCatalogUnavailable, err)
	case master == nil:
		return nil, domain.NewDomainError("Orchestrator.Route", domain.ErrNoMasterAgent, "")
	}

	pool, err := o.catalog.Specialists(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCatalogUnavailable, err)
	}
	pool = specialistsOnly(pool)

	selected := Search(pool, query)
	if len(selected) > o.cfg.MaxSpecialists {
		selected = selected[:o.cfg.MaxSpecialists]
	}

	routed := make([]string, len(selected))
	for i, r := range selected {
		routed[i] = r.Agent.Name
	}
	span.SetAttributes(
		tracer.StringAttr("master", master.Name),
		tracer.IntAttr("candidates", len(pool)),
		tracer.IntAttr("routed", len(routed)),
	)
	o.logger.DebugContext(ctx, "specialists selected", "master", master.Name, "routed", routed)

	system := composeSystemPrompt(master, selected, query, o.cfg.Guidance)
	tiers := twoTierCompleter{
		completer:  o.completer,
		detector:   o.detector,
		classifier: o.classifier,
		primary:    o.cfg.PrimaryModel,
		fallback:   o.cfg.FallbackModel,
		logger:     o.logger,
	}
	resp, model, err := tiers.complete(ctx, system, o.cfg.TaskPrompt)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		tracer.StringAttr("model", model),
		tracer.BoolAttr("fallback", model != o.cfg.PrimaryModel),
	)

	return &domain.RouteResult{
		Response:     resp.Text,
		ModelUsed:    model,
		RoutedAgents: routed,
	}, nil
}

// specialistsOnly drops inactive and master agents a catalog may have returned.
func specialistsOnly(agents []domain.Agent) []domain.Agent {
	out := make([]domain.Agent, 0, len(agents))
	for _, a := range agents {
		if a.IsSpecialist() {
			out = append(out, a)
		}
	}
	return out
}

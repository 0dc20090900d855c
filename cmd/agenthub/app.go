package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"agenthub/internal/adapter/catalog"
	"agenthub/internal/adapter/llm"
	"agenthub/internal/domain"
	"agenthub/internal/infra/config"
	"agenthub/internal/infra/logger"
	"agenthub/internal/infra/tracer"
	"agenthub/internal/security"
	"agenthub/internal/usecase"
	"agenthub/internal/usecase/multiagent"
)

// app holds the components shared by subcommands. Build only what a command
// needs: search never touches the completion providers.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  domain.AgentStore
	llm    domain.Completer
	audits domain.AuditLogger

	closers []func() error
}

// newApp loads configuration and starts logging and tracing.
func newApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	a := &app{cfg: cfg, logger: log}
	a.closers = append(a.closers, logCloser)

	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("tracer: %w", err)
	}
	a.closers = append(a.closers, func() error { return tracerShutdown(context.Background()) })
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// catalog opens the configured agent store, seeding and caching it as
// configured. The store is opened once per app.
func (a *app) catalog(ctx context.Context) (domain.AgentStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	store, closer, err := openCatalog(ctx, a.cfg.Catalog, a.logger)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	a.closers = append(a.closers, closer)
	a.store = store
	return store, nil
}

func openCatalog(ctx context.Context, cfg config.CatalogConfig, log *slog.Logger) (domain.AgentStore, func() error, error) {
	switch cfg.Backend {
	case "file":
		files, err := catalog.NewFileStore(cfg.Path, log)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Watch {
			if err := files.Watch(ctx); err != nil {
				return nil, nil, err
			}
		}
		log.Info("agent catalog loaded", "backend", "file", "path", cfg.Path, "watch", cfg.Watch)
		return catalog.NewCachedCatalog(files, cfg.CacheTTL), files.Close, nil

	default:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
			return nil, nil, fmt.Errorf("create data dir: %w", err)
		}
		db, err := catalog.NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		if cfg.SeedFile != "" {
			n, err := catalog.SeedIfEmpty(ctx, db, cfg.SeedFile)
			if err != nil {
				db.Close()
				return nil, nil, fmt.Errorf("seed: %w", err)
			}
			if n > 0 {
				log.Info("agent catalog seeded", "file", cfg.SeedFile, "agents", n)
			}
		}
		log.Info("agent catalog opened", "backend", "sqlite", "path", cfg.Path)
		return catalog.NewCachedCatalog(db, cfg.CacheTTL), db.Close, nil
	}
}

func (a *app) completer() (domain.Completer, error) {
	if a.llm != nil {
		return a.llm, nil
	}
	router, err := llm.NewFromConfig(a.cfg.LLM, a.logger)
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}
	a.llm = router
	return router, nil
}

func (a *app) orchestrator(ctx context.Context) (*multiagent.Orchestrator, error) {
	store, err := a.catalog(ctx)
	if err != nil {
		return nil, err
	}
	completer, err := a.completer()
	if err != nil {
		return nil, err
	}
	return multiagent.NewOrchestrator(store, completer, a.cfg.Routing, a.logger), nil
}

func (a *app) chatService(ctx context.Context) (*usecase.ChatService, error) {
	store, err := a.catalog(ctx)
	if err != nil {
		return nil, err
	}
	completer, err := a.completer()
	if err != nil {
		return nil, err
	}
	return usecase.NewChatService(store, completer, a.cfg.Routing.PrimaryModel, a.logger), nil
}

// auditLog opens the audit trail, or a no-op logger when auditing is off.
// Expired entries are pruned once at open.
func (a *app) auditLog() (domain.AuditLogger, error) {
	if a.audits != nil {
		return a.audits, nil
	}
	if !a.cfg.Audit.Enabled {
		a.audits = security.NopAuditLogger{}
		return a.audits, nil
	}

	maxSize, err := security.ParseSize(a.cfg.Audit.MaxSize)
	if err != nil {
		return nil, fmt.Errorf("audit.max_size: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(a.cfg.Audit.Path), 0o700); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	fal, err := security.NewFileAuditLogger(a.cfg.Audit.Path, security.RetentionPolicy{
		MaxAge:  a.cfg.Audit.MaxAge,
		MaxSize: maxSize,
	})
	if err != nil {
		return nil, err
	}
	if removed, err := fal.EnforceRetention(); err != nil {
		a.logger.Warn("audit retention failed", "error", err)
	} else if removed > 0 {
		a.logger.Info("audit entries pruned", "removed", removed)
	}
	a.closers = append(a.closers, fal.Close)
	a.audits = fal
	return fal, nil
}

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"agenthub/internal/adapter/httpapi"
	"agenthub/internal/usecase"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func runServe(ctx context.Context, opts *rootOptions, addr string) error {
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	if addr != "" {
		a.cfg.Server.Addr = addr
	}

	store, err := a.catalog(ctx)
	if err != nil {
		return err
	}
	orch, err := a.orchestrator(ctx)
	if err != nil {
		return err
	}
	chat, err := a.chatService(ctx)
	if err != nil {
		return err
	}
	audits, err := a.auditLog()
	if err != nil {
		return err
	}

	srv, err := httpapi.NewServer(ctx, a.cfg.Server, a.cfg.Access, httpapi.Deps{
		Router: orch,
		Chat:   chat,
		Agents: store,
		Authz:  usecase.NewAccessPolicy(a.cfg.Access, store),
		Audit:  audits,
		Logger: a.logger,
	})
	if err != nil {
		return fmt.Errorf("http: %w", err)
	}

	a.logger.Info("agenthub starting",
		"addr", a.cfg.Server.Addr,
		"primary_model", a.cfg.Routing.PrimaryModel,
		"fallback_model", a.cfg.Routing.FallbackModel,
	)
	if err := srv.Run(ctx); err != nil {
		return err
	}
	a.logger.Info("agenthub stopped")
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"moneytrack/internal/cli"
	apphttp "moneytrack/internal/http"
	applog "moneytrack/internal/log"
	"moneytrack/internal/middleware/ratelimit"
)

func newServeCmd(a *app) *cobra.Command {
	var initialLimit int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON API server",
		Long: `Run the JSON API server until SIGINT or SIGTERM.

The first page of transactions is loaded at startup so /api/transactions/current
and /api/summary have data before any client asks for a page.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(initialLimit)
		},
	}
	cmd.Flags().IntVar(&initialLimit, "initial-limit", 20, "page size loaded at startup")
	return cmd
}

func (a *app) serve(initialLimit int) error {
	srv := apphttp.NewServer(":"+a.cfg.Server.Port, a.backend.Store, apphttp.Options{
		Logger:    a.logger.WithComponent(applog.ComponentHTTP),
		RateLimit: ratelimit.Config{Requests: a.cfg.Server.RateLimit, Window: time.Minute},
	})
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(a.logger, a.cfg.Server.ShutdownTimeout, func(sctx context.Context) {
		if err := srv.Shutdown(sctx); err != nil {
			a.logger.Error("Server shutdown error", applog.FieldError, err)
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	if err := a.backend.Start(gctx); err != nil {
		return err
	}

	g.Go(func() error {
		items, err := a.backend.Store.Load(gctx, 1, initialLimit)
		if err != nil {
			a.logger.Warn("Initial load failed", applog.FieldOperation, applog.OpLoad, applog.FieldError, err)
			return nil
		}
		a.logger.Info("Initial page loaded", applog.FieldLimit, initialLimit, "count", len(items))
		return nil
	})

	g.Go(func() error {
		a.logger.Info("Starting moneytrack server",
			applog.FieldOperation, applog.OpStartup,
			"port", a.cfg.Server.Port,
			"storage", a.cfg.Storage.Backend,
			"remote", a.cfg.Remote.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error on port %s: %w", a.cfg.Server.Port, err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	cli.WaitForShutdown(ctx, done)
	a.logger.Info("Server stopped gracefully")
	return nil
}

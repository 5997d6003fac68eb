package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"sheetport/internal/app"
	importhandler "sheetport/internal/importer/handler"
	jwttoken "sheetport/internal/jwt_token"
	"sheetport/internal/platform/config"
	"sheetport/internal/platform/httpserver"
	"sheetport/internal/platform/logger"
	"sheetport/internal/platform/metrics"
	httptransport "sheetport/internal/transport/http"
)

// main wires high-level dependencies, exposes the HTTP router, and runs the
// GM peer alongside it. Business logic lives in internal services packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Server.LogFormat, cfg.Server.LogLevel)
	if cfg.UsesDevSigningKey() {
		log.Warn("using the built-in development JWT signing key; set SHEETPORT_JWT_SIGNING_KEY")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("shutdown cleanup failed", "error", err)
		}
	}()
	if err := a.Start(ctx); err != nil {
		return err
	}

	var handlerOpts []importhandler.Option
	if a.ImportThrottle != nil {
		handlerOpts = append(handlerOpts, importhandler.WithImportThrottle(a.ImportThrottle))
	}
	handler := importhandler.New(
		a.Importer,
		a.Store,
		log,
		metrics.New(a.Registry),
		jwttoken.NewJWTServiceAdapter(a.JWT),
		handlerOpts...,
	)
	router := httptransport.NewRouter(log, a.Registry, a.Health, handler)
	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting sheetport",
			"addr", cfg.Server.Addr,
			"delegation_transport", cfg.Delegation.Transport,
			"gm_peer", cfg.Delegation.PeerEnabled,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return a.RunPeer(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// Package main provides the snap2pdf server entrypoint: the web UI and the
// workflow API on one local port.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spherical/snap2pdf/internal/app"
	"github.com/spherical/snap2pdf/internal/config"
	"github.com/spherical/snap2pdf/internal/workflow"
	"github.com/spherical/snap2pdf/web"
)

// sweepInterval is how often expired edit sessions are dropped.
const sweepInterval = time.Minute

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
		os.Exit(1)
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if len(os.Args) > 2 && os.Args[1] == "--config" {
		cfgPath = os.Args[2]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()
	logger := a.Logger

	assets, err := a.AssetCache(ctx, web.Files)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to install asset cache")
		os.Exit(1)
	}

	sessions := workflow.NewSessionStore(a.Service)
	defer sessions.CloseAll()
	go sessions.Run(ctx, sweepInterval)

	logger.Info().
		Str("addr", cfg.Addr()).
		Str("cache", cfg.Cache.Driver).
		Str("audit", cfg.Audit.Driver).
		Str("extract_engine", cfg.Extract.Engine).
		Msg("Starting snap2pdf server")

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      NewRouter(a, sessions, assets),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error().Err(err).Msg("Server error")
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("Forced shutdown failed")
		}
	}

	logger.Info().Msg("Server stopped")
}

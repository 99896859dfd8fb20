package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"catering/internal/config"
	"catering/internal/conflict"
	"catering/internal/server"
	"catering/internal/storage/sqlite"
	"catering/internal/util"
)

func main() {
	configFlag := flag.String("config", util.EnvOrDefault("CATERING_CONFIG", "catering.yaml"), "Path to YAML configuration")
	addrFlag := flag.String("addr", "", "HTTP listen address (overrides config)")
	dbFlag := flag.String("db", "", "Path to sqlite database file (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		slog.Error("unable to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if *addrFlag != "" {
		cfg.ConflictService.Listen = *addrFlag
	}
	if *dbFlag != "" {
		cfg.Database.Path = *dbFlag
	}

	logger := util.NewLogger(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("conflict detection service failed", slog.String("error", err.Error()))
		stop()
		os.Exit(1)
	}
}

// run serves conflict checks until ctx is cancelled or the listener fails.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("conflict detection service starting", slog.String("db", cfg.Database.Path))

	store, err := sqlite.Open(cfg.Database.Path, logger, sqlite.Options{MaxOpenConns: cfg.ConflictService.MaxOpenConns})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	srv := server.New(conflict.New(store, logger), store, logger)
	httpServer := &http.Server{
		Addr:              cfg.ConflictService.Listen,
		Handler:           srv.Engine(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen on %s: %w", httpServer.Addr, err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", slog.String("error", err.Error()))
	}
	logger.Info("server stopped")
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"catering/internal/api"
	"catering/internal/catalog"
	"catering/internal/schedclient"
	"catering/internal/sweeper"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the catering API server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "HTTP listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.API.Listen = serveAddr
	}

	store, logger, err := openStore(cfg, os.Stdout)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("catering api starting", slog.String("version", version), slog.String("db", cfg.Database.Path))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Templates.Catalog != "" {
		f, err := catalog.Load(cfg.Templates.Catalog)
		if err != nil {
			return err
		}
		if _, err := catalog.Import(ctx, store, f, logger); err != nil {
			return fmt.Errorf("import catalog: %w", err)
		}
	}

	if cfg.Sweeper.Enabled {
		sw, err := sweeper.New(store, cfg.Sweeper.Cron, logger)
		if err != nil {
			return err
		}
		sw.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			sw.Stop(stopCtx)
		}()
	}

	checker := schedclient.New(cfg.ConflictService.URL, cfg.ConflictService.Timeout, logger)
	if err := checker.Health(ctx); err != nil {
		logger.Warn("conflict service not reachable at startup; assignments need force until it is",
			slog.String("url", cfg.ConflictService.URL))
	}

	srv := api.New(store, checker, logger, api.Options{
		Strict:    cfg.Scheduling.StrictOverlap,
		MaxSeries: cfg.Scheduling.MaxSeries,
	})
	httpServer := &http.Server{
		Addr:              cfg.API.Listen,
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
			return fmt.Errorf("server stopped unexpectedly: %w", err)
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

// Package server runs one of the three binaries: it loads configuration,
// wires dependencies, serves HTTP and shuts down on SIGINT or SIGTERM.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/upb/commerce-gateway/app"
	"github.com/upb/commerce-gateway/config"
	"github.com/upb/commerce-gateway/internal/observability"
	"github.com/upb/commerce-gateway/routes"
	"go.uber.org/zap"
)

// InitLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
// It runs before configuration so config errors are logged too.
func InitLogger() (*zap.Logger, error) {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	return observability.NewLogger(level, os.Getenv("LOG_FORMAT"))
}

// Run starts service and blocks until a shutdown signal arrives
func Run(ctx context.Context, service string) error {
	logger, err := InitLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.New(ctx, service)
	if err != nil {
		logger.Error("failed to load configuration", zap.Error(err))
		return err
	}

	logger = logger.With(zap.String("service", service))
	logger.Info("starting",
		zap.String("environment", cfg.Environment),
		zap.String("address", cfg.Server.Address()))

	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dependencies", zap.Error(err))
		return err
	}

	srv := NewHTTPServer(cfg.Server, routes.SetupRoutes(deps))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = Serve(ctx, srv, cfg.Server, logger)
	if cerr := deps.Close(context.Background()); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// NewHTTPServer applies the configured timeouts to handler
func NewHTTPServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

// Serve runs srv until ctx is done, then drains in-flight requests for at
// most cfg.ShutdownTimeout
func Serve(ctx context.Context, srv *http.Server, cfg config.ServerConfig, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed on %s: %w", srv.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}

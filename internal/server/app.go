// Package server provides the application container: it builds the proxy's
// dependencies from configuration and runs the HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"

	"github.com/chatmle/tinker-api/internal/api"
	"github.com/chatmle/tinker-api/internal/config"
	"github.com/chatmle/tinker-api/internal/logging"
	"github.com/chatmle/tinker-api/internal/telemetry"
	"github.com/chatmle/tinker-api/internal/tinker"
)

// App contains the application's dependencies.
type App struct {
	cfg            config.Config
	logger         *zap.Logger
	apiServer      *api.Server
	tracerShutdown func(context.Context) error
}

// NewApp wires an App around an already-built connector.
func NewApp(cfg config.Config, logger *zap.Logger, connector tinker.Connector) *App {
	// Only non-sensitive fields are logged.
	logger.Info("creating application",
		zap.Int("server_port", cfg.Server.Port),
		zap.Bool("backend_enabled", cfg.Backend.Enabled),
		zap.String("backend_base_url", cfg.Backend.BaseURL),
	)
	return &App{
		cfg:       cfg,
		logger:    logger,
		apiServer: api.NewServer(connector, cfg, logger.Named("api")),
	}
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Telemetry.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)

	tp, err := telemetry.InitTracerProvider(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.Version)
	if err != nil {
		return nil, fmt.Errorf("tracer init failed: %w", err)
	}

	app := NewApp(cfg, logger, newConnector(cfg, logger.Named("tinker")))
	app.tracerShutdown = tp.Shutdown
	return app, nil
}

func newConnector(cfg config.Config, logger *zap.Logger) tinker.Connector {
	if !cfg.Backend.Enabled {
		logger.Warn("tinker backend disabled; training routes will return 503")
		return tinker.UnavailableConnector{}
	}
	httpClient := &http.Client{
		Timeout:   cfg.BackendTimeout(),
		Transport: telemetry.Transport(nil),
	}
	return tinker.NewHTTPConnector(cfg.Backend.BaseURL, httpClient, logger)
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run starts the HTTP server and blocks until ctx is canceled or a
// termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(a.cfg.Server.Port)))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve runs the HTTP server on ln until shutdown.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: a.cfg.ReadHeaderTimeout(),
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			errCh <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	closeErr := a.Close(shutdownCtx)

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	default:
		return closeErr
	}
}

// Close flushes logs and stops tracing.
func (a *App) Close(ctx context.Context) error {
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	a.logger.Info("shutdown complete")
	// Sync fails on stdout/stderr for some platforms; the error is not actionable.
	_ = a.logger.Sync()
	return nil
}

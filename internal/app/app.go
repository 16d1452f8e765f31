// Package app wires the service together and runs it in the configured mode.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/alanyoungcy/polyedge/internal/config"
)

// App is the root application object. It owns the configuration, the logger
// and the cleanup functions run on shutdown.
type App struct {
	cfg       *config.Config
	logger    *slog.Logger
	closers   []func()
	startedAt time.Time

	// consult mode
	target string
	out    io.Writer
}

// Option configures an App.
type Option func(*App)

// WithConsultTarget sets the market consult mode asks about. Without it the
// strongest edge of the scan is used.
func WithConsultTarget(marketID string) Option {
	return func(a *App) { a.target = strings.TrimSpace(marketID) }
}

// WithOutput sets where consult mode writes its verdict. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(a *App) { a.out = w }
}

func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *App {
	a := &App{
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "app")),
		startedAt: time.Now(),
		out:       os.Stdout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run wires the dependencies, starts the configured mode and blocks until it
// returns or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	switch strings.ToLower(a.cfg.Mode) {
	case config.ModeScan:
		return a.ScanMode(ctx, deps)
	case config.ModeServe:
		return a.ServeMode(ctx, deps)
	case config.ModeFull:
		return a.FullMode(ctx, deps)
	case config.ModeConsult:
		return a.ConsultMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close tears down resources in reverse registration order. Safe to call more
// than once.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/vk/loomgrid/internal/completion"
	"github.com/vk/loomgrid/internal/ctxlog"
	"github.com/vk/loomgrid/internal/dispatch"
	"github.com/vk/loomgrid/internal/engine"
	"github.com/vk/loomgrid/internal/event"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config

	client   *completion.HTTPClient
	registry *dispatch.Registry
	engine   *engine.Engine

	httpServer *http.Server
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and the
// completion client resolved from flags and environment.
func NewApp(outW io.Writer, cfg *Config) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	// Credentials are resolved exactly once, at startup. A missing key is
	// a fatal startup error, never discovered mid-run.
	svcCfg, err := completion.Resolve(cfg.APIKey, cfg.EnvFile)
	if err != nil {
		panic(fmt.Errorf("failed to resolve completion credentials: %w", err))
	}
	logger.Debug("Completion service configured.", "baseURL", svcCfg.BaseURL)

	client := completion.NewHTTPClient(svcCfg)
	registry := dispatch.NewRegistry(client)
	logger.Debug("Node strategies registered.")

	return &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		client:   client,
		registry: registry,
		engine:   engine.New(registry, event.LogSink{}),
	}
}

// Close releases the completion client's connections.
func (a *App) Close() error {
	return a.client.Close()
}

// context returns a background-derived context carrying the app logger.
func (a *App) context(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}

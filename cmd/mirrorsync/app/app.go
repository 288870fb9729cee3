// Package app provides the application context and dependency management
// for the mirrorsync CLI: configuration, logging, and the lazily built sync
// client with its store connection.
package app

import (
	"context"
	"io"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/agentstation/mirrorsync"
	"github.com/agentstation/mirrorsync/cmd/application"
	"github.com/agentstation/mirrorsync/internal/metrics"
	"github.com/agentstation/mirrorsync/internal/sources"
	"github.com/agentstation/mirrorsync/pkg/errors"
)

var _ application.Application = (*App)(nil)

// App represents the mirrorsync application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	config *Config
	logger *zerolog.Logger

	registry *prometheus.Registry

	// Client and its store (lazy-initialized, singleton)
	mu     sync.RWMutex
	client mirrorsync.Client
	closer io.Closer
}

// Option customizes an App.
type Option func(*App) error

// WithConfig replaces the loaded configuration.
func WithConfig(cfg *Config) Option {
	return func(a *App) error {
		a.config = cfg
		return nil
	}
}

// WithClient injects a prebuilt client, skipping store and registry setup.
func WithClient(c mirrorsync.Client) Option {
	return func(a *App) error {
		a.client = c
		return nil
	}
}

// New creates a new App with the given version information.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version:  version,
		commit:   commit,
		date:     date,
		builtBy:  builtBy,
		registry: prometheus.NewRegistry(),
	}
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	config, err := LoadConfig("")
	if err != nil {
		return nil, errors.WrapResource("load", "config", "", err)
	}
	app.config = config

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	logger := NewLogger(app.config)
	app.logger = &logger

	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string {
	return a.builtBy
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// OutputFormat returns the configured output format.
func (a *App) OutputFormat() string {
	return a.config.Output
}

// Gatherer exposes the metrics registry the client reports to.
func (a *App) Gatherer() prometheus.Gatherer {
	return a.registry
}

// Client returns the sync client, creating it lazily on first use.
// This is thread-safe and ensures only one instance is created.
func (a *App) Client() (mirrorsync.Client, error) {
	a.mu.RLock()
	if a.client != nil {
		c := a.client
		a.mu.RUnlock()
		return c, nil
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client != nil {
		return a.client, nil
	}

	c, closer, err := a.buildClient(context.Background())
	if err != nil {
		return nil, errors.WrapResource("create", "client", "", err)
	}
	a.client = c
	a.closer = closer
	return c, nil
}

func (a *App) buildClient(ctx context.Context) (mirrorsync.Client, io.Closer, error) {
	gw, closer, err := OpenStore(ctx, a.config.Store)
	if err != nil {
		return nil, nil, err
	}

	srcs, err := a.buildSources()
	if err != nil {
		closeQuietly(closer)
		return nil, nil, err
	}

	c, err := mirrorsync.New(gw, srcs, a.buildClientOptions()...)
	if err != nil {
		closeQuietly(closer)
		return nil, nil, err
	}

	a.logger.Debug().
		Str("backend", backendName(a.config.Store.Backend)).
		Interface("origins", srcs.Origins()).
		Msg("Sync client ready")

	return c, closer, nil
}

func (a *App) buildSources() (*sources.Set, error) {
	normalizer, err := LoadNormalizer(a.config.SchemaFile)
	if err != nil {
		return nil, err
	}
	return BuildSources(a.config, normalizer)
}

func (a *App) buildClientOptions() []mirrorsync.Option {
	opts := []mirrorsync.Option{
		mirrorsync.WithTables(a.config.Tables),
		mirrorsync.WithMetrics(metrics.New(a.registry)),
	}
	if a.config.SyncInterval > 0 {
		opts = append(opts, mirrorsync.WithAutoSyncInterval(a.config.SyncInterval))
	}
	return opts
}

// Shutdown stops scheduled passes and releases the store connection.
func (a *App) Shutdown(_ context.Context) error {
	a.mu.Lock()
	c, closer := a.client, a.closer
	a.closer = nil
	a.mu.Unlock()

	if c != nil {
		if err := c.AutoSyncOff(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to stop auto-sync during shutdown")
		}
	}
	if closer != nil {
		if err := closer.Close(); err != nil {
			return errors.WrapResource("close", "store", "", err)
		}
	}
	return nil
}

func backendName(b string) string {
	if b == "" {
		return BackendMemory
	}
	return b
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}

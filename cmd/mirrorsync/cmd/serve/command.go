// Package serve provides the serve command, which runs the HTTP API and,
// optionally, scheduled sync passes.
package serve

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agentstation/mirrorsync/cmd/application"
	"github.com/agentstation/mirrorsync/internal/cmd/emoji"
	"github.com/agentstation/mirrorsync/internal/server"
	"github.com/agentstation/mirrorsync/internal/server/middleware"
	"github.com/agentstation/mirrorsync/pkg/constants"
	"github.com/agentstation/mirrorsync/pkg/errors"
)

// Defaults carries configuration values used where a flag is not given,
// plus settings that have no flag.
type Defaults struct {
	Addr     string
	Interval time.Duration
	Auth     middleware.JWTConfig
	Gatherer prometheus.Gatherer
}

// NewCommand creates the serve command.
func NewCommand(app application.Application, defaults func() Defaults) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"server"},
		GroupID: "core",
		Short:   "Start the HTTP API and optional scheduled syncs",
		Long: `Start the mirrorsync HTTP API.

Features:
  - POST /api/data/sync and /api/data/sync/{origin} to run passes
  - GET /api/data/merged and /api/data/quarantine to read mirrored state
  - WebSocket (/api/data/updates/ws) and SSE (/api/data/updates/stream)
    streams of landed mirror writes
  - Bearer token (JWT) verification when AUTH_JWT_SECRET is set
  - Rate limiting per client address
  - Prometheus metrics on /metrics, liveness on /health, readiness on /ready
  - Graceful shutdown with connection draining

With --interval, both registries are also synced on a fixed schedule.`,
		Example: `  # Serve on the configured address
  mirrorsync serve

  # Serve on all interfaces and sync every 15 minutes
  mirrorsync serve --addr :8080 --interval 15m

  # Allow a browser dashboard
  mirrorsync serve --cors-origins https://dashboard.example.com`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d := defaults()
			cfg, err := parseConfig(cmd, d)
			if err != nil {
				return err
			}
			interval := d.Interval
			if cmd.Flags().Changed("interval") {
				interval = mustGetDuration(cmd, "interval")
			}
			return runServer(cmd.Context(), app, cfg, interval)
		},
	}

	cmd.Flags().String("addr", "", "Listen address host:port (default from HTTP_ADDR, else localhost:8080)")
	cmd.Flags().Duration("interval", 0, "Sync both registries on this interval (default from SYNC_INTERVAL, 0 disables)")

	cmd.Flags().Bool("cors", false, "Enable CORS for all origins")
	cmd.Flags().StringSlice("cors-origins", []string{}, "Allowed CORS origins (comma-separated)")

	cmd.Flags().Int("rate-limit", 100, "Requests per minute per client (0 to disable)")
	cmd.Flags().StringSlice("trusted-proxies", []string{}, "Proxy addresses or CIDRs whose X-Forwarded-For is honored")
	cmd.Flags().Duration("cache-ttl", 5*time.Minute, "Cache TTL for merged and quarantine views")

	cmd.Flags().Duration("read-timeout", 10*time.Second, "HTTP read timeout")
	cmd.Flags().Duration("write-timeout", constants.SyncTimeout, "HTTP write timeout")
	cmd.Flags().Duration("idle-timeout", 120*time.Second, "HTTP idle timeout")

	cmd.Flags().Bool("metrics", true, "Enable metrics endpoint")

	return cmd
}

func parseConfig(cmd *cobra.Command, defaults Defaults) (server.Config, error) {
	cfg := server.DefaultConfig()

	addr := mustGetString(cmd, "addr")
	if addr == "" {
		addr = defaults.Addr
	}
	if addr == "" {
		addr = "localhost:8080"
	}
	host, port, err := SplitAddr(addr)
	if err != nil {
		return cfg, err
	}
	cfg.Host = host
	cfg.Port = port

	cfg.CORSOrigins = mustGetStringSlice(cmd, "cors-origins")
	cfg.CORSEnabled = mustGetBool(cmd, "cors") || len(cfg.CORSOrigins) > 0
	cfg.Auth = defaults.Auth
	cfg.RateLimit = mustGetInt(cmd, "rate-limit")
	cfg.TrustedProxies = mustGetStringSlice(cmd, "trusted-proxies")
	if _, err := middleware.ParseTrustedProxies(cfg.TrustedProxies); err != nil {
		return cfg, err
	}
	cfg.CacheTTL = mustGetDuration(cmd, "cache-ttl")
	cfg.ReadTimeout = mustGetDuration(cmd, "read-timeout")
	cfg.WriteTimeout = mustGetDuration(cmd, "write-timeout")
	cfg.IdleTimeout = mustGetDuration(cmd, "idle-timeout")
	cfg.MetricsEnabled = mustGetBool(cmd, "metrics")
	if defaults.Gatherer != nil {
		cfg.Gatherer = defaults.Gatherer
	}

	return cfg, nil
}

// SplitAddr parses host:port. An empty host binds all interfaces.
func SplitAddr(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, errors.NewValidationError("addr", addr, err.Error())
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, errors.NewValidationError("addr", addr, "port must be between 1 and 65535")
	}
	return host, port, nil
}

func runServer(ctx context.Context, app application.Application, cfg server.Config, interval time.Duration) error {
	logger := app.Logger()

	logger.Info().
		Int("port", cfg.Port).
		Str("host", cfg.Host).
		Str("prefix", cfg.PathPrefix).
		Bool("cors", cfg.CORSEnabled).
		Bool("auth", cfg.Auth.Enabled()).
		Int("rate_limit", cfg.RateLimit).
		Dur("cache_ttl", cfg.CacheTTL).
		Dur("interval", interval).
		Msg("Starting API server")

	srv, err := server.New(app, cfg)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Start()

	if interval > 0 {
		client, err := app.Client()
		if err != nil {
			return err
		}
		if err := client.AutoSyncOn(); err != nil {
			return fmt.Errorf("starting scheduled sync: %w", err)
		}
		defer func() {
			if err := client.AutoSyncOff(); err != nil {
				logger.Warn().Err(err).Msg("Failed to stop scheduled sync")
			}
		}()
	}

	httpServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:           srv.Handler(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: constants.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	return startWithGracefulShutdown(ctx, httpServer, srv, logger)
}

// startWithGracefulShutdown serves until ctx is cancelled, then drains
// connections and stops background services.
func startWithGracefulShutdown(ctx context.Context, httpServer *http.Server, srv *server.Server, logger *zerolog.Logger) error {
	serverErr := make(chan error, 1)

	go func() {
		logger.Info().
			Str("addr", httpServer.Addr).
			Str("service", "API").
			Msg("HTTP server listening")

		fmt.Printf("%s API server listening on %s\n", emoji.Success, httpServer.Addr)
		fmt.Println("   Press Ctrl+C to stop")

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- fmt.Errorf("server failed: %w", err)
		}
	}()

	select {
	case err := <-serverErr:
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return err
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received via context")
		fmt.Printf("\n%s Shutting down API server...\n", emoji.Stop)

		// The parent context is already cancelled.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("Background services shutdown had issues")
		}

		logger.Info().Msg("Server stopped gracefully")
		fmt.Printf("%s API server stopped gracefully\n", emoji.Success)
		return nil
	}
}

// mustGetInt retrieves an integer flag value or panics if the flag doesn't exist.
// This should only be used for flags defined in this package.
func mustGetInt(cmd *cobra.Command, name string) int {
	val, err := cmd.Flags().GetInt(name)
	if err != nil {
		panic(fmt.Sprintf("programming error: failed to get flag %q: %v", name, err))
	}
	return val
}

func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic(fmt.Sprintf("programming error: failed to get flag %q: %v", name, err))
	}
	return val
}

func mustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic(fmt.Sprintf("programming error: failed to get flag %q: %v", name, err))
	}
	return val
}

func mustGetStringSlice(cmd *cobra.Command, name string) []string {
	val, err := cmd.Flags().GetStringSlice(name)
	if err != nil {
		panic(fmt.Sprintf("programming error: failed to get flag %q: %v", name, err))
	}
	return val
}

func mustGetDuration(cmd *cobra.Command, name string) time.Duration {
	val, err := cmd.Flags().GetDuration(name)
	if err != nil {
		panic(fmt.Sprintf("programming error: failed to get flag %q: %v", name, err))
	}
	return val
}

package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/agentstation/mirrorsync/internal/server/middleware"
	"github.com/agentstation/mirrorsync/pkg/constants"
)

// Config holds server configuration.
type Config struct {
	// Server settings
	Host string
	Port int

	// PathPrefix mounts the protected data routes.
	PathPrefix string

	// CORS settings
	CORSEnabled bool
	CORSOrigins []string

	// Auth verifies bearer tokens on the data routes.
	Auth middleware.JWTConfig

	// Performance settings
	RateLimit int // Requests per minute per IP (0 to disable)
	// TrustedProxies may set X-Forwarded-For for rate limiting.
	TrustedProxies []string
	CacheTTL  time.Duration

	// HTTP timeouts
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// MetricsEnabled exposes Gatherer on /metrics.
	MetricsEnabled bool
	Gatherer       prometheus.Gatherer
}

// DefaultConfig returns a Config with sensible defaults. The write timeout
// covers a full sync pass.
func DefaultConfig() Config {
	return Config{
		Host:           "localhost",
		Port:           8080,
		PathPrefix:     "/api/data",
		CORSEnabled:    false,
		CORSOrigins:    []string{},
		RateLimit:      100,
		CacheTTL:       5 * time.Minute,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   constants.SyncTimeout,
		IdleTimeout:    120 * time.Second,
		MetricsEnabled: true,
		Gatherer:       prometheus.DefaultGatherer,
	}
}

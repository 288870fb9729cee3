// Package server provides the HTTP API for mirrorsync.
package server

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/mirrorsync/cmd/application"
	"github.com/agentstation/mirrorsync/internal/server/cache"
	"github.com/agentstation/mirrorsync/internal/server/events"
	"github.com/agentstation/mirrorsync/internal/server/events/adapters"
	"github.com/agentstation/mirrorsync/internal/server/middleware"
	"github.com/agentstation/mirrorsync/internal/server/sse"
	ws "github.com/agentstation/mirrorsync/internal/server/websocket"
	"github.com/agentstation/mirrorsync/pkg/reconcile"
	"github.com/agentstation/mirrorsync/pkg/records"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	app            application.Application
	cache          *cache.Cache
	broker         *events.Broker
	wsHub          *ws.Hub
	sseBroadcaster *sse.Broadcaster
	limiter        *middleware.RateLimiter
	logger         *zerolog.Logger
	config         Config
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	startTime      time.Time
}

// New creates a new server instance with the given configuration.
func New(app application.Application, cfg Config) (*Server, error) {
	logger := app.Logger()

	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.PathPrefix == "" {
		cfg.PathPrefix = DefaultConfig().PathPrefix
	}

	broker := events.NewBroker(logger)
	wsHub := ws.NewHub(logger, checkOrigin(cfg))
	sseBroadcaster := sse.NewBroadcaster(logger)

	broker.Subscribe(adapters.NewWebSocketSubscriber(wsHub))
	broker.Subscribe(adapters.NewSSESubscriber(sseBroadcaster))

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		app:            app,
		cache:          cache.New(cfg.CacheTTL, cfg.CacheTTL*2),
		broker:         broker,
		wsHub:          wsHub,
		sseBroadcaster: sseBroadcaster,
		logger:         logger,
		config:         cfg,
		ctx:            ctx,
		cancel:         cancel,
		startTime:      time.Now(),
	}

	if cfg.RateLimit > 0 {
		limiter, err := middleware.NewRateLimiter(ctx, middleware.RateLimitConfig{
			PerMinute:      cfg.RateLimit,
			TrustedProxies: cfg.TrustedProxies,
		}, logger)
		if err != nil {
			cancel()
			return nil, err
		}
		s.limiter = limiter
	}

	if err := s.connectHooks(); err != nil {
		cancel()
		return nil, err
	}

	logger.Debug().Msg("Server instance created")
	return s, nil
}

// connectHooks publishes landed writes and pass lifecycle on the broker and
// drops cached views whenever the mirror changes, including changes made by
// scheduled passes.
func (s *Server) connectHooks() error {
	client, err := s.app.Client()
	if err != nil {
		return err
	}

	events.Connect(client, s.broker)

	invalidate := func() { s.cache.Invalidate() }
	client.OnRecordAdded(func(records.SourceRecord) { invalidate() })
	client.OnRecordUpdated(func(reconcile.Change) { invalidate() })
	client.OnRecordDeleted(func(records.Origin, string) { invalidate() })
	client.OnKeyQuarantined(func(records.QuarantineRecord) { invalidate() })
	client.OnKeyReleased(func(records.Origin, string) { invalidate() })
	client.OnSyncCompleted(func(res *reconcile.Result) {
		if !res.DryRun {
			invalidate()
		}
	})

	s.logger.Debug().Msg("Client hooks connected to event broker")
	return nil
}

// Start launches the broker and streaming transports. They stop on Shutdown.
func (s *Server) Start() {
	run := func(fn func(context.Context)) {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			fn(s.ctx)
		}()
	}
	run(s.broker.Run)
	run(s.wsHub.Run)
	run(s.sseBroadcaster.Run)
	s.logger.Debug().Msg("Background services started")
}

// Handler returns the configured http.Handler with middleware chain applied.
func (s *Server) Handler() http.Handler {
	return s.setupRouter()
}

// Shutdown stops background services, waiting until they exit or ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down server background services")
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("Background services shut down")
		return nil
	case <-ctx.Done():
		s.logger.Warn().Msg("Background services shutdown timed out")
		return ctx.Err()
	}
}

// Cache returns the server's view cache.
func (s *Server) Cache() *cache.Cache {
	return s.cache
}

// Broker returns the event broker for publishing events.
func (s *Server) Broker() *events.Broker {
	return s.broker
}

// StartTime returns the server start time for uptime calculations.
func (s *Server) StartTime() time.Time {
	return s.startTime
}

// checkOrigin applies the CORS origin list to WebSocket upgrades.
func checkOrigin(cfg Config) func(*http.Request) bool {
	if !cfg.CORSEnabled || len(cfg.CORSOrigins) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return slices.ContainsFunc(cfg.CORSOrigins, func(o string) bool {
			return o == "*" || strings.EqualFold(o, origin)
		})
	}
}

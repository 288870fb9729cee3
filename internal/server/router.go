package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentstation/mirrorsync/internal/server/handlers"
	"github.com/agentstation/mirrorsync/internal/server/middleware"
	"github.com/agentstation/mirrorsync/internal/server/response"
	"github.com/agentstation/mirrorsync/pkg/records"
)

// setupRouter creates the HTTP handler with routes and middleware.
func (s *Server) setupRouter() http.Handler {
	h := handlers.New(
		s.app,
		s.cache,
		s.broker,
		s.wsHub,
		s.sseBroadcaster,
		s.logger,
	)

	r := chi.NewRouter()
	r.Use(
		chimw.RequestID,
		middleware.Recovery(s.logger),
		middleware.Logger(s.logger),
	)
	if s.config.CORSEnabled {
		r.Use(middleware.CORS(s.corsConfig()))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, "Route not found", r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.MethodNotAllowed(w, r.Method)
	})

	s.registerRoutes(r, h)
	return r
}

// registerRoutes registers all HTTP routes.
func (s *Server) registerRoutes(r chi.Router, h *handlers.Handlers) {
	r.Get("/favicon.ico", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Public endpoints
	r.Get("/health", h.HandleHealth)
	r.Get("/ready", h.HandleReady)
	r.Get("/openapi.json", h.HandleOpenAPIJSON)
	r.Get("/openapi.yaml", h.HandleOpenAPIYAML)
	if s.config.MetricsEnabled {
		gatherer := s.config.Gatherer
		if gatherer == nil {
			gatherer = prometheus.DefaultGatherer
		}
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	// Protected data endpoints
	r.Route(s.config.PathPrefix, func(r chi.Router) {
		r.Use(middleware.JWT(s.config.Auth, s.logger))
		if s.limiter != nil {
			r.Use(middleware.RateLimit(s.limiter))
		}

		r.Post("/sync", h.HandleSyncAll)
		r.Post("/sync/{origin}", h.HandleSync)
		r.Get("/merged", h.HandleMerged)
		r.Get("/quarantine", h.HandleQuarantine)
		r.Get("/stats", h.HandleStats)

		r.Get("/updates/ws", h.HandleWebSocket)
		r.Get("/updates/stream", h.HandleSSE)

		// Route names used by existing dashboards.
		r.Get("/fetchMergedData", h.HandleMerged)
		r.Post("/syncTypeform", h.SyncOrigin(records.OriginForm))
		r.Post("/syncAirtable", h.SyncOrigin(records.OriginSheet))
	})
}

func (s *Server) corsConfig() middleware.CORSConfig {
	cfg := middleware.DefaultCORSConfig()
	if len(s.config.CORSOrigins) > 0 {
		cfg.AllowedOrigins = s.config.CORSOrigins
		cfg.AllowAll = false
	} else {
		cfg.AllowAll = true
	}
	return cfg
}

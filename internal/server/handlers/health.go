package handlers

import (
	"net/http"

	"github.com/agentstation/mirrorsync/internal/server/response"
)

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, map[string]any{
		"status":  "healthy",
		"service": "mirrorsync-api",
		"version": h.app.Version(),
	})
}

// HandleReady handles GET /ready. The server is ready once the sync client
// (store gateway and registry clients) could be built.
func (h *Handlers) HandleReady(w http.ResponseWriter, _ *http.Request) {
	if _, err := h.app.Client(); err != nil {
		h.logger.Warn().Err(err).Msg("Readiness check failed")
		response.ServiceUnavailable(w, "Sync client not available")
		return
	}

	response.OK(w, map[string]any{
		"status":            "ready",
		"cache":             h.cache.Stats(),
		"websocket_clients": h.wsHub.ClientCount(),
		"sse_clients":       h.sseBroadcaster.ClientCount(),
	})
}

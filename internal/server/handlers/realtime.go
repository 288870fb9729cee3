package handlers

import (
	"net/http"

	"github.com/agentstation/mirrorsync/internal/server/events"
)

// HandleWebSocket handles GET /api/data/updates/ws.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.broker.Publish(events.ClientConnected, map[string]any{
		"transport":   "websocket",
		"remote_addr": r.RemoteAddr,
	})
	h.wsHub.ServeHTTP(w, r)
}

// HandleSSE handles GET /api/data/updates/stream.
func (h *Handlers) HandleSSE(w http.ResponseWriter, r *http.Request) {
	h.broker.Publish(events.ClientConnected, map[string]any{
		"transport":   "sse",
		"remote_addr": r.RemoteAddr,
	})
	h.sseBroadcaster.ServeHTTP(w, r)
}

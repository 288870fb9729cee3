package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/agentstation/mirrorsync/internal/server/response"
)

// HandleStats handles GET /api/data/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	response.OK(w, map[string]any{
		"version": h.app.Version(),
		"runtime": map[string]any{
			"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
			"goroutines":     runtime.NumGoroutine(),
			"memory_mb":      memStats.Alloc / 1024 / 1024,
			"memory_sys_mb":  memStats.Sys / 1024 / 1024,
		},
		"events": map[string]any{
			"subscribers": h.broker.SubscriberCount(),
		},
		"realtime": map[string]any{
			"websocket_clients": h.wsHub.ClientCount(),
			"sse_clients":       h.sseBroadcaster.ClientCount(),
		},
		"cache": h.cache.Stats(),
	})
}

package handlers

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/mirrorsync/cmd/application"
	"github.com/agentstation/mirrorsync/internal/server/cache"
	"github.com/agentstation/mirrorsync/internal/server/events"
	"github.com/agentstation/mirrorsync/internal/server/sse"
	ws "github.com/agentstation/mirrorsync/internal/server/websocket"
)

// Handlers provides access to all HTTP handlers.
type Handlers struct {
	app            application.Application
	cache          *cache.Cache
	broker         *events.Broker
	wsHub          *ws.Hub
	sseBroadcaster *sse.Broadcaster
	logger         *zerolog.Logger
	startTime      time.Time
}

// New creates a new Handlers instance.
func New(
	app application.Application,
	cache *cache.Cache,
	broker *events.Broker,
	wsHub *ws.Hub,
	sseBroadcaster *sse.Broadcaster,
	logger *zerolog.Logger,
) *Handlers {
	return &Handlers{
		app:            app,
		cache:          cache,
		broker:         broker,
		wsHub:          wsHub,
		sseBroadcaster: sseBroadcaster,
		logger:         logger,
		startTime:      time.Now(),
	}
}

// Package events fans mirror changes out to streaming clients. The broker
// receives events from client hooks and delivers them
// to every registered transport (SSE, WebSocket).
package events

import (
	"time"

	"github.com/agentstation/mirrorsync/pkg/compare"
	"github.com/agentstation/mirrorsync/pkg/records"
)

// EventType names a mirror event.
type EventType string

// Event types.
const (
	// Writes that landed during a pass.
	RecordAdded    EventType = "record.added"
	RecordUpdated  EventType = "record.updated"
	RecordDeleted  EventType = "record.deleted"
	KeyQuarantined EventType = "key.quarantined"
	KeyReleased    EventType = "key.released"

	// Pass lifecycle.
	SyncStarted   EventType = "sync.started"
	SyncCompleted EventType = "sync.completed"
	SyncFailed    EventType = "sync.failed"

	// Transport lifecycle.
	ClientConnected EventType = "client.connected"
)

// Event is one published change. ID increases monotonically per broker.
type Event struct {
	ID        uint64    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// RecordPayload describes an added or deleted mirror record.
type RecordPayload struct {
	Origin records.Origin `json:"origin"`
	Key    string         `json:"registration_number"`
	Fields records.Fields `json:"fields,omitempty"`
}

// UpdatePayload describes a replaced mirror record.
type UpdatePayload struct {
	Origin  records.Origin        `json:"origin"`
	Key     string                `json:"registration_number"`
	Changes []compare.FieldChange `json:"changes"`
}

// QuarantinePayload describes a key entering or leaving quarantine.
type QuarantinePayload struct {
	Origin records.Origin `json:"origin"`
	Key    string         `json:"registration_number"`
	Count  int            `json:"count,omitempty"`
}

// SyncPayload describes a pass starting or failing.
type SyncPayload struct {
	Origin records.Origin `json:"origin"`
	RunID  string         `json:"run_id,omitempty"`
	Error  string         `json:"error,omitempty"`
}

package mirrorsync

import (
	"context"
	"sync"

	"github.com/agentstation/mirrorsync/pkg/logging"
	"github.com/agentstation/mirrorsync/pkg/reconcile"
	"github.com/agentstation/mirrorsync/pkg/records"
)

// Hook function types for landed writes. Hooks run synchronously on the
// pass goroutine, so slow hooks slow the pass.
type (
	// RecordAddedHook is called after a record is added to a mirror
	RecordAddedHook func(rec records.SourceRecord)

	// RecordUpdatedHook is called after a mirror record is replaced
	RecordUpdatedHook func(change reconcile.Change)

	// RecordDeletedHook is called after a record is removed from a mirror
	RecordDeletedHook func(origin records.Origin, key string)

	// KeyQuarantinedHook is called after a quarantine entry is written
	KeyQuarantinedHook func(rec records.QuarantineRecord)

	// KeyReleasedHook is called after a key leaves quarantine
	KeyReleasedHook func(origin records.Origin, key string)

	// SyncStartedHook is called once a pass holds its origin lock
	SyncStartedHook func(origin records.Origin, runID string)

	// SyncCompletedHook is called after a pass applied its plan, dry runs included
	SyncCompletedHook func(res *reconcile.Result)

	// SyncFailedHook is called when a started pass aborts before writing
	SyncFailedHook func(origin records.Origin, runID string, err error)
)

// Hooks registers callbacks for landed writes and pass lifecycle.
type Hooks interface {
	OnRecordAdded(fn RecordAddedHook)
	OnRecordUpdated(fn RecordUpdatedHook)
	OnRecordDeleted(fn RecordDeletedHook)
	OnKeyQuarantined(fn KeyQuarantinedHook)
	OnKeyReleased(fn KeyReleasedHook)
	OnSyncStarted(fn SyncStartedHook)
	OnSyncCompleted(fn SyncCompletedHook)
	OnSyncFailed(fn SyncFailedHook)
}

var (
	_ Hooks              = (*client)(nil)
	_ reconcile.Observer = (*hooks)(nil)
)

// hooks manages event callbacks and forwards reconciler events to them.
type hooks struct {
	mu               sync.RWMutex
	onRecordAdded    []RecordAddedHook
	onRecordUpdated  []RecordUpdatedHook
	onRecordDeleted  []RecordDeletedHook
	onKeyQuarantined []KeyQuarantinedHook
	onKeyReleased    []KeyReleasedHook
	onSyncStarted    []SyncStartedHook
	onSyncCompleted  []SyncCompletedHook
	onSyncFailed     []SyncFailedHook
}

// newHooks creates a new hooks instance
func newHooks() *hooks {
	return &hooks{}
}

// OnRecordAdded registers a callback for added records.
func (c *client) OnRecordAdded(fn RecordAddedHook) {
	c.hooks.mu.Lock()
	defer c.hooks.mu.Unlock()
	c.hooks.onRecordAdded = append(c.hooks.onRecordAdded, fn)
}

// OnRecordUpdated registers a callback for updated records.
func (c *client) OnRecordUpdated(fn RecordUpdatedHook) {
	c.hooks.mu.Lock()
	defer c.hooks.mu.Unlock()
	c.hooks.onRecordUpdated = append(c.hooks.onRecordUpdated, fn)
}

// OnRecordDeleted registers a callback for deleted records.
func (c *client) OnRecordDeleted(fn RecordDeletedHook) {
	c.hooks.mu.Lock()
	defer c.hooks.mu.Unlock()
	c.hooks.onRecordDeleted = append(c.hooks.onRecordDeleted, fn)
}

// OnKeyQuarantined registers a callback for quarantined keys.
func (c *client) OnKeyQuarantined(fn KeyQuarantinedHook) {
	c.hooks.mu.Lock()
	defer c.hooks.mu.Unlock()
	c.hooks.onKeyQuarantined = append(c.hooks.onKeyQuarantined, fn)
}

// OnKeyReleased registers a callback for released keys.
func (c *client) OnKeyReleased(fn KeyReleasedHook) {
	c.hooks.mu.Lock()
	defer c.hooks.mu.Unlock()
	c.hooks.onKeyReleased = append(c.hooks.onKeyReleased, fn)
}

// OnSyncStarted registers a callback for passes starting.
func (c *client) OnSyncStarted(fn SyncStartedHook) {
	c.hooks.mu.Lock()
	defer c.hooks.mu.Unlock()
	c.hooks.onSyncStarted = append(c.hooks.onSyncStarted, fn)
}

// OnSyncCompleted registers a callback for finished passes.
func (c *client) OnSyncCompleted(fn SyncCompletedHook) {
	c.hooks.mu.Lock()
	defer c.hooks.mu.Unlock()
	c.hooks.onSyncCompleted = append(c.hooks.onSyncCompleted, fn)
}

// OnSyncFailed registers a callback for aborted passes.
func (c *client) OnSyncFailed(fn SyncFailedHook) {
	c.hooks.mu.Lock()
	defer c.hooks.mu.Unlock()
	c.hooks.onSyncFailed = append(c.hooks.onSyncFailed, fn)
}

// RecordAdded implements reconcile.Observer.
func (h *hooks) RecordAdded(ctx context.Context, rec records.SourceRecord) {
	h.mu.RLock()
	fns := h.onRecordAdded
	h.mu.RUnlock()
	for _, fn := range fns {
		h.call(ctx, func() { fn(rec) })
	}
}

// RecordUpdated implements reconcile.Observer.
func (h *hooks) RecordUpdated(ctx context.Context, change reconcile.Change) {
	h.mu.RLock()
	fns := h.onRecordUpdated
	h.mu.RUnlock()
	for _, fn := range fns {
		h.call(ctx, func() { fn(change) })
	}
}

// RecordDeleted implements reconcile.Observer.
func (h *hooks) RecordDeleted(ctx context.Context, origin records.Origin, key string) {
	h.mu.RLock()
	fns := h.onRecordDeleted
	h.mu.RUnlock()
	for _, fn := range fns {
		h.call(ctx, func() { fn(origin, key) })
	}
}

// KeyQuarantined implements reconcile.Observer.
func (h *hooks) KeyQuarantined(ctx context.Context, rec records.QuarantineRecord) {
	h.mu.RLock()
	fns := h.onKeyQuarantined
	h.mu.RUnlock()
	for _, fn := range fns {
		h.call(ctx, func() { fn(rec) })
	}
}

// KeyReleased implements reconcile.Observer.
func (h *hooks) KeyReleased(ctx context.Context, origin records.Origin, key string) {
	h.mu.RLock()
	fns := h.onKeyReleased
	h.mu.RUnlock()
	for _, fn := range fns {
		h.call(ctx, func() { fn(origin, key) })
	}
}

func (h *hooks) syncStarted(ctx context.Context, origin records.Origin, runID string) {
	h.mu.RLock()
	fns := h.onSyncStarted
	h.mu.RUnlock()
	for _, fn := range fns {
		h.call(ctx, func() { fn(origin, runID) })
	}
}

func (h *hooks) syncCompleted(ctx context.Context, res *reconcile.Result) {
	h.mu.RLock()
	fns := h.onSyncCompleted
	h.mu.RUnlock()
	for _, fn := range fns {
		h.call(ctx, func() { fn(res) })
	}
}

func (h *hooks) syncFailed(ctx context.Context, origin records.Origin, runID string, err error) {
	h.mu.RLock()
	fns := h.onSyncFailed
	h.mu.RUnlock()
	for _, fn := range fns {
		h.call(ctx, func() { fn(origin, runID, err) })
	}
}

// call runs one hook; a panicking hook is logged and does not abort the pass.
func (h *hooks) call(ctx context.Context, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logging.FromContext(ctx).Error().Interface("panic", r).Msg("Hook panicked")
		}
	}()
	fn()
}

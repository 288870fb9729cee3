package events

import (
	"github.com/agentstation/mirrorsync"
	"github.com/agentstation/mirrorsync/pkg/reconcile"
	"github.com/agentstation/mirrorsync/pkg/records"
)

// Connect publishes every landed write and pass lifecycle change reported by
// h on b.
func Connect(h mirrorsync.Hooks, b *Broker) {
	h.OnRecordAdded(func(rec records.SourceRecord) {
		b.Publish(RecordAdded, RecordPayload{Origin: rec.Origin, Key: rec.Key, Fields: rec.Fields})
	})
	h.OnRecordUpdated(func(c reconcile.Change) {
		b.Publish(RecordUpdated, UpdatePayload{Origin: c.Record.Origin, Key: c.Record.Key, Changes: c.Fields})
	})
	h.OnRecordDeleted(func(origin records.Origin, key string) {
		b.Publish(RecordDeleted, RecordPayload{Origin: origin, Key: key})
	})
	h.OnKeyQuarantined(func(rec records.QuarantineRecord) {
		b.Publish(KeyQuarantined, QuarantinePayload{Origin: rec.Origin, Key: rec.Key, Count: len(rec.ConflictingFieldSets)})
	})
	h.OnKeyReleased(func(origin records.Origin, key string) {
		b.Publish(KeyReleased, QuarantinePayload{Origin: origin, Key: key})
	})
	h.OnSyncStarted(func(origin records.Origin, runID string) {
		b.Publish(SyncStarted, SyncPayload{Origin: origin, RunID: runID})
	})
	h.OnSyncCompleted(func(res *reconcile.Result) {
		b.Publish(SyncCompleted, res.Summary())
	})
	h.OnSyncFailed(func(origin records.Origin, runID string, err error) {
		b.Publish(SyncFailed, SyncPayload{Origin: origin, RunID: runID, Error: err.Error()})
	})
}

package reconcile

import (
	"context"

	"github.com/agentstation/mirrorsync/pkg/records"
)

// Observer is told about every write that lands. Calls happen synchronously
// on the reconciling goroutine, after the write.
type Observer interface {
	RecordAdded(ctx context.Context, rec records.SourceRecord)
	RecordUpdated(ctx context.Context, change Change)
	RecordDeleted(ctx context.Context, origin records.Origin, key string)
	KeyQuarantined(ctx context.Context, rec records.QuarantineRecord)
	KeyReleased(ctx context.Context, origin records.Origin, key string)
}

type nopObserver struct{}

func (nopObserver) RecordAdded(context.Context, records.SourceRecord) {}
func (nopObserver) RecordUpdated(context.Context, Change) {}
func (nopObserver) RecordDeleted(context.Context, records.Origin, string) {}
func (nopObserver) KeyQuarantined(context.Context, records.QuarantineRecord) {}
func (nopObserver) KeyReleased(context.Context, records.Origin, string) {}

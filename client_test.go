package mirrorsync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/mirrorsync/internal/metrics"
	"github.com/agentstation/mirrorsync/internal/sources"
	pkgerrors "github.com/agentstation/mirrorsync/pkg/errors"
	"github.com/agentstation/mirrorsync/pkg/logging"
	"github.com/agentstation/mirrorsync/pkg/reconcile"
	"github.com/agentstation/mirrorsync/pkg/records"
	"github.com/agentstation/mirrorsync/pkg/store"
	"github.com/agentstation/mirrorsync/pkg/store/memory"
)

func sheetRec(key string, motility float64) records.SourceRecord {
	return records.SourceRecord{
		Key:    key,
		Origin: records.OriginSheet,
		Fields: records.Fields{"total_motility": motility, "morphology": 4.0, "vial1_volume": "", "vial2_volume": ""},
	}
}

func formRec(key, email string) records.SourceRecord {
	return records.SourceRecord{Key: key, Origin: records.OriginForm, Fields: records.Fields{"email": email}}
}

type fixture struct {
	gw    *memory.Store
	form  *sources.Static
	sheet *sources.Static
	c     Client
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	logging.DisableLoggingForTest(t)
	f := &fixture{
		gw:    memory.New(),
		form:  &sources.Static{From: records.OriginForm},
		sheet: &sources.Static{From: records.OriginSheet},
	}
	c, err := New(f.gw, sources.NewSet(f.form, f.sheet), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.AutoSyncOff() })
	f.c = c
	return f
}

func TestNewRequiresGateway(t *testing.T) {
	_, err := New(nil, nil)
	var cfgErr *pkgerrors.ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	_, err := New(memory.New(), nil, WithPolicy(reconcile.Policy{Origin: "ledger"}))
	assert.True(t, pkgerrors.IsValidationError(err))

	_, err = New(memory.New(), nil, WithAutoSync(true), WithAutoSyncInterval(0))
	assert.Error(t, err)
}

func TestSyncIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sheet.Set([]records.SourceRecord{sheetRec("A", 10), sheetRec("B", 20)}, nil)

	first, err := f.c.Sync(ctx, records.OriginSheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, first.Added)
	assert.Equal(t, 2, f.gw.Len(store.DefaultTables().Sheet))

	second, err := f.c.Sync(ctx, records.OriginSheet)
	require.NoError(t, err)
	assert.Empty(t, second.Added)
	assert.Empty(t, second.Updated)
	assert.Empty(t, second.Deleted)
	assert.Equal(t, 2, second.MirrorCount)
}

func TestSyncQuarantineLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.sheet.Set([]records.SourceRecord{sheetRec("A", 1)}, nil)
	_, err := f.c.Sync(ctx, records.OriginSheet)
	require.NoError(t, err)

	// A becomes ambiguous: removed from the mirror and quarantined.
	f.sheet.Set([]records.SourceRecord{sheetRec("A", 1), sheetRec("A", 2), sheetRec("B", 3)}, nil)
	res, err := f.c.Sync(ctx, records.OriginSheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, res.DuplicateKeys())
	assert.Equal(t, []string{"A"}, res.Deleted)

	q, err := f.c.Quarantined(ctx, records.OriginSheet)
	require.NoError(t, err)
	require.Len(t, q, 1)
	assert.Len(t, q[0].ConflictingFieldSets, 2)

	q, err = f.c.Quarantined(ctx, records.OriginForm)
	require.NoError(t, err)
	assert.Empty(t, q)

	// A resolves: released and re-added.
	f.sheet.Set([]records.SourceRecord{sheetRec("A", 2), sheetRec("B", 3)}, nil)
	res, err = f.c.Sync(ctx, records.OriginSheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, res.Released)
	assert.Equal(t, []string{"A"}, res.Added)

	q, err = f.c.Quarantined(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, q)
}

func TestSyncFetchFailureWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sheet.Set([]records.SourceRecord{sheetRec("A", 1)}, nil)
	_, err := f.c.Sync(ctx, records.OriginSheet)
	require.NoError(t, err)

	f.sheet.Set(nil, pkgerrors.NewAPIError("airtable", 503, "down"))
	res, err := f.c.Sync(ctx, records.OriginSheet)
	require.Error(t, err)
	assert.Nil(t, res)

	var fe *pkgerrors.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, StageSource, fe.Stage)
	assert.True(t, pkgerrors.IsSourceUnavailable(err))
	assert.Equal(t, 1, f.gw.Len(store.DefaultTables().Sheet))
}

func TestSyncDeadlineIsTimeout(t *testing.T) {
	f := newFixture(t)
	f.sheet.Set([]records.SourceRecord{sheetRec("A", 1)}, nil)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	_, err := f.c.Sync(ctx, records.OriginSheet)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsTimeout(err))
	assert.True(t, pkgerrors.IsFetchError(err))
	assert.Equal(t, 0, f.gw.Len(store.DefaultTables().Sheet))
}

func TestSyncUnknownOrigin(t *testing.T) {
	f := newFixture(t)
	_, err := f.c.Sync(context.Background(), records.Origin("ledger"))
	assert.True(t, pkgerrors.IsValidationError(err))
}

func TestSyncMissingSource(t *testing.T) {
	logging.DisableLoggingForTest(t)
	c, err := New(memory.New(), sources.NewSet(&sources.Static{From: records.OriginForm}))
	require.NoError(t, err)
	_, err = c.Sync(context.Background(), records.OriginSheet)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestSyncDryRun(t *testing.T) {
	f := newFixture(t)
	f.form.Set([]records.SourceRecord{formRec("A", "a@example.com")}, nil)

	res, err := f.c.Sync(context.Background(), records.OriginForm, SyncWithDryRun(true), SyncWithRunID("preview"))
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Equal(t, "preview", res.RunID)
	assert.Equal(t, []string{"A"}, res.Added)
	assert.Equal(t, 0, f.gw.Len(store.DefaultTables().Form))
}

func TestSyncWithPolicy(t *testing.T) {
	f := newFixture(t, WithPolicy(reconcile.Policy{Origin: records.OriginForm, WatchedFields: []string{"email"}}))
	ctx := context.Background()

	f.form.Set([]records.SourceRecord{formRec("A", "a@example.com")}, nil)
	_, err := f.c.Sync(ctx, records.OriginForm)
	require.NoError(t, err)

	f.form.Set([]records.SourceRecord{formRec("A", "new@example.com")}, nil)
	res, err := f.c.Sync(ctx, records.OriginForm)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, res.Updated)
}

func TestSyncAll(t *testing.T) {
	f := newFixture(t)
	f.form.Set([]records.SourceRecord{formRec("A", "a@example.com")}, nil)
	f.sheet.Set(nil, errors.New("sheet down"))

	results, err := f.c.SyncAll(context.Background())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsFetchError(err))
	require.Len(t, results, 1)
	assert.Equal(t, records.OriginForm, results[0].Origin)
}

func TestSyncSerializesSameOrigin(t *testing.T) {
	f := newFixture(t)
	f.sheet.Set([]records.SourceRecord{sheetRec("A", 1)}, nil)

	var wg sync.WaitGroup
	added := make([][]string, 4)
	for i := range added {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.c.Sync(context.Background(), records.OriginSheet)
			if assert.NoError(t, err) {
				added[i] = res.Added
			}
		}()
	}
	wg.Wait()

	total := 0
	for _, a := range added {
		total += len(a)
	}
	assert.Equal(t, 1, total)
}

func TestMerged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.form.Set([]records.SourceRecord{formRec("A", "a@example.com"), formRec("C", "c@example.com")}, nil)
	f.sheet.Set([]records.SourceRecord{sheetRec("A", 1), sheetRec("B", 2)}, nil)
	_, err := f.c.SyncAll(ctx)
	require.NoError(t, err)

	merged, err := f.c.Merged(ctx)
	require.NoError(t, err)
	require.Len(t, merged, 3)

	assert.Equal(t, "A", merged[0].Key)
	assert.Equal(t, "a@example.com", merged[0].Form["email"])
	assert.Equal(t, 1.0, merged[0].Sheet["total_motility"])
	assert.Equal(t, "B", merged[1].Key)
	assert.Nil(t, merged[1].Form)
	assert.Equal(t, "C", merged[2].Key)
	assert.Nil(t, merged[2].Sheet)
}

func TestHooks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var added, updated, deleted, quarantined, released []string
	f.c.OnRecordAdded(func(r records.SourceRecord) { added = append(added, r.Key) })
	f.c.OnRecordUpdated(func(ch reconcile.Change) { updated = append(updated, ch.Record.Key) })
	f.c.OnRecordDeleted(func(_ records.Origin, key string) { deleted = append(deleted, key) })
	f.c.OnKeyQuarantined(func(q records.QuarantineRecord) { quarantined = append(quarantined, q.Key) })
	f.c.OnKeyReleased(func(_ records.Origin, key string) { released = append(released, key) })
	f.c.OnRecordAdded(func(records.SourceRecord) { panic("broken hook") })

	f.sheet.Set([]records.SourceRecord{sheetRec("A", 1), sheetRec("B", 1), sheetRec("C", 1)}, nil)
	_, err := f.c.Sync(ctx, records.OriginSheet)
	require.NoError(t, err)

	f.sheet.Set([]records.SourceRecord{sheetRec("A", 5), sheetRec("C", 1), sheetRec("C", 2)}, nil)
	_, err = f.c.Sync(ctx, records.OriginSheet)
	require.NoError(t, err)

	f.sheet.Set([]records.SourceRecord{sheetRec("A", 5), sheetRec("C", 2)}, nil)
	_, err = f.c.Sync(ctx, records.OriginSheet)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C", "C"}, added)
	assert.Equal(t, []string{"A"}, updated)
	assert.ElementsMatch(t, []string{"B", "C"}, deleted)
	assert.Equal(t, []string{"C"}, quarantined)
	assert.Equal(t, []string{"C"}, released)
}

func TestSyncLifecycleHooks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var mu sync.Mutex
	var started, completed, failed []string
	f.c.OnSyncStarted(func(o records.Origin, runID string) {
		mu.Lock()
		defer mu.Unlock()
		started = append(started, string(o)+"/"+runID)
	})
	f.c.OnSyncCompleted(func(res *reconcile.Result) {
		mu.Lock()
		defer mu.Unlock()
		completed = append(completed, string(res.Origin)+"/"+res.RunID)
	})
	f.c.OnSyncFailed(func(o records.Origin, runID string, err error) {
		mu.Lock()
		defer mu.Unlock()
		failed = append(failed, string(o)+"/"+runID+": "+err.Error())
	})

	f.sheet.Set([]records.SourceRecord{sheetRec("A", 1)}, nil)
	_, err := f.c.Sync(ctx, records.OriginSheet, SyncWithRunID("r1"), SyncWithDryRun(true))
	require.NoError(t, err)

	f.form.Set(nil, errors.New("typeform down"))
	_, err = f.c.Sync(ctx, records.OriginForm, SyncWithRunID("r2"))
	require.Error(t, err)

	_, err = f.c.Sync(ctx, records.Origin("ledger"))
	require.Error(t, err)

	assert.Equal(t, []string{"sheet/r1", "form/r2"}, started)
	assert.Equal(t, []string{"sheet/r1"}, completed)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0], "form/r2")
	assert.Contains(t, failed[0], "typeform down")
}

func TestScheduledPassFiresLifecycleHooks(t *testing.T) {
	f := newFixture(t, WithAutoSyncInterval(10*time.Millisecond))
	f.sheet.Set([]records.SourceRecord{sheetRec("A", 1)}, nil)
	f.form.Set([]records.SourceRecord{formRec("A", "a@example.com")}, nil)

	var completed atomic.Int32
	f.c.OnSyncCompleted(func(*reconcile.Result) { completed.Add(1) })

	require.NoError(t, f.c.AutoSyncOn())
	assert.Eventually(t, func() bool { return completed.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestMetricsRecorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	f := newFixture(t, WithMetrics(m))

	f.sheet.Set([]records.SourceRecord{sheetRec("A", 1), sheetRec("B", 1), sheetRec("B", 2)}, nil)
	_, err := f.c.Sync(context.Background(), records.OriginSheet)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Passes.WithLabelValues("sheet", metrics.OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Writes.WithLabelValues("sheet", reconcile.OpAdd)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Writes.WithLabelValues("sheet", reconcile.OpQuarantine)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Quarantined.WithLabelValues("sheet")))

	f.sheet.Set(nil, errors.New("down"))
	_, err = f.c.Sync(context.Background(), records.OriginSheet)
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Passes.WithLabelValues("sheet", metrics.OutcomeFailed)))
}

func TestAutoSync(t *testing.T) {
	var runs atomic.Int32
	f := newFixture(t,
		WithAutoSyncInterval(10*time.Millisecond),
		WithAutoSyncFunc(func(ctx context.Context, c Client) error {
			runs.Add(1)
			return nil
		}),
	)

	require.NoError(t, f.c.AutoSyncOn())
	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, f.c.AutoSyncOff())
	require.NoError(t, f.c.AutoSyncOff())
	stopped := runs.Load()
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, runs.Load(), stopped+1)
}

package quarantine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/mirrorsync/pkg/logging"
	"github.com/agentstation/mirrorsync/pkg/records"
	"github.com/agentstation/mirrorsync/pkg/store"
	"github.com/agentstation/mirrorsync/pkg/store/memory"
	"github.com/agentstation/mirrorsync/pkg/store/sqlite"
)

func src(key string, n float64) records.SourceRecord {
	return records.SourceRecord{Key: key, Origin: records.OriginSheet, Fields: records.Fields{"n": n}}
}

func TestPlan(t *testing.T) {
	groups := records.GroupByKey([]records.SourceRecord{
		src("NEW", 1), src("NEW", 2),
		src("STILL", 1), src("STILL", 2), src("STILL", 3),
		src("CLEARED", 1),
		src("PLAIN", 1),
	})
	current := []records.QuarantineRecord{
		{Key: "STILL", Origin: records.OriginSheet},
		{Key: "CLEARED", Origin: records.OriginSheet},
		{Key: "GONE", Origin: records.OriginSheet},
		{Key: "NEW", Origin: records.OriginForm}, // other origin, ignored
	}

	tr := Plan(records.OriginSheet, groups, current)

	require.Len(t, tr.Enter, 1)
	assert.Equal(t, "NEW", tr.Enter[0].Key)
	assert.Equal(t, []records.Fields{{"n": 1.0}, {"n": 2.0}}, tr.Enter[0].ConflictingFieldSets)

	require.Len(t, tr.Refresh, 1)
	assert.Equal(t, "STILL", tr.Refresh[0].Key)
	assert.Len(t, tr.Refresh[0].ConflictingFieldSets, 3)

	assert.Equal(t, []string{"CLEARED", "GONE"}, tr.Release)
	assert.False(t, tr.Empty())
}

func TestPlanNoop(t *testing.T) {
	groups := records.GroupByKey([]records.SourceRecord{src("A", 1)})
	assert.True(t, Plan(records.OriginSheet, groups, nil).Empty())
}

func TestEncodeDecode(t *testing.T) {
	rec := records.QuarantineRecord{
		Key:    "REG#1",
		Origin: records.OriginForm,
		ConflictingFieldSets: []records.Fields{
			{"email": "a@x"},
			{"email": "b@x"},
		},
	}

	fields := Encode(rec)
	assert.Equal(t, 2.0, fields["count"])

	got, err := Decode(store.Item{Key: store.QuarantineKey(rec.Origin, rec.Key), Fields: fields})
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestDecodeRejects(t *testing.T) {
	_, err := Decode(store.Item{Key: "bogus"})
	assert.Error(t, err)

	_, err = Decode(store.Item{Key: "form#A", Fields: records.Fields{"conflicts": "x"}})
	assert.Error(t, err)

	_, err = Decode(store.Item{Key: "form#A", Fields: records.Fields{"conflicts": []any{"x"}}})
	assert.Error(t, err)
}

func TestManagerAgainstBackends(t *testing.T) {
	backends := map[string]func(t *testing.T) store.Gateway{
		"memory": func(t *testing.T) store.Gateway { return memory.New() },
		"sqlite": func(t *testing.T) store.Gateway {
			s, err := sqlite.Open(context.Background(), ":memory:")
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
	for name, newGateway := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			m := New(newGateway(t), "quarantine")

			require.NoError(t, m.Put(ctx, records.QuarantineRecord{
				Key: "B", Origin: records.OriginSheet,
				ConflictingFieldSets: []records.Fields{{"n": 1.0}, {"n": 2.0}},
			}))
			require.NoError(t, m.Put(ctx, records.QuarantineRecord{Key: "A", Origin: records.OriginSheet}))
			require.NoError(t, m.Put(ctx, records.QuarantineRecord{Key: "A", Origin: records.OriginForm}))

			sheet, err := m.List(ctx, records.OriginSheet)
			require.NoError(t, err)
			require.Len(t, sheet, 2)
			assert.Equal(t, "A", sheet[0].Key)
			assert.Equal(t, "B", sheet[1].Key)
			assert.Equal(t, []records.Fields{{"n": 1.0}, {"n": 2.0}}, sheet[1].ConflictingFieldSets)

			all, err := m.List(ctx, "")
			require.NoError(t, err)
			assert.Len(t, all, 3)

			require.NoError(t, m.Release(ctx, records.OriginSheet, "A"))
			sheet, err = m.List(ctx, records.OriginSheet)
			require.NoError(t, err)
			assert.Len(t, sheet, 1)
		})
	}
}

func TestListSkipsUnreadable(t *testing.T) {
	tl := logging.NewTestLogger(t)
	ctx := logging.WithLogger(context.Background(), tl.Logger)
	gw := memory.New()
	require.NoError(t, gw.Put(ctx, "quarantine", "junk", records.Fields{}))
	require.NoError(t, gw.Put(ctx, "quarantine", "form#OK", records.Fields{}))

	got, err := New(gw, "quarantine").List(ctx, records.OriginForm)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "OK", got[0].Key)
	tl.AssertContains(t, "Skipping unreadable quarantine entry")
}

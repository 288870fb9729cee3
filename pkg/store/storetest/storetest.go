// Package storetest holds the behavior every store.Gateway backend must share.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/mirrorsync/pkg/records"
	"github.com/agentstation/mirrorsync/pkg/store"
)

// Factory returns a fresh, empty gateway. Backends should configure a small
// page size so that ScanAll pagination is exercised by PagedItems.
type Factory func(t *testing.T) store.Gateway

// PagedItems is the number of items written by the pagination check.
const PagedItems = 23

// Run runs the gateway contract against a backend.
func Run(t *testing.T, newGateway Factory) {
	t.Helper()

	t.Run("get missing", func(t *testing.T) {
		gw := newGateway(t)
		_, ok, err := gw.Get(context.Background(), "mirror_sheet", "nope")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("put get round trip", func(t *testing.T) {
		gw := newGateway(t)
		ctx := context.Background()
		fields := records.Fields{
			"record_id":      "rec1",
			"total_motility": 55.5,
			"flag":           true,
			"empty":          nil,
			"conflicts":      []any{map[string]any{"k": "v"}},
		}
		require.NoError(t, gw.Put(ctx, "mirror_sheet", "REG-1", fields))

		item, ok, err := gw.Get(ctx, "mirror_sheet", "REG-1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "REG-1", item.Key)
		assert.Equal(t, fields, item.Fields)
	})

	t.Run("put replaces", func(t *testing.T) {
		gw := newGateway(t)
		ctx := context.Background()
		require.NoError(t, gw.Put(ctx, "mirror_form", "A", records.Fields{"a": "1", "b": "2"}))
		require.NoError(t, gw.Put(ctx, "mirror_form", "A", records.Fields{"a": "3"}))

		item, ok, err := gw.Get(ctx, "mirror_form", "A")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, records.Fields{"a": "3"}, item.Fields)
	})

	t.Run("tables are isolated", func(t *testing.T) {
		gw := newGateway(t)
		ctx := context.Background()
		require.NoError(t, gw.Put(ctx, "mirror_form", "A", records.Fields{"o": "form"}))
		require.NoError(t, gw.Put(ctx, "mirror_sheet", "A", records.Fields{"o": "sheet"}))

		form, err := gw.ScanAll(ctx, "mirror_form")
		require.NoError(t, err)
		require.Len(t, form, 1)
		assert.Equal(t, "form", form[0].Fields["o"])

		empty, err := gw.ScanAll(ctx, "quarantine")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("delete", func(t *testing.T) {
		gw := newGateway(t)
		ctx := context.Background()
		require.NoError(t, gw.Put(ctx, "quarantine", "sheet#A", records.Fields{"key": "A"}))
		require.NoError(t, gw.Delete(ctx, "quarantine", "sheet#A"))
		require.NoError(t, gw.Delete(ctx, "quarantine", "sheet#A"))

		_, ok, err := gw.Get(ctx, "quarantine", "sheet#A")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("scan all pages", func(t *testing.T) {
		gw := newGateway(t)
		ctx := context.Background()
		want := make([]string, 0, PagedItems)
		for i := 0; i < PagedItems; i++ {
			key := fmt.Sprintf("REG-%03d", i)
			want = append(want, key)
			require.NoError(t, gw.Put(ctx, "mirror_sheet", key, records.Fields{"n": float64(i)}))
		}

		items, err := gw.ScanAll(ctx, "mirror_sheet")
		require.NoError(t, err)
		got := make([]string, 0, len(items))
		for _, it := range items {
			got = append(got, it.Key)
		}
		sort.Strings(got)
		assert.Equal(t, want, got)
	})
}

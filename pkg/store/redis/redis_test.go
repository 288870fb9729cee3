package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/mirrorsync/pkg/errors"
	"github.com/agentstation/mirrorsync/pkg/records"
	"github.com/agentstation/mirrorsync/pkg/store"
	"github.com/agentstation/mirrorsync/pkg/store/storetest"
)

func newStore(t *testing.T, opts ...Option) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := Dial(context.Background(), "redis://"+mr.Addr(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Gateway {
		s, _ := newStore(t, WithPageSize(4))
		return s
	})
}

func TestHashLayout(t *testing.T) {
	s, mr := newStore(t, WithPrefix("lab"))
	require.NoError(t, s.Put(context.Background(), "mirror_form", "A", records.Fields{"email": "a@b.c"}))

	raw := mr.HGet("lab:mirror_form", "A")
	assert.JSONEq(t, `{"email":"a@b.c"}`, raw)
}

func TestDialBadURL(t *testing.T) {
	_, err := Dial(context.Background(), "::not a url")
	var cfgErr *errors.ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestCorruptValue(t *testing.T) {
	s, mr := newStore(t)
	mr.HSet("mirrorsync:mirror_sheet", "A", "{not json")

	_, _, err := s.Get(context.Background(), "mirror_sheet", "A")
	require.Error(t, err)

	_, err = s.ScanAll(context.Background(), "mirror_sheet")
	require.Error(t, err)
}

func TestNewWrapsClient(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	s := New(client)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Ping(context.Background()))
}

func TestAddPageDeduplicatesRepeatedFields(t *testing.T) {
	seen := map[string]int{}
	items, err := addPage(nil, seen, "mirror_sheet", []string{
		"A", `{"morphology":4}`,
		"B", `{"morphology":5}`,
	})
	require.NoError(t, err)

	// a later cursor page repeats A
	items, err = addPage(items, seen, "mirror_sheet", []string{
		"A", `{"morphology":6}`,
		"C", `{}`,
	})
	require.NoError(t, err)

	require.Len(t, items, 3)
	assert.Equal(t, "A", items[0].Key)
	assert.Equal(t, 6.0, items[0].Fields["morphology"])
	assert.Equal(t, []string{"A", "B", "C"}, []string{items[0].Key, items[1].Key, items[2].Key})
}

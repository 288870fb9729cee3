package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agentstation/mirrorsync/pkg/records"
)

func TestLoadCachesValue(t *testing.T) {
	c := New(time.Minute, time.Minute)
	calls := 0
	load := func() ([]records.MergedRecord, error) {
		calls++
		return []records.MergedRecord{{Key: "A"}}, nil
	}

	got, hit, err := Load(c, MergedKey, load)
	if err != nil || hit {
		t.Fatalf("first load: hit=%v err=%v", hit, err)
	}
	if len(got) != 1 || got[0].Key != "A" {
		t.Fatalf("unexpected value %v", got)
	}

	_, hit, err = Load(c, MergedKey, load)
	if err != nil || !hit {
		t.Fatalf("second load: hit=%v err=%v", hit, err)
	}
	if calls != 1 {
		t.Errorf("expected 1 load call, got %d", calls)
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Items != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestLoadDoesNotCacheErrors(t *testing.T) {
	c := New(time.Minute, time.Minute)
	boom := errors.New("store down")

	_, _, err := Load(c, MergedKey, func() (int, error) { return 0, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}

	v, hit, err := Load(c, MergedKey, func() (int, error) { return 7, nil })
	if err != nil || hit || v != 7 {
		t.Errorf("expected fresh load after error, got v=%d hit=%v err=%v", v, hit, err)
	}
}

func TestInvalidate(t *testing.T) {
	c := New(time.Minute, time.Minute)
	_, _, _ = Load(c, MergedKey, func() (int, error) { return 1, nil })
	_, _, _ = Load(c, QuarantineKey(records.OriginForm), func() (int, error) { return 2, nil })

	c.Invalidate()
	if n := c.Stats().Items; n != 0 {
		t.Fatalf("expected empty cache, got %d items", n)
	}

	v, hit, _ := Load(c, MergedKey, func() (int, error) { return 3, nil })
	if hit || v != 3 {
		t.Errorf("expected reload after invalidate, got v=%d hit=%v", v, hit)
	}
}

func TestExpiry(t *testing.T) {
	c := New(20*time.Millisecond, time.Hour)
	_, _, _ = Load(c, MergedKey, func() (int, error) { return 1, nil })
	time.Sleep(40 * time.Millisecond)

	v, hit, _ := Load(c, MergedKey, func() (int, error) { return 2, nil })
	if hit || v != 2 {
		t.Errorf("expected expired entry to reload, got v=%d hit=%v", v, hit)
	}
}

func TestConcurrentMissesShareLoad(t *testing.T) {
	c := New(time.Minute, time.Minute)
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = Load(c, MergedKey, func() (int, error) {
				calls.Add(1)
				<-release
				return 1, nil
			})
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("expected one shared load, got %d", n)
	}
}

func TestQuarantineKey(t *testing.T) {
	if got := QuarantineKey(""); got != "quarantine:all" {
		t.Errorf("unexpected key %q", got)
	}
	if got := QuarantineKey(records.OriginSheet); got != "quarantine:sheet" {
		t.Errorf("unexpected key %q", got)
	}
}

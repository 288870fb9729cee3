// Package mirrorsync is the entry point for running reconciliation passes.
// A Client pulls a registry, its mirror table and its quarantine entries in
// parallel, then reconciles them through the configured store gateway.
//
// Example usage:
//
//	client, err := mirrorsync.New(gw, sources.NewSet(form, sheet))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.AutoSyncOff()
//
//	// React to landed writes
//	client.OnRecordUpdated(func(ch reconcile.Change) {
//	    log.Printf("updated %s: %d fields", ch.Record.Key, len(ch.Fields))
//	})
//
//	// Run one pass for the sheet registry
//	result, err := client.Sync(ctx, records.OriginSheet)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Summary().Added)
//
//	// Preview both registries without writing
//	results, err := client.SyncAll(ctx, mirrorsync.SyncWithDryRun(true))
package mirrorsync

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agentstation/mirrorsync/internal/sources"
	"github.com/agentstation/mirrorsync/pkg/errors"
	"github.com/agentstation/mirrorsync/pkg/reconcile"
	"github.com/agentstation/mirrorsync/pkg/records"
	"github.com/agentstation/mirrorsync/pkg/store"
)

// Compile-time interface check to ensure proper implementation.
var _ Client = (*client)(nil)

// Reader reads the mirrored state without contacting the registries.
type Reader interface {
	// Merged joins both mirror tables by key.
	Merged(ctx context.Context) ([]records.MergedRecord, error)

	// Quarantined lists quarantined keys; an empty origin lists both.
	Quarantined(ctx context.Context, origin records.Origin) ([]records.QuarantineRecord, error)
}

// Client runs reconciliation passes with optional scheduling and event hooks.
type Client interface {

	// Syncer runs passes
	Syncer

	// Reader reads mirrored state
	Reader

	// AutoSyncer provides access to scheduled passes
	AutoSyncer

	// Hooks provides access to event callback registration
	Hooks
}

// client is the internal implementation of the Client interface.
type client struct {

	// options are the configured options for the client
	options *options

	gw         store.Gateway
	sources    *sources.Set
	reconciler *reconcile.Reconciler

	// one lock per origin; passes for the same origin never overlap
	locks map[records.Origin]*sync.Mutex

	// auto sync state
	autoMu     sync.Mutex
	ticker     *time.Ticker
	stopCh     chan struct{}
	syncCancel context.CancelFunc

	hooks *hooks
}

// New creates a Client reconciling the registries in srcs against gw.
func New(gw store.Gateway, srcs *sources.Set, opts ...Option) (Client, error) {
	if gw == nil {
		return nil, errors.NewConfigError("client", "store gateway is required", nil)
	}
	if srcs == nil {
		srcs = sources.NewSet()
	}

	o, err := defaults().apply(opts...)
	if err != nil {
		return nil, err
	}

	c := &client{
		options: o,
		gw:      gw,
		sources: srcs,
		locks:   make(map[records.Origin]*sync.Mutex),
		stopCh:  make(chan struct{}),
		hooks:   newHooks(),
	}
	for _, origin := range records.Origins() {
		c.locks[origin] = &sync.Mutex{}
	}
	c.reconciler = reconcile.New(gw, o.tables, reconcile.WithObserver(c.hooks))

	if o.autoSyncEnabled {
		if err := c.AutoSyncOn(); err != nil {
			return nil, errors.WrapResource("start", "auto-sync", "", err)
		}
	}

	return c, nil
}

// Merged scans both mirrors in parallel and joins them by key, sorted.
func (c *client) Merged(ctx context.Context) ([]records.MergedRecord, error) {
	tables := c.reconciler.Tables()

	var form, sheet []store.Item
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := c.gw.ScanAll(gctx, tables.Form)
		if err != nil {
			return errors.NewFetchError(string(records.OriginForm), StageMirror, err)
		}
		form = items
		return nil
	})
	g.Go(func() error {
		items, err := c.gw.ScanAll(gctx, tables.Sheet)
		if err != nil {
			return errors.NewFetchError(string(records.OriginSheet), StageMirror, err)
		}
		sheet = items
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byKey := make(map[string]*records.MergedRecord, len(form)+len(sheet))
	entry := func(key string) *records.MergedRecord {
		m, ok := byKey[key]
		if !ok {
			m = &records.MergedRecord{Key: key}
			byKey[key] = m
		}
		return m
	}
	for _, it := range form {
		entry(it.Key).Form = it.Fields
	}
	for _, it := range sheet {
		entry(it.Key).Sheet = it.Fields
	}

	out := make([]records.MergedRecord, 0, len(byKey))
	for _, m := range byKey {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Quarantined lists quarantine entries for origin, or for both origins when empty.
func (c *client) Quarantined(ctx context.Context, origin records.Origin) ([]records.QuarantineRecord, error) {
	if origin != "" && !origin.Valid() {
		return nil, errors.NewValidationError("origin", origin, "unknown origin")
	}
	return c.reconciler.Quarantine().List(ctx, origin)
}

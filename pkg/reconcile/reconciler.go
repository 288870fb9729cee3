// Package reconcile computes and applies the difference between a registry's
// current records and the mirror of that registry.
//
// A pass is best-effort: every put and delete is attempted on its own, a
// failed write is logged and reported in Result.Failures, and the remaining
// writes still run. Nothing is retried.
package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/agentstation/mirrorsync/pkg/errors"
	"github.com/agentstation/mirrorsync/pkg/logging"
	"github.com/agentstation/mirrorsync/pkg/quarantine"
	"github.com/agentstation/mirrorsync/pkg/records"
	"github.com/agentstation/mirrorsync/pkg/store"
)

// Reconciler applies plans through a store gateway.
type Reconciler struct {
	gw         store.Gateway
	tables     store.Tables
	quarantine *quarantine.Manager
	observer   Observer
	now        func() time.Time
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithObserver registers an observer for landed writes.
func WithObserver(o Observer) Option {
	return func(r *Reconciler) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// New returns a Reconciler writing to tables through gw.
func New(gw store.Gateway, tables store.Tables, opts ...Option) *Reconciler {
	tables = tables.WithDefaults()
	r := &Reconciler{
		gw:         gw,
		tables:     tables,
		quarantine: quarantine.New(gw, tables.Quarantine),
		observer:   nopObserver{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Tables returns the table names in use.
func (r *Reconciler) Tables() store.Tables {
	return r.tables
}

// Quarantine returns the quarantine manager sharing the reconciler's gateway.
func (r *Reconciler) Quarantine() *quarantine.Manager {
	return r.quarantine
}

// RunOptions control a single pass.
type RunOptions struct {
	RunID  string
	DryRun bool
}

// RunOption configures a single pass.
type RunOption func(*RunOptions)

// WithRunID sets the pass id; a random one is generated otherwise.
func WithRunID(id string) RunOption {
	return func(o *RunOptions) { o.RunID = id }
}

// WithDryRun computes the result without writing anything.
func WithDryRun(dryRun bool) RunOption {
	return func(o *RunOptions) { o.DryRun = dryRun }
}

// Reconcile plans and applies one pass for policy.Origin. The only error
// returned is an invalid policy; write failures are in the result.
func (r *Reconciler) Reconcile(
	ctx context.Context,
	policy Policy,
	src []records.SourceRecord,
	mirror []records.MirrorRecord,
	quarantined []records.QuarantineRecord,
	opts ...RunOption,
) (*Result, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return r.Apply(ctx, NewPlan(policy, src, mirror, quarantined), opts...), nil
}

// Apply performs the writes of plan: quarantine transitions first, then
// additions, updates and deletions, each set in key order.
func (r *Reconciler) Apply(ctx context.Context, plan *Plan, opts ...RunOption) *Result {
	o := RunOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.RunID == "" {
		o.RunID = uuid.NewString()
	}

	origin := plan.Policy.Origin
	table := r.tables.Mirror(origin)
	started := r.now()

	ctx = logging.WithRunID(logging.WithOrigin(ctx, string(origin)), o.RunID)
	log := logging.FromContext(ctx)

	res := &Result{
		Origin:      origin,
		RunID:       o.RunID,
		DryRun:      o.DryRun,
		Added:       []string{},
		Updated:     []string{},
		Deleted:     []string{},
		Duplicates:  []DuplicateKey{},
		SourceCount: plan.SourceCount,
		MirrorCount: plan.MirrorCount,
		StartedAt:   started,
	}
	for _, key := range plan.DuplicateKeys() {
		res.Duplicates = append(res.Duplicates, DuplicateKey{Key: key, Count: plan.Duplicates[key]})
		log.Warn().Str("key", key).Int("count", plan.Duplicates[key]).Msg("Duplicate key in source")
	}

	if o.DryRun {
		r.fillDryRun(res, plan)
		res.Duration = r.now().Sub(started)
		return res
	}

	fail := func(op, tbl, key string, err error) {
		werr := errors.NewWriteError(op, tbl, key, err)
		log.Error().Err(werr).Str("key", key).Str("op", op).Msg("Write failed")
		res.Failures = append(res.Failures, WriteFailure{Key: key, Op: op, Error: err.Error(), Err: werr})
	}

	qt := plan.Quarantine
	for _, group := range [][]records.QuarantineRecord{qt.Enter, qt.Refresh} {
		for _, q := range group {
			if err := r.quarantine.Put(ctx, q); err != nil {
				fail(OpQuarantine, r.tables.Quarantine, q.Key, err)
				continue
			}
			res.Quarantined = append(res.Quarantined, q.Key)
			r.observer.KeyQuarantined(ctx, q)
		}
	}
	for _, key := range qt.Release {
		if err := r.quarantine.Release(ctx, origin, key); err != nil {
			fail(OpRelease, r.tables.Quarantine, key, err)
			continue
		}
		res.Released = append(res.Released, key)
		log.Info().Str("key", key).Msg("Released key from quarantine")
		r.observer.KeyReleased(ctx, origin, key)
	}

	for _, rec := range plan.Added {
		if err := r.gw.Put(ctx, table, rec.Key, rec.Fields); err != nil {
			fail(OpAdd, table, rec.Key, err)
			continue
		}
		res.Added = append(res.Added, rec.Key)
		log.Debug().Str("key", rec.Key).Msg("Added mirror record")
		r.observer.RecordAdded(ctx, rec)
	}

	for _, ch := range plan.Updated {
		if err := r.gw.Put(ctx, table, ch.Record.Key, ch.Record.Fields); err != nil {
			fail(OpUpdate, table, ch.Record.Key, err)
			continue
		}
		res.Updated = append(res.Updated, ch.Record.Key)
		log.Debug().Str("key", ch.Record.Key).Interface("changes", ch.Fields).Msg("Updated mirror record")
		r.observer.RecordUpdated(ctx, ch)
	}

	for _, key := range plan.Deleted {
		if err := r.gw.Delete(ctx, table, key); err != nil {
			fail(OpDelete, table, key, err)
			continue
		}
		res.Deleted = append(res.Deleted, key)
		log.Debug().Str("key", key).Msg("Deleted mirror record")
		r.observer.RecordDeleted(ctx, origin, key)
	}

	res.Duration = r.now().Sub(started)
	log.Info().
		Int("source", res.SourceCount).
		Int("mirror", res.MirrorCount).
		Int("added", len(res.Added)).
		Int("updated", len(res.Updated)).
		Int("deleted", len(res.Deleted)).
		Int("duplicates", len(res.Duplicates)).
		Int("failures", len(res.Failures)).
		Dur("duration", res.Duration).
		Msg("Reconciliation completed")
	return res
}

func (r *Reconciler) fillDryRun(res *Result, plan *Plan) {
	for _, rec := range plan.Added {
		res.Added = append(res.Added, rec.Key)
	}
	for _, ch := range plan.Updated {
		res.Updated = append(res.Updated, ch.Record.Key)
	}
	res.Deleted = append(res.Deleted, plan.Deleted...)
	for _, q := range plan.Quarantine.Enter {
		res.Quarantined = append(res.Quarantined, q.Key)
	}
	for _, q := range plan.Quarantine.Refresh {
		res.Quarantined = append(res.Quarantined, q.Key)
	}
	res.Released = append(res.Released, plan.Quarantine.Release...)
}

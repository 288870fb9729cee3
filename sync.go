package mirrorsync

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/agentstation/mirrorsync/internal/metrics"
	"github.com/agentstation/mirrorsync/internal/sources"
	"github.com/agentstation/mirrorsync/pkg/errors"
	"github.com/agentstation/mirrorsync/pkg/logging"
	"github.com/agentstation/mirrorsync/pkg/reconcile"
	"github.com/agentstation/mirrorsync/pkg/records"
)

// Fetch stages reported in errors.FetchError.Stage.
const (
	StageSource     = "source"
	StageMirror     = "mirror"
	StageQuarantine = "quarantine"
)

// Syncer runs reconciliation passes.
type Syncer interface {
	// Sync runs one pass for origin. A non-nil error means nothing was written.
	Sync(ctx context.Context, origin records.Origin, opts ...SyncOption) (*reconcile.Result, error)

	// SyncAll runs one pass per registered origin concurrently. Results of
	// passes that succeeded are returned even when another one failed.
	SyncAll(ctx context.Context, opts ...SyncOption) ([]*reconcile.Result, error)
}

// SyncOptions control a single pass.
type SyncOptions struct {
	DryRun  bool
	RunID   string
	Timeout time.Duration
}

// SyncOption configures a single pass.
type SyncOption func(*SyncOptions)

// NewSyncOptions applies opts over the zero options.
func NewSyncOptions(opts ...SyncOption) *SyncOptions {
	o := &SyncOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SyncWithDryRun computes the pass without writing.
func SyncWithDryRun(dryRun bool) SyncOption {
	return func(o *SyncOptions) { o.DryRun = dryRun }
}

// SyncWithRunID sets the pass id used in logs and results.
func SyncWithRunID(id string) SyncOption {
	return func(o *SyncOptions) { o.RunID = id }
}

// SyncWithTimeout bounds the whole pass, fetches included.
func SyncWithTimeout(d time.Duration) SyncOption {
	return func(o *SyncOptions) { o.Timeout = d }
}

// Sync runs one reconciliation pass for origin.
func (c *client) Sync(ctx context.Context, origin records.Origin, opts ...SyncOption) (*reconcile.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	options := NewSyncOptions(opts...)

	if !origin.Valid() {
		return nil, errors.NewValidationError("origin", origin, "unknown origin")
	}
	policy := c.options.policies[origin]
	src, err := c.sources.Get(origin)
	if err != nil {
		return nil, errors.NewConfigError("sources", "no registry configured for "+string(origin), err)
	}

	if options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
		defer cancel()
	}
	if options.RunID == "" {
		options.RunID = uuid.NewString()
	}

	ctx, span := c.options.tracer.Start(ctx, "mirrorsync.Sync", trace.WithAttributes(
		attribute.String("mirrorsync.origin", string(origin)),
		attribute.String("mirrorsync.run_id", options.RunID),
		attribute.Bool("mirrorsync.dry_run", options.DryRun),
	))
	defer span.End()

	lock := c.locks[origin]
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	ctx = logging.WithRunID(logging.WithOrigin(ctx, string(origin)), options.RunID)
	log := logging.FromContext(ctx)
	log.Info().Bool("dry_run", options.DryRun).Msg("Starting sync pass")
	c.hooks.syncStarted(ctx, origin, options.RunID)

	current, mirror, quarantined, err := c.fetch(ctx, src)
	if err != nil {
		err = errors.WrapTimeout("sync "+string(origin), options.Timeout, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		c.options.metrics.ObservePass(string(origin), metrics.OutcomeFailed, start)
		log.Error().Err(err).Msg("Sync pass aborted")
		c.hooks.syncFailed(ctx, origin, options.RunID, err)
		return nil, err
	}

	result, err := c.reconciler.Reconcile(ctx, policy, current, mirror, quarantined,
		reconcile.WithRunID(options.RunID),
		reconcile.WithDryRun(options.DryRun),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid policy")
		c.options.metrics.ObservePass(string(origin), metrics.OutcomeFailed, start)
		c.hooks.syncFailed(ctx, origin, options.RunID, err)
		return nil, err
	}

	c.record(result, start)
	span.SetAttributes(
		attribute.Int("mirrorsync.added", len(result.Added)),
		attribute.Int("mirrorsync.updated", len(result.Updated)),
		attribute.Int("mirrorsync.deleted", len(result.Deleted)),
		attribute.Int("mirrorsync.duplicates", len(result.Duplicates)),
		attribute.Int("mirrorsync.failures", len(result.Failures)),
	)
	if result.Failed() {
		span.SetStatus(codes.Error, "some writes failed")
	}
	c.hooks.syncCompleted(ctx, result)
	return result, nil
}

// SyncAll runs every registered origin concurrently.
func (c *client) SyncAll(ctx context.Context, opts ...SyncOption) ([]*reconcile.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	origins := c.sources.Origins()
	if len(origins) == 0 {
		return nil, errors.NewConfigError("sources", "no registries configured", nil)
	}

	results := make([]*reconcile.Result, len(origins))
	errs := make([]error, len(origins))

	var g errgroup.Group
	for i, origin := range origins {
		i, origin := i, origin
		g.Go(func() error {
			results[i], errs[i] = c.Sync(ctx, origin, opts...)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]*reconcile.Result, 0, len(origins))
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out, stderrors.Join(errs...)
}

// fetch pulls the registry, the mirror table and the quarantine entries of
// one origin concurrently. The first failure cancels the others.
func (c *client) fetch(ctx context.Context, src sources.Source) (
	[]records.SourceRecord, []records.MirrorRecord, []records.QuarantineRecord, error,
) {
	origin := src.Origin()
	var (
		current     []records.SourceRecord
		mirror      []records.MirrorRecord
		quarantined []records.QuarantineRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		recs, err := src.Fetch(gctx)
		if err != nil {
			return errors.NewFetchError(string(origin), StageSource, err)
		}
		current = recs
		return nil
	})
	g.Go(func() error {
		items, err := c.gw.ScanAll(gctx, c.reconciler.Tables().Mirror(origin))
		if err != nil {
			return errors.NewFetchError(string(origin), StageMirror, err)
		}
		mirror = items
		return nil
	})
	g.Go(func() error {
		recs, err := c.reconciler.Quarantine().List(gctx, origin)
		if err != nil {
			return errors.NewFetchError(string(origin), StageQuarantine, err)
		}
		quarantined = recs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}

	logging.FromContext(ctx).Debug().
		Int("source", len(current)).
		Int("mirror", len(mirror)).
		Int("quarantined", len(quarantined)).
		Msg("Fetched record sets")
	return current, mirror, quarantined, nil
}

// record feeds a finished pass into the metrics.
func (c *client) record(res *reconcile.Result, start time.Time) {
	m := c.options.metrics
	origin := string(res.Origin)

	outcome := metrics.OutcomeOK
	if res.Failed() {
		outcome = metrics.OutcomePartial
	}
	m.ObservePass(origin, outcome, start)
	m.SetDuplicates(origin, len(res.Duplicates))
	if res.DryRun {
		return
	}
	m.AddWrites(origin, reconcile.OpAdd, len(res.Added))
	m.AddWrites(origin, reconcile.OpUpdate, len(res.Updated))
	m.AddWrites(origin, reconcile.OpDelete, len(res.Deleted))
	m.AddWrites(origin, reconcile.OpQuarantine, len(res.Quarantined))
	m.AddWrites(origin, reconcile.OpRelease, len(res.Released))
	for _, f := range res.Failures {
		m.IncWriteFailure(origin, f.Op)
	}
}

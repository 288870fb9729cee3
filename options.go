package mirrorsync

import (
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentstation/mirrorsync/internal/metrics"
	"github.com/agentstation/mirrorsync/pkg/constants"
	"github.com/agentstation/mirrorsync/pkg/errors"
	"github.com/agentstation/mirrorsync/pkg/reconcile"
	"github.com/agentstation/mirrorsync/pkg/records"
	"github.com/agentstation/mirrorsync/pkg/store"
)

// TracerName is the instrumentation name of pass spans.
const TracerName = "github.com/agentstation/mirrorsync"

// Option is a function that configures a Client.
type Option func(*options) error

type options struct {
	tables   store.Tables
	policies map[records.Origin]reconcile.Policy
	metrics  *metrics.Metrics
	tracer   trace.Tracer

	autoSyncEnabled  bool
	autoSyncInterval time.Duration
	autoSyncFunc     AutoSyncFunc
}

func defaults() *options {
	o := &options{
		tables:           store.DefaultTables(),
		policies:         make(map[records.Origin]reconcile.Policy),
		tracer:           otel.Tracer(TracerName),
		autoSyncInterval: constants.DefaultSyncInterval,
	}
	for _, origin := range records.Origins() {
		o.policies[origin] = reconcile.DefaultPolicy(origin)
	}
	return o
}

func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// WithTables overrides the table names; empty names keep their defaults.
func WithTables(t store.Tables) Option {
	return func(o *options) error {
		o.tables = t.WithDefaults()
		return nil
	}
}

// WithPolicy replaces the reconciliation policy of policy.Origin.
func WithPolicy(policy reconcile.Policy) Option {
	return func(o *options) error {
		if err := policy.Validate(); err != nil {
			return err
		}
		o.policies[policy.Origin] = policy
		return nil
	}
}

// WithMetrics records pass metrics in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) error {
		o.metrics = m
		return nil
	}
}

// WithTracer sets the tracer used for pass spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) error {
		if t == nil {
			return &errors.ValidationError{Field: "tracer", Message: "tracer must not be nil"}
		}
		o.tracer = t
		return nil
	}
}

// WithAutoSync configures whether scheduled passes start with the client.
func WithAutoSync(enabled bool) Option {
	return func(o *options) error {
		o.autoSyncEnabled = enabled
		return nil
	}
}

// WithAutoSyncInterval configures how often scheduled passes run.
func WithAutoSyncInterval(interval time.Duration) Option {
	return func(o *options) error {
		o.autoSyncInterval = interval
		return nil
	}
}

// WithAutoSyncFunc replaces the function run on every tick.
func WithAutoSyncFunc(fn AutoSyncFunc) Option {
	return func(o *options) error {
		o.autoSyncFunc = fn
		return nil
	}
}

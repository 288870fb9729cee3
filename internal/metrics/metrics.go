// Package metrics exposes Prometheus instrumentation for sync passes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks pass outcomes and write counts per origin.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Passes        *prometheus.CounterVec
	Writes        *prometheus.CounterVec
	WriteFailures *prometheus.CounterVec
	Quarantined   *prometheus.GaugeVec
	PassDuration  *prometheus.HistogramVec
}

// New registers all metrics with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Passes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mirrorsync_passes_total",
			Help: "Sync passes by origin and outcome (ok, partial, failed)",
		}, []string{"origin", "outcome"}),
		Writes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mirrorsync_writes_total",
			Help: "Landed store writes by origin and operation",
		}, []string{"origin", "op"}),
		WriteFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mirrorsync_write_failures_total",
			Help: "Failed store writes by origin and operation",
		}, []string{"origin", "op"}),
		Quarantined: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mirrorsync_duplicate_keys",
			Help: "Duplicate keys seen in the last pass per origin",
		}, []string{"origin"}),
		PassDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mirrorsync_pass_duration_seconds",
			Help:    "Duration of sync passes including fetches",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"origin"}),
	}
}

// Outcome labels.
const (
	OutcomeOK      = "ok"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
)

// ObservePass records one finished pass. Call with time.Now() at the start
// of the pass.
func (m *Metrics) ObservePass(origin, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.Passes.WithLabelValues(origin, outcome).Inc()
	m.PassDuration.WithLabelValues(origin).Observe(time.Since(start).Seconds())
}

// AddWrites records n landed writes.
func (m *Metrics) AddWrites(origin, op string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.Writes.WithLabelValues(origin, op).Add(float64(n))
}

// IncWriteFailure records one failed write.
func (m *Metrics) IncWriteFailure(origin, op string) {
	if m == nil {
		return
	}
	m.WriteFailures.WithLabelValues(origin, op).Inc()
}

// SetDuplicates records the duplicate key count of the latest pass.
func (m *Metrics) SetDuplicates(origin string, n int) {
	if m == nil {
		return
	}
	m.Quarantined.WithLabelValues(origin).Set(float64(n))
}

package reconcile

import (
	"time"

	"github.com/agentstation/mirrorsync/pkg/records"
)

// Write operations reported in WriteFailure.Op.
const (
	OpAdd        = "add"
	OpUpdate     = "update"
	OpDelete     = "delete"
	OpQuarantine = "quarantine"
	OpRelease    = "release"
)

// WriteFailure records one write that did not land.
type WriteFailure struct {
	Key   string `json:"key" yaml:"key"`
	Op    string `json:"op" yaml:"op"`
	Error string `json:"error" yaml:"error"`
	Err   error  `json:"-" yaml:"-"`
}

// DuplicateKey is a key seen more than once in the source.
type DuplicateKey struct {
	Key   string `json:"registration_number" yaml:"registration_number"`
	Count int    `json:"count" yaml:"count"`
}

// Result is the outcome of one pass. Key lists hold only writes that
// succeeded, in the order they were issued.
type Result struct {
	Origin records.Origin `json:"origin" yaml:"origin"`
	RunID  string         `json:"run_id" yaml:"run_id"`
	DryRun bool           `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`

	Added      []string       `json:"added" yaml:"added"`
	Updated    []string       `json:"updated" yaml:"updated"`
	Deleted    []string       `json:"deleted" yaml:"deleted"`
	Duplicates []DuplicateKey `json:"duplicates" yaml:"duplicates"`

	Quarantined []string `json:"quarantined,omitempty" yaml:"quarantined,omitempty"`
	Released    []string `json:"released,omitempty" yaml:"released,omitempty"`

	Failures []WriteFailure `json:"failures,omitempty" yaml:"failures,omitempty"`

	SourceCount int           `json:"source_count" yaml:"source_count"`
	MirrorCount int           `json:"mirror_count" yaml:"mirror_count"`
	StartedAt   time.Time     `json:"started_at" yaml:"started_at"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
}

// DuplicateKeys returns the duplicate keys in sorted order.
func (r *Result) DuplicateKeys() []string {
	keys := make([]string, len(r.Duplicates))
	for i, d := range r.Duplicates {
		keys[i] = d.Key
	}
	return keys
}

// Failed reports whether any write failed.
func (r *Result) Failed() bool {
	return len(r.Failures) > 0
}

// Summary is the compact view of a Result returned by the API and CLI.
type Summary struct {
	Origin      records.Origin `json:"origin" yaml:"origin"`
	RunID       string         `json:"run_id" yaml:"run_id"`
	DryRun      bool           `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
	SourceCount int            `json:"total_source_records" yaml:"total_source_records"`
	MirrorCount int            `json:"total_mirror_records" yaml:"total_mirror_records"`
	Added       int            `json:"added" yaml:"added"`
	Updated     int            `json:"updated" yaml:"updated"`
	Deleted     int            `json:"deleted" yaml:"deleted"`
	Duplicates  int            `json:"duplicates" yaml:"duplicates"`
	Quarantined int            `json:"quarantined" yaml:"quarantined"`
	Released    int            `json:"released" yaml:"released"`
	Failures    int            `json:"failures" yaml:"failures"`
	Duration    string         `json:"duration" yaml:"duration"`

	DuplicateKeys []DuplicateKey `json:"duplicate_registration_numbers" yaml:"duplicate_registration_numbers"`
	FailedWrites  []WriteFailure `json:"failed_writes,omitempty" yaml:"failed_writes,omitempty"`
}

// Summary condenses the result into counts.
func (r *Result) Summary() Summary {
	dups := r.Duplicates
	if dups == nil {
		dups = []DuplicateKey{}
	}
	return Summary{
		Origin:        r.Origin,
		RunID:         r.RunID,
		DryRun:        r.DryRun,
		SourceCount:   r.SourceCount,
		MirrorCount:   r.MirrorCount,
		Added:         len(r.Added),
		Updated:       len(r.Updated),
		Deleted:       len(r.Deleted),
		Duplicates:    len(r.Duplicates),
		Quarantined:   len(r.Quarantined),
		Released:      len(r.Released),
		Failures:      len(r.Failures),
		Duration:      r.Duration.Round(time.Millisecond).String(),
		DuplicateKeys: dups,
		FailedWrites:  r.Failures,
	}
}

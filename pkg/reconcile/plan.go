package reconcile

import (
	"sort"

	"github.com/agentstation/mirrorsync/pkg/compare"
	"github.com/agentstation/mirrorsync/pkg/quarantine"
	"github.com/agentstation/mirrorsync/pkg/records"
)

// Change is a singleton source record whose watched fields differ from its mirror copy.
type Change struct {
	Record   records.SourceRecord
	Previous records.Fields
	Fields   []compare.FieldChange
}

// Plan is the diff between the source and the mirror of one origin. Building
// a plan has no side effects.
type Plan struct {
	Policy Policy

	Added      []records.SourceRecord
	Updated    []Change
	Deleted    []string
	Duplicates map[string]int // key -> number of source records

	Quarantine quarantine.Transitions

	SourceCount int
	MirrorCount int
}

// NewPlan groups src by key and classifies every key:
//   - keys with more than one record are duplicates and go to quarantine
//   - singletons missing from the mirror are added
//   - mirror keys that are not singletons (gone or duplicated) are deleted
//   - singletons present in both are updated when watched fields differ
//
// Every list is sorted by key.
func NewPlan(policy Policy, src []records.SourceRecord, mirror []records.MirrorRecord, quarantined []records.QuarantineRecord) *Plan {
	groups := records.GroupByKey(src)

	p := &Plan{
		Policy:      policy,
		Duplicates:  make(map[string]int),
		Quarantine:  quarantine.Plan(policy.Origin, groups, quarantined),
		SourceCount: len(src),
		MirrorCount: len(mirror),
	}

	singletons := make(map[string]records.SourceRecord, len(groups))
	for key, group := range groups {
		if len(group) > 1 {
			p.Duplicates[key] = len(group)
			continue
		}
		singletons[key] = group[0]
	}

	mirrored := make(map[string]records.Fields, len(mirror))
	for _, m := range mirror {
		mirrored[m.Key] = m.Fields
	}

	for key, rec := range singletons {
		current, ok := mirrored[key]
		if !ok {
			p.Added = append(p.Added, rec)
			continue
		}
		if !policy.DetectsUpdates() {
			continue
		}
		if !compare.Equivalent(rec.Fields, current, policy.WatchedFields) {
			p.Updated = append(p.Updated, Change{
				Record:   rec,
				Previous: current,
				Fields:   compare.Diff(current, rec.Fields, policy.WatchedFields),
			})
		}
	}

	for key := range mirrored {
		if _, ok := singletons[key]; !ok {
			p.Deleted = append(p.Deleted, key)
		}
	}

	sort.Slice(p.Added, func(i, j int) bool { return p.Added[i].Key < p.Added[j].Key })
	sort.Slice(p.Updated, func(i, j int) bool { return p.Updated[i].Record.Key < p.Updated[j].Record.Key })
	sort.Strings(p.Deleted)
	return p
}

// DuplicateKeys returns the duplicate keys in sorted order.
func (p *Plan) DuplicateKeys() []string {
	keys := make([]string, 0, len(p.Duplicates))
	for k := range p.Duplicates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Empty reports whether applying the plan would write nothing.
func (p *Plan) Empty() bool {
	return len(p.Added) == 0 && len(p.Updated) == 0 && len(p.Deleted) == 0 && p.Quarantine.Empty()
}

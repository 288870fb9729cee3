package quarantine

import (
	"sort"

	"github.com/agentstation/mirrorsync/pkg/records"
)

// Transitions are the quarantine writes one pass must make.
type Transitions struct {
	// Enter holds keys that become ambiguous this pass.
	Enter []records.QuarantineRecord
	// Refresh holds keys that stay ambiguous; their conflict set is overwritten.
	Refresh []records.QuarantineRecord
	// Release holds quarantined keys that now have at most one source record.
	Release []string
}

// Empty reports whether no write is needed.
func (t Transitions) Empty() bool {
	return len(t.Enter) == 0 && len(t.Refresh) == 0 && len(t.Release) == 0
}

// Plan applies the per-key state machine:
//
//	absent      -> quarantined  when the key has more than one source record
//	quarantined -> quarantined  while it still has more than one (overwrite)
//	quarantined -> absent       once it has at most one, including zero
//	absent      -> absent       otherwise
//
// Output lists are sorted by key.
func Plan(origin records.Origin, groups map[string][]records.SourceRecord, current []records.QuarantineRecord) Transitions {
	quarantined := make(map[string]bool, len(current))
	for _, q := range current {
		if q.Origin == origin {
			quarantined[q.Key] = true
		}
	}

	var t Transitions
	for key, group := range groups {
		if len(group) <= 1 {
			continue
		}
		sets := make([]records.Fields, 0, len(group))
		for _, r := range group {
			sets = append(sets, r.Fields.Clone())
		}
		rec := records.QuarantineRecord{Key: key, Origin: origin, ConflictingFieldSets: sets}
		if quarantined[key] {
			t.Refresh = append(t.Refresh, rec)
		} else {
			t.Enter = append(t.Enter, rec)
		}
	}
	for key := range quarantined {
		if len(groups[key]) <= 1 {
			t.Release = append(t.Release, key)
		}
	}

	byKey := func(s []records.QuarantineRecord) func(i, j int) bool {
		return func(i, j int) bool { return s[i].Key < s[j].Key }
	}
	sort.Slice(t.Enter, byKey(t.Enter))
	sort.Slice(t.Refresh, byKey(t.Refresh))
	sort.Strings(t.Release)
	return t
}

// Package records defines the record shapes exchanged between the registry
// clients, the reconciler and the mirror store.
package records

import (
	"encoding/json"
	"fmt"
	"maps"
	"sort"
	"strings"

	"github.com/agentstation/mirrorsync/pkg/errors"
)

// Origin identifies the registry a record came from.
type Origin string

// Known origins.
const (
	OriginForm  Origin = "form"  // form-submission registry (Typeform)
	OriginSheet Origin = "sheet" // spreadsheet-style registry (Airtable)
)

// Origins lists every known origin in a stable order.
func Origins() []Origin {
	return []Origin{OriginForm, OriginSheet}
}

// String returns the origin as a string.
func (o Origin) String() string { return string(o) }

// Valid reports whether o is a known origin.
func (o Origin) Valid() bool {
	return o == OriginForm || o == OriginSheet
}

// ParseOrigin parses an origin name. Registry names are accepted as aliases.
func ParseOrigin(s string) (Origin, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "form", "typeform":
		return OriginForm, nil
	case "sheet", "airtable":
		return OriginSheet, nil
	}
	return "", errors.NewValidationError("origin", s, fmt.Sprintf("unknown origin %q (want form or sheet)", s))
}

// Fields is an arbitrary set of named values. Values are JSON-compatible.
type Fields map[string]any

// Clone returns a shallow copy of f. A nil map clones to an empty one.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	maps.Copy(out, f)
	return out
}

// Names returns the field names in sorted order.
func (f Fields) Names() []string {
	names := make([]string, 0, len(f))
	for k := range f {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// MarshalJSON keeps nil maps as {} so stored items are never null.
func (f Fields) MarshalJSON() ([]byte, error) {
	if f == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]any(f))
}

// SourceRecord is one normalized record fetched from a registry during a pass.
type SourceRecord struct {
	Key    string `json:"key"`
	Fields Fields `json:"fields"`
	Origin Origin `json:"origin"`
}

// MirrorRecord is the stored copy of a uniquely keyed source record.
type MirrorRecord struct {
	Key    string `json:"key"`
	Fields Fields `json:"fields"`
}

// QuarantineRecord holds every field-set seen for a key that is ambiguous
// within one origin.
type QuarantineRecord struct {
	Key                  string   `json:"key"`
	Origin               Origin   `json:"origin"`
	ConflictingFieldSets []Fields `json:"conflicting_field_sets"`
}

// MergedRecord joins both mirrors by business key.
type MergedRecord struct {
	Key   string `json:"registration_number" yaml:"registration_number"`
	Form  Fields `json:"typeform_data" yaml:"typeform_data"`
	Sheet Fields `json:"airtable_data" yaml:"airtable_data"`
}

// GroupByKey groups source records by key preserving fetch order within each group.
func GroupByKey(recs []SourceRecord) map[string][]SourceRecord {
	groups := make(map[string][]SourceRecord, len(recs))
	for _, r := range recs {
		groups[r.Key] = append(groups[r.Key], r)
	}
	return groups
}

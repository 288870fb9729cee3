// Package quarantine tracks keys that appear more than once within one
// origin. A quarantined key holds every conflicting field-set and is kept
// out of that origin's mirror until the conflict clears.
package quarantine

import (
	"context"
	"sort"

	"github.com/agentstation/mirrorsync/pkg/errors"
	"github.com/agentstation/mirrorsync/pkg/logging"
	"github.com/agentstation/mirrorsync/pkg/records"
	"github.com/agentstation/mirrorsync/pkg/store"
)

// Stored field names of a quarantine item.
const (
	fieldOrigin    = "origin"
	fieldKey       = "key"
	fieldCount     = "count"
	fieldConflicts = "conflicts"
)

// Manager reads and writes quarantine entries in the shared quarantine table.
type Manager struct {
	gw    store.Gateway
	table string
}

// New returns a Manager storing entries in table.
func New(gw store.Gateway, table string) *Manager {
	return &Manager{gw: gw, table: table}
}

// Table returns the quarantine table name.
func (m *Manager) Table() string {
	return m.table
}

// List returns the entries of origin sorted by key. Items that cannot be
// decoded are logged and skipped.
func (m *Manager) List(ctx context.Context, origin records.Origin) ([]records.QuarantineRecord, error) {
	items, err := m.gw.ScanAll(ctx, m.table)
	if err != nil {
		return nil, err
	}

	var out []records.QuarantineRecord
	for _, item := range items {
		rec, err := Decode(item)
		if err != nil {
			logging.FromContext(ctx).Warn().Err(err).Str("item", item.Key).Msg("Skipping unreadable quarantine entry")
			continue
		}
		if origin == "" || rec.Origin == origin {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Origin != out[j].Origin {
			return out[i].Origin < out[j].Origin
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

// Put creates or overwrites the entry for rec.
func (m *Manager) Put(ctx context.Context, rec records.QuarantineRecord) error {
	return m.gw.Put(ctx, m.table, store.QuarantineKey(rec.Origin, rec.Key), Encode(rec))
}

// Release deletes the entry for (origin, key).
func (m *Manager) Release(ctx context.Context, origin records.Origin, key string) error {
	return m.gw.Delete(ctx, m.table, store.QuarantineKey(origin, key))
}

// Encode converts rec to plain JSON-compatible fields.
func Encode(rec records.QuarantineRecord) records.Fields {
	conflicts := make([]any, 0, len(rec.ConflictingFieldSets))
	for _, f := range rec.ConflictingFieldSets {
		conflicts = append(conflicts, map[string]any(f.Clone()))
	}
	return records.Fields{
		fieldOrigin:    string(rec.Origin),
		fieldKey:       rec.Key,
		fieldCount:     float64(len(conflicts)),
		fieldConflicts: conflicts,
	}
}

// Decode reverses Encode. The origin and key come from the item key when the
// fields do not carry them.
func Decode(item store.Item) (records.QuarantineRecord, error) {
	origin, key, ok := store.SplitQuarantineKey(item.Key)
	if !ok {
		return records.QuarantineRecord{}, errors.NewValidationError("key", item.Key, "not a quarantine item key")
	}
	if s, ok := item.Fields[fieldKey].(string); ok && s != "" {
		key = s
	}
	if s, ok := item.Fields[fieldOrigin].(string); ok && s != "" {
		o, err := records.ParseOrigin(s)
		if err != nil {
			return records.QuarantineRecord{}, err
		}
		origin = o
	}

	rec := records.QuarantineRecord{Key: key, Origin: origin}
	switch conflicts := item.Fields[fieldConflicts].(type) {
	case nil:
	case []any:
		for _, c := range conflicts {
			f, ok := asFields(c)
			if !ok {
				return records.QuarantineRecord{}, errors.NewValidationError(fieldConflicts, c, "conflict entry is not an object")
			}
			rec.ConflictingFieldSets = append(rec.ConflictingFieldSets, f)
		}
	case []records.Fields:
		rec.ConflictingFieldSets = append(rec.ConflictingFieldSets, conflicts...)
	default:
		return records.QuarantineRecord{}, errors.NewValidationError(fieldConflicts, conflicts, "conflicts is not a list")
	}
	return rec, nil
}

func asFields(v any) (records.Fields, bool) {
	switch f := v.(type) {
	case map[string]any:
		return records.Fields(f), true
	case records.Fields:
		return f, true
	}
	return nil, false
}

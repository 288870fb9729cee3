// Package store defines the Mirror Store Gateway: a key-value store of
// field-sets grouped in named tables. Each call is atomic on its own;
// nothing is atomic across calls.
package store

import (
	"context"
	"strings"

	"github.com/agentstation/mirrorsync/pkg/constants"
	"github.com/agentstation/mirrorsync/pkg/records"
)

// Item is one stored entry.
type Item = records.MirrorRecord

// Gateway is the storage contract used by the reconciler.
type Gateway interface {
	// ScanAll returns every item in table, following pagination to the end.
	ScanAll(ctx context.Context, table string) ([]Item, error)
	// Get returns the item stored under key and whether it exists.
	Get(ctx context.Context, table, key string) (Item, bool, error)
	// Put creates or replaces the item stored under key.
	Put(ctx context.Context, table, key string, fields records.Fields) error
	// Delete removes the item stored under key. Deleting a missing key is not an error.
	Delete(ctx context.Context, table, key string) error
}

// Tables names the three logical tables.
type Tables struct {
	Form       string `mapstructure:"form" yaml:"form"`
	Sheet      string `mapstructure:"sheet" yaml:"sheet"`
	Quarantine string `mapstructure:"quarantine" yaml:"quarantine"`
}

// DefaultTables returns the default table names.
func DefaultTables() Tables {
	return Tables{
		Form:       constants.FormTable,
		Sheet:      constants.SheetTable,
		Quarantine: constants.QuarantineTable,
	}
}

// WithDefaults fills empty names from DefaultTables.
func (t Tables) WithDefaults() Tables {
	d := DefaultTables()
	if t.Form == "" {
		t.Form = d.Form
	}
	if t.Sheet == "" {
		t.Sheet = d.Sheet
	}
	if t.Quarantine == "" {
		t.Quarantine = d.Quarantine
	}
	return t
}

// Mirror returns the mirror table for origin.
func (t Tables) Mirror(origin records.Origin) string {
	if origin == records.OriginForm {
		return t.Form
	}
	return t.Sheet
}

// All returns every table name.
func (t Tables) All() []string {
	return []string{t.Form, t.Sheet, t.Quarantine}
}

// QuarantineKey builds the item key of a quarantine entry. Quarantine rows
// of both origins share one table, so the origin is part of the key.
func QuarantineKey(origin records.Origin, key string) string {
	return string(origin) + "#" + key
}

// SplitQuarantineKey reverses QuarantineKey.
func SplitQuarantineKey(itemKey string) (records.Origin, string, bool) {
	origin, key, ok := strings.Cut(itemKey, "#")
	if !ok || !records.Origin(origin).Valid() {
		return "", "", false
	}
	return records.Origin(origin), key, true
}

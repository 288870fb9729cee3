// Package memory is an in-process store.Gateway. Reads and writes copy
// field-sets so callers never share maps with the store.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/agentstation/mirrorsync/pkg/records"
	"github.com/agentstation/mirrorsync/pkg/store"
)

// Store is a mutex-guarded map of tables.
type Store struct {
	mu     sync.RWMutex
	tables map[string]map[string]records.Fields
}

var _ store.Gateway = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{tables: make(map[string]map[string]records.Fields)}
}

// ScanAll returns the items of table ordered by key.
func (s *Store) ScanAll(ctx context.Context, table string) ([]store.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]store.Item, 0, len(s.tables[table]))
	for k, f := range s.tables[table] {
		items = append(items, store.Item{Key: k, Fields: f.Clone()})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })
	return items, nil
}

// Get implements store.Gateway.
func (s *Store) Get(ctx context.Context, table, key string) (store.Item, bool, error) {
	if err := ctx.Err(); err != nil {
		return store.Item{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.tables[table][key]
	if !ok {
		return store.Item{}, false, nil
	}
	return store.Item{Key: key, Fields: f.Clone()}, true, nil
}

// Put implements store.Gateway.
func (s *Store) Put(ctx context.Context, table, key string, fields records.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[table]
	if !ok {
		t = make(map[string]records.Fields)
		s.tables[table] = t
	}
	t[key] = fields.Clone()
	return nil
}

// Delete implements store.Gateway.
func (s *Store) Delete(ctx context.Context, table, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tables[table], key)
	return nil
}

// Len returns the number of items in table.
func (s *Store) Len(table string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables[table])
}

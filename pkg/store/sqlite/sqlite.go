// Package sqlite is a store.Gateway backed by a single SQLite table. Field
// sets are stored as JSON documents keyed by (table, key).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/agentstation/mirrorsync/pkg/constants"
	"github.com/agentstation/mirrorsync/pkg/errors"
	"github.com/agentstation/mirrorsync/pkg/records"
	"github.com/agentstation/mirrorsync/pkg/store"
)

// Store implements store.Gateway on a *sql.DB.
type Store struct {
	db       *sql.DB
	pageSize int
	owned    bool
}

var _ store.Gateway = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithPageSize sets the number of rows fetched per ScanAll query.
func WithPageSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// Open opens (or creates) the database at path. Use ":memory:" for a
// throwaway database.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.WrapIO("open", path, err)
	}
	// a single connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	s, err := New(ctx, db, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// New wraps an existing database handle and creates the items table.
func New(ctx context.Context, db *sql.DB, opts ...Option) (*Store, error) {
	s := &Store{db: db, pageSize: constants.DefaultPageSize}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS mirror_items (
		tbl TEXT NOT NULL,
		key TEXT NOT NULL,
		fields JSON NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (tbl, key)
	);`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return errors.WrapResource("migrate", "mirror_items", "", err)
	}
	return nil
}

// ScanAll pages through table in key order.
func (s *Store) ScanAll(ctx context.Context, table string) ([]store.Item, error) {
	var (
		items []store.Item
		after string
		first = true
	)
	for {
		page, err := s.page(ctx, table, after, first)
		if err != nil {
			return nil, errors.WrapResource("scan", table, "", err)
		}
		items = append(items, page...)
		if len(page) < s.pageSize {
			return items, nil
		}
		after = page[len(page)-1].Key
		first = false
	}
}

func (s *Store) page(ctx context.Context, table, after string, first bool) ([]store.Item, error) {
	query := `
		SELECT key, fields FROM mirror_items
		WHERE tbl = ? AND (? OR key > ?)
		ORDER BY key
		LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, table, first, after, s.pageSize)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []store.Item
	for rows.Next() {
		var (
			key string
			raw []byte
		)
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, err
		}
		fields, err := decode(raw)
		if err != nil {
			return nil, err
		}
		items = append(items, store.Item{Key: key, Fields: fields})
	}
	return items, rows.Err()
}

// Get implements store.Gateway.
func (s *Store) Get(ctx context.Context, table, key string) (store.Item, bool, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT fields FROM mirror_items WHERE tbl = ? AND key = ?`, table, key,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Item{}, false, nil
	}
	if err != nil {
		return store.Item{}, false, errors.WrapResource("get", table, key, err)
	}
	fields, err := decode(raw)
	if err != nil {
		return store.Item{}, false, errors.WrapResource("get", table, key, err)
	}
	return store.Item{Key: key, Fields: fields}, true, nil
}

// Put implements store.Gateway.
func (s *Store) Put(ctx context.Context, table, key string, fields records.Fields) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return errors.WrapResource("put", table, key, err)
	}
	query := `
		INSERT INTO mirror_items (tbl, key, fields, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (tbl, key) DO UPDATE SET fields = excluded.fields, updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, query, table, key, string(raw), time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return errors.WrapResource("put", table, key, err)
	}
	return nil
}

// Delete implements store.Gateway.
func (s *Store) Delete(ctx context.Context, table, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM mirror_items WHERE tbl = ? AND key = ?`, table, key); err != nil {
		return errors.WrapResource("delete", table, key, err)
	}
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database if Open created it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

func decode(raw []byte) (records.Fields, error) {
	fields := records.Fields{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, errors.WrapParse("json", "", err)
	}
	return fields, nil
}

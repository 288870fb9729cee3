// Package redis is a store.Gateway keeping each table in one Redis hash.
// Hash fields are business keys and values are JSON-encoded field-sets.
package redis

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/agentstation/mirrorsync/pkg/constants"
	"github.com/agentstation/mirrorsync/pkg/errors"
	"github.com/agentstation/mirrorsync/pkg/records"
	"github.com/agentstation/mirrorsync/pkg/store"
)

// DefaultPrefix namespaces the hashes written by mirrorsync.
const DefaultPrefix = "mirrorsync"

// Store implements store.Gateway on a Redis client.
type Store struct {
	client   redis.UniversalClient
	prefix   string
	pageSize int64
}

var _ store.Gateway = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets the key prefix of the table hashes.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithPageSize sets the HSCAN count hint.
func WithPageSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.pageSize = int64(n)
		}
	}
}

// New wraps an existing client.
func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{client: client, prefix: DefaultPrefix, pageSize: constants.DefaultPageSize}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dial parses a redis:// URL, connects and verifies the connection.
func Dial(ctx context.Context, url string, opts ...Option) (*Store, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.NewConfigError("redis", "parse redis URL", err)
	}
	client := redis.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.WrapResource("ping", "redis", "", err)
	}
	return New(client, opts...), nil
}

func (s *Store) hash(table string) string {
	return s.prefix + ":" + table
}

// ScanAll walks the table hash with HSCAN until the cursor returns to zero.
// HSCAN may repeat a field across pages; the last reply for a key wins.
func (s *Store) ScanAll(ctx context.Context, table string) ([]store.Item, error) {
	var (
		items  []store.Item
		seen   = map[string]int{}
		cursor uint64
	)
	for {
		kv, next, err := s.client.HScan(ctx, s.hash(table), cursor, "", s.pageSize).Result()
		if err != nil {
			return nil, errors.WrapResource("scan", table, "", err)
		}
		if items, err = addPage(items, seen, table, kv); err != nil {
			return nil, err
		}
		if next == 0 {
			return items, nil
		}
		cursor = next
	}
}

// addPage appends one HSCAN reply of alternating field/value pairs.
func addPage(items []store.Item, seen map[string]int, table string, kv []string) ([]store.Item, error) {
	for i := 0; i+1 < len(kv); i += 2 {
		fields, err := decode(kv[i+1])
		if err != nil {
			return nil, errors.WrapResource("scan", table, kv[i], err)
		}
		item := store.Item{Key: kv[i], Fields: fields}
		if idx, ok := seen[item.Key]; ok {
			items[idx] = item
			continue
		}
		seen[item.Key] = len(items)
		items = append(items, item)
	}
	return items, nil
}

// Get implements store.Gateway.
func (s *Store) Get(ctx context.Context, table, key string) (store.Item, bool, error) {
	raw, err := s.client.HGet(ctx, s.hash(table), key).Result()
	if errors.Is(err, redis.Nil) {
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
	if err := s.client.HSet(ctx, s.hash(table), key, raw).Err(); err != nil {
		return errors.WrapResource("put", table, key, err)
	}
	return nil
}

// Delete implements store.Gateway.
func (s *Store) Delete(ctx context.Context, table, key string) error {
	if err := s.client.HDel(ctx, s.hash(table), key).Err(); err != nil {
		return errors.WrapResource("delete", table, key, err)
	}
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func decode(raw string) (records.Fields, error) {
	fields := records.Fields{}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, errors.WrapParse("json", "", err)
	}
	return fields, nil
}

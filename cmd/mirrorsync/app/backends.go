package app

import (
	"context"
	"io"

	goredis "github.com/redis/go-redis/v9"

	"github.com/agentstation/mirrorsync/internal/sources"
	"github.com/agentstation/mirrorsync/internal/sources/airtable"
	"github.com/agentstation/mirrorsync/internal/sources/typeform"
	"github.com/agentstation/mirrorsync/internal/transport"
	"github.com/agentstation/mirrorsync/pkg/constants"
	"github.com/agentstation/mirrorsync/pkg/errors"
	"github.com/agentstation/mirrorsync/pkg/normalize"
	"github.com/agentstation/mirrorsync/pkg/store"
	"github.com/agentstation/mirrorsync/pkg/store/dynamodb"
	"github.com/agentstation/mirrorsync/pkg/store/memory"
	redisstore "github.com/agentstation/mirrorsync/pkg/store/redis"
	"github.com/agentstation/mirrorsync/pkg/store/sqlite"
)

// OpenStore builds the gateway selected by cfg.Backend. The returned closer
// is nil for backends that hold no connection.
func OpenStore(ctx context.Context, cfg StoreConfig) (store.Gateway, io.Closer, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return memory.New(), nil, nil

	case BackendSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil

	case BackendRedis:
		opts, err := goredis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, errors.NewConfigError("redis", "invalid REDIS_URL", err)
		}
		s := redisstore.New(goredis.NewClient(opts), redisstore.WithPrefix(cfg.RedisPrefix))
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, nil, errors.WrapResource("connect", "redis", cfg.RedisURL, err)
		}
		return s, s, nil

	case BackendDynamoDB:
		s, err := dynamodb.Open(ctx, dynamodb.Config{
			Region:       cfg.AWSRegion,
			Endpoint:     cfg.DynamoDBEndpoint,
			KeyAttribute: cfg.DynamoDBKeyAttribute,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	}

	return nil, nil, errors.NewConfigError("store", "unknown backend "+cfg.Backend, nil)
}

// LoadNormalizer returns the default normalizer, or one built from the
// schema file when configured.
func LoadNormalizer(schemaFile string) (*normalize.Normalizer, error) {
	if schemaFile == "" {
		return normalize.Default(), nil
	}
	schema, err := normalize.LoadSchema(schemaFile)
	if err != nil {
		return nil, err
	}
	return normalize.New(schema), nil
}

// BuildSources registers a client for every registry with credentials.
// A registry without credentials is left out; syncing it fails with a
// not-found error while the mirrored data stays readable.
func BuildSources(cfg *Config, normalizer *normalize.Normalizer, opts ...transport.Option) (*sources.Set, error) {
	set := sources.NewSet()
	opts = append([]transport.Option{transport.WithTimeout(constants.DefaultHTTPTimeout)}, opts...)

	if cfg.Typeform.AccessToken != "" || cfg.Typeform.FormID != "" {
		tf, err := typeform.New(typeform.Config{
			AccessToken: cfg.Typeform.AccessToken,
			FormID:      cfg.Typeform.FormID,
			BaseURL:     cfg.Typeform.BaseURL,
		}, normalizer, opts...)
		if err != nil {
			return nil, err
		}
		set.Register(tf)
	}

	if cfg.Airtable.APIKey != "" || cfg.Airtable.BaseID != "" || cfg.Airtable.TableID != "" {
		at, err := airtable.New(airtable.Config{
			APIKey:  cfg.Airtable.APIKey,
			BaseID:  cfg.Airtable.BaseID,
			TableID: cfg.Airtable.TableID,
			BaseURL: cfg.Airtable.BaseURL,
		}, normalizer, opts...)
		if err != nil {
			return nil, err
		}
		set.Register(at)
	}

	return set, nil
}

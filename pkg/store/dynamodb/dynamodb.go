// Package dynamodb is a store.Gateway backed by Amazon DynamoDB. Every
// logical table is a DynamoDB table whose items carry the business key in a
// string partition key and the field-set in a "data" map attribute.
package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/agentstation/mirrorsync/pkg/constants"
	"github.com/agentstation/mirrorsync/pkg/errors"
	"github.com/agentstation/mirrorsync/pkg/records"
	"github.com/agentstation/mirrorsync/pkg/store"
)

// DataAttribute holds the field-set of an item.
const DataAttribute = "data"

// API is the subset of the DynamoDB client used by Store.
type API interface {
	dynamodb.ScanAPIClient
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Config configures Open.
type Config struct {
	Region       string
	Endpoint     string // optional, e.g. LocalStack
	KeyAttribute string
	PageSize     int
}

// Store implements store.Gateway on DynamoDB.
type Store struct {
	api      API
	keyAttr  string
	pageSize int32
}

var _ store.Gateway = (*Store)(nil)

// Open loads the default AWS configuration and builds a client.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, errors.NewConfigError("dynamodb", "load AWS config", err)
	}
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return New(client, cfg), nil
}

// New wraps an existing client.
func New(api API, cfg Config) *Store {
	s := &Store{api: api, keyAttr: cfg.KeyAttribute, pageSize: int32(cfg.PageSize)}
	if s.keyAttr == "" {
		s.keyAttr = constants.DefaultKeyAttribute
	}
	if s.pageSize <= 0 {
		s.pageSize = constants.DefaultPageSize
	}
	return s
}

// ScanAll follows LastEvaluatedKey until the table is exhausted.
func (s *Store) ScanAll(ctx context.Context, table string) ([]store.Item, error) {
	p := dynamodb.NewScanPaginator(s.api, &dynamodb.ScanInput{
		TableName: aws.String(table),
		Limit:     aws.Int32(s.pageSize),
	})

	var items []store.Item
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, errors.WrapResource("scan", table, "", err)
		}
		for _, raw := range page.Items {
			item, err := s.decode(raw)
			if err != nil {
				return nil, errors.WrapResource("scan", table, "", err)
			}
			items = append(items, item)
		}
	}
	return items, nil
}

// Get implements store.Gateway.
func (s *Store) Get(ctx context.Context, table, key string) (store.Item, bool, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(table),
		Key:            s.key(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return store.Item{}, false, errors.WrapResource("get", table, key, err)
	}
	if len(out.Item) == 0 {
		return store.Item{}, false, nil
	}
	item, err := s.decode(out.Item)
	if err != nil {
		return store.Item{}, false, errors.WrapResource("get", table, key, err)
	}
	return item, true, nil
}

// Put implements store.Gateway.
func (s *Store) Put(ctx context.Context, table, key string, fields records.Fields) error {
	data, err := marshalFields(fields)
	if err != nil {
		return errors.WrapResource("put", table, key, err)
	}
	item := s.key(key)
	item[DataAttribute] = data

	if _, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      item,
	}); err != nil {
		return errors.WrapResource("put", table, key, err)
	}
	return nil
}

// Delete implements store.Gateway.
func (s *Store) Delete(ctx context.Context, table, key string) error {
	if _, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(table),
		Key:       s.key(key),
	}); err != nil {
		return errors.WrapResource("delete", table, key, err)
	}
	return nil
}

func (s *Store) key(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		s.keyAttr: &types.AttributeValueMemberS{Value: key},
	}
}

func (s *Store) decode(raw map[string]types.AttributeValue) (store.Item, error) {
	k, ok := raw[s.keyAttr].(*types.AttributeValueMemberS)
	if !ok {
		return store.Item{}, errors.NewValidationError(s.keyAttr, nil, "item has no string key attribute")
	}
	item := store.Item{Key: k.Value, Fields: records.Fields{}}
	data, ok := raw[DataAttribute].(*types.AttributeValueMemberM)
	if !ok {
		return item, nil
	}
	fields, err := unmarshalFields(data.Value)
	if err != nil {
		return store.Item{}, err
	}
	item.Fields = fields
	return item, nil
}

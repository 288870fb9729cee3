package dynamodb

import (
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/agentstation/mirrorsync/pkg/records"
)

// marshalFields encodes a field-set as a DynamoDB map attribute. Values are
// reduced to their JSON form first so that structs follow their json tags and
// non-finite numbers are rejected.
func marshalFields(fields records.Fields) (*types.AttributeValueMemberM, error) {
	plain, err := plainFields(fields)
	if err != nil {
		return nil, err
	}
	m, err := attributevalue.MarshalMap(plain)
	if err != nil {
		return nil, fmt.Errorf("marshal fields: %w", err)
	}
	return &types.AttributeValueMemberM{Value: m}, nil
}

// unmarshalFields decodes a DynamoDB map attribute into plain JSON-style
// values: numbers become float64, sets become []any and binary becomes a
// base64 string.
func unmarshalFields(m map[string]types.AttributeValue) (records.Fields, error) {
	var decoded map[string]any
	if err := attributevalue.UnmarshalMap(m, &decoded); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	return plainFields(decoded)
}

func plainFields(v any) (records.Fields, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	fields := records.Fields{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	return fields, nil
}

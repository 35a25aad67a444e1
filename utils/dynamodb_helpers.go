package utils

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ExtractString reads a string attribute, returning "" when the field is
// absent or holds another type.
func ExtractString(item map[string]types.AttributeValue, field string) string {
	v, ok := item[field].(*types.AttributeValueMemberS)
	if !ok {
		return ""
	}
	return v.Value
}

// StringAttr wraps a string as a DynamoDB attribute value.
func StringAttr(v string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: v}
}

// StringKey builds a single-attribute key.
func StringKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{name: StringAttr(value)}
}

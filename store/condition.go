package store

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Condition is a DynamoDB condition expression with its placeholders.
// The zero Condition means "no condition".
type Condition struct {
	Expression string
	Names      map[string]string
	Values     map[string]types.AttributeValue

	err error
}

// ConditionExpr builds a condition from raw expression text. Values are
// keyed by placeholder (":playlist_size"); see Values for marshaling Go values.
//
//	store.ConditionExpr("playlist_size = :playlist_size", vals)
func ConditionExpr(expr string, values map[string]types.AttributeValue) Condition {
	return Condition{Expression: expr, Values: values}
}

// ConditionOf builds a condition with the SDK expression builder:
//
//	store.ConditionOf(expression.AttributeExists(expression.Name("track_name")))
func ConditionOf(cb expression.ConditionBuilder) Condition {
	expr, err := expression.NewBuilder().WithCondition(cb).Build()
	if err != nil {
		return Condition{err: fmt.Errorf("%w: %v", ErrInvalidCondition, err)}
	}
	return Condition{
		Expression: aws.ToString(expr.Condition()),
		Names:      expr.Names(),
		Values:     expr.Values(),
	}
}

// Exists is satisfied when the item exists and has attr.
func Exists(attr string) Condition {
	return ConditionOf(expression.AttributeExists(expression.Name(attr)))
}

// NotExists is satisfied when the item doesn't exist or lacks attr.
func NotExists(attr string) Condition {
	return ConditionOf(expression.AttributeNotExists(expression.Name(attr)))
}

// WithNames adds expression attribute name placeholders ("#size" -> "playlist_size").
func (c Condition) WithNames(names map[string]string) Condition {
	merged := make(map[string]string, len(c.Names)+len(names))
	for k, v := range c.Names {
		merged[k] = v
	}
	for k, v := range names {
		merged[k] = v
	}
	c.Names = merged
	return c
}

// IsZero reports whether c is the empty condition.
func (c Condition) IsZero() bool {
	return c.Expression == "" && c.err == nil && len(c.Names) == 0 && len(c.Values) == 0
}

// Values marshals Go values keyed by placeholder into attribute values.
func Values(values map[string]any) (map[string]types.AttributeValue, error) {
	out := make(map[string]types.AttributeValue, len(values))
	for k, v := range values {
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: value %s: %v", ErrInvalidCondition, k, err)
		}
		out[k] = av
	}
	return out, nil
}

// MustValues is like Values but panics on a value that cannot be marshaled.
func MustValues(values map[string]any) map[string]types.AttributeValue {
	out, err := Values(values)
	if err != nil {
		panic(err)
	}
	return out
}

func (c Condition) validate() error {
	if c.err != nil {
		return c.err
	}
	if strings.TrimSpace(c.Expression) == "" {
		return fmt.Errorf("%w: empty expression", ErrInvalidCondition)
	}
	for k := range c.Names {
		if !strings.HasPrefix(k, "#") {
			return fmt.Errorf("%w: name placeholder %q must start with #", ErrInvalidCondition, k)
		}
	}
	for k := range c.Values {
		if !strings.HasPrefix(k, ":") {
			return fmt.Errorf("%w: value placeholder %q must start with :", ErrInvalidCondition, k)
		}
	}
	return nil
}

// request returns the SDK request fields. Empty maps are sent as nil;
// DynamoDB rejects empty ExpressionAttributeNames and ExpressionAttributeValues.
func (c Condition) request() (*string, map[string]string, map[string]types.AttributeValue) {
	if c.IsZero() {
		return nil, nil, nil
	}
	names := c.Names
	if len(names) == 0 {
		names = nil
	}
	values := c.Values
	if len(values) == 0 {
		values = nil
	}
	return aws.String(c.Expression), names, values
}

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/tessera/codec"
)

// View provides typed single-item access to one type, outside of transactions.
type View[T, K any] struct {
	store  *Store
	schema *codec.Schema[T, K]
}

// NewView returns a view of schema's type backed by s.
func NewView[T, K any](s *Store, schema *codec.Schema[T, K]) *View[T, K] {
	return &View[T, K]{store: s, schema: schema}
}

// Load retrieves the item with key using a consistent read, returning
// ErrNotFound if it doesn't exist.
func (v *View[T, K]) Load(ctx context.Context, key K) (T, error) {
	var zero T
	av, err := v.schema.EncodeKey(key)
	if err != nil {
		return zero, err
	}

	result, err := v.store.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(v.schema.TableName()),
		Key:            av,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return zero, fmt.Errorf("get %s: %w", v.schema.TypeName(), err)
	}
	if result.Item == nil {
		return zero, ErrNotFound
	}
	return v.schema.Decode(result.Item)
}

// Save writes item, replacing any existing item with the same key.
func (v *View[T, K]) Save(ctx context.Context, item T) error {
	return v.SaveIf(ctx, item, Condition{})
}

// SaveIf writes item if cond holds, returning ErrConditionFailed otherwise.
func (v *View[T, K]) SaveIf(ctx context.Context, item T, cond Condition) error {
	av, err := v.schema.Encode(item)
	if err != nil {
		return err
	}
	if !cond.IsZero() {
		if err := cond.validate(); err != nil {
			return err
		}
	}
	expr, names, values := cond.request()

	_, err = v.store.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(v.schema.TableName()),
		Item:                      av,
		ConditionExpression:       expr,
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	return v.mapError(err, "put")
}

// Delete removes the item with key. Deleting an absent item is not an error.
func (v *View[T, K]) Delete(ctx context.Context, key K) error {
	return v.DeleteIf(ctx, key, Condition{})
}

// DeleteIf removes the item with key if cond holds, returning
// ErrConditionFailed otherwise.
func (v *View[T, K]) DeleteIf(ctx context.Context, key K, cond Condition) error {
	av, err := v.schema.EncodeKey(key)
	if err != nil {
		return err
	}
	if !cond.IsZero() {
		if err := cond.validate(); err != nil {
			return err
		}
	}
	expr, names, values := cond.request()

	_, err = v.store.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                 aws.String(v.schema.TableName()),
		Key:                       av,
		ConditionExpression:       expr,
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	return v.mapError(err, "delete")
}

func (v *View[T, K]) mapError(err error, what string) error {
	if err == nil {
		return nil
	}
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return ErrConditionFailed
	}
	return fmt.Errorf("%s %s: %w", what, v.schema.TypeName(), err)
}

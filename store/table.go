package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/tessera/codec"
)

// CreateTables creates the tables of ts, or of every registered type when ts
// is empty. Types that share a table must agree on key attributes. Tables
// that already exist are left alone.
func (s *Store) CreateTables(ctx context.Context, ts ...codec.Type) ([]string, error) {
	if len(ts) == 0 && s.registry != nil {
		ts = s.registry.AllTypes()
	}

	grouped := NewRegistry()
	if err := grouped.Register(ts...); err != nil {
		return nil, err
	}

	tables := grouped.Tables()
	for _, table := range tables {
		input := s.createTableInput(table, grouped.TypesOf(table)[0].KeyAttributes())

		_, err := s.client.CreateTable(ctx, input)
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			s.logger.DebugContext(ctx, "table already exists", "table", table)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create table %s: %w", table, err)
		}
		s.logger.InfoContext(ctx, "created table", "table", table, "billing_mode", string(s.config.BillingMode))
	}
	return tables, nil
}

func (s *Store) createTableInput(table string, keyAttrs []string) *dynamodb.CreateTableInput {
	input := &dynamodb.CreateTableInput{
		TableName:   aws.String(table),
		BillingMode: s.config.BillingMode,
	}
	for i, attr := range keyAttrs {
		keyType := types.KeyTypeHash
		if i > 0 {
			keyType = types.KeyTypeRange
		}
		input.AttributeDefinitions = append(input.AttributeDefinitions, types.AttributeDefinition{
			AttributeName: aws.String(attr),
			AttributeType: types.ScalarAttributeTypeS,
		})
		input.KeySchema = append(input.KeySchema, types.KeySchemaElement{
			AttributeName: aws.String(attr),
			KeyType:       keyType,
		})
	}
	if s.config.BillingMode == types.BillingModeProvisioned {
		input.ProvisionedThroughput = s.config.ProvisionedThroughput
	}
	return input
}

// WaitForTables blocks until every table exists and is active, or maxWait elapses.
func (s *Store) WaitForTables(ctx context.Context, maxWait time.Duration, tables ...string) error {
	waiter := dynamodb.NewTableExistsWaiter(s.client)
	for _, table := range tables {
		if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{
			TableName: aws.String(table),
		}, maxWait); err != nil {
			return fmt.Errorf("wait for table %s: %w", table, err)
		}
	}
	return nil
}

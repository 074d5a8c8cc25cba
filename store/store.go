package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/jacentio/tessera/codec"
)

// Store runs typed transactions against DynamoDB.
type Store struct {
	client   Client
	config   Config
	registry *Registry
	logger   *slog.Logger
}

// New creates a new Store instance.
func New(client Client, config Config) *Store {
	config.validate()
	return &Store{
		client: client,
		config: config,
		logger: config.Logger,
	}
}

// NewWithRegistry creates a new Store instance with a type registry.
func NewWithRegistry(client Client, config Config, registry *Registry) *Store {
	s := New(client, config)
	s.registry = registry
	return s
}

// Registry returns the type registry, or nil if not set.
func (s *Store) Registry() *Registry {
	return s.registry
}

// TransactWrite applies every operation of ws atomically, in one
// TransactWriteItems call. An empty set is a no-op.
//
// If DynamoDB cancels the transaction the error is a *TransactionCanceledError
// whose reasons line up with the operations of ws.
func (s *Store) TransactWrite(ctx context.Context, ws *WriteSet) error {
	if ws.Len() == 0 {
		return nil
	}
	if ws.Len() > s.config.MaxWriteItems {
		return fmt.Errorf("%w: write set has %d operations, limit is %d", ErrTooManyItems, ws.Len(), s.config.MaxWriteItems)
	}

	input := &dynamodb.TransactWriteItemsInput{
		TransactItems: ws.transactItems(),
	}
	if s.config.IdempotencyTokens {
		input.ClientRequestToken = aws.String(uuid.NewString())
	}

	s.logger.DebugContext(ctx, "dispatching write transaction", "operations", ws.Len())

	_, err := s.client.TransactWriteItems(ctx, input)
	return s.mapTransactionError(ctx, err, "write", ws.ops)
}

// TransactLoad reads every key of ls from one consistent snapshot, in one
// TransactGetItems call. Keys with no stored item are skipped.
func (s *Store) TransactLoad(ctx context.Context, ls *LoadSet) (*TransactionResult, error) {
	result := newTransactionResult()
	if ls.Len() == 0 {
		return result, nil
	}
	if ls.Len() > s.config.MaxLoadItems {
		return nil, fmt.Errorf("%w: load set has %d keys, limit is %d", ErrTooManyItems, ls.Len(), s.config.MaxLoadItems)
	}

	s.logger.DebugContext(ctx, "dispatching load transaction", "keys", ls.Len())

	out, err := s.client.TransactGetItems(ctx, &dynamodb.TransactGetItemsInput{
		TransactItems: ls.transactItems(),
	})
	if err := s.mapTransactionError(ctx, err, "load", ls.ops); err != nil {
		return nil, err
	}

	for i, op := range ls.ops {
		if i >= len(out.Responses) {
			break
		}
		raw := out.Responses[i].Item
		if len(raw) == 0 {
			continue
		}
		item, err := op.typ.DecodeAny(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", op.label, err)
		}
		result.add(op.typ, item)
	}
	return result, nil
}

// TransactLoadKeys builds a load set from keys and runs it.
func (s *Store) TransactLoadKeys(ctx context.Context, keys ...codec.Key) (*TransactionResult, error) {
	ls, err := NewLoadSet().Load(keys...).Build()
	if err != nil {
		return nil, err
	}
	return s.TransactLoad(ctx, ls)
}

// mapTransactionError converts a canceled transaction into a
// *TransactionCanceledError and wraps any other failure.
func (s *Store) mapTransactionError(ctx context.Context, err error, what string, ops []operation) error {
	if err == nil {
		return nil
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		canceled := newTransactionCanceledError(txErr, ops)
		s.logger.WarnContext(ctx, "transaction canceled",
			"transaction", what,
			"operations", len(ops),
			"reasons", canceled.codes(),
		)
		return canceled
	}

	return fmt.Errorf("transact %s: %w", what, err)
}

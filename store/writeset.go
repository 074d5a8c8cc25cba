package store

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/tessera/codec"
	"github.com/jacentio/tessera/internal/keyid"
)

type opKind int

const (
	opSave opKind = iota
	opDelete
	opCheckCondition
	opLoad
)

func (k opKind) String() string {
	switch k {
	case opSave:
		return "Save"
	case opDelete:
		return "Delete"
	case opCheckCondition:
		return "CheckCondition"
	case opLoad:
		return "Load"
	default:
		return fmt.Sprintf("opKind(%d)", int(k))
	}
}

// operation is one entry of a write or load set.
type operation struct {
	kind      opKind
	typ       codec.Type
	item      map[string]types.AttributeValue
	key       map[string]types.AttributeValue
	condition Condition
	label     string
}

// builder holds the state shared by WriteSetBuilder and LoadSetBuilder:
// the operations added so far, the keys they touch and the first error.
type builder struct {
	ops   []operation
	seen  map[string]int
	err   error
	built bool
}

func (b *builder) add(op operation) {
	if b.built {
		b.err = fmt.Errorf("%w: cannot add %s after Build", ErrIllegalState, op.kind)
		return
	}
	if b.err != nil {
		return
	}
	if op.typ == nil {
		b.err = fmt.Errorf("%w: operation %d (%s) has no type; use a Schema to build items and keys",
			codec.ErrInvalidValue, len(b.ops), op.kind)
		return
	}
	id, err := keyid.Of(op.typ.TableName(), op.key)
	if err != nil {
		b.err = fmt.Errorf("operation %d (%s %s): %w", len(b.ops), op.kind, op.label, err)
		return
	}
	if b.seen == nil {
		b.seen = make(map[string]int)
	}
	if prev, ok := b.seen[id]; ok {
		b.err = fmt.Errorf("%w: operation %d (%s %s) targets the same item as operation %d",
			ErrDuplicateKeyInTransaction, len(b.ops), op.kind, op.label, prev)
		return
	}
	b.seen[id] = len(b.ops)
	b.ops = append(b.ops, op)
}

func (b *builder) fail(err error) {
	if b.built {
		b.err = fmt.Errorf("%w: cannot add operations after Build", ErrIllegalState)
		return
	}
	if b.err == nil {
		b.err = err
	}
}

func (b *builder) build() ([]operation, error) {
	if b.built {
		return nil, fmt.Errorf("%w: Build called twice", ErrIllegalState)
	}
	b.built = true
	if b.err != nil {
		return nil, b.err
	}
	return b.ops, nil
}

// WriteSetBuilder accumulates the operations of one write transaction.
// It is single-use: after Build every further call fails with ErrIllegalState.
// Errors are sticky; the first one is returned by Build.
type WriteSetBuilder struct {
	b builder
}

// NewWriteSet returns an empty write set builder.
func NewWriteSet() *WriteSetBuilder {
	return &WriteSetBuilder{}
}

// Save writes item, replacing any existing item with the same key.
func (w *WriteSetBuilder) Save(item codec.Item) *WriteSetBuilder {
	return w.SaveIf(item, Condition{})
}

// SaveIf writes item if cond holds against the currently stored item.
func (w *WriteSetBuilder) SaveIf(item codec.Item, cond Condition) *WriteSetBuilder {
	if err := item.Err(); err != nil {
		w.b.fail(fmt.Errorf("save: %w", err))
		return w
	}
	if !w.checkCondition(cond) {
		return w
	}
	key := item.Key()
	w.b.add(operation{
		kind:      opSave,
		typ:       item.Type(),
		item:      item.Attributes(),
		key:       key.Attributes(),
		condition: cond,
		label:     key.String(),
	})
	return w
}

// Delete removes the item with key. Deleting an absent item is not an error.
func (w *WriteSetBuilder) Delete(key codec.Key) *WriteSetBuilder {
	return w.DeleteIf(key, Condition{})
}

// DeleteIf removes the item with key if cond holds.
func (w *WriteSetBuilder) DeleteIf(key codec.Key, cond Condition) *WriteSetBuilder {
	return w.addKeyed(opDelete, key, cond)
}

// CheckCondition makes the transaction depend on cond holding for the item
// with key, without writing it.
func (w *WriteSetBuilder) CheckCondition(key codec.Key, cond Condition) *WriteSetBuilder {
	if cond.IsZero() {
		w.b.fail(fmt.Errorf("%w: CheckCondition requires a condition", ErrInvalidCondition))
		return w
	}
	return w.addKeyed(opCheckCondition, key, cond)
}

func (w *WriteSetBuilder) addKeyed(kind opKind, key codec.Key, cond Condition) *WriteSetBuilder {
	if err := key.Err(); err != nil {
		w.b.fail(fmt.Errorf("%s: %w", kind, err))
		return w
	}
	if !w.checkCondition(cond) {
		return w
	}
	w.b.add(operation{
		kind:      kind,
		typ:       key.Type(),
		key:       key.Attributes(),
		condition: cond,
		label:     key.String(),
	})
	return w
}

func (w *WriteSetBuilder) checkCondition(cond Condition) bool {
	if cond.IsZero() {
		return true
	}
	if err := cond.validate(); err != nil {
		w.b.fail(err)
		return false
	}
	return true
}

// Err returns the first error recorded by the builder, if any.
func (w *WriteSetBuilder) Err() error { return w.b.err }

// Build finalizes the set.
func (w *WriteSetBuilder) Build() (*WriteSet, error) {
	ops, err := w.b.build()
	if err != nil {
		return nil, err
	}
	return &WriteSet{ops: ops}, nil
}

// WriteSet is an immutable, ordered set of write operations.
type WriteSet struct {
	ops []operation
}

// Len returns the number of operations.
func (s *WriteSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ops)
}

// transactItems converts the set to TransactWriteItems entries, one per
// operation, in order.
func (s *WriteSet) transactItems() []types.TransactWriteItem {
	items := make([]types.TransactWriteItem, 0, len(s.ops))
	for _, op := range s.ops {
		expr, names, values := op.condition.request()
		table := aws.String(op.typ.TableName())
		var onFailure types.ReturnValuesOnConditionCheckFailure
		if expr != nil {
			onFailure = types.ReturnValuesOnConditionCheckFailureAllOld
		}

		switch op.kind {
		case opSave:
			items = append(items, types.TransactWriteItem{
				Put: &types.Put{
					TableName:                 table,
					Item:                      op.item,
					ConditionExpression:       expr,
					ExpressionAttributeNames:  names,
					ExpressionAttributeValues: values,

					ReturnValuesOnConditionCheckFailure: onFailure,
				},
			})
		case opDelete:
			items = append(items, types.TransactWriteItem{
				Delete: &types.Delete{
					TableName:                 table,
					Key:                       op.key,
					ConditionExpression:       expr,
					ExpressionAttributeNames:  names,
					ExpressionAttributeValues: values,

					ReturnValuesOnConditionCheckFailure: onFailure,
				},
			})
		case opCheckCondition:
			items = append(items, types.TransactWriteItem{
				ConditionCheck: &types.ConditionCheck{
					TableName:                 table,
					Key:                       op.key,
					ConditionExpression:       expr,
					ExpressionAttributeNames:  names,
					ExpressionAttributeValues: values,

					ReturnValuesOnConditionCheckFailure: onFailure,
				},
			})
		}
	}
	return items
}

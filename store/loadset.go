package store

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/tessera/codec"
)

// LoadSetBuilder accumulates the keys of one read transaction. It follows
// the same single-use rules as WriteSetBuilder.
type LoadSetBuilder struct {
	b builder
}

// NewLoadSet returns an empty load set builder.
func NewLoadSet() *LoadSetBuilder {
	return &LoadSetBuilder{}
}

// Load adds keys to the set.
func (l *LoadSetBuilder) Load(keys ...codec.Key) *LoadSetBuilder {
	for _, key := range keys {
		if err := key.Err(); err != nil {
			l.b.fail(fmt.Errorf("load: %w", err))
			continue
		}
		l.b.add(operation{
			kind:  opLoad,
			typ:   key.Type(),
			key:   key.Attributes(),
			label: key.String(),
		})
	}
	return l
}

// Err returns the first error recorded by the builder, if any.
func (l *LoadSetBuilder) Err() error { return l.b.err }

// Build finalizes the set.
func (l *LoadSetBuilder) Build() (*LoadSet, error) {
	ops, err := l.b.build()
	if err != nil {
		return nil, err
	}
	return &LoadSet{ops: ops}, nil
}

// LoadSet is an immutable, ordered set of keys to read in one snapshot.
type LoadSet struct {
	ops []operation
}

// Len returns the number of keys.
func (s *LoadSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ops)
}

func (s *LoadSet) transactItems() []types.TransactGetItem {
	items := make([]types.TransactGetItem, len(s.ops))
	for i, op := range s.ops {
		items[i] = types.TransactGetItem{
			Get: &types.Get{
				TableName: aws.String(op.typ.TableName()),
				Key:       op.key,
			},
		}
	}
	return items
}

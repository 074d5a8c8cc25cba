package store

import (
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/tessera/codec"
)

// Registry holds all known types, indexed by table. It is used to decide
// which type a raw item belongs to (stream records) and which key schema
// each table needs (CreateTables).
type Registry struct {
	types   []codec.Type
	byID    map[string]codec.Type
	byTable map[string][]codec.Type
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		types:   []codec.Type{},
		byID:    make(map[string]codec.Type),
		byTable: make(map[string][]codec.Type),
	}
}

// Register adds types to the registry. Types sharing a table must use the
// same key attributes. This should be called during setup, before the
// registry is shared between goroutines.
func (r *Registry) Register(ts ...codec.Type) error {
	for _, t := range ts {
		id := codec.ID(t)
		if _, ok := r.byID[id]; ok {
			return fmt.Errorf("%w: type %s registered twice", codec.ErrInvalidSchema, id)
		}
		for _, other := range r.byTable[t.TableName()] {
			if !sameAttrs(other.KeyAttributes(), t.KeyAttributes()) {
				return fmt.Errorf("%w: type %s key %v conflicts with %s key %v in table %s",
					codec.ErrInvalidSchema, t.TypeName(), t.KeyAttributes(),
					other.TypeName(), other.KeyAttributes(), t.TableName())
			}
		}
		r.types = append(r.types, t)
		r.byID[id] = t
		r.byTable[t.TableName()] = append(r.byTable[t.TableName()], t)
	}
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(ts ...codec.Type) *Registry {
	if err := r.Register(ts...); err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the first registered type of table whose key shape matches item.
func (r *Registry) Lookup(table string, item map[string]types.AttributeValue) (codec.Type, bool) {
	for _, t := range r.byTable[table] {
		if t.Matches(item) {
			return t, true
		}
	}
	return nil, false
}

// TypesOf returns the types stored in table, in registration order.
func (r *Registry) TypesOf(table string) []codec.Type {
	return r.byTable[table]
}

// Tables returns the registered table names, sorted.
func (r *Registry) Tables() []string {
	tables := make([]string, 0, len(r.byTable))
	for t := range r.byTable {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return tables
}

// AllTypes returns all registered types.
func (r *Registry) AllTypes() []codec.Type {
	return r.types
}

func sameAttrs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

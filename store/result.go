package store

import (
	"github.com/jacentio/tessera/codec"
)

// TransactionResult holds the items read by one load transaction, grouped
// by type. Within a group items keep the order their keys were added in.
type TransactionResult struct {
	groups map[string][]any
	order  []codec.Type
}

func newTransactionResult() *TransactionResult {
	return &TransactionResult{groups: make(map[string][]any)}
}

func (r *TransactionResult) add(t codec.Type, item any) {
	id := codec.ID(t)
	if _, ok := r.groups[id]; !ok {
		r.order = append(r.order, t)
	}
	r.groups[id] = append(r.groups[id], item)
}

// Items returns the decoded items of type t, or nil if none were found.
func (r *TransactionResult) Items(t codec.Type) []any {
	if r == nil {
		return nil
	}
	return r.groups[codec.ID(t)]
}

// Types returns the types that have at least one item, in order of first appearance.
func (r *TransactionResult) Types() []codec.Type {
	if r == nil {
		return nil
	}
	return append([]codec.Type(nil), r.order...)
}

// Len returns the total number of items.
func (r *TransactionResult) Len() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, g := range r.groups {
		n += len(g)
	}
	return n
}

// ItemsOf returns the items of the schema's type. A type that was not
// requested, or whose items were all absent, yields an empty slice.
func ItemsOf[T, K any](r *TransactionResult, schema *codec.Schema[T, K]) []T {
	group := r.Items(schema)
	out := make([]T, 0, len(group))
	for _, item := range group {
		if v, ok := item.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

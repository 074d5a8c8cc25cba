package codec

import (
	"errors"
	"fmt"
)

// Definition collects the bindings of a schema before it is built.
type Definition[T, K any] struct {
	typeName  string
	table     string
	partition *KeyPart[T, K]
	sort      *KeyPart[T, K]
	fields    []Field[T]
}

// Define starts a schema for item type T with key type K stored in table.
//
//	var PlaylistInfoSchema = codec.Define[PlaylistInfo, PlaylistInfoKey]("PlaylistInfo", "music_items").
//		PartitionKey(codec.KeyString("partition_key", ...).WithPrefix("PLAYLIST_")).
//		SortKey(codec.KeyConstant[PlaylistInfo, PlaylistInfoKey]("sort_key", "INFO_")).
//		Field(codec.String("playlist_name", ...), codec.Int("playlist_size", ...)).
//		MustBuild()
func Define[T, K any](typeName, table string) *Definition[T, K] {
	return &Definition[T, K]{typeName: typeName, table: table}
}

// PartitionKey sets the partition key binding.
func (d *Definition[T, K]) PartitionKey(p KeyPart[T, K]) *Definition[T, K] {
	d.partition = &p
	return d
}

// SortKey sets the sort key binding.
func (d *Definition[T, K]) SortKey(p KeyPart[T, K]) *Definition[T, K] {
	d.sort = &p
	return d
}

// Field appends non-key field bindings.
func (d *Definition[T, K]) Field(fields ...Field[T]) *Definition[T, K] {
	d.fields = append(d.fields, fields...)
	return d
}

// Build validates the definition and returns the schema.
func (d *Definition[T, K]) Build() (*Schema[T, K], error) {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s: %s", ErrInvalidSchema, d.typeName, fmt.Sprintf(format, args...)))
	}

	if d.typeName == "" {
		invalid("type name is required")
	}
	if d.table == "" {
		invalid("table name is required")
	}
	if d.partition == nil {
		invalid("partition key is required")
		return nil, errors.Join(errs...)
	}

	attrs := map[string]string{}
	checkKey := func(p *KeyPart[T, K], role string) {
		if p.attr == "" {
			invalid("%s attribute name is required", role)
			return
		}
		if !p.constant && (p.itemRef == nil || p.keyRef == nil) {
			invalid("%s %q has no field accessors", role, p.attr)
		}
		if owner, ok := attrs[p.attr]; ok {
			invalid("attribute %q is bound by both %s and %s", p.attr, owner, role)
			return
		}
		attrs[p.attr] = role
	}
	checkKey(d.partition, "partition key")
	if d.sort != nil {
		checkKey(d.sort, "sort key")
	}

	names := map[string]bool{}
	for _, f := range d.fields {
		switch {
		case f.name == "" || f.attr == "":
			invalid("field with empty name")
			continue
		case f.encode == nil || f.decode == nil:
			invalid("field %q has no codec", f.name)
		case names[f.name]:
			invalid("duplicate field %q", f.name)
		}
		names[f.name] = true
		if owner, ok := attrs[f.attr]; ok {
			invalid("attribute %q of field %q is already bound by %s", f.attr, f.name, owner)
			continue
		}
		attrs[f.attr] = "field " + f.name
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &Schema[T, K]{
		typeName:  d.typeName,
		table:     d.table,
		partition: *d.partition,
		sort:      d.sort,
		fields:    append([]Field[T](nil), d.fields...),
	}, nil
}

// MustBuild is like Build but panics on an invalid definition. It is meant
// for package-level schema variables.
func (d *Definition[T, K]) MustBuild() *Schema[T, K] {
	s, err := d.Build()
	if err != nil {
		panic(err)
	}
	return s
}

package codec

import (
	"fmt"
	"maps"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Type is the type-erased view of a Schema. The transaction batcher, the
// type registry and the stream handler work with Types so that one
// transaction can mix items of different Go types.
type Type interface {
	// TypeName returns the logical type name (e.g. "PlaylistInfo").
	TypeName() string

	// TableName returns the physical table the type is stored in.
	TableName() string

	// KeyAttributes returns the partition key attribute, followed by the sort
	// key attribute when the type has one.
	KeyAttributes() []string

	// Matches reports whether a physical item or key has this type's key shape.
	Matches(av map[string]types.AttributeValue) bool

	// DecodeAny decodes a physical item into a value of the schema's item type.
	DecodeAny(av map[string]types.AttributeValue) (any, error)
}

// ID returns a stable identifier for a type: table and type name.
func ID(t Type) string {
	return t.TableName() + "/" + t.TypeName()
}

// KeyPart binds one key attribute to a string field present on both the
// item type T and the key type K. The stored value is prefix + field value.
// A constant part has no field and always stores its prefix.
type KeyPart[T, K any] struct {
	name     string
	attr     string
	prefix   string
	constant bool
	itemRef  func(*T) *string
	keyRef   func(*K) *string
}

// KeyString binds a key attribute to the string field name on T and K.
func KeyString[T, K any](name string, itemRef func(*T) *string, keyRef func(*K) *string) KeyPart[T, K] {
	return KeyPart[T, K]{
		name:    name,
		attr:    name,
		itemRef: itemRef,
		keyRef:  keyRef,
	}
}

// KeyConstant binds a key attribute that always stores value. It is used as
// the sort key of types that have exactly one item per partition.
func KeyConstant[T, K any](attr, value string) KeyPart[T, K] {
	return KeyPart[T, K]{
		name:     attr,
		attr:     attr,
		prefix:   value,
		constant: true,
	}
}

// Attr stores the key part under a physical attribute name that differs from
// its logical name.
func (p KeyPart[T, K]) Attr(name string) KeyPart[T, K] {
	p.attr = name
	return p
}

// WithPrefix prepends a constant to the stored value. Prefixes let several
// logical types share a table without key collisions.
func (p KeyPart[T, K]) WithPrefix(prefix string) KeyPart[T, K] {
	p.prefix = prefix
	return p
}

func (p KeyPart[T, K]) encode(value string) (types.AttributeValue, error) {
	if p.constant {
		return &types.AttributeValueMemberS{Value: p.prefix}, nil
	}
	if value == "" {
		return nil, fmt.Errorf("%w: key attribute %q is empty", ErrInvalidValue, p.attr)
	}
	return &types.AttributeValueMemberS{Value: p.prefix + value}, nil
}

// decode returns the logical value stored in av.
func (p KeyPart[T, K]) decode(av types.AttributeValue) (string, error) {
	if av == nil {
		return "", fmt.Errorf("%w: key attribute %q is absent", ErrSchemaMismatch, p.attr)
	}
	s, ok := av.(*types.AttributeValueMemberS)
	if !ok {
		return "", mismatch("S", av)
	}
	if p.constant {
		if s.Value != p.prefix {
			return "", fmt.Errorf("%w: key attribute %q is %q, expected %q", ErrSchemaMismatch, p.attr, s.Value, p.prefix)
		}
		return "", nil
	}
	if !strings.HasPrefix(s.Value, p.prefix) {
		return "", fmt.Errorf("%w: key attribute %q value %q lacks prefix %q", ErrSchemaMismatch, p.attr, s.Value, p.prefix)
	}
	return strings.TrimPrefix(s.Value, p.prefix), nil
}

func (p KeyPart[T, K]) matches(av types.AttributeValue) bool {
	_, err := p.decode(av)
	return err == nil
}

// Schema is the registration-time descriptor for a domain type T with key
// type K. It is immutable once built and safe for concurrent use.
type Schema[T, K any] struct {
	typeName  string
	table     string
	partition KeyPart[T, K]
	sort      *KeyPart[T, K]
	fields    []Field[T]
}

var _ Type = (*Schema[struct{}, struct{}])(nil)

func (s *Schema[T, K]) TypeName() string { return s.typeName }

func (s *Schema[T, K]) TableName() string { return s.table }

func (s *Schema[T, K]) KeyAttributes() []string {
	if s.sort == nil {
		return []string{s.partition.attr}
	}
	return []string{s.partition.attr, s.sort.attr}
}

func (s *Schema[T, K]) keyParts() []KeyPart[T, K] {
	if s.sort == nil {
		return []KeyPart[T, K]{s.partition}
	}
	return []KeyPart[T, K]{s.partition, *s.sort}
}

func (s *Schema[T, K]) fieldError(name, attr string, err error) error {
	return &FieldError{Type: s.typeName, Field: name, Attribute: attr, Err: err}
}

// Encode maps an item to its physical attribute map.
func (s *Schema[T, K]) Encode(item T) (map[string]types.AttributeValue, error) {
	out := make(map[string]types.AttributeValue, len(s.fields)+2)
	for _, p := range s.keyParts() {
		var value string
		if !p.constant {
			value = *p.itemRef(&item)
		}
		av, err := p.encode(value)
		if err != nil {
			return nil, s.fieldError(p.name, p.attr, err)
		}
		out[p.attr] = av
	}
	for _, f := range s.fields {
		if f.omitEmpty && f.isZero(&item) {
			continue
		}
		av, err := f.encode(&item)
		if err != nil {
			return nil, s.fieldError(f.name, f.attr, err)
		}
		if av != nil {
			out[f.attr] = av
		}
	}
	return out, nil
}

// Decode maps a physical attribute map back to an item. Key attributes and
// required fields must be present; other absent attributes leave the zero value.
func (s *Schema[T, K]) Decode(av map[string]types.AttributeValue) (T, error) {
	var item T
	for _, p := range s.keyParts() {
		value, err := p.decode(av[p.attr])
		if err != nil {
			return item, s.fieldError(p.name, p.attr, err)
		}
		if !p.constant {
			*p.itemRef(&item) = value
		}
	}
	for _, f := range s.fields {
		v, ok := av[f.attr]
		if _, null := v.(*types.AttributeValueMemberNULL); !ok || null {
			if f.required {
				return item, s.fieldError(f.name, f.attr, fmt.Errorf("%w: required attribute is absent", ErrSchemaMismatch))
			}
			continue
		}
		if err := f.decode(&item, v); err != nil {
			return item, s.fieldError(f.name, f.attr, err)
		}
	}
	return item, nil
}

// DecodeAny implements Type.
func (s *Schema[T, K]) DecodeAny(av map[string]types.AttributeValue) (any, error) {
	return s.Decode(av)
}

// EncodeKey maps a logical key to the key-only physical projection.
func (s *Schema[T, K]) EncodeKey(key K) (map[string]types.AttributeValue, error) {
	out := make(map[string]types.AttributeValue, 2)
	for _, p := range s.keyParts() {
		var value string
		if !p.constant {
			value = *p.keyRef(&key)
		}
		av, err := p.encode(value)
		if err != nil {
			return nil, s.fieldError(p.name, p.attr, err)
		}
		out[p.attr] = av
	}
	return out, nil
}

// DecodeKey maps a physical key (or full item) back to a logical key.
func (s *Schema[T, K]) DecodeKey(av map[string]types.AttributeValue) (K, error) {
	var key K
	for _, p := range s.keyParts() {
		value, err := p.decode(av[p.attr])
		if err != nil {
			return key, s.fieldError(p.name, p.attr, err)
		}
		if !p.constant {
			*p.keyRef(&key) = value
		}
	}
	return key, nil
}

// KeyOf returns the logical key of an item.
func (s *Schema[T, K]) KeyOf(item T) K {
	var key K
	for _, p := range s.keyParts() {
		if !p.constant {
			*p.keyRef(&key) = *p.itemRef(&item)
		}
	}
	return key
}

// Matches implements Type.
func (s *Schema[T, K]) Matches(av map[string]types.AttributeValue) bool {
	for _, p := range s.keyParts() {
		if !p.matches(av[p.attr]) {
			return false
		}
	}
	return true
}

// Item encodes item into a type-erased handle. Encoding errors are carried by
// the handle and reported by whoever consumes it.
func (s *Schema[T, K]) Item(item T) Item {
	av, err := s.Encode(item)
	return Item{typ: s, attrs: av, err: err}
}

// Key encodes key into a type-erased handle.
func (s *Schema[T, K]) Key(key K) Key {
	av, err := s.EncodeKey(key)
	return Key{typ: s, attrs: av, err: err}
}

// Item is an encoded logical item together with its Type.
type Item struct {
	typ   Type
	attrs map[string]types.AttributeValue
	err   error
}

// Type returns the item's type.
func (i Item) Type() Type { return i.typ }

// Attributes returns a copy of the physical attribute map.
func (i Item) Attributes() map[string]types.AttributeValue { return maps.Clone(i.attrs) }

// Err returns the encoding error, if any.
func (i Item) Err() error { return i.err }

// Key projects the item onto its key attributes.
func (i Item) Key() Key {
	if i.err != nil || i.typ == nil {
		return Key{typ: i.typ, err: i.err}
	}
	key := make(map[string]types.AttributeValue, 2)
	for _, attr := range i.typ.KeyAttributes() {
		key[attr] = i.attrs[attr]
	}
	return Key{typ: i.typ, attrs: key}
}

// Key is an encoded logical key together with its Type.
type Key struct {
	typ   Type
	attrs map[string]types.AttributeValue
	err   error
}

// Type returns the key's type.
func (k Key) Type() Type { return k.typ }

// Attributes returns a copy of the physical key attributes.
func (k Key) Attributes() map[string]types.AttributeValue { return maps.Clone(k.attrs) }

// Err returns the encoding error, if any.
func (k Key) Err() error { return k.err }

// String renders the key for logs and error messages.
func (k Key) String() string {
	if k.typ == nil {
		return "<nil key>"
	}
	parts := make([]string, 0, 2)
	for _, attr := range k.typ.KeyAttributes() {
		if s, ok := k.attrs[attr].(*types.AttributeValueMemberS); ok {
			parts = append(parts, fmt.Sprintf("%s=%q", attr, s.Value))
		}
	}
	return fmt.Sprintf("%s{%s}", k.typ.TypeName(), strings.Join(parts, " "))
}

package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrSchemaMismatch is returned when a physical item does not have the shape
	// declared by a schema: a required or key attribute is absent, or a key
	// attribute does not carry the declared prefix.
	ErrSchemaMismatch = errors.New("tessera: schema mismatch")

	// ErrTypeMismatch is returned when a stored attribute's physical type is
	// incompatible with the declared field type. It wraps ErrSchemaMismatch.
	ErrTypeMismatch = fmt.Errorf("%w: attribute type mismatch", ErrSchemaMismatch)

	// ErrInvalidValue is returned when a field value cannot be encoded
	// (NaN floats, empty key values).
	ErrInvalidValue = errors.New("tessera: invalid value")

	// ErrInvalidSchema is returned when a schema definition or mapping is inconsistent.
	ErrInvalidSchema = errors.New("tessera: invalid schema")
)

// FieldError describes a failure to encode or decode one field of a type.
type FieldError struct {
	Type      string
	Field     string
	Attribute string
	Err       error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s.%s (attribute %q): %v", e.Type, e.Field, e.Attribute, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

package codec

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Field binds one logical field of T to one physical attribute.
// Fields are built with the typed constructors (String, Int64, Duration, ...)
// which take a pointer accessor, so no reflection is needed at runtime.
type Field[T any] struct {
	name      string
	attr      string
	required  bool
	omitEmpty bool

	// encode returns a nil value when there is nothing to store.
	encode func(*T) (types.AttributeValue, error)
	decode func(*T, types.AttributeValue) error
	isZero func(*T) bool
}

// Attr stores the field under a physical attribute name that differs from
// its logical name.
func (f Field[T]) Attr(name string) Field[T] {
	f.attr = name
	return f
}

// Required makes decoding fail with ErrSchemaMismatch when the attribute is absent.
func (f Field[T]) Required() Field[T] {
	f.required = true
	return f
}

// OmitEmpty skips the attribute on encode when the field holds its zero value.
func (f Field[T]) OmitEmpty() Field[T] {
	f.omitEmpty = true
	return f
}

// String binds a string field stored as S.
func String[T any](name string, ref func(*T) *string) Field[T] {
	return Field[T]{
		name: name,
		attr: name,
		encode: func(t *T) (types.AttributeValue, error) {
			return &types.AttributeValueMemberS{Value: *ref(t)}, nil
		},
		decode: func(t *T, av types.AttributeValue) error {
			s, ok := av.(*types.AttributeValueMemberS)
			if !ok {
				return mismatch("S", av)
			}
			*ref(t) = s.Value
			return nil
		},
		isZero: func(t *T) bool { return *ref(t) == "" },
	}
}

// Int64 binds an int64 field stored as N.
func Int64[T any](name string, ref func(*T) *int64) Field[T] {
	return Field[T]{
		name: name,
		attr: name,
		encode: func(t *T) (types.AttributeValue, error) {
			return &types.AttributeValueMemberN{Value: strconv.FormatInt(*ref(t), 10)}, nil
		},
		decode: func(t *T, av types.AttributeValue) error {
			n, ok := av.(*types.AttributeValueMemberN)
			if !ok {
				return mismatch("N", av)
			}
			v, err := strconv.ParseInt(n.Value, 10, 64)
			if err != nil {
				return fmt.Errorf("%w: %q is not an int64", ErrTypeMismatch, n.Value)
			}
			*ref(t) = v
			return nil
		},
		isZero: func(t *T) bool { return *ref(t) == 0 },
	}
}

// Int binds an int field stored as N.
func Int[T any](name string, ref func(*T) *int) Field[T] {
	return Field[T]{
		name: name,
		attr: name,
		encode: func(t *T) (types.AttributeValue, error) {
			return &types.AttributeValueMemberN{Value: strconv.Itoa(*ref(t))}, nil
		},
		decode: func(t *T, av types.AttributeValue) error {
			n, ok := av.(*types.AttributeValueMemberN)
			if !ok {
				return mismatch("N", av)
			}
			v, err := strconv.ParseInt(n.Value, 10, strconv.IntSize)
			if err != nil {
				return fmt.Errorf("%w: %q is not an int", ErrTypeMismatch, n.Value)
			}
			*ref(t) = int(v)
			return nil
		},
		isZero: func(t *T) bool { return *ref(t) == 0 },
	}
}

// Float64 binds a float64 field stored as N using the shortest decimal
// representation that parses back to the same value.
func Float64[T any](name string, ref func(*T) *float64) Field[T] {
	return Field[T]{
		name: name,
		attr: name,
		encode: func(t *T) (types.AttributeValue, error) {
			f := *ref(t)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, fmt.Errorf("%w: %v cannot be stored as a number", ErrInvalidValue, f)
			}
			return &types.AttributeValueMemberN{Value: strconv.FormatFloat(f, 'g', -1, 64)}, nil
		},
		decode: func(t *T, av types.AttributeValue) error {
			n, ok := av.(*types.AttributeValueMemberN)
			if !ok {
				return mismatch("N", av)
			}
			v, err := strconv.ParseFloat(n.Value, 64)
			if err != nil {
				return fmt.Errorf("%w: %q is not a float64", ErrTypeMismatch, n.Value)
			}
			*ref(t) = v
			return nil
		},
		isZero: func(t *T) bool { return *ref(t) == 0 },
	}
}

// Bool binds a bool field stored as BOOL.
func Bool[T any](name string, ref func(*T) *bool) Field[T] {
	return Field[T]{
		name: name,
		attr: name,
		encode: func(t *T) (types.AttributeValue, error) {
			return &types.AttributeValueMemberBOOL{Value: *ref(t)}, nil
		},
		decode: func(t *T, av types.AttributeValue) error {
			b, ok := av.(*types.AttributeValueMemberBOOL)
			if !ok {
				return mismatch("BOOL", av)
			}
			*ref(t) = b.Value
			return nil
		},
		isZero: func(t *T) bool { return !*ref(t) },
	}
}

// Bytes binds a byte slice stored as B. A nil slice is not stored.
func Bytes[T any](name string, ref func(*T) *[]byte) Field[T] {
	return Field[T]{
		name: name,
		attr: name,
		encode: func(t *T) (types.AttributeValue, error) {
			b := *ref(t)
			if b == nil {
				return nil, nil
			}
			return &types.AttributeValueMemberB{Value: append([]byte(nil), b...)}, nil
		},
		decode: func(t *T, av types.AttributeValue) error {
			b, ok := av.(*types.AttributeValueMemberB)
			if !ok {
				return mismatch("B", av)
			}
			*ref(t) = append([]byte{}, b.Value...)
			return nil
		},
		isZero: func(t *T) bool { return len(*ref(t)) == 0 },
	}
}

// Duration binds a time.Duration stored as an ISO-8601 duration string (PT3M28S).
func Duration[T any](name string, ref func(*T) *time.Duration) Field[T] {
	return Field[T]{
		name: name,
		attr: name,
		encode: func(t *T) (types.AttributeValue, error) {
			return &types.AttributeValueMemberS{Value: FormatDuration(*ref(t))}, nil
		},
		decode: func(t *T, av types.AttributeValue) error {
			s, ok := av.(*types.AttributeValueMemberS)
			if !ok {
				return mismatch("S", av)
			}
			d, err := ParseDuration(s.Value)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrTypeMismatch, err)
			}
			*ref(t) = d
			return nil
		},
		isZero: func(t *T) bool { return *ref(t) == 0 },
	}
}

// Time binds a time.Time stored as an RFC 3339 string with nanoseconds, in UTC.
// Decoded values are in UTC: the instant round-trips, the location and any
// monotonic clock reading do not, so compare decoded times with Equal.
func Time[T any](name string, ref func(*T) *time.Time) Field[T] {
	return Field[T]{
		name: name,
		attr: name,
		encode: func(t *T) (types.AttributeValue, error) {
			return &types.AttributeValueMemberS{Value: ref(t).UTC().Format(time.RFC3339Nano)}, nil
		},
		decode: func(t *T, av types.AttributeValue) error {
			s, ok := av.(*types.AttributeValueMemberS)
			if !ok {
				return mismatch("S", av)
			}
			v, err := time.Parse(time.RFC3339Nano, s.Value)
			if err != nil {
				return fmt.Errorf("%w: %q is not an RFC 3339 timestamp", ErrTypeMismatch, s.Value)
			}
			*ref(t) = v.UTC()
			return nil
		},
		isZero: func(t *T) bool { return ref(t).IsZero() },
	}
}

// StringSet binds a []string stored as SS. DynamoDB rejects empty sets, so a
// nil or empty slice is not stored and decodes as nil. Duplicate elements fail
// with ErrInvalidValue. DynamoDB does not keep element order.
func StringSet[T any](name string, ref func(*T) *[]string) Field[T] {
	return Field[T]{
		name: name,
		attr: name,
		encode: func(t *T) (types.AttributeValue, error) {
			ss := *ref(t)
			if len(ss) == 0 {
				return nil, nil
			}
			seen := make(map[string]struct{}, len(ss))
			for _, v := range ss {
				if _, dup := seen[v]; dup {
					return nil, fmt.Errorf("%w: duplicate set element %q", ErrInvalidValue, v)
				}
				seen[v] = struct{}{}
			}
			return &types.AttributeValueMemberSS{Value: append([]string(nil), ss...)}, nil
		},
		decode: func(t *T, av types.AttributeValue) error {
			ss, ok := av.(*types.AttributeValueMemberSS)
			if !ok {
				return mismatch("SS", av)
			}
			*ref(t) = append([]string(nil), ss.Value...)
			return nil
		},
		isZero: func(t *T) bool { return len(*ref(t)) == 0 },
	}
}

// StringList binds a []string stored as an L of S values.
func StringList[T any](name string, ref func(*T) *[]string) Field[T] {
	return Field[T]{
		name: name,
		attr: name,
		encode: func(t *T) (types.AttributeValue, error) {
			list := *ref(t)
			if list == nil {
				return nil, nil
			}
			out := make([]types.AttributeValue, len(list))
			for i, s := range list {
				out[i] = &types.AttributeValueMemberS{Value: s}
			}
			return &types.AttributeValueMemberL{Value: out}, nil
		},
		decode: func(t *T, av types.AttributeValue) error {
			l, ok := av.(*types.AttributeValueMemberL)
			if !ok {
				return mismatch("L", av)
			}
			out := make([]string, len(l.Value))
			for i, elem := range l.Value {
				s, ok := elem.(*types.AttributeValueMemberS)
				if !ok {
					return fmt.Errorf("element %d: %w", i, mismatch("S", elem))
				}
				out[i] = s.Value
			}
			*ref(t) = out
			return nil
		},
		isZero: func(t *T) bool { return len(*ref(t)) == 0 },
	}
}

// Document binds a nested value of type V, marshaled with the SDK's
// attributevalue encoder. V should be a struct, map or slice whose own
// fields round-trip through attributevalue.
func Document[T, V any](name string, ref func(*T) *V) Field[T] {
	return Field[T]{
		name: name,
		attr: name,
		encode: func(t *T) (types.AttributeValue, error) {
			av, err := attributevalue.Marshal(*ref(t))
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
			}
			if _, null := av.(*types.AttributeValueMemberNULL); null {
				return nil, nil
			}
			return av, nil
		},
		decode: func(t *T, av types.AttributeValue) error {
			var v V
			if err := attributevalue.Unmarshal(av, &v); err != nil {
				return fmt.Errorf("%w: %v", ErrTypeMismatch, err)
			}
			*ref(t) = v
			return nil
		},
		isZero: func(t *T) bool {
			av, err := attributevalue.Marshal(*ref(t))
			if err != nil {
				return false
			}
			_, null := av.(*types.AttributeValueMemberNULL)
			return null
		},
	}
}

func mismatch(want string, got types.AttributeValue) error {
	return fmt.Errorf("%w: expected %s, got %s", ErrTypeMismatch, want, PhysicalType(got))
}

// PhysicalType names the DynamoDB type of an attribute value.
func PhysicalType(av types.AttributeValue) string {
	switch av.(type) {
	case *types.AttributeValueMemberS:
		return "S"
	case *types.AttributeValueMemberN:
		return "N"
	case *types.AttributeValueMemberB:
		return "B"
	case *types.AttributeValueMemberBOOL:
		return "BOOL"
	case *types.AttributeValueMemberNULL:
		return "NULL"
	case *types.AttributeValueMemberSS:
		return "SS"
	case *types.AttributeValueMemberNS:
		return "NS"
	case *types.AttributeValueMemberBS:
		return "BS"
	case *types.AttributeValueMemberL:
		return "L"
	case *types.AttributeValueMemberM:
		return "M"
	case nil:
		return "nothing"
	default:
		return fmt.Sprintf("%T", av)
	}
}

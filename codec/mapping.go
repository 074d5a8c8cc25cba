package codec

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Mapping overrides the physical layout of registered types without touching
// their Go definitions. It is usually loaded from YAML:
//
//	types:
//	  PlaylistInfo:
//	    table: music_items_staging
//	    attributes:
//	      playlist_name: name
type Mapping struct {
	Types map[string]TypeMapping `yaml:"types" validate:"dive,keys,required,endkeys"`
}

// TypeMapping holds the overrides for one logical type. Attribute keys are
// logical field or key names; values are physical attribute names.
type TypeMapping struct {
	Table      string            `yaml:"table,omitempty"`
	Attributes map[string]string `yaml:"attributes,omitempty" validate:"dive,keys,required,endkeys,required"`
}

var validate = validator.New()

// ParseMapping decodes and validates a YAML mapping document.
func ParseMapping(r io.Reader) (*Mapping, error) {
	var m Mapping
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: decoding mapping: %v", ErrInvalidSchema, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadMapping reads a YAML mapping document from path.
func LoadMapping(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening mapping: %w", err)
	}
	defer f.Close()
	return ParseMapping(f)
}

// Validate checks that type names and attribute names are non-empty.
func (m *Mapping) Validate() error {
	if err := validate.Struct(m); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", e.Namespace(), e.Tag()))
			}
			return fmt.Errorf("%w: invalid mapping: %s", ErrInvalidSchema, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: invalid mapping: %v", ErrInvalidSchema, err)
	}
	return nil
}

// For returns the overrides for typeName, if any.
func (m *Mapping) For(typeName string) (TypeMapping, bool) {
	if m == nil {
		return TypeMapping{}, false
	}
	tm, ok := m.Types[typeName]
	return tm, ok
}

// WithMapping returns a copy of the schema with the overrides for its type
// applied. Unknown logical names in the mapping are an error, as is a
// remapping that makes two bindings share an attribute.
func (s *Schema[T, K]) WithMapping(m *Mapping) (*Schema[T, K], error) {
	tm, ok := m.For(s.typeName)
	if !ok {
		return s, nil
	}

	d := &Definition[T, K]{typeName: s.typeName, table: s.table}
	if tm.Table != "" {
		d.table = tm.Table
	}

	used := map[string]bool{}
	rename := func(name, attr string) string {
		if a, ok := tm.Attributes[name]; ok {
			used[name] = true
			return a
		}
		return attr
	}

	partition := s.partition
	partition.attr = rename(partition.name, partition.attr)
	d.partition = &partition
	if s.sort != nil {
		sort := *s.sort
		sort.attr = rename(sort.name, sort.attr)
		d.sort = &sort
	}
	for _, f := range s.fields {
		f.attr = rename(f.name, f.attr)
		d.fields = append(d.fields, f)
	}

	for name := range tm.Attributes {
		if !used[name] {
			return nil, fmt.Errorf("%w: %s: mapping names unknown field %q", ErrInvalidSchema, s.typeName, name)
		}
	}
	return d.Build()
}

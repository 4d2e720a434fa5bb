package dynamodel

import (
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"
	"time"
)

// FieldType is the declared semantic type of a schema field.
type FieldType int

const (
	FieldAny FieldType = iota
	FieldString
	FieldNumber
	FieldBool
	FieldList
	FieldMap
	FieldStringSet
	FieldTime
)

func (t FieldType) String() string {
	switch t {
	case FieldString:
		return "string"
	case FieldNumber:
		return "number"
	case FieldBool:
		return "bool"
	case FieldList:
		return "list"
	case FieldMap:
		return "map"
	case FieldStringSet:
		return "string set"
	case FieldTime:
		return "time"
	default:
		return "any"
	}
}

// accepts reports whether v may be stored in a field of type t. Nil is
// always accepted and clears the field.
func (t FieldType) accepts(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch t {
	case FieldString:
		return rv.Kind() == reflect.String
	case FieldNumber:
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64:
			return true
		}
		return false
	case FieldBool:
		return rv.Kind() == reflect.Bool
	case FieldList:
		return rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array
	case FieldMap:
		return rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String
	case FieldStringSet:
		_, ok := v.([]string)
		return ok
	case FieldTime:
		_, ok := v.(time.Time)
		return ok
	default:
		return true
	}
}

// Field declares one entity attribute.
type Field struct {
	Type      FieldType
	Versioned bool // changes to the field produce a version row
	Indexed   bool // shorthand for an index named after the field, sorted by it
}

// RelationDef declares a named edge to another entity type.
type RelationDef struct {
	Target   string      // target entity type
	Multiple bool        // many targets instead of one
	Include  []string    // owner fields copied onto the relation row
	Search   *SearchSpec // search tokens copied onto the relation row
}

// IndexDef declares a queryable projection of an entity. The sort value is
// taken from Field, or computed by Sort; with neither the creation time is
// used. Numbers in Field are stored as NumberSortKey so they sort in numeric
// order; build sort key conditions on such an index with NumberSortKey.
type IndexDef struct {
	Field     string
	Sort      func(*Entity) string
	Include   []string
	Search    *SearchSpec
	Relations []string // relation names whose keys are exposed for RelatedTo
}

// SearchSpec declares the search token map of an index or relation row.
// Fields defaults to the row's included fields.
type SearchSpec struct {
	Fields []string
	Steps  []NormalizeStep
}

// Schema declares an entity type.
type Schema struct {
	Type        string
	Fields      map[string]Field
	Relations   map[string]RelationDef
	Indexes     map[string]IndexDef
	MaxVersions int // 0 disables version rows, -1 keeps all of them
}

// fieldNames returns the declared field names in sorted order.
func (s *Schema) fieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Schema) versionedFields() []string {
	var out []string
	for _, name := range s.fieldNames() {
		if s.Fields[name].Versioned {
			out = append(out, name)
		}
	}
	return out
}

type searchParams struct {
	fields    []string
	normalize Normalizer
}

func newSearchParams(spec *SearchSpec, include []string) *searchParams {
	if spec == nil {
		return nil
	}
	fields := spec.Fields
	if len(fields) == 0 {
		fields = include
	}
	return &searchParams{
		fields:    slices.Clone(fields),
		normalize: NewNormalizer(spec.Steps...),
	}
}

// IndexDescriptor is the resolved form of an IndexDef.
type IndexDescriptor struct {
	Owner     string
	Name      string
	field     string
	sort      func(*Entity) string
	include   []string
	search    *searchParams
	relations []string
}

// Normalize applies the index's search pipeline to value. Indexes without
// a search spec return value unchanged.
func (d *IndexDescriptor) Normalize(value string) string {
	if d.search == nil {
		return value
	}
	return d.search.normalize(value)
}

// Searchable reports whether the index carries a search token map.
func (d *IndexDescriptor) Searchable() bool { return d.search != nil }

// Include returns the included field names.
func (d *IndexDescriptor) Include() []string { return slices.Clone(d.include) }

// Exposes reports whether relation keys of the named relation are exposed.
func (d *IndexDescriptor) Exposes(relation string) bool {
	return slices.Contains(d.relations, relation)
}

// RelationDescriptor is the resolved form of a RelationDef.
type RelationDescriptor struct {
	Owner    string
	Name     string
	Target   string
	Multiple bool
	include  []string
	search   *searchParams
}

// Normalize applies the relation's search pipeline to value.
func (d *RelationDescriptor) Normalize(value string) string {
	if d.search == nil {
		return value
	}
	return d.search.normalize(value)
}

// Searchable reports whether relation rows carry a search token map.
func (d *RelationDescriptor) Searchable() bool { return d.search != nil }

func validateSchema(s *Schema, sep Separators) error {
	if s.Type == "" {
		return fmt.Errorf("%w: empty type", ErrInvalidSchema)
	}
	if strings.ContainsAny(s.Type, sep.ID+sep.Index+sep.Relation+sep.Version) {
		return fmt.Errorf("%w: type %q contains a key separator", ErrInvalidSchema, s.Type)
	}
	if s.MaxVersions < -1 {
		return fmt.Errorf("%w: %s: max versions must be -1 or more", ErrInvalidSchema, s.Type)
	}
	for name := range s.Fields {
		if name == "" || strings.HasPrefix(name, "$") || name == "id" {
			return fmt.Errorf("%w: %s: reserved field name %q", ErrInvalidSchema, s.Type, name)
		}
	}
	checkFields := func(owner string, names []string) error {
		for _, f := range names {
			if _, ok := s.Fields[f]; !ok {
				return fmt.Errorf("%w: %s.%s: unknown field %q", ErrInvalidSchema, s.Type, owner, f)
			}
		}
		return nil
	}
	for name, rel := range s.Relations {
		if rel.Target == "" {
			return fmt.Errorf("%w: %s.%s: relation has no target", ErrInvalidSchema, s.Type, name)
		}
		if strings.ContainsAny(name, sep.Index+sep.Relation+sep.Version) {
			return fmt.Errorf("%w: %s: relation name %q contains a key separator", ErrInvalidSchema, s.Type, name)
		}
		if err := checkFields(name, rel.Include); err != nil {
			return err
		}
		if rel.Search != nil {
			if err := checkFields(name, rel.Search.Fields); err != nil {
				return err
			}
		}
	}
	for name, idx := range resolveIndexes(s) {
		if strings.ContainsAny(name, sep.Index+sep.Relation+sep.Version) {
			return fmt.Errorf("%w: %s: index name %q contains a key separator", ErrInvalidSchema, s.Type, name)
		}
		if _, ok := s.Relations[name]; ok {
			return fmt.Errorf("%w: %s: %q is both an index and a relation", ErrInvalidSchema, s.Type, name)
		}
		if idx.Field != "" {
			if err := checkFields(name, []string{idx.Field}); err != nil {
				return err
			}
		}
		if err := checkFields(name, idx.Include); err != nil {
			return err
		}
		if idx.Search != nil {
			if err := checkFields(name, idx.Search.Fields); err != nil {
				return err
			}
		}
		for _, r := range idx.Relations {
			if _, ok := s.Relations[r]; !ok {
				return fmt.Errorf("%w: %s.%s: unknown relation %q", ErrInvalidSchema, s.Type, name, r)
			}
		}
	}
	return nil
}

// resolveIndexes expands the Indexed shorthand and returns the index
// definitions of s keyed by name.
func resolveIndexes(s *Schema) map[string]IndexDef {
	out := make(map[string]IndexDef, len(s.Indexes))
	for name, f := range s.Fields {
		if f.Indexed {
			out[name] = IndexDef{Field: name}
		}
	}
	for name, idx := range s.Indexes {
		out[name] = idx
	}
	return out
}

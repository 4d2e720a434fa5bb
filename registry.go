package dynamodel

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

type descriptorKey struct {
	owner string
	name  string
}

// Registry holds registered schemas together with the index and relation
// descriptors built from them. It is safe for concurrent reads once
// populated.
type Registry struct {
	mu        sync.RWMutex
	schemas   map[string]*Schema
	indexes   map[descriptorKey]*IndexDescriptor
	relations map[descriptorKey]*RelationDescriptor
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	r := &Registry{}
	r.Reset()
	return r
}

// Reset removes every registered schema and descriptor.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas = make(map[string]*Schema)
	r.indexes = make(map[descriptorKey]*IndexDescriptor)
	r.relations = make(map[descriptorKey]*RelationDescriptor)
}

// Register validates s and builds its descriptors. Registering the same type
// twice is an error.
func (r *Registry) Register(s Schema, sep Separators) (*Schema, error) {
	if err := validateSchema(&s, sep.withDefaults()); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.schemas[s.Type]; ok {
		return nil, fmt.Errorf("%w: type %q already registered", ErrInvalidSchema, s.Type)
	}

	owned := &Schema{
		Type:        s.Type,
		Fields:      maps.Clone(s.Fields),
		Relations:   maps.Clone(s.Relations),
		Indexes:     resolveIndexes(&s),
		MaxVersions: s.MaxVersions,
	}
	if owned.Fields == nil {
		owned.Fields = map[string]Field{}
	}
	if owned.Relations == nil {
		owned.Relations = map[string]RelationDef{}
	}

	for name, def := range owned.Indexes {
		r.indexes[descriptorKey{s.Type, name}] = &IndexDescriptor{
			Owner:     s.Type,
			Name:      name,
			field:     def.Field,
			sort:      def.Sort,
			include:   slices.Clone(def.Include),
			search:    newSearchParams(def.Search, def.Include),
			relations: slices.Clone(def.Relations),
		}
	}
	for name, def := range owned.Relations {
		r.relations[descriptorKey{s.Type, name}] = &RelationDescriptor{
			Owner:    s.Type,
			Name:     name,
			Target:   def.Target,
			Multiple: def.Multiple,
			include:  slices.Clone(def.Include),
			search:   newSearchParams(def.Search, def.Include),
		}
	}
	r.schemas[s.Type] = owned
	return owned, nil
}

// Schema returns the registered schema for typ.
func (r *Registry) Schema(typ string) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[typ]
	return s, ok
}

// Index returns the descriptor of an index declared by owner.
func (r *Registry) Index(owner, name string) (*IndexDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.indexes[descriptorKey{owner, name}]
	return d, ok
}

// Relation returns the descriptor of a relation declared by owner.
func (r *Registry) Relation(owner, name string) (*RelationDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.relations[descriptorKey{owner, name}]
	return d, ok
}

// Indexes returns the index descriptors of owner sorted by name.
func (r *Registry) Indexes(owner string) []*IndexDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*IndexDescriptor
	for k, d := range r.indexes {
		if k.owner == owner {
			out = append(out, d)
		}
	}
	slices.SortFunc(out, func(a, b *IndexDescriptor) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// Types returns the registered type names.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.schemas))
}

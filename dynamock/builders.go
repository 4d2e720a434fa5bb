package dynamock

import (
	"testing"

	"github.com/nisimpson/dynamodel"
)

// EntityOption is a functional option for configuring entities during building.
type EntityOption func(*EntityBuilder)

// EntityBuilder builds entities of one model through functional options.
type EntityBuilder struct {
	model     *dynamodel.Model
	id        string
	fields    map[string]any
	relations map[string][]*dynamodel.Entity
	order     []string // relation names in first-use order
}

// NewEntity creates a new entity builder for model with the given options applied.
func NewEntity(model *dynamodel.Model, opts ...EntityOption) *EntityBuilder {
	builder := &EntityBuilder{
		model:     model,
		fields:    make(map[string]any),
		relations: make(map[string][]*dynamodel.Entity),
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder
}

// Build creates an unsaved entity from the builder configuration.
func (b *EntityBuilder) Build() (*dynamodel.Entity, error) {
	e := b.model.New()
	if b.id != "" {
		if err := e.SetID(b.id); err != nil {
			return nil, err
		}
	}
	for name, v := range b.fields {
		if err := e.Set(name, v); err != nil {
			return nil, err
		}
	}
	for _, name := range b.order {
		if err := e.SetRelations(name, b.relations[name]); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// MustBuild is like Build but fails the test on error.
func (b *EntityBuilder) MustBuild(t testing.TB) *dynamodel.Entity {
	t.Helper()
	e, err := b.Build()
	if err != nil {
		t.Fatalf("failed to build %s entity: %v", b.model.Type(), err)
	}
	return e
}

// Functional Options

// WithID sets the entity id.
func WithID(id string) EntityOption {
	return func(b *EntityBuilder) {
		b.id = id
	}
}

// WithField sets a single field.
func WithField(name string, v any) EntityOption {
	return func(b *EntityBuilder) {
		b.fields[name] = v
	}
}

// WithFields sets several fields.
func WithFields(fields map[string]any) EntityOption {
	return func(b *EntityBuilder) {
		for name, v := range fields {
			b.fields[name] = v
		}
	}
}

// WithRelation attaches targets under a relation name. Repeated use appends.
func WithRelation(name string, targets ...*dynamodel.Entity) EntityOption {
	return func(b *EntityBuilder) {
		if _, ok := b.relations[name]; !ok {
			b.order = append(b.order, name)
		}
		b.relations[name] = append(b.relations[name], targets...)
	}
}

// Ref returns a reference to the entity of model with the given id, suitable
// as a relation target.
func Ref(t testing.TB, model *dynamodel.Model, id string) *dynamodel.Entity {
	t.Helper()
	e, err := model.FromID(id)
	if err != nil {
		t.Fatalf("failed to reference %s %q: %v", model.Type(), id, err)
	}
	return e
}

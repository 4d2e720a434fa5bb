package dynamodel

import (
	"fmt"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Model is a registered entity type bound to its table.
type Model struct {
	table  *Table
	schema *Schema
	log    *Logger
}

// Type returns the entity type name.
func (m *Model) Type() string { return m.schema.Type }

// Table returns the table the model is registered on.
func (m *Model) Table() *Table { return m.table }

// Schema returns a copy of the registered schema.
func (m *Model) Schema() Schema { return *m.schema }

// Index returns the descriptor of a declared index.
func (m *Model) Index(name string) (*IndexDescriptor, error) {
	d, ok := m.table.Registry.Index(m.schema.Type, name)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownIndex, m.schema.Type, name)
	}
	return d, nil
}

// Relation returns the descriptor of a declared relation.
func (m *Model) Relation(name string) (*RelationDescriptor, error) {
	d, ok := m.table.Registry.Relation(m.schema.Type, name)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrInvalidRelation, m.schema.Type, name)
	}
	return d, nil
}

// EnsurePrefix returns id as an entity key of this type.
func (m *Model) EnsurePrefix(id string) string {
	return m.table.keys.EnsurePrefix(m.schema.Type, id)
}

// RemovePrefix returns the bare id of an entity key of this type.
func (m *Model) RemovePrefix(key string) string {
	return m.table.keys.RemovePrefix(m.schema.Type, key)
}

// GenerateKey returns a fresh entity key.
func (m *Model) GenerateKey() string {
	return m.table.keys.EntityKey(m.schema.Type, m.table.IDGenerator())
}

// New returns an empty entity without identity.
func (m *Model) New() *Entity {
	return &Entity{
		model:  m,
		fields: make(map[string]any),
		state:  NewState(),
	}
}

// FromID returns a reference to the entity with the given id, suitable as a
// relation target. Nothing is loaded.
func (m *Model) FromID(id string) (*Entity, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id for %s", ErrInvalidIdentity, m.schema.Type)
	}
	e := m.New()
	e.key = m.EnsurePrefix(id)
	return e, nil
}

// FromData builds an entity from raw data. The "id" key sets the identity,
// declared field names set fields, and declared relation names attach
// targets given as an id or a list of ids.
func (m *Model) FromData(data map[string]any) (*Entity, error) {
	e := m.New()
	for name, v := range data {
		if name == "id" {
			id, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("%w: id must be a string, got %T", ErrInvalidIdentity, v)
			}
			if err := e.SetID(id); err != nil {
				return nil, err
			}
			continue
		}
		if _, ok := m.schema.Relations[name]; ok {
			if err := e.attachIDs(name, v); err != nil {
				return nil, err
			}
			continue
		}
		if err := e.Set(name, v); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Query starts a query over entities of this type.
func (m *Model) Query() *Query {
	return newQuery(m)
}

// target returns the model of a relation target. Unregistered targets get a
// bare model so references still resolve.
func (m *Model) target(typ string) *Model {
	if typ == m.schema.Type {
		return m
	}
	if tm, err := m.table.Model(typ); err == nil {
		return tm
	}
	return &Model{
		table:  m.table,
		schema: &Schema{Type: typ, Fields: map[string]Field{}, Relations: map[string]RelationDef{}},
		log:    m.log,
	}
}

// fromItem builds a persisted entity from its item row.
func (m *Model) fromItem(item Item) (*Entity, error) {
	e := m.New()
	e.key = stringAttr(item, AttributeNameID)
	if e.key == "" {
		return nil, fmt.Errorf("%w: item row without %s", ErrInvalidIdentity, AttributeNameID)
	}
	for name, f := range m.schema.Fields {
		av, ok := item[name]
		if !ok {
			continue
		}
		v, err := decodeField(f.Type, av)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s.%s: %w", m.schema.Type, name, err)
		}
		e.fields[name] = v
	}
	e.version = numberAttr(item, AttributeNameVersion)
	e.created = timeAttr(item, AttributeNameCreated)
	e.updated = timeAttr(item, AttributeNameUpdated)
	e.persisted = true
	e.state.InitEntity(e.fields, m.schema.fieldNames())

	// Assume every index row matches the item until stored rows say otherwise.
	for _, d := range m.table.Registry.Indexes(m.schema.Type) {
		e.state.Set(nsIndex, d.Name, e.indexRow(d, e.created), true)
	}
	return e, nil
}

func (m *Model) fromVersionRow(item Item) (*Version, error) {
	v := &Version{
		Number:  numberAttr(item, AttributeNameVersion),
		Created: timeAttr(item, AttributeNameCreated),
		Fields:  make(map[string]any),
	}
	if rl, ok := item[AttributeNameRelations].(*types.AttributeValueMemberSS); ok {
		v.Relations = slices.Sorted(slices.Values(rl.Value))
	}
	for _, name := range m.schema.versionedFields() {
		av, ok := item[name]
		if !ok {
			continue
		}
		val, err := decodeField(m.schema.Fields[name].Type, av)
		if err != nil {
			return nil, fmt.Errorf("failed to decode version of %s.%s: %w", m.schema.Type, name, err)
		}
		v.Fields[name] = val
	}
	return v, nil
}

func sortVersions(versions []*Version) {
	slices.SortFunc(versions, func(a, b *Version) int { return a.Number - b.Number })
}

func numberAttr(item Item, name string) int {
	n, ok := item[name].(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	var v int
	if _, err := fmt.Sscan(n.Value, &v); err != nil {
		return 0
	}
	return v
}

func timeAttr(item Item, name string) time.Time {
	s := stringAttr(item, name)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

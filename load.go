package dynamodel

import (
	"context"
	"fmt"
	"maps"
	"slices"
)

// partition is every row stored under one entity key, classified by kind.
type partition struct {
	item      Item
	indexes   map[string]Item
	relations []Item
	versions  []Item
	rows      int
}

func (m *Model) loadPartition(ctx context.Context, key string) (*partition, error) {
	rows := m.table.store.Query(ctx, QueryInput{
		Key: KeyCondition{
			PartitionName:  AttributeNameID,
			PartitionValue: key,
		},
	})
	p := &partition{indexes: make(map[string]Item)}
	keys := m.table.keys
	for rows.Next(ctx) {
		row := rows.Item()
		p.rows++
		seg := keys.Parse(stringAttr(row, AttributeNameKey))
		if !seg.Valid || seg.Entity != m.schema.Type {
			continue
		}
		switch {
		case seg.IsItem():
			p.item = row
		case seg.IsRelation():
			p.relations = append(p.relations, row)
		case seg.IsIndex():
			p.indexes[seg.Index] = row
		case seg.IsVersion():
			p.versions = append(p.versions, row)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return p, nil
}

// Get loads the entity with the given id or key together with its index,
// relation and version rows. A missing entity yields (nil, nil).
func (m *Model) Get(ctx context.Context, id string) (*Entity, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id for %s", ErrInvalidIdentity, m.schema.Type)
	}
	key := m.EnsurePrefix(id)
	p, err := m.loadPartition(ctx, key)
	if err != nil {
		m.log.LogLoad(ctx, key, 0, err)
		return nil, fmt.Errorf("failed to load %s: %w", key, err)
	}
	if p.item == nil {
		m.log.LogLoad(ctx, key, p.rows, nil)
		return nil, nil
	}
	e, err := m.fromItem(p.item)
	if err != nil {
		return nil, err
	}
	if err := e.attachPartition(p); err != nil {
		return nil, err
	}
	m.log.LogLoad(ctx, key, p.rows, nil)
	return e, nil
}

// attachPartition records the stored index, relation and version rows as
// the entity's baselines.
func (e *Entity) attachPartition(p *partition) error {
	m := e.model
	keys := m.table.keys
	s := e.state

	for _, d := range m.table.Registry.Indexes(m.schema.Type) {
		s.Reset(nsIndex, d.Name)
		if row, ok := p.indexes[d.Name]; ok {
			s.Set(nsIndex, d.Name, row, true)
		}
	}

	relationKeys := make([]string, 0, len(p.relations))
	var relations []attachment
	for _, row := range p.relations {
		kt := stringAttr(row, AttributeNameKey)
		relationKeys = append(relationKeys, kt)
		seg := keys.Parse(kt)
		d, ok := m.table.Registry.Relation(m.schema.Type, seg.Index)
		if !ok {
			continue // undeclared relations are deleted on the next save
		}
		target := m.target(d.Target).New()
		target.key = seg.Relation
		relations = append(relations, attachment{name: d.Name, target: target})
		s.Set(nsRelation, kt, row, true)
	}
	s.Set(nsRelationKeys, "keys", relationKeys, true)

	versions := make([]*Version, 0, len(p.versions))
	for _, row := range p.versions {
		v, err := m.fromVersionRow(row)
		if err != nil {
			return err
		}
		versions = append(versions, v)
		if v.Number > e.version {
			e.version = v.Number
		}
	}
	sortVersions(versions)

	// Mutations made before the rows were known are replayed over them.
	for _, name := range slices.Sorted(maps.Keys(e.edits)) {
		for _, edit := range e.edits[name] {
			relations = edit.apply(relations)
		}
	}
	e.relations = relations
	e.versions = versions
	e.partial = false
	return nil
}

// complete loads the rows missing from a partial entity without touching
// its field values.
func (e *Entity) complete(ctx context.Context) error {
	p, err := e.model.loadPartition(ctx, e.key)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", e.key, err)
	}
	return e.attachPartition(p)
}

// Delete removes every row stored under the entity's key and returns the
// number of rows deleted. The entity becomes unpersisted.
func (e *Entity) Delete(ctx context.Context) (int, error) {
	if e.key == "" {
		return 0, fmt.Errorf("%w: entity has no identity", ErrInvalidIdentity)
	}
	n, err := e.model.Delete(ctx, e.key)
	if err != nil {
		return 0, err
	}
	e.persisted = false
	e.partial = false
	e.versions = nil
	e.version = 0
	e.state.Clear()
	return n, nil
}

// Delete removes every row stored under the entity key of id.
func (m *Model) Delete(ctx context.Context, id string) (int, error) {
	if id == "" {
		return 0, fmt.Errorf("%w: empty id for %s", ErrInvalidIdentity, m.schema.Type)
	}
	key := m.EnsurePrefix(id)
	rows := m.table.store.Query(ctx, QueryInput{
		Key: KeyCondition{
			PartitionName:  AttributeNameID,
			PartitionValue: key,
		},
		Projection: []string{AttributeNameID, AttributeNameKey},
	})
	var writes []Write
	for rows.Next(ctx) {
		writes = append(writes, DeleteWrite(KeyOf(rows.Item(), AttributeNameID, AttributeNameKey)))
	}
	if err := rows.Err(); err != nil {
		m.log.LogDelete(ctx, key, 0, err)
		return 0, fmt.Errorf("failed to delete %s: %w", key, err)
	}
	if len(writes) == 0 {
		m.log.LogDelete(ctx, key, 0, nil)
		return 0, nil
	}
	if err := m.table.store.BatchWrite(ctx, writes); err != nil {
		m.log.LogDelete(ctx, key, 0, err)
		return 0, fmt.Errorf("failed to delete %s: %w", key, err)
	}
	m.log.LogDelete(ctx, key, len(writes), nil)
	return len(writes), nil
}

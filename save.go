package dynamodel

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// writePlan collects the rows staged by one save and the baselines to record
// once they are written.
type writePlan struct {
	writes       []Write
	puts         int
	deletes      int
	version      int
	versions     []*Version
	itemWritten  bool
	indexRows    map[string]Item
	relationRows map[string]Item
	relationKeys []string
	dropped      []string
}

func (p *writePlan) put(item Item) {
	p.writes = append(p.writes, PutWrite(item))
	p.puts++
}

func (p *writePlan) delete(key Item) {
	p.writes = append(p.writes, DeleteWrite(key))
	p.deletes++
}

// Save writes every row whose content changed since the last load or save
// and deletes relation and version rows that are no longer needed. Writes
// go out in a single batch; when nothing changed nothing is sent. Save
// returns the number of rows written or deleted.
func (e *Entity) Save(ctx context.Context) (int, error) {
	m := e.model
	if e.key == "" {
		e.key = m.GenerateKey()
	}

	names := m.schema.fieldNames()
	itemChanged := !e.persisted || e.state.EntityChanged(e.fields, names)
	if e.partial && (itemChanged || len(e.edits) > 0) {
		if err := e.complete(ctx); err != nil {
			return 0, err
		}
	}
	for _, f := range e.state.ChangedFields(e.fields, names) {
		e.state.SetDirty(nsEntity, f)
	}

	now := m.table.now()
	created := e.created
	if created.IsZero() {
		created = now
	}

	plan := &writePlan{version: e.version, versions: e.versions}
	if itemChanged {
		plan.version++
	}
	e.writeVersion(plan, itemChanged, now)
	e.writeIndexes(plan, created)
	e.writeRelations(plan)
	if itemChanged {
		item, err := e.itemRow(plan.version, created, now)
		if err != nil {
			return 0, err
		}
		plan.put(item)
		plan.itemWritten = true
	}

	n, err := e.commit(ctx, plan)
	if err != nil {
		return 0, err
	}
	if plan.itemWritten {
		e.created = created
		e.updated = now
	}
	return n, nil
}

// writeVersion stages a version row when a versioned field changed, and
// deletes the oldest rows beyond the retention limit.
func (e *Entity) writeVersion(p *writePlan, itemChanged bool, now time.Time) {
	s := e.model.schema
	if !itemChanged || s.MaxVersions == 0 {
		return
	}
	versioned := s.versionedFields()
	changed := false
	for _, f := range versioned {
		if e.state.Changed(nsEntity, f, e.fields[f]) {
			changed = true
			break
		}
	}
	if !changed {
		return
	}

	v := &Version{Number: p.version, Created: now, Fields: make(map[string]any, len(versioned))}
	row := Item{
		AttributeNameID:      &types.AttributeValueMemberS{Value: e.key},
		AttributeNameKey:     &types.AttributeValueMemberS{Value: e.model.table.keys.Format(KeySegments{Entity: e.Type(), Version: v.Number})},
		AttributeNameSort:    &types.AttributeValueMemberS{Value: e.ID()},
		AttributeNameVersion: &types.AttributeValueMemberN{Value: strconv.Itoa(v.Number)},
		AttributeNameCreated: &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
	}
	for _, f := range versioned {
		val, ok := e.fields[f]
		if !ok {
			continue
		}
		v.Fields[f] = val
		if av, err := encodeField(s.Fields[f].Type, val); err == nil && av != nil {
			row[f] = av
		}
	}
	if rl := e.allRelationKeys(); len(rl) > 0 {
		v.Relations = rl
		row[AttributeNameRelations] = &types.AttributeValueMemberSS{Value: rl}
	}
	p.put(row)

	versions := append(slices.Clone(p.versions), v)
	if s.MaxVersions > 0 {
		for len(versions) > s.MaxVersions {
			p.delete(Item{
				AttributeNameID:  &types.AttributeValueMemberS{Value: e.key},
				AttributeNameKey: &types.AttributeValueMemberS{Value: e.model.table.keys.Format(KeySegments{Entity: e.Type(), Version: versions[0].Number})},
			})
			versions = versions[1:]
		}
	}
	p.versions = versions
}

// writeIndexes stages every index row whose content changed.
func (e *Entity) writeIndexes(p *writePlan, created time.Time) {
	p.indexRows = make(map[string]Item)
	for _, d := range e.model.table.Registry.Indexes(e.Type()) {
		row := e.indexRow(d, created)
		if e.state.Changed(nsIndex, d.Name, row) {
			p.put(row)
			p.indexRows[d.Name] = row
		}
	}
}

// writeRelations stages relation rows that are new, whose content changed,
// or whose included fields changed upstream, and deletes rows of targets
// that were detached.
func (e *Entity) writeRelations(p *writePlan) {
	p.relationRows = make(map[string]Item)
	previous := e.relationKeys()
	current := make(map[string]bool, len(e.relations))

	for _, a := range e.relations {
		d, ok := e.model.table.Registry.Relation(e.Type(), a.name)
		if !ok {
			continue
		}
		row := e.relationRow(d, a.target)
		kt := stringAttr(row, AttributeNameKey)
		if current[kt] {
			continue
		}
		current[kt] = true

		includeChanged := false
		for _, f := range d.include {
			if e.state.IsDirty(nsEntity, f) {
				includeChanged = true
				break
			}
		}
		if !includeChanged && d.search != nil {
			for _, f := range d.search.fields {
				if e.state.IsDirty(nsEntity, f) {
					includeChanged = true
					break
				}
			}
		}
		if includeChanged || e.state.Changed(nsRelation, kt, row) {
			p.put(row)
			p.relationRows[kt] = row
		}
	}

	for _, kt := range previous {
		if current[kt] {
			continue
		}
		p.delete(Item{
			AttributeNameID:  &types.AttributeValueMemberS{Value: e.key},
			AttributeNameKey: &types.AttributeValueMemberS{Value: kt},
		})
		p.dropped = append(p.dropped, kt)
	}

	p.relationKeys = make([]string, 0, len(current))
	for kt := range current {
		p.relationKeys = append(p.relationKeys, kt)
	}
	slices.Sort(p.relationKeys)
}

// itemRow builds the item row.
func (e *Entity) itemRow(version int, created, now time.Time) (Item, error) {
	item, err := e.encodeFields()
	if err != nil {
		return nil, err
	}
	item[AttributeNameID] = &types.AttributeValueMemberS{Value: e.key}
	item[AttributeNameKey] = &types.AttributeValueMemberS{Value: e.Type()}
	item[AttributeNameSort] = &types.AttributeValueMemberS{Value: e.ID()}
	item[AttributeNameVersion] = &types.AttributeValueMemberN{Value: strconv.Itoa(version)}
	item[AttributeNameCreated] = &types.AttributeValueMemberS{Value: created.Format(time.RFC3339Nano)}
	item[AttributeNameUpdated] = &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)}
	return item, nil
}

// commit sends the staged writes and records the new baselines.
func (e *Entity) commit(ctx context.Context, p *writePlan) (int, error) {
	log := e.model.log
	if len(p.writes) == 0 {
		log.LogSave(ctx, e.key, 0, 0, nil)
		return 0, nil
	}
	if err := e.model.table.store.BatchWrite(ctx, p.writes); err != nil {
		log.LogSave(ctx, e.key, p.puts, p.deletes, err)
		return 0, fmt.Errorf("failed to save %s: %w", e.key, err)
	}
	log.LogSave(ctx, e.key, p.puts, p.deletes, nil)

	s := e.state
	s.ClearDirty()
	s.InitEntity(e.fields, e.model.schema.fieldNames())
	for name, row := range p.indexRows {
		s.Set(nsIndex, name, row, true)
	}
	for kt, row := range p.relationRows {
		s.Set(nsRelation, kt, row, true)
	}
	for _, kt := range p.dropped {
		s.Reset(nsRelation, kt)
	}
	s.Set(nsRelationKeys, "keys", p.relationKeys, true)

	e.version = p.version
	e.versions = p.versions
	e.persisted = true
	e.edits = nil
	return len(p.writes), nil
}

// relationKeys returns the relation row keys recorded by the last load or
// save.
func (e *Entity) relationKeys() []string {
	v, ok := e.state.Get(nsRelationKeys, "keys")
	if !ok {
		return nil
	}
	keys, _ := v.([]string)
	return keys
}

package dynamodel

import (
	"fmt"
	"slices"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func (e *Entity) relationDescriptor(name string) (*RelationDescriptor, error) {
	return e.model.Relation(name)
}

func (e *Entity) checkTarget(d *RelationDescriptor, target *Entity) error {
	if target == nil {
		return fmt.Errorf("%w: %s.%s: nil target", ErrInvalidRelation, e.Type(), d.Name)
	}
	if target.key == "" {
		return fmt.Errorf("%w: %s.%s: target has no identity", ErrInvalidRelation, e.Type(), d.Name)
	}
	if target.Type() != d.Target {
		return fmt.Errorf("%w: %s.%s expects %s, got %s", ErrInvalidRelation, e.Type(), d.Name, d.Target, target.Type())
	}
	return nil
}

type editOp int

const (
	editAdd editOp = iota
	editRemove
	editReplace
)

// relationEdit is one mutation of a relation, kept until the next save so
// it can be replayed over the stored targets of a partial entity.
type relationEdit struct {
	op      editOp
	d       *RelationDescriptor
	targets []*Entity
}

func (e *Entity) record(edit relationEdit) {
	if e.edits == nil {
		e.edits = make(map[string][]relationEdit)
	}
	e.edits[edit.d.Name] = append(e.edits[edit.d.Name], edit)
}

// apply returns rels with the edit applied.
func (edit relationEdit) apply(rels []attachment) []attachment {
	name := edit.d.Name
	switch edit.op {
	case editAdd:
		target := edit.targets[0]
		rels = slices.DeleteFunc(rels, func(a attachment) bool {
			return a.name == name && (!edit.d.Multiple || a.target.key == target.key)
		})
		return append(rels, attachment{name: name, target: target})
	case editRemove:
		key := edit.targets[0].key
		return slices.DeleteFunc(rels, func(a attachment) bool {
			return a.name == name && a.target.key == key
		})
	default:
		rels = slices.DeleteFunc(rels, func(a attachment) bool { return a.name == name })
		for _, t := range edit.targets {
			rels = append(rels, attachment{name: name, target: t})
		}
		return rels
	}
}

func (e *Entity) edit(edit relationEdit) {
	e.relations = edit.apply(e.relations)
	e.record(edit)
}

// AddRelation attaches target under name. A target already attached under
// name is replaced; on a singular relation any previous target is replaced.
func (e *Entity) AddRelation(name string, target *Entity) error {
	d, err := e.relationDescriptor(name)
	if err != nil {
		return err
	}
	if err := e.checkTarget(d, target); err != nil {
		return err
	}
	e.edit(relationEdit{op: editAdd, d: d, targets: []*Entity{target}})
	return nil
}

// RemoveRelation detaches target from name. Removing a target that is not
// attached does nothing.
func (e *Entity) RemoveRelation(name string, target *Entity) error {
	d, err := e.relationDescriptor(name)
	if err != nil {
		return err
	}
	if err := e.checkTarget(d, target); err != nil {
		return err
	}
	e.edit(relationEdit{op: editRemove, d: d, targets: []*Entity{target}})
	return nil
}

// SetRelations replaces every target attached under name.
func (e *Entity) SetRelations(name string, targets []*Entity) error {
	d, err := e.relationDescriptor(name)
	if err != nil {
		return err
	}
	if !d.Multiple && len(targets) > 1 {
		return fmt.Errorf("%w: %s.%s holds a single target", ErrInvalidRelation, e.Type(), name)
	}
	next := make([]*Entity, 0, len(targets))
	seen := make(map[string]bool, len(targets))
	for _, t := range targets {
		if err := e.checkTarget(d, t); err != nil {
			return err
		}
		if seen[t.key] {
			continue
		}
		seen[t.key] = true
		next = append(next, t)
	}
	e.edit(relationEdit{op: editReplace, d: d, targets: next})
	return nil
}

// SetRelation replaces the target of a relation. A nil target clears it.
func (e *Entity) SetRelation(name string, target *Entity) error {
	if target == nil {
		return e.SetRelations(name, nil)
	}
	return e.SetRelations(name, []*Entity{target})
}

// Relations returns the targets attached under name in attachment order.
func (e *Entity) Relations(name string) []*Entity {
	var out []*Entity
	for _, a := range e.relations {
		if a.name == name {
			out = append(out, a.target)
		}
	}
	return out
}

// Relation returns the first target attached under name, or nil.
func (e *Entity) Relation(name string) *Entity {
	for _, a := range e.relations {
		if a.name == name {
			return a.target
		}
	}
	return nil
}

// RelationByID returns the target attached under name with the given id or
// key, or nil.
func (e *Entity) RelationByID(name, id string) *Entity {
	d, err := e.relationDescriptor(name)
	if err != nil {
		return nil
	}
	key := e.model.table.keys.EnsurePrefix(d.Target, id)
	for _, a := range e.relations {
		if a.name == name && a.target.key == key {
			return a.target
		}
	}
	return nil
}

// attachIDs attaches references built from an id or a list of ids.
func (e *Entity) attachIDs(name string, v any) error {
	d, err := e.relationDescriptor(name)
	if err != nil {
		return err
	}
	var ids []string
	switch x := v.(type) {
	case nil:
	case string:
		ids = []string{x}
	case []string:
		ids = x
	case []any:
		for _, el := range x {
			s, ok := el.(string)
			if !ok {
				return fmt.Errorf("%w: %s.%s: id must be a string, got %T", ErrInvalidRelation, e.Type(), name, el)
			}
			ids = append(ids, s)
		}
	default:
		return fmt.Errorf("%w: %s.%s: unsupported value %T", ErrInvalidRelation, e.Type(), name, v)
	}
	tm := e.model.target(d.Target)
	targets := make([]*Entity, 0, len(ids))
	for _, id := range ids {
		t, err := tm.FromID(id)
		if err != nil {
			return err
		}
		targets = append(targets, t)
	}
	return e.SetRelations(name, targets)
}

// relationKey formats the row key of a relation row.
func (e *Entity) relationKey(name, targetKey string) string {
	return e.model.table.keys.Format(KeySegments{
		Entity:   e.Type(),
		Index:    name,
		Relation: targetKey,
	})
}

// relationRow builds the row of one attachment.
func (e *Entity) relationRow(d *RelationDescriptor, target *Entity) Item {
	row := Item{
		AttributeNameID:   &types.AttributeValueMemberS{Value: e.key},
		AttributeNameKey:  &types.AttributeValueMemberS{Value: e.relationKey(d.Name, target.key)},
		AttributeNameSort: &types.AttributeValueMemberS{Value: e.key},
	}
	if sf := e.includedFields(d.include); sf != nil {
		row[AttributeNameFields] = sf
	}
	if d.search != nil {
		row[AttributeNameSearch] = e.searchTokens(d.search)
	}
	return row
}

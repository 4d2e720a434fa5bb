// Package assert provides fluent assertion utilities for testing stored rows
// and dynamodel entities.
//
// # Usage
//
//	import "github.com/nisimpson/dynamodel/dynamock/assert"
//
//	// Assert on the rows of a partition
//	assert.Items(t, store.Partition("User:u1")).
//		HasCount(3).
//		ContainsItemRow("User", "u1").
//		ContainsIndexRow("User", "u1", "byName").
//		ContainsRelationRow("User", "u1", "groups", "Group:g1")
//
//	// Assert on a single row
//	assert.Row(t, row).
//		IsIndex().
//		HasIncludedField("name", "Ann").
//		HasSearchToken("name", "ann")
//
//	// Assert on entities
//	assert.Entity(t, user).
//		IsPersisted().
//		HasField("name", "Ann").
//		HasRelation("groups", "g1")
package assert

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nisimpson/dynamodel"
	"github.com/nisimpson/dynamodel/dynamock"
)

var defaultKeys = dynamodel.NewKeyCodec(dynamodel.DefaultSeparators(), dynamodel.DefaultVersionSize)

// ItemsAssertion provides fluent assertions for stored rows.
type ItemsAssertion struct {
	t     testing.TB
	items []dynamodel.Item
	keys  *dynamodel.KeyCodec
}

// Items creates a new ItemsAssertion for the given rows. Row keys are
// formatted with the default separators; see Using.
func Items(t testing.TB, items []dynamodel.Item) *ItemsAssertion {
	return &ItemsAssertion{
		t:     t,
		items: items,
		keys:  defaultKeys,
	}
}

// Using sets the key codec row keys are formatted with.
func (a *ItemsAssertion) Using(keys *dynamodel.KeyCodec) *ItemsAssertion {
	a.keys = keys
	return a
}

// HasCount asserts that the items collection has the expected count.
func (a *ItemsAssertion) HasCount(expected int) *ItemsAssertion {
	a.t.Helper()
	if len(a.items) != expected {
		a.t.Errorf("expected %d items, got %d", expected, len(a.items))
	}
	return a
}

// IsEmpty asserts that the items collection is empty.
func (a *ItemsAssertion) IsEmpty() *ItemsAssertion {
	a.t.Helper()
	return a.HasCount(0)
}

// IsNotEmpty asserts that the items collection is not empty.
func (a *ItemsAssertion) IsNotEmpty() *ItemsAssertion {
	a.t.Helper()
	if len(a.items) == 0 {
		a.t.Error("expected items to not be empty")
	}
	return a
}

func (a *ItemsAssertion) contains(id, kt string) bool {
	for _, item := range a.items {
		if attr(item, dynamodel.AttributeNameID) == id && attr(item, dynamodel.AttributeNameKey) == kt {
			return true
		}
	}
	return false
}

func (a *ItemsAssertion) expect(id string, seg dynamodel.KeySegments, present bool) *ItemsAssertion {
	a.t.Helper()
	kt := a.keys.Format(seg)
	switch found := a.contains(id, kt); {
	case present && !found:
		a.t.Errorf("expected to find row (%s, %s) in items", id, kt)
	case !present && found:
		a.t.Errorf("expected row (%s, %s) to be absent from items", id, kt)
	}
	return a
}

// ContainsItemRow asserts that the items contain the item row of typ:id.
func (a *ItemsAssertion) ContainsItemRow(typ, id string) *ItemsAssertion {
	a.t.Helper()
	return a.expect(a.keys.EntityKey(typ, id), dynamodel.KeySegments{Entity: typ}, true)
}

// ContainsIndexRow asserts that the items contain the row of one index.
func (a *ItemsAssertion) ContainsIndexRow(typ, id, index string) *ItemsAssertion {
	a.t.Helper()
	return a.expect(a.keys.EntityKey(typ, id), dynamodel.KeySegments{Entity: typ, Index: index}, true)
}

// ContainsRelationRow asserts that the items contain the relation row
// linking typ:id to the target entity key.
func (a *ItemsAssertion) ContainsRelationRow(typ, id, relation, targetKey string) *ItemsAssertion {
	a.t.Helper()
	return a.expect(a.keys.EntityKey(typ, id), dynamodel.KeySegments{Entity: typ, Index: relation, Relation: targetKey}, true)
}

// LacksRelationRow asserts that the relation row is absent.
func (a *ItemsAssertion) LacksRelationRow(typ, id, relation, targetKey string) *ItemsAssertion {
	a.t.Helper()
	return a.expect(a.keys.EntityKey(typ, id), dynamodel.KeySegments{Entity: typ, Index: relation, Relation: targetKey}, false)
}

// ContainsVersionRow asserts that the items contain version n of typ:id.
func (a *ItemsAssertion) ContainsVersionRow(typ, id string, n int) *ItemsAssertion {
	a.t.Helper()
	return a.expect(a.keys.EntityKey(typ, id), dynamodel.KeySegments{Entity: typ, Version: n}, true)
}

// LacksVersionRow asserts that version n of typ:id is absent.
func (a *ItemsAssertion) LacksVersionRow(typ, id string, n int) *ItemsAssertion {
	a.t.Helper()
	return a.expect(a.keys.EntityKey(typ, id), dynamodel.KeySegments{Entity: typ, Version: n}, false)
}

// HasAttribute asserts that at least one item has the specified string
// attribute with the expected value.
func (a *ItemsAssertion) HasAttribute(attributeName, expectedValue string) *ItemsAssertion {
	a.t.Helper()
	for _, item := range a.items {
		if attr(item, attributeName) == expectedValue {
			return a
		}
	}
	a.t.Errorf("expected to find attribute %s with value %s in items", attributeName, expectedValue)
	return a
}

// RowAssertion provides fluent assertions for a single stored row.
type RowAssertion struct {
	t    testing.TB
	item dynamodel.Item
	keys *dynamodel.KeyCodec
}

// Row creates a new RowAssertion for the given row.
func Row(t testing.TB, item dynamodel.Item) *RowAssertion {
	return &RowAssertion{t: t, item: item, keys: defaultKeys}
}

// Using sets the key codec row keys are parsed with.
func (a *RowAssertion) Using(keys *dynamodel.KeyCodec) *RowAssertion {
	a.keys = keys
	return a
}

// HasAttribute asserts a string attribute value.
func (a *RowAssertion) HasAttribute(attrName, expectedValue string) *RowAssertion {
	a.t.Helper()
	if got := attr(a.item, attrName); got != expectedValue {
		a.t.Errorf("expected %s to be %q, got %q", attrName, expectedValue, got)
	}
	return a
}

// LacksAttribute asserts that an attribute is absent.
func (a *RowAssertion) LacksAttribute(attrName string) *RowAssertion {
	a.t.Helper()
	if _, ok := a.item[attrName]; ok {
		a.t.Errorf("expected %s to be absent", attrName)
	}
	return a
}

// HasSortKey asserts the $sk value.
func (a *RowAssertion) HasSortKey(expected string) *RowAssertion {
	a.t.Helper()
	return a.HasAttribute(dynamodel.AttributeNameSort, expected)
}

// HasIncludedField asserts a string entry of the $sf map.
func (a *RowAssertion) HasIncludedField(fieldName, expectedValue string) *RowAssertion {
	a.t.Helper()
	return a.expectPath(dynamodel.AttributeNameFields+"."+fieldName, expectedValue)
}

// HasSearchToken asserts an entry of the $ss map.
func (a *RowAssertion) HasSearchToken(fieldName, expectedValue string) *RowAssertion {
	a.t.Helper()
	return a.expectPath(dynamodel.AttributeNameSearch+"."+fieldName, expectedValue)
}

func (a *RowAssertion) expectPath(path, expectedValue string) *RowAssertion {
	a.t.Helper()
	av, ok := dynamock.Resolve(a.item, path)
	if !ok {
		a.t.Errorf("expected %s to be %q, but it is absent", path, expectedValue)
		return a
	}
	s, ok := av.(*types.AttributeValueMemberS)
	if !ok || s.Value != expectedValue {
		a.t.Errorf("expected %s to be %q, got %v", path, expectedValue, av)
	}
	return a
}

// HasRelationKey asserts that the $rl set contains the relation row key.
func (a *RowAssertion) HasRelationKey(kt string) *RowAssertion {
	a.t.Helper()
	if ss, ok := a.item[dynamodel.AttributeNameRelations].(*types.AttributeValueMemberSS); ok {
		for _, v := range ss.Value {
			if v == kt {
				return a
			}
		}
	}
	a.t.Errorf("expected %s to contain %q", dynamodel.AttributeNameRelations, kt)
	return a
}

func (a *RowAssertion) segments() dynamodel.KeySegments {
	return a.keys.Parse(attr(a.item, dynamodel.AttributeNameKey))
}

// IsItem asserts that the row is an item row.
func (a *RowAssertion) IsItem() *RowAssertion {
	a.t.Helper()
	if !a.segments().IsItem() {
		a.t.Errorf("expected an item row, got %s", attr(a.item, dynamodel.AttributeNameKey))
	}
	return a
}

// IsIndex asserts that the row is an index row.
func (a *RowAssertion) IsIndex() *RowAssertion {
	a.t.Helper()
	if !a.segments().IsIndex() {
		a.t.Errorf("expected an index row, got %s", attr(a.item, dynamodel.AttributeNameKey))
	}
	return a
}

// IsRelation asserts that the row is a relation row.
func (a *RowAssertion) IsRelation() *RowAssertion {
	a.t.Helper()
	if !a.segments().IsRelation() {
		a.t.Errorf("expected a relation row, got %s", attr(a.item, dynamodel.AttributeNameKey))
	}
	return a
}

// IsVersion asserts that the row is a version row.
func (a *RowAssertion) IsVersion() *RowAssertion {
	a.t.Helper()
	if !a.segments().IsVersion() {
		a.t.Errorf("expected a version row, got %s", attr(a.item, dynamodel.AttributeNameKey))
	}
	return a
}

// EntityAssertion provides fluent assertions for entities.
type EntityAssertion struct {
	t      testing.TB
	entity *dynamodel.Entity
}

// Entity creates a new EntityAssertion for the given entity.
func Entity(t testing.TB, entity *dynamodel.Entity) *EntityAssertion {
	t.Helper()
	if entity == nil {
		t.Fatal("expected an entity, got nil")
	}
	return &EntityAssertion{t: t, entity: entity}
}

// IsPersisted asserts that the entity was loaded or saved.
func (a *EntityAssertion) IsPersisted() *EntityAssertion {
	a.t.Helper()
	if !a.entity.Persisted() {
		a.t.Errorf("expected %s to be persisted", a.entity.Key())
	}
	return a
}

// IsUnchanged asserts that the entity has no pending field changes.
func (a *EntityAssertion) IsUnchanged() *EntityAssertion {
	a.t.Helper()
	if a.entity.Changed() {
		a.t.Errorf("expected %s to be unchanged", a.entity.Key())
	}
	return a
}

// HasID asserts the bare id.
func (a *EntityAssertion) HasID(expectedID string) *EntityAssertion {
	a.t.Helper()
	if got := a.entity.ID(); got != expectedID {
		a.t.Errorf("expected id %q, got %q", expectedID, got)
	}
	return a
}

// HasField asserts a field value by canonical equality.
func (a *EntityAssertion) HasField(name string, expected any) *EntityAssertion {
	a.t.Helper()
	got := a.entity.Get(name)
	if dynamodel.Canonical(got) != dynamodel.Canonical(expected) {
		a.t.Errorf("expected %s.%s to be %v, got %v", a.entity.Type(), name, expected, got)
	}
	return a
}

// HasVersion asserts the running version counter.
func (a *EntityAssertion) HasVersion(expected int) *EntityAssertion {
	a.t.Helper()
	if got := a.entity.Version(); got != expected {
		a.t.Errorf("expected version %d, got %d", expected, got)
	}
	return a
}

// HasVersionCount asserts the number of loaded version rows.
func (a *EntityAssertion) HasVersionCount(expected int) *EntityAssertion {
	a.t.Helper()
	if got := len(a.entity.Versions()); got != expected {
		a.t.Errorf("expected %d versions, got %d", expected, got)
	}
	return a
}

// HasRelation asserts that a target with the given id is attached.
func (a *EntityAssertion) HasRelation(name, id string) *EntityAssertion {
	a.t.Helper()
	if a.entity.RelationByID(name, id) == nil {
		a.t.Errorf("expected %s.%s to hold %q", a.entity.Type(), name, id)
	}
	return a
}

// HasRelationCount asserts the number of targets attached under name.
func (a *EntityAssertion) HasRelationCount(name string, expected int) *EntityAssertion {
	a.t.Helper()
	if got := len(a.entity.Relations(name)); got != expected {
		a.t.Errorf("expected %d targets in %s.%s, got %d", expected, a.entity.Type(), name, got)
	}
	return a
}

func attr(item dynamodel.Item, name string) string {
	if s, ok := item[name].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

package assert

import (
	"context"
	"testing"

	"github.com/nisimpson/dynamodel"
	"github.com/nisimpson/dynamodel/dynamock"
)

// recorder captures failures instead of failing the test.
type recorder struct {
	testing.TB
	failures int
}

func (r *recorder) Helper()                           {}
func (r *recorder) Error(args ...any)                 { r.failures++ }
func (r *recorder) Errorf(format string, args ...any) { r.failures++ }
func (r *recorder) Fatal(args ...any)                 { r.failures++ }

func seeded(t *testing.T) (*dynamock.MemoryStore, *dynamodel.Entity) {
	t.Helper()
	store := dynamock.NewMemoryStore()
	table := dynamodel.NewTable("test-table", store)
	groups := table.MustRegister(dynamodel.Schema{Type: "Group"})
	users := table.MustRegister(dynamodel.Schema{
		Type:   "User",
		Fields: map[string]dynamodel.Field{"name": {Type: dynamodel.FieldString, Versioned: true}},
		Relations: map[string]dynamodel.RelationDef{
			"groups": {Target: "Group", Multiple: true},
		},
		Indexes: map[string]dynamodel.IndexDef{
			"byName": {
				Field:     "name",
				Include:   []string{"name"},
				Search:    &dynamodel.SearchSpec{Steps: []dynamodel.NormalizeStep{dynamodel.Step(dynamodel.StepLower)}},
				Relations: []string{"groups"},
			},
		},
		MaxVersions: 2,
	})

	user := dynamock.NewEntity(users,
		dynamock.WithID("u1"),
		dynamock.WithField("name", "Ann"),
		dynamock.WithRelation("groups", dynamock.Ref(t, groups, "g1")),
	).MustBuild(t)
	if _, err := user.Save(context.Background()); err != nil {
		t.Fatalf("failed to save: %v", err)
	}
	return store, user
}

func TestItems(t *testing.T) {
	store, _ := seeded(t)

	Items(t, store.Partition("User:u1")).
		HasCount(4).
		IsNotEmpty().
		ContainsItemRow("User", "u1").
		ContainsIndexRow("User", "u1", "byName").
		ContainsRelationRow("User", "u1", "groups", "Group:g1").
		LacksRelationRow("User", "u1", "groups", "Group:g2").
		ContainsVersionRow("User", "u1", 1).
		LacksVersionRow("User", "u1", 2).
		HasAttribute(dynamodel.AttributeNameSort, "Ann")

	Items(t, store.Partition("User:u2")).IsEmpty()
}

func TestItems_Failures(t *testing.T) {
	store, _ := seeded(t)
	r := &recorder{TB: t}

	Items(r, store.Partition("User:u1")).
		HasCount(1).
		ContainsIndexRow("User", "u1", "missing").
		LacksVersionRow("User", "u1", 1).
		HasAttribute("nope", "x")

	if r.failures != 4 {
		t.Errorf("expected 4 failures, got %d", r.failures)
	}
}

func TestRow(t *testing.T) {
	store, _ := seeded(t)

	index, ok := store.Item("User:u1", "User$byName")
	if !ok {
		t.Fatal("expected the index row")
	}
	Row(t, index).
		IsIndex().
		HasSortKey("Ann").
		HasIncludedField("name", "Ann").
		HasSearchToken("name", "ann").
		HasRelationKey("User$groups@Group:g1")

	item, _ := store.Item("User:u1", "User")
	Row(t, item).IsItem().HasAttribute("name", "Ann").LacksAttribute(dynamodel.AttributeNameFields)

	relation, _ := store.Item("User:u1", "User$groups@Group:g1")
	Row(t, relation).IsRelation().HasSortKey("User:u1")

	version, _ := store.Item("User:u1", "User#000001")
	Row(t, version).IsVersion()

	r := &recorder{TB: t}
	Row(r, item).IsIndex().HasSearchToken("name", "ann").HasRelationKey("x")
	if r.failures != 3 {
		t.Errorf("expected 3 failures, got %d", r.failures)
	}
}

func TestEntity(t *testing.T) {
	_, user := seeded(t)

	Entity(t, user).
		IsPersisted().
		IsUnchanged().
		HasID("u1").
		HasField("name", "Ann").
		HasVersion(1).
		HasVersionCount(1).
		HasRelation("groups", "g1").
		HasRelationCount("groups", 1)

	user.MustSet("name", "Bob")
	r := &recorder{TB: t}
	Entity(r, user).IsUnchanged().HasField("name", "Ann").HasRelation("groups", "g2")
	if r.failures != 3 {
		t.Errorf("expected 3 failures, got %d", r.failures)
	}
}

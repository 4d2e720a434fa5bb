package dynamock

import (
	"context"
	"strings"
	"testing"
)

func TestSeedFromJSON(t *testing.T) {
	store, users, _ := testModels(t)
	seeder := NewSeedTestData(users.Table())
	ctx := context.Background()

	doc := `[
		{"type": "Group", "id": "g1", "attributes": {"title": "Admins"}},
		{"type": "Group", "id": "g2", "attributes": {"title": "Users"}},
		{
			"type": "User",
			"id": "u1",
			"attributes": {"name": "Ann", "age": 42, "tags": ["a", "b"]},
			"relationships": {
				"groups": {"data": [{"type": "Group", "id": "g1"}, {"type": "Group", "id": "g2"}]}
			}
		}
	]`

	n, err := seeder.SeedFromJSON(ctx, strings.NewReader(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 seeded entities, got %d", n)
	}

	user, err := users.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user == nil {
		t.Fatal("expected the seeded user to load")
	}
	if user.GetString("name") != "Ann" || user.GetInt("age") != 42 {
		t.Errorf("unexpected fields %v", user.Fields())
	}
	if got := user.GetStrings("tags"); len(got) != 2 {
		t.Errorf("expected 2 tags, got %v", got)
	}
	if got := len(user.Relations("groups")); got != 2 {
		t.Errorf("expected 2 groups, got %d", got)
	}
	// 2 groups, user item, name index, 2 relations
	if store.Len() != 6 {
		t.Errorf("expected 6 rows, got %d", store.Len())
	}
}

func TestSeedFromJSON_SingleRelationship(t *testing.T) {
	_, users, _ := testModels(t)
	seeder := NewSeedTestData(users.Table())

	doc := `[{"type": "User", "id": "u1", "relationships": {"groups": {"data": {"type": "Group", "id": "g1"}}}}]`
	if _, err := seeder.SeedFromJSON(context.Background(), strings.NewReader(doc)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSeedFromJSON_Errors(t *testing.T) {
	_, users, _ := testModels(t)
	seeder := NewSeedTestData(users.Table())

	tests := []struct {
		name string
		doc  string
	}{
		{"invalid json", `[{`},
		{"missing type", `[{"id": "x"}]`},
		{"missing id", `[{"type": "User"}]`},
		{"unregistered type", `[{"type": "Other", "id": "x"}]`},
		{"unknown attribute", `[{"type": "User", "id": "x", "attributes": {"nope": 1}}]`},
		{"bad relationship data", `[{"type": "User", "id": "x", "relationships": {"groups": {"data": "g1"}}}]`},
		{"identifier without id", `[{"type": "User", "id": "x", "relationships": {"groups": {"data": {"type": "Group"}}}}]`},
		{"undeclared relationship", `[{"type": "User", "id": "x", "relationships": {"friends": {"data": {"type": "User", "id": "y"}}}}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := seeder.SeedFromJSON(context.Background(), strings.NewReader(tt.doc))
			if err == nil {
				t.Error("expected an error")
			}
			if n != 0 {
				t.Errorf("expected nothing seeded, got %d", n)
			}
		})
	}
}

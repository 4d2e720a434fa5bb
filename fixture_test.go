package dynamodel_test

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nisimpson/dynamodel"
	"github.com/nisimpson/dynamodel/dynamock"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store  *dynamock.MemoryStore
	table  *dynamodel.Table
	users  *dynamodel.Model
	groups *dynamodel.Model
}

// newFixture registers two types on a memory store:
//
//	Group {title}
//	User  {name (versioned), email, age, tags}
//	      groups -> Group (many, copies name)
//	      manager -> User
//	      byName index: sorted by name, includes name and email,
//	      searchable on name, exposes groups
func newFixture(t *testing.T, opts ...func(*dynamodel.Table)) *fixture {
	t.Helper()
	store := dynamock.NewMemoryStore()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	base := []func(*dynamodel.Table){
		dynamodel.WithClock(func() time.Time {
			now = now.Add(time.Second)
			return now
		}),
		dynamodel.WithContinuationTokenKey("test"),
	}
	f := registerModels(dynamodel.NewTable("test-table", store, append(base, opts...)...))
	f.store = store
	return f
}

// registerModels registers the test types on table.
func registerModels(table *dynamodel.Table) *fixture {
	groups := table.MustRegister(dynamodel.Schema{
		Type:   "Group",
		Fields: map[string]dynamodel.Field{"title": {Type: dynamodel.FieldString}},
	})
	users := table.MustRegister(dynamodel.Schema{
		Type: "User",
		Fields: map[string]dynamodel.Field{
			"name":  {Type: dynamodel.FieldString, Versioned: true},
			"email": {Type: dynamodel.FieldString},
			"age":   {Type: dynamodel.FieldNumber},
			"tags":  {Type: dynamodel.FieldStringSet},
		},
		Relations: map[string]dynamodel.RelationDef{
			"groups": {
				Target:   "Group",
				Multiple: true,
				Include:  []string{"name"},
				Search:   &dynamodel.SearchSpec{Steps: []dynamodel.NormalizeStep{dynamodel.Step(dynamodel.StepCaseInsensitive)}},
			},
			"manager": {Target: "User"},
		},
		Indexes: map[string]dynamodel.IndexDef{
			"byName": {
				Field:   "name",
				Include: []string{"name", "email"},
				Search: &dynamodel.SearchSpec{
					Fields: []string{"name"},
					Steps:  []dynamodel.NormalizeStep{dynamodel.Step(dynamodel.StepNoAccents), dynamodel.Step(dynamodel.StepCaseInsensitive)},
				},
				Relations: []string{"groups"},
			},
		},
		MaxVersions: 2,
	})

	return &fixture{table: table, users: users, groups: groups}
}

func (f *fixture) group(t *testing.T, id string) *dynamodel.Entity {
	t.Helper()
	g, err := f.groups.FromID(id)
	require.NoError(t, err)
	return g
}

// user saves a new user attached to the given groups.
func (f *fixture) user(t *testing.T, id, name string, groups ...string) *dynamodel.Entity {
	t.Helper()
	u := f.users.New()
	require.NoError(t, u.SetID(id))
	require.NoError(t, u.Set("name", name))
	require.NoError(t, u.Set("email", id+"@example.com"))
	for _, g := range groups {
		require.NoError(t, u.AddRelation("groups", f.group(t, g)))
	}
	_, err := u.Save(context.Background())
	require.NoError(t, err)
	return u
}

// row returns a stored row and fails when it is missing.
func (f *fixture) row(t *testing.T, id, kt string) dynamodel.Item {
	t.Helper()
	item, ok := f.store.Item(id, kt)
	require.True(t, ok, "expected row (%s, %s)", id, kt)
	return item
}

func (f *fixture) hasRow(id, kt string) bool {
	_, ok := f.store.Item(id, kt)
	return ok
}

func str(t *testing.T, item dynamodel.Item, path string) string {
	t.Helper()
	av, ok := dynamock.Resolve(item, path)
	require.True(t, ok, "expected %s", path)
	s, ok := av.(*types.AttributeValueMemberS)
	require.True(t, ok, "expected %s to be a string, got %T", path, av)
	return s.Value
}

func ids(entities []*dynamodel.Entity) []string {
	out := make([]string, len(entities))
	for i, e := range entities {
		out[i] = e.ID()
	}
	return out
}

package dynamodel_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"slices"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nisimpson/dynamodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSave_New(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := f.users.New()
	require.NoError(t, u.SetID("u1"))
	u.MustSet("name", "Ann").MustSet("email", "ann@example.com").MustSet("age", 30).MustSet("tags", []string{"a", "b"})
	require.NoError(t, u.AddRelation("groups", f.group(t, "g1")))

	n, err := u.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n, "item, index, relation and version rows")
	assert.Equal(t, 4, f.store.Stats().Puts)
	assert.Equal(t, 1, f.store.Stats().BatchWrites, "one batch per save")

	assert.True(t, u.Persisted())
	assert.False(t, u.Changed())
	assert.Equal(t, 1, u.Version())
	assert.False(t, u.CreatedAt().IsZero())
	assert.Equal(t, u.CreatedAt(), u.UpdatedAt())

	item := f.row(t, "User:u1", "User")
	assert.Equal(t, "u1", str(t, item, dynamodel.AttributeNameSort))
	assert.Equal(t, "Ann", str(t, item, "name"))

	index := f.row(t, "User:u1", "User$byName")
	assert.Equal(t, "Ann", str(t, index, dynamodel.AttributeNameSort))
	assert.Equal(t, "ann@example.com", str(t, index, "$sf.email"))
	assert.Equal(t, "ann", str(t, index, "$ss.name"))

	relation := f.row(t, "User:u1", "User$groups@Group:g1")
	assert.Equal(t, "User:u1", str(t, relation, dynamodel.AttributeNameSort))
	assert.Equal(t, "Ann", str(t, relation, "$sf.name"))
	assert.Equal(t, "ann", str(t, relation, "$ss.name"))

	assert.True(t, f.hasRow("User:u1", "User#000001"))
}

func TestSave_GeneratesKey(t *testing.T) {
	f := newFixture(t, dynamodel.WithIDGenerator(func() string { return "generated" }))

	u := f.users.New().MustSet("name", "Ann")
	_, err := u.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "User:generated", u.Key())
	assert.Equal(t, "generated", u.ID())
	assert.Equal(t, "User:generated", f.users.GenerateKey())
}

func TestSave_NoOp(t *testing.T) {
	ctx := context.Background()

	t.Run("after save", func(t *testing.T) {
		f := newFixture(t)
		u := f.user(t, "u1", "Ann", "g1")
		f.store.ResetStats()

		n, err := u.Save(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Zero(t, f.store.Stats().BatchWrites)
	})

	t.Run("after get", func(t *testing.T) {
		f := newFixture(t)
		f.user(t, "u1", "Ann", "g1", "g2")

		u, err := f.users.Get(ctx, "u1")
		require.NoError(t, err)
		require.NotNil(t, u)
		assert.False(t, u.Changed())
		f.store.ResetStats()

		n, err := u.Save(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Zero(t, f.store.Stats().Writes())
	})

	t.Run("after setting equal values", func(t *testing.T) {
		f := newFixture(t)
		u := f.user(t, "u1", "Ann", "g1")
		u.MustSet("name", "Ann")
		require.NoError(t, u.SetRelations("groups", []*dynamodel.Entity{f.group(t, "g1")}))
		f.store.ResetStats()

		n, err := u.Save(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("after find", func(t *testing.T) {
		f := newFixture(t)
		f.user(t, "u1", "Ann", "g1")
		f.user(t, "u2", "Bob", "g1", "g2")

		res, err := f.users.Query().UsingIndex("byName").Find(ctx)
		require.NoError(t, err)
		require.Len(t, res.Items, 2)
		f.store.ResetStats()

		for _, u := range res.Items {
			n, err := u.Save(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)
		}
		assert.Zero(t, f.store.Stats().Queries, "unchanged entities are not completed")
		assert.Zero(t, f.store.Stats().Writes())
	})
}

func TestSave_MinimalDiff(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "u1", "Ann", "g1", "g2")

	u, err := f.users.Get(ctx, "u1")
	require.NoError(t, err)

	tests := []struct {
		name  string
		field string
		value any
		want  int
	}{
		{"field outside every projection", "age", 31, 1},
		{"field included by the index", "email", "ann@other.com", 2},
		{"field included everywhere and versioned", "name", "Anna", 5},
		{"cleared field", "age", nil, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, u.Set(tt.field, tt.value))
			f.store.ResetStats()

			n, err := u.Save(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
			assert.Equal(t, tt.want, f.store.Stats().Writes())
		})
	}
}

func TestSave_RelationIncludePropagation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "u1", "Ann", "g1", "g2")

	u.MustSet("name", "Élodie")
	_, err := u.Save(ctx)
	require.NoError(t, err)

	for _, kt := range []string{"User$groups@Group:g1", "User$groups@Group:g2"} {
		row := f.row(t, "User:u1", kt)
		assert.Equal(t, "Élodie", str(t, row, "$sf.name"), kt)
		assert.Equal(t, "élodie", str(t, row, "$ss.name"), kt)
	}
	index := f.row(t, "User:u1", "User$byName")
	assert.Equal(t, "Élodie", str(t, index, dynamodel.AttributeNameSort))
	assert.Equal(t, "elodie", str(t, index, "$ss.name"))
}

func TestSave_Versions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "u1", "Ann")

	for _, name := range []string{"Bob", "Cid"} {
		u.MustSet("name", name)
		_, err := u.Save(ctx)
		require.NoError(t, err)
	}

	assert.Equal(t, 3, u.Version())
	assert.False(t, f.hasRow("User:u1", "User#000001"), "versions beyond the limit are deleted")
	assert.Equal(t, "Bob", str(t, f.row(t, "User:u1", "User#000002"), "name"))
	assert.Equal(t, "Cid", str(t, f.row(t, "User:u1", "User#000003"), "name"))

	require.Len(t, u.Versions(), 2)
	assert.Equal(t, 2, u.Versions()[0].Number)
	assert.Equal(t, 3, u.Versions()[1].Number)

	// Unversioned changes bump the counter without a version row.
	u.MustSet("age", 40)
	n, err := u.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 4, u.Version())
	assert.False(t, f.hasRow("User:u1", "User#000004"))

	loaded, err := f.users.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.Version())
	require.Len(t, loaded.Versions(), 2)
	assert.Equal(t, "Bob", loaded.Versions()[0].Fields["name"])
	assert.Equal(t, "Cid", loaded.Versions()[1].Fields["name"])

	loaded.MustSet("name", "Dan")
	n, err = loaded.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n, "item, index, version put and version delete")
	assert.False(t, f.hasRow("User:u1", "User#000002"))
	assert.True(t, f.hasRow("User:u1", "User#000005"))
}

func TestSave_VersionRelations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "u1", "Ann", "g2", "g1")

	row := f.row(t, "User:u1", "User#000001")
	rl, ok := row[dynamodel.AttributeNameRelations].(*types.AttributeValueMemberSS)
	require.True(t, ok, "version rows record relation membership")
	assert.Equal(t, []string{"User$groups@Group:g1", "User$groups@Group:g2"}, rl.Value)

	require.NoError(t, u.RemoveRelation("groups", f.group(t, "g1")))
	u.MustSet("name", "Bob")
	_, err := u.Save(ctx)
	require.NoError(t, err)

	loaded, err := f.users.Get(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, loaded.Versions(), 2)
	assert.Equal(t, []string{"User$groups@Group:g1", "User$groups@Group:g2"}, loaded.Versions()[0].Relations)
	assert.Equal(t, []string{"User$groups@Group:g2"}, loaded.Versions()[1].Relations)

	f.user(t, "u2", "Cid")
	_, ok = f.row(t, "User:u2", "User#000001")[dynamodel.AttributeNameRelations]
	assert.False(t, ok, "no relations, no attribute")
}

func TestSave_Relations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "u1", "Ann", "g1", "g2")

	u, err := f.users.Get(ctx, "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"g1", "g2"}, ids(u.Relations("groups")))
	assert.NotNil(t, u.RelationByID("groups", "g1"))
	assert.NotNil(t, u.RelationByID("groups", "Group:g2"))

	require.NoError(t, u.RemoveRelation("groups", f.group(t, "g1")))
	require.NoError(t, u.AddRelation("groups", f.group(t, "g3")))
	f.store.ResetStats()

	n, err := u.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n, "one relation deleted, one added, index rewritten")
	assert.Equal(t, 1, f.store.Stats().Deletes)
	assert.False(t, f.hasRow("User:u1", "User$groups@Group:g1"))
	assert.True(t, f.hasRow("User:u1", "User$groups@Group:g3"))

	res, err := f.users.Query().UsingIndex("byName").Filter(dynamodel.RelatedToFilter("groups", "g3")).Find(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, ids(res.Items))

	// Removing what is not attached does nothing.
	require.NoError(t, u.RemoveRelation("groups", f.group(t, "g9")))
	n, err = u.Save(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSave_SingleRelation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	boss := f.user(t, "u2", "Bob")
	other := f.user(t, "u3", "Cid")
	u := f.user(t, "u1", "Ann")

	require.NoError(t, u.SetRelation("manager", boss))
	n, err := u.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, f.hasRow("User:u1", "User$manager@User:u2"))

	require.NoError(t, u.AddRelation("manager", other))
	assert.Equal(t, "u3", u.Relation("manager").ID())
	assert.Len(t, u.Relations("manager"), 1)

	n, err = u.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, f.hasRow("User:u1", "User$manager@User:u2"))
	assert.True(t, f.hasRow("User:u1", "User$manager@User:u3"))

	require.NoError(t, u.SetRelation("manager", nil))
	assert.Nil(t, u.Relation("manager"))
	n, err = u.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSave_PartialEntity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "u1", "Ann", "g1")

	res, err := f.users.Query().Find(ctx)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	u := res.Items[0]
	assert.Empty(t, u.Relations("groups"), "find does not load relations")

	u.MustSet("name", "Anna")
	f.store.ResetStats()
	n, err := u.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.Stats().Queries, "the partition is loaded before writing")
	assert.Equal(t, 4, n)
	assert.Equal(t, "Anna", str(t, f.row(t, "User:u1", "User$groups@Group:g1"), "$sf.name"))
	assert.Equal(t, []string{"g1"}, ids(u.Relations("groups")))
	assert.Equal(t, 2, u.Version())
}

func TestSave_PartialEntityRelations(t *testing.T) {
	ctx := context.Background()
	found := func(t *testing.T, f *fixture) *dynamodel.Entity {
		t.Helper()
		res, err := f.users.Query().SortKeyEquals("u1").Find(ctx)
		require.NoError(t, err)
		require.Len(t, res.Items, 1)
		return res.Items[0]
	}
	stored := func(t *testing.T, f *fixture) []string {
		t.Helper()
		u, err := f.users.Get(ctx, "u1")
		require.NoError(t, err)
		got := ids(u.Relations("groups"))
		slices.Sort(got)
		return got
	}

	tests := []struct {
		name   string
		mutate func(t *testing.T, f *fixture, u *dynamodel.Entity)
		want   []string
	}{
		{"add keeps stored targets", func(t *testing.T, f *fixture, u *dynamodel.Entity) {
			require.NoError(t, u.AddRelation("groups", f.group(t, "g3")))
		}, []string{"g1", "g2", "g3"}},
		{"add of a stored target", func(t *testing.T, f *fixture, u *dynamodel.Entity) {
			require.NoError(t, u.AddRelation("groups", f.group(t, "g2")))
		}, []string{"g1", "g2"}},
		{"remove keeps the others", func(t *testing.T, f *fixture, u *dynamodel.Entity) {
			require.NoError(t, u.RemoveRelation("groups", f.group(t, "g1")))
		}, []string{"g2"}},
		{"edits replay in order", func(t *testing.T, f *fixture, u *dynamodel.Entity) {
			require.NoError(t, u.AddRelation("groups", f.group(t, "g3")))
			require.NoError(t, u.RemoveRelation("groups", f.group(t, "g1")))
			require.NoError(t, u.RemoveRelation("groups", f.group(t, "g3")))
		}, []string{"g2"}},
		{"set replaces stored targets", func(t *testing.T, f *fixture, u *dynamodel.Entity) {
			require.NoError(t, u.SetRelations("groups", []*dynamodel.Entity{f.group(t, "g3")}))
			require.NoError(t, u.AddRelation("groups", f.group(t, "g4")))
		}, []string{"g3", "g4"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.user(t, "u1", "Ann", "g1", "g2")

			u := found(t, f)
			tt.mutate(t, f, u)
			_, err := u.Save(ctx)
			require.NoError(t, err)

			got := ids(u.Relations("groups"))
			slices.Sort(got)
			assert.Equal(t, tt.want, got, "in memory")
			assert.Equal(t, tt.want, stored(t, f), "stored")
		})
	}

	t.Run("unrelated relations survive", func(t *testing.T) {
		f := newFixture(t)
		boss := f.user(t, "u9", "Boss")
		u := f.users.New()
		require.NoError(t, u.SetID("u1"))
		u.MustSet("name", "Ann")
		require.NoError(t, u.SetRelation("manager", boss))
		require.NoError(t, u.AddRelation("groups", f.group(t, "g1")))
		_, err := u.Save(ctx)
		require.NoError(t, err)

		p := found(t, f)
		require.NoError(t, p.AddRelation("groups", f.group(t, "g2")))
		_, err = p.Save(ctx)
		require.NoError(t, err)

		loaded, err := f.users.Get(ctx, "u1")
		require.NoError(t, err)
		require.NotNil(t, loaded.Relation("manager"))
		assert.Equal(t, "u9", loaded.Relation("manager").ID())
		assert.Len(t, loaded.Relations("groups"), 2)
	})
}

func TestSave_StoreFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.Fail = func(op string) error {
		if op == "BatchWrite" {
			return errors.New("boom")
		}
		return nil
	}

	u := f.users.New()
	require.NoError(t, u.SetID("u1"))
	u.MustSet("name", "Ann")

	_, err := u.Save(ctx)
	assert.ErrorIs(t, err, dynamodel.ErrStore)
	assert.False(t, u.Persisted())
	assert.Zero(t, f.store.Len())

	f.store.Fail = nil
	n, err := u.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n, "a failed save records nothing")
	assert.Equal(t, 1, u.Version())
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	saved := f.user(t, "u1", "Ann", "g1")
	saved.MustSet("age", 30).MustSet("tags", []string{"x", "y"})
	_, err := saved.Save(ctx)
	require.NoError(t, err)

	for _, id := range []string{"u1", "User:u1"} {
		u, err := f.users.Get(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, u)
		assert.Equal(t, "User:u1", u.Key())
		assert.True(t, u.Persisted())
		assert.Equal(t, "Ann", u.GetString("name"))
		assert.Equal(t, 30, u.GetInt("age"))
		assert.Equal(t, []string{"x", "y"}, u.GetStrings("tags"))
		assert.True(t, saved.CreatedAt().Equal(u.CreatedAt()))
		assert.True(t, saved.UpdatedAt().Equal(u.UpdatedAt()))
		assert.Equal(t, []string{"g1"}, ids(u.Relations("groups")))
	}

	missing, err := f.users.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "u1", "Ann", "g1", "g2")
	f.user(t, "u2", "Bob", "g1")

	n, err := u.Delete(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n, "item, index, two relations and a version")
	assert.Empty(t, f.store.Partition("User:u1"))
	assert.Len(t, f.store.Partition("User:u2"), 4, "other partitions are untouched")
	assert.False(t, u.Persisted())
	assert.Zero(t, u.Version())

	got, err := f.users.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got)

	count, err := f.users.Query().UsingRelation("groups", "g1").Count(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	n, err = f.users.Delete(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, n)

	// A deleted entity saves as new.
	n, err = u.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestEntity_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "u1", "Ann")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unknown field", u.Set("nope", 1), dynamodel.ErrUnknownField},
		{"invalid value", u.Set("age", "old"), dynamodel.ErrInvalidField},
		{"string set from list", u.Set("tags", []any{"a"}), dynamodel.ErrInvalidField},
		{"change persisted id", u.SetID("u2"), dynamodel.ErrInvalidIdentity},
		{"empty id", f.users.New().SetID(""), dynamodel.ErrInvalidIdentity},
		{"unknown relation", u.AddRelation("friends", f.group(t, "g1")), dynamodel.ErrInvalidRelation},
		{"wrong target type", u.AddRelation("groups", u), dynamodel.ErrInvalidRelation},
		{"target without identity", u.AddRelation("groups", f.groups.New()), dynamodel.ErrInvalidRelation},
		{"nil target", u.AddRelation("groups", nil), dynamodel.ErrInvalidRelation},
		{"many targets on a single relation", u.SetRelations("manager", []*dynamodel.Entity{u, u}), dynamodel.ErrInvalidRelation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.want)
		})
	}

	t.Run("lookups", func(t *testing.T) {
		_, err := f.users.Get(ctx, "")
		assert.ErrorIs(t, err, dynamodel.ErrInvalidIdentity)
		_, err = f.users.FromID("")
		assert.ErrorIs(t, err, dynamodel.ErrInvalidIdentity)
		_, err = f.users.Delete(ctx, "")
		assert.ErrorIs(t, err, dynamodel.ErrInvalidIdentity)
		_, err = f.users.New().Delete(ctx)
		assert.ErrorIs(t, err, dynamodel.ErrInvalidIdentity)
		_, err = f.table.Model("Nope")
		assert.ErrorIs(t, err, dynamodel.ErrUnknownModel)
		_, err = f.table.Register(dynamodel.Schema{Type: "User"})
		assert.ErrorIs(t, err, dynamodel.ErrInvalidSchema)
	})

	t.Run("load failures", func(t *testing.T) {
		f.store.Fail = func(op string) error { return errors.New(op + " failed") }
		defer func() { f.store.Fail = nil }()

		_, err := f.users.Get(ctx, "u1")
		assert.ErrorIs(t, err, dynamodel.ErrStore)
		_, err = f.users.Delete(ctx, "u1")
		assert.ErrorIs(t, err, dynamodel.ErrStore)
		_, err = f.users.Query().Find(ctx)
		assert.ErrorIs(t, err, dynamodel.ErrStore)
		_, err = f.users.Query().Count(ctx, 0)
		assert.ErrorIs(t, err, dynamodel.ErrStore)
	})

	assert.Panics(t, func() { u.MustSet("nope", 1) })
}

func TestFromData(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	u, err := f.users.FromData(map[string]any{
		"id":      "u9",
		"name":    "Zed",
		"age":     7,
		"groups":  []any{"g1", "g2"},
		"manager": "u1",
	})
	require.NoError(t, err)
	assert.Equal(t, "User:u9", u.Key())
	assert.Equal(t, "u1", u.Relation("manager").ID())

	n, err := u.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, n, "item, index, version, two groups and a manager")

	tests := map[string]map[string]any{
		"id type":        {"id": 5},
		"unknown field":  {"nope": 1},
		"relation value": {"groups": 5},
		"relation ids":   {"groups": []any{1}},
		"single target":  {"manager": []string{"a", "b"}},
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := f.users.FromData(data)
			assert.Error(t, err)
		})
	}
}

type profile struct {
	ID      string `dynamodbav:"id"`
	Name    string `dynamodbav:"name"`
	Age     int    `dynamodbav:"age"`
	Ignored string `dynamodbav:"ignored"`
}

func TestEntity_MarshalUnmarshal(t *testing.T) {
	f := newFixture(t)

	u := f.users.New()
	require.NoError(t, u.Marshal(profile{ID: "p1", Name: "Ann", Age: 30, Ignored: "x"}))
	assert.Equal(t, "User:p1", u.Key())
	assert.Equal(t, "Ann", u.GetString("name"))
	assert.Equal(t, 30, u.GetInt("age"))
	assert.NotContains(t, u.Fields(), "ignored")

	var out profile
	require.NoError(t, u.Unmarshal(&out))
	assert.Equal(t, profile{ID: "p1", Name: "Ann", Age: 30}, out)
}

func TestEntity_MarshalJSON(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "u1", "Ann", "g1", "g2")

	data, err := u.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": "u1", "name": "Ann", "email": "u1@example.com", "groups": ["g1", "g2"]}`, string(data))
}

func TestSave_Logs(t *testing.T) {
	var buf bytes.Buffer
	logger := dynamodel.NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	f := newFixture(t, dynamodel.WithLogger(logger))

	f.user(t, "u1", "Ann")
	assert.Contains(t, buf.String(), `"msg":"save completed"`)
	assert.Contains(t, buf.String(), `"type":"User"`)
	assert.Contains(t, buf.String(), `"key":"User:u1"`)
	assert.Contains(t, buf.String(), `"puts":3`)
}

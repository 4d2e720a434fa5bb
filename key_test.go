package dynamodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyCodec_RoundTrip(t *testing.T) {
	codec := NewKeyCodec(DefaultSeparators(), DefaultVersionSize)

	tests := []struct {
		name string
		seg  KeySegments
		want string
	}{
		{"item", KeySegments{Entity: "Foo"}, "Foo"},
		{"index", KeySegments{Entity: "Foo", Index: "byName"}, "Foo$byName"},
		{"relation", KeySegments{Entity: "Foo", Index: "bars", Relation: "Bar:b1"}, "Foo$bars@Bar:b1"},
		{"version", KeySegments{Entity: "Foo", Version: 3}, "Foo#000003"},
		{"relation with colon in id", KeySegments{Entity: "Foo", Index: "bars", Relation: "Bar:b:1"}, "Foo$bars@Bar:b:1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := codec.Format(tt.seg)
			assert.Equal(t, tt.want, key)

			got := codec.Parse(key)
			want := tt.seg
			want.Valid = true
			assert.Equal(t, want, got)
		})
	}
}

func TestKeyCodec_Kinds(t *testing.T) {
	codec := NewKeyCodec(DefaultSeparators(), DefaultVersionSize)

	assert.True(t, codec.Parse("Foo").IsItem())
	assert.True(t, codec.Parse("Foo$idx").IsIndex())
	assert.False(t, codec.Parse("Foo$idx").IsRelation())
	assert.True(t, codec.Parse("Foo$bars@Bar:1").IsRelation())
	assert.False(t, codec.Parse("Foo$bars@Bar:1").IsIndex())
	assert.True(t, codec.Parse("Foo#000001").IsVersion())
	assert.False(t, codec.Parse("Foo#000001").IsItem())
}

func TestKeyCodec_ParseInvalid(t *testing.T) {
	codec := NewKeyCodec(DefaultSeparators(), DefaultVersionSize)

	for _, key := range []string{"", "$idx", "Foo$", "Foo@Bar", "Foo$bars@Bar", "Foo#", "Foo#000000", "Foo#abc"} {
		t.Run(key, func(t *testing.T) {
			seg := codec.Parse(key)
			assert.False(t, seg.Valid)
			assert.False(t, seg.IsItem() || seg.IsIndex() || seg.IsRelation() || seg.IsVersion())
		})
	}
}

func TestKeyCodec_CustomSeparators(t *testing.T) {
	codec := NewKeyCodec(Separators{ID: "/", Version: "~", Index: "|", Relation: "^"}, 3)

	key := codec.Format(KeySegments{Entity: "Foo", Index: "bars", Relation: codec.EntityKey("Bar", "b1")})
	assert.Equal(t, "Foo|bars^Bar/b1", key)
	assert.Equal(t, "Foo~012", codec.Format(KeySegments{Entity: "Foo", Version: 12}))

	seg := codec.Parse(key)
	assert.True(t, seg.IsRelation())
	assert.Equal(t, "Bar/b1", seg.Relation)
}

func TestKeyCodec_Defaults(t *testing.T) {
	codec := NewKeyCodec(Separators{ID: "/"}, 0)

	assert.Equal(t, Separators{ID: "/", Version: "#", Index: "$", Relation: "@"}, codec.Separators())
	assert.Equal(t, "Foo#000001", codec.Format(KeySegments{Entity: "Foo", Version: 1}))
}

func TestKeyCodec_Prefix(t *testing.T) {
	codec := NewKeyCodec(DefaultSeparators(), DefaultVersionSize)

	assert.Equal(t, "Foo:1", codec.EnsurePrefix("Foo", "1"))
	assert.Equal(t, "Foo:1", codec.EnsurePrefix("Foo", "Foo:1"))
	assert.Equal(t, "", codec.EnsurePrefix("Foo", ""))
	assert.Equal(t, "1", codec.RemovePrefix("Foo", "Foo:1"))
	assert.Equal(t, "Bar:1", codec.RemovePrefix("Foo", "Bar:1"))

	typ, id, ok := codec.SplitEntityKey("Foo:a:b")
	assert.True(t, ok)
	assert.Equal(t, "Foo", typ)
	assert.Equal(t, "a:b", id)

	_, _, ok = codec.SplitEntityKey("Foo")
	assert.False(t, ok)
	_, _, ok = codec.SplitEntityKey("Foo:")
	assert.False(t, ok)
}

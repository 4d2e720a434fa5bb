package dynamodel

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Separators are the characters used to join key segments.
type Separators struct {
	ID       string `toml:"id"`       // joins a type and an id: "Foo:test"
	Version  string `toml:"version"`  // prefixes a version segment: "Foo#000001"
	Index    string `toml:"index"`    // prefixes an index or relation name: "Foo$bars"
	Relation string `toml:"relation"` // prefixes a relation target: "Foo$bars@Bar:b1"
}

// DefaultSeparators returns the default key separators.
func DefaultSeparators() Separators {
	return Separators{
		ID:       ":",
		Version:  "#",
		Index:    "$",
		Relation: "@",
	}
}

func (s Separators) withDefaults() Separators {
	def := DefaultSeparators()
	if s.ID == "" {
		s.ID = def.ID
	}
	if s.Version == "" {
		s.Version = def.Version
	}
	if s.Index == "" {
		s.Index = def.Index
	}
	if s.Relation == "" {
		s.Relation = def.Relation
	}
	return s
}

// KeySegments are the logical parts of a row key. A single physical format
// serves item, index, relation and version rows:
//
//	| row       | segments                      | formatted           |
//	| ========= | ============================= | =================== |
//	| item      | Entity                        | Foo                 |
//	| index     | Entity, Index                 | Foo$index1          |
//	| relation  | Entity, Index, Relation       | Foo$bars@Bar:b1     |
//	| version   | Entity, Version               | Foo#000003          |
//
// For relation rows the Index segment holds the relation name and Relation
// holds the target entity key.
type KeySegments struct {
	Entity   string
	Index    string
	Relation string
	Version  int  // 0 when absent
	Valid    bool // set by Parse
}

// IsItem reports whether the segments address an item row.
func (k KeySegments) IsItem() bool {
	return k.Valid && k.Index == "" && k.Relation == "" && k.Version == 0
}

// IsIndex reports whether the segments address an index row.
func (k KeySegments) IsIndex() bool { return k.Valid && k.Index != "" && k.Relation == "" }

// IsRelation reports whether the segments address a relation row.
func (k KeySegments) IsRelation() bool { return k.Valid && k.Relation != "" }

// IsVersion reports whether the segments address a version row.
func (k KeySegments) IsVersion() bool {
	return k.Valid && k.Version > 0 && k.Index == "" && k.Relation == ""
}

// KeyCodec formats and parses row keys.
type KeyCodec struct {
	sep         Separators
	versionSize int
	rx          *regexp.Regexp
}

// NewKeyCodec creates a codec for the given separators and version width.
// Empty separators take their defaults; a non-positive width becomes 6.
func NewKeyCodec(sep Separators, versionSize int) *KeyCodec {
	sep = sep.withDefaults()
	if versionSize <= 0 {
		versionSize = 6
	}

	// Segment text may contain anything but the index, relation and version separators.
	class := "[^" + regexp.QuoteMeta(sep.Index+sep.Relation+sep.Version) + "]+"
	pattern := "^(" + class + ")" +
		"(?:" + regexp.QuoteMeta(sep.Index) + "(" + class + "))?" +
		"(?:" + regexp.QuoteMeta(sep.Relation) + "(" + class + regexp.QuoteMeta(sep.ID) + class + "))?" +
		"(?:" + regexp.QuoteMeta(sep.Version) + "([0-9]+))?$"

	return &KeyCodec{
		sep:         sep,
		versionSize: versionSize,
		rx:          regexp.MustCompile(pattern),
	}
}

// Separators returns the separators used by the codec.
func (c *KeyCodec) Separators() Separators { return c.sep }

// Format joins the segments into a key. Empty segments are skipped and a
// zero version is omitted.
func (c *KeyCodec) Format(k KeySegments) string {
	var b strings.Builder
	b.WriteString(k.Entity)
	if k.Index != "" {
		b.WriteString(c.sep.Index)
		b.WriteString(k.Index)
	}
	if k.Relation != "" {
		b.WriteString(c.sep.Relation)
		b.WriteString(k.Relation)
	}
	if k.Version > 0 {
		b.WriteString(c.sep.Version)
		b.WriteString(fmt.Sprintf("%0*d", c.versionSize, k.Version))
	}
	return b.String()
}

// Parse splits key into its segments. Keys that do not match the format are
// returned with Valid set to false.
func (c *KeyCodec) Parse(key string) KeySegments {
	m := c.rx.FindStringSubmatch(key)
	if m == nil {
		return KeySegments{}
	}
	out := KeySegments{
		Entity:   m[1],
		Index:    m[2],
		Relation: m[3],
		Valid:    true,
	}
	if m[4] != "" {
		v, err := strconv.Atoi(m[4])
		if err != nil || v == 0 {
			return KeySegments{}
		}
		out.Version = v
	}
	return out
}

// EntityKey joins a type and an id into an entity key.
func (c *KeyCodec) EntityKey(typ, id string) string {
	return typ + c.sep.ID + id
}

// EnsurePrefix returns id prefixed with "typ:" unless it already is. An empty
// id stays empty.
func (c *KeyCodec) EnsurePrefix(typ, id string) string {
	if id == "" {
		return ""
	}
	prefix := typ + c.sep.ID
	if strings.HasPrefix(id, prefix) {
		return id
	}
	return prefix + id
}

// RemovePrefix strips the "typ:" prefix from key when present.
func (c *KeyCodec) RemovePrefix(typ, key string) string {
	return strings.TrimPrefix(key, typ+c.sep.ID)
}

// SplitEntityKey splits an entity key at the first id separator.
func (c *KeyCodec) SplitEntityKey(key string) (typ, id string, ok bool) {
	typ, id, ok = strings.Cut(key, c.sep.ID)
	if !ok || typ == "" || id == "" {
		return "", "", false
	}
	return typ, id, true
}

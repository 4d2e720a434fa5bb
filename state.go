package dynamodel

import (
	"encoding/base64"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Change tracking namespaces.
const (
	nsEntity       = "entity"    // one key per schema field
	nsIndex        = "index"     // one key per index name
	nsRelation     = "relation"  // one key per relation row sort key
	nsRelationKeys = "relations" // the set of relation row keys last written
)

type tracked struct {
	value     any
	canonical string
}

// State records the last observed value of every tracked (namespace, key)
// pair together with an explicit dirty set. Values are compared through
// their canonical form, never by reference.
//
// A State belongs to one Entity and is not safe for concurrent use.
type State struct {
	values map[string]tracked
	dirty  map[string]struct{}
}

// NewState creates an empty State.
func NewState() *State {
	return &State{
		values: make(map[string]tracked),
		dirty:  make(map[string]struct{}),
	}
}

func stateKey(ns, key string) string { return ns + "/" + key }

// InitEntity records every named field of fields as the baseline of the
// entity namespace, clearing any previous flag.
func (s *State) InitEntity(fields map[string]any, names []string) {
	for _, name := range names {
		s.Set(nsEntity, name, fields[name], true)
	}
}

// Set records value as the new baseline for (ns, key). When reset is true
// the previous baseline and dirty flag are discarded first. Otherwise a
// value that differs from an existing baseline marks the key dirty.
func (s *State) Set(ns, key string, value any, reset bool) {
	if reset {
		s.Reset(ns, key)
	}
	k := stateKey(ns, key)
	c := Canonical(value)
	if prev, ok := s.values[k]; ok && prev.canonical != c {
		s.dirty[k] = struct{}{}
	}
	s.values[k] = tracked{value: value, canonical: c}
}

// Get returns the baseline recorded for (ns, key).
func (s *State) Get(ns, key string) (any, bool) {
	v, ok := s.values[stateKey(ns, key)]
	return v.value, ok
}

// Has reports whether a baseline exists for (ns, key).
func (s *State) Has(ns, key string) bool {
	_, ok := s.values[stateKey(ns, key)]
	return ok
}

// Changed reports whether (ns, key) is flagged dirty or value differs from
// its baseline. A missing baseline counts as absent, so only a nil value
// compares equal to it.
func (s *State) Changed(ns, key string, value any) bool {
	k := stateKey(ns, key)
	if _, ok := s.dirty[k]; ok {
		return true
	}
	return s.values[k].canonical != Canonical(value)
}

// EntityChanged reports whether any of the named fields changed.
func (s *State) EntityChanged(fields map[string]any, names []string) bool {
	for _, name := range names {
		if s.Changed(nsEntity, name, fields[name]) {
			return true
		}
	}
	return false
}

// ChangedFields returns the named fields that changed, in input order.
func (s *State) ChangedFields(fields map[string]any, names []string) []string {
	var out []string
	for _, name := range names {
		if s.Changed(nsEntity, name, fields[name]) {
			out = append(out, name)
		}
	}
	return out
}

// SetDirty flags (ns, key) as changed regardless of its value.
func (s *State) SetDirty(ns, key string) { s.dirty[stateKey(ns, key)] = struct{}{} }

// IsDirty reports whether (ns, key) carries an explicit dirty flag.
func (s *State) IsDirty(ns, key string) bool {
	_, ok := s.dirty[stateKey(ns, key)]
	return ok
}

// Reset forgets the baseline and dirty flag of (ns, key).
func (s *State) Reset(ns, key string) {
	k := stateKey(ns, key)
	delete(s.values, k)
	delete(s.dirty, k)
}

// ClearDirty drops every dirty flag and keeps the baselines.
func (s *State) ClearDirty() {
	clear(s.dirty)
}

// Clear forgets everything.
func (s *State) Clear() {
	clear(s.values)
	clear(s.dirty)
}

// Canonical renders v as a deterministic string. Values are converted to
// DynamoDB attribute values first, so a value compares equal to whatever it
// becomes once stored: map keys and set members are sorted, numbers are
// compared as exact decimals, and nil, NULL and unset all render as "".
func Canonical(v any) string {
	if v == nil {
		return ""
	}
	var av types.AttributeValue
	switch x := v.(type) {
	case types.AttributeValue:
		av = x
	case map[string]types.AttributeValue:
		av = &types.AttributeValueMemberM{Value: x}
	default:
		m, err := attributevalue.Marshal(v)
		if err != nil {
			return fmt.Sprintf("?%#v", v)
		}
		av = m
	}
	var b strings.Builder
	writeCanonical(&b, av)
	return b.String()
}

func writeCanonical(b *strings.Builder, av types.AttributeValue) {
	switch x := av.(type) {
	case nil, *types.AttributeValueMemberNULL:
	case *types.AttributeValueMemberS:
		b.WriteString("S")
		b.WriteString(strconv.Quote(x.Value))
	case *types.AttributeValueMemberN:
		b.WriteString("N")
		b.WriteString(canonicalNumber(x.Value))
	case *types.AttributeValueMemberBOOL:
		b.WriteString("B")
		b.WriteString(strconv.FormatBool(x.Value))
	case *types.AttributeValueMemberB:
		b.WriteString("X")
		b.WriteString(base64.StdEncoding.EncodeToString(x.Value))
	case *types.AttributeValueMemberSS:
		members := make([]string, len(x.Value))
		for i, s := range x.Value {
			members[i] = strconv.Quote(s)
		}
		writeSet(b, "SS", members)
	case *types.AttributeValueMemberNS:
		members := make([]string, len(x.Value))
		for i, n := range x.Value {
			members[i] = canonicalNumber(n)
		}
		writeSet(b, "NS", members)
	case *types.AttributeValueMemberBS:
		members := make([]string, len(x.Value))
		for i, bs := range x.Value {
			members[i] = base64.StdEncoding.EncodeToString(bs)
		}
		writeSet(b, "BS", members)
	case *types.AttributeValueMemberL:
		b.WriteString("L[")
		for i, el := range x.Value {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, el)
		}
		b.WriteByte(']')
	case *types.AttributeValueMemberM:
		keys := make([]string, 0, len(x.Value))
		for k, el := range x.Value {
			if isNull(el) {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("M{")
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(k))
			b.WriteByte(':')
			writeCanonical(b, x.Value[k])
		}
		b.WriteByte('}')
	default:
		fmt.Fprintf(b, "?%T", av)
	}
}

func writeSet(b *strings.Builder, tag string, members []string) {
	sort.Strings(members)
	b.WriteString(tag)
	b.WriteByte('[')
	b.WriteString(strings.Join(members, ","))
	b.WriteByte(']')
}

func isNull(av types.AttributeValue) bool {
	switch av.(type) {
	case nil, *types.AttributeValueMemberNULL:
		return true
	}
	return false
}

func canonicalNumber(s string) string {
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return s
	}
	return r.RatString()
}

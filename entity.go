package dynamodel

import (
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Entity is an instance of a registered type. It tracks its own changes
// between loads and saves and is not safe for concurrent use.
type Entity struct {
	model     *Model
	key       string
	fields    map[string]any
	version   int
	created   time.Time
	updated   time.Time
	persisted bool
	partial   bool // loaded without relation and index rows

	relations []attachment
	edits     map[string][]relationEdit // relation mutations since the last load or save
	versions  []*Version
	state     *State
}

type attachment struct {
	name   string
	target *Entity
}

// Version is a stored snapshot of the versioned fields of an entity and
// of its relation row keys at that time.
type Version struct {
	Number    int
	Created   time.Time
	Fields    map[string]any
	Relations []string // sorted relation row keys, "Type$name@Target:id"
}

// Model returns the entity's model.
func (e *Entity) Model() *Model { return e.model }

// Type returns the entity type name.
func (e *Entity) Type() string { return e.model.schema.Type }

// Key returns the entity key "Type:id", or "" before an identity exists.
func (e *Entity) Key() string { return e.key }

// ID returns the bare id.
func (e *Entity) ID() string { return e.model.RemovePrefix(e.key) }

// SetID assigns the identity of an entity that has never been persisted.
func (e *Entity) SetID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidIdentity)
	}
	if e.persisted {
		return fmt.Errorf("%w: cannot change the id of persisted %s", ErrInvalidIdentity, e.key)
	}
	e.key = e.model.EnsurePrefix(id)
	return nil
}

// Version returns the running version counter.
func (e *Entity) Version() int { return e.version }

// Versions returns the loaded version history in ascending order.
func (e *Entity) Versions() []*Version { return append([]*Version(nil), e.versions...) }

// CreatedAt returns the creation time, zero before the first save.
func (e *Entity) CreatedAt() time.Time { return e.created }

// UpdatedAt returns the time of the last item write.
func (e *Entity) UpdatedAt() time.Time { return e.updated }

// Persisted reports whether the entity was loaded or saved.
func (e *Entity) Persisted() bool { return e.persisted }

// Changed reports whether any field differs from the last load or save.
func (e *Entity) Changed() bool {
	return !e.persisted || e.state.EntityChanged(e.fields, e.model.schema.fieldNames())
}

// Set assigns a declared field. A nil value clears it.
func (e *Entity) Set(name string, v any) error {
	f, ok := e.model.schema.Fields[name]
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownField, e.Type(), name)
	}
	if !f.Type.accepts(v) {
		return fmt.Errorf("%w: %s.%s expects %s, got %T", ErrInvalidField, e.Type(), name, f.Type, v)
	}
	if v == nil {
		delete(e.fields, name)
		return nil
	}
	e.fields[name] = v
	return nil
}

// MustSet is like Set but panics on error.
func (e *Entity) MustSet(name string, v any) *Entity {
	if err := e.Set(name, v); err != nil {
		panic(err)
	}
	return e
}

// Get returns a field value, nil when unset.
func (e *Entity) Get(name string) any { return e.fields[name] }

// Fields returns a copy of the field values.
func (e *Entity) Fields() map[string]any { return maps.Clone(e.fields) }

// GetString returns a string field, "" when unset or of another type.
func (e *Entity) GetString(name string) string {
	s, _ := e.fields[name].(string)
	return s
}

// GetNumber returns a numeric field as float64.
func (e *Entity) GetNumber(name string) float64 {
	switch n := e.fields[name].(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	case uint:
		return float64(n)
	case uint64:
		return float64(n)
	case uint32:
		return float64(n)
	}
	return 0
}

// GetInt returns a numeric field truncated to int.
func (e *Entity) GetInt(name string) int { return int(e.GetNumber(name)) }

// GetBool returns a boolean field.
func (e *Entity) GetBool(name string) bool {
	b, _ := e.fields[name].(bool)
	return b
}

// GetTime returns a time field.
func (e *Entity) GetTime(name string) time.Time {
	t, _ := e.fields[name].(time.Time)
	return t
}

// GetStrings returns a string set or string list field.
func (e *Entity) GetStrings(name string) []string {
	switch v := e.fields[name].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, el := range v {
			if s, ok := el.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Marshal copies the declared fields of in, a struct or map tagged for
// attributevalue, onto the entity. An "id" attribute sets the identity of
// an unpersisted entity.
func (e *Entity) Marshal(in any) error {
	item, err := attributevalue.MarshalMap(in)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", e.Type(), err)
	}
	if id := stringAttr(item, "id"); id != "" && !e.persisted {
		e.key = e.model.EnsurePrefix(id)
	}
	for name, f := range e.model.schema.Fields {
		av, ok := item[name]
		if !ok {
			continue
		}
		v, err := decodeField(f.Type, av)
		if err != nil {
			return fmt.Errorf("failed to marshal %s.%s: %w", e.Type(), name, err)
		}
		if err := e.Set(name, v); err != nil {
			return err
		}
	}
	return nil
}

// Unmarshal copies the id and field values into out.
func (e *Entity) Unmarshal(out any) error {
	item, err := e.encodeFields()
	if err != nil {
		return err
	}
	if e.key != "" {
		item["id"] = &types.AttributeValueMemberS{Value: e.ID()}
	}
	if err := attributevalue.UnmarshalMap(item, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", e.Type(), err)
	}
	return nil
}

// MarshalJSON renders the id, the fields and the ids of attached targets.
func (e *Entity) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.fields)+len(e.relations)+1)
	for k, v := range e.fields {
		out[k] = v
	}
	if e.key != "" {
		out["id"] = e.ID()
	}
	for name, def := range e.model.schema.Relations {
		targets := e.Relations(name)
		if def.Multiple {
			ids := make([]string, len(targets))
			for i, t := range targets {
				ids[i] = t.ID()
			}
			out[name] = ids
		} else if len(targets) > 0 {
			out[name] = targets[0].ID()
		}
	}
	return json.Marshal(out)
}

// encodeFields converts the set fields into attribute values.
func (e *Entity) encodeFields() (Item, error) {
	item := make(Item, len(e.fields))
	for name, v := range e.fields {
		av, err := encodeField(e.model.schema.Fields[name].Type, v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s.%s: %w", e.Type(), name, err)
		}
		if av != nil {
			item[name] = av
		}
	}
	return item, nil
}

func encodeField(ft FieldType, v any) (types.AttributeValue, error) {
	if v == nil {
		return nil, nil
	}
	if ft == FieldStringSet {
		ss, _ := v.([]string)
		if len(ss) == 0 {
			return nil, nil // sets cannot be empty
		}
		return &types.AttributeValueMemberSS{Value: ss}, nil
	}
	return attributevalue.Marshal(v)
}

func decodeField(ft FieldType, av types.AttributeValue) (any, error) {
	if isNull(av) {
		return nil, nil
	}
	var err error
	switch ft {
	case FieldString:
		var s string
		err = attributevalue.Unmarshal(av, &s)
		return s, err
	case FieldNumber:
		var f float64
		err = attributevalue.Unmarshal(av, &f)
		return f, err
	case FieldBool:
		var b bool
		err = attributevalue.Unmarshal(av, &b)
		return b, err
	case FieldList:
		var l []any
		err = attributevalue.Unmarshal(av, &l)
		return l, err
	case FieldMap:
		var m map[string]any
		err = attributevalue.Unmarshal(av, &m)
		return m, err
	case FieldStringSet:
		var ss []string
		err = attributevalue.Unmarshal(av, &ss)
		return ss, err
	case FieldTime:
		var t time.Time
		err = attributevalue.Unmarshal(av, &t)
		return t, err
	default:
		var v any
		err = attributevalue.Unmarshal(av, &v)
		return v, err
	}
}

// stringify renders a field value for sort keys and search tokens.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case []string:
		return strings.Join(x, " ")
	case []any:
		parts := make([]string, len(x))
		for i, el := range x {
			parts[i] = stringify(el)
		}
		return strings.Join(parts, " ")
	default:
		return fmt.Sprint(x)
	}
}

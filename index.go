package dynamodel

import (
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// sortTimeLayout is fixed width so formatted times sort lexically.
const sortTimeLayout = "2006-01-02T15:04:05.000000000Z"

// indexKey formats the row key of an index row.
func (e *Entity) indexKey(name string) string {
	return e.model.table.keys.Format(KeySegments{Entity: e.Type(), Index: name})
}

// sortValue computes the index sort value. GSI key attributes cannot be
// empty, so an empty value falls back to the bare id. Numeric field values
// are encoded with NumberSortKey.
func (e *Entity) sortValue(d *IndexDescriptor, created time.Time) string {
	var v string
	switch {
	case d.sort != nil:
		v = d.sort(e)
	case d.field != "":
		if n, ok := numberSortKey(e.fields[d.field]); ok {
			v = n
		} else {
			v = stringify(e.fields[d.field])
		}
	default:
		v = created.UTC().Format(sortTimeLayout)
	}
	if v == "" {
		v = e.ID()
	}
	return v
}

// numberWidth digits hold the integer part of any int64 or uint64.
const numberWidth = 20

// NumberSortKey encodes a number so that encoded values sort lexically in
// numeric order: the integer part is zero-padded to 20 digits and negative
// values are written as "-" followed by the nines' complement of their digits
// and a closing "~". Use it to build sort key conditions on an index whose
// Field holds numbers. Float magnitudes of 1e20 or more do not keep their
// order. Non-numeric values are formatted as strings.
func NumberSortKey(v any) string {
	if s, ok := numberSortKey(v); ok {
		return s
	}
	return stringify(v)
}

func numberSortKey(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	var (
		neg    bool
		digits string
	)
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := rv.Int()
		neg = n < 0
		abs := uint64(n)
		if neg {
			abs = uint64(-(n + 1)) + 1
		}
		digits = strconv.FormatUint(abs, 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		digits = strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "", false
		}
		bits := 64
		if rv.Kind() == reflect.Float32 {
			bits = 32
		}
		neg = f < 0
		digits = strconv.FormatFloat(math.Abs(f), 'f', -1, bits)
	default:
		return "", false
	}

	whole, frac, _ := strings.Cut(digits, ".")
	if len(whole) < numberWidth {
		whole = strings.Repeat("0", numberWidth-len(whole)) + whole
	}
	if !neg {
		if frac != "" {
			return whole + "." + frac, true
		}
		return whole, true
	}
	out := "-" + ninesComplement(whole)
	if frac != "" {
		out += "." + ninesComplement(frac)
	}
	return out + "~", true
}

func ninesComplement(digits string) string {
	b := []byte(digits)
	for i, c := range b {
		b[i] = '9' - (c - '0')
	}
	return string(b)
}

// indexRow builds the current row of an index.
func (e *Entity) indexRow(d *IndexDescriptor, created time.Time) Item {
	row := Item{
		AttributeNameID:   &types.AttributeValueMemberS{Value: e.key},
		AttributeNameKey:  &types.AttributeValueMemberS{Value: e.indexKey(d.Name)},
		AttributeNameSort: &types.AttributeValueMemberS{Value: e.sortValue(d, created)},
	}
	if sf := e.includedFields(d.include); sf != nil {
		row[AttributeNameFields] = sf
	}
	if d.search != nil {
		row[AttributeNameSearch] = e.searchTokens(d.search)
	}
	if len(d.relations) > 0 {
		if rl := e.exposedRelationKeys(d.relations); len(rl) > 0 {
			row[AttributeNameRelations] = &types.AttributeValueMemberSS{Value: rl}
		}
	}
	return row
}

// includedFields returns the $sf map of the named fields, nil when no field
// is included.
func (e *Entity) includedFields(names []string) types.AttributeValue {
	if len(names) == 0 {
		return nil
	}
	m := make(Item, len(names))
	for _, name := range names {
		av, err := encodeField(e.model.schema.Fields[name].Type, e.fields[name])
		if err != nil || av == nil {
			continue
		}
		m[name] = av
	}
	return &types.AttributeValueMemberM{Value: m}
}

// searchTokens returns the $ss map: the normalized string of every search
// field.
func (e *Entity) searchTokens(p *searchParams) types.AttributeValue {
	m := make(Item, len(p.fields))
	for _, name := range p.fields {
		m[name] = &types.AttributeValueMemberS{Value: p.normalize(stringify(e.fields[name]))}
	}
	return &types.AttributeValueMemberM{Value: m}
}

// exposedRelationKeys returns the sorted relation row keys of the attached
// targets of the given relations.
func (e *Entity) exposedRelationKeys(names []string) []string {
	var keys []string
	for _, a := range e.relations {
		if slices.Contains(names, a.name) {
			keys = append(keys, e.relationKey(a.name, a.target.key))
		}
	}
	slices.Sort(keys)
	return slices.Compact(keys)
}

// allRelationKeys returns the sorted relation row keys of every attached
// target.
func (e *Entity) allRelationKeys() []string {
	keys := make([]string, 0, len(e.relations))
	for _, a := range e.relations {
		keys = append(keys, e.relationKey(a.name, a.target.key))
	}
	slices.Sort(keys)
	return slices.Compact(keys)
}

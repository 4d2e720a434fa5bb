package dynamock

import (
	"bytes"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nisimpson/dynamodel"
)

// Match reports whether item satisfies f, following DynamoDB filter
// expression semantics. A nil filter matches every item.
//
// RelatedTo, Like and Search are rejected: they must be translated by a query
// before reaching a store.
func Match(item dynamodel.Item, f dynamodel.Filter) (bool, error) {
	switch x := f.(type) {
	case nil:
		return true, nil
	case dynamodel.And:
		for _, sub := range x.Filters {
			ok, err := Match(item, sub)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case dynamodel.Or:
		for _, sub := range x.Filters {
			ok, err := Match(item, sub)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case dynamodel.Not:
		ok, err := Match(item, x.Filter)
		return !ok && err == nil, err
	case dynamodel.Compare:
		return matchCompare(item, x)
	case dynamodel.Between:
		return matchBetween(item, x)
	case dynamodel.In:
		av, ok := Resolve(item, x.Path)
		if !ok {
			return false, nil
		}
		for _, v := range x.Values {
			want, err := attributevalue.Marshal(v)
			if err != nil {
				return false, err
			}
			if dynamodel.Canonical(av) == dynamodel.Canonical(want) {
				return true, nil
			}
		}
		return false, nil
	case dynamodel.Func:
		return matchFunc(item, x)
	default:
		return false, fmt.Errorf("dynamock: filter %T cannot be evaluated by a store", f)
	}
}

func matchCompare(item dynamodel.Item, c dynamodel.Compare) (bool, error) {
	av, ok := Resolve(item, c.Path)
	if c.Size && ok {
		av, ok = sizeOf(av)
	}
	if !ok {
		return c.Op == dynamodel.OpNotEqual, nil
	}
	want, err := attributevalue.Marshal(c.Value)
	if err != nil {
		return false, err
	}
	switch c.Op {
	case dynamodel.OpEqual:
		return dynamodel.Canonical(av) == dynamodel.Canonical(want), nil
	case dynamodel.OpNotEqual:
		return dynamodel.Canonical(av) != dynamodel.Canonical(want), nil
	}
	n, comparable := compare(av, want)
	if !comparable {
		return false, nil
	}
	switch c.Op {
	case dynamodel.OpLessThan:
		return n < 0, nil
	case dynamodel.OpLessThanOrEqual:
		return n <= 0, nil
	case dynamodel.OpGreaterThan:
		return n > 0, nil
	case dynamodel.OpGreaterThanOrEqual:
		return n >= 0, nil
	}
	return false, fmt.Errorf("dynamock: unknown comparison %d", c.Op)
}

func matchBetween(item dynamodel.Item, b dynamodel.Between) (bool, error) {
	av, ok := Resolve(item, b.Path)
	if b.Size && ok {
		av, ok = sizeOf(av)
	}
	if !ok {
		return false, nil
	}
	lower, err := attributevalue.Marshal(b.Lower)
	if err != nil {
		return false, err
	}
	upper, err := attributevalue.Marshal(b.Upper)
	if err != nil {
		return false, err
	}
	lo, ok1 := compare(av, lower)
	hi, ok2 := compare(av, upper)
	return ok1 && ok2 && lo >= 0 && hi <= 0, nil
}

func matchFunc(item dynamodel.Item, fn dynamodel.Func) (bool, error) {
	av, ok := Resolve(item, fn.Path)
	switch fn.Name {
	case dynamodel.FuncAttributeExists:
		return ok, nil
	case dynamodel.FuncAttributeNotExists:
		return !ok, nil
	}
	if !ok {
		return false, nil
	}
	switch fn.Name {
	case dynamodel.FuncAttributeType:
		typ, _ := fn.Arg.(string)
		return typeName(av) == typ, nil
	case dynamodel.FuncBeginsWith:
		prefix, _ := fn.Arg.(string)
		switch x := av.(type) {
		case *types.AttributeValueMemberS:
			return strings.HasPrefix(x.Value, prefix), nil
		case *types.AttributeValueMemberB:
			return bytes.HasPrefix(x.Value, []byte(prefix)), nil
		}
		return false, nil
	case dynamodel.FuncContains:
		operand, err := attributevalue.Marshal(fn.Arg)
		if err != nil {
			return false, err
		}
		return contains(av, operand), nil
	}
	return false, fmt.Errorf("dynamock: unknown function %q", fn.Name)
}

func contains(av, operand types.AttributeValue) bool {
	switch x := av.(type) {
	case *types.AttributeValueMemberS:
		s, ok := operand.(*types.AttributeValueMemberS)
		return ok && strings.Contains(x.Value, s.Value)
	case *types.AttributeValueMemberSS:
		s, ok := operand.(*types.AttributeValueMemberS)
		if !ok {
			return false
		}
		for _, member := range x.Value {
			if member == s.Value {
				return true
			}
		}
	case *types.AttributeValueMemberNS:
		want := dynamodel.Canonical(operand)
		for _, member := range x.Value {
			if dynamodel.Canonical(&types.AttributeValueMemberN{Value: member}) == want {
				return true
			}
		}
	case *types.AttributeValueMemberL:
		want := dynamodel.Canonical(operand)
		for _, el := range x.Value {
			if dynamodel.Canonical(el) == want {
				return true
			}
		}
	}
	return false
}

// compare orders two scalar values of the same type.
func compare(a, b types.AttributeValue) (int, bool) {
	switch x := a.(type) {
	case *types.AttributeValueMemberS:
		y, ok := b.(*types.AttributeValueMemberS)
		if !ok {
			return 0, false
		}
		return strings.Compare(x.Value, y.Value), true
	case *types.AttributeValueMemberN:
		y, ok := b.(*types.AttributeValueMemberN)
		if !ok {
			return 0, false
		}
		l, ok1 := new(big.Rat).SetString(x.Value)
		r, ok2 := new(big.Rat).SetString(y.Value)
		if !ok1 || !ok2 {
			return 0, false
		}
		return l.Cmp(r), true
	case *types.AttributeValueMemberB:
		y, ok := b.(*types.AttributeValueMemberB)
		if !ok {
			return 0, false
		}
		return bytes.Compare(x.Value, y.Value), true
	}
	return 0, false
}

func sizeOf(av types.AttributeValue) (types.AttributeValue, bool) {
	var n int
	switch x := av.(type) {
	case *types.AttributeValueMemberS:
		n = len(x.Value)
	case *types.AttributeValueMemberB:
		n = len(x.Value)
	case *types.AttributeValueMemberSS:
		n = len(x.Value)
	case *types.AttributeValueMemberNS:
		n = len(x.Value)
	case *types.AttributeValueMemberBS:
		n = len(x.Value)
	case *types.AttributeValueMemberL:
		n = len(x.Value)
	case *types.AttributeValueMemberM:
		n = len(x.Value)
	default:
		return nil, false
	}
	return &types.AttributeValueMemberN{Value: strconv.Itoa(n)}, true
}

func typeName(av types.AttributeValue) string {
	switch av.(type) {
	case *types.AttributeValueMemberS:
		return "S"
	case *types.AttributeValueMemberN:
		return "N"
	case *types.AttributeValueMemberB:
		return "B"
	case *types.AttributeValueMemberBOOL:
		return "BOOL"
	case *types.AttributeValueMemberNULL:
		return "NULL"
	case *types.AttributeValueMemberSS:
		return "SS"
	case *types.AttributeValueMemberNS:
		return "NS"
	case *types.AttributeValueMemberBS:
		return "BS"
	case *types.AttributeValueMemberL:
		return "L"
	case *types.AttributeValueMemberM:
		return "M"
	}
	return ""
}

// Resolve returns the value at a document path such as "$sf.name",
// "address.city" or "tags[0]".
func Resolve(item dynamodel.Item, path string) (types.AttributeValue, bool) {
	var cur types.AttributeValue = &types.AttributeValueMemberM{Value: item}
	for _, part := range strings.Split(path, ".") {
		name, rest, _ := strings.Cut(part, "[")
		m, ok := cur.(*types.AttributeValueMemberM)
		if !ok {
			return nil, false
		}
		if cur, ok = m.Value[name]; !ok || cur == nil {
			return nil, false
		}
		for rest != "" {
			digits, tail, found := strings.Cut(rest, "]")
			if !found {
				return nil, false
			}
			i, err := strconv.Atoi(digits)
			if err != nil {
				return nil, false
			}
			l, ok := cur.(*types.AttributeValueMemberL)
			if !ok || i < 0 || i >= len(l.Value) {
				return nil, false
			}
			cur = l.Value[i]
			rest = strings.TrimPrefix(tail, "[")
		}
	}
	return cur, true
}

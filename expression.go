package dynamodel

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
)

// compileFilter converts f into a DynamoDB condition. It reports false when
// f does not constrain anything. An empty And matches every row and an
// empty Or matches none.
func compileFilter(f Filter) (expression.ConditionBuilder, bool, error) {
	if f == nil {
		return expression.ConditionBuilder{}, false, nil
	}
	if and, ok := f.(And); ok && len(and.Filters) == 0 {
		return expression.ConditionBuilder{}, false, nil
	}
	c, err := compileCondition(f)
	return c, err == nil, err
}

// always and never rely on every row having a partition key.
func always() expression.ConditionBuilder {
	return expression.AttributeExists(expression.Name(AttributeNameID))
}

func never() expression.ConditionBuilder {
	return expression.AttributeNotExists(expression.Name(AttributeNameID))
}

func compileCondition(f Filter) (expression.ConditionBuilder, error) {
	switch x := f.(type) {
	case nil:
		return always(), nil
	case And:
		return compileJunction(x.Filters, expression.And, always)
	case Or:
		return compileJunction(x.Filters, expression.Or, never)
	case Not:
		inner, err := compileCondition(x.Filter)
		if err != nil {
			return expression.ConditionBuilder{}, err
		}
		return expression.Not(inner), nil
	case Compare:
		lhs := operand(x.Path, x.Size)
		rhs := expression.Value(x.Value)
		switch x.Op {
		case OpEqual:
			return expression.Equal(lhs, rhs), nil
		case OpNotEqual:
			return expression.NotEqual(lhs, rhs), nil
		case OpLessThan:
			return expression.LessThan(lhs, rhs), nil
		case OpLessThanOrEqual:
			return expression.LessThanEqual(lhs, rhs), nil
		case OpGreaterThan:
			return expression.GreaterThan(lhs, rhs), nil
		case OpGreaterThanOrEqual:
			return expression.GreaterThanEqual(lhs, rhs), nil
		}
		return expression.ConditionBuilder{}, fmt.Errorf("unknown comparison %d", x.Op)
	case Between:
		return expression.Between(operand(x.Path, x.Size), expression.Value(x.Lower), expression.Value(x.Upper)), nil
	case In:
		switch len(x.Values) {
		case 0:
			return never(), nil
		case 1:
			return expression.In(expression.Name(x.Path), expression.Value(x.Values[0])), nil
		}
		rest := make([]expression.OperandBuilder, 0, len(x.Values)-1)
		for _, v := range x.Values[1:] {
			rest = append(rest, expression.Value(v))
		}
		return expression.In(expression.Name(x.Path), expression.Value(x.Values[0]), rest...), nil
	case Func:
		name := expression.Name(x.Path)
		switch x.Name {
		case FuncAttributeExists:
			return expression.AttributeExists(name), nil
		case FuncAttributeNotExists:
			return expression.AttributeNotExists(name), nil
		case FuncAttributeType:
			typ, ok := x.Arg.(string)
			if !ok {
				return expression.ConditionBuilder{}, fmt.Errorf("attribute_type expects a type name, got %T", x.Arg)
			}
			return expression.AttributeType(name, expression.DynamoDBAttributeType(typ)), nil
		case FuncBeginsWith:
			prefix, ok := x.Arg.(string)
			if !ok {
				return expression.ConditionBuilder{}, fmt.Errorf("begins_with expects a string, got %T", x.Arg)
			}
			return expression.BeginsWith(name, prefix), nil
		case FuncContains:
			substr, ok := x.Arg.(string)
			if !ok {
				return expression.ConditionBuilder{}, fmt.Errorf("contains expects a string, got %T", x.Arg)
			}
			return expression.Contains(name, substr), nil
		}
		return expression.ConditionBuilder{}, fmt.Errorf("unknown function %q", x.Name)
	case RelatedTo, Like, Search:
		return expression.ConditionBuilder{}, fmt.Errorf("%w: %T must be translated before it reaches the store", ErrUnsearchableQuery, f)
	}
	return expression.ConditionBuilder{}, fmt.Errorf("unsupported filter %T", f)
}

type junction func(expression.ConditionBuilder, expression.ConditionBuilder, ...expression.ConditionBuilder) expression.ConditionBuilder

func compileJunction(fs []Filter, join junction, empty func() expression.ConditionBuilder) (expression.ConditionBuilder, error) {
	conds := make([]expression.ConditionBuilder, 0, len(fs))
	for _, f := range fs {
		c, err := compileCondition(f)
		if err != nil {
			return expression.ConditionBuilder{}, err
		}
		conds = append(conds, c)
	}
	switch len(conds) {
	case 0:
		return empty(), nil
	case 1:
		return conds[0], nil
	}
	return join(conds[0], conds[1], conds[2:]...), nil
}

func operand(path string, size bool) expression.OperandBuilder {
	if size {
		return expression.Name(path).Size()
	}
	return expression.Name(path)
}

func compileKey(k KeyCondition) (expression.KeyConditionBuilder, error) {
	cond := expression.Key(k.PartitionName).Equal(expression.Value(k.PartitionValue))
	if k.Sort == nil {
		return cond, nil
	}
	want := 1
	if k.Sort.Op == SortBetween {
		want = 2
	}
	if len(k.Sort.Values) != want {
		return cond, fmt.Errorf("sort condition expects %d values, got %d", want, len(k.Sort.Values))
	}
	key := expression.Key(k.SortName)
	v := k.Sort.Values
	var sk expression.KeyConditionBuilder
	switch k.Sort.Op {
	case SortEqual:
		sk = key.Equal(expression.Value(v[0]))
	case SortLessThan:
		sk = key.LessThan(expression.Value(v[0]))
	case SortLessThanOrEqual:
		sk = key.LessThanEqual(expression.Value(v[0]))
	case SortGreaterThan:
		sk = key.GreaterThan(expression.Value(v[0]))
	case SortGreaterThanOrEqual:
		sk = key.GreaterThanEqual(expression.Value(v[0]))
	case SortBetween:
		sk = key.Between(expression.Value(v[0]), expression.Value(v[1]))
	case SortBeginsWith:
		sk = key.BeginsWith(v[0])
	default:
		return cond, fmt.Errorf("unknown sort condition %d", k.Sort.Op)
	}
	return cond.And(sk), nil
}

func compileProjection(names []string) (expression.ProjectionBuilder, bool) {
	if len(names) == 0 {
		return expression.ProjectionBuilder{}, false
	}
	rest := make([]expression.NameBuilder, 0, len(names)-1)
	for _, n := range names[1:] {
		rest = append(rest, expression.Name(n))
	}
	return expression.NamesList(expression.Name(names[0]), rest...), true
}

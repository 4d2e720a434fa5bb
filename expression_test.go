package dynamodel

import (
	"maps"
	"slices"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildFilter(t *testing.T, f Filter) (string, []string) {
	t.Helper()
	cond, ok, err := compileFilter(f)
	require.NoError(t, err)
	require.True(t, ok)
	expr, err := expression.NewBuilder().WithFilter(cond).Build()
	require.NoError(t, err)
	return *expr.Filter(), slices.Sorted(maps.Values(expr.Names()))
}

func TestCompileFilter(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   []string // fragments of the filter expression
		names  []string
	}{
		{"equal", Equals("name", "Ann"), []string{" = "}, []string{"name"}},
		{"not equal", NotEquals("name", "Ann"), []string{" <> "}, []string{"name"}},
		{"less than", LessThan("age", 3), []string{" < "}, []string{"age"}},
		{"greater or equal", GreaterThanOrEqualTo("age", 3), []string{" >= "}, []string{"age"}},
		{"between", BetweenFilter("age", 1, 3), []string{" BETWEEN ", " AND "}, []string{"age"}},
		{"in", MemberOf("name", "a", "b", "c"), []string{" IN ("}, []string{"name"}},
		{"in single", MemberOf("name", "a"), []string{" IN ("}, []string{"name"}},
		{"exists", AttributeExists("name"), []string{"attribute_exists ("}, []string{"name"}},
		{"not exists", AttributeNotExists("name"), []string{"attribute_not_exists ("}, []string{"name"}},
		{"type", AttributeType("name", "S"), []string{"attribute_type ("}, []string{"name"}},
		{"begins with", BeginsWith("$ss.name", "an"), []string{"begins_with ("}, []string{"$ss", "name"}},
		{"contains", Contains("$rl", "User$groups@Group:g1"), []string{"contains ("}, []string{"$rl"}},
		{"size", Size("tags").GreaterThan(2), []string{"size (", " > "}, []string{"tags"}},
		{"size between", Size("tags").Between(1, 2), []string{"size (", " BETWEEN "}, []string{"tags"}},
		{"not", NotFilter(Equals("name", "Ann")), []string{"NOT ("}, []string{"name"}},
		{"and", AndFilter(Equals("a", 1), Equals("b", 2)), []string{" AND "}, []string{"a", "b"}},
		{"or", OrFilter(Equals("a", 1), Equals("b", 2), Equals("c", 3)), []string{" OR "}, []string{"a", "b", "c"}},
		{"single and", AndFilter(Equals("a", 1)), []string{" = "}, []string{"a"}},
		{"empty or", OrFilter(), []string{"attribute_not_exists ("}, []string{AttributeNameID}},
		{"nested empty and", OrFilter(AndFilter(), Equals("a", 1)), []string{"attribute_exists (", " OR "}, []string{AttributeNameID, "a"}},
		{"empty in", MemberOf("name"), []string{"attribute_not_exists ("}, []string{AttributeNameID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, names := buildFilter(t, tt.filter)
			for _, fragment := range tt.want {
				assert.Contains(t, got, fragment)
			}
			assert.Equal(t, tt.names, names)
		})
	}
}

func TestCompileFilter_Unconstrained(t *testing.T) {
	for name, f := range map[string]Filter{"nil": nil, "empty and": AndFilter()} {
		t.Run(name, func(t *testing.T) {
			_, ok, err := compileFilter(f)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestCompileFilter_Errors(t *testing.T) {
	tests := map[string]Filter{
		"related to":         RelatedToFilter("groups", "g1"),
		"like":               LikeFilter("name", "x"),
		"nested like":        AndFilter(Equals("a", 1), NotFilter(BeginsLike("name", "x"))),
		"bad type argument":  Fn(FuncAttributeType, "name", 1),
		"non string operand": Contains("name", 1),
		"unknown function":   Fn("nope", "name", nil),
		"unknown comparison": Compare{Path: "a", Op: CompareOp(99), Value: 1},
	}
	for name, f := range tests {
		t.Run(name, func(t *testing.T) {
			_, ok, err := compileFilter(f)
			assert.Error(t, err)
			assert.False(t, ok)
		})
	}

	_, _, err := compileFilter(RelatedToFilter("groups", "g1"))
	assert.ErrorIs(t, err, ErrUnsearchableQuery)
}

func TestCompileKey(t *testing.T) {
	key := func(sort *SortCondition) KeyCondition {
		return KeyCondition{
			PartitionName:  AttributeNameKey,
			PartitionValue: "User$byName",
			SortName:       AttributeNameSort,
			Sort:           sort,
		}
	}

	tests := []struct {
		name  string
		sort  *SortCondition
		want  string
		names []string
	}{
		{"partition only", nil, " = ", []string{AttributeNameKey}},
		{"equal", &SortCondition{Op: SortEqual, Values: []string{"a"}}, " AND ", []string{AttributeNameKey, AttributeNameSort}},
		{"less than", &SortCondition{Op: SortLessThan, Values: []string{"a"}}, " < ", []string{AttributeNameKey, AttributeNameSort}},
		{"greater or equal", &SortCondition{Op: SortGreaterThanOrEqual, Values: []string{"a"}}, " >= ", []string{AttributeNameKey, AttributeNameSort}},
		{"between", &SortCondition{Op: SortBetween, Values: []string{"a", "b"}}, " BETWEEN ", []string{AttributeNameKey, AttributeNameSort}},
		{"begins with", &SortCondition{Op: SortBeginsWith, Values: []string{"a"}}, "begins_with (", []string{AttributeNameKey, AttributeNameSort}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kc, err := compileKey(key(tt.sort))
			require.NoError(t, err)
			expr, err := expression.NewBuilder().WithKeyCondition(kc).Build()
			require.NoError(t, err)
			assert.Contains(t, *expr.KeyCondition(), tt.want)
			assert.Equal(t, tt.names, slices.Sorted(maps.Values(expr.Names())))
		})
	}

	for name, sort := range map[string]*SortCondition{
		"between with one value": {Op: SortBetween, Values: []string{"a"}},
		"equal with two values":  {Op: SortEqual, Values: []string{"a", "b"}},
		"unknown operator":       {Op: SortOp(99), Values: []string{"a"}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := compileKey(key(sort))
			assert.Error(t, err)
		})
	}
}

func TestCompileProjection(t *testing.T) {
	_, ok := compileProjection(nil)
	assert.False(t, ok)

	proj, ok := compileProjection([]string{AttributeNameID, AttributeNameKey, AttributeNameSort})
	require.True(t, ok)
	expr, err := expression.NewBuilder().WithProjection(proj).Build()
	require.NoError(t, err)
	assert.Equal(t, []string{AttributeNameID, AttributeNameKey, AttributeNameSort}, slices.Sorted(maps.Values(expr.Names())))
}

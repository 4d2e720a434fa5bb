package dynamodel

// Filter is a predicate over stored rows. The concrete types below form a
// closed set; translators and evaluators switch over them exhaustively.
//
// Paths are attribute paths such as "name", "address.city" or "tags[0]".
type Filter interface {
	isFilter()
}

// And matches when every filter matches. An empty And matches everything.
type And struct{ Filters []Filter }

// Or matches when any filter matches. An empty Or matches nothing.
type Or struct{ Filters []Filter }

// Not inverts a filter.
type Not struct{ Filter Filter }

// CompareOp is a binary comparison.
type CompareOp int

// Comparison operators.
const (
	OpEqual CompareOp = iota
	OpNotEqual
	OpLessThan
	OpLessThanOrEqual
	OpGreaterThan
	OpGreaterThanOrEqual
)

// Compare compares the value at Path, or its size when Size is set, with Value.
type Compare struct {
	Path  string
	Op    CompareOp
	Value any
	Size  bool
}

// Between matches Lower <= value <= Upper.
type Between struct {
	Path         string
	Lower, Upper any
	Size         bool
}

// In matches when the value at Path equals one of Values.
type In struct {
	Path   string
	Values []any
}

// FuncName names a store function predicate.
type FuncName string

// Function predicates understood by every store.
const (
	FuncAttributeExists    FuncName = "attribute_exists"
	FuncAttributeNotExists FuncName = "attribute_not_exists"
	FuncAttributeType      FuncName = "attribute_type"
	FuncBeginsWith         FuncName = "begins_with"
	FuncContains           FuncName = "contains"
)

// Func applies a function predicate to Path. Arg is unused by the existence
// checks, the DynamoDB type name ("S", "N", "SS", ...) for attribute_type,
// and the operand otherwise.
type Func struct {
	Name FuncName
	Path string
	Arg  any
}

// RelatedTo matches index rows whose owner holds the relation Relation to
// the target with id ID. It is only meaningful when querying an index.
type RelatedTo struct {
	Relation string
	ID       string
}

// LikeMode selects how a Like value is matched.
type LikeMode int

const (
	LikeEqual LikeMode = iota
	LikeBegins
	LikeContains
)

// Like compares the normalized search token of Path with the normalized
// Value. It is only meaningful when querying a searchable index.
type Like struct {
	Path  string
	Value string
	Mode  LikeMode
}

// Search matches rows whose search tokens contain every whitespace
// separated term of the normalized Text, each term in any search field. It
// is only meaningful when querying a searchable index or relation.
type Search struct {
	Text string
}

func (And) isFilter()       {}
func (Or) isFilter()        {}
func (Not) isFilter()       {}
func (Compare) isFilter()   {}
func (Between) isFilter()   {}
func (In) isFilter()        {}
func (Func) isFilter()      {}
func (RelatedTo) isFilter() {}
func (Like) isFilter()      {}
func (Search) isFilter()    {}

func all(filters ...Filter) Filter {
	switch len(filters) {
	case 0:
		return nil
	case 1:
		return filters[0]
	}
	return And{Filters: filters}
}

// AndFilter combines filters with AND.
func AndFilter(filters ...Filter) Filter { return And{Filters: filters} }

// OrFilter combines filters with OR.
func OrFilter(filters ...Filter) Filter { return Or{Filters: filters} }

// NotFilter negates f.
func NotFilter(f Filter) Filter { return Not{Filter: f} }

// Equals matches path = v.
func Equals(path string, v any) Filter {
	return Compare{Path: path, Op: OpEqual, Value: v}
}

// NotEquals matches path <> v.
func NotEquals(path string, v any) Filter {
	return Compare{Path: path, Op: OpNotEqual, Value: v}
}

// LessThan matches path < v.
func LessThan(path string, v any) Filter {
	return Compare{Path: path, Op: OpLessThan, Value: v}
}

// LessThanOrEqualTo matches path <= v.
func LessThanOrEqualTo(path string, v any) Filter {
	return Compare{Path: path, Op: OpLessThanOrEqual, Value: v}
}

// GreaterThan matches path > v.
func GreaterThan(path string, v any) Filter {
	return Compare{Path: path, Op: OpGreaterThan, Value: v}
}

// GreaterThanOrEqualTo matches path >= v.
func GreaterThanOrEqualTo(path string, v any) Filter {
	return Compare{Path: path, Op: OpGreaterThanOrEqual, Value: v}
}

// BetweenFilter matches lower <= path <= upper.
func BetweenFilter(path string, lower, upper any) Filter {
	return Between{Path: path, Lower: lower, Upper: upper}
}

// MemberOf matches when path equals one of values.
func MemberOf(path string, values ...any) Filter {
	return In{Path: path, Values: values}
}

// Fn builds a function predicate by name.
func Fn(name FuncName, path string, arg any) Filter {
	return Func{Name: name, Path: path, Arg: arg}
}

// AttributeExists matches rows where path is set.
func AttributeExists(path string) Filter {
	return Func{Name: FuncAttributeExists, Path: path}
}

// AttributeNotExists matches rows where path is absent.
func AttributeNotExists(path string) Filter {
	return Func{Name: FuncAttributeNotExists, Path: path}
}

// AttributeType matches when path holds a value of the DynamoDB type typ.
func AttributeType(path, typ string) Filter {
	return Func{Name: FuncAttributeType, Path: path, Arg: typ}
}

// BeginsWith matches string values at path starting with prefix.
func BeginsWith(path, prefix string) Filter {
	return Func{Name: FuncBeginsWith, Path: path, Arg: prefix}
}

// Contains matches when the string at path contains operand as a substring,
// or the set or list at path holds operand.
func Contains(path string, operand any) Filter {
	return Func{Name: FuncContains, Path: path, Arg: operand}
}

// SizeOf compares the size of an attribute.
type SizeOf struct{ path string }

// Size starts a comparison on the size of path.
func Size(path string) SizeOf { return SizeOf{path: path} }

func (s SizeOf) cmp(op CompareOp, n int) Filter {
	return Compare{Path: s.path, Op: op, Value: n, Size: true}
}

// Equals matches size(path) = n.
func (s SizeOf) Equals(n int) Filter { return s.cmp(OpEqual, n) }

// NotEquals matches size(path) <> n.
func (s SizeOf) NotEquals(n int) Filter { return s.cmp(OpNotEqual, n) }

// LessThan matches size(path) < n.
func (s SizeOf) LessThan(n int) Filter { return s.cmp(OpLessThan, n) }

// LessThanOrEqualTo matches size(path) <= n.
func (s SizeOf) LessThanOrEqualTo(n int) Filter { return s.cmp(OpLessThanOrEqual, n) }

// GreaterThan matches size(path) > n.
func (s SizeOf) GreaterThan(n int) Filter { return s.cmp(OpGreaterThan, n) }

// GreaterThanOrEqualTo matches size(path) >= n.
func (s SizeOf) GreaterThanOrEqualTo(n int) Filter { return s.cmp(OpGreaterThanOrEqual, n) }

// Between matches lower <= size <= upper.
func (s SizeOf) Between(lower, upper int) Filter {
	return Between{Path: s.path, Lower: lower, Upper: upper, Size: true}
}

// RelatedToFilter matches owners related to the target id through relation.
func RelatedToFilter(relation, id string) Filter {
	return RelatedTo{Relation: relation, ID: id}
}

// NotRelatedTo is the complement of RelatedToFilter.
func NotRelatedTo(relation, id string) Filter {
	return Not{Filter: RelatedTo{Relation: relation, ID: id}}
}

// LikeFilter matches when the search tokens of path equal value after
// normalization. It needs a searchable index or relation.
func LikeFilter(path, value string) Filter {
	return Like{Path: path, Value: value, Mode: LikeEqual}
}

// BeginsLike is LikeFilter with a prefix match.
func BeginsLike(path, value string) Filter {
	return Like{Path: path, Value: value, Mode: LikeBegins}
}

// ContainsLike is LikeFilter with a substring match.
func ContainsLike(path, value string) Filter {
	return Like{Path: path, Value: value, Mode: LikeContains}
}

// SearchFilter matches rows containing every term of text in their search
// tokens.
func SearchFilter(text string) Filter { return Search{Text: text} }

// IsEmpty reports whether f holds no predicate at all: nil, an empty
// combinator, or a negation of one.
func IsEmpty(f Filter) bool {
	switch x := f.(type) {
	case nil:
		return true
	case And:
		return len(x.Filters) == 0
	case Or:
		return len(x.Filters) == 0
	case Not:
		return IsEmpty(x.Filter)
	}
	return false
}

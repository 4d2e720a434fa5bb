package dynamodel

import (
	"context"
	"fmt"
	"slices"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	// DefaultQueryLimit is the default maximum number of entities returned by Find.
	DefaultQueryLimit = 100
	// DefaultCountLimit caps the rows visited by Count.
	DefaultCountLimit = 10000

	countPageSize = 1000
)

type usingKind int

const (
	usingItems usingKind = iota
	usingIndex
	usingRelation
)

type using struct {
	kind usingKind
	name string
	id   string
}

// Query selects entities of one type through the secondary index: all
// items, the rows of one index, or the owners of one relation target.
type Query struct {
	model      *Model
	using      using
	descending bool
	limit      int
	page       int
	pageSize   int
	sortKey    *SortCondition
	sortNot    *string
	filters    []Filter
	projection []string
	token      string
}

// Result is one page of entities.
type Result struct {
	Items             []*Entity
	ContinuationToken string // empty when no page may follow
}

func newQuery(m *Model) *Query {
	return &Query{
		model:      m,
		limit:      DefaultQueryLimit,
		page:       1,
		projection: []string{AttributeNameID, AttributeNameKey, AttributeNameSort},
	}
}

// Clone returns an independent copy of q.
func (q *Query) Clone() *Query {
	c := *q
	c.filters = slices.Clone(q.filters)
	c.projection = slices.Clone(q.projection)
	return &c
}

// UsingIndex queries the rows of a declared index.
func (q *Query) UsingIndex(name string) *Query {
	q.using = using{kind: usingIndex, name: name}
	return q
}

// UsingRelation queries the owners related to the target id through a
// declared relation.
func (q *Query) UsingRelation(name, id string) *Query {
	q.using = using{kind: usingRelation, name: name, id: id}
	return q
}

// UsingItems queries the item rows, ordered by id. This is the default.
func (q *Query) UsingItems() *Query {
	q.using = using{kind: usingItems}
	return q
}

// Asc sorts by ascending sort key. This is the default.
func (q *Query) Asc() *Query {
	q.descending = false
	return q
}

// Desc sorts by descending sort key.
func (q *Query) Desc() *Query {
	q.descending = true
	return q
}

// Limit caps the number of entities returned.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// Page selects the 1-based page of PageSize entities.
func (q *Query) Page(n int) *Query {
	q.page = n
	return q
}

// PageSize sets the page size. It defaults to the limit.
func (q *Query) PageSize(n int) *Query {
	q.pageSize = n
	return q
}

func (q *Query) sort(op SortOp, values ...string) *Query {
	q.sortKey = &SortCondition{Op: op, Values: values}
	q.sortNot = nil
	return q
}

// SortKeyEquals restricts the sort key to v.
func (q *Query) SortKeyEquals(v string) *Query { return q.sort(SortEqual, v) }

// SortKeyLessThan restricts the sort key to values below v.
func (q *Query) SortKeyLessThan(v string) *Query { return q.sort(SortLessThan, v) }

// SortKeyLessThanOrEqualTo restricts the sort key to values up to v.
func (q *Query) SortKeyLessThanOrEqualTo(v string) *Query {
	return q.sort(SortLessThanOrEqual, v)
}

// SortKeyGreaterThan restricts the sort key to values above v.
func (q *Query) SortKeyGreaterThan(v string) *Query { return q.sort(SortGreaterThan, v) }

// SortKeyGreaterThanOrEqualTo restricts the sort key to values from v.
func (q *Query) SortKeyGreaterThanOrEqualTo(v string) *Query {
	return q.sort(SortGreaterThanOrEqual, v)
}

// SortKeyBetween restricts the sort key to lower <= sk <= upper.
func (q *Query) SortKeyBetween(lower, upper string) *Query {
	return q.sort(SortBetween, lower, upper)
}

// SortKeyBeginsWith restricts the sort key to values starting with prefix.
func (q *Query) SortKeyBeginsWith(prefix string) *Query { return q.sort(SortBeginsWith, prefix) }

// SortKeyNotEquals excludes one sort value. Key conditions cannot express
// it, so it is applied as a filter.
func (q *Query) SortKeyNotEquals(v string) *Query {
	q.sortKey = nil
	q.sortNot = &v
	return q
}

// Filter adds filters. Filters are combined with AND.
func (q *Query) Filter(filters ...Filter) *Query {
	q.filters = append(q.filters, filters...)
	return q
}

// Search matches entities whose search tokens contain every term of text.
// It requires a searchable index or relation.
func (q *Query) Search(text string) *Query {
	return q.Filter(SearchFilter(text))
}

// ContinuationToken resumes after the page that returned token.
func (q *Query) ContinuationToken(token string) *Query {
	q.token = token
	return q
}

func (q *Query) effectivePageSize() int {
	if q.pageSize > 0 {
		return q.pageSize
	}
	return q.limit
}

// input builds the store query.
func (q *Query) input(ctx context.Context) (QueryInput, error) {
	m := q.model
	keys := m.table.keys
	tr := translator{model: m}
	partition := m.Type()

	switch q.using.kind {
	case usingIndex:
		d, err := m.Index(q.using.name)
		if err != nil {
			return QueryInput{}, err
		}
		partition = keys.Format(KeySegments{Entity: m.Type(), Index: d.Name})
		tr.project = true
		tr.index = d
	case usingRelation:
		d, err := m.Relation(q.using.name)
		if err != nil {
			return QueryInput{}, err
		}
		if q.using.id == "" {
			return QueryInput{}, fmt.Errorf("%w: relation %s queried without target id", ErrInvalidIdentity, d.Name)
		}
		partition = keys.Format(KeySegments{
			Entity:   m.Type(),
			Index:    d.Name,
			Relation: keys.EnsurePrefix(d.Target, q.using.id),
		})
		tr.project = true
		tr.relation = d
	}

	filter, err := tr.rewrite(all(q.filters...))
	if err != nil {
		return QueryInput{}, err
	}
	if q.sortNot != nil {
		ne := NotEquals(AttributeNameSort, *q.sortNot)
		if filter == nil {
			filter = ne
		} else {
			filter = And{Filters: []Filter{filter, ne}}
		}
	}

	startKey, err := m.table.Paginator.StartKey(ctx, q.token)
	if err != nil {
		return QueryInput{}, fmt.Errorf("failed to decode continuation token: %w", err)
	}

	return QueryInput{
		IndexName: m.table.IndexName,
		Key: KeyCondition{
			PartitionName:  AttributeNameKey,
			PartitionValue: partition,
			SortName:       AttributeNameSort,
			Sort:           q.sortKey,
		},
		Filter:     filter,
		Projection: q.projection,
		PageSize:   q.effectivePageSize(),
		Descending: q.descending,
		StartKey:   startKey,
	}, nil
}

// Exec runs the query and returns the matching rows.
func (q *Query) Exec(ctx context.Context) (Rows, error) {
	in, err := q.input(ctx)
	if err != nil {
		return nil, err
	}
	return q.model.table.store.Query(ctx, in), nil
}

// Find returns one page of entities. Pages are emulated by skipping
// (page-1)*pageSize rows; at most min(pageSize, limit) entities are
// returned in query order. A continuation token is returned when a full
// page was read.
//
// Returned entities carry their fields only. Saving one loads its relation
// and index rows first.
func (q *Query) Find(ctx context.Context) (*Result, error) {
	m := q.model
	rows, err := q.Exec(ctx)
	if err != nil {
		return nil, err
	}

	pageSize := q.effectivePageSize()
	page := max(q.page, 1)
	for i := 0; i < pageSize*(page-1); i++ {
		if !rows.Next(ctx) {
			break
		}
	}

	take := min(pageSize, q.limit)
	var (
		keys  []Item
		order = make(map[string]int)
		last  Item
	)
	for len(order) < take && rows.Next(ctx) {
		row := rows.Item()
		last = row
		id := stringAttr(row, AttributeNameID)
		if _, ok := order[id]; ok {
			continue
		}
		order[id] = len(keys)
		keys = append(keys, Item{
			AttributeNameID:  &types.AttributeValueMemberS{Value: id},
			AttributeNameKey: &types.AttributeValueMemberS{Value: m.Type()},
		})
	}
	if err := rows.Err(); err != nil {
		m.log.LogQuery(ctx, m.Type(), 0, err)
		return nil, fmt.Errorf("failed to query %s: %w", m.Type(), err)
	}

	res := &Result{}
	if len(keys) > 0 {
		items, err := m.table.store.BatchGet(ctx, keys, nil)
		if err != nil {
			m.log.LogQuery(ctx, m.Type(), 0, err)
			return nil, fmt.Errorf("failed to fetch %s: %w", m.Type(), err)
		}
		for _, item := range items {
			e, err := m.fromItem(item)
			if err != nil {
				return nil, err
			}
			e.partial = true
			res.Items = append(res.Items, e)
		}
	}

	// Batch reads are unordered.
	slices.SortStableFunc(res.Items, func(a, b *Entity) int {
		return order[a.key] - order[b.key]
	})

	if take > 0 && len(order) == take && last != nil {
		token, err := m.table.Paginator.PageCursor(ctx, KeyOf(last, AttributeNameID, AttributeNameKey, AttributeNameSort))
		if err != nil {
			return nil, fmt.Errorf("failed to encode continuation token: %w", err)
		}
		res.ContinuationToken = token
	}
	m.log.LogQuery(ctx, m.Type(), len(res.Items), nil)
	return res, nil
}

// Count returns the number of rows matching the query, visiting at most
// limit rows. A non-positive limit uses DefaultCountLimit.
func (q *Query) Count(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = DefaultCountLimit
	}
	c := q.Clone()
	c.pageSize = countPageSize
	c.projection = []string{AttributeNameID}
	in, err := c.input(ctx)
	if err != nil {
		return 0, err
	}
	in.Limit = limit
	rows := q.model.table.store.Query(ctx, in)
	n := 0
	for rows.Next(ctx) {
		n++
	}
	if err := rows.Err(); err != nil {
		q.model.log.LogQuery(ctx, q.model.Type(), n, err)
		return 0, fmt.Errorf("failed to count %s: %w", q.model.Type(), err)
	}
	q.model.log.LogQuery(ctx, q.model.Type(), n, nil)
	return n, nil
}

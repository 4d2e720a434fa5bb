package dynamock

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nisimpson/dynamodel"
)

// Stats counts the operations served by a MemoryStore.
type Stats struct {
	Puts        int // rows written
	Deletes     int // rows removed
	BatchWrites int
	BatchGets   int
	Queries     int
	Scans       int
}

// Writes returns the number of rows written or removed.
func (s Stats) Writes() int { return s.Puts + s.Deletes }

// MemoryStore is an in-memory dynamodel.Store with the table layout
// created by CreateTable: a base table keyed by ($id, $kt) and a sparse
// global secondary index keyed by ($kt, $sk).
type MemoryStore struct {
	// IndexName is the only secondary index the store accepts.
	IndexName string
	// Fail, when set, is consulted before every operation. A non-nil result
	// is returned as a *dynamodel.StoreError in place of the operation.
	Fail func(op string) error

	mu    sync.Mutex
	rows  map[rowKey]dynamodel.Item
	stats Stats
}

type rowKey struct{ id, kt string }

var _ dynamodel.Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store whose secondary index is named
// dynamodel.DefaultIndexName.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		IndexName: dynamodel.DefaultIndexName,
		rows:      make(map[rowKey]dynamodel.Item),
	}
}

func keyOf(item dynamodel.Item) (rowKey, error) {
	id, ok1 := item[dynamodel.AttributeNameID].(*types.AttributeValueMemberS)
	kt, ok2 := item[dynamodel.AttributeNameKey].(*types.AttributeValueMemberS)
	if !ok1 || !ok2 {
		return rowKey{}, fmt.Errorf("dynamock: item is missing its %s or %s string key", dynamodel.AttributeNameID, dynamodel.AttributeNameKey)
	}
	return rowKey{id: id.Value, kt: kt.Value}, nil
}

func (s *MemoryStore) fail(op string) error {
	if s.Fail == nil {
		return nil
	}
	return dynamodel.NewStoreError(op, s.Fail(op))
}

// Put implements dynamodel.Store.
func (s *MemoryStore) Put(ctx context.Context, item dynamodel.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("Put"); err != nil {
		return err
	}
	return s.put(item)
}

func (s *MemoryStore) put(item dynamodel.Item) error {
	k, err := keyOf(item)
	if err != nil {
		return err
	}
	s.rows[k] = maps.Clone(item)
	s.stats.Puts++
	return nil
}

// Delete implements dynamodel.Store.
func (s *MemoryStore) Delete(ctx context.Context, key dynamodel.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("Delete"); err != nil {
		return err
	}
	return s.delete(key)
}

func (s *MemoryStore) delete(key dynamodel.Item) error {
	k, err := keyOf(key)
	if err != nil {
		return err
	}
	delete(s.rows, k)
	s.stats.Deletes++
	return nil
}

// BatchWrite implements dynamodel.Store.
func (s *MemoryStore) BatchWrite(ctx context.Context, writes []dynamodel.Write) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.BatchWrites++
	if err := s.fail("BatchWrite"); err != nil {
		return err
	}
	for _, w := range writes {
		var err error
		if w.IsDelete() {
			err = s.delete(w.Delete)
		} else {
			err = s.put(w.Put)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// BatchGet implements dynamodel.Store.
func (s *MemoryStore) BatchGet(ctx context.Context, keys []dynamodel.Item, projection []string) ([]dynamodel.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.BatchGets++
	if err := s.fail("BatchGet"); err != nil {
		return nil, err
	}
	var out []dynamodel.Item
	for _, key := range keys {
		k, err := keyOf(key)
		if err != nil {
			return nil, err
		}
		if item, ok := s.rows[k]; ok {
			out = append(out, project(item, projection))
		}
	}
	return out, nil
}

// Query implements dynamodel.Store. Base table partitions are ordered by
// $kt; index partitions by $sk, then by table key.
func (s *MemoryStore) Query(ctx context.Context, in dynamodel.QueryInput) dynamodel.Rows {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Queries++
	if err := s.fail("Query"); err != nil {
		return &memoryRows{err: err}
	}

	partition, sortName := dynamodel.AttributeNameID, dynamodel.AttributeNameKey
	if in.IndexName != "" {
		if in.IndexName != s.IndexName {
			return &memoryRows{err: fmt.Errorf("dynamock: unknown index %q", in.IndexName)}
		}
		partition, sortName = dynamodel.AttributeNameKey, dynamodel.AttributeNameSort
	}
	if in.Key.PartitionName != partition {
		return &memoryRows{err: fmt.Errorf("dynamock: %q is not the partition key, want %q", in.Key.PartitionName, partition)}
	}
	if in.Key.Sort != nil && in.Key.SortName != sortName {
		return &memoryRows{err: fmt.Errorf("dynamock: %q is not the sort key, want %q", in.Key.SortName, sortName)}
	}

	type candidate struct {
		order []string
		item  dynamodel.Item
	}
	var matched []candidate
	for _, item := range s.rows {
		if str(item, partition) != in.Key.PartitionValue {
			continue
		}
		sk, ok := item[sortName].(*types.AttributeValueMemberS)
		if !ok {
			continue // sparse index
		}
		if in.Key.Sort != nil && !matchSort(sk.Value, *in.Key.Sort) {
			continue
		}
		matched = append(matched, candidate{order: orderOf(item, in.IndexName != ""), item: item})
	}
	slices.SortFunc(matched, func(a, b candidate) int { return slices.Compare(a.order, b.order) })
	if in.Descending {
		slices.Reverse(matched)
	}

	start := 0
	if len(in.StartKey) > 0 {
		after := orderOf(in.StartKey, in.IndexName != "")
		for start < len(matched) {
			n := slices.Compare(matched[start].order, after)
			if in.Descending {
				n = -n
			}
			if n > 0 {
				break
			}
			start++
		}
	}

	rows := &memoryRows{}
	for _, c := range matched[start:] {
		ok, err := Match(c.item, in.Filter)
		if err != nil {
			return &memoryRows{err: err}
		}
		if !ok {
			continue
		}
		rows.items = append(rows.items, project(c.item, in.Projection))
		if in.Limit > 0 && len(rows.items) == in.Limit {
			break
		}
	}
	return rows
}

// Scan implements dynamodel.Store.
func (s *MemoryStore) Scan(ctx context.Context, projection []string) dynamodel.Rows {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Scans++
	if err := s.fail("Scan"); err != nil {
		return &memoryRows{err: err}
	}
	rows := &memoryRows{}
	for _, item := range s.sorted() {
		rows.items = append(rows.items, project(item, projection))
	}
	return rows
}

func (s *MemoryStore) sorted() []dynamodel.Item {
	keys := slices.SortedFunc(maps.Keys(s.rows), func(a, b rowKey) int {
		if n := strings.Compare(a.id, b.id); n != 0 {
			return n
		}
		return strings.Compare(a.kt, b.kt)
	})
	items := make([]dynamodel.Item, len(keys))
	for i, k := range keys {
		items[i] = s.rows[k]
	}
	return items
}

// Items returns a copy of every stored row ordered by table key.
func (s *MemoryStore) Items() []dynamodel.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.sorted()
	for i, item := range items {
		items[i] = maps.Clone(item)
	}
	return items
}

// Partition returns the rows stored under the entity key id, ordered by $kt.
func (s *MemoryStore) Partition(id string) []dynamodel.Item {
	var out []dynamodel.Item
	for _, item := range s.Items() {
		if str(item, dynamodel.AttributeNameID) == id {
			out = append(out, item)
		}
	}
	return out
}

// Item returns the row with the given table key.
func (s *MemoryStore) Item(id, kt string) (dynamodel.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.rows[rowKey{id: id, kt: kt}]
	return maps.Clone(item), ok
}

// Len returns the number of stored rows.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// Stats returns the operation counters.
func (s *MemoryStore) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// ResetStats zeroes the operation counters.
func (s *MemoryStore) ResetStats() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = Stats{}
}

// Clear removes every row and zeroes the counters.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.rows)
	s.stats = Stats{}
}

func str(item dynamodel.Item, name string) string {
	if s, ok := item[name].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func orderOf(item dynamodel.Item, index bool) []string {
	if index {
		return []string{
			str(item, dynamodel.AttributeNameSort),
			str(item, dynamodel.AttributeNameID),
			str(item, dynamodel.AttributeNameKey),
		}
	}
	return []string{str(item, dynamodel.AttributeNameKey)}
}

func matchSort(v string, c dynamodel.SortCondition) bool {
	if len(c.Values) == 0 {
		return false
	}
	switch c.Op {
	case dynamodel.SortEqual:
		return v == c.Values[0]
	case dynamodel.SortLessThan:
		return v < c.Values[0]
	case dynamodel.SortLessThanOrEqual:
		return v <= c.Values[0]
	case dynamodel.SortGreaterThan:
		return v > c.Values[0]
	case dynamodel.SortGreaterThanOrEqual:
		return v >= c.Values[0]
	case dynamodel.SortBetween:
		return len(c.Values) == 2 && v >= c.Values[0] && v <= c.Values[1]
	case dynamodel.SortBeginsWith:
		return strings.HasPrefix(v, c.Values[0])
	}
	return false
}

func project(item dynamodel.Item, names []string) dynamodel.Item {
	if len(names) == 0 {
		return maps.Clone(item)
	}
	out := make(dynamodel.Item, len(names))
	for _, name := range names {
		root, _, _ := strings.Cut(name, ".")
		root, _, _ = strings.Cut(root, "[")
		if av, ok := item[root]; ok {
			out[root] = av
		}
	}
	return out
}

type memoryRows struct {
	items   []dynamodel.Item
	current dynamodel.Item
	err     error
}

func (r *memoryRows) Next(ctx context.Context) bool {
	if r.err != nil || len(r.items) == 0 {
		return false
	}
	if err := ctx.Err(); err != nil {
		r.err = err
		return false
	}
	r.current, r.items = r.items[0], r.items[1:]
	return true
}

func (r *memoryRows) Item() dynamodel.Item { return r.current }

func (r *memoryRows) Err() error { return r.err }

package dynamodel

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Item is a stored row.
type Item = map[string]types.AttributeValue

// Write is one element of a batch: a put of Put, or a delete of the row
// whose key attributes are in Delete.
type Write struct {
	Put    Item
	Delete Item
}

// PutWrite returns a put of item.
func PutWrite(item Item) Write { return Write{Put: item} }

// DeleteWrite returns a delete of the row addressed by key.
func DeleteWrite(key Item) Write { return Write{Delete: key} }

// IsDelete reports whether w deletes a row.
func (w Write) IsDelete() bool { return w.Delete != nil }

// SortOp is a sort key comparison.
type SortOp int

const (
	SortEqual SortOp = iota
	SortLessThan
	SortLessThanOrEqual
	SortGreaterThan
	SortGreaterThanOrEqual
	SortBetween
	SortBeginsWith
)

// SortCondition restricts the sort key of a query. Between uses two
// values, every other operator one.
type SortCondition struct {
	Op     SortOp
	Values []string
}

// KeyCondition selects one partition and optionally a sort key range.
type KeyCondition struct {
	PartitionName  string
	PartitionValue string
	SortName       string
	Sort           *SortCondition
}

// QueryInput describes a range query.
type QueryInput struct {
	IndexName  string // empty for the base table
	Key        KeyCondition
	Filter     Filter // evaluated against rows after the key condition
	Projection []string
	PageSize   int // rows per store round trip; 0 means store default
	Limit      int // maximum rows yielded; 0 means unbounded
	Descending bool
	StartKey   Item // exclusive
}

// Rows is a lazy sequence of query results.
type Rows interface {
	// Next advances to the next row and reports whether one is available.
	Next(ctx context.Context) bool
	// Item returns the current row.
	Item() Item
	// Err returns the error that stopped iteration, if any.
	Err() error
}

// Store is the storage collaborator of a Table.
type Store interface {
	Put(ctx context.Context, item Item) error
	Delete(ctx context.Context, key Item) error
	// BatchWrite applies writes without cross-row atomicity.
	BatchWrite(ctx context.Context, writes []Write) error
	// BatchGet fetches the rows addressed by keys in no particular order.
	// Missing rows are omitted.
	BatchGet(ctx context.Context, keys []Item, projection []string) ([]Item, error)
	Query(ctx context.Context, in QueryInput) Rows
	Scan(ctx context.Context, projection []string) Rows
}

// KeyOf returns the named attributes of item.
func KeyOf(item Item, names ...string) Item {
	key := make(Item, len(names))
	for _, name := range names {
		if av, ok := item[name]; ok {
			key[name] = av
		}
	}
	return key
}

package dynamodel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	// MaxBatchSize is the maximum number of items allowed in a DynamoDB batch write.
	MaxBatchSize = 25
	// MaxBatchGetSize is the maximum number of keys allowed in a DynamoDB batch get.
	MaxBatchGetSize = 100
	// DefaultMaxAttempts bounds the rounds spent resubmitting unprocessed items.
	DefaultMaxAttempts = 5
	// DefaultConcurrency is the number of batch requests in flight.
	DefaultConcurrency = 4
)

// DynamoDBClient is the subset of the DynamoDB API used by DynamoStore.
type DynamoDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoStore is a Store backed by a DynamoDB table.
type DynamoStore struct {
	Client      DynamoDBClient
	TableName   string
	Concurrency int           // batch requests in flight. Default is 4.
	MaxAttempts int           // rounds per batch before unprocessed items fail. Default is 5.
	Limiter     *rate.Limiter // paces resubmission of unprocessed items
}

var _ Store = (*DynamoStore)(nil)

// NewDynamoStore creates a store over the named table.
func NewDynamoStore(client DynamoDBClient, tableName string, opts ...func(*DynamoStore)) *DynamoStore {
	s := &DynamoStore{
		Client:      client,
		TableName:   tableName,
		Concurrency: DefaultConcurrency,
		MaxAttempts: DefaultMaxAttempts,
		Limiter:     rate.NewLimiter(rate.Every(50*time.Millisecond), 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Concurrency <= 0 {
		s.Concurrency = 1
	}
	if s.MaxAttempts <= 0 {
		s.MaxAttempts = 1
	}
	return s
}

// Put implements Store.
func (s *DynamoStore) Put(ctx context.Context, item Item) error {
	_, err := s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.TableName),
		Item:      item,
	})
	return NewStoreError("PutItem", err)
}

// Delete implements Store.
func (s *DynamoStore) Delete(ctx context.Context, key Item) error {
	_, err := s.Client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.TableName),
		Key:       KeyOf(key, AttributeNameID, AttributeNameKey),
	})
	return NewStoreError("DeleteItem", err)
}

// BatchWrite implements Store. Writes are split into chunks of MaxBatchSize
// sent concurrently; unprocessed items are resubmitted.
func (s *DynamoStore) BatchWrite(ctx context.Context, writes []Write) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Concurrency)
	for i := 0; i < len(writes); i += MaxBatchSize {
		end := min(i+MaxBatchSize, len(writes))
		requests := make([]types.WriteRequest, 0, end-i)
		for _, w := range writes[i:end] {
			if w.IsDelete() {
				requests = append(requests, types.WriteRequest{
					DeleteRequest: &types.DeleteRequest{Key: KeyOf(w.Delete, AttributeNameID, AttributeNameKey)},
				})
			} else {
				requests = append(requests, types.WriteRequest{
					PutRequest: &types.PutRequest{Item: w.Put},
				})
			}
		}
		g.Go(func() error { return s.writeChunk(ctx, requests) })
	}
	return g.Wait()
}

func (s *DynamoStore) writeChunk(ctx context.Context, requests []types.WriteRequest) error {
	for attempt := 1; ; attempt++ {
		out, err := s.Client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{s.TableName: requests},
		})
		if err != nil {
			return NewStoreError("BatchWriteItem", err)
		}
		requests = out.UnprocessedItems[s.TableName]
		if len(requests) == 0 {
			return nil
		}
		if attempt >= s.MaxAttempts {
			return &StoreError{
				Op:  "BatchWriteItem",
				Err: fmt.Errorf("%d unprocessed items after %d attempts", len(requests), attempt),
			}
		}
		if err := s.wait(ctx); err != nil {
			return NewStoreError("BatchWriteItem", err)
		}
	}
}

// BatchGet implements Store.
func (s *DynamoStore) BatchGet(ctx context.Context, keys []Item, projection []string) ([]Item, error) {
	var proj *string
	var names map[string]string
	if p, ok := compileProjection(projection); ok {
		expr, err := expression.NewBuilder().WithProjection(p).Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build projection: %w", err)
		}
		proj, names = expr.Projection(), expr.Names()
	}

	var (
		mu  sync.Mutex
		out []Item
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Concurrency)
	for i := 0; i < len(keys); i += MaxBatchGetSize {
		end := min(i+MaxBatchGetSize, len(keys))
		chunk := make([]Item, 0, end-i)
		for _, k := range keys[i:end] {
			chunk = append(chunk, KeyOf(k, AttributeNameID, AttributeNameKey))
		}
		g.Go(func() error {
			items, err := s.getChunk(ctx, chunk, proj, names)
			if err != nil {
				return err
			}
			mu.Lock()
			out = append(out, items...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *DynamoStore) getChunk(ctx context.Context, keys []Item, proj *string, names map[string]string) ([]Item, error) {
	var out []Item
	request := types.KeysAndAttributes{
		Keys:                     keys,
		ProjectionExpression:     proj,
		ExpressionAttributeNames: names,
	}
	for attempt := 1; ; attempt++ {
		res, err := s.Client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
			RequestItems: map[string]types.KeysAndAttributes{s.TableName: request},
		})
		if err != nil {
			return nil, NewStoreError("BatchGetItem", err)
		}
		out = append(out, res.Responses[s.TableName]...)
		next, ok := res.UnprocessedKeys[s.TableName]
		if !ok || len(next.Keys) == 0 {
			return out, nil
		}
		if attempt >= s.MaxAttempts {
			return nil, &StoreError{
				Op:  "BatchGetItem",
				Err: fmt.Errorf("%d unprocessed keys after %d attempts", len(next.Keys), attempt),
			}
		}
		request = next
		if err := s.wait(ctx); err != nil {
			return nil, NewStoreError("BatchGetItem", err)
		}
	}
}

func (s *DynamoStore) wait(ctx context.Context) error {
	if s.Limiter == nil {
		return nil
	}
	return s.Limiter.Wait(ctx)
}

// Query implements Store.
func (s *DynamoStore) Query(ctx context.Context, in QueryInput) Rows {
	input, err := s.queryInput(in)
	if err != nil {
		return &dynamoRows{err: err}
	}
	return &dynamoRows{
		limit: in.Limit,
		fetch: func(ctx context.Context, start Item) ([]Item, Item, error) {
			input.ExclusiveStartKey = start
			out, err := s.Client.Query(ctx, input)
			if err != nil {
				return nil, nil, NewStoreError("Query", err)
			}
			return out.Items, out.LastEvaluatedKey, nil
		},
		next: in.StartKey,
	}
}

func (s *DynamoStore) queryInput(in QueryInput) (*dynamodb.QueryInput, error) {
	key, err := compileKey(in.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to build key condition: %w", err)
	}
	builder := expression.NewBuilder().WithKeyCondition(key)
	filter, hasFilter, err := compileFilter(in.Filter)
	if err != nil {
		return nil, fmt.Errorf("failed to build filter: %w", err)
	}
	if hasFilter {
		builder = builder.WithFilter(filter)
	}
	if p, ok := compileProjection(in.Projection); ok {
		builder = builder.WithProjection(p)
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.TableName),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(!in.Descending),
	}
	if in.IndexName != "" {
		input.IndexName = aws.String(in.IndexName)
	}
	if in.PageSize > 0 {
		input.Limit = aws.Int32(int32(in.PageSize))
	}
	return input, nil
}

// Scan implements Store.
func (s *DynamoStore) Scan(ctx context.Context, projection []string) Rows {
	input := &dynamodb.ScanInput{TableName: aws.String(s.TableName)}
	if p, ok := compileProjection(projection); ok {
		expr, err := expression.NewBuilder().WithProjection(p).Build()
		if err != nil {
			return &dynamoRows{err: fmt.Errorf("failed to build projection: %w", err)}
		}
		input.ProjectionExpression = expr.Projection()
		input.ExpressionAttributeNames = expr.Names()
	}
	return &dynamoRows{
		fetch: func(ctx context.Context, start Item) ([]Item, Item, error) {
			input.ExclusiveStartKey = start
			out, err := s.Client.Scan(ctx, input)
			if err != nil {
				return nil, nil, NewStoreError("Scan", err)
			}
			return out.Items, out.LastEvaluatedKey, nil
		},
	}
}

// dynamoRows pages through a query or scan lazily.
type dynamoRows struct {
	fetch   func(ctx context.Context, start Item) ([]Item, Item, error)
	next    Item // start key of the next page
	started bool
	page    []Item
	current Item
	yielded int
	limit   int
	err     error
}

func (r *dynamoRows) Next(ctx context.Context) bool {
	if r.err != nil || (r.limit > 0 && r.yielded >= r.limit) {
		return false
	}
	for len(r.page) == 0 {
		if r.started && len(r.next) == 0 {
			return false
		}
		r.started = true
		items, last, err := r.fetch(ctx, r.next)
		if err != nil {
			r.err = err
			return false
		}
		r.page, r.next = items, last
	}
	r.current, r.page = r.page[0], r.page[1:]
	r.yielded++
	return true
}

func (r *dynamoRows) Item() Item { return r.current }

func (r *dynamoRows) Err() error { return r.err }

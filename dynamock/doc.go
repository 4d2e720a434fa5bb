// Package dynamock provides testing utilities for the dynamodel library.
//
// This package includes:
//   - An in-memory Store with the dynamodel table layout
//   - An expectation-based mock DynamoDB client for DynamoStore
//   - Local DynamoDB integration utilities
//   - Entity builders with functional options
//   - Test data seeding helpers, including JSON:API documents
//
// # Memory Store
//
// MemoryStore implements dynamodel.Store without a network. It orders index
// partitions the way DynamoDB orders the secondary index, evaluates filters,
// and counts the operations it served:
//
//	store := dynamock.NewMemoryStore()
//	table := dynamodel.NewTable("test-table", store)
//	users := table.MustRegister(schema)
//
//	store.ResetStats()
//	n, _ := user.Save(ctx)
//	if store.Stats().Writes() != n {
//		t.Fail()
//	}
//
// Set Fail to inject store errors:
//
//	store.Fail = func(op string) error {
//		if op == "BatchWrite" {
//			return errors.New("boom")
//		}
//		return nil
//	}
//
// # Mock Client
//
// The MockClient provides an expectation-based mock implementation of
// dynamodel.DynamoDBClient where you set expectations for specific operations:
//
//	mock := dynamock.NewMockClient(t)
//	mock.BatchWriteItemFunc = func(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
//		return &dynamodb.BatchWriteItemOutput{}, nil
//	}
//	store := dynamodel.NewDynamoStore(mock, "test-table")
//
// Operations without an expectation fail the test.
//
// # Builders
//
//	user := dynamock.NewEntity(users,
//		dynamock.WithID("u1"),
//		dynamock.WithField("name", "Ann"),
//		dynamock.WithRelation("groups", dynamock.Ref(t, groups, "g1")),
//	).MustBuild(t)
//
// # Local DynamoDB Integration
//
// For integration testing with DynamoDB Local:
//
//	dynamock.RunIntegrationTest(t, nil, func(local *dynamock.LocalDynamoDB, tableName string) {
//		table := dynamock.OpenTable(local.Client, tableName)
//		// register models and run tests
//	})
//
// Tests are skipped when DynamoDB Local is not running or in short mode.
//
// # Seeding
//
//	seeder := dynamock.NewSeedTestData(table)
//	n, err := seeder.SeedFromJSON(ctx, strings.NewReader(`[
//		{"type": "User", "id": "u1", "attributes": {"name": "Ann"},
//		 "relationships": {"groups": {"data": [{"type": "Group", "id": "g1"}]}}}
//	]`))
package dynamock

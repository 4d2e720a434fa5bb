package dynamock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/nisimpson/dynamodel"
)

// TableManager creates dynamodel tables on DynamoDB Local and deletes them
// on Cleanup.
type TableManager struct {
	// IndexName names the secondary index of created tables. Empty means
	// dynamodel.DefaultIndexName.
	IndexName string

	client *dynamodb.Client
	tables []string
}

// NewTableManager creates a new table manager with the given DynamoDB client.
func NewTableManager(client *dynamodb.Client) *TableManager {
	return &TableManager{
		client: client,
		tables: make([]string, 0),
	}
}

// CreateTestTable creates a table with the dynamodel layout and tracks it for cleanup.
func (tm *TableManager) CreateTestTable(ctx context.Context, tableName string) error {
	local := &LocalDynamoDB{Client: tm.client}
	if err := local.CreateTable(ctx, tableName, tm.IndexName); err != nil {
		return err
	}
	tm.tables = append(tm.tables, tableName)
	return nil
}

// Cleanup deletes every table created by this manager. It attempts all of
// them and reports the failures together.
func (tm *TableManager) Cleanup(ctx context.Context) error {
	local := &LocalDynamoDB{Client: tm.client}
	var errs []error
	for _, tableName := range tm.tables {
		if err := local.DeleteTable(ctx, tableName); err != nil {
			errs = append(errs, err)
		}
	}
	tm.tables = tm.tables[:0]
	return errors.Join(errs...)
}

// GetTableNames returns the names of all tables managed by this manager.
func (tm *TableManager) GetTableNames() []string {
	names := make([]string, len(tm.tables))
	copy(names, tm.tables)
	return names
}

// IsolatedTableName derives a unique, valid DynamoDB table name from a test
// name. Characters outside [A-Za-z0-9_.-] become '-'.
func IsolatedTableName(testName string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
			return r
		}
		return '-'
	}, testName)
	name := fmt.Sprintf("test-%s-%d", clean, time.Now().UnixNano())
	if len(name) > 255 {
		name = name[len(name)-255:]
	}
	return name
}

// WithIsolatedTable creates a table for the test, opens a dynamodel table
// over it and deletes it when the test ends.
func WithIsolatedTable(t *testing.T, client *dynamodb.Client, fn func(table *dynamodel.Table), opts ...func(*dynamodel.Table)) {
	t.Helper()
	ctx := context.Background()
	tableName := IsolatedTableName(t.Name())

	tm := NewTableManager(client)
	t.Cleanup(func() {
		if err := tm.Cleanup(context.Background()); err != nil {
			t.Errorf("Failed to cleanup table %s: %v", tableName, err)
		}
	})
	if err := tm.CreateTestTable(ctx, tableName); err != nil {
		t.Fatalf("Failed to create test table %s: %v", tableName, err)
	}

	fn(OpenTable(client, tableName, opts...))
}

// WithLocalDynamoDB runs fn against the DynamoDB Local instance on port,
// skipping the test when none is listening.
func WithLocalDynamoDB(t *testing.T, port int, fn func(local *LocalDynamoDB)) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	local := NewLocalDynamoDB(port)
	if !local.IsAvailable(context.Background()) {
		t.Skipf("DynamoDB Local not available on port %d", port)
	}
	fn(local)
}

// WithDefaultLocalDynamoDB runs a test function with the default local DynamoDB instance (port 8000).
func WithDefaultLocalDynamoDB(t *testing.T, fn func(local *LocalDynamoDB)) {
	WithLocalDynamoDB(t, DefaultLocalPort, fn)
}

// NewTestTable generates a unique table name for testing.
func NewTestTable(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// OpenTable returns a dynamodel table backed by the named DynamoDB table.
func OpenTable(client dynamodel.DynamoDBClient, tableName string, opts ...func(*dynamodel.Table)) *dynamodel.Table {
	return dynamodel.NewTable(tableName, dynamodel.NewDynamoStore(client, tableName), opts...)
}

// SeedTestData is a helper for seeding test data into a table.
type SeedTestData struct {
	table *dynamodel.Table
}

// NewSeedTestData creates a new test data seeder over table. Entity types
// referenced by seeded data must be registered on it.
func NewSeedTestData(table *dynamodel.Table) *SeedTestData {
	return &SeedTestData{table: table}
}

// SeedEntity saves a single entity with its index and relation rows.
func (s *SeedTestData) SeedEntity(ctx context.Context, entity *dynamodel.Entity) error {
	if _, err := entity.Save(ctx); err != nil {
		return fmt.Errorf("failed to seed entity %s: %w", entity.Key(), err)
	}
	return nil
}

// SeedEntities seeds multiple entities into the table.
func (s *SeedTestData) SeedEntities(ctx context.Context, entities ...*dynamodel.Entity) error {
	for _, entity := range entities {
		if err := s.SeedEntity(ctx, entity); err != nil {
			return err
		}
	}
	return nil
}

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	Port             int
	SkipIfNotRunning bool
	TablePrefix      string
	IndexName        string // empty means dynamodel.DefaultIndexName
	CleanupTimeout   time.Duration
}

// DefaultIntegrationTestConfig returns a default configuration for integration tests.
func DefaultIntegrationTestConfig() *IntegrationTestConfig {
	return &IntegrationTestConfig{
		Port:             DefaultLocalPort,
		SkipIfNotRunning: true,
		TablePrefix:      "integration-test",
		CleanupTimeout:   30 * time.Second,
	}
}

// RunIntegrationTest creates a fresh table with the dynamodel layout on
// DynamoDB Local, runs fn and deletes the table when the test ends. A nil
// config uses DefaultIntegrationTestConfig.
func RunIntegrationTest(t *testing.T, config *IntegrationTestConfig, fn func(local *LocalDynamoDB, tableName string)) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if config == nil {
		config = DefaultIntegrationTestConfig()
	}

	local := NewLocalDynamoDB(config.Port)
	ctx := context.Background()
	if !local.IsAvailable(ctx) {
		if config.SkipIfNotRunning {
			t.Skipf("DynamoDB Local not available on port %d", config.Port)
		}
		t.Fatalf("DynamoDB Local not available on port %d", config.Port)
	}

	tableName := NewTestTable(config.TablePrefix)
	if err := local.CreateTable(ctx, tableName, config.IndexName); err != nil {
		t.Fatalf("Failed to create test table %s: %v", tableName, err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), config.CleanupTimeout)
		defer cancel()
		if err := local.DeleteTable(ctx, tableName); err != nil {
			t.Errorf("Failed to cleanup table %s: %v", tableName, err)
		}
	})

	fn(local, tableName)
}

// AssertTableExists verifies that a table exists.
func AssertTableExists(t testing.TB, client *dynamodb.Client, tableName string) {
	t.Helper()
	_, err := client.DescribeTable(context.Background(), &dynamodb.DescribeTableInput{
		TableName: &tableName,
	})
	if err != nil {
		t.Errorf("Table %s does not exist: %v", tableName, err)
	}
}

// AssertTableNotExists verifies that a table does not exist.
func AssertTableNotExists(t testing.TB, client *dynamodb.Client, tableName string) {
	t.Helper()
	_, err := client.DescribeTable(context.Background(), &dynamodb.DescribeTableInput{
		TableName: &tableName,
	})
	if err == nil {
		t.Errorf("Table %s should not exist but it does", tableName)
	}
}

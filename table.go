package dynamodel

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Reserved attribute names.
const (
	AttributeNameID        = "$id" // partition key: the entity key
	AttributeNameKey       = "$kt" // sort key: the formatted row key; GSI hash key
	AttributeNameSort      = "$sk" // GSI sort key
	AttributeNameFields    = "$sf" // included fields of index and relation rows
	AttributeNameSearch    = "$ss" // search tokens
	AttributeNameRelations = "$rl" // relation keys exposed by an index row
	AttributeNameVersion   = "$v"
	AttributeNameCreated   = "$ct"
	AttributeNameUpdated   = "$ut"
)

const (
	// DefaultIndexName is the name of the secondary index keyed by ($kt, $sk).
	DefaultIndexName = "gsi-index"
	// DefaultVersionSize is the zero padded width of version numbers.
	DefaultVersionSize = 6
)

// Clock returns the current time.
type Clock func() time.Time

// DefaultClock returns the current UTC time.
func DefaultClock() time.Time {
	return time.Now().UTC()
}

// Table binds a Store to the key layout and the registered entity types.
type Table struct {
	TableName            string     // Main table name
	IndexName            string     // Secondary index on ($kt, $sk). Default is "gsi-index".
	Separators           Separators // Key separators. Defaults to ":", "#", "$", "@".
	VersionSize          int        // Width of version numbers. Default is 6.
	ContinuationTokenKey string     // Secret for continuation tokens
	Tick                 Clock      // Time source for timestamps
	Logger               *Logger    // Defaults to a no-op logger
	Registry             *Registry  // Registered entity types
	IDGenerator          func() string
	Paginator            Paginator // Defaults to a TokenCodec keyed by ContinuationTokenKey

	store Store
	keys  *KeyCodec
}

// WithIndexName sets the secondary index name.
func WithIndexName(name string) func(*Table) {
	return func(t *Table) { t.IndexName = name }
}

// WithSeparators sets the key separators.
func WithSeparators(sep Separators) func(*Table) {
	return func(t *Table) { t.Separators = sep }
}

// WithVersionSize sets the width of version numbers.
func WithVersionSize(n int) func(*Table) {
	return func(t *Table) { t.VersionSize = n }
}

// WithContinuationTokenKey sets the continuation token secret.
func WithContinuationTokenKey(key string) func(*Table) {
	return func(t *Table) { t.ContinuationTokenKey = key }
}

// WithClock sets the time source.
func WithClock(tick Clock) func(*Table) {
	return func(t *Table) { t.Tick = tick }
}

// WithLogger sets the logger.
func WithLogger(l *Logger) func(*Table) {
	return func(t *Table) { t.Logger = l }
}

// WithRegistry shares an existing registry.
func WithRegistry(r *Registry) func(*Table) {
	return func(t *Table) { t.Registry = r }
}

// WithIDGenerator sets the function generating ids of new entities.
func WithIDGenerator(fn func() string) func(*Table) {
	return func(t *Table) { t.IDGenerator = fn }
}

// WithPaginator replaces the continuation token codec.
func WithPaginator(p Paginator) func(*Table) {
	return func(t *Table) { t.Paginator = p }
}

// NewTable creates a Table over store. Options are applied before the key
// and token codecs are built, so configuration fields should be set through
// them.
func NewTable(tableName string, store Store, opts ...func(*Table)) *Table {
	t := &Table{
		TableName:   tableName,
		IndexName:   DefaultIndexName,
		Separators:  DefaultSeparators(),
		VersionSize: DefaultVersionSize,
		Tick:        DefaultClock,
		IDGenerator: uuid.NewString,
		store:       store,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.Logger == nil {
		t.Logger = NoopLogger()
	}
	if t.Registry == nil {
		t.Registry = NewRegistry()
	}
	if t.Tick == nil {
		t.Tick = DefaultClock
	}
	if t.IDGenerator == nil {
		t.IDGenerator = uuid.NewString
	}
	if t.IndexName == "" {
		t.IndexName = DefaultIndexName
	}
	t.Separators = t.Separators.withDefaults()
	t.keys = NewKeyCodec(t.Separators, t.VersionSize)
	t.VersionSize = t.keys.versionSize
	if t.Paginator == nil {
		t.Paginator = NewTokenCodec(t.ContinuationTokenKey)
	}
	return t
}

// Store returns the table's storage collaborator.
func (t *Table) Store() Store { return t.store }

// Keys returns the table's key codec.
func (t *Table) Keys() *KeyCodec { return t.keys }

// Register declares an entity type and returns its model.
func (t *Table) Register(s Schema) (*Model, error) {
	schema, err := t.Registry.Register(s, t.Separators)
	if err != nil {
		return nil, fmt.Errorf("failed to register %q: %w", s.Type, err)
	}
	return &Model{table: t, schema: schema, log: t.Logger.WithType(schema.Type)}, nil
}

// MustRegister is like Register but panics on error.
func (t *Table) MustRegister(s Schema) *Model {
	m, err := t.Register(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Model returns the model of a registered type.
func (t *Table) Model(typ string) (*Model, error) {
	schema, ok := t.Registry.Schema(typ)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, typ)
	}
	return &Model{table: t, schema: schema, log: t.Logger.WithType(typ)}, nil
}

func (t *Table) now() time.Time { return t.Tick().UTC() }

package dynamodel

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/pelletier/go-toml/v2"
)

// Config is the file form of a table configuration.
//
//	table = "entities"
//	index = "gsi-index"
//	version_size = 6
//	continuation_token_key = "secret"
//	log_level = "debug"
//	log_format = "json"
//
//	[separators]
//	id = ":"
//
//	[aws]
//	region = "eu-west-1"
//	endpoint = "http://localhost:8000"
type Config struct {
	// Table is the DynamoDB table name. Required.
	Table string `toml:"table"`

	// Index is the secondary index on ($kt, $sk).
	// Default: "gsi-index"
	Index string `toml:"index"`

	// Separators override the key separators; empty ones keep their default.
	Separators Separators `toml:"separators"`

	// VersionSize is the zero padded width of version numbers.
	// Default: 6
	VersionSize int `toml:"version_size"`

	// ContinuationTokenKey is the secret continuation tokens are encrypted with.
	ContinuationTokenKey string `toml:"continuation_token_key"`

	// LogLevel is one of "debug", "info", "warn", "error" or "off".
	// Default: "off"
	LogLevel string `toml:"log_level"`

	// LogFormat is "text" or "json".
	// Default: "text"
	LogFormat string `toml:"log_format"`

	// Concurrency is the number of batch requests in flight.
	// Default: 4
	Concurrency int `toml:"concurrency"`

	// MaxAttempts bounds resubmission rounds of unprocessed batch items.
	// Default: 5
	MaxAttempts int `toml:"max_attempts"`

	AWS AWSConfig `toml:"aws"`
}

// AWSConfig holds client options.
type AWSConfig struct {
	Region   string `toml:"region"`
	Profile  string `toml:"profile"`
	Endpoint string `toml:"endpoint"` // e.g. DynamoDB Local
}

// DefaultConfig returns a configuration with every default filled in.
func DefaultConfig() Config {
	c := Config{}
	c.validate()
	return c
}

// validate fills defaults.
func (c *Config) validate() {
	if c.Index == "" {
		c.Index = DefaultIndexName
	}
	c.Separators = c.Separators.withDefaults()
	if c.VersionSize <= 0 {
		c.VersionSize = DefaultVersionSize
	}
	if c.LogLevel == "" {
		c.LogLevel = "off"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
}

// ParseConfig decodes a TOML document.
func ParseConfig(data []byte) (Config, error) {
	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	c.validate()
	if c.Table == "" {
		return Config{}, fmt.Errorf("failed to parse config: table is required")
	}
	return c, nil
}

// LoadConfig reads a TOML file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(data)
}

// Encode renders the configuration as TOML.
func (c Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

// Logger builds the configured logger.
func (c Config) Logger() *Logger {
	var level slog.Level
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return NoopLogger()
	}
	if strings.ToLower(c.LogFormat) == "json" {
		return NewJSONLogger(level)
	}
	return NewTextLogger(level)
}

// NewClient creates a DynamoDB client from the default credential chain
// and the configured AWS options.
func (c Config) NewClient(ctx context.Context) (*dynamodb.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if c.AWS.Region != "" {
		opts = append(opts, awsconfig.WithRegion(c.AWS.Region))
	}
	if c.AWS.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(c.AWS.Profile))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if c.AWS.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.AWS.Endpoint)
		}
	}), nil
}

// NewStore creates a DynamoStore over client with the configured limits.
func (c Config) NewStore(client DynamoDBClient) *DynamoStore {
	c.validate()
	return NewDynamoStore(client, c.Table, func(s *DynamoStore) {
		s.Concurrency = c.Concurrency
		s.MaxAttempts = c.MaxAttempts
	})
}

// NewTable creates a Table over store. Extra options are applied after the
// configured ones.
func (c Config) NewTable(store Store, opts ...func(*Table)) *Table {
	c.validate()
	base := []func(*Table){
		WithIndexName(c.Index),
		WithSeparators(c.Separators),
		WithVersionSize(c.VersionSize),
		WithContinuationTokenKey(c.ContinuationTokenKey),
		WithLogger(c.Logger()),
	}
	return NewTable(c.Table, store, append(base, opts...)...)
}

// Open creates a DynamoDB backed Table from the configuration.
func (c Config) Open(ctx context.Context, opts ...func(*Table)) (*Table, error) {
	client, err := c.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return c.NewTable(c.NewStore(client), opts...), nil
}

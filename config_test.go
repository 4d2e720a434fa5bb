package dynamodel

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
table = "entities"
index = "by-kind"
version_size = 4
continuation_token_key = "secret"
log_level = "debug"
log_format = "json"
concurrency = 8

[separators]
id = "/"

[aws]
region = "eu-west-1"
endpoint = "http://localhost:8000"
`

func TestParseConfig(t *testing.T) {
	c, err := ParseConfig([]byte(testConfig))
	require.NoError(t, err)

	assert.Equal(t, "entities", c.Table)
	assert.Equal(t, "by-kind", c.Index)
	assert.Equal(t, 4, c.VersionSize)
	assert.Equal(t, "secret", c.ContinuationTokenKey)
	assert.Equal(t, 8, c.Concurrency)
	assert.Equal(t, DefaultMaxAttempts, c.MaxAttempts)
	assert.Equal(t, Separators{ID: "/", Version: "#", Index: "$", Relation: "@"}, c.Separators)
	assert.Equal(t, "eu-west-1", c.AWS.Region)
	assert.Equal(t, "http://localhost:8000", c.AWS.Endpoint)
}

func TestParseConfig_Defaults(t *testing.T) {
	c, err := ParseConfig([]byte(`table = "entities"`))
	require.NoError(t, err)

	want := DefaultConfig()
	want.Table = "entities"
	assert.Equal(t, want, c)
	assert.Equal(t, DefaultIndexName, c.Index)
	assert.Equal(t, DefaultVersionSize, c.VersionSize)
	assert.Equal(t, "off", c.LogLevel)
}

func TestParseConfig_Errors(t *testing.T) {
	_, err := ParseConfig([]byte(`index = "x"`))
	assert.ErrorContains(t, err, "table is required")

	_, err = ParseConfig([]byte(`table = `))
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dynamodel.toml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))

	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "entities", c.Table)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorContains(t, err, "failed to read config")
}

func TestConfig_Encode(t *testing.T) {
	c, err := ParseConfig([]byte(testConfig))
	require.NoError(t, err)

	data, err := c.Encode()
	require.NoError(t, err)

	back, err := ParseConfig(data)
	require.NoError(t, err)
	assert.Equal(t, c, back)
}

func TestConfig_Logger(t *testing.T) {
	ctx := context.Background()
	levels := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for name, level := range levels {
		logger := Config{LogLevel: name}.Logger()
		assert.True(t, logger.Enabled(ctx, level), name)
		assert.False(t, logger.Enabled(ctx, level-1), name)
	}

	off := Config{LogLevel: "off"}.Logger()
	assert.False(t, off.Enabled(ctx, slog.LevelError))
}

func TestConfig_NewTable(t *testing.T) {
	c, err := ParseConfig([]byte(testConfig))
	require.NoError(t, err)

	table := c.NewTable(nil, WithIndexName("override"))
	assert.Equal(t, "entities", table.TableName)
	assert.Equal(t, "override", table.IndexName, "extra options win")
	assert.Equal(t, 4, table.VersionSize)
	assert.Equal(t, "User/1", table.Keys().EntityKey("User", "1"))
	assert.Equal(t, "User#0002", table.Keys().Format(KeySegments{Entity: "User", Version: 2}))

	store := c.NewStore(nil)
	assert.Equal(t, "entities", store.TableName)
	assert.Equal(t, 8, store.Concurrency)
	assert.Equal(t, DefaultMaxAttempts, store.MaxAttempts)
}

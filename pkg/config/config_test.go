package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	apperrors "idledata/pkg/errors"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "https://api.idle-mmo.com/v1", cfg.API.BaseURL)
	assert.Equal(t, "IdleData/0.0.1", cfg.API.UserAgent)
	assert.Equal(t, 3100*time.Millisecond, cfg.API.CallDelay)
	assert.Zero(t, cfg.API.Timeout)
	assert.Len(t, cfg.Harvest.Queries, 26)
	assert.Equal(t, "a", cfg.Harvest.Queries[0])
	assert.Equal(t, "z", cfg.Harvest.Queries[25])
	assert.Equal(t, "items", cfg.Harvest.ShardDir)
	assert.Equal(t, "items.json", cfg.Harvest.OutputFile)
	assert.Equal(t, time.Second, cfg.Harvest.QueryDelay)
	assert.Equal(t, 1000, cfg.Ingest.BatchSize)
	assert.Equal(t, []int{0}, cfg.Market.Tiers)
	assert.Equal(t, 100*time.Millisecond, cfg.Market.Debounce)
	assert.Equal(t, "market", cfg.Storage.Database)
	assert.Equal(t, "items", cfg.Storage.ItemsCollection)
	assert.Equal(t, "8080", cfg.Proxy.Port)
	assert.Equal(t, "idlemmo", cfg.Proxy.TokenPrefix)

	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("API_KEY", "idlemmo_plain")
	t.Setenv("MONGO_CONNECTION_STRING", "mongodb://localhost:27017")
	t.Setenv("IDLEDATA_STORAGE_DRIVER", "MONGO")
	t.Setenv("IDLEDATA_CALL_DELAY", "250ms")
	t.Setenv("IDLEDATA_BATCH_SIZE", "500")
	t.Setenv("IDLEDATA_TIERS", "0, 1,2")
	t.Setenv("PORT", "9090")
	t.Setenv("IDLEDATA_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "idlemmo_plain", cfg.API.APIKey)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Storage.MongoURI)
	assert.Equal(t, DriverMongo, cfg.Storage.Driver)
	assert.Equal(t, 250*time.Millisecond, cfg.API.CallDelay)
	assert.Equal(t, 500, cfg.Ingest.BatchSize)
	assert.Equal(t, []int{0, 1, 2}, cfg.Market.Tiers)
	assert.Equal(t, "9090", cfg.Proxy.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvPrefixedWins(t *testing.T) {
	t.Setenv("API_KEY", "idlemmo_plain")
	t.Setenv("IDLEDATA_API_KEY", "idlemmo_prefixed")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())
	assert.Equal(t, "idlemmo_prefixed", cfg.API.APIKey)
}

func TestLoadFromEnvInvalidValues(t *testing.T) {
	t.Setenv("IDLEDATA_CALL_DELAY", "soon")
	t.Setenv("IDLEDATA_BATCH_SIZE", "many")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IDLEDATA_CALL_DELAY")
	assert.Contains(t, err.Error(), "IDLEDATA_BATCH_SIZE")
}

func TestParseTiers(t *testing.T) {
	tiers, err := ParseTiers("3,1")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1}, tiers)

	_, err = ParseTiers("x")
	assert.Error(t, err)

	_, err = ParseTiers(" , ")
	assert.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
api:
  call_delay: 500ms
harvest:
  queries: [x, y]
  shard_dir: /tmp/shards
market:
  tiers: [0, 3]
storage:
  driver: mongo
  database: prices
logging:
  level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, 500*time.Millisecond, cfg.API.CallDelay)
	assert.Equal(t, []string{"x", "y"}, cfg.Harvest.Queries)
	assert.Equal(t, "/tmp/shards", cfg.Harvest.ShardDir)
	assert.Equal(t, []int{0, 3}, cfg.Market.Tiers)
	assert.Equal(t, DriverMongo, cfg.Storage.Driver)
	assert.Equal(t, "prices", cfg.Storage.Database)
	assert.Equal(t, "warn", cfg.Logging.Level)
	// untouched sections keep their defaults
	assert.Equal(t, 1000, cfg.Ingest.BatchSize)
	assert.Equal(t, "items.json", cfg.Harvest.OutputFile)
}

func TestLoadFromFileErrors(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")))

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api: [unterminated"), 0644))
	assert.Error(t, cfg.LoadFromFile(path))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name          string
		setup         func(*Config)
		errorContains []string
	}{
		{
			name:  "defaults",
			setup: func(cfg *Config) {},
		},
		{
			name: "bad pipeline settings",
			setup: func(cfg *Config) {
				cfg.Harvest.Queries = nil
				cfg.Ingest.BatchSize = 0
				cfg.Market.Tiers = []int{-1}
			},
			errorContains: []string{
				"at least one harvest query is required",
				"batch size must be positive",
				"tier -1 cannot be negative",
			},
		},
		{
			name: "bad storage and logging",
			setup: func(cfg *Config) {
				cfg.Storage.Driver = "sqlite"
				cfg.Logging.Level = "chatty"
				cfg.API.BaseURL = "not a url"
			},
			errorContains: []string{
				`unknown storage driver "sqlite"`,
				"invalid log level",
				"api base URL must be an absolute URL",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.setup(cfg)

			err := cfg.Validate()
			if len(tt.errorContains) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.errorContains {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestRequireAPIKey(t *testing.T) {
	cfg := DefaultConfig()

	err := cfg.RequireAPIKey()
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConfig))

	cfg.API.APIKey = "idlemmo_abc"
	assert.NoError(t, cfg.RequireAPIKey())
}

func TestRequireStore(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.RequireStore())

	cfg.Storage.Driver = DriverMongo
	err := cfg.RequireStore()
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConfig))
	assert.Contains(t, err.Error(), "MONGO_CONNECTION_STRING")

	cfg.Storage.MongoURI = "mongodb://localhost"
	assert.NoError(t, cfg.RequireStore())
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Harvest.QueryDelay = 2 * time.Second
	cfg.Market.Tiers = []int{0, 1}
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, cfg, loaded)
}

func TestDurationParsing(t *testing.T) {
	var cfg Config
	err := yaml.Unmarshal([]byte("api:\n  call_delay: 1m30s\nharvest:\n  query_delay: 750ms\n"), &cfg)
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.API.CallDelay)
	assert.Equal(t, 750*time.Millisecond, cfg.Harvest.QueryDelay)
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"api-key":    "idlemmo_flag",
		"batch-size": 250,
		"tiers":      []int{2},
		"store":      "Mongo",
		"port":       "",
		"call-delay": time.Duration(0),
		"queries":    []string{"q"},
	})

	assert.Equal(t, "idlemmo_flag", cfg.API.APIKey)
	assert.Equal(t, 250, cfg.Ingest.BatchSize)
	assert.Equal(t, []int{2}, cfg.Market.Tiers)
	assert.Equal(t, DriverMongo, cfg.Storage.Driver)
	assert.Equal(t, "8080", cfg.Proxy.Port)
	assert.Zero(t, cfg.API.CallDelay)
	assert.Equal(t, []string{"q"}, cfg.Harvest.Queries)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ingest:\n  batch_size: 10\nlogging:\n  level: error\n"), 0644))

	t.Setenv("HOME", dir)
	t.Setenv("IDLEDATA_LOG_LEVEL", "warn")

	cfg, err := Load(path, map[string]interface{}{"batch-size": 20})
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Ingest.BatchSize)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("IDLEDATA_STORAGE_DRIVER", "postgres")

	_, err := Load("", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
}

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
	apperrors "idledata/pkg/errors"
)

// Config holds every setting of the idledata pipelines and the proxy
type Config struct {
	API     APIConfig     `yaml:"api" json:"api"`
	Harvest HarvestConfig `yaml:"harvest" json:"harvest"`
	Ingest  IngestConfig  `yaml:"ingest" json:"ingest"`
	Market  MarketConfig  `yaml:"market" json:"market"`
	Storage StorageConfig `yaml:"storage" json:"storage"`
	Proxy   ProxyConfig   `yaml:"proxy" json:"proxy"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// APIConfig describes how the IdleMMO API is reached
type APIConfig struct {
	BaseURL   string `yaml:"base_url" json:"base_url"`
	APIKey    string `yaml:"api_key,omitempty" json:"-"`
	UserAgent string `yaml:"user_agent" json:"user_agent"`
	// CallDelay is slept after every successful call.
	CallDelay time.Duration `yaml:"call_delay" json:"call_delay"`
	// Timeout of zero means no client timeout.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// HarvestConfig controls the alphabet sweep and its on-disk artifacts
type HarvestConfig struct {
	Queries        []string      `yaml:"queries" json:"queries"`
	ShardDir       string        `yaml:"shard_dir" json:"shard_dir"`
	OutputFile     string        `yaml:"output_file" json:"output_file"`
	QueryDelay     time.Duration `yaml:"query_delay" json:"query_delay"`
	CheckpointFile string        `yaml:"checkpoint_file" json:"checkpoint_file"`
}

// IngestConfig controls the bulk load into the item store
type IngestConfig struct {
	BatchSize int `yaml:"batch_size" json:"batch_size"`
}

// MarketConfig controls market history sync and the overlay
type MarketConfig struct {
	Tiers     []int         `yaml:"tiers" json:"tiers"`
	ItemDelay time.Duration `yaml:"item_delay" json:"item_delay"`
	Debounce  time.Duration `yaml:"debounce" json:"debounce"`
}

// StorageConfig selects and locates the document store
type StorageConfig struct {
	Driver          string `yaml:"driver" json:"driver"`
	MongoURI        string `yaml:"mongo_uri,omitempty" json:"-"`
	Database        string `yaml:"database" json:"database"`
	ItemsCollection string `yaml:"items_collection" json:"items_collection"`
	BadgerPath      string `yaml:"badger_path" json:"badger_path"`
}

// ProxyConfig configures the CORS reverse proxy
type ProxyConfig struct {
	Port              string   `yaml:"port" json:"port"`
	Upstream          string   `yaml:"upstream" json:"upstream"`
	TokenPrefix       string   `yaml:"token_prefix" json:"token_prefix"`
	AllowedOrigins    []string `yaml:"allowed_origins" json:"allowed_origins"`
	RequestsPerMinute int      `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

const (
	DriverBadger = "badger"
	DriverMongo  = "mongo"
)

// Alphabet returns the single-letter queries a through z
func Alphabet() []string {
	letters := make([]string, 0, 26)
	for c := 'a'; c <= 'z'; c++ {
		letters = append(letters, string(c))
	}
	return letters
}

// DefaultConfig returns a Config matching the public API's expectations
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:   "https://api.idle-mmo.com/v1",
			UserAgent: "IdleData/0.0.1",
			CallDelay: 3100 * time.Millisecond,
		},
		Harvest: HarvestConfig{
			Queries:        Alphabet(),
			ShardDir:       "items",
			OutputFile:     "items.json",
			QueryDelay:     time.Second,
			CheckpointFile: filepath.Join(dataDir(), "harvest-checkpoint.json"),
		},
		Ingest: IngestConfig{
			BatchSize: 1000,
		},
		Market: MarketConfig{
			Tiers:    []int{0},
			Debounce: 100 * time.Millisecond,
		},
		Storage: StorageConfig{
			Driver:          DriverBadger,
			Database:        "market",
			ItemsCollection: "items",
			BadgerPath:      filepath.Join(dataDir(), "store"),
		},
		Proxy: ProxyConfig{
			Port:              "8080",
			Upstream:          "https://api.idle-mmo.com",
			TokenPrefix:       "idlemmo",
			AllowedOrigins:    []string{"*"},
			RequestsPerMinute: 120,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func dataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "idledata")
	}
	return filepath.Join(os.Getenv("HOME"), ".local", "share", "idledata")
}

// LoadFromEnv loads configuration from environment variables. The
// unprefixed API_KEY, MONGO_CONNECTION_STRING and PORT are honoured so
// existing deployments keep working.
func (c *Config) LoadFromEnv() error {
	var errs []error

	if key := firstEnv("IDLEDATA_API_KEY", "API_KEY"); key != "" {
		c.API.APIKey = key
	}
	if base := os.Getenv("IDLEDATA_BASE_URL"); base != "" {
		c.API.BaseURL = base
	}
	if ua := os.Getenv("IDLEDATA_USER_AGENT"); ua != "" {
		c.API.UserAgent = ua
	}
	if delay := os.Getenv("IDLEDATA_CALL_DELAY"); delay != "" {
		d, err := time.ParseDuration(delay)
		if err != nil {
			errs = append(errs, fmt.Errorf("IDLEDATA_CALL_DELAY: %w", err))
		} else {
			c.API.CallDelay = d
		}
	}

	if dir := os.Getenv("IDLEDATA_SHARD_DIR"); dir != "" {
		c.Harvest.ShardDir = dir
	}
	if out := os.Getenv("IDLEDATA_OUTPUT_FILE"); out != "" {
		c.Harvest.OutputFile = out
	}

	if batch := os.Getenv("IDLEDATA_BATCH_SIZE"); batch != "" {
		n, err := strconv.Atoi(batch)
		if err != nil {
			errs = append(errs, fmt.Errorf("IDLEDATA_BATCH_SIZE: %w", err))
		} else {
			c.Ingest.BatchSize = n
		}
	}

	if tiers := os.Getenv("IDLEDATA_TIERS"); tiers != "" {
		parsed, err := ParseTiers(tiers)
		if err != nil {
			errs = append(errs, fmt.Errorf("IDLEDATA_TIERS: %w", err))
		} else {
			c.Market.Tiers = parsed
		}
	}

	if driver := os.Getenv("IDLEDATA_STORAGE_DRIVER"); driver != "" {
		c.Storage.Driver = strings.ToLower(driver)
	}
	if uri := firstEnv("IDLEDATA_MONGO_URI", "MONGO_CONNECTION_STRING"); uri != "" {
		c.Storage.MongoURI = uri
	}
	if path := os.Getenv("IDLEDATA_BADGER_PATH"); path != "" {
		c.Storage.BadgerPath = path
	}

	if port := firstEnv("IDLEDATA_PORT", "PORT"); port != "" {
		c.Proxy.Port = port
	}
	if upstream := os.Getenv("IDLEDATA_PROXY_UPSTREAM"); upstream != "" {
		c.Proxy.Upstream = upstream
	}

	if level := os.Getenv("IDLEDATA_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if file := os.Getenv("IDLEDATA_LOG_FILE"); file != "" {
		c.Logging.File = file
	}

	return errors.Join(errs...)
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// ParseTiers parses a comma separated tier list such as "0,1,2"
func ParseTiers(s string) ([]int, error) {
	var tiers []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid tier %q", part)
		}
		tiers = append(tiers, n)
	}
	if len(tiers) == 0 {
		return nil, errors.New("no tiers given")
	}
	return tiers, nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".idledata.yaml",
		".idledata.yml",
		filepath.Join(home, ".config", "idledata", "config.yaml"),
		filepath.Join(home, ".config", "idledata", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// DefaultPath is where `config init` writes the file
func DefaultPath() string {
	return filepath.Join(os.Getenv("HOME"), ".config", "idledata", "config.yaml")
}

// Validate checks the structural settings. Credentials are checked by
// RequireAPIKey and RequireStore because not every command needs them.
func (c *Config) Validate() error {
	var errs []error

	if _, err := url.ParseRequestURI(c.API.BaseURL); err != nil {
		errs = append(errs, errors.New("api base URL must be an absolute URL"))
	}
	if c.API.UserAgent == "" {
		errs = append(errs, errors.New("user agent is required"))
	}
	if c.API.CallDelay < 0 {
		errs = append(errs, errors.New("call delay cannot be negative"))
	}

	if len(c.Harvest.Queries) == 0 {
		errs = append(errs, errors.New("at least one harvest query is required"))
	}
	if c.Harvest.ShardDir == "" {
		errs = append(errs, errors.New("shard directory is required"))
	}
	if c.Harvest.OutputFile == "" {
		errs = append(errs, errors.New("output file is required"))
	}
	if c.Harvest.QueryDelay < 0 {
		errs = append(errs, errors.New("query delay cannot be negative"))
	}

	if c.Ingest.BatchSize <= 0 {
		errs = append(errs, errors.New("batch size must be positive"))
	}

	if len(c.Market.Tiers) == 0 {
		errs = append(errs, errors.New("at least one market tier is required"))
	}
	for _, tier := range c.Market.Tiers {
		if tier < 0 {
			errs = append(errs, fmt.Errorf("tier %d cannot be negative", tier))
		}
	}

	switch c.Storage.Driver {
	case DriverBadger, DriverMongo:
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	if c.Storage.ItemsCollection == "" {
		errs = append(errs, errors.New("items collection is required"))
	}

	if c.Proxy.TokenPrefix == "" {
		errs = append(errs, errors.New("proxy token prefix is required"))
	}
	if _, err := url.ParseRequestURI(c.Proxy.Upstream); err != nil {
		errs = append(errs, errors.New("proxy upstream must be an absolute URL"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// RequireAPIKey fails when no API key was configured
func (c *Config) RequireAPIKey() error {
	if c.API.APIKey == "" {
		return apperrors.Config("API key is required (set API_KEY or run `idledata auth login`)")
	}
	return nil
}

// RequireStore fails when the selected storage driver is missing its location
func (c *Config) RequireStore() error {
	switch c.Storage.Driver {
	case DriverMongo:
		if c.Storage.MongoURI == "" {
			return apperrors.Config("MongoDB connection string is required (set MONGO_CONNECTION_STRING)")
		}
		if c.Storage.Database == "" {
			return apperrors.Config("MongoDB database name is required")
		}
	case DriverBadger:
		if c.Storage.BadgerPath == "" {
			return apperrors.Config("badger path is required")
		}
	default:
		return apperrors.Config("unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags applies flag values that were explicitly set
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["api-key"].(string); ok && v != "" {
		c.API.APIKey = v
	}
	if v, ok := flags["base-url"].(string); ok && v != "" {
		c.API.BaseURL = v
	}
	if v, ok := flags["call-delay"].(time.Duration); ok && v >= 0 {
		c.API.CallDelay = v
	}
	if v, ok := flags["shard-dir"].(string); ok && v != "" {
		c.Harvest.ShardDir = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Harvest.OutputFile = v
	}
	if v, ok := flags["queries"].([]string); ok && len(v) > 0 {
		c.Harvest.Queries = v
	}
	if v, ok := flags["batch-size"].(int); ok && v > 0 {
		c.Ingest.BatchSize = v
	}
	if v, ok := flags["tiers"].([]int); ok && len(v) > 0 {
		c.Market.Tiers = v
	}
	if v, ok := flags["store"].(string); ok && v != "" {
		c.Storage.Driver = strings.ToLower(v)
	}
	if v, ok := flags["mongo-uri"].(string); ok && v != "" {
		c.Storage.MongoURI = v
	}
	if v, ok := flags["badger-path"].(string); ok && v != "" {
		c.Storage.BadgerPath = v
	}
	if v, ok := flags["port"].(string); ok && v != "" {
		c.Proxy.Port = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["log-file"].(string); ok && v != "" {
		c.Logging.File = v
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: flags > environment > .env files > config file > defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".idledata.env"))

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg.MergeCommandLineFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

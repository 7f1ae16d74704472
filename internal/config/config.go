package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/paperdex/internal/chunker"
	"github.com/kailas-cloud/paperdex/internal/db"
)

// Config holds the paperdex configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Indexing  IndexingConfig  `yaml:"indexing"`
	Index     IndexConfig     `yaml:"index"`
	Search    SearchConfig    `yaml:"search"`
	Source    SourceConfig    `yaml:"source"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
	// MaxBatchPapers bounds POST /papers/index.
	MaxBatchPapers int `yaml:"max_batch_papers"`
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"` // empty = auth disabled
}

// DatabaseConfig holds Redis connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds the embedding provider and vectorization settings.
type EmbeddingConfig struct {
	Provider            string       `yaml:"provider"` // metrics label, e.g. "jina"
	APIKey              string       `yaml:"api_key"`
	BaseURL             string       `yaml:"base_url"`
	Model               string       `yaml:"model"`
	Dimensions          int          `yaml:"dimensions"`
	BatchSize           int          `yaml:"batch_size"`
	RateLimit           float64      `yaml:"rate_limit_rps"` // 0 = unlimited
	DocumentInstruction string       `yaml:"document_instruction"`
	QueryInstruction    string       `yaml:"query_instruction"`
	Cache               CacheConfig  `yaml:"cache"`
	Budget              BudgetConfig `yaml:"budget"`
}

// CacheConfig holds the persistent embedding cache settings.
type CacheConfig struct {
	Enabled  bool `yaml:"enabled"`
	TTLHours int  `yaml:"ttl_hours"` // 0 = keep forever
}

// BudgetConfig holds embedding token limits (0 = unlimited).
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"`
	Action            string `yaml:"action"` // "warn" (default) or "reject"
}

// Enabled reports whether any limit is configured.
func (b BudgetConfig) Enabled() bool {
	return b.DailyTokenLimit > 0 || b.MonthlyTokenLimit > 0
}

// ChunkingConfig holds chunk window sizes, in words.
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	OverlapSize  int `yaml:"overlap_size"`
	MinChunkSize int `yaml:"min_chunk_size"`
}

// Chunker converts the section into chunker parameters.
func (c ChunkingConfig) Chunker() chunker.Config {
	return chunker.Config{
		ChunkSize:    c.ChunkSize,
		OverlapSize:  c.OverlapSize,
		MinChunkSize: c.MinChunkSize,
	}
}

// IndexingConfig holds batch indexing settings.
type IndexingConfig struct {
	Concurrency     int  `yaml:"concurrency"`
	ReplaceExisting bool `yaml:"replace_existing"`
	WriteBatch      int  `yaml:"write_batch"`
}

// IndexConfig holds chunk index layout and HNSW settings.
type IndexConfig struct {
	KeyPrefix       string `yaml:"key_prefix"`
	DistanceMetric  string `yaml:"distance_metric"`
	Algorithm       string `yaml:"algorithm"`
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
	// Recreate drops and rebuilds the index on startup, e.g. after a dimension change.
	Recreate bool `yaml:"recreate"`
}

// SearchConfig holds search settings.
type SearchConfig struct {
	QueryCacheSize int `yaml:"query_cache_size"` // negative disables the cache
}

// SourceConfig holds paper source settings.
type SourceConfig struct {
	PDFMaxPages int `yaml:"pdf_max_pages"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes, defaults and validates a YAML configuration.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// индексация пачки статей занимает минуты
		c.HTTP.WriteTimeoutSec = 300
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxBatchPapers <= 0 {
		c.HTTP.MaxBatchPapers = 100
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "jina"
	}
	if c.Embedding.BaseURL == "" {
		c.Embedding.BaseURL = "https://api.jina.ai/v1"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "jina-embeddings-v3"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1024
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 50
	}
	if c.Chunking == (ChunkingConfig{}) {
		d := chunker.DefaultConfig()
		c.Chunking = ChunkingConfig{ChunkSize: d.ChunkSize, OverlapSize: d.OverlapSize, MinChunkSize: d.MinChunkSize}
	}
	if c.Indexing.Concurrency <= 0 {
		c.Indexing.Concurrency = 1
	}
	if c.Indexing.WriteBatch <= 0 {
		c.Indexing.WriteBatch = 500
	}
	if c.Index.KeyPrefix == "" {
		c.Index.KeyPrefix = "paperdex:"
	}
	if c.Index.DistanceMetric == "" {
		c.Index.DistanceMetric = "cosine"
	}
	if c.Index.Algorithm == "" {
		c.Index.Algorithm = "hnsw"
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.Search.QueryCacheSize == 0 {
		c.Search.QueryCacheSize = 1024
	}
	if c.Source.PDFMaxPages <= 0 {
		c.Source.PDFMaxPages = 30
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Embedding.BaseURL == "" {
		return fmt.Errorf("embedding.base_url is required")
	}
	if c.Embedding.RateLimit < 0 {
		return fmt.Errorf("embedding.rate_limit_rps must not be negative, got %g", c.Embedding.RateLimit)
	}
	if c.Embedding.Cache.TTLHours < 0 {
		return fmt.Errorf("embedding.cache.ttl_hours must not be negative, got %d", c.Embedding.Cache.TTLHours)
	}
	if c.Embedding.Budget.DailyTokenLimit < 0 || c.Embedding.Budget.MonthlyTokenLimit < 0 {
		return fmt.Errorf("embedding.budget limits must not be negative")
	}
	switch c.Embedding.Budget.Action {
	case "", "warn", "reject":
	default:
		return fmt.Errorf("embedding.budget.action must be warn or reject, got %q", c.Embedding.Budget.Action)
	}
	if err := c.Chunking.Chunker().Validate(); err != nil {
		return fmt.Errorf("chunking: %w", err)
	}
	if _, err := db.ParseDistance(c.Index.DistanceMetric); err != nil {
		return fmt.Errorf("index.distance_metric: %w", err)
	}
	if _, err := db.ParseAlgorithm(c.Index.Algorithm); err != nil {
		return fmt.Errorf("index.algorithm: %w", err)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}

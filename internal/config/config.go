package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete docindex configuration.
type Config struct {
	Version   int             `yaml:"version" json:"version"`
	Paths     PathsConfig     `yaml:"paths" json:"paths"`
	Workers   WorkersConfig   `yaml:"workers" json:"workers"`
	Chunking  ChunkingConfig  `yaml:"chunking" json:"chunking"`
	Cache     CacheConfig     `yaml:"cache" json:"cache"`
	Vector    VectorConfig    `yaml:"vector" json:"vector"`
	Keyword   KeywordConfig   `yaml:"keyword" json:"keyword"`
	Hybrid    HybridConfig    `yaml:"hybrid" json:"hybrid"`
	Timeouts  TimeoutsConfig  `yaml:"timeouts" json:"timeouts"`
	Queue     QueueConfig     `yaml:"queue" json:"queue"`
	Server    ServerConfig    `yaml:"server" json:"server"`
}

// PathsConfig configures where docindex keeps its persisted state and which
// sources it watches (spec.md §6 "Persisted state layout").
type PathsConfig struct {
	// DataDir is the root directory holding the logically distinct stores:
	// registry, queue, fingerprint store, artifact cache and intent log as
	// SQLite files directly inside it, and the vector and keyword stores in
	// their own subdirectories.
	DataDir string   `yaml:"data_dir" json:"data_dir"`
	Watch   []string `yaml:"watch" json:"watch"`
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// WorkersConfig configures the job-queue worker pool (spec.md §4.7).
type WorkersConfig struct {
	Count          int `yaml:"count" json:"count"`
	LeaseSeconds   int `yaml:"lease_seconds" json:"lease_seconds"`
	MaxAttempts    int `yaml:"max_attempts" json:"max_attempts"`
	PollIntervalMS int `yaml:"poll_interval_ms" json:"poll_interval_ms"`
}

// ChunkingConfig configures document chunking prior to extraction.
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap" json:"chunk_overlap"`
}

// CacheConfig configures the content-addressed artifact cache (spec.md §4.2).
type CacheConfig struct {
	// HotCapacity is the in-memory LRU tier size (entry count).
	HotCapacity int `yaml:"hot_capacity" json:"hot_capacity"`
	// TTLSeconds is stored and exposed through config get/set. The artifact
	// cache does not read it: lookups never expire an entry by age.
	TTLSeconds int `yaml:"ttl_seconds" json:"ttl_seconds"`
	// ExtractorVersion is folded into the cache key alongside the content
	// hash and prompt hash, so bumping it invalidates everything at once.
	ExtractorVersion string `yaml:"extractor_version" json:"extractor_version"`
}

// VectorConfig configures the dense vector adapter.
type VectorConfig struct {
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	M          int    `yaml:"m" json:"m"`          // HNSW graph degree
	EfSearch   int    `yaml:"ef_search" json:"ef_search"`
	Provider   string `yaml:"provider" json:"provider"`
}

// KeywordConfig configures the sparse BM25-style keyword adapter.
type KeywordConfig struct {
	K1 float64 `yaml:"k1" json:"k1"`
	B  float64 `yaml:"b" json:"b"`
}

// HybridConfig configures fusion between the vector and keyword adapters
// (spec.md §4.8).
type HybridConfig struct {
	// Method selects the fusion strategy: "rrf", "weighted", or "adaptive".
	Method string `yaml:"method" json:"method"`

	// RRFConstant is the RRF smoothing parameter k (industry default 60).
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// VectorWeight/KeywordWeight are used by the "weighted" method; must
	// sum to 1.0.
	VectorWeight  float64 `yaml:"vector_weight" json:"vector_weight"`
	KeywordWeight float64 `yaml:"keyword_weight" json:"keyword_weight"`

	// ConsensusBoost multiplies the fused score of a result appearing in
	// both ranked lists, under the "weighted" method.
	ConsensusBoost float64 `yaml:"consensus_boost" json:"consensus_boost"`

	MaxResults int `yaml:"max_results" json:"max_results"`
}

// TimeoutsConfig configures deadlines for bounded operations.
type TimeoutsConfig struct {
	// Base and PerPage are stored and exposed through config get/set. No
	// deadline is computed from them: the Ollama-backed keyword and pair
	// calls use Upstream as a fixed HTTP timeout, whatever the page count.
	Base     time.Duration `yaml:"base" json:"base"`
	PerPage  time.Duration `yaml:"per_page" json:"per_page"`
	Upstream time.Duration `yaml:"upstream" json:"upstream"`
}

// QueueConfig configures the durable job queue's housekeeping.
type QueueConfig struct {
	// IntentLogRetentionHours is the horizon after which Committed and
	// Cancelled intent-log records are dropped by compaction.
	IntentLogRetentionHours int `yaml:"intent_log_retention_hours" json:"intent_log_retention_hours"`
}

// ServerConfig configures the admin-facing surface (spec.md §6).
type ServerConfig struct {
	LogLevel string `yaml:"log_level" json:"log_level"`
	LogJSON  bool   `yaml:"log_json" json:"log_json"`
}

// defaultExcludePatterns are always excluded from source discovery.
var defaultExcludePatterns = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/.docindex/**",
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir: defaultDataDir(),
			Watch:   []string{},
			Exclude: defaultExcludePatterns,
		},
		Workers: WorkersConfig{
			Count:          runtime.NumCPU(),
			LeaseSeconds:   60,
			MaxAttempts:    5,
			PollIntervalMS: 250,
		},
		Chunking: ChunkingConfig{
			ChunkSize:    1500,
			ChunkOverlap: 200,
		},
		Cache: CacheConfig{
			HotCapacity:      2000,
			TTLSeconds:       0, // no TTL eviction by default; explicit clear only
			ExtractorVersion: "v1",
		},
		Vector: VectorConfig{
			Dimensions: 768,
			M:          16,
			EfSearch:   64,
			Provider:   "static",
		},
		Keyword: KeywordConfig{
			K1: 1.2,
			B:  0.75,
		},
		Hybrid: HybridConfig{
			Method:         "rrf",
			RRFConstant:    60,
			VectorWeight:   0.5,
			KeywordWeight:  0.5,
			ConsensusBoost: 1.1,
			MaxResults:     20,
		},
		Timeouts: TimeoutsConfig{
			Base:     5 * time.Second,
			PerPage:  500 * time.Millisecond,
			Upstream: 30 * time.Second,
		},
		Queue: QueueConfig{
			IntentLogRetentionHours: 72,
		},
		Server: ServerConfig{
			LogLevel: "info",
			LogJSON:  false,
		},
	}
}

// defaultDataDir returns the default state directory.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".docindex")
	}
	return filepath.Join(home, ".docindex")
}

// GetUserConfigPath returns the path to the user/global configuration file,
// following the XDG Base Directory convention.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "docindex", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "docindex", "config.yaml")
	}
	return filepath.Join(home, ".config", "docindex", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if it exists.
func loadUserConfig() (*Config, error) {
	path := GetUserConfigPath()
	if !fileExists(path) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", path, err)
	}
	return cfg, nil
}

// Load loads configuration from the specified directory, applying
// configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/docindex/config.yaml)
//  3. Project config (.docindex.yaml in dir)
//  4. Environment variables (DOCINDEX_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .docindex.yaml or
// .docindex.yml in dir.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".docindex.yaml")
	if fileExists(yamlPath) {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".docindex.yml")
	if fileExists(ymlPath) {
		return c.loadYAML(ymlPath)
	}

	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Paths.DataDir != "" {
		c.Paths.DataDir = other.Paths.DataDir
	}
	if len(other.Paths.Watch) > 0 {
		c.Paths.Watch = other.Paths.Watch
	}
	if len(other.Paths.Exclude) > 0 {
		c.Paths.Exclude = append(c.Paths.Exclude, other.Paths.Exclude...)
	}

	if other.Workers.Count != 0 {
		c.Workers.Count = other.Workers.Count
	}
	if other.Workers.LeaseSeconds != 0 {
		c.Workers.LeaseSeconds = other.Workers.LeaseSeconds
	}
	if other.Workers.MaxAttempts != 0 {
		c.Workers.MaxAttempts = other.Workers.MaxAttempts
	}
	if other.Workers.PollIntervalMS != 0 {
		c.Workers.PollIntervalMS = other.Workers.PollIntervalMS
	}

	if other.Chunking.ChunkSize != 0 {
		c.Chunking.ChunkSize = other.Chunking.ChunkSize
	}
	if other.Chunking.ChunkOverlap != 0 {
		c.Chunking.ChunkOverlap = other.Chunking.ChunkOverlap
	}

	if other.Cache.HotCapacity != 0 {
		c.Cache.HotCapacity = other.Cache.HotCapacity
	}
	if other.Cache.TTLSeconds != 0 {
		c.Cache.TTLSeconds = other.Cache.TTLSeconds
	}
	if other.Cache.ExtractorVersion != "" {
		c.Cache.ExtractorVersion = other.Cache.ExtractorVersion
	}

	if other.Vector.Dimensions != 0 {
		c.Vector.Dimensions = other.Vector.Dimensions
	}
	if other.Vector.M != 0 {
		c.Vector.M = other.Vector.M
	}
	if other.Vector.EfSearch != 0 {
		c.Vector.EfSearch = other.Vector.EfSearch
	}
	if other.Vector.Provider != "" {
		c.Vector.Provider = other.Vector.Provider
	}

	if other.Keyword.K1 != 0 {
		c.Keyword.K1 = other.Keyword.K1
	}
	if other.Keyword.B != 0 {
		c.Keyword.B = other.Keyword.B
	}

	if other.Hybrid.Method != "" {
		c.Hybrid.Method = other.Hybrid.Method
	}
	if other.Hybrid.RRFConstant != 0 {
		c.Hybrid.RRFConstant = other.Hybrid.RRFConstant
	}
	if other.Hybrid.VectorWeight != 0 {
		c.Hybrid.VectorWeight = other.Hybrid.VectorWeight
	}
	if other.Hybrid.KeywordWeight != 0 {
		c.Hybrid.KeywordWeight = other.Hybrid.KeywordWeight
	}
	if other.Hybrid.ConsensusBoost != 0 {
		c.Hybrid.ConsensusBoost = other.Hybrid.ConsensusBoost
	}
	if other.Hybrid.MaxResults != 0 {
		c.Hybrid.MaxResults = other.Hybrid.MaxResults
	}

	if other.Timeouts.Base != 0 {
		c.Timeouts.Base = other.Timeouts.Base
	}
	if other.Timeouts.PerPage != 0 {
		c.Timeouts.PerPage = other.Timeouts.PerPage
	}
	if other.Timeouts.Upstream != 0 {
		c.Timeouts.Upstream = other.Timeouts.Upstream
	}

	if other.Queue.IntentLogRetentionHours != 0 {
		c.Queue.IntentLogRetentionHours = other.Queue.IntentLogRetentionHours
	}

	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
	if other.Server.LogJSON {
		c.Server.LogJSON = other.Server.LogJSON
	}
}

// applyEnvOverrides applies DOCINDEX_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DOCINDEX_WORKERS_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Workers.Count = n
		}
	}
	if v := os.Getenv("DOCINDEX_HYBRID_METHOD"); v != "" {
		c.Hybrid.Method = v
	}
	if v := os.Getenv("DOCINDEX_HYBRID_VECTOR_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Hybrid.VectorWeight = w
		}
	}
	if v := os.Getenv("DOCINDEX_HYBRID_KEYWORD_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Hybrid.KeywordWeight = w
		}
	}
	if v := os.Getenv("DOCINDEX_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Hybrid.RRFConstant = k
		}
	}
	if v := os.Getenv("DOCINDEX_VECTOR_PROVIDER"); v != "" {
		c.Vector.Provider = v
	}
	if v := os.Getenv("DOCINDEX_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("DOCINDEX_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("DOCINDEX_LOG_JSON"); v != "" {
		c.Server.LogJSON = strings.ToLower(v) == "true" || v == "1"
	}
}

// parseFloat64 parses a string to float64.
func parseFloat64(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f)
	return f, err
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Hybrid.VectorWeight < 0 || c.Hybrid.VectorWeight > 1 {
		return fmt.Errorf("hybrid.vector_weight must be between 0 and 1, got %f", c.Hybrid.VectorWeight)
	}
	if c.Hybrid.KeywordWeight < 0 || c.Hybrid.KeywordWeight > 1 {
		return fmt.Errorf("hybrid.keyword_weight must be between 0 and 1, got %f", c.Hybrid.KeywordWeight)
	}

	if sum := c.Hybrid.VectorWeight + c.Hybrid.KeywordWeight; math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("hybrid.vector_weight + hybrid.keyword_weight must equal 1.0, got %.2f", sum)
	}

	if c.Hybrid.MaxResults < 0 {
		return fmt.Errorf("hybrid.max_results must be non-negative, got %d", c.Hybrid.MaxResults)
	}
	if c.Chunking.ChunkSize < 0 {
		return fmt.Errorf("chunking.chunk_size must be non-negative, got %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize && c.Chunking.ChunkSize > 0 {
		return fmt.Errorf("chunking.chunk_overlap must be non-negative and smaller than chunk_size")
	}

	validMethods := map[string]bool{"rrf": true, "weighted": true, "adaptive": true}
	if !validMethods[strings.ToLower(c.Hybrid.Method)] {
		return fmt.Errorf("hybrid.method must be 'rrf', 'weighted', or 'adaptive', got %s", c.Hybrid.Method)
	}

	if c.Vector.Dimensions <= 0 {
		return fmt.Errorf("vector.dimensions must be positive, got %d", c.Vector.Dimensions)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	if c.Workers.Count <= 0 {
		return fmt.Errorf("workers.count must be positive, got %d", c.Workers.Count)
	}
	if c.Workers.MaxAttempts <= 0 {
		return fmt.Errorf("workers.max_attempts must be positive, got %d", c.Workers.MaxAttempts)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadUserConfig loads the user configuration file, if any.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// Get returns the value of a dotted config key (e.g. "hybrid.method") as a
// string, for the admin `config get` verb.
func (c *Config) Get(key string) (string, bool) {
	fields := map[string]func() string{
		"paths.data_dir":                    func() string { return c.Paths.DataDir },
		"workers.count":                     func() string { return strconv.Itoa(c.Workers.Count) },
		"workers.lease_seconds":             func() string { return strconv.Itoa(c.Workers.LeaseSeconds) },
		"workers.max_attempts":              func() string { return strconv.Itoa(c.Workers.MaxAttempts) },
		"chunking.chunk_size":               func() string { return strconv.Itoa(c.Chunking.ChunkSize) },
		"chunking.chunk_overlap":            func() string { return strconv.Itoa(c.Chunking.ChunkOverlap) },
		"cache.hot_capacity":                func() string { return strconv.Itoa(c.Cache.HotCapacity) },
		"cache.ttl_seconds":                 func() string { return strconv.Itoa(c.Cache.TTLSeconds) },
		"vector.dimensions":                 func() string { return strconv.Itoa(c.Vector.Dimensions) },
		"vector.provider":                  func() string { return c.Vector.Provider },
		"hybrid.method":                     func() string { return c.Hybrid.Method },
		"hybrid.rrf_constant":               func() string { return strconv.Itoa(c.Hybrid.RRFConstant) },
		"hybrid.vector_weight":              func() string { return fmt.Sprintf("%.2f", c.Hybrid.VectorWeight) },
		"hybrid.keyword_weight":             func() string { return fmt.Sprintf("%.2f", c.Hybrid.KeywordWeight) },
		"hybrid.consensus_boost":            func() string { return fmt.Sprintf("%.2f", c.Hybrid.ConsensusBoost) },
		"hybrid.max_results":                func() string { return strconv.Itoa(c.Hybrid.MaxResults) },
		"timeouts.base":                     func() string { return c.Timeouts.Base.String() },
		"timeouts.per_page":                 func() string { return c.Timeouts.PerPage.String() },
		"timeouts.upstream":                 func() string { return c.Timeouts.Upstream.String() },
		"server.log_level":                  func() string { return c.Server.LogLevel },
	}

	f, ok := fields[key]
	if !ok {
		return "", false
	}
	return f(), true
}

// Set parses value and assigns it to the dotted config key, for the admin
// `config set` verb. Returns an error for an unknown key or a value that
// doesn't parse as the key's type.
func (c *Config) Set(key, value string) error {
	switch key {
	case "paths.data_dir":
		c.Paths.DataDir = value
	case "workers.count":
		return setInt(&c.Workers.Count, value)
	case "workers.lease_seconds":
		return setInt(&c.Workers.LeaseSeconds, value)
	case "workers.max_attempts":
		return setInt(&c.Workers.MaxAttempts, value)
	case "chunking.chunk_size":
		return setInt(&c.Chunking.ChunkSize, value)
	case "chunking.chunk_overlap":
		return setInt(&c.Chunking.ChunkOverlap, value)
	case "cache.hot_capacity":
		return setInt(&c.Cache.HotCapacity, value)
	case "cache.ttl_seconds":
		return setInt(&c.Cache.TTLSeconds, value)
	case "vector.dimensions":
		return setInt(&c.Vector.Dimensions, value)
	case "vector.provider":
		c.Vector.Provider = value
	case "hybrid.method":
		c.Hybrid.Method = value
	case "hybrid.rrf_constant":
		return setInt(&c.Hybrid.RRFConstant, value)
	case "hybrid.vector_weight":
		return setFloat(&c.Hybrid.VectorWeight, value)
	case "hybrid.keyword_weight":
		return setFloat(&c.Hybrid.KeywordWeight, value)
	case "hybrid.consensus_boost":
		return setFloat(&c.Hybrid.ConsensusBoost, value)
	case "hybrid.max_results":
		return setInt(&c.Hybrid.MaxResults, value)
	case "timeouts.base":
		return setDuration(&c.Timeouts.Base, value)
	case "timeouts.per_page":
		return setDuration(&c.Timeouts.PerPage, value)
	case "timeouts.upstream":
		return setDuration(&c.Timeouts.Upstream, value)
	case "server.log_level":
		c.Server.LogLevel = value
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}

func setInt(dst *int, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse int %q: %w", value, err)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, value string) error {
	f, err := parseFloat64(value)
	if err != nil {
		return fmt.Errorf("parse float %q: %w", value, err)
	}
	*dst = f
	return nil
}

func setDuration(dst *time.Duration, value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value, err)
	}
	*dst = d
	return nil
}

// Reset replaces every field with NewConfig's defaults, for the admin
// `config reset` verb.
func (c *Config) Reset() {
	*c = *NewConfig()
}

// ListKeys returns every known dotted config key, in Config field order, for the admin
// `config list` verb.
func (c *Config) ListKeys() []string {
	return []string{
		"paths.data_dir",
		"workers.count", "workers.lease_seconds", "workers.max_attempts",
		"chunking.chunk_size", "chunking.chunk_overlap",
		"cache.hot_capacity", "cache.ttl_seconds",
		"vector.dimensions", "vector.provider",
		"hybrid.method", "hybrid.rrf_constant", "hybrid.vector_weight",
		"hybrid.keyword_weight", "hybrid.consensus_boost", "hybrid.max_results",
		"timeouts.base", "timeouts.per_page", "timeouts.upstream",
		"server.log_level",
	}
}

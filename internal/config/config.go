package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ProjectType represents the type of project detected.
type ProjectType string

const (
	ProjectTypeGo      ProjectType = "go"
	ProjectTypeNode    ProjectType = "node"
	ProjectTypePython  ProjectType = "python"
	ProjectTypeUnknown ProjectType = "unknown"
)

// Config represents the complete codenavd configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Index      IndexConfig      `yaml:"index" json:"index"`
	Store      StoreConfig      `yaml:"store" json:"store"`
	Vector     VectorConfig     `yaml:"vector" json:"vector"`
	Extractor  ExtractorConfig  `yaml:"extractor" json:"extractor"`
	Embedding  EmbeddingConfig  `yaml:"embedding" json:"embedding"`
	Scoring    ScoringConfig    `yaml:"scoring" json:"scoring"`
	Cache      CacheConfig      `yaml:"cache" json:"cache"`
	Resources  ResourcesConfig  `yaml:"resources" json:"resources"`
	Budgets    BudgetsConfig    `yaml:"budgets" json:"budgets"`
	Server     ServerConfig     `yaml:"server" json:"server"`
	Submodules SubmoduleConfig  `yaml:"submodules" json:"submodules"`
}

// PathsConfig configures which paths to include and exclude from indexing.
type PathsConfig struct {
	Include []string `yaml:"include" json:"include"`
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// IndexConfig configures the crawler and file watcher (C7).
type IndexConfig struct {
	// MaxFileSize is the largest file, in bytes, eligible for indexing.
	MaxFileSize int64 `yaml:"max_file_size" json:"max_file_size"`
	// MaxFiles is loaded, merged and defaulted with the config, but the
	// crawler does not read it; no file-count cap is applied.
	MaxFiles int `yaml:"max_files" json:"max_files"`
	// Workers is the crawl/index worker pool size.
	Workers int `yaml:"workers" json:"workers"`
	// WatchDebounce coalesces bursts of filesystem events (duration string, e.g. "500ms").
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce"`
	// WatchQueueCapacity bounds the pending-event queue between the watcher and the indexer.
	WatchQueueCapacity int `yaml:"watch_queue_capacity" json:"watch_queue_capacity"`
	// MaxRetryAttempts is not read by the indexer: its C2->C3 retry loop is
	// capped by indexer.DefaultMaxRetryAttempts (6) whatever this is set to.
	MaxRetryAttempts int `yaml:"max_retry_attempts" json:"max_retry_attempts"`
	// RetryBaseDelay (duration string) is validated but not read by the
	// indexer, whose backoff base is indexer.DefaultRetryBaseDelay (2s).
	RetryBaseDelay string `yaml:"retry_base_delay" json:"retry_base_delay"`
}

// StoreConfig configures the structured relational store (C2).
type StoreConfig struct {
	// SQLiteCacheMB is a SQLite page cache size in MB. store.Open does not
	// read it; the store always sets a 64 MB page cache.
	SQLiteCacheMB int `yaml:"sqlite_cache_mb" json:"sqlite_cache_mb"`
}

// VectorConfig configures the vector index (C4), mirroring vectorindex.Config.
type VectorConfig struct {
	// Enabled turns semantic search on; requires a reachable embedding service.
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Dimensions must match the embedding service's advertised dimension.
	Dimensions int `yaml:"dimensions" json:"dimensions"`
	// Metric is the distance metric ("cos" or "l2").
	Metric string `yaml:"metric" json:"metric"`
	// M is the HNSW graph degree.
	M int `yaml:"m" json:"m"`
	// EfSearch is the HNSW search-time candidate-list size.
	EfSearch int `yaml:"ef_search" json:"ef_search"`
}

// ExtractorConfig configures the external symbol-extractor subprocess (spec §6).
type ExtractorConfig struct {
	// BinaryPath is the path to the `extract` executable.
	BinaryPath string `yaml:"binary_path" json:"binary_path"`
	// Timeout bounds a single file's extraction (duration string).
	Timeout string `yaml:"timeout" json:"timeout"`
}

// EmbeddingConfig configures the external embedding-service client (spec §6).
type EmbeddingConfig struct {
	// BaseURL is the embedding service's HTTP base, e.g. "http://127.0.0.1:8123".
	BaseURL string `yaml:"base_url" json:"base_url"`
	// Dimensions is the service's advertised embedding dimension.
	Dimensions int `yaml:"dimensions" json:"dimensions"`
	// Timeout bounds a single embed request (duration string).
	Timeout string `yaml:"timeout" json:"timeout"`
	// AvailabilityTTL caches reachability probes (duration string).
	AvailabilityTTL string `yaml:"availability_ttl" json:"availability_ttl"`
}

// ScoringConfig tunes the multi-factor scorer (C6, spec §4.6).
type ScoringConfig struct {
	// TestPathDeboost is applied to paths matching /tests?/, /spec/, /fixtures/.
	TestPathDeboost float64 `yaml:"test_path_deboost" json:"test_path_deboost"`
	// FilenameMatchBoost is applied when a query token appears in the filename stem.
	FilenameMatchBoost float64 `yaml:"filename_match_boost" json:"filename_match_boost"`
	// ExactMatchBoost is applied when the query phrase appears verbatim in content.
	ExactMatchBoost float64 `yaml:"exact_match_boost" json:"exact_match_boost"`
	// RecencyHalfLife is the half-life, in days, of the recency boost's decay curve.
	RecencyHalfLife float64 `yaml:"recency_half_life_days" json:"recency_half_life_days"`
	// RecencyBoostCap caps the maximum recency multiplier.
	RecencyBoostCap float64 `yaml:"recency_boost_cap" json:"recency_boost_cap"`
	// MockImplementationDeboost is applied to files dominated by mock/fake implementations
	// when the query names a type.
	MockImplementationDeboost float64 `yaml:"mock_implementation_deboost" json:"mock_implementation_deboost"`
}

// CacheConfig configures the response cache (C9).
type CacheConfig struct {
	// DefaultTTL is the cache entry lifetime for tools without an override (duration string).
	DefaultTTL string `yaml:"default_ttl" json:"default_ttl"`
	// HighPriorityTTL is used for responses with a large total-hit count.
	HighPriorityTTL string `yaml:"high_priority_ttl" json:"high_priority_ttl"`
	// MaxEntries sets the capacity of the cache's high-priority LRU segment;
	// the low-priority segment keeps the cache package's default capacity.
	MaxEntries int `yaml:"max_entries" json:"max_entries"`
}

// ResourcesConfig configures the overflow resource store (C10).
type ResourcesConfig struct {
	// Dir is where overflowed full result sets are persisted.
	Dir string `yaml:"dir" json:"dir"`
	// Expiration is how long an overflow resource remains fetchable (duration string).
	Expiration string `yaml:"expiration" json:"expiration"`
	// Compress gzip-compresses resources at rest.
	Compress bool `yaml:"compress" json:"compress"`
}

// BudgetsConfig configures default and per-tool token budgets for the response
// builder (C11/C12).
type BudgetsConfig struct {
	// DefaultMaxTokens is used when a tool call omits max_tokens.
	DefaultMaxTokens int `yaml:"default_max_tokens" json:"default_max_tokens"`
	// PerTool overrides DefaultMaxTokens for specific tool names.
	PerTool map[string]int `yaml:"per_tool" json:"per_tool"`
}

// ServerConfig configures the tool-protocol server.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	Port      int    `yaml:"port" json:"port"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// SubmoduleConfig configures git submodule discovery.
type SubmoduleConfig struct {
	// Enabled enables submodule discovery (default: false, opt-in).
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Recursive enables discovery of nested submodules (default: true).
	Recursive bool `yaml:"recursive" json:"recursive"`
	// Include specifies submodules to include (empty = all).
	Include []string `yaml:"include" json:"include"`
	// Exclude specifies submodules to exclude.
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// defaultExcludePatterns are always excluded.
var defaultExcludePatterns = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/build/**",
	"**/*.min.js",
	"**/*.min.css",
	"**/package-lock.json",
	"**/yarn.lock",
	"**/pnpm-lock.yaml",
	"**/go.sum",
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			Include: []string{},
			Exclude: defaultExcludePatterns,
		},
		Index: IndexConfig{
			MaxFileSize:        100 * 1024 * 1024,
			MaxFiles:           100000,
			Workers:            runtime.NumCPU(),
			WatchDebounce:      "500ms",
			WatchQueueCapacity: 4096,
			MaxRetryAttempts:   6,
			RetryBaseDelay:     "2s",
		},
		Store: StoreConfig{
			SQLiteCacheMB: 64,
		},
		Vector: VectorConfig{
			Enabled:    false, // opt-in: requires a reachable embedding service
			Dimensions: 0,     // 0 until an embedding service is configured
			Metric:     "cos",
			M:          16,
			EfSearch:   20,
		},
		Extractor: ExtractorConfig{
			BinaryPath: "extract",
			Timeout:    "10s",
		},
		Embedding: EmbeddingConfig{
			BaseURL:         "",
			Dimensions:      0,
			Timeout:         "30s",
			AvailabilityTTL: "30s",
		},
		Scoring: ScoringConfig{
			TestPathDeboost:           0.7,
			FilenameMatchBoost:        1.3,
			ExactMatchBoost:           1.5,
			RecencyHalfLife:           30,
			RecencyBoostCap:           1.2,
			MockImplementationDeboost: 0.6,
		},
		Cache: CacheConfig{
			DefaultTTL:      "5m",
			HighPriorityTTL: "15m",
			MaxEntries:      1000,
		},
		Resources: ResourcesConfig{
			Dir:        defaultResourcesPath(),
			Expiration: "1h",
			Compress:   true,
		},
		Budgets: BudgetsConfig{
			DefaultMaxTokens: 4000,
			PerTool:          map[string]int{},
		},
		Server: ServerConfig{
			Transport: "stdio",
			Port:      8765,
			LogLevel:  "info",
		},
		Submodules: SubmoduleConfig{
			Enabled:   false,
			Recursive: true,
			Include:   nil,
			Exclude:   nil,
		},
	}
}

// defaultResourcesPath returns the default overflow-resource storage directory.
func defaultResourcesPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".codenavd", "resources")
	}
	return filepath.Join(home, ".codenavd", "resources")
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/codenavd/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/codenavd/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "codenavd", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "codenavd", "config.yaml")
	}
	return filepath.Join(home, ".config", "codenavd", "config.yaml")
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
// Returns nil config and nil error if the file doesn't exist (that's OK).
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()

	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}

	return cfg, nil
}

// Load loads configuration from the specified directory.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/codenavd/config.yaml)
//  3. Project config (.codenavd.yaml in project root)
//  4. Environment variables (CODENAVD_*)
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

// loadFromFile attempts to load configuration from .codenavd.yaml or .codenavd.yml.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".codenavd.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".codenavd.yml")
	if _, err := os.Stat(ymlPath); err == nil {
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

	// Paths
	if len(other.Paths.Include) > 0 {
		c.Paths.Include = other.Paths.Include
	}
	if len(other.Paths.Exclude) > 0 {
		c.Paths.Exclude = append(c.Paths.Exclude, other.Paths.Exclude...)
	}

	// Index
	if other.Index.MaxFileSize != 0 {
		c.Index.MaxFileSize = other.Index.MaxFileSize
	}
	if other.Index.MaxFiles != 0 {
		c.Index.MaxFiles = other.Index.MaxFiles
	}
	if other.Index.Workers != 0 {
		c.Index.Workers = other.Index.Workers
	}
	if other.Index.WatchDebounce != "" {
		c.Index.WatchDebounce = other.Index.WatchDebounce
	}
	if other.Index.WatchQueueCapacity != 0 {
		c.Index.WatchQueueCapacity = other.Index.WatchQueueCapacity
	}
	if other.Index.MaxRetryAttempts != 0 {
		c.Index.MaxRetryAttempts = other.Index.MaxRetryAttempts
	}
	if other.Index.RetryBaseDelay != "" {
		c.Index.RetryBaseDelay = other.Index.RetryBaseDelay
	}

	// Store
	if other.Store.SQLiteCacheMB != 0 {
		c.Store.SQLiteCacheMB = other.Store.SQLiteCacheMB
	}

	// Vector
	if other.Vector.Enabled {
		c.Vector.Enabled = other.Vector.Enabled
	}
	if other.Vector.Dimensions != 0 {
		c.Vector.Dimensions = other.Vector.Dimensions
	}
	if other.Vector.Metric != "" {
		c.Vector.Metric = other.Vector.Metric
	}
	if other.Vector.M != 0 {
		c.Vector.M = other.Vector.M
	}
	if other.Vector.EfSearch != 0 {
		c.Vector.EfSearch = other.Vector.EfSearch
	}

	// Extractor
	if other.Extractor.BinaryPath != "" {
		c.Extractor.BinaryPath = other.Extractor.BinaryPath
	}
	if other.Extractor.Timeout != "" {
		c.Extractor.Timeout = other.Extractor.Timeout
	}

	// Embedding
	if other.Embedding.BaseURL != "" {
		c.Embedding.BaseURL = other.Embedding.BaseURL
	}
	if other.Embedding.Dimensions != 0 {
		c.Embedding.Dimensions = other.Embedding.Dimensions
	}
	if other.Embedding.Timeout != "" {
		c.Embedding.Timeout = other.Embedding.Timeout
	}
	if other.Embedding.AvailabilityTTL != "" {
		c.Embedding.AvailabilityTTL = other.Embedding.AvailabilityTTL
	}

	// Scoring
	if other.Scoring.TestPathDeboost != 0 {
		c.Scoring.TestPathDeboost = other.Scoring.TestPathDeboost
	}
	if other.Scoring.FilenameMatchBoost != 0 {
		c.Scoring.FilenameMatchBoost = other.Scoring.FilenameMatchBoost
	}
	if other.Scoring.ExactMatchBoost != 0 {
		c.Scoring.ExactMatchBoost = other.Scoring.ExactMatchBoost
	}
	if other.Scoring.RecencyHalfLife != 0 {
		c.Scoring.RecencyHalfLife = other.Scoring.RecencyHalfLife
	}
	if other.Scoring.RecencyBoostCap != 0 {
		c.Scoring.RecencyBoostCap = other.Scoring.RecencyBoostCap
	}
	if other.Scoring.MockImplementationDeboost != 0 {
		c.Scoring.MockImplementationDeboost = other.Scoring.MockImplementationDeboost
	}

	// Cache
	if other.Cache.DefaultTTL != "" {
		c.Cache.DefaultTTL = other.Cache.DefaultTTL
	}
	if other.Cache.HighPriorityTTL != "" {
		c.Cache.HighPriorityTTL = other.Cache.HighPriorityTTL
	}
	if other.Cache.MaxEntries != 0 {
		c.Cache.MaxEntries = other.Cache.MaxEntries
	}

	// Resources
	if other.Resources.Dir != "" {
		c.Resources.Dir = other.Resources.Dir
	}
	if other.Resources.Expiration != "" {
		c.Resources.Expiration = other.Resources.Expiration
	}
	if other.Resources.Compress {
		c.Resources.Compress = other.Resources.Compress
	}

	// Budgets
	if other.Budgets.DefaultMaxTokens != 0 {
		c.Budgets.DefaultMaxTokens = other.Budgets.DefaultMaxTokens
	}
	if len(other.Budgets.PerTool) > 0 {
		if c.Budgets.PerTool == nil {
			c.Budgets.PerTool = map[string]int{}
		}
		for tool, budget := range other.Budgets.PerTool {
			c.Budgets.PerTool[tool] = budget
		}
	}

	// Server
	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.Port != 0 {
		c.Server.Port = other.Server.Port
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}

	// Submodules
	if other.Submodules.Enabled {
		c.Submodules.Enabled = other.Submodules.Enabled
	}
	if len(other.Submodules.Include) > 0 || len(other.Submodules.Exclude) > 0 || other.Submodules.Enabled {
		c.Submodules.Recursive = other.Submodules.Recursive
	}
	if len(other.Submodules.Include) > 0 {
		c.Submodules.Include = other.Submodules.Include
	}
	if len(other.Submodules.Exclude) > 0 {
		c.Submodules.Exclude = other.Submodules.Exclude
	}
}

// applyEnvOverrides applies CODENAVD_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CODENAVD_INDEX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Index.Workers = n
		}
	}
	if v := os.Getenv("CODENAVD_WATCH_DEBOUNCE"); v != "" {
		c.Index.WatchDebounce = v
	}
	if v := os.Getenv("CODENAVD_EXTRACTOR_PATH"); v != "" {
		c.Extractor.BinaryPath = v
	}
	if v := os.Getenv("CODENAVD_EMBEDDING_URL"); v != "" {
		c.Embedding.BaseURL = v
	}
	// CODENAVD_EMBEDDER is an alias for CODENAVD_EMBEDDING_URL, kept for
	// operators migrating a single-flag deployment script.
	if v := os.Getenv("CODENAVD_EMBEDDER"); v != "" {
		c.Embedding.BaseURL = v
	}
	if v := os.Getenv("CODENAVD_EMBEDDING_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Embedding.Dimensions = n
			c.Vector.Dimensions = n
		}
	}
	if v := os.Getenv("CODENAVD_VECTOR_ENABLED"); v != "" {
		c.Vector.Enabled = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("CODENAVD_DEFAULT_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Budgets.DefaultMaxTokens = n
		}
	}
	if v := os.Getenv("CODENAVD_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("CODENAVD_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
	if v := os.Getenv("CODENAVD_CACHE_DEFAULT_TTL"); v != "" {
		c.Cache.DefaultTTL = v
	}
	if v := os.Getenv("CODENAVD_RESOURCES_DIR"); v != "" {
		c.Resources.Dir = v
	}
}

// DetectProjectType detects the project type based on marker files.
// Priority: go.mod > package.json > pyproject.toml/requirements.txt
func DetectProjectType(dir string) ProjectType {
	if fileExists(filepath.Join(dir, "go.mod")) {
		return ProjectTypeGo
	}

	if fileExists(filepath.Join(dir, "package.json")) {
		return ProjectTypeNode
	}

	if fileExists(filepath.Join(dir, "pyproject.toml")) ||
		fileExists(filepath.Join(dir, "requirements.txt")) {
		return ProjectTypePython
	}

	return ProjectTypeUnknown
}

// FindProjectRoot finds the project root directory.
// It looks for .git directory or .codenavd.yaml/.yml file by walking up the directory tree.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}

		if fileExists(filepath.Join(currentDir, ".codenavd.yaml")) ||
			fileExists(filepath.Join(currentDir, ".codenavd.yml")) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}

// DiscoverSourceDirs discovers common source directories in the project.
func DiscoverSourceDirs(dir string) []string {
	commonSourceDirs := []string{"src", "lib", "pkg", "internal", "cmd"}
	frameworkDirs := []string{"app", "pages"} // Next.js, etc.

	var found []string

	for _, d := range commonSourceDirs {
		if dirExists(filepath.Join(dir, d)) {
			found = append(found, d)
		}
	}

	if isNextJS(dir) {
		for _, d := range frameworkDirs {
			if dirExists(filepath.Join(dir, d)) {
				found = append(found, d)
			}
		}
	}

	return found
}

// DiscoverDocsDirs discovers documentation directories in the project.
func DiscoverDocsDirs(dir string) []string {
	commonDocDirs := []string{"docs", "doc"}
	commonDocFiles := []string{"README.md", "readme.md", "README.markdown"}

	var found []string

	for _, d := range commonDocDirs {
		if dirExists(filepath.Join(dir, d)) {
			found = append(found, d)
		}
	}

	for _, f := range commonDocFiles {
		if fileExists(filepath.Join(dir, f)) {
			found = append(found, f)
			break
		}
	}

	return found
}

// isNextJS checks if the project is a Next.js project.
func isNextJS(dir string) bool {
	pkgPath := filepath.Join(dir, "package.json")
	if !fileExists(pkgPath) {
		return false
	}

	data, err := os.ReadFile(pkgPath)
	if err != nil {
		return false
	}

	var pkg struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return false
	}

	_, hasNext := pkg.Dependencies["next"]
	_, hasNextDev := pkg.DevDependencies["next"]
	return hasNext || hasNextDev
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// dirExists checks if a directory exists.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// String returns a string representation of ProjectType.
func (p ProjectType) String() string {
	return string(p)
}

// IsKnown returns true if the project type is known (not unknown).
func (p ProjectType) IsKnown() bool {
	return p != ProjectTypeUnknown
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Index.MaxFileSize < 0 {
		return fmt.Errorf("index.max_file_size must be non-negative, got %d", c.Index.MaxFileSize)
	}
	if c.Index.Workers < 0 {
		return fmt.Errorf("index.workers must be non-negative, got %d", c.Index.Workers)
	}
	if _, err := time.ParseDuration(c.Index.WatchDebounce); err != nil {
		return fmt.Errorf("index.watch_debounce must be a valid duration, got %q: %w", c.Index.WatchDebounce, err)
	}
	if _, err := time.ParseDuration(c.Index.RetryBaseDelay); err != nil {
		return fmt.Errorf("index.retry_base_delay must be a valid duration, got %q: %w", c.Index.RetryBaseDelay, err)
	}

	if c.Vector.Enabled {
		if c.Vector.Dimensions <= 0 {
			return fmt.Errorf("vector.dimensions must be positive when vector.enabled is true, got %d", c.Vector.Dimensions)
		}
		validMetrics := map[string]bool{"cos": true, "l2": true}
		if !validMetrics[strings.ToLower(c.Vector.Metric)] {
			return fmt.Errorf("vector.metric must be 'cos' or 'l2', got %s", c.Vector.Metric)
		}
	}

	if _, err := time.ParseDuration(c.Extractor.Timeout); err != nil {
		return fmt.Errorf("extractor.timeout must be a valid duration, got %q: %w", c.Extractor.Timeout, err)
	}

	if _, err := time.ParseDuration(c.Embedding.Timeout); err != nil {
		return fmt.Errorf("embedding.timeout must be a valid duration, got %q: %w", c.Embedding.Timeout, err)
	}
	if _, err := time.ParseDuration(c.Embedding.AvailabilityTTL); err != nil {
		return fmt.Errorf("embedding.availability_ttl must be a valid duration, got %q: %w", c.Embedding.AvailabilityTTL, err)
	}

	if _, err := time.ParseDuration(c.Cache.DefaultTTL); err != nil {
		return fmt.Errorf("cache.default_ttl must be a valid duration, got %q: %w", c.Cache.DefaultTTL, err)
	}
	if _, err := time.ParseDuration(c.Cache.HighPriorityTTL); err != nil {
		return fmt.Errorf("cache.high_priority_ttl must be a valid duration, got %q: %w", c.Cache.HighPriorityTTL, err)
	}
	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("cache.max_entries must be non-negative, got %d", c.Cache.MaxEntries)
	}

	if _, err := time.ParseDuration(c.Resources.Expiration); err != nil {
		return fmt.Errorf("resources.expiration must be a valid duration, got %q: %w", c.Resources.Expiration, err)
	}

	if c.Budgets.DefaultMaxTokens <= 0 {
		return fmt.Errorf("budgets.default_max_tokens must be positive, got %d", c.Budgets.DefaultMaxTokens)
	}

	validTransports := map[string]bool{"stdio": true, "sse": true}
	if !validTransports[strings.ToLower(c.Server.Transport)] {
		return fmt.Errorf("server.transport must be 'stdio' or 'sse', got %s", c.Server.Transport)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
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

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// MergeNewDefaults adds new default fields while preserving existing values.
// Returns a list of field names that were added with their default values.
func (c *Config) MergeNewDefaults() []string {
	defaults := NewConfig()
	var added []string

	if c.Index.MaxRetryAttempts == 0 {
		c.Index.MaxRetryAttempts = defaults.Index.MaxRetryAttempts
		added = append(added, "index.max_retry_attempts")
	}
	if c.Index.RetryBaseDelay == "" {
		c.Index.RetryBaseDelay = defaults.Index.RetryBaseDelay
		added = append(added, "index.retry_base_delay")
	}
	if c.Index.WatchQueueCapacity == 0 {
		c.Index.WatchQueueCapacity = defaults.Index.WatchQueueCapacity
		added = append(added, "index.watch_queue_capacity")
	}

	if c.Vector.Metric == "" {
		c.Vector.Metric = defaults.Vector.Metric
		added = append(added, "vector.metric")
	}
	if c.Vector.M == 0 {
		c.Vector.M = defaults.Vector.M
		added = append(added, "vector.m")
	}
	if c.Vector.EfSearch == 0 {
		c.Vector.EfSearch = defaults.Vector.EfSearch
		added = append(added, "vector.ef_search")
	}

	if c.Extractor.BinaryPath == "" {
		c.Extractor.BinaryPath = defaults.Extractor.BinaryPath
		added = append(added, "extractor.binary_path")
	}
	if c.Extractor.Timeout == "" {
		c.Extractor.Timeout = defaults.Extractor.Timeout
		added = append(added, "extractor.timeout")
	}

	if c.Embedding.Timeout == "" {
		c.Embedding.Timeout = defaults.Embedding.Timeout
		added = append(added, "embedding.timeout")
	}
	if c.Embedding.AvailabilityTTL == "" {
		c.Embedding.AvailabilityTTL = defaults.Embedding.AvailabilityTTL
		added = append(added, "embedding.availability_ttl")
	}

	if c.Cache.DefaultTTL == "" {
		c.Cache.DefaultTTL = defaults.Cache.DefaultTTL
		added = append(added, "cache.default_ttl")
	}
	if c.Cache.HighPriorityTTL == "" {
		c.Cache.HighPriorityTTL = defaults.Cache.HighPriorityTTL
		added = append(added, "cache.high_priority_ttl")
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = defaults.Cache.MaxEntries
		added = append(added, "cache.max_entries")
	}

	if c.Resources.Dir == "" {
		c.Resources.Dir = defaults.Resources.Dir
		added = append(added, "resources.dir")
	}
	if c.Resources.Expiration == "" {
		c.Resources.Expiration = defaults.Resources.Expiration
		added = append(added, "resources.expiration")
	}

	if c.Budgets.DefaultMaxTokens == 0 {
		c.Budgets.DefaultMaxTokens = defaults.Budgets.DefaultMaxTokens
		added = append(added, "budgets.default_max_tokens")
	}

	return added
}

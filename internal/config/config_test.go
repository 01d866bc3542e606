package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Default configuration
// =============================================================================

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, 1, cfg.Version)

	assert.Equal(t, int64(100*1024*1024), cfg.Index.MaxFileSize)
	assert.Equal(t, 100000, cfg.Index.MaxFiles)
	assert.Equal(t, runtime.NumCPU(), cfg.Index.Workers)
	assert.Equal(t, "500ms", cfg.Index.WatchDebounce)
	assert.Equal(t, 6, cfg.Index.MaxRetryAttempts)
	assert.Equal(t, "2s", cfg.Index.RetryBaseDelay)

	assert.Equal(t, 64, cfg.Store.SQLiteCacheMB)

	assert.False(t, cfg.Vector.Enabled)
	assert.Equal(t, "cos", cfg.Vector.Metric)
	assert.Equal(t, 16, cfg.Vector.M)
	assert.Equal(t, 20, cfg.Vector.EfSearch)

	assert.Equal(t, "extract", cfg.Extractor.BinaryPath)
	assert.Equal(t, "10s", cfg.Extractor.Timeout)

	assert.Equal(t, "30s", cfg.Embedding.Timeout)
	assert.Equal(t, "30s", cfg.Embedding.AvailabilityTTL)

	assert.Equal(t, 1000, cfg.Cache.MaxEntries)
	assert.Equal(t, "5m", cfg.Cache.DefaultTTL)
	assert.Equal(t, "15m", cfg.Cache.HighPriorityTTL)

	assert.NotEmpty(t, cfg.Resources.Dir)
	assert.Contains(t, cfg.Resources.Dir, "resources")
	assert.True(t, cfg.Resources.Compress)

	assert.Equal(t, 4000, cfg.Budgets.DefaultMaxTokens)

	assert.Equal(t, "stdio", cfg.Server.Transport)
	assert.Equal(t, "info", cfg.Server.LogLevel)

	assert.False(t, cfg.Submodules.Enabled)
	assert.True(t, cfg.Submodules.Recursive)
}

func TestNewConfig_ExcludesCommonJunkPaths(t *testing.T) {
	cfg := NewConfig()
	assert.Contains(t, cfg.Paths.Exclude, "**/node_modules/**")
	assert.Contains(t, cfg.Paths.Exclude, "**/.git/**")
	assert.Contains(t, cfg.Paths.Exclude, "**/vendor/**")
}

func TestNewConfig_PassesValidation(t *testing.T) {
	cfg := NewConfig()
	assert.NoError(t, cfg.Validate())
}

// =============================================================================
// Validation
// =============================================================================

func TestValidate_RejectsBadWatchDebounce(t *testing.T) {
	cfg := NewConfig()
	cfg.Index.WatchDebounce = "not-a-duration"
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsVectorEnabledWithoutDimensions(t *testing.T) {
	cfg := NewConfig()
	cfg.Vector.Enabled = true
	cfg.Vector.Dimensions = 0
	assert.Error(t, cfg.Validate())
}

func TestValidate_AcceptsVectorEnabledWithDimensions(t *testing.T) {
	cfg := NewConfig()
	cfg.Vector.Enabled = true
	cfg.Vector.Dimensions = 768
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RejectsBadVectorMetric(t *testing.T) {
	cfg := NewConfig()
	cfg.Vector.Enabled = true
	cfg.Vector.Dimensions = 768
	cfg.Vector.Metric = "manhattan"
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsBadTransport(t *testing.T) {
	cfg := NewConfig()
	cfg.Server.Transport = "carrier-pigeon"
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsBadLogLevel(t *testing.T) {
	cfg := NewConfig()
	cfg.Server.LogLevel = "verbose"
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsNonPositiveDefaultMaxTokens(t *testing.T) {
	cfg := NewConfig()
	cfg.Budgets.DefaultMaxTokens = 0
	assert.Error(t, cfg.Validate())
}

// =============================================================================
// Project config file precedence
// =============================================================================

func TestLoad_AppliesProjectConfigOverDefaults(t *testing.T) {
	dir := t.TempDir()
	yamlContent := `
index:
  workers: 3
  watch_debounce: 750ms
vector:
  enabled: true
  dimensions: 384
server:
  log_level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".codenavd.yaml"), []byte(yamlContent), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Index.Workers)
	assert.Equal(t, "750ms", cfg.Index.WatchDebounce)
	assert.True(t, cfg.Vector.Enabled)
	assert.Equal(t, 384, cfg.Vector.Dimensions)
	assert.Equal(t, "debug", cfg.Server.LogLevel)

	// Untouched fields keep their defaults.
	assert.Equal(t, 64, cfg.Store.SQLiteCacheMB)
}

func TestLoad_NoProjectConfigUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, NewConfig().Index.MaxFiles, cfg.Index.MaxFiles)
}

func TestLoad_PrefersYamlOverYml(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".codenavd.yaml"), []byte("server:\n  log_level: debug\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".codenavd.yml"), []byte("server:\n  log_level: error\n"), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
}

func TestLoad_RejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".codenavd.yaml"), []byte("server:\n  transport: carrier-pigeon\n"), 0644))

	_, err := Load(dir)
	assert.Error(t, err)
}

// =============================================================================
// Environment variable overrides
// =============================================================================

func TestApplyEnvOverrides_OverridesIndexWorkers(t *testing.T) {
	cfg := NewConfig()
	t.Setenv("CODENAVD_INDEX_WORKERS", "7")
	cfg.applyEnvOverrides()
	assert.Equal(t, 7, cfg.Index.Workers)
}

func TestApplyEnvOverrides_OverridesEmbeddingURL(t *testing.T) {
	cfg := NewConfig()
	t.Setenv("CODENAVD_EMBEDDING_URL", "http://127.0.0.1:9000")
	cfg.applyEnvOverrides()
	assert.Equal(t, "http://127.0.0.1:9000", cfg.Embedding.BaseURL)
}

func TestApplyEnvOverrides_SettingDimensionsAlsoSetsVectorDimensions(t *testing.T) {
	cfg := NewConfig()
	t.Setenv("CODENAVD_EMBEDDING_DIMENSIONS", "512")
	cfg.applyEnvOverrides()
	assert.Equal(t, 512, cfg.Embedding.Dimensions)
	assert.Equal(t, 512, cfg.Vector.Dimensions)
}

func TestApplyEnvOverrides_VectorEnabledBoolParsing(t *testing.T) {
	cfg := NewConfig()
	t.Setenv("CODENAVD_VECTOR_ENABLED", "true")
	cfg.applyEnvOverrides()
	assert.True(t, cfg.Vector.Enabled)
}

func TestApplyEnvOverrides_TakesPrecedenceOverProjectConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".codenavd.yaml"), []byte("server:\n  log_level: debug\n"), 0644))
	t.Setenv("CODENAVD_LOG_LEVEL", "error")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Server.LogLevel)
}

// =============================================================================
// YAML round-trip
// =============================================================================

func TestWriteYAML_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := NewConfig()
	cfg.Index.Workers = 9
	cfg.Vector.Enabled = true
	cfg.Vector.Dimensions = 256
	require.NoError(t, cfg.WriteYAML(path))

	parsed := NewConfig()
	require.NoError(t, parsed.loadYAML(path))

	assert.Equal(t, 9, parsed.Index.Workers)
	assert.True(t, parsed.Vector.Enabled)
	assert.Equal(t, 256, parsed.Vector.Dimensions)
}

// =============================================================================
// MergeNewDefaults
// =============================================================================

func TestMergeNewDefaults_FillsMissingFieldsOnly(t *testing.T) {
	cfg := &Config{
		Index: IndexConfig{Workers: 2},
	}
	added := cfg.MergeNewDefaults()

	assert.Equal(t, 2, cfg.Index.Workers, "pre-existing value must survive")
	assert.Contains(t, added, "index.max_retry_attempts")
	assert.Contains(t, added, "vector.metric")
	assert.Contains(t, added, "cache.default_ttl")
	assert.Equal(t, NewConfig().Index.MaxRetryAttempts, cfg.Index.MaxRetryAttempts)
}

func TestMergeNewDefaults_IsIdempotent(t *testing.T) {
	cfg := NewConfig()
	added := cfg.MergeNewDefaults()
	assert.Empty(t, added)
}

// =============================================================================
// Project detection and discovery
// =============================================================================

func TestDetectProjectType_Go(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/x\n"), 0644))
	assert.Equal(t, ProjectTypeGo, DetectProjectType(dir))
}

func TestDetectProjectType_Unknown(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, ProjectTypeUnknown, DetectProjectType(dir))
}

func TestFindProjectRoot_FindsGitDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0755))
	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	root, err := FindProjectRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, dir, root)
}

func TestDiscoverSourceDirs_FindsCommonDirs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "internal"), 0755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "cmd"), 0755))

	found := DiscoverSourceDirs(dir)
	assert.Contains(t, found, "internal")
	assert.Contains(t, found, "cmd")
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := LoadFromFile("")
	require.NoError(t, err)

	assert.InDelta(t, 0.7, cfg.Matching.MinConfidence, 1e-9)
	assert.InDelta(t, 0.85, cfg.Matching.LearnThreshold, 1e-9)
	assert.True(t, cfg.Matching.Learn)
	assert.Equal(t, 4, cfg.Matching.Workers)
	assert.Equal(t, "cgr.dev/chainguard-private", cfg.Registry.Target)
	assert.True(t, cfg.Upstream.Enabled)
	assert.False(t, cfg.Oracle.Enabled)
	assert.Equal(t, "claude-sonnet-4-5", cfg.Oracle.Model)
	assert.Equal(t, "config/image_mappings.yaml", cfg.Mappings.ManualFile)
	assert.Equal(t, 24, cfg.Mappings.MaxAgeHours)
	assert.Equal(t, "text", cfg.Output.Format)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gauge.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[matching]
min-confidence = 0.8
workers = 8

[registry]
target = "cgr.dev/acme"

[oracle]
enabled = true
model = "claude-opus-4"
`), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, cfg.Matching.MinConfidence, 1e-9)
	assert.Equal(t, 8, cfg.Matching.Workers)
	assert.Equal(t, "cgr.dev/acme", cfg.Registry.Target)
	assert.True(t, cfg.Oracle.Enabled)
	assert.Equal(t, "claude-opus-4", cfg.Oracle.Model)
	// Untouched keys keep their defaults.
	assert.InDelta(t, 0.85, cfg.Matching.LearnThreshold, 1e-9)
	assert.Equal(t, path, cfg.ConfigFile)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GAUGE_ORACLE_MODEL", "claude-haiku-4")
	t.Setenv("GAUGE_MATCHING_MIN_CONFIDENCE", "0.9")
	t.Setenv("GAUGE_REGISTRY_TARGET", "cgr.dev/other")
	// Unknown top-level keys are ignored.
	t.Setenv("GAUGE_BOGUS_KEY", "x")

	cfg, err := LoadFromFile("")
	require.NoError(t, err)
	assert.Equal(t, "claude-haiku-4", cfg.Oracle.Model)
	assert.InDelta(t, 0.9, cfg.Matching.MinConfidence, 1e-9)
	assert.Equal(t, "cgr.dev/other", cfg.Registry.Target)
}

func TestEnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".gauge.toml")
	require.NoError(t, os.WriteFile(path, []byte("[oracle]\nmodel = \"from-file\"\n"), 0o644))
	t.Setenv("GAUGE_ORACLE_MODEL", "from-env")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Oracle.Model)
}

func TestDiscoverWalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	configPath := filepath.Join(root, ".gauge.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(""), 0o644))

	assert.Equal(t, configPath, Discover(nested))
}

func TestDiscoverPrefersDotfile(t *testing.T) {
	dir := t.TempDir()
	dot := filepath.Join(dir, ".gauge.toml")
	plain := filepath.Join(dir, "gauge.toml")
	require.NoError(t, os.WriteFile(dot, []byte(""), 0o644))
	require.NoError(t, os.WriteFile(plain, []byte(""), 0o644))

	assert.Equal(t, dot, Discover(dir))
}

func TestResolveCacheDirOverride(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	cfg := Default()
	cfg.CacheDir = dir

	got, err := cfg.ResolveCacheDir()
	require.NoError(t, err)
	assert.Equal(t, dir, got)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

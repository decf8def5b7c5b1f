// Package config provides configuration loading and discovery for gauge.
//
// Configuration is loaded from multiple sources with the following priority
// (highest to lowest):
//  1. CLI flags
//  2. Environment variables (GAUGE_* prefix)
//  3. Config file (closest .gauge.toml or gauge.toml)
//  4. Built-in defaults
//
// Config file discovery walks up the filesystem from the working directory
// until a config file is found. The closest config wins (no merging).
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigFileNames defines the config file names to search for, in priority order.
var ConfigFileNames = []string{".gauge.toml", "gauge.toml"}

// EnvPrefix is the prefix for environment variables.
const EnvPrefix = "GAUGE_"

// Config represents the complete gauge configuration.
type Config struct {
	// Matching controls the tier cascade thresholds and the learner.
	Matching MatchingConfig `json:"matching" koanf:"matching"`

	// Registry configures the target registry and the catalog fast path.
	Registry RegistryConfig `json:"registry" koanf:"registry"`

	// Upstream configures public-upstream discovery for private images.
	Upstream UpstreamConfig `json:"upstream" koanf:"upstream"`

	// Oracle configures the LLM matching tier.
	Oracle OracleConfig `json:"oracle" koanf:"oracle"`

	// Mappings configures the community and manual mapping tables.
	Mappings MappingsConfig `json:"mappings" koanf:"mappings"`

	// Output configures report format and destinations.
	Output OutputConfig `json:"output" koanf:"output"`

	// CacheDir overrides the cache location (oracle cache, community table,
	// scan reports). Empty selects the user cache directory.
	CacheDir string `json:"cache-dir,omitempty" koanf:"cache-dir"`

	// ConfigFile is the path to the config file that was loaded (if any).
	// This is metadata, not loaded from config.
	ConfigFile string `json:"-" koanf:"-"`
}

// MatchingConfig controls the tier cascade and learning behavior.
//
// Example TOML configuration:
//
//	[matching]
//	min-confidence = 0.7
//	learn = true
//	workers = 4
type MatchingConfig struct {
	// MinConfidence is the usability threshold applied to tier results.
	MinConfidence float64 `json:"min-confidence,omitempty" koanf:"min-confidence"`

	// LearnThreshold is the minimum confidence for promoting heuristic and
	// oracle results into the manual table.
	LearnThreshold float64 `json:"learn-threshold,omitempty" koanf:"learn-threshold"`

	// Learn enables promotion of successful matches into the manual table.
	Learn bool `json:"learn,omitempty" koanf:"learn"`

	// Workers is the number of concurrent match calls in batch runs.
	Workers int `json:"workers,omitempty" koanf:"workers"`
}

// RegistryConfig configures registries and existence checking.
type RegistryConfig struct {
	// Target is the registry/namespace matched targets resolve under.
	Target string `json:"target,omitempty" koanf:"target"`

	// CatalogEndpoint is an optional metadata API for fast existence
	// lookups; empty falls back to manifest probes only.
	CatalogEndpoint string `json:"catalog-endpoint,omitempty" koanf:"catalog-endpoint"`

	// CatalogToken authenticates catalog lookups.
	CatalogToken string `json:"catalog-token,omitempty" koanf:"catalog-token"`
}

// UpstreamConfig configures public-upstream discovery.
type UpstreamConfig struct {
	// Enabled toggles upstream discovery before the heuristic tiers.
	Enabled bool `json:"enabled,omitempty" koanf:"enabled"`

	// MinConfidence is the floor a discovery strategy must clear.
	MinConfidence float64 `json:"min-confidence,omitempty" koanf:"min-confidence"`

	// AllowUnverified enables the best-guess registry-strip fallback.
	AllowUnverified bool `json:"allow-unverified,omitempty" koanf:"allow-unverified"`

	// ManualFile is an optional override table mapping private images
	// straight to their public upstreams.
	ManualFile string `json:"manual-file,omitempty" koanf:"manual-file"`
}

// OracleConfig configures the LLM matching tier.
//
// Example TOML configuration:
//
//	[oracle]
//	enabled = true
//	model = "claude-sonnet-4-5"
//	threshold = 0.7
type OracleConfig struct {
	// Enabled toggles the oracle tier. Disabled by default.
	Enabled bool `json:"enabled,omitempty" koanf:"enabled"`

	// Model is the completion model identifier; it is part of the oracle
	// cache key.
	Model string `json:"model,omitempty" koanf:"model"`

	// APIKey authenticates oracle calls; empty falls back to the
	// ANTHROPIC_API_KEY environment variable.
	APIKey string `json:"api-key,omitempty" koanf:"api-key"`

	// Threshold is the minimum self-reported confidence the engine accepts.
	Threshold float64 `json:"threshold,omitempty" koanf:"threshold"`
}

// MappingsConfig configures the mapping tables.
type MappingsConfig struct {
	// CommunityURL overrides the remote community table location.
	CommunityURL string `json:"community-url,omitempty" koanf:"community-url"`

	// CommunityFile uses a local community table instead of fetching.
	CommunityFile string `json:"community-file,omitempty" koanf:"community-file"`

	// ManualFile is the local manual override table.
	ManualFile string `json:"manual-file,omitempty" koanf:"manual-file"`

	// MaxAgeHours is the community cache TTL.
	MaxAgeHours int `json:"max-age-hours,omitempty" koanf:"max-age-hours"`
}

// OutputConfig configures report output.
type OutputConfig struct {
	// Format specifies the output format (text, csv, json, markdown).
	Format string `json:"format,omitempty" koanf:"format"`

	// Path specifies where to write output ("stdout" or a file path).
	Path string `json:"path,omitempty" koanf:"path"`

	// UnmatchedPath writes the unmatched-image list to a separate file.
	UnmatchedPath string `json:"unmatched-path,omitempty" koanf:"unmatched-path"`

	// SuggestDir, when set, receives contribution-ready community mapping
	// suggestions learned during the run.
	SuggestDir string `json:"suggest-dir,omitempty" koanf:"suggest-dir"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Matching: MatchingConfig{
			MinConfidence:  0.7,
			LearnThreshold: 0.85,
			Learn:          true,
			Workers:        4,
		},
		Registry: RegistryConfig{
			Target: "cgr.dev/chainguard-private",
		},
		Upstream: UpstreamConfig{
			Enabled:       true,
			MinConfidence: 0.7,
		},
		Oracle: OracleConfig{
			Enabled:   false,
			Model:     "claude-sonnet-4-5",
			Threshold: 0.7,
		},
		Mappings: MappingsConfig{
			ManualFile:  "config/image_mappings.yaml",
			MaxAgeHours: 24,
		},
		Output: OutputConfig{
			Format: "text",
			Path:   "stdout",
		},
	}
}

// Load loads configuration starting discovery from the working directory.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return loadWithConfigPath(Discover(cwd))
}

// LoadFromFile loads configuration from a specific config file path.
// Unlike Load, it does not perform config discovery.
func LoadFromFile(configPath string) (*Config, error) {
	return loadWithConfigPath(configPath)
}

func loadWithConfigPath(configPath string) (*Config, error) {
	k := koanf.New(".")

	// 1. Load defaults
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, err
	}

	// 2. Load config file if provided
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, err
		}
	}

	// 3. Load environment variables (GAUGE_* prefix)
	// GAUGE_MATCHING_MIN_CONFIDENCE -> matching.min-confidence
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envKeyTransform,
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	cfg.ConfigFile = configPath
	return &cfg, nil
}

// ResolveCacheDir returns the effective cache directory, creating it.
func (c *Config) ResolveCacheDir() (string, error) {
	dir := c.CacheDir
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(base, "gauge")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// knownHyphenatedKeys maps dot-separated patterns to their hyphenated
// equivalents for env var translation.
var knownHyphenatedKeys = map[string]string{
	"min.confidence":   "min-confidence",
	"learn.threshold":  "learn-threshold",
	"allow.unverified": "allow-unverified",
	"api.key":          "api-key",
	"community.url":    "community-url",
	"community.file":   "community-file",
	"manual.file":      "manual-file",
	"max.age.hours":    "max-age-hours",
	"catalog.endpoint": "catalog-endpoint",
	"catalog.token":    "catalog-token",
	"unmatched.path":   "unmatched-path",
	"suggest.dir":      "suggest-dir",
	"cache.dir":        "cache-dir",
}

var allowedEnvTopLevelKeys = map[string]struct{}{
	"matching":  {},
	"registry":  {},
	"upstream":  {},
	"oracle":    {},
	"mappings":  {},
	"output":    {},
	"cache-dir": {},
}

// envKeyTransform converts environment variable names to config keys.
// GAUGE_ORACLE_MODEL -> oracle.model
// GAUGE_MATCHING_MIN_CONFIDENCE -> matching.min-confidence
func envKeyTransform(k, v string) (string, any) {
	s := strings.TrimPrefix(k, EnvPrefix)
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "_", ".")
	for pattern, replacement := range knownHyphenatedKeys {
		s = strings.ReplaceAll(s, pattern, replacement)
	}

	topLevel := s
	if before, _, ok := strings.Cut(s, "."); ok {
		topLevel = before
	}
	if _, ok := allowedEnvTopLevelKeys[topLevel]; !ok {
		return "", nil
	}

	return s, v
}

// Discover finds the closest config file for a starting directory.
// It walks up the directory tree, checking for config files at each level.
// Returns empty string if no config file is found.
func Discover(startDir string) string {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return ""
	}

	for {
		for _, name := range ConfigFileNames {
			configPath := filepath.Join(dir, name)
			if fileExists(configPath) {
				return configPath
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/wharflab/gauge/internal/config"
)

// runMatchFlags parses args through the match command's flag set and hands
// the parsed command to fn instead of running the pipeline.
func runMatchFlags(t *testing.T, args []string, fn func(cmd *cli.Command)) {
	t.Helper()

	mc := matchCommand()
	mc.Action = func(_ context.Context, cmd *cli.Command) error {
		fn(cmd)
		return nil
	}
	app := &cli.Command{Name: "gauge", Commands: []*cli.Command{mc}}

	err := app.Run(context.Background(), append([]string{"gauge", "match"}, args...))
	require.NoError(t, err)
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gauge.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCollectImagesFromArgs(t *testing.T) {
	runMatchFlags(t, []string{"nginx:1.25", "memcached"}, func(cmd *cli.Command) {
		images, err := collectImages(cmd)
		require.NoError(t, err)
		// bare names pick up an explicit tag
		assert.Equal(t, []string{"nginx:1.25", "memcached:latest"}, images)
	})
}

func TestCollectImagesFromFile(t *testing.T) {
	list := filepath.Join(t.TempDir(), "images.txt")
	require.NoError(t, os.WriteFile(list, []byte("nginx:1.25\n\n# comment\n  redis:7  \n"), 0o644))

	runMatchFlags(t, []string{"--file", list, "python:3.12"}, func(cmd *cli.Command) {
		images, err := collectImages(cmd)
		require.NoError(t, err)
		assert.Equal(t, []string{"python:3.12", "nginx:1.25", "redis:7"}, images)
	})
}

func TestCollectImagesMissingFile(t *testing.T) {
	runMatchFlags(t, []string{"--file", filepath.Join(t.TempDir(), "nope.txt")}, func(cmd *cli.Command) {
		_, err := collectImages(cmd)
		assert.Error(t, err)
	})
}

func TestLoadMatchConfigFlagOverrides(t *testing.T) {
	cfgPath := writeTempConfig(t, "[matching]\nmin-confidence = 0.5\n")

	args := []string{
		"--config", cfgPath,
		"--min-confidence", "0.9",
		"--format", "csv",
		"--no-upstream",
		"--oracle",
		"--oracle-model", "claude-opus-4-1",
		"--no-learn",
		"--target", "cgr.dev/acme",
		"nginx",
	}
	runMatchFlags(t, args, func(cmd *cli.Command) {
		cfg, err := loadMatchConfig(cmd)
		require.NoError(t, err)

		assert.InDelta(t, 0.9, cfg.Matching.MinConfidence, 1e-9)
		assert.Equal(t, "csv", cfg.Output.Format)
		assert.False(t, cfg.Upstream.Enabled)
		assert.True(t, cfg.Oracle.Enabled)
		assert.Equal(t, "claude-opus-4-1", cfg.Oracle.Model)
		assert.False(t, cfg.Matching.Learn)
		assert.Equal(t, "cgr.dev/acme", cfg.Registry.Target)
	})
}

func TestLoadMatchConfigKeepsFileValues(t *testing.T) {
	cfgPath := writeTempConfig(t, "[matching]\nmin-confidence = 0.5\nworkers = 8\n")

	runMatchFlags(t, []string{"--config", cfgPath, "nginx"}, func(cmd *cli.Command) {
		cfg, err := loadMatchConfig(cmd)
		require.NoError(t, err)

		assert.InDelta(t, 0.5, cfg.Matching.MinConfidence, 1e-9)
		assert.Equal(t, 8, cfg.Matching.Workers)
		// untouched keys keep defaults
		assert.Equal(t, config.Default().Registry.Target, cfg.Registry.Target)
	})
}

func TestWriteUnmatched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unmatched.txt")
	require.NoError(t, writeUnmatched(path, []string{"internal/foo:1", "bar:2"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "internal/foo:1\nbar:2\n", string(data))
}

package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDigest = digest.Digest("sha256:9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08")

func TestNormalizeImage(t *testing.T) {
	tests := []struct{ in, want string }{
		{"nginx", "nginx:latest"},
		{"nginx:1.25", "nginx:1.25"},
		{"docker.io/library/nginx:1.25", "nginx:1.25"},
		{"ghcr.io/kyverno/kyverno", "ghcr.io/kyverno/kyverno:latest"},
		{"NOT A REF !!", "NOT A REF !!"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeImage(tt.in), tt.in)
	}
}

func TestSeverityCountTotal(t *testing.T) {
	s := SeverityCount{Critical: 1, High: 2, Medium: 3, Low: 4, Negligible: 5, Unknown: 6}
	assert.Equal(t, 21, s.Total())
}

func TestCacheRoundTrip(t *testing.T) {
	c := NewCache(t.TempDir())

	assert.Nil(t, c.Get(testDigest))

	report := &Report{
		Image:        "nginx:1.25",
		Digest:       testDigest,
		PackageCount: 142,
		SizeBytes:    187_000_000,
		Severities:   SeverityCount{Critical: 2, High: 11},
	}
	c.Put(report)

	got := c.Get(testDigest)
	require.NotNil(t, got)
	assert.Equal(t, report, got)

	hits, misses := c.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)
}

func TestCacheSkipsMissingDigest(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(dir)
	c.Put(&Report{Image: "nginx:1.25"})

	entries, err := filepath.Glob(filepath.Join(dir, "*.json"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCacheDropsCorruptEntry(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(dir)
	path := filepath.Join(dir, "sha256-"+testDigest.Encoded()+".json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	assert.Nil(t, c.Get(testDigest))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestCacheClear(t *testing.T) {
	c := NewCache(t.TempDir())
	c.Put(&Report{Image: "a", Digest: testDigest})
	assert.Equal(t, 1, c.Clear())
	assert.Nil(t, c.Get(testDigest))
}

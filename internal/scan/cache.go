package scan

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
	log "github.com/sirupsen/logrus"
)

// Cache stores scan reports as JSON files keyed by manifest digest. A
// digest pins the exact image content, so entries never expire. Reports
// without a digest are never cached.
type Cache struct {
	dir     string
	enabled bool

	hits   int
	misses int
}

// NewCache creates a cache rooted at dir. When the directory cannot be
// created the cache degrades to a no-op.
func NewCache(dir string) *Cache {
	c := &Cache{dir: dir, enabled: true}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.WithError(err).Warn("scan cache disabled")
		c.enabled = false
	}
	return c
}

func (c *Cache) path(d digest.Digest) string {
	return filepath.Join(c.dir, d.Algorithm().String()+"-"+d.Encoded()+".json")
}

// Get returns the cached report for a digest, nil on a miss. Corrupt
// entries are removed and treated as misses.
func (c *Cache) Get(d digest.Digest) *Report {
	if !c.enabled || d == "" || d.Validate() != nil {
		c.misses++
		return nil
	}

	data, err := os.ReadFile(c.path(d))
	if err != nil {
		c.misses++
		return nil
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		log.WithError(err).WithField("digest", d).Warn("dropping corrupt scan cache entry")
		os.Remove(c.path(d))
		c.misses++
		return nil
	}
	c.hits++
	return &report
}

// Put stores a report under its digest. Reports without a valid digest are
// skipped; write failures are logged and ignored.
func (c *Cache) Put(report *Report) {
	if !c.enabled || report == nil || report.Digest == "" || report.Digest.Validate() != nil {
		return
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.WithError(err).Warn("encoding scan cache entry")
		return
	}
	if err := os.WriteFile(c.path(report.Digest), data, 0o644); err != nil {
		log.WithError(err).Warn("writing scan cache entry")
	}
}

// Clear removes all cached entries and returns how many were deleted.
func (c *Cache) Clear() int {
	if !c.enabled {
		return 0
	}
	entries, err := filepath.Glob(filepath.Join(c.dir, "*.json"))
	if err != nil {
		return 0
	}
	removed := 0
	for _, e := range entries {
		if os.Remove(e) == nil {
			removed++
		}
	}
	return removed
}

// Stats reports cache effectiveness for end-of-run summaries.
func (c *Cache) Stats() (hits, misses int) { return c.hits, c.misses }

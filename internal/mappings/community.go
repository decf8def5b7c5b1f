package mappings

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// DefaultCommunityURL is the upstream community mapping table.
const DefaultCommunityURL = "https://raw.githubusercontent.com/chainguard-dev/dfc/main/pkg/dfc/builtin-mappings.yaml"

// DefaultCacheMaxAge is how long a cached community table stays fresh.
const DefaultCacheMaxAge = 24 * time.Hour

const communityCacheFile = "community-mappings.yaml"

// CommunityStore fetches the community mapping table, caching it on disk.
//
// Load order: an explicit local file wins (offline mode); otherwise the
// cache is used when fresh, refreshed from the remote URL when stale or
// missing, and a stale cache is an acceptable fallback when the fetch
// fails. Only a missing cache plus a failed fetch is an error; without a
// table no deterministic matching is possible at all.
type CommunityStore struct {
	URL       string
	CacheDir  string
	LocalFile string
	MaxAge    time.Duration

	client *http.Client
}

// NewCommunityStore creates a store with defaults applied.
func NewCommunityStore(cacheDir string) *CommunityStore {
	return &CommunityStore{
		URL:      DefaultCommunityURL,
		CacheDir: cacheDir,
		MaxAge:   DefaultCacheMaxAge,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Load returns the community mapping table.
func (s *CommunityStore) Load(ctx context.Context) (*Table, error) {
	if s.LocalFile != "" {
		log.WithField("file", s.LocalFile).Info("loading community mappings from local file")
		return loadImagesFile(s.LocalFile)
	}

	cachePath := filepath.Join(s.CacheDir, communityCacheFile)

	if s.cacheStale(cachePath) {
		log.Debug("community mappings cache is stale or missing, fetching")
		if err := s.fetchAndCache(ctx, cachePath); err != nil {
			if _, statErr := os.Stat(cachePath); statErr != nil {
				return nil, fmt.Errorf("cannot load community mappings: %w", err)
			}
			log.WithError(err).Warn("community mappings fetch failed, using stale cache")
		}
	}

	return loadImagesFile(cachePath)
}

func (s *CommunityStore) cacheStale(cachePath string) bool {
	info, err := os.Stat(cachePath)
	if err != nil {
		return true
	}
	maxAge := s.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultCacheMaxAge
	}
	return time.Since(info.ModTime()) > maxAge
}

func (s *CommunityStore) fetchAndCache(ctx context.Context, cachePath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return err
	}

	client := s.client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching community mappings: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching community mappings: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("reading community mappings: %w", err)
	}

	// Validate before caching so a bad fetch never clobbers a good cache.
	if _, err := parseImagesDoc(body); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(cachePath, body, 0o644); err != nil {
		return fmt.Errorf("caching community mappings: %w", err)
	}
	log.WithField("cache", cachePath).Info("community mappings cached")
	return nil
}

func loadImagesFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mappings file: %w", err)
	}
	table, err := parseImagesDoc(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	log.WithField("entries", table.Len()).Debug("loaded community image mappings")
	return table, nil
}

// parseImagesDoc parses the community mapping document: a top-level
// "images" mapping plus an optional "packages" section that this tool
// ignores. Declaration order of the images mapping is preserved.
func parseImagesDoc(data []byte) (*Table, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("invalid mappings format")
	}

	root := doc.Content[0]
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == "images" {
			return NewTable(parseMappingNode(root.Content[i+1])), nil
		}
	}
	return nil, fmt.Errorf("missing 'images' section")
}

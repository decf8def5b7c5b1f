package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/wharflab/gauge/internal/imageref"
)

// CatalogChecker answers existence checks for images under a known target
// registry from a catalog listing fetched once per process. It is much
// cheaper than per-candidate manifest probes when the cascade generates
// many candidates against the same registry, but it only covers that
// registry: everything else is delegated to the fallback checker, as are
// all checks when the catalog cannot be loaded.
type CatalogChecker struct {
	endpoint string
	token    string
	registry string
	fallback Checker
	client   *http.Client

	once  sync.Once
	names map[string]struct{}
}

// NewCatalogChecker creates a catalog-backed checker. registryHost is the
// registry prefix the catalog covers (e.g. "cgr.dev/chainguard-private");
// fallback handles candidates outside it.
func NewCatalogChecker(endpoint, token, registryHost string, fallback Checker) *CatalogChecker {
	return &CatalogChecker{
		endpoint: endpoint,
		token:    token,
		registry: strings.TrimSuffix(registryHost, "/"),
		fallback: fallback,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Exists implements Checker.
func (c *CatalogChecker) Exists(ctx context.Context, candidate string) bool {
	if !strings.HasPrefix(candidate, c.registry+"/") {
		return c.fallback.Exists(ctx, candidate)
	}

	c.once.Do(func() { c.load(ctx) })
	if c.names == nil {
		// Catalog unavailable; the manifest probe still works.
		return c.fallback.Exists(ctx, candidate)
	}

	name := imageref.BaseName(candidate)
	_, ok := c.names[name]
	return ok
}

type catalogListing struct {
	Items []struct {
		Name    string   `json:"name"`
		Aliases []string `json:"aliases,omitempty"`
	} `json:"items"`
}

func (c *CatalogChecker) load(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		log.WithError(err).Debug("catalog request construction failed")
		return
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("User-Agent", "gauge")

	resp, err := c.client.Do(req)
	if err != nil {
		log.WithError(err).Warn("catalog listing unavailable, falling back to manifest probes")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.WithError(fmt.Errorf("unexpected status code: %d", resp.StatusCode)).
			Warn("catalog listing unavailable, falling back to manifest probes")
		return
	}

	var listing catalogListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		log.WithError(err).Warn("catalog listing unparseable, falling back to manifest probes")
		return
	}

	names := make(map[string]struct{}, len(listing.Items))
	for _, item := range listing.Items {
		if item.Name == "" {
			continue
		}
		names[strings.ToLower(item.Name)] = struct{}{}
		for _, alias := range item.Aliases {
			names[strings.ToLower(imageref.BaseName(alias))] = struct{}{}
		}
	}
	c.names = names
	log.WithField("images", len(names)).Info("loaded target registry catalog")
}

// CatalogNames returns the sorted catalog listing for prompt construction,
// loading it on first use. Nil when the catalog is unavailable.
func (c *CatalogChecker) CatalogNames(ctx context.Context) []string {
	c.once.Do(func() { c.load(ctx) })
	if c.names == nil {
		return nil
	}
	names := make([]string, 0, len(c.names))
	for name := range c.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

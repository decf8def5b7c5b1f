// Package mappings loads and matches the deterministic image mapping tables:
// the community-curated table (fetched remotely, cached with a TTL) and the
// local manual override table (human-editable, appended to by the learner).
package mappings

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/wharflab/gauge/internal/imageref"
)

// Entry is one source-pattern → target pair. Patterns containing '*' are
// wildcards matched with glob semantics; everything else is exact.
type Entry struct {
	Pattern string
	Target  string
}

// Table is an ordered mapping table. Immutable during a run; lookups try
// exact entries before wildcards, and wildcards in declaration order.
type Table struct {
	exact     map[string]string
	wildcards []Entry
	size      int
}

// NewTable builds a table from entries in declaration order.
func NewTable(entries []Entry) *Table {
	t := &Table{exact: make(map[string]string, len(entries))}
	for _, e := range entries {
		if strings.Contains(e.Pattern, "*") {
			t.wildcards = append(t.wildcards, e)
		} else if _, dup := t.exact[e.Pattern]; !dup {
			t.exact[e.Pattern] = e.Target
		}
		t.size++
	}
	return t
}

// Len returns the number of entries loaded into the table.
func (t *Table) Len() int { return t.size }

// Lookup finds the target for a key. Exact match always wins; among
// wildcard patterns the first declared match wins. Wildcard matching is
// case-insensitive.
func (t *Table) Lookup(key string) (string, bool) {
	if target, ok := t.exact[key]; ok {
		return target, true
	}
	lower := strings.ToLower(key)
	for _, e := range t.wildcards {
		ok, err := doublestar.Match(strings.ToLower(e.Pattern), lower)
		if err != nil {
			continue // malformed pattern, skip
		}
		if ok {
			return e.Target, true
		}
	}
	return "", false
}

// Has reports whether an exact entry exists for the key.
func (t *Table) Has(key string) bool {
	_, ok := t.exact[key]
	return ok
}

// parseMappingNode decodes a YAML mapping node into entries, preserving the
// declaration order the wildcard-precedence rule depends on.
func parseMappingNode(node *yaml.Node) []Entry {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	entries := make([]Entry, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if key.Kind != yaml.ScalarNode || val.Kind != yaml.ScalarNode {
			continue
		}
		entries = append(entries, Entry{Pattern: key.Value, Target: val.Value})
	}
	return entries
}

// NormalizeTarget expands a bare target name to a full reference under the
// default target registry, adding ":latest" when no tag is present. Targets
// that already name a registry are only tag-normalized.
func NormalizeTarget(target, defaultRegistry string) string {
	if imageref.HasExplicitRegistry(target) {
		if imageref.Parse(target).Tag == "" && !strings.Contains(target, "@") {
			return target + ":latest"
		}
		return target
	}
	if !strings.Contains(target, ":") {
		target += ":latest"
	}
	return defaultRegistry + "/" + target
}

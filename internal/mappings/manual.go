package mappings

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// LoadManual reads the manual override table: a flat YAML mapping of exact
// source reference → target reference. A missing file is an empty table,
// not an error.
func LoadManual(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.WithField("file", path).Debug("no manual mappings file")
			return NewTable(nil), nil
		}
		return nil, fmt.Errorf("reading manual mappings: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing manual mappings: %w", err)
	}
	if len(doc.Content) == 0 {
		return NewTable(nil), nil
	}
	if doc.Content[0].Kind != yaml.MappingNode {
		log.WithField("file", path).Warn("invalid manual mappings format, ignoring")
		return NewTable(nil), nil
	}

	table := NewTable(parseMappingNode(doc.Content[0]))
	log.WithField("entries", table.Len()).Debug("loaded manual image mappings")
	return table, nil
}

// ManualEntries reads the manual override file as a raw key → target map,
// for callers that merge and rewrite it. A missing file is an empty map.
func ManualEntries(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading manual mappings: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing manual mappings: %w", err)
	}
	entries := map[string]string{}
	if len(doc.Content) > 0 && doc.Content[0].Kind == yaml.MappingNode {
		for _, e := range parseMappingNode(doc.Content[0]) {
			entries[e.Pattern] = e.Target
		}
	}
	return entries, nil
}

// Provenance describes where an auto-populated manual entry came from. It
// only affects the generated header comment, never the mapping semantics.
type Provenance struct {
	Source     string
	Target     string
	Method     string
	Confidence float64
}

// WriteManual persists a manual mapping table, sorted by source key, with a
// generated header listing the auto-populated entries. A backup of the
// previous file is taken first.
func WriteManual(path string, entries map[string]string, added []Provenance, now string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil {
		backup := path + ".bak"
		if data, err := os.ReadFile(path); err == nil {
			if err := os.WriteFile(backup, data, 0o644); err != nil {
				log.WithError(err).Warn("manual mappings backup failed")
			} else {
				log.WithField("backup", backup).Debug("created manual mappings backup")
			}
		}
	}

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("# Manual image mappings\n")
	sb.WriteString("# Last updated: " + now + "\n")
	fmt.Fprintf(&sb, "# Total mappings: %d\n", len(entries))
	sb.WriteString("#\n")
	sb.WriteString("# Format: \"source:tag\": \"registry/image:tag\"\n")
	if len(added) > 0 {
		sb.WriteString("#\n# Auto-populated from successful matches:\n")
		sort.Slice(added, func(i, j int) bool { return added[i].Source < added[j].Source })
		for _, p := range added {
			fmt.Fprintf(&sb, "#   %s -> %s (%s, %.0f%%)\n", p.Source, p.Target, p.Method, p.Confidence*100)
		}
	}
	sb.WriteString("\n")

	for _, k := range keys {
		line, err := yaml.Marshal(map[string]string{k: entries[k]})
		if err != nil {
			return fmt.Errorf("encoding manual mappings: %w", err)
		}
		sb.Write(line)
	}

	return os.WriteFile(path, []byte(sb.String()), 0o644)
}

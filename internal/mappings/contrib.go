package mappings

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/wharflab/gauge/internal/imageref"
)

// WriteSuggestions emits a contribution-ready YAML fragment for the
// community mapping project from locally learned mappings. Keys are reduced
// to base image names (the community table is keyed by name, not full
// reference) and targets are stripped back to bare names so the fragment is
// registry-neutral.
func WriteSuggestions(dir string, learned map[string]string) (string, error) {
	if len(learned) == 0 {
		return "", nil
	}

	images := make(map[string]string, len(learned))
	for source, target := range learned {
		key := imageref.BaseName(source)
		val := imageref.BaseName(target)
		if key == "" || val == "" || key == val {
			continue
		}
		images[key] = val
	}
	if len(images) == 0 {
		return "", nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	keys := make([]string, 0, len(images))
	for k := range images {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("# Suggested additions for the community mapping table.\n")
	sb.WriteString("# Review each entry before contributing upstream.\n")
	sb.WriteString("images:\n")
	for _, k := range keys {
		entry, err := yaml.Marshal(map[string]string{k: images[k]})
		if err != nil {
			return "", fmt.Errorf("encoding suggestions: %w", err)
		}
		sb.WriteString("  " + strings.TrimSuffix(string(entry), "\n") + "\n")
	}

	path := filepath.Join(dir, "mapping-suggestions.yaml")
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return "", err
	}
	log.WithField("file", path).WithField("entries", len(images)).Info("wrote mapping suggestions")
	return path, nil
}

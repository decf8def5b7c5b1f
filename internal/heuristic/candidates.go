// Package heuristic generates and verifies candidate Chainguard image names
// for references that no explicit mapping covers.
package heuristic

import (
	"regexp"
	"strings"

	"github.com/wharflab/gauge/internal/imageref"
)

var (
	versionPrefixV = regexp.MustCompile(`v\d+(?:\.\w+)?$`)
	versionTrailer = regexp.MustCompile(`[-_]?\d+(?:\.\w+)?$`)
	fipsSuffix     = regexp.MustCompile(`[-_]fips$`)
)

// StripVersionSuffix removes trailing version markers from an image name:
// mongodb_8.x, solr-9, redis7, ruby33 and airflowv3 all reduce to their
// unversioned names.
func StripVersionSuffix(name string) string {
	name = versionPrefixV.ReplaceAllString(name, "")
	name = versionTrailer.ReplaceAllString(name, "")
	return name
}

// HasFIPSIndicator reports whether any part of the reference signals a FIPS
// build.
func HasFIPSIndicator(image string) bool {
	lower := strings.ToLower(image)
	for _, p := range []string{"-fips", "_fips", ":fips", "fips-", "fips_", "/fips"} {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// extractBaseName reduces a full reference to its unversioned leaf name,
// with FIPS suffixes removed so candidates are not double-suffixed.
func extractBaseName(image string) string {
	name := imageref.BaseName(image)
	name = fipsSuffix.ReplaceAllString(name, "")
	return StripVersionSuffix(name)
}

// strategy produces bare candidate names ("name:tag", no registry) for a
// base name. Strategies run in declaration order; earlier candidates are
// tried first.
type strategy func(baseName, fullImage string, hasFIPS bool) []string

// strategies in priority order. Base OS detection runs first so that
// version-suffixed OS images do not fall through to direct matching.
var strategies = []strategy{
	baseOSCandidates,
	bitnamiCandidates,
	directCandidates,
	pathFlatteningCandidates,
	nameVariationCandidates,
}

// Candidates generates bare candidate names for an image, deduplicated and
// in priority order.
func Candidates(image string) []string {
	base := extractBaseName(image)
	hasFIPS := HasFIPSIndicator(image)

	var out []string
	seen := make(map[string]struct{})
	for _, s := range strategies {
		for _, c := range s(base, image, hasFIPS) {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

func bitnamiCandidates(base, full string, hasFIPS bool) []string {
	if !strings.Contains(strings.ToLower(full), "bitnami") {
		return nil
	}
	var out []string
	if hasFIPS {
		out = append(out,
			base+"-iamguarded-fips:latest",
			base+"-fips:latest",
			base+"-bitnami-fips:latest",
			base+"-iamguarded:latest",
		)
	} else {
		out = append(out, base+"-iamguarded:latest")
	}
	return append(out, base+":latest")
}

func directCandidates(base, full string, hasFIPS bool) []string {
	if strings.Contains(strings.ToLower(full), "bitnami") {
		return nil
	}
	var out []string
	if hasFIPS {
		out = append(out, base+"-fips:latest")
	}
	return append(out, base+":latest")
}

// pathFlatteningCandidates handles nested repository paths: the leaf
// segment on its own, and the last two segments joined with a hyphen
// (ghcr.io/kyverno/background-controller -> kyverno-background-controller).
func pathFlatteningCandidates(base, full string, hasFIPS bool) []string {
	if !strings.Contains(full, "/") {
		return nil
	}
	parts := strings.Split(full, "/")

	leaf := strings.ToLower(parts[len(parts)-1])
	leaf = strings.SplitN(leaf, ":", 2)[0]
	leaf = strings.SplitN(leaf, "@", 2)[0]
	leaf = fipsSuffix.ReplaceAllString(leaf, "")

	var out []string
	if leaf != base {
		if hasFIPS {
			out = append(out, leaf+"-fips:latest")
		}
		out = append(out, leaf+":latest")
	}
	if len(parts) >= 2 {
		hyphenated := parts[len(parts)-2] + "-" + leaf
		if hasFIPS {
			out = append(out, hyphenated+"-fips:latest")
		}
		out = append(out, hyphenated+":latest")
	}
	return out
}

// nameVariations maps names to the spelling the Chainguard catalog uses.
var nameVariations = map[string]string{
	"mongo":       "mongodb",
	"postgresql":  "postgres",
	"node-chrome": "node-chromium",
}

func nameVariationCandidates(base, _ string, hasFIPS bool) []string {
	variation, ok := nameVariations[base]
	if !ok {
		return nil
	}
	var out []string
	if hasFIPS {
		out = append(out, variation+"-fips:latest")
	}
	return append(out, variation+":latest")
}

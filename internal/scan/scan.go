// Package scan defines the scanning surface the match pipeline feeds into:
// the provider interface, the per-image report types, and a digest-keyed
// result cache. Running scanners is out of scope here; providers plug in
// behind the Scanner interface.
package scan

import (
	"context"

	"github.com/distribution/reference"
	"github.com/opencontainers/go-digest"
)

// SeverityCount is a vulnerability breakdown by severity.
type SeverityCount struct {
	Critical   int `json:"critical"`
	High       int `json:"high"`
	Medium     int `json:"medium"`
	Low        int `json:"low"`
	Negligible int `json:"negligible"`
	Unknown    int `json:"unknown"`
}

// Total sums all severities.
func (s SeverityCount) Total() int {
	return s.Critical + s.High + s.Medium + s.Low + s.Negligible + s.Unknown
}

// Report is the analysis of one image.
type Report struct {
	// Image is the reference that was scanned.
	Image string `json:"image"`

	// Digest is the resolved manifest digest, the cache key.
	Digest digest.Digest `json:"digest,omitempty"`

	PackageCount   int           `json:"package_count"`
	SizeBytes      int64         `json:"size_bytes"`
	Severities     SeverityCount `json:"severities"`
	HardeningScore float64       `json:"hardening_score"`
}

// Scanner produces a Report for an image reference.
type Scanner interface {
	// Name identifies the provider ("grype", "trivy", ...).
	Name() string

	// Scan analyzes the image. Implementations resolve the digest
	// themselves so results are cacheable.
	Scan(ctx context.Context, image string) (*Report, error)

	// Available reports whether the provider can run in this environment.
	Available() bool
}

// NormalizeImage canonicalizes an image reference for scanning and report
// keys: docker.io shorthand expanded back to the familiar form, a latest
// tag made explicit. Unparseable references pass through unchanged.
func NormalizeImage(image string) string {
	named, err := reference.ParseNormalizedNamed(image)
	if err != nil {
		return image
	}
	return reference.FamiliarString(reference.TagNameOnly(named))
}

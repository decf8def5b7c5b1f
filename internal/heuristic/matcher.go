package heuristic

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/wharflab/gauge/internal/registry"
)

// Matcher tries generated candidates against a target registry and returns
// the first one that exists.
type Matcher struct {
	registry string
	checker  registry.Checker
}

// NewMatcher creates a Matcher that verifies candidates under targetRegistry.
func NewMatcher(targetRegistry string, checker registry.Checker) *Matcher {
	return &Matcher{registry: targetRegistry, checker: checker}
}

// Match returns the first verified candidate for image, or "" and false
// when no candidate exists in the registry.
func (m *Matcher) Match(ctx context.Context, image string) (string, bool) {
	for _, c := range Candidates(image) {
		candidate := m.registry + "/" + c
		if m.checker.Exists(ctx, candidate) {
			log.WithField("image", image).WithField("candidate", candidate).
				Debug("heuristic candidate verified")
			return candidate, true
		}
	}
	return "", false
}

package match

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wharflab/gauge/internal/heuristic"
	"github.com/wharflab/gauge/internal/mappings"
	"github.com/wharflab/gauge/internal/registry"
	"github.com/wharflab/gauge/internal/upstream"
)

const testRegistry = "cgr.dev/chainguard-private"

type existsSet map[string]bool

func (s existsSet) Exists(_ context.Context, candidate string) bool { return s[candidate] }

var _ registry.Checker = existsSet{}

func communityTable() *mappings.Table {
	return mappings.NewTable([]mappings.Entry{
		{Pattern: "nginx", Target: "nginx-fips:latest"},
		{Pattern: "python*", Target: "python"},
	})
}

func newTestEngine(community, manual *mappings.Table, checker registry.Checker) *Engine {
	if community == nil {
		community = mappings.NewTable(nil)
	}
	if manual == nil {
		manual = mappings.NewTable(nil)
	}
	if checker == nil {
		checker = existsSet{}
	}
	return NewEngine(Config{
		TargetRegistry: testRegistry,
		Community:      community,
		Manual:         manual,
		Heuristic:      heuristic.NewMatcher(testRegistry, checker),
		Checker:        checker,
	})
}

func TestMatchCommunityExact(t *testing.T) {
	e := newTestEngine(communityTable(), nil, nil)

	res := e.Match(context.Background(), "nginx:latest")
	require.True(t, res.Matched())
	assert.Equal(t, testRegistry+"/nginx-fips:latest", res.Target)
	assert.Equal(t, MethodExactMapping, res.Method)
	assert.InDelta(t, 0.95, res.Confidence, 1e-9)
	assert.Equal(t, "nginx:latest", res.Source)
}

func TestMatchCommunityWildcard(t *testing.T) {
	e := newTestEngine(communityTable(), nil, nil)

	res := e.Match(context.Background(), "python:3.12")
	require.True(t, res.Matched())
	assert.Equal(t, testRegistry+"/python:latest", res.Target)
	assert.Equal(t, MethodExactMapping, res.Method)
	assert.InDelta(t, 0.95, res.Confidence, 1e-9)
}

func TestMatchNoneTriple(t *testing.T) {
	e := newTestEngine(communityTable(), nil, nil)

	res := e.Match(context.Background(), "unknown-app:v1")
	assert.Empty(t, res.Target)
	assert.Zero(t, res.Confidence)
	assert.Equal(t, MethodNone, res.Method)
}

func TestMatchManualBeatsCommunity(t *testing.T) {
	manual := mappings.NewTable([]mappings.Entry{
		{Pattern: "nginx:latest", Target: "nginx-special:1.0"},
	})
	e := newTestEngine(communityTable(), manual, nil)

	res := e.Match(context.Background(), "nginx:latest")
	require.True(t, res.Matched())
	assert.Equal(t, MethodManualOverride, res.Method)
	assert.Equal(t, testRegistry+"/nginx-special:1.0", res.Target)
	assert.InDelta(t, 1.0, res.Confidence, 1e-9)
}

func TestMatchPublicRegistryRetargeted(t *testing.T) {
	community := mappings.NewTable([]mappings.Entry{
		{Pattern: "redis", Target: "cgr.dev/chainguard/redis:latest"},
	})
	e := newTestEngine(community, nil, nil)

	res := e.Match(context.Background(), "redis:7")
	require.True(t, res.Matched())
	assert.Equal(t, testRegistry+"/redis:latest", res.Target)
}

func TestMatchHeuristicTier(t *testing.T) {
	checker := existsSet{testRegistry + "/kyverno:latest": true}
	e := newTestEngine(nil, nil, checker)

	res := e.Match(context.Background(), "ghcr.io/kyverno/kyverno:v1.11")
	require.True(t, res.Matched())
	assert.Equal(t, MethodHeuristic, res.Method)
	assert.Equal(t, testRegistry+"/kyverno:latest", res.Target)
	assert.InDelta(t, 0.85, res.Confidence, 1e-9)
}

func TestMatchDeterministicWithoutOracle(t *testing.T) {
	e := newTestEngine(communityTable(), nil, nil)
	first := e.Match(context.Background(), "python:3.12")
	for range 5 {
		assert.Equal(t, first, e.Match(context.Background(), "python:3.12"))
	}
}

func TestMatchRunsUpstreamAfterDeterministicMiss(t *testing.T) {
	checker := existsSet{
		"docker.io/library/nginx:latest": true,
		testRegistry + "/nginx:latest":   true,
	}
	finder := upstream.NewFinder(nil, checker, upstream.Options{})
	e := NewEngine(Config{
		TargetRegistry: testRegistry,
		Community:      mappings.NewTable(nil),
		Manual:         mappings.NewTable(nil),
		Heuristic:      heuristic.NewMatcher(testRegistry, checker),
		Upstream:       finder,
		Checker:        checker,
	})

	res := e.Match(context.Background(), "gcr.io/myproject/nginx:latest")
	require.True(t, res.Matched())
	// The discovered leaf name resolves through the heuristic tier.
	assert.Equal(t, testRegistry+"/nginx:latest", res.Target)
	assert.Equal(t, MethodHeuristic, res.Method)
	require.NotNil(t, res.Upstream)
	assert.Equal(t, "nginx:latest", res.Upstream.Image)
	assert.Equal(t, upstream.MethodRegistryStrip, res.Upstream.Method)
	assert.InDelta(t, 0.85, res.Upstream.Confidence, 1e-9)
	assert.Equal(t, "gcr.io/myproject/nginx:latest", res.Source)
}

func TestMatchExplicitMappingSkipsUpstream(t *testing.T) {
	manual := mappings.NewTable([]mappings.Entry{
		{Pattern: "gcr.io/myproject/nginx:latest", Target: "nginx-fips:latest"},
	})
	// No checker entries: upstream discovery would find nothing anyway,
	// but the manual hit must short-circuit before it is consulted.
	finder := upstream.NewFinder(nil, existsSet{}, upstream.Options{})
	e := NewEngine(Config{
		TargetRegistry: testRegistry,
		Community:      mappings.NewTable(nil),
		Manual:         manual,
		Upstream:       finder,
	})

	res := e.Match(context.Background(), "gcr.io/myproject/nginx:latest")
	require.True(t, res.Matched())
	assert.Equal(t, MethodManualOverride, res.Method)
	assert.Nil(t, res.Upstream)
}

func TestBatchMatchAll(t *testing.T) {
	checker := existsSet{testRegistry + "/redis:latest": true}
	e := newTestEngine(communityTable(), nil, checker)

	batch := e.MatchAll(context.Background(),
		[]string{"nginx:latest", "redis:7", "unknown-app:v1"},
		BatchOptions{Workers: 2})

	require.Len(t, batch.Results, 3)
	assert.Equal(t, "nginx:latest", batch.Results[0].Source)
	assert.Equal(t, MethodExactMapping, batch.Results[0].Method)
	assert.Equal(t, MethodHeuristic, batch.Results[1].Method)
	assert.Equal(t, MethodNone, batch.Results[2].Method)

	assert.Equal(t, 3, batch.Summary.Total)
	assert.Equal(t, 2, batch.Summary.Matched)
	assert.InDelta(t, 2.0/3.0, batch.Summary.Rate, 1e-9)
	assert.Equal(t, []string{"unknown-app:v1"}, batch.Unmatched)
	assert.Equal(t, 1, batch.Summary.ByMethod[MethodNone])
}

func TestBatchAppliesMinConfidence(t *testing.T) {
	checker := existsSet{testRegistry + "/redis:latest": true}
	e := newTestEngine(nil, nil, checker)

	batch := e.MatchAll(context.Background(), []string{"redis:7"},
		BatchOptions{MinConfidence: 0.9})

	// The heuristic hit is returned as-is but does not clear the caller's
	// threshold, so the image lands in the unmatched bucket.
	require.Len(t, batch.Results, 1)
	assert.Equal(t, MethodHeuristic, batch.Results[0].Method)
	assert.Equal(t, 0, batch.Summary.Matched)
	assert.Equal(t, []string{"redis:7"}, batch.Unmatched)
}

func TestBatchDeduplicatesInput(t *testing.T) {
	e := newTestEngine(communityTable(), nil, nil)
	batch := e.MatchAll(context.Background(),
		[]string{"nginx:latest", "nginx:latest"}, BatchOptions{})
	require.Len(t, batch.Results, 2)
	assert.Equal(t, batch.Results[0], batch.Results[1])
}

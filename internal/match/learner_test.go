package match

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wharflab/gauge/internal/mappings"
)

func heuristicResult(source, target string, confidence float64) Result {
	return Result{Source: source, Target: target, Confidence: confidence, Method: MethodHeuristic}
}

func TestLearnerObserveFilters(t *testing.T) {
	l := NewLearner(filepath.Join(t.TempDir(), "mappings.yaml"), 0)

	l.Observe(heuristicResult("redis:7", testRegistry+"/redis:latest", 0.85))
	l.Observe(Result{Source: "pg:16", Target: testRegistry + "/postgres:latest", Confidence: 0.9, Method: MethodFuzzyOracle})
	// Below threshold, wrong method, and no-match results are all ignored.
	l.Observe(heuristicResult("weak:1", testRegistry+"/weak:latest", 0.8))
	l.Observe(Result{Source: "nginx:latest", Target: testRegistry + "/nginx:latest", Confidence: 1.0, Method: MethodManualOverride})
	l.Observe(Result{Source: "none:1", Method: MethodNone})

	learned := l.Learned()
	assert.Len(t, learned, 2)
	assert.Equal(t, testRegistry+"/redis:latest", learned["redis:7"])
	assert.Equal(t, testRegistry+"/postgres:latest", learned["pg:16"])
}

func TestLearnerFlushWritesAndIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.yaml")
	l := NewLearner(path, 0)
	l.Observe(heuristicResult("redis:7", testRegistry+"/redis:latest", 0.9))

	assert.Equal(t, 1, l.Flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "redis:7")
	assert.Contains(t, content, "Auto-populated from successful matches")
	assert.Contains(t, content, "heuristic, 90%")

	// Same buffer again: the entry already exists, nothing new is written.
	assert.Equal(t, 0, l.Flush())

	table, err := mappings.LoadManual(path)
	require.NoError(t, err)
	target, ok := table.Lookup("redis:7")
	require.True(t, ok)
	assert.Equal(t, testRegistry+"/redis:latest", target)
}

func TestLearnerFlushNeverOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.yaml")
	require.NoError(t, mappings.WriteManual(path, map[string]string{
		"redis:7": testRegistry + "/redis-existing:latest",
	}, nil, "2026-01-01T00:00:00Z"))

	l := NewLearner(path, 0)
	l.Observe(heuristicResult("redis:7", testRegistry+"/redis:latest", 0.9))
	l.Observe(heuristicResult("solr:9", testRegistry+"/solr:latest", 0.85))

	assert.Equal(t, 1, l.Flush())

	entries, err := mappings.ManualEntries(path)
	require.NoError(t, err)
	assert.Equal(t, testRegistry+"/redis-existing:latest", entries["redis:7"])
	assert.Equal(t, testRegistry+"/solr:latest", entries["solr:9"])
}

func TestLearnerEmptyFlush(t *testing.T) {
	l := NewLearner(filepath.Join(t.TempDir(), "mappings.yaml"), 0)
	assert.Equal(t, 0, l.Flush())
}

func TestLearnerConcurrentObserve(t *testing.T) {
	l := NewLearner(filepath.Join(t.TempDir(), "mappings.yaml"), 0)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			source := "img-" + strings.Repeat("x", i%3) + ":latest"
			l.Observe(heuristicResult(source, testRegistry+"/img:latest", 0.9))
		}(i)
	}
	wg.Wait()

	// Three distinct sources across all goroutines.
	assert.Len(t, l.Learned(), 3)
}

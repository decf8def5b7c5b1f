package match

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/wharflab/gauge/internal/mappings"
)

// DefaultLearnThreshold is the minimum confidence a heuristic or oracle
// result needs before it is promoted into the manual table. Stricter than
// the matching threshold: a learned mapping short-circuits future cascades
// at confidence 1.0, so only strong evidence gets in.
const DefaultLearnThreshold = 0.85

// Learner buffers successful non-deterministic matches during a run and
// promotes them into the manual override table at the end. Observation is
// safe from concurrent match workers; Flush is called once.
type Learner struct {
	mu        sync.Mutex
	path      string
	threshold float64
	pending   map[string]mappings.Provenance
}

// NewLearner creates a Learner persisting to the manual mapping file at
// path. threshold <= 0 selects DefaultLearnThreshold.
func NewLearner(path string, threshold float64) *Learner {
	if threshold <= 0 {
		threshold = DefaultLearnThreshold
	}
	return &Learner{path: path, threshold: threshold, pending: make(map[string]mappings.Provenance)}
}

// Observe buffers a result when it came from the heuristic or oracle tier
// with confidence at or above the learning threshold.
func (l *Learner) Observe(res Result) {
	if !res.Matched() || res.Confidence < l.threshold {
		return
	}
	if res.Method != MethodHeuristic && res.Method != MethodFuzzyOracle {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending[res.Source] = mappings.Provenance{
		Source:     res.Source,
		Target:     res.Target,
		Method:     string(res.Method),
		Confidence: res.Confidence,
	}
}

// Learned returns the currently buffered source → target pairs.
func (l *Learner) Learned() map[string]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]string, len(l.pending))
	for k, p := range l.pending {
		out[k] = p.Target
	}
	return out
}

// Flush merges buffered observations into the manual mapping file and
// returns the number of new entries written. Entries already present are
// never overwritten, so flushing the same buffer twice writes once. Disk
// errors are logged and reported as zero writes.
func (l *Learner) Flush() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) == 0 {
		return 0
	}

	existing, err := mappings.ManualEntries(l.path)
	if err != nil {
		log.WithError(err).Error("loading manual mappings for learner flush")
		return 0
	}

	var added []mappings.Provenance
	for source, p := range l.pending {
		if _, ok := existing[source]; ok {
			continue
		}
		existing[source] = p.Target
		added = append(added, p)
	}
	if len(added) == 0 {
		log.Debug("learner flush: nothing new to persist")
		return 0
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if err := mappings.WriteManual(l.path, existing, added, now); err != nil {
		log.WithError(err).Error("persisting learned mappings")
		return 0
	}
	log.WithField("entries", len(added)).Info("persisted learned mappings")
	return len(added)
}

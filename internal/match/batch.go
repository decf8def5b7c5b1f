package match

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Summary aggregates a batch run.
type Summary struct {
	Total    int
	Matched  int
	Rate     float64
	ByMethod map[Method]int
}

// BatchResult holds per-image results in input order plus the images that
// no tier could resolve above the caller's threshold.
type BatchResult struct {
	Results   []Result
	Unmatched []string
	Summary   Summary
}

// BatchOptions controls a batch run.
type BatchOptions struct {
	// Workers is the number of concurrent match calls. Default 4.
	Workers int

	// MinConfidence is the usability threshold applied to tier results.
	// Default 0.7.
	MinConfidence float64

	// Learner, when set, observes every result for later promotion into
	// the manual table.
	Learner *Learner
}

// MatchAll resolves images concurrently. Duplicate inputs are resolved once
// and share the result; output order follows input order.
func (e *Engine) MatchAll(ctx context.Context, images []string, opts BatchOptions) BatchResult {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = 0.7
	}

	// Deduplicate while keeping first-seen order.
	unique := make([]string, 0, len(images))
	seen := make(map[string]struct{}, len(images))
	for _, img := range images {
		if _, ok := seen[img]; ok {
			continue
		}
		seen[img] = struct{}{}
		unique = append(unique, img)
	}

	resolved := make(map[string]Result, len(unique))
	var resolvedMu sync.Mutex

	sem := make(chan struct{}, opts.Workers)
	var wg sync.WaitGroup
	for _, img := range unique {
		wg.Add(1)
		go func(img string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			res := e.Match(ctx, img)
			if opts.Learner != nil {
				opts.Learner.Observe(res)
			}
			resolvedMu.Lock()
			resolved[img] = res
			resolvedMu.Unlock()
		}(img)
	}
	wg.Wait()

	out := BatchResult{Summary: Summary{ByMethod: make(map[Method]int)}}
	for _, img := range images {
		res, ok := resolved[img]
		if !ok {
			// Canceled before this image was attempted.
			res = noMatch(img, nil)
		}
		out.Results = append(out.Results, res)
		out.Summary.Total++
		out.Summary.ByMethod[res.Method]++
		if res.Matched() && res.Confidence >= opts.MinConfidence {
			out.Summary.Matched++
		} else {
			out.Unmatched = append(out.Unmatched, img)
		}
	}
	if out.Summary.Total > 0 {
		out.Summary.Rate = float64(out.Summary.Matched) / float64(out.Summary.Total)
	}

	log.WithField("total", out.Summary.Total).WithField("matched", out.Summary.Matched).
		Info("batch match complete")
	return out
}

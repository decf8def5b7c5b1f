package reporter

import (
	"encoding/json"
	"io"

	"github.com/wharflab/gauge/internal/match"
)

// JSONOutput is the top-level structure for JSON output.
type JSONOutput struct {
	Results   []JSONResult  `json:"results"`
	Unmatched []string      `json:"unmatched"`
	Summary   JSONSummary   `json:"summary"`
	ByMethod  []methodCount `json:"by_method"`
}

// JSONResult is one resolved image.
type JSONResult struct {
	Source     string  `json:"source_image"`
	Target     string  `json:"target_image,omitempty"`
	Method     string  `json:"method"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`

	UpstreamImage      string  `json:"upstream_image,omitempty"`
	UpstreamMethod     string  `json:"upstream_method,omitempty"`
	UpstreamConfidence float64 `json:"upstream_confidence,omitempty"`
}

// JSONSummary contains aggregate statistics.
type JSONSummary struct {
	Total     int     `json:"total"`
	Matched   int     `json:"matched"`
	MatchRate float64 `json:"match_rate"`
}

// JSONReporter formats batch results as JSON.
type JSONReporter struct {
	writer io.Writer
}

// NewJSONReporter creates a new JSON reporter.
func NewJSONReporter(w io.Writer) *JSONReporter {
	return &JSONReporter{writer: w}
}

// Report implements Reporter.
func (r *JSONReporter) Report(batch match.BatchResult) error {
	out := JSONOutput{
		Results:   make([]JSONResult, 0, len(batch.Results)),
		Unmatched: batch.Unmatched,
		Summary: JSONSummary{
			Total:     batch.Summary.Total,
			Matched:   batch.Summary.Matched,
			MatchRate: batch.Summary.Rate,
		},
		ByMethod: methodCounts(batch),
	}
	if out.Unmatched == nil {
		out.Unmatched = []string{}
	}
	for _, res := range batch.Results {
		jr := JSONResult{
			Source:     res.Source,
			Target:     res.Target,
			Method:     string(res.Method),
			Confidence: res.Confidence,
			Reasoning:  res.Reasoning,
		}
		if res.Upstream != nil {
			jr.UpstreamImage = res.Upstream.Image
			jr.UpstreamMethod = string(res.Upstream.Method)
			jr.UpstreamConfidence = res.Upstream.Confidence
		}
		out.Results = append(out.Results, jr)
	}

	enc := json.NewEncoder(r.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

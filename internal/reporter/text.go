package reporter

import (
	"fmt"
	"io"
	"strings"

	"github.com/wharflab/gauge/internal/match"
)

// TextReporter renders a human-readable terminal summary.
type TextReporter struct {
	writer        io.Writer
	minConfidence float64
}

// NewTextReporter creates a new text reporter.
func NewTextReporter(w io.Writer, minConfidence float64) *TextReporter {
	return &TextReporter{writer: w, minConfidence: minConfidence}
}

// Report implements Reporter.
func (r *TextReporter) Report(batch match.BatchResult) error {
	var sb strings.Builder

	for _, res := range batch.Results {
		if !res.Matched() {
			fmt.Fprintf(&sb, "✗ %s: no match\n", res.Source)
			continue
		}
		marker := "✓"
		if r.minConfidence > 0 && res.Confidence < r.minConfidence {
			marker = "?"
		}
		fmt.Fprintf(&sb, "%s %s → %s (%s, %.0f%%)\n",
			marker, res.Source, res.Target, res.Method, res.Confidence*100)
		if res.Upstream != nil {
			fmt.Fprintf(&sb, "    upstream: %s (%s, %.0f%%)\n",
				res.Upstream.Image, res.Upstream.Method, res.Upstream.Confidence*100)
		}
	}

	fmt.Fprintf(&sb, "\n%d/%d matched (%.0f%%)\n",
		batch.Summary.Matched, batch.Summary.Total, batch.Summary.Rate*100)
	for _, mc := range methodCounts(batch) {
		fmt.Fprintf(&sb, "  %-16s %d\n", mc.Method, mc.Count)
	}

	_, err := io.WriteString(r.writer, sb.String())
	return err
}

package reporter

import (
	"fmt"
	"io"
	"strings"

	"github.com/wharflab/gauge/internal/match"
)

// MarkdownReporter renders batch results as markdown tables.
type MarkdownReporter struct {
	writer io.Writer
}

// NewMarkdownReporter creates a new markdown reporter.
func NewMarkdownReporter(w io.Writer) *MarkdownReporter {
	return &MarkdownReporter{writer: w}
}

// Report implements Reporter.
func (r *MarkdownReporter) Report(batch match.BatchResult) error {
	var sb strings.Builder

	sb.WriteString("## Image matches\n\n")
	fmt.Fprintf(&sb, "%d of %d images matched (%.0f%%).\n\n",
		batch.Summary.Matched, batch.Summary.Total, batch.Summary.Rate*100)

	if batch.Summary.Matched > 0 {
		sb.WriteString("| Source | Target | Method | Confidence |\n")
		sb.WriteString("|---|---|---|---|\n")
		for _, res := range batch.Results {
			if !res.Matched() {
				continue
			}
			fmt.Fprintf(&sb, "| %s | %s | %s | %.0f%% |\n",
				escapePipes(res.Source), escapePipes(res.Target), res.Method, res.Confidence*100)
		}
		sb.WriteString("\n")
	}

	if len(batch.Unmatched) > 0 {
		sb.WriteString("### Unmatched\n\n")
		for _, img := range batch.Unmatched {
			fmt.Fprintf(&sb, "- %s\n", escapePipes(img))
		}
		sb.WriteString("\n")
	}

	if len(batch.Summary.ByMethod) > 0 {
		sb.WriteString("### By method\n\n")
		sb.WriteString("| Method | Count |\n")
		sb.WriteString("|---|---|\n")
		for _, mc := range methodCounts(batch) {
			fmt.Fprintf(&sb, "| %s | %d |\n", mc.Method, mc.Count)
		}
	}

	_, err := io.WriteString(r.writer, sb.String())
	return err
}

func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

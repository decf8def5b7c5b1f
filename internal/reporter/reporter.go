// Package reporter renders batch match results.
//
// The package supports multiple output formats:
//   - text: Human-readable terminal summary
//   - csv: Matched pairs for spreadsheet import
//   - json: Machine-readable full results
//   - markdown: Tables for docs and AI agents
package reporter

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/wharflab/gauge/internal/match"
)

// Reporter renders a batch result to the configured output.
type Reporter interface {
	Report(batch match.BatchResult) error
}

// Format represents an output format type.
type Format string

const (
	FormatText     Format = "text"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat parses a format string into a Format type.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "text", "":
		return FormatText, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown format: %q (valid: text, csv, json, markdown)", s)
	}
}

// Options configures reporter creation.
type Options struct {
	Format Format

	// Writer is the output destination. Defaults to stdout.
	Writer io.Writer

	// MinConfidence annotates which results cleared the usability bar.
	MinConfidence float64
}

// New creates a reporter for the requested format.
func New(opts Options) (Reporter, error) {
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}
	switch opts.Format {
	case FormatText, "":
		return &TextReporter{writer: opts.Writer, minConfidence: opts.MinConfidence}, nil
	case FormatCSV:
		return &CSVReporter{writer: opts.Writer}, nil
	case FormatJSON:
		return &JSONReporter{writer: opts.Writer}, nil
	case FormatMarkdown:
		return &MarkdownReporter{writer: opts.Writer}, nil
	default:
		return nil, fmt.Errorf("unknown format: %q", opts.Format)
	}
}

// methodCounts returns per-method totals sorted by method name for stable
// output.
func methodCounts(batch match.BatchResult) []methodCount {
	out := make([]methodCount, 0, len(batch.Summary.ByMethod))
	for m, n := range batch.Summary.ByMethod {
		out = append(out, methodCount{Method: string(m), Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Method < out[j].Method })
	return out
}

type methodCount struct {
	Method string `json:"method"`
	Count  int    `json:"count"`
}

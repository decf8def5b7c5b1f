package reporter

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/wharflab/gauge/internal/match"
)

// CSVReporter writes one row per matched image. Unmatched images are the
// caller's concern (they go to a separate follow-up list).
type CSVReporter struct {
	writer io.Writer
}

// NewCSVReporter creates a CSV reporter.
func NewCSVReporter(w io.Writer) *CSVReporter {
	return &CSVReporter{writer: w}
}

// Report implements Reporter.
func (r *CSVReporter) Report(batch match.BatchResult) error {
	w := csv.NewWriter(r.writer)
	header := []string{
		"source_image", "target_image", "method", "confidence",
		"upstream_image", "upstream_method", "reasoning",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, res := range batch.Results {
		if !res.Matched() {
			continue
		}
		var upImage, upMethod string
		if res.Upstream != nil {
			upImage = res.Upstream.Image
			upMethod = string(res.Upstream.Method)
		}
		row := []string{
			res.Source,
			res.Target,
			string(res.Method),
			fmt.Sprintf("%.2f", res.Confidence),
			upImage,
			upMethod,
			res.Reasoning,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

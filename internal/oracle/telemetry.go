package oracle

import (
	"encoding/json"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
)

// telemetryRecord is one line of the JSONL telemetry file.
type telemetryRecord struct {
	Timestamp   int64   `json:"timestamp"`
	SourceImage string  `json:"source_image"`
	Model       string  `json:"model"`
	Target      string  `json:"target,omitempty"`
	Confidence  float64 `json:"confidence"`
	Success     bool    `json:"success"`
	Cached      bool    `json:"cached"`
	LatencyMS   float64 `json:"latency_ms"`
}

// Telemetry appends one JSON line per oracle consultation, cache hits
// included. A nil Telemetry discards records.
type Telemetry struct {
	path string
}

// NewTelemetry creates a telemetry sink writing to path.
func NewTelemetry(path string) *Telemetry { return &Telemetry{path: path} }

// Record appends one entry. Write failures are logged, never surfaced.
func (t *Telemetry) Record(image, model string, sug Suggestion, success bool) {
	if t == nil {
		return
	}
	rec := telemetryRecord{
		Timestamp:   time.Now().Unix(),
		SourceImage: image,
		Model:       model,
		Target:      sug.Target,
		Confidence:  sug.Confidence,
		Success:     success,
		Cached:      sug.Cached,
		LatencyMS:   sug.LatencyMS,
	}
	line, err := json.Marshal(rec)
	if err != nil {
		log.WithError(err).Warn("marshaling oracle telemetry")
		return
	}
	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.WithError(err).Warn("opening oracle telemetry file")
		return
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		log.WithError(err).Warn("writing oracle telemetry")
	}
}

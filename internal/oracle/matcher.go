package oracle

import (
	"context"
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"
)

// Suggestion is the oracle's answer for one image. An empty Target with
// zero confidence means the oracle confidently found no equivalent.
type Suggestion struct {
	Target     string
	Confidence float64
	Reasoning  string
	Cached     bool
	LatencyMS  float64
}

// Found reports whether the oracle proposed a target.
func (s Suggestion) Found() bool { return s.Target != "" }

// Options configures a Matcher.
type Options struct {
	// Model names the completion model used for matching; it is also part
	// of the cache key, so changing models never reuses stale answers.
	Model string

	// TargetRegistry is the registry prefix the prompt instructs the model
	// to emit targets under.
	TargetRegistry string

	// Threshold is the minimum self-reported confidence considered a
	// success in telemetry. Default 0.7.
	Threshold float64
}

// Matcher consults the model, with a persistent cache in front of it.
// Match never returns an error: every failure mode degrades to a null
// suggestion carrying the reason.
type Matcher struct {
	client    Client
	cache     *Cache
	telemetry *Telemetry
	catalog   []string
	opts      Options
}

// NewMatcher creates a Matcher. cache and telemetry may be nil; catalog is
// the list of known target image names included in the prompt.
func NewMatcher(client Client, cache *Cache, telemetry *Telemetry, catalog []string, opts Options) *Matcher {
	if opts.Threshold <= 0 {
		opts.Threshold = 0.7
	}
	return &Matcher{client: client, cache: cache, telemetry: telemetry, catalog: catalog, opts: opts}
}

// response is the wire format the prompt demands.
type response struct {
	Target     *string `json:"target"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Match returns the oracle's suggestion for image. Cache hits skip the
// model call; every consultation, cached or not, is recorded in telemetry.
func (m *Matcher) Match(ctx context.Context, image string) Suggestion {
	if m.cache != nil {
		sug, ok, err := m.cache.Get(image, m.opts.Model)
		if err != nil {
			log.WithError(err).Warn("oracle cache lookup failed")
		} else if ok {
			log.WithField("image", image).Debug("oracle cache hit")
			m.telemetry.Record(image, m.opts.Model, sug, sug.Confidence >= m.opts.Threshold)
			return sug
		}
	}

	sug := m.consult(ctx, image)

	if m.cache != nil {
		if err := m.cache.Put(image, m.opts.Model, sug); err != nil {
			log.WithError(err).Warn("oracle cache write failed")
		}
	}
	m.telemetry.Record(image, m.opts.Model, sug, sug.Confidence >= m.opts.Threshold)
	return sug
}

// requestTimeout bounds one model call. A timeout reads as a failed
// request, so it degrades to a null suggestion like any other error.
const requestTimeout = 60 * time.Second

func (m *Matcher) consult(ctx context.Context, image string) Suggestion {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	start := time.Now()
	prompt := buildPrompt(image, m.opts.TargetRegistry, m.catalog)

	raw, err := m.client.Complete(ctx, m.opts.Model, prompt)
	latency := float64(time.Since(start).Milliseconds())
	if err != nil {
		log.WithError(err).WithField("image", image).Warn("oracle request failed")
		return Suggestion{Reasoning: "request failed: " + err.Error(), LatencyMS: latency}
	}

	var resp response
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &resp); err != nil {
		log.WithError(err).WithField("image", image).Warn("oracle returned unparseable response")
		return Suggestion{Reasoning: "unparseable response: " + err.Error(), LatencyMS: latency}
	}

	sug := Suggestion{
		Confidence: resp.Confidence,
		Reasoning:  resp.Reasoning,
		LatencyMS:  latency,
	}
	if resp.Target != nil {
		sug.Target = *resp.Target
	}
	if !sug.Found() {
		sug.Confidence = 0
	}
	return sug
}

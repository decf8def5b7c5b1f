package match

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/wharflab/gauge/internal/heuristic"
	"github.com/wharflab/gauge/internal/imageref"
	"github.com/wharflab/gauge/internal/mappings"
	"github.com/wharflab/gauge/internal/oracle"
	"github.com/wharflab/gauge/internal/registry"
	"github.com/wharflab/gauge/internal/upstream"
)

// publicRegistry is rewritten to the configured target registry in mapping
// targets, so community entries pointing at the public catalog resolve to
// the customer's private mirror.
const publicRegistry = "cgr.dev/chainguard"

// tier is one matching strategy. A nil result means "try the next tier".
type tier interface {
	name() string
	tryMatch(ctx context.Context, image string) *Result
}

// Config wires an Engine. Community and Manual may be empty tables; Oracle
// and Upstream may be nil to disable those stages.
type Config struct {
	TargetRegistry  string
	Community       *mappings.Table
	Manual          *mappings.Table
	Heuristic       *heuristic.Matcher
	Oracle          *oracle.Matcher
	OracleThreshold float64
	Upstream        *upstream.Finder
	Checker         registry.Checker
}

// Engine runs the tier cascade. It returns the first tier hit as-is and
// never filters by confidence; callers decide what is usable.
type Engine struct {
	deterministic []tier
	all           []tier
	upstream      *upstream.Finder
}

// NewEngine builds the cascade from cfg. Tier order: manual override
// (1.00), community mapping (0.95), heuristic (0.85), oracle (self-reported).
func NewEngine(cfg Config) *Engine {
	community := &mappingTier{
		tierName:   "community",
		table:      cfg.Community,
		registry:   cfg.TargetRegistry,
		confidence: 0.95,
		method:     MethodExactMapping,
		byBaseName: true,
	}
	manual := &mappingTier{
		tierName:   "manual",
		table:      cfg.Manual,
		registry:   cfg.TargetRegistry,
		confidence: 1.0,
		method:     MethodManualOverride,
	}

	// Manual overrides outrank the community table: when both carry an
	// entry for the same source, the hand-written one wins.
	e := &Engine{
		deterministic: []tier{manual, community},
		upstream:      cfg.Upstream,
	}
	e.all = []tier{manual, community}
	if cfg.Heuristic != nil {
		e.all = append(e.all, &heuristicTier{matcher: cfg.Heuristic})
	}
	if cfg.Oracle != nil {
		threshold := cfg.OracleThreshold
		if threshold <= 0 {
			threshold = 0.7
		}
		e.all = append(e.all, &oracleTier{
			matcher:   cfg.Oracle,
			checker:   cfg.Checker,
			registry:  cfg.TargetRegistry,
			threshold: threshold,
		})
	}
	return e
}

// Match resolves one image. Explicit mapping tiers are tried against the
// original reference first; only when they miss does upstream discovery
// rewrite the reference for the full cascade.
func (e *Engine) Match(ctx context.Context, image string) Result {
	for _, t := range e.deterministic {
		if res := t.tryMatch(ctx, image); res != nil {
			res.Source = image
			return *res
		}
	}

	var up *upstream.Result
	toMatch := image
	if e.upstream != nil {
		if found := e.upstream.FindUpstream(ctx, image); found.Found() {
			log.WithField("image", image).WithField("upstream", found.Image).
				WithField("method", found.Method).Info("upstream discovered")
			up = &found
			toMatch = found.Image
		}
	}

	for _, t := range e.all {
		if res := t.tryMatch(ctx, toMatch); res != nil {
			res.Source = image
			res.Upstream = up
			return *res
		}
	}

	log.WithField("image", toMatch).Debug("no match in any tier")
	return noMatch(image, up)
}

// mappingTier resolves via a mapping table. The community table is keyed by
// base image name; the manual table by full reference, with a base-name
// fallback so hand-written short entries still hit.
type mappingTier struct {
	tierName   string
	table      *mappings.Table
	registry   string
	confidence float64
	method     Method
	byBaseName bool
}

func (t *mappingTier) name() string { return t.tierName }

func (t *mappingTier) tryMatch(_ context.Context, image string) *Result {
	if t.table == nil {
		return nil
	}
	key := image
	if t.byBaseName {
		key = imageref.BaseName(image)
	}
	target, ok := t.table.Lookup(key)
	if !ok && !t.byBaseName {
		target, ok = t.table.Lookup(imageref.BaseName(image))
	}
	if !ok {
		return nil
	}
	target = retarget(target, t.registry)
	log.WithField("image", image).WithField("target", target).
		Debugf("%s mapping hit", t.tierName)
	return &Result{Target: target, Confidence: t.confidence, Method: t.method}
}

// retarget rewrites public-catalog targets onto the configured registry and
// normalizes bare names.
func retarget(target, targetRegistry string) string {
	if strings.HasPrefix(target, publicRegistry+"/") {
		target = targetRegistry + "/" + strings.TrimPrefix(target, publicRegistry+"/")
	}
	return mappings.NormalizeTarget(target, targetRegistry)
}

type heuristicTier struct {
	matcher *heuristic.Matcher
}

func (t *heuristicTier) name() string { return "heuristic" }

func (t *heuristicTier) tryMatch(ctx context.Context, image string) *Result {
	target, ok := t.matcher.Match(ctx, image)
	if !ok {
		return nil
	}
	return &Result{Target: target, Confidence: 0.85, Method: MethodHeuristic}
}

// oracleTier consults the LLM oracle and guards against hallucinated
// targets by verifying the suggestion (and its common aliases) before
// accepting it.
type oracleTier struct {
	matcher   *oracle.Matcher
	checker   registry.Checker
	registry  string
	threshold float64
}

func (t *oracleTier) name() string { return "oracle" }

func (t *oracleTier) tryMatch(ctx context.Context, image string) *Result {
	sug := t.matcher.Match(ctx, image)
	if !sug.Found() || sug.Confidence < t.threshold {
		return nil
	}

	verified, ok := t.verifyWithAliases(ctx, sug.Target)
	if !ok {
		log.WithField("image", image).WithField("suggested", sug.Target).
			Warn("oracle suggested an image that does not exist")
		return nil
	}
	return &Result{
		Target:     verified,
		Confidence: sug.Confidence,
		Method:     MethodFuzzyOracle,
		Reasoning:  sug.Reasoning,
	}
}

// nameAliases are spellings that differ between upstream ecosystems and the
// Chainguard catalog, tried in both directions.
var nameAliases = map[string]string{
	"postgresql": "postgres",
	"postgres":   "postgresql",
	"nodejs":     "node",
	"node":       "nodejs",
}

func (t *oracleTier) verifyWithAliases(ctx context.Context, target string) (string, bool) {
	if t.checker == nil {
		return target, true
	}
	if t.checker.Exists(ctx, target) {
		return target, true
	}

	ref := imageref.Parse(target)
	if ref.Registry == "" {
		return target, false
	}
	for _, alias := range aliasesFor(ref.Name) {
		aliased := ref
		aliased.Name = alias
		candidate := aliased.String()
		if t.checker.Exists(ctx, candidate) {
			log.WithField("suggested", target).WithField("alias", candidate).
				Debug("oracle target found under alias")
			return candidate, true
		}
	}
	return target, false
}

func aliasesFor(name string) []string {
	var out []string
	if alias, ok := nameAliases[name]; ok {
		out = append(out, alias)
	}
	for old, subst := range nameAliases {
		if strings.HasPrefix(name, old+"-") {
			out = append(out, subst+strings.TrimPrefix(name, old))
		}
	}
	return out
}

// Package match orchestrates the tiered resolution of customer images to
// Chainguard equivalents: community mappings, manual overrides, verified
// name heuristics, then the LLM oracle.
package match

import "github.com/wharflab/gauge/internal/upstream"

// Method identifies which tier produced a match.
type Method string

const (
	MethodExactMapping   Method = "exact_mapping"
	MethodManualOverride Method = "manual_override"
	MethodHeuristic      Method = "heuristic"
	MethodFuzzyOracle    Method = "fuzzy_oracle"
	MethodInteractive    Method = "interactive"
	MethodNone           Method = "none"
)

// Result is the outcome of resolving one image.
//
// Invariant: Target == "" iff Confidence == 0 iff Method == MethodNone.
type Result struct {
	// Source is the image the lookup was made for.
	Source string

	// Target is the resolved Chainguard reference, empty on no match.
	Target string

	Confidence float64
	Method     Method

	// Reasoning is populated only for oracle-derived results.
	Reasoning string

	// Alternatives holds runner-up candidates for interactive flows.
	Alternatives []string

	// Upstream reports the discovery that rewrote the source before
	// matching, nil when discovery was disabled or found nothing.
	Upstream *upstream.Result
}

// Matched reports whether any tier produced a target.
func (r Result) Matched() bool { return r.Target != "" }

func noMatch(source string, up *upstream.Result) Result {
	return Result{Source: source, Method: MethodNone, Upstream: up}
}

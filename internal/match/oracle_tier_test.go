package match

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wharflab/gauge/internal/mappings"
	"github.com/wharflab/gauge/internal/oracle"
)

// cannedClient always returns the same completion.
type cannedClient struct {
	response string
	calls    int
}

func (c *cannedClient) Complete(_ context.Context, _, _ string) (string, error) {
	c.calls++
	return c.response, nil
}

func newOracleEngine(client oracle.Client, checker existsSet) *Engine {
	m := oracle.NewMatcher(client, nil, nil, nil, oracle.Options{
		Model:          "test-model",
		TargetRegistry: testRegistry,
	})
	return NewEngine(Config{
		TargetRegistry: testRegistry,
		Community:      mappings.NewTable(nil),
		Manual:         mappings.NewTable(nil),
		Oracle:         m,
		Checker:        checker,
	})
}

func TestOracleTierVerifiedMatch(t *testing.T) {
	client := &cannedClient{response: `{"target": "` + testRegistry + `/argo-exec:latest", "confidence": 0.8, "reasoning": "argo workflow executor"}`}
	e := newOracleEngine(client, existsSet{testRegistry + "/argo-exec:latest": true})

	res := e.Match(context.Background(), "argoproj/argoexec:v3.5")
	require.True(t, res.Matched())
	assert.Equal(t, MethodFuzzyOracle, res.Method)
	assert.Equal(t, testRegistry+"/argo-exec:latest", res.Target)
	assert.InDelta(t, 0.8, res.Confidence, 1e-9)
	assert.Equal(t, "argo workflow executor", res.Reasoning)
}

func TestOracleTierRejectsHallucination(t *testing.T) {
	client := &cannedClient{response: `{"target": "` + testRegistry + `/made-up-image:latest", "confidence": 0.9, "reasoning": "looks right"}`}
	e := newOracleEngine(client, existsSet{})

	res := e.Match(context.Background(), "corp/mystery:1.0")
	assert.False(t, res.Matched())
	assert.Equal(t, MethodNone, res.Method)
}

func TestOracleTierAliasRescue(t *testing.T) {
	// The oracle says postgresql; the catalog spells it postgres.
	client := &cannedClient{response: `{"target": "` + testRegistry + `/postgresql:latest", "confidence": 0.85, "reasoning": "same database"}`}
	e := newOracleEngine(client, existsSet{testRegistry + "/postgres:latest": true})

	res := e.Match(context.Background(), "corp/pg:16")
	require.True(t, res.Matched())
	assert.Equal(t, testRegistry+"/postgres:latest", res.Target)
	assert.Equal(t, MethodFuzzyOracle, res.Method)
}

func TestOracleTierBelowThresholdSkipped(t *testing.T) {
	client := &cannedClient{response: `{"target": "` + testRegistry + `/nginx:latest", "confidence": 0.4, "reasoning": "weak guess"}`}
	e := newOracleEngine(client, existsSet{testRegistry + "/nginx:latest": true})

	res := e.Match(context.Background(), "corp/webthing:1.0")
	assert.False(t, res.Matched())
}

func TestAliasesFor(t *testing.T) {
	assert.Contains(t, aliasesFor("postgresql"), "postgres")
	assert.Contains(t, aliasesFor("node"), "nodejs")
	assert.Contains(t, aliasesFor("postgres-iamguarded"), "postgresql-iamguarded")
	assert.Empty(t, aliasesFor("nginx"))
}

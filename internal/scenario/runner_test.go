package scenario

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestClaimScenarioFile(t *testing.T) {
	result, err := LoadAndRun("testdata/claim.yaml")
	require.NoError(t, err)

	assert.Equal(t, "earthquake claims", result.Name)
	assert.Equal(t, 15, result.Total)
	for _, c := range result.Cases {
		assert.True(t, c.Passed, "case %d %q: %s", c.Index, c.Name, c.Failure)
		assert.Equal(t, c.Structured.Decision, c.Raw.Decision, c.Name)
	}
}

func TestPaymentScenarioFile(t *testing.T) {
	result, err := LoadAndRun("testdata/payment.yaml")
	require.NoError(t, err)

	assert.Equal(t, 8, result.Total)
	assert.Zero(t, result.Failed)
	for _, c := range result.Cases {
		assert.True(t, c.Passed, "case %d %q: %s", c.Index, c.Name, c.Failure)
	}
}

func TestCaseOverridesDefaults(t *testing.T) {
	s := parse(t, `
name: overlay
policy: claim
defaults:
  threshold: 700
  registry: {West: west-feed}
  policy: {owner: alice, region: West, insured_amount: 100, start_time: 0, end_time: 1000}
  feed: {mantissa: 800, scale: 2, num_success: 1, min_responses: 1, updated_at: 10}
  amount: 50
  now: 10
cases:
  - name: nested override keeps siblings
    feed: {mantissa: 650}
    expect: deny
    reasons: [MagnitudeBelowThreshold]
  - name: defaults untouched by previous case
    expect: allow
`)
	result := Run(s)
	require.Len(t, result.Cases, 2)
	assert.True(t, result.Cases[0].Passed, result.Cases[0].Failure)
	assert.True(t, result.Cases[1].Passed, result.Cases[1].Failure)
}

func TestWrongExpectationFails(t *testing.T) {
	s := parse(t, `
name: wrong
policy: claim
defaults:
  threshold: 700
  registry: {West: west-feed}
  policy: {owner: alice, region: West, insured_amount: 100, end_time: 1000}
  feed: {mantissa: 800, scale: 2, num_success: 1, min_responses: 1, updated_at: 10}
  amount: 50
  now: 10
cases:
  - name: expects deny but allowed
    expect: deny
  - name: wrong reason
    amount: 101
    expect: deny
    reasons: [InvalidFeed]
`)
	result := Run(s)
	assert.Equal(t, 2, result.Failed)
	assert.Contains(t, result.Cases[0].Failure, "expected deny, got allow")
	assert.Contains(t, result.Cases[1].Failure, "not in")
}

func TestUnknownPolicyFailsCase(t *testing.T) {
	s := parse(t, `
name: bad
policy: refund
cases:
  - name: anything
`)
	result := Run(s)
	require.Len(t, result.Cases, 1)
	assert.False(t, result.Cases[0].Passed)
	assert.Contains(t, result.Cases[0].Failure, "unknown policy")
}

func TestMissingRegionFailsCase(t *testing.T) {
	s := parse(t, `
name: bad
policy: claim
cases:
  - policy: {owner: alice}
`)
	result := Run(s)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, "case 1", result.Cases[0].Name)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadAndRun("testdata/nope.yaml")
	assert.Error(t, err)
}

func TestFormatText(t *testing.T) {
	results := []*RunResult{
		{Name: "good", Total: 2, Passed: 2},
		{Name: "bad", Total: 2, Passed: 1, Failed: 1, Cases: []CaseResult{
			{Index: 1, Name: "fine", Passed: true},
			{Index: 2, Name: "broken", Failure: "paths disagree: structured allow, raw deny"},
		}},
	}
	out := FormatText(results)
	assert.Contains(t, out, "Checking 2 scenario files")
	assert.Contains(t, out, "PASS  good (2/2)")
	assert.Contains(t, out, "FAIL  bad (1/2)")
	assert.Contains(t, out, "case 2: broken")
	assert.Contains(t, out, "3 of 4 cases passed. 1 of 2 scenarios failed.")
	assert.NotContains(t, out, "case 1:")
}

func TestFormatJSON(t *testing.T) {
	out, err := FormatJSON([]*RunResult{{Name: "x", Total: 1, Passed: 1}})
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, `"name": "x"`))
}

func parse(t *testing.T, src string) *Scenario {
	t.Helper()
	var s Scenario
	require.NoError(t, yaml.Unmarshal([]byte(src), &s))
	return &s
}

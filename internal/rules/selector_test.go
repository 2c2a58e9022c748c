package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tpa-platform/pricing-engine/internal/types"
)

func day(s string) time.Time {
	t, err := time.Parse(types.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func makeRule(id int64, priority int, from string, to *string, conds ...types.Condition) types.Rule {
	price := 100.0
	r := types.Rule{
		ID: id, ProcedureID: 61, PriceListID: 3, Priority: priority,
		Body: types.RuleBody{
			Conditions: conds,
			Pricing:    types.Pricing{Mode: types.ModeFixed, FixedPrice: &price},
		},
		ValidFrom: day(from),
	}
	if to != nil {
		end := day(*to)
		r.ValidTo = &end
	}
	return r
}

func TestSelectValidityWindowIsHalfOpen(t *testing.T) {
	to := "2025-01-11"
	rule := makeRule(1, 1, "2025-01-01", &to)
	ruleSet := []types.Rule{rule}
	factors := map[string]interface{}{}

	tests := []struct {
		date    string
		matches bool
	}{
		{"2024-12-31", false}, // D-1
		{"2025-01-01", true},  // D
		{"2025-01-10", true},  // D+9
		{"2025-01-11", false}, // D+10
	}
	for _, tt := range tests {
		sel := Select(ruleSet, 61, 3, day(tt.date), factors, Registry{})
		if tt.matches {
			require.NotNil(t, sel.Rule, "date %s", tt.date)
		} else {
			assert.Nil(t, sel.Rule, "date %s", tt.date)
			assert.Empty(t, sel.Trace, "date %s", tt.date)
			assert.Equal(t, "no active rule for date", sel.Reason)
		}
	}
}

func TestSelectOpenEndedWindow(t *testing.T) {
	ruleSet := []types.Rule{makeRule(1, 1, "2025-01-01", nil)}
	sel := Select(ruleSet, 61, 3, day("2030-06-01"), map[string]interface{}{}, Registry{})
	require.NotNil(t, sel.Rule)
}

func TestSelectLowestPriorityWins(t *testing.T) {
	ruleSet := []types.Rule{
		makeRule(10, 2, "2025-01-01", nil),
		makeRule(20, 1, "2025-01-01", nil),
	}
	sel := Select(ruleSet, 61, 3, day("2025-06-01"), map[string]interface{}{}, Registry{})
	require.NotNil(t, sel.Rule)
	assert.Equal(t, int64(20), sel.Rule.ID)
	assert.Equal(t, "rule 20 selected by priority 1", sel.Reason)
}

func TestSelectPriorityTieBreaksOnSmallestID(t *testing.T) {
	ruleSet := []types.Rule{
		makeRule(7, 1, "2025-01-01", nil),
		makeRule(3, 1, "2025-01-01", nil),
	}
	sel := Select(ruleSet, 61, 3, day("2025-06-01"), map[string]interface{}{}, Registry{})
	require.NotNil(t, sel.Rule)
	assert.Equal(t, int64(3), sel.Rule.ID)
}

func TestSelectFiltersByProcedureAndPriceList(t *testing.T) {
	other := makeRule(1, 1, "2025-01-01", nil)
	other.ProcedureID = 99
	ruleSet := []types.Rule{other}

	sel := Select(ruleSet, 61, 3, day("2025-06-01"), map[string]interface{}{}, Registry{})
	assert.Nil(t, sel.Rule)
	assert.Empty(t, sel.Trace)
}

func TestSelectNoMatchTracesEveryCandidate(t *testing.T) {
	ruleSet := []types.Rule{
		makeRule(1, 1, "2025-01-01", nil, types.Condition{Factor: "providerTier", Operator: OpEq, Value: "A"}),
		makeRule(2, 2, "2025-01-01", nil, types.Condition{Factor: "providerTier", Operator: OpEq, Value: "B"}),
	}
	factors := map[string]interface{}{"providerTier": "C"}

	sel := Select(ruleSet, 61, 3, day("2025-06-01"), factors, Registry{})
	assert.Nil(t, sel.Rule)
	assert.Equal(t, "no rule conditions matched", sel.Reason)
	require.Len(t, sel.Trace, 2)

	for _, entry := range sel.Trace {
		assert.False(t, entry.Matched)
		require.NotEmpty(t, entry.FailedConditions)
		assert.Equal(t, "providerTier", entry.FailedConditions[0].Factor)
		assert.Equal(t, "C", entry.FailedConditions[0].Actual)
	}
}

func TestSelectTraceIncludesMatchedAndUnmatched(t *testing.T) {
	ruleSet := []types.Rule{
		makeRule(1, 1, "2025-01-01", nil, types.Condition{Factor: "providerTier", Operator: OpEq, Value: "A"}),
		makeRule(2, 2, "2025-01-01", nil),
	}
	factors := map[string]interface{}{"providerTier": "A"}

	sel := Select(ruleSet, 61, 3, day("2025-06-01"), factors, Registry{})
	require.NotNil(t, sel.Rule)
	assert.Equal(t, int64(1), sel.Rule.ID)
	require.Len(t, sel.Trace, 2)

	assert.True(t, sel.Trace[0].Matched)
	assert.Empty(t, sel.Trace[0].FailedConditions)
	assert.True(t, sel.Trace[1].Matched)
}

func TestSelectExcludesInvalidRule(t *testing.T) {
	invalid := makeRule(1, 1, "2025-01-01", nil)
	invalid.Body.Pricing.Mode = "SURCHARGE"
	valid := makeRule(2, 2, "2025-01-01", nil)
	ruleSet := []types.Rule{invalid, valid}

	sel := Select(ruleSet, 61, 3, day("2025-06-01"), map[string]interface{}{}, Registry{})
	require.NotNil(t, sel.Rule)
	assert.Equal(t, int64(2), sel.Rule.ID)

	// The invalid rule still appears in the trace as unmatched, with an
	// entry explaining why it was excluded.
	require.Len(t, sel.Trace, 2)
	assert.Equal(t, int64(1), sel.Trace[0].RuleID)
	assert.False(t, sel.Trace[0].Matched)
	require.NotEmpty(t, sel.Trace[0].FailedConditions)
	assert.Equal(t, "ruleJson", sel.Trace[0].FailedConditions[0].Factor)
	assert.Contains(t, sel.Trace[0].FailedConditions[0].Actual, "SURCHARGE")
}

func TestSelectMissingFactorFailsRuleNotCall(t *testing.T) {
	ruleSet := []types.Rule{
		makeRule(1, 1, "2025-01-01", nil, types.Condition{Factor: "unknownFactor", Operator: OpEq, Value: "x"}),
	}

	var sel Selection
	assert.NotPanics(t, func() {
		sel = Select(ruleSet, 61, 3, day("2025-06-01"), map[string]interface{}{}, Registry{})
	})
	assert.Nil(t, sel.Rule)
	require.Len(t, sel.Trace, 1)
	require.Len(t, sel.Trace[0].FailedConditions, 1)
	assert.Nil(t, sel.Trace[0].FailedConditions[0].Actual)
}

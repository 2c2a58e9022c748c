package engine

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tpa-platform/pricing-engine/internal/store"
	"github.com/tpa-platform/pricing-engine/internal/types"
)

func day(s string) time.Time {
	t, err := time.Parse(types.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func fp(v float64) *float64 { return &v }

func seedStore(t *testing.T) *store.Memory {
	t.Helper()
	m := store.NewMemory()
	m.SeedFactor(types.Factor{Key: "providerTier", DataType: types.FactorSelect})
	m.SeedFactor(types.Factor{Key: "patientAge", DataType: types.FactorNumber})

	_, err := m.CreateRule(context.Background(), types.Rule{
		ID: 1, ProcedureID: 61, PriceListID: 3, Priority: 1,
		Body: types.RuleBody{
			Conditions: []types.Condition{{Factor: "providerTier", Operator: "eq", Value: "A"}},
			Pricing:    types.Pricing{Mode: types.ModeFixed, FixedPrice: fp(100)},
		},
		ValidFrom: day("2025-01-01"),
	})
	require.NoError(t, err)
	return m
}

func calcRequest() types.CalculationRequest {
	return types.CalculationRequest{
		ProcedureID:       61,
		PriceListID:       3,
		InsuranceDegreeID: 2,
		Factors:           map[string]interface{}{"providerTier": "A"},
		Date:              "2025-06-01",
	}
}

func TestCalculateFixedRuleEndToEnd(t *testing.T) {
	eng := New(seedStore(t), nil)

	resp, err := eng.Calculate(context.Background(), calcRequest())
	require.NoError(t, err)

	assert.True(t, resp.Covered)
	require.NotNil(t, resp.FinalPrice)
	assert.Equal(t, 100.0, *resp.FinalPrice)
	require.NotNil(t, resp.SelectedRuleID)
	assert.Equal(t, int64(1), *resp.SelectedRuleID)
	require.NotNil(t, resp.SelectedRule)
	require.NotNil(t, resp.InsuranceDegreeID)
	assert.Equal(t, int64(2), *resp.InsuranceDegreeID)
	assert.Equal(t, "2025-06-01", resp.Date)

	require.Len(t, resp.EvaluatedRules, 1)
	assert.True(t, resp.EvaluatedRules[0].Matched)
	assert.Empty(t, resp.EvaluatedRules[0].FailedConditions)
	require.NotNil(t, resp.SelectionReason)
	assert.Equal(t, "rule 1 selected by priority 1", *resp.SelectionReason)
}

func TestCalculateIsDeterministic(t *testing.T) {
	eng := New(seedStore(t), nil)

	first, err := eng.Calculate(context.Background(), calcRequest())
	require.NoError(t, err)
	second, err := eng.Calculate(context.Background(), calcRequest())
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCalculateNoMatchingRule(t *testing.T) {
	eng := New(seedStore(t), nil)

	req := calcRequest()
	req.Factors = map[string]interface{}{"providerTier": "B"}

	resp, err := eng.Calculate(context.Background(), req)
	require.NoError(t, err)

	assert.False(t, resp.Covered)
	assert.Nil(t, resp.FinalPrice)
	assert.Nil(t, resp.SelectedRuleID)
	require.NotNil(t, resp.CoverageReason)
	assert.Equal(t, "no rule conditions matched", *resp.CoverageReason)

	// The trace still explains why the candidate lost.
	require.Len(t, resp.EvaluatedRules, 1)
	assert.False(t, resp.EvaluatedRules[0].Matched)
	require.Len(t, resp.EvaluatedRules[0].FailedConditions, 1)
	assert.Equal(t, "providerTier", resp.EvaluatedRules[0].FailedConditions[0].Factor)
}

func TestCalculateNotCoveredSerialization(t *testing.T) {
	eng := New(seedStore(t), nil)

	req := calcRequest()
	req.Date = "2024-06-01" // before any rule window

	resp, err := eng.Calculate(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, resp.Covered)

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	body := string(raw)

	// finalPrice is absent entirely; nullable identifiers are explicit null.
	assert.NotContains(t, body, "finalPrice")
	assert.Contains(t, body, `"selectedRuleId":null`)
	assert.Contains(t, body, `"coverageReason":"no active rule for date"`)
	assert.Contains(t, body, `"covered":false`)
}

func TestCalculateValidationErrors(t *testing.T) {
	eng := New(seedStore(t), nil)

	req := calcRequest()
	req.Date = ""
	req.Factors = map[string]interface{}{"patientAge": "not a number"}

	_, err := eng.Calculate(context.Background(), req)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "date")
	assert.Contains(t, verr.Fields, "factors.patientAge")
	assert.True(t, strings.HasPrefix(verr.Error(), "invalid request:"))
}

func TestCalculateBadDateFormat(t *testing.T) {
	eng := New(seedStore(t), nil)

	req := calcRequest()
	req.Date = "06/01/2025"

	_, err := eng.Calculate(context.Background(), req)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "date")
}

func TestCalculateExclusionGatesPricing(t *testing.T) {
	st := seedStore(t)
	st.SeedPolicyBinding(types.PolicyBinding{
		ID: 1, Type: types.BindingExclusion, ProcedureID: 61,
		Reason: "cosmetic procedure", ValidFrom: day("2025-01-01"),
	})
	eng := New(st, nil)

	resp, err := eng.Calculate(context.Background(), calcRequest())
	require.NoError(t, err)

	assert.False(t, resp.Covered)
	assert.Nil(t, resp.FinalPrice)
	require.NotNil(t, resp.CoverageReason)
	assert.Equal(t, "cosmetic procedure", *resp.CoverageReason)
	// The rule was still selected before coverage cut in.
	require.NotNil(t, resp.SelectedRuleID)
	assert.Equal(t, int64(1), *resp.SelectedRuleID)
}

func TestCalculatePreapprovalOnFinalPrice(t *testing.T) {
	st := seedStore(t)
	st.SeedPolicyBinding(types.PolicyBinding{
		ID: 1, Type: types.BindingPreapproval, ProcedureID: 61,
		Reason: "high cost service", ThresholdAmount: fp(80),
		ValidFrom: day("2025-01-01"),
	})
	eng := New(st, nil)

	resp, err := eng.Calculate(context.Background(), calcRequest())
	require.NoError(t, err)

	assert.True(t, resp.Covered)
	require.NotNil(t, resp.FinalPrice)
	assert.Equal(t, 100.0, *resp.FinalPrice)
	assert.True(t, resp.RequiresPreapproval)
	require.NotNil(t, resp.PreapprovalReason)
	assert.Equal(t, "high cost service", *resp.PreapprovalReason)
}

func TestCalculatePointsRuleUsesPointRate(t *testing.T) {
	st := seedStore(t)
	_, err := st.CreateRule(context.Background(), types.Rule{
		ID: 2, ProcedureID: 62, PriceListID: 3, Priority: 1,
		Body: types.RuleBody{
			Pricing: types.Pricing{Mode: types.ModePoints, Points: fp(10)},
		},
		ValidFrom: day("2025-01-01"),
	})
	require.NoError(t, err)
	_, err = st.CreatePointRate(context.Background(), types.PointRate{
		ID: 1, PointPrice: 5,
		InsuranceDegree: &types.DegreeSummary{ID: 2},
		ValidFrom:       day("2025-01-01"),
	})
	require.NoError(t, err)

	eng := New(st, nil)
	req := calcRequest()
	req.ProcedureID = 62
	req.Factors = nil

	resp, err := eng.Calculate(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, resp.Covered)
	require.NotNil(t, resp.FinalPrice)
	assert.Equal(t, 50.0, *resp.FinalPrice)
	require.NotNil(t, resp.PointRateUsed)
	assert.Equal(t, int64(1), resp.PointRateUsed.ID)
}

func TestCalculatePointsRuleWithoutRateFails(t *testing.T) {
	st := seedStore(t)
	_, err := st.CreateRule(context.Background(), types.Rule{
		ID: 2, ProcedureID: 62, PriceListID: 3, Priority: 1,
		Body: types.RuleBody{
			Pricing: types.Pricing{Mode: types.ModePoints, Points: fp(10)},
		},
		ValidFrom: day("2025-01-01"),
	})
	require.NoError(t, err)

	eng := New(st, nil)
	req := calcRequest()
	req.ProcedureID = 62
	req.Factors = nil

	_, err = eng.Calculate(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "point rate")
}

func TestCalculateTiedPeriodDiscountsResolveStably(t *testing.T) {
	st := seedStore(t)
	for _, id := range []int64{10, 9} {
		_, err := st.CreatePeriodDiscount(context.Background(), types.PeriodDiscount{
			ID: id, ProcedureID: 61, DiscountPct: 25, Period: 3, PeriodUnit: "MONTH",
			ValidFrom: day("2025-01-01"),
		})
		require.NoError(t, err)
	}
	eng := New(st, nil)

	// Equal percentages must resolve to the same winner on every call.
	for i := 0; i < 20; i++ {
		resp, err := eng.Calculate(context.Background(), calcRequest())
		require.NoError(t, err)
		require.NotNil(t, resp.DiscountApplied)
		require.NotNil(t, resp.DiscountApplied.DiscountID)
		assert.Equal(t, int64(9), *resp.DiscountApplied.DiscountID)
		require.NotNil(t, resp.FinalPrice)
		assert.Equal(t, 75.0, *resp.FinalPrice)
	}
}

func TestCalculateDuplicateExclusionsYieldStableReason(t *testing.T) {
	st := seedStore(t)
	st.SeedPolicyBinding(types.PolicyBinding{
		ID: 2, Type: types.BindingExclusion, ProcedureID: 61,
		Reason: "out of network", ValidFrom: day("2025-01-01"),
	})
	st.SeedPolicyBinding(types.PolicyBinding{
		ID: 1, Type: types.BindingExclusion, ProcedureID: 61,
		Reason: "cosmetic procedure", ValidFrom: day("2025-01-01"),
	})
	eng := New(st, nil)

	for i := 0; i < 20; i++ {
		resp, err := eng.Calculate(context.Background(), calcRequest())
		require.NoError(t, err)
		require.NotNil(t, resp.CoverageReason)
		assert.Equal(t, "cosmetic procedure", *resp.CoverageReason)
	}
}

func TestCalculatePeriodDiscountFlowsThrough(t *testing.T) {
	st := seedStore(t)
	_, err := st.CreatePeriodDiscount(context.Background(), types.PeriodDiscount{
		ID: 9, ProcedureID: 61, DiscountPct: 25, Period: 1, PeriodUnit: "YEAR",
		ValidFrom: day("2025-01-01"),
	})
	require.NoError(t, err)

	eng := New(st, nil)
	resp, err := eng.Calculate(context.Background(), calcRequest())
	require.NoError(t, err)

	require.NotNil(t, resp.FinalPrice)
	assert.Equal(t, 75.0, *resp.FinalPrice)
	require.NotNil(t, resp.DiscountApplied)
	require.NotNil(t, resp.DiscountApplied.DiscountID)
	assert.Equal(t, int64(9), *resp.DiscountApplied.DiscountID)
	assert.Equal(t, 25.0, resp.DiscountApplied.Pct)
}

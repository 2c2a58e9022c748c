package golden_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tpa-platform/pricing-engine/internal/engine"
	"github.com/tpa-platform/pricing-engine/internal/store"
	"github.com/tpa-platform/pricing-engine/internal/types"
)

// GoldenTest represents a single golden test case
type GoldenTest struct {
	Name        string                     `json:"name"`
	Description string                     `json:"description"`
	Request     types.CalculationRequest   `json:"request"`
	Expected    *types.CalculationResponse `json:"expected"`
}

// TestGoldenCases runs every golden case against the shared fixture
func TestGoldenCases(t *testing.T) {
	testCases := []string{
		"fixed-01-simple-match",
		"points-02-degree-conversion",
		"adjust-03-discount-order",
		"range-04-clamp",
		"nomatch-05-unmatched-tier",
		"excluded-06-policy",
	}

	st, err := store.LoadFixture(filepath.Join("testdata", "fixture.json"))
	require.NoError(t, err, "Failed to load fixture")
	eng := engine.New(st, nil)

	for _, testName := range testCases {
		t.Run(testName, func(t *testing.T) {
			runGoldenTest(t, eng, testName)
		})
	}
}

func runGoldenTest(t *testing.T, eng *engine.Engine, testName string) {
	goldenPath := filepath.Join("testdata", "golden", testName+".json")
	goldenData, err := os.ReadFile(goldenPath)
	require.NoError(t, err, "Failed to read golden file")

	var golden GoldenTest
	err = json.Unmarshal(goldenData, &golden)
	require.NoError(t, err, "Failed to parse golden file")

	result, err := eng.Calculate(context.Background(), golden.Request)
	require.NoError(t, err, "Calculation failed")

	compareResponses(t, golden.Expected, result)
}

func compareResponses(t *testing.T, expected, actual *types.CalculationResponse) {
	assert.Equal(t, expected.ProcedureID, actual.ProcedureID, "Procedure mismatch")
	assert.Equal(t, expected.PriceListID, actual.PriceListID, "Price list mismatch")
	assert.Equal(t, expected.Date, actual.Date, "Date mismatch")
	assert.Equal(t, expected.Covered, actual.Covered, "Covered mismatch")

	if expected.FinalPrice == nil {
		assert.Nil(t, actual.FinalPrice, "Expected no final price")
	} else {
		require.NotNil(t, actual.FinalPrice, "Final price missing")
		// Allow 0.01 difference for floating point
		assert.InDelta(t, *expected.FinalPrice, *actual.FinalPrice, 0.01,
			"Final price mismatch")
	}

	if expected.SelectedRuleID != nil {
		require.NotNil(t, actual.SelectedRuleID, "Selected rule missing")
		assert.Equal(t, *expected.SelectedRuleID, *actual.SelectedRuleID,
			"Selected rule mismatch")
	}

	if expected.CoverageReason != nil {
		require.NotNil(t, actual.CoverageReason, "Coverage reason missing")
		assert.Equal(t, *expected.CoverageReason, *actual.CoverageReason,
			"Coverage reason mismatch")
	}

	if expected.PointRateUsed != nil {
		require.NotNil(t, actual.PointRateUsed, "Point rate missing")
		assert.Equal(t, expected.PointRateUsed.ID, actual.PointRateUsed.ID,
			"Point rate mismatch")
	}

	if expected.DiscountApplied != nil {
		require.NotNil(t, actual.DiscountApplied, "Discount missing")
		assert.InDelta(t, expected.DiscountApplied.Pct, actual.DiscountApplied.Pct, 0.01,
			"Discount pct mismatch")
		assert.Equal(t, expected.DiscountApplied.Period, actual.DiscountApplied.Period,
			"Discount period mismatch")
		assert.Equal(t, expected.DiscountApplied.Unit, actual.DiscountApplied.Unit,
			"Discount unit mismatch")
		if expected.DiscountApplied.DiscountID == nil {
			assert.Nil(t, actual.DiscountApplied.DiscountID,
				"Expected rule-embedded discount, got period discount")
		}
	}

	if len(expected.AdjustmentsApplied) > 0 {
		require.Len(t, actual.AdjustmentsApplied, len(expected.AdjustmentsApplied),
			"Adjustment count mismatch")
		for i, adj := range expected.AdjustmentsApplied {
			assert.Equal(t, adj.CaseMatched, actual.AdjustmentsApplied[i].CaseMatched,
				"Adjustment case mismatch")
			assert.InDelta(t, adj.Amount, actual.AdjustmentsApplied[i].Amount, 0.01,
				"Adjustment amount mismatch")
		}
	}
}

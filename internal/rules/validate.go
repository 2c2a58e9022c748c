package rules

import (
	"errors"
	"fmt"
	"time"

	"github.com/tpa-platform/pricing-engine/internal/types"
)

// ErrInvalidRule wraps all rule validation failures.
var ErrInvalidRule = errors.New("invalid rule")

// ValidateBody checks a rule body at load/store time: every operator must be
// one the evaluator implements, the pricing mode must be known, and the
// fields the mode depends on must be present. Unknown operators and modes
// are configuration errors caught here, never deferred to evaluation.
func ValidateBody(body types.RuleBody) error {
	var problems []string

	checkConditions := func(where string, conds []types.Condition) {
		for _, c := range conds {
			if c.Factor == "" {
				problems = append(problems, fmt.Sprintf("%s: condition missing factor", where))
			}
			if !OperatorSupported(c.Operator) {
				problems = append(problems, fmt.Sprintf("%s: unsupported operator %q", where, c.Operator))
			}
		}
	}

	checkConditions("conditions", body.Conditions)

	switch body.Pricing.Mode {
	case types.ModeFixed:
		if body.Pricing.FixedPrice == nil {
			problems = append(problems, "pricing: FIXED mode requires fixedPrice")
		}
	case types.ModePoints:
		if body.Pricing.Points == nil && body.Pricing.BasePoints == nil {
			problems = append(problems, "pricing: POINTS mode requires points or basePoints")
		}
	case types.ModeRange:
		if body.Pricing.MinPrice == nil && body.Pricing.MaxPrice == nil {
			problems = append(problems, "pricing: RANGE mode requires minPrice or maxPrice")
		}
	default:
		problems = append(problems, fmt.Sprintf("pricing: unsupported mode %q", body.Pricing.Mode))
	}

	for i, tier := range body.Pricing.Tiers {
		if tier.Condition != nil {
			checkConditions(fmt.Sprintf("pricing.tiers[%d]", i), []types.Condition{*tier.Condition})
		}
	}
	for i, cf := range body.Pricing.ConditionalFixed {
		checkConditions(fmt.Sprintf("pricing.conditionalFixed[%d]", i), cf.Conditions)
	}

	if body.Discount != nil {
		for i, block := range body.Discount.LogicBlocks {
			checkConditions(fmt.Sprintf("discount.logicBlocks[%d]", i), block.WhenConditions)
		}
	}

	for i, adj := range body.Adjustments {
		where := fmt.Sprintf("adjustments[%d]", i)
		if adj.FactorKey == "" && (len(adj.Cases) > 0 || len(adj.Tiers) > 0) {
			problems = append(problems, where+": cases/tiers require factorKey")
		}
		if len(adj.Cases) == 0 && adj.Percent == nil && len(adj.Tiers) == 0 && len(adj.LogicBlocks) == 0 {
			problems = append(problems, where+": no effect defined")
		}
		for j, block := range adj.LogicBlocks {
			checkConditions(fmt.Sprintf("%s.logicBlocks[%d]", where, j), block.WhenConditions)
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrInvalidRule, problems)
}

// ValidateRule checks the rule record and its body.
func ValidateRule(r types.Rule) error {
	var problems []string
	if r.ProcedureID <= 0 {
		problems = append(problems, "procedureId is required")
	}
	if r.PriceListID <= 0 {
		problems = append(problems, "priceListId is required")
	}
	if r.ValidFrom.IsZero() {
		problems = append(problems, "validFrom is required")
	}
	if r.ValidTo != nil && !r.ValidTo.After(r.ValidFrom) {
		problems = append(problems, "validTo must be after validFrom")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %v", ErrInvalidRule, problems)
	}
	return ValidateBody(r.Body)
}

// CoerceFloat exposes the evaluator's numeric coercion to the calculator
// for adjustment tier matching.
func CoerceFloat(v interface{}) (float64, bool) { return toFloat(v) }

// CoerceString exposes the evaluator's string coercion to the calculator
// for adjustment case lookup.
func CoerceString(v interface{}) string { return toString(v) }

// CoerceBool exposes the evaluator's boolean coercion for request
// validation.
func CoerceBool(v interface{}) (bool, bool) { return toBool(v) }

// CoerceDate exposes the evaluator's date parsing for request validation.
func CoerceDate(v interface{}) (time.Time, bool) { return toDate(v) }

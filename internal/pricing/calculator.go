package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/tpa-platform/pricing-engine/internal/rules"
	"github.com/tpa-platform/pricing-engine/internal/types"
)

// Inputs is the per-call snapshot the calculator works on. Nothing here is
// mutated during evaluation; concurrent calculations share nothing.
type Inputs struct {
	Rule              types.Rule
	Factors           map[string]interface{}
	Registry          rules.Registry
	PointRates        []types.PointRate
	PeriodDiscounts   []types.PeriodDiscount
	InsuranceDegreeID int64
	AsOf              time.Time
}

// Result carries the final price plus the trace entries naming which
// discount and adjustments fired.
type Result struct {
	FinalPrice         float64
	PointRateUsed      *types.PointRate
	DiscountApplied    *types.DiscountApplied
	AdjustmentsApplied []types.AdjustmentApplied
}

// Calculate computes the final price for an already-selected rule.
//
// Fixed order: base price per pricing mode (conditionalFixed overrides
// first-match) → adjustments in declaration order (add before percent
// within one adjustment) → discount on the post-adjustment price (rule
// discount vs. period discount, larger percentage wins, no stacking) →
// range clamp → floor at zero. The result is rounded to 2 decimal places.
func Calculate(in Inputs) (*Result, error) {
	res := &Result{}

	base, err := basePrice(in, res)
	if err != nil {
		return nil, err
	}
	price := base

	price = applyAdjustments(price, in, res)
	price = applyDiscount(price, in, res)
	price = clampRange(price, in.Rule.Body.Pricing)

	if price.IsNegative() {
		price = decimal.Zero
	}
	res.FinalPrice = price.Round(2).InexactFloat64()
	return res, nil
}

func basePrice(in Inputs, res *Result) (decimal.Decimal, error) {
	p := in.Rule.Body.Pricing

	// First conditionalFixed entry with fully matching conditions
	// overrides whatever the mode would compute.
	for _, cf := range p.ConditionalFixed {
		if rules.EvaluateAll(cf.Conditions, in.Factors, in.Registry) {
			return decimal.NewFromFloat(cf.Price), nil
		}
	}

	switch p.Mode {
	case types.ModeFixed:
		if p.FixedPrice == nil {
			return decimal.Zero, fmt.Errorf("rule %d: FIXED mode without fixedPrice", in.Rule.ID)
		}
		return decimal.NewFromFloat(*p.FixedPrice), nil

	case types.ModePoints:
		return pointsPrice(in, res)

	case types.ModeRange:
		// Nominal value: fixedPrice if set, else a points conversion if
		// points are set, else minPrice. Clamped at the end of the run.
		if p.FixedPrice != nil {
			return decimal.NewFromFloat(*p.FixedPrice), nil
		}
		if p.Points != nil || p.BasePoints != nil {
			return pointsPrice(in, res)
		}
		if p.MinPrice != nil {
			return decimal.NewFromFloat(*p.MinPrice), nil
		}
		return decimal.Zero, nil

	default:
		return decimal.Zero, fmt.Errorf("rule %d: unsupported pricing mode %q", in.Rule.ID, p.Mode)
	}
}

func pointsPrice(in Inputs, res *Result) (decimal.Decimal, error) {
	p := in.Rule.Body.Pricing

	points := 0.0
	switch {
	case p.Points != nil:
		points = *p.Points
	case p.BasePoints != nil:
		points = *p.BasePoints
	}

	// Tier overrides replace the point count when their condition matches.
	for _, tier := range p.Tiers {
		if tier.Condition == nil || rules.Evaluate(*tier.Condition, in.Factors, in.Registry) {
			points = tier.Points
			break
		}
	}

	if p.MinPoints != nil && points < *p.MinPoints {
		points = *p.MinPoints
	}
	if p.MaxPoints != nil && points > *p.MaxPoints {
		points = *p.MaxPoints
	}

	rate := ResolvePointRate(in.PointRates, in.InsuranceDegreeID, in.AsOf)
	if rate == nil {
		return decimal.Zero, fmt.Errorf("rule %d: no active point rate for insurance degree %d at %s",
			in.Rule.ID, in.InsuranceDegreeID, in.AsOf.Format(types.DateLayout))
	}
	res.PointRateUsed = rate
	return decimal.NewFromFloat(ConvertPoints(*rate, points)), nil
}

// applyAdjustments runs each adjustment in declaration order. For one
// adjustment: cases lookup by the driving factor's value, else the flat
// percent, else the first matching tier, else the first matching logic
// block. The additive amount applies before the percentage.
func applyAdjustments(price decimal.Decimal, in Inputs, res *Result) decimal.Decimal {
	for _, adj := range in.Rule.Body.Adjustments {
		before := price
		caseMatched := ""

		switch {
		case len(adj.Cases) > 0:
			key := rules.CoerceString(in.Factors[adj.FactorKey])
			effect, ok := adj.Cases[key]
			if !ok {
				continue
			}
			price = applyEffect(price, effect.Add, effect.Percent)
			caseMatched = key

		case adj.Percent != nil:
			price = applyEffect(price, 0, *adj.Percent)
			caseMatched = "percent"

		case len(adj.Tiers) > 0:
			fv, ok := rules.CoerceFloat(in.Factors[adj.FactorKey])
			if !ok {
				continue
			}
			matched := false
			for _, tier := range adj.Tiers {
				if fv >= tier.Value {
					price = applyEffect(price, tier.Add, tier.Percent)
					caseMatched = fmt.Sprintf("tier>=%v", tier.Value)
					matched = true
					break
				}
			}
			if !matched {
				continue
			}

		case len(adj.LogicBlocks) > 0:
			matched := false
			for i, block := range adj.LogicBlocks {
				if rules.EvaluateAll(block.WhenConditions, in.Factors, in.Registry) {
					price = applyEffect(price, block.Add, block.AddPercent)
					caseMatched = fmt.Sprintf("block[%d]", i)
					matched = true
					break
				}
			}
			if !matched {
				continue
			}

		default:
			continue
		}

		res.AdjustmentsApplied = append(res.AdjustmentsApplied, types.AdjustmentApplied{
			Type:        adj.Type,
			FactorKey:   adj.FactorKey,
			CaseMatched: caseMatched,
			Amount:      price.Sub(before).Round(2).InexactFloat64(),
		})
	}
	return price
}

func applyEffect(price decimal.Decimal, add, percent float64) decimal.Decimal {
	if add != 0 {
		price = price.Add(decimal.NewFromFloat(add))
	}
	if percent != 0 {
		factor := decimal.NewFromInt(1).Add(decimal.NewFromFloat(percent).Div(decimal.NewFromInt(100)))
		price = price.Mul(factor)
	}
	return price
}

// applyDiscount reduces the post-adjustment price by the winning discount
// percentage. The rule-embedded discount (first matching logic block) and
// the best active period discount are both computed; the larger percentage
// is applied and named in the trace. They never stack.
func applyDiscount(price decimal.Decimal, in Inputs, res *Result) decimal.Decimal {
	var applied *types.DiscountApplied

	if d := in.Rule.Body.Discount; d != nil && d.Apply {
		for _, block := range d.LogicBlocks {
			if rules.EvaluateAll(block.WhenConditions, in.Factors, in.Registry) {
				applied = &types.DiscountApplied{
					Pct:    block.Percent,
					Period: d.PeriodValue,
					Unit:   d.PeriodUnit,
				}
				break
			}
		}
	}

	for i := range in.PeriodDiscounts {
		pd := in.PeriodDiscounts[i]
		if pd.ProcedureID != in.Rule.ProcedureID || !pd.ActiveAt(in.AsOf) {
			continue
		}
		if applied != nil {
			if pd.DiscountPct < applied.Pct {
				continue
			}
			// Equal percentages resolve deterministically: the rule
			// discount wins, then the smallest period-discount id.
			if pd.DiscountPct == applied.Pct &&
				(applied.DiscountID == nil || *applied.DiscountID < pd.ID) {
				continue
			}
		}
		id := pd.ID
		applied = &types.DiscountApplied{
			DiscountID: &id,
			Pct:        pd.DiscountPct,
			Period:     pd.Period,
			Unit:       pd.PeriodUnit,
		}
	}

	if applied == nil || applied.Pct == 0 {
		return price
	}

	res.DiscountApplied = applied
	log.WithFields(log.Fields{
		"rule_id": in.Rule.ID,
		"pct":     applied.Pct,
	}).Debug("Discount applied")

	factor := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(applied.Pct).Div(decimal.NewFromInt(100)))
	return price.Mul(factor)
}

// clampRange re-applies the RANGE bounds after discounts and adjustments
// may have pushed the price outside them. Bounds on other modes are unused
// mode fields and are ignored.
func clampRange(price decimal.Decimal, p types.Pricing) decimal.Decimal {
	if p.Mode != types.ModeRange {
		return price
	}
	if p.MinPrice != nil {
		if min := decimal.NewFromFloat(*p.MinPrice); price.LessThan(min) {
			price = min
		}
	}
	if p.MaxPrice != nil {
		if max := decimal.NewFromFloat(*p.MaxPrice); price.GreaterThan(max) {
			price = max
		}
	}
	return price
}

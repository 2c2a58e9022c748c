// Package coverage derives the coverage and preapproval decision from
// policy bindings. This composes with, but is distinct from, price
// computation: a procedure can be covered yet still require preapproval.
package coverage

import (
	"time"

	"github.com/tpa-platform/pricing-engine/internal/rules"
	"github.com/tpa-platform/pricing-engine/internal/types"
)

// Decision is the coverage-level outcome for one calculation.
type Decision struct {
	Excluded            bool
	ExclusionReason     string
	RequiresPreapproval bool
	PreapprovalReason   *string
	DeductibleApplied   *float64
	OverridePriceListID *int64
}

// Decide evaluates every active policy binding for the procedure and price
// list. A zero procedure/price-list id on a binding matches any; binding
// conditions are evaluated against the request factors with the same
// fail-closed AND semantics as rule conditions. The price is the computed
// final price when available, used by amount-gated preapproval bindings.
func Decide(bindings []types.PolicyBinding, procedureID, priceListID int64, asOf time.Time, factors map[string]interface{}, reg rules.Registry, price *float64) Decision {
	var d Decision

	for _, b := range bindings {
		if !b.ActiveAt(asOf) {
			continue
		}
		if b.ProcedureID != 0 && b.ProcedureID != procedureID {
			continue
		}
		if b.PriceListID != 0 && b.PriceListID != priceListID {
			continue
		}
		if !rules.EvaluateAll(b.Conditions, factors, reg) {
			continue
		}

		// The first matching binding wins each decision slot, so the
		// outcome does not depend on how the store orders its rows.
		switch b.Type {
		case types.BindingExclusion:
			if d.Excluded {
				continue
			}
			d.Excluded = true
			d.ExclusionReason = b.Reason
			if d.ExclusionReason == "" {
				d.ExclusionReason = "procedure excluded by policy"
			}

		case types.BindingPreapproval:
			if d.RequiresPreapproval {
				continue
			}
			if b.ThresholdAmount != nil {
				if price == nil || *price < *b.ThresholdAmount {
					continue
				}
			}
			d.RequiresPreapproval = true
			reason := b.Reason
			if reason == "" {
				reason = "preapproval required by policy"
			}
			d.PreapprovalReason = &reason

		case types.BindingDeductible:
			if d.DeductibleApplied == nil && b.DeductibleAmount != nil {
				amount := *b.DeductibleAmount
				d.DeductibleApplied = &amount
			}

		case types.BindingProviderException:
			if d.OverridePriceListID == nil && b.OverridePriceListID != nil {
				id := *b.OverridePriceListID
				d.OverridePriceListID = &id
			}
		}
	}
	return d
}

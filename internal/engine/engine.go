// Package engine orchestrates one price resolution: request validation,
// snapshot fetch, rule selection, coverage decision, price calculation and
// response assembly. Evaluation is a pure function of the request plus the
// fetched snapshot; repeated calls with identical inputs produce identical
// responses.
package engine

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/tpa-platform/pricing-engine/internal/audit"
	"github.com/tpa-platform/pricing-engine/internal/coverage"
	"github.com/tpa-platform/pricing-engine/internal/pricing"
	"github.com/tpa-platform/pricing-engine/internal/rules"
	"github.com/tpa-platform/pricing-engine/internal/store"
	"github.com/tpa-platform/pricing-engine/internal/types"
)

// Engine evaluates calculation requests against a reference-data store.
type Engine struct {
	store store.Store
	trail *audit.Trail
}

// New creates an engine. The audit trail is optional.
func New(st store.Store, trail *audit.Trail) *Engine {
	return &Engine{store: st, trail: trail}
}

// Calculate resolves one price. Validation errors are *ValidationError;
// any snapshot fetch or calculation failure aborts the whole call with an
// error, never a partial result.
func (e *Engine) Calculate(ctx context.Context, req types.CalculationRequest) (*types.CalculationResponse, error) {
	registry, err := e.store.Factors(ctx)
	if err != nil {
		return nil, fmt.Errorf("factor lookup failed: %w", err)
	}

	asOf, err := validateRequest(req, registry)
	if err != nil {
		return nil, err
	}

	ruleSet, err := e.store.RulesFor(ctx, req.ProcedureID, req.PriceListID)
	if err != nil {
		return nil, fmt.Errorf("rule lookup failed: %w", err)
	}
	pointRates, err := e.store.PointRates(ctx, req.InsuranceDegreeID)
	if err != nil {
		return nil, fmt.Errorf("point rate lookup failed: %w", err)
	}
	periodDiscounts, err := e.store.PeriodDiscounts(ctx, req.ProcedureID)
	if err != nil {
		return nil, fmt.Errorf("period discount lookup failed: %w", err)
	}
	bindings, err := e.store.PolicyBindings(ctx, req.ProcedureID, req.PriceListID)
	if err != nil {
		return nil, fmt.Errorf("policy binding lookup failed: %w", err)
	}

	sel := rules.Select(ruleSet, req.ProcedureID, req.PriceListID, asOf, req.Factors, registry)

	reason := sel.Reason
	resp := &types.CalculationResponse{
		ProcedureID:     req.ProcedureID,
		PriceListID:     req.PriceListID,
		Date:            req.Date,
		EvaluatedRules:  sel.Trace,
		SelectionReason: &reason,
	}
	if req.InsuranceDegreeID > 0 {
		degreeID := req.InsuranceDegreeID
		resp.InsuranceDegreeID = &degreeID
	}

	if sel.Rule == nil {
		coverageReason := sel.Reason
		resp.CoverageReason = &coverageReason
		e.writeAudit(req, resp)
		return resp, nil
	}

	ruleID := sel.Rule.ID
	body := sel.Rule.Body
	resp.SelectedRuleID = &ruleID
	resp.SelectedRule = &body

	// Exclusions are independent of price and gate the calculator.
	pre := coverage.Decide(bindings, req.ProcedureID, req.PriceListID, asOf, req.Factors, registry, nil)
	if pre.Excluded {
		exclusion := pre.ExclusionReason
		resp.CoverageReason = &exclusion
		e.writeAudit(req, resp)
		return resp, nil
	}

	calc, err := pricing.Calculate(pricing.Inputs{
		Rule:              *sel.Rule,
		Factors:           req.Factors,
		Registry:          registry,
		PointRates:        pointRates,
		PeriodDiscounts:   periodDiscounts,
		InsuranceDegreeID: req.InsuranceDegreeID,
		AsOf:              asOf,
	})
	if err != nil {
		return nil, fmt.Errorf("price calculation failed: %w", err)
	}

	resp.Covered = true
	resp.FinalPrice = &calc.FinalPrice
	resp.PointRateUsed = calc.PointRateUsed
	resp.DiscountApplied = calc.DiscountApplied
	resp.AdjustmentsApplied = calc.AdjustmentsApplied

	decision := coverage.Decide(bindings, req.ProcedureID, req.PriceListID, asOf, req.Factors, registry, &calc.FinalPrice)
	resp.RequiresPreapproval = decision.RequiresPreapproval
	resp.PreapprovalReason = decision.PreapprovalReason
	resp.DeductibleApplied = decision.DeductibleApplied
	resp.OverridePriceListID = decision.OverridePriceListID

	e.writeAudit(req, resp)
	return resp, nil
}

// writeAudit persists the audit record; audit I/O never fails a calculation.
func (e *Engine) writeAudit(req types.CalculationRequest, resp *types.CalculationResponse) {
	if e.trail == nil {
		return
	}
	if err := e.trail.LogCalculation(req, resp); err != nil {
		log.WithField("error", err.Error()).Warn("Failed to write audit record")
	}
}

package rules

import (
	"fmt"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tpa-platform/pricing-engine/internal/types"
)

// Selection is the outcome of rule selection: the winning rule (nil when
// nothing matched), the full per-candidate trace, and a human-readable
// reason for the outcome.
type Selection struct {
	Rule   *types.Rule
	Trace  []types.EvaluatedRule
	Reason string
}

// Select deterministically picks at most one rule for the request.
// Candidates are the rules whose procedure, price list and half-open
// validity window match; their conditions are evaluated fail-closed with
// AND semantics. Among full matches the lowest priority number wins, ties
// broken by the smallest id. Rules that fail validation are excluded from
// matching and logged, never fatal. The trace covers every candidate in
// evaluation order regardless of outcome.
func Select(ruleSet []types.Rule, procedureID, priceListID int64, asOf time.Time, factors map[string]interface{}, reg Registry) Selection {
	candidates := make([]types.Rule, 0, len(ruleSet))
	for _, r := range ruleSet {
		if r.ProcedureID != procedureID || r.PriceListID != priceListID {
			continue
		}
		if !r.ActiveAt(asOf) {
			continue
		}
		candidates = append(candidates, r)
	}

	// Evaluation order is the selection order, so the trace itself is
	// deterministic for identical inputs.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority < candidates[j].Priority
		}
		return candidates[i].ID < candidates[j].ID
	})

	trace := []types.EvaluatedRule{}
	var selected *types.Rule

	for i := range candidates {
		r := candidates[i]
		entry := types.EvaluatedRule{
			RuleID:           r.ID,
			Priority:         r.Priority,
			FailedConditions: []types.FailedCondition{},
		}

		if err := ValidateBody(r.Body); err != nil {
			log.WithFields(log.Fields{
				"rule_id": r.ID,
				"error":   err.Error(),
			}).Error("Rule failed validation; excluded from matching")
			// The trace entry still explains why this candidate lost.
			entry.FailedConditions = []types.FailedCondition{{
				Factor:   "ruleJson",
				Operator: "valid",
				Expected: "well-formed rule definition",
				Actual:   err.Error(),
			}}
			trace = append(trace, entry)
			continue
		}

		failed := Failed(r.Body.Conditions, factors, reg)
		if len(failed) > 0 {
			entry.FailedConditions = failed
			trace = append(trace, entry)
			continue
		}

		entry.Matched = true
		trace = append(trace, entry)

		if selected == nil {
			selected = &candidates[i]
		} else if selected.Priority == r.Priority {
			log.WithFields(log.Fields{
				"selected_rule": selected.ID,
				"tied_rule":     r.ID,
				"priority":      r.Priority,
			}).Warn("Multiple rules tie on priority; resolved by smallest id")
		}
	}

	sel := Selection{Trace: trace}
	switch {
	case selected != nil:
		sel.Rule = selected
		sel.Reason = fmt.Sprintf("rule %d selected by priority %d", selected.ID, selected.Priority)
	case len(candidates) == 0:
		sel.Reason = "no active rule for date"
	default:
		sel.Reason = "no rule conditions matched"
	}
	return sel
}

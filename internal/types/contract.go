package types

// CalculationRequest is the input to one price resolution. Factors carries
// the caller's situational values keyed by factor key; Date is the as-of
// date in DateLayout format.
type CalculationRequest struct {
	ProcedureID       int64                  `json:"procedureId"`
	PriceListID       int64                  `json:"priceListId"`
	InsuranceDegreeID int64                  `json:"insuranceDegreeId"`
	Factors           map[string]interface{} `json:"factors"`
	Date              string                 `json:"date"`
}

// FailedCondition reports one condition that did not hold during rule
// evaluation, for the audit trace.
type FailedCondition struct {
	Factor   string      `json:"factor"`
	Operator string      `json:"operator"`
	Expected interface{} `json:"expected"`
	Actual   interface{} `json:"actual"`
}

// EvaluatedRule is the trace entry for one candidate rule.
type EvaluatedRule struct {
	RuleID           int64             `json:"ruleId"`
	Priority         int               `json:"priority"`
	Matched          bool              `json:"matched"`
	FailedConditions []FailedCondition `json:"failedConditions"`
}

// DiscountApplied names the discount source that fired. DiscountID is the
// period-discount id, or null when the rule-embedded discount won.
type DiscountApplied struct {
	DiscountID *int64  `json:"discountId"`
	Pct        float64 `json:"pct"`
	Period     int     `json:"period"`
	Unit       string  `json:"unit"`
}

// AdjustmentApplied names the adjustment case/tier/block that fired and the
// resulting price delta.
type AdjustmentApplied struct {
	Type        string  `json:"type"`
	FactorKey   string  `json:"factorKey"`
	CaseMatched string  `json:"caseMatched"`
	Amount      float64 `json:"amount"`
}

// CalculationResponse is the full explainable output of one price
// resolution. Nullable fields serialize as explicit null; FinalPrice is
// omitted entirely when the procedure is not covered.
type CalculationResponse struct {
	ProcedureID         int64               `json:"procedureId"`
	PriceListID         int64               `json:"priceListId"`
	InsuranceDegreeID   *int64              `json:"insuranceDegreeId"`
	Date                string              `json:"date"`
	FinalPrice          *float64            `json:"finalPrice,omitempty"`
	Covered             bool                `json:"covered"`
	CoverageReason      *string             `json:"coverageReason"`
	RequiresPreapproval bool                `json:"requiresPreapproval"`
	PreapprovalReason   *string             `json:"preapprovalReason"`
	DeductibleApplied   *float64            `json:"deductibleApplied"`
	OverridePriceListID *int64              `json:"overridePriceListId"`
	SelectedRuleID      *int64              `json:"selectedRuleId"`
	SelectedRule        *RuleBody           `json:"selectedRule"`
	EvaluatedRules      []EvaluatedRule     `json:"evaluatedRules"`
	PointRateUsed       *PointRate          `json:"pointRateUsed"`
	DiscountApplied     *DiscountApplied    `json:"discountApplied,omitempty"`
	AdjustmentsApplied  []AdjustmentApplied `json:"adjustmentsApplied,omitempty"`
	SelectionReason     *string             `json:"selectionReason,omitempty"`
}

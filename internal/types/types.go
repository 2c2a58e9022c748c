// Package types defines the pricing contract shared by the evaluator,
// the store and the HTTP API: factors, rules, point rates, period
// discounts, policy bindings and the calculation request/response.
package types

import "time"

// DateLayout is the wire format for calculation dates and validity bounds.
const DateLayout = "2006-01-02"

// FactorDataType describes how a factor's values are compared in conditions.
type FactorDataType string

const (
	FactorText    FactorDataType = "TEXT"
	FactorNumber  FactorDataType = "NUMBER"
	FactorSelect  FactorDataType = "SELECT"
	FactorDate    FactorDataType = "DATE"
	FactorBoolean FactorDataType = "BOOLEAN"
	FactorString  FactorDataType = "STRING"
	FactorDecimal FactorDataType = "DECIMAL"
	FactorInteger FactorDataType = "INTEGER"
)

// IsNumeric reports whether values of this type compare by numeric ordering.
func (t FactorDataType) IsNumeric() bool {
	return t == FactorNumber || t == FactorDecimal || t == FactorInteger
}

// Factor is a named input variable referenced by key from conditions and
// adjustments. AllowedValues is a delimited list, meaningful only for SELECT.
type Factor struct {
	Key           string         `json:"key"`
	NameEn        string         `json:"nameEn"`
	NameAr        string         `json:"nameAr"`
	DataType      FactorDataType `json:"dataType"`
	AllowedValues *string        `json:"allowedValues"`
}

// Condition is a single predicate over a named factor. A condition list is
// satisfied only when every entry holds (logical AND); OR is expressed as
// separate rules.
type Condition struct {
	Factor   string      `json:"factor"`
	Operator string      `json:"operator"`
	Value    interface{} `json:"value"`
}

// PricingMode selects the base-price strategy of a rule.
type PricingMode string

const (
	ModeFixed  PricingMode = "FIXED"
	ModePoints PricingMode = "POINTS"
	ModeRange  PricingMode = "RANGE"
)

// PointTier overrides the rule's point count when its condition matches.
type PointTier struct {
	Points    float64    `json:"points"`
	Condition *Condition `json:"condition,omitempty"`
}

// ConditionalPrice overrides the base price when all its conditions match.
type ConditionalPrice struct {
	Price      float64     `json:"price"`
	Conditions []Condition `json:"conditions"`
}

// Pricing describes how a rule derives its base price. Exactly one mode
// drives the computation; fields belonging to other modes are ignored.
type Pricing struct {
	Mode             PricingMode        `json:"mode"`
	FixedPrice       *float64           `json:"fixedPrice,omitempty"`
	Points           *float64           `json:"points,omitempty"`
	BasePoints       *float64           `json:"basePoints,omitempty"`
	MinPoints        *float64           `json:"minPoints,omitempty"`
	MaxPoints        *float64           `json:"maxPoints,omitempty"`
	PointStrategy    string             `json:"pointStrategy,omitempty"`
	Tiers            []PointTier        `json:"tiers,omitempty"`
	MinPrice         *float64           `json:"minPrice,omitempty"`
	MaxPrice         *float64           `json:"maxPrice,omitempty"`
	ConditionalFixed []ConditionalPrice `json:"conditionalFixed,omitempty"`
}

// DiscountBlock contributes its percent when all WhenConditions hold.
type DiscountBlock struct {
	Percent        float64     `json:"percent"`
	WhenConditions []Condition `json:"whenConditions"`
}

// Discount is the rule-embedded, time-windowed percentage reduction.
// The first matching logic block wins.
type Discount struct {
	Apply       bool            `json:"apply"`
	PeriodUnit  string          `json:"period_unit,omitempty"`
	PeriodValue int             `json:"period_value,omitempty"`
	LogicBlocks []DiscountBlock `json:"logicBlocks,omitempty"`
}

// CaseEffect is the flat add/percent effect of a matched adjustment case.
type CaseEffect struct {
	Add     float64 `json:"add,omitempty"`
	Percent float64 `json:"percent,omitempty"`
}

// AdjustmentTier matches when the driving factor's numeric value is at
// least Value. Tiers are evaluated in order; the first match applies.
type AdjustmentTier struct {
	Value   float64 `json:"value"`
	Add     float64 `json:"add,omitempty"`
	Percent float64 `json:"percent,omitempty"`
}

// AdjustmentBlock applies Add then AddPercent when all WhenConditions hold.
type AdjustmentBlock struct {
	WhenConditions []Condition `json:"whenConditions"`
	Add            float64     `json:"add,omitempty"`
	AddPercent     float64     `json:"addPercent,omitempty"`
}

// Adjustment modifies the price keyed by a factor value. Resolution order:
// Cases lookup, else flat Percent, else first matching tier, else first
// matching logic block. Within one adjustment the additive amount applies
// before the percentage.
type Adjustment struct {
	Type        string                `json:"type"`
	FactorKey   string                `json:"factorKey"`
	Cases       map[string]CaseEffect `json:"cases,omitempty"`
	Percent     *float64              `json:"percent,omitempty"`
	Tiers       []AdjustmentTier      `json:"tiers,omitempty"`
	LogicBlocks []AdjustmentBlock     `json:"logicBlocks,omitempty"`
}

// RuleBody is the parsed form of a rule's ruleJson column.
type RuleBody struct {
	Conditions  []Condition  `json:"conditions"`
	Pricing     Pricing      `json:"pricing"`
	Discount    *Discount    `json:"discount,omitempty"`
	Adjustments []Adjustment `json:"adjustments,omitempty"`
}

// Rule is a prioritized, time-bounded pricing definition for a
// (procedure, price list) pair. Lower Priority wins; ties break on the
// smaller ID. Validity is the half-open interval [ValidFrom, ValidTo);
// a nil ValidTo is open-ended. Rules are versioned by closing windows,
// not by mutation.
type Rule struct {
	ID          int64      `json:"id"`
	ProcedureID int64      `json:"procedureId"`
	PriceListID int64      `json:"priceListId"`
	Priority    int        `json:"priority"`
	Body        RuleBody   `json:"ruleJson"`
	ValidFrom   time.Time  `json:"validFrom"`
	ValidTo     *time.Time `json:"validTo"`
	UpdatedAt   time.Time  `json:"updatedAt,omitempty"`
}

// ActiveAt reports whether the rule's validity window contains the date.
func (r Rule) ActiveAt(asOf time.Time) bool {
	return activeAt(r.ValidFrom, r.ValidTo, asOf)
}

// DegreeSummary identifies an insurance degree on a point rate.
type DegreeSummary struct {
	ID     int64  `json:"id"`
	NameEn string `json:"nameEn,omitempty"`
	NameAr string `json:"nameAr,omitempty"`
}

// PointRate converts points into currency for an insurance degree within a
// validity window. A nil InsuranceDegree applies to any degree.
type PointRate struct {
	ID              int64          `json:"id"`
	Context         *string        `json:"context"`
	InsuranceDegree *DegreeSummary `json:"insuranceDegree"`
	PointPrice      float64        `json:"pointPrice"`
	MinPointPrice   *float64       `json:"minPointPrice"`
	MaxPointPrice   *float64       `json:"maxPointPrice"`
	ResultMin       *float64       `json:"resultMin"`
	ResultMax       *float64       `json:"resultMax"`
	ValidFrom       time.Time      `json:"validFrom"`
	ValidTo         *time.Time     `json:"validTo"`
	CreatedAt       time.Time      `json:"createdAt,omitempty"`
	UpdatedAt       time.Time      `json:"updatedAt,omitempty"`
}

// ActiveAt reports whether the rate's validity window contains the date.
func (p PointRate) ActiveAt(asOf time.Time) bool {
	return activeAt(p.ValidFrom, p.ValidTo, asOf)
}

// PeriodDiscount is a recurring percentage discount for a procedure,
// independent of any rule-embedded discount.
type PeriodDiscount struct {
	ID          int64      `json:"id"`
	ProcedureID int64      `json:"procedure"`
	Context     *string    `json:"context"`
	Period      int        `json:"period"`
	PeriodUnit  string     `json:"periodUnit"`
	DiscountPct float64    `json:"discountPct"`
	ValidFrom   time.Time  `json:"validFrom"`
	ValidTo     *time.Time `json:"validTo"`
}

// ActiveAt reports whether the discount's validity window contains the date.
func (p PeriodDiscount) ActiveAt(asOf time.Time) bool {
	return activeAt(p.ValidFrom, p.ValidTo, asOf)
}

// PolicyBindingType discriminates coverage-level policy bindings.
type PolicyBindingType string

const (
	BindingExclusion         PolicyBindingType = "EXCLUSION"
	BindingPreapproval       PolicyBindingType = "PREAPPROVAL"
	BindingDeductible        PolicyBindingType = "DEDUCTIBLE"
	BindingProviderException PolicyBindingType = "PROVIDER_EXCEPTION"
)

// PolicyBinding attaches a coverage-level decision (exclusion, preapproval
// gate, deductible, provider exception) to a procedure and/or price list.
// A zero ProcedureID or PriceListID matches any.
type PolicyBinding struct {
	ID                  int64             `json:"id"`
	Type                PolicyBindingType `json:"type"`
	ProcedureID         int64             `json:"procedureId"`
	PriceListID         int64             `json:"priceListId"`
	Reason              string            `json:"reason"`
	ThresholdAmount     *float64          `json:"thresholdAmount"`
	DeductibleAmount    *float64          `json:"deductibleAmount"`
	OverridePriceListID *int64            `json:"overridePriceListId"`
	Conditions          []Condition       `json:"conditions,omitempty"`
	ValidFrom           time.Time         `json:"validFrom"`
	ValidTo             *time.Time        `json:"validTo"`
}

// ActiveAt reports whether the binding's validity window contains the date.
func (b PolicyBinding) ActiveAt(asOf time.Time) bool {
	return activeAt(b.ValidFrom, b.ValidTo, asOf)
}

func activeAt(from time.Time, to *time.Time, asOf time.Time) bool {
	if asOf.Before(from) {
		return false
	}
	if to != nil && !asOf.Before(*to) {
		return false
	}
	return true
}

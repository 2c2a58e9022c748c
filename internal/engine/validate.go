package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/tpa-platform/pricing-engine/internal/rules"
	"github.com/tpa-platform/pricing-engine/internal/types"
)

// ValidationError is a client error: the request was malformed before any
// rule work started. Fields maps a field path to its message.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

// validateRequest checks required fields, the date format and each supplied
// factor value against its registered data type. Violations are collected
// per field, not fail-fast, so the caller sees every problem at once.
func validateRequest(req types.CalculationRequest, registry rules.Registry) (time.Time, error) {
	fields := map[string]string{}

	if req.ProcedureID <= 0 {
		fields["procedureId"] = "must be a positive integer"
	}
	if req.PriceListID <= 0 {
		fields["priceListId"] = "must be a positive integer"
	}

	var asOf time.Time
	if req.Date == "" {
		fields["date"] = "is required"
	} else {
		parsed, err := time.Parse(types.DateLayout, req.Date)
		if err != nil {
			fields["date"] = fmt.Sprintf("must be an ISO date (%s)", types.DateLayout)
		} else {
			asOf = parsed
		}
	}

	for key, value := range req.Factors {
		factor, ok := registry[key]
		if !ok {
			// Unregistered factors are allowed; conditions referencing
			// them compare by value shape.
			continue
		}
		if msg := checkFactorValue(factor, value); msg != "" {
			fields["factors."+key] = msg
		}
	}

	if len(fields) > 0 {
		return time.Time{}, &ValidationError{Fields: fields}
	}
	return asOf, nil
}

func checkFactorValue(factor types.Factor, value interface{}) string {
	switch factor.DataType {
	case types.FactorNumber, types.FactorDecimal:
		if _, ok := rules.CoerceFloat(value); !ok {
			return fmt.Sprintf("must be numeric (%s)", factor.DataType)
		}
	case types.FactorInteger:
		f, ok := rules.CoerceFloat(value)
		if !ok || f != math.Trunc(f) {
			return "must be an integer"
		}
	case types.FactorBoolean:
		if _, ok := rules.CoerceBool(value); !ok {
			return "must be a boolean"
		}
	case types.FactorDate:
		if _, ok := rules.CoerceDate(value); !ok {
			return fmt.Sprintf("must be an ISO date (%s)", types.DateLayout)
		}
	case types.FactorSelect:
		if factor.AllowedValues == nil {
			return ""
		}
		got := rules.CoerceString(value)
		for _, allowed := range strings.Split(*factor.AllowedValues, ",") {
			if strings.TrimSpace(allowed) == got {
				return ""
			}
		}
		return fmt.Sprintf("must be one of: %s", *factor.AllowedValues)
	}
	return ""
}

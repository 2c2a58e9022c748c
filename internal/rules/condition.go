// Package rules implements condition evaluation, rule validation and
// deterministic rule selection with a full audit trace.
package rules

import (
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tpa-platform/pricing-engine/internal/types"
)

// Operators supported by the evaluator. Anything else fails validation.
const (
	OpEq      = "eq"
	OpNeq     = "neq"
	OpGt      = "gt"
	OpGte     = "gte"
	OpLt      = "lt"
	OpLte     = "lte"
	OpIn      = "in"
	OpBetween = "between"
)

var supportedOperators = map[string]bool{
	OpEq: true, OpNeq: true, OpGt: true, OpGte: true,
	OpLt: true, OpLte: true, OpIn: true, OpBetween: true,
}

// OperatorSupported reports whether the evaluator implements the operator.
func OperatorSupported(op string) bool {
	return supportedOperators[op]
}

// Registry indexes factors by key for data-type-aware comparison.
type Registry map[string]types.Factor

// Evaluate returns whether the condition holds against the supplied factor
// values. A condition referencing a factor absent from the dictionary is
// false (fail-closed), never an error. An unknown operator is also false;
// validation is expected to have rejected it at rule-load time.
func Evaluate(c types.Condition, factors map[string]interface{}, reg Registry) bool {
	actual, ok := factors[c.Factor]
	if !ok {
		return false
	}

	if !supportedOperators[c.Operator] {
		log.WithFields(log.Fields{
			"factor":   c.Factor,
			"operator": c.Operator,
		}).Error("Unsupported operator reached evaluation; condition fails closed")
		return false
	}

	var dataType types.FactorDataType
	if f, found := reg[c.Factor]; found {
		dataType = f.DataType
	}

	switch c.Operator {
	case OpEq:
		return valuesEqual(actual, c.Value, dataType)
	case OpNeq:
		return !valuesEqual(actual, c.Value, dataType)
	case OpGt, OpGte, OpLt, OpLte:
		cmp, ok := compareOrdered(actual, c.Value, dataType)
		if !ok {
			return false
		}
		switch c.Operator {
		case OpGt:
			return cmp > 0
		case OpGte:
			return cmp >= 0
		case OpLt:
			return cmp < 0
		default:
			return cmp <= 0
		}
	case OpIn:
		for _, candidate := range expandList(c.Value) {
			if valuesEqual(actual, candidate, dataType) {
				return true
			}
		}
		return false
	case OpBetween:
		bounds := expandList(c.Value)
		if len(bounds) != 2 {
			return false
		}
		lo, okLo := compareOrdered(actual, bounds[0], dataType)
		hi, okHi := compareOrdered(actual, bounds[1], dataType)
		return okLo && okHi && lo >= 0 && hi <= 0
	}
	return false
}

// EvaluateAll reports whether every condition in the list holds (AND).
// An empty list is vacuously true.
func EvaluateAll(conds []types.Condition, factors map[string]interface{}, reg Registry) bool {
	for _, c := range conds {
		if !Evaluate(c, factors, reg) {
			return false
		}
	}
	return true
}

// Failed returns a trace entry for every condition in the list that does
// not hold, with the expected and actual operands.
func Failed(conds []types.Condition, factors map[string]interface{}, reg Registry) []types.FailedCondition {
	failed := []types.FailedCondition{}
	for _, c := range conds {
		if Evaluate(c, factors, reg) {
			continue
		}
		failed = append(failed, types.FailedCondition{
			Factor:   c.Factor,
			Operator: c.Operator,
			Expected: c.Value,
			Actual:   factors[c.Factor],
		})
	}
	return failed
}

// valuesEqual compares two operand values, preferring the comparison the
// factor's data type calls for and falling back to value-shape inference
// for unregistered factors.
func valuesEqual(a, b interface{}, dataType types.FactorDataType) bool {
	switch {
	case dataType.IsNumeric():
		af, aok := toFloat(a)
		bf, bok := toFloat(b)
		return aok && bok && af == bf
	case dataType == types.FactorBoolean:
		ab, aok := toBool(a)
		bb, bok := toBool(b)
		return aok && bok && ab == bb
	case dataType == types.FactorDate:
		at, aok := toDate(a)
		bt, bok := toDate(b)
		return aok && bok && at.Equal(bt)
	}

	// Unregistered factor or textual type: numeric if both sides coerce,
	// boolean if both sides coerce, else string equality.
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	if ab, aok := strictBool(a); aok {
		if bb, bok := strictBool(b); bok {
			return ab == bb
		}
	}
	return toString(a) == toString(b)
}

// compareOrdered returns -1/0/1 for a relative to b, or ok=false when the
// operands cannot be ordered.
func compareOrdered(a, b interface{}, dataType types.FactorDataType) (int, bool) {
	if dataType == types.FactorDate {
		at, aok := toDate(a)
		bt, bok := toDate(b)
		if !aok || !bok {
			return 0, false
		}
		switch {
		case at.Before(bt):
			return -1, true
		case at.After(bt):
			return 1, true
		default:
			return 0, true
		}
	}

	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}

	// Dates expressed against an unregistered factor still order correctly.
	if at, ok := toDate(a); ok {
		if bt, ok := toDate(b); ok {
			switch {
			case at.Before(bt):
				return -1, true
			case at.After(bt):
				return 1, true
			default:
				return 0, true
			}
		}
	}
	return 0, false
}

// expandList normalizes an `in`/`between` operand: a JSON array stays as-is,
// a delimited string splits on commas.
func expandList(v interface{}) []interface{} {
	switch val := v.(type) {
	case []interface{}:
		return val
	case string:
		parts := strings.Split(val, ",")
		out := make([]interface{}, 0, len(parts))
		for _, p := range parts {
			out = append(out, strings.TrimSpace(p))
		}
		return out
	default:
		return []interface{}{v}
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toBool(v interface{}) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		return b, err == nil
	default:
		return false, false
	}
}

// strictBool only accepts genuine booleans and the literal true/false
// strings, so that fallback equality does not treat "1" as a boolean.
func strictBool(v interface{}) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

func toDate(v interface{}) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	if t, err := time.Parse(types.DateLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func toString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return ""
	default:
		return ""
	}
}

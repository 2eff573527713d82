package engine

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"codecheck/internal/domain"
)

// OperatorFunc compares a property value taken from a building object against
// the literal from the rule condition.
type OperatorFunc func(have, want any) (bool, error)

// operators is the comparison registry. It is populated once here and never
// mutated afterwards, so concurrent rule evaluation can read it without locks.
var operators = map[string]OperatorFunc{
	"equals":       opEquals,
	"not_equals":   opNotEquals,
	"greater_than": opGreaterThan,
	"less_than":    opLessThan,
	"gte":          opGreaterOrEqual,
	"lte":          opLessOrEqual,
	"in":           opIn,
	"not_in":       opNotIn,
	"contains":     opContains,
	"starts_with":  opStartsWith,
	"ends_with":    opEndsWith,
	"regex":        opRegex,
	"exists":       opExists,
}

// LookupOperator returns the registered comparison for name.
func LookupOperator(name string) (OperatorFunc, error) {
	fn, ok := operators[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownOperator, name)
	}
	return fn, nil
}

// OperatorNames lists the registered operator names, for diagnostics.
func OperatorNames() []string {
	names := make([]string, 0, len(operators))
	for name := range operators {
		names = append(names, name)
	}
	return names
}

// asFloat coerces JSON-decoded scalars to float64 for numeric comparison.
// Property bags come off the wire, so numbers may arrive as float64, int or
// numeric strings depending on the source.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// opEquals coerces numbers (including numeric strings) to float64 before
// comparing, so "12" equals 12. Everything else compares by type: a bool
// never equals a string, nil only equals nil.
func opEquals(have, want any) (bool, error) {
	if have == nil || want == nil {
		return have == nil && want == nil, nil
	}
	if hf, ok := asFloat(have); ok {
		if wf, ok := asFloat(want); ok {
			return hf == wf, nil
		}
		return false, nil
	}
	if hb, ok := have.(bool); ok {
		wb, ok := want.(bool)
		return ok && hb == wb, nil
	}
	if hs, ok := asString(have); ok {
		ws, ok := asString(want)
		return ok && hs == ws, nil
	}
	return reflect.DeepEqual(have, want), nil
}

func opNotEquals(have, want any) (bool, error) {
	eq, err := opEquals(have, want)
	return !eq, err
}

func numericPair(have, want any) (float64, float64, error) {
	hf, ok := asFloat(have)
	if !ok {
		return 0, 0, fmt.Errorf("value %v is not numeric", have)
	}
	wf, ok := asFloat(want)
	if !ok {
		return 0, 0, fmt.Errorf("comparison value %v is not numeric", want)
	}
	return hf, wf, nil
}

func opGreaterThan(have, want any) (bool, error) {
	hf, wf, err := numericPair(have, want)
	if err != nil {
		return false, err
	}
	return hf > wf, nil
}

func opLessThan(have, want any) (bool, error) {
	hf, wf, err := numericPair(have, want)
	if err != nil {
		return false, err
	}
	return hf < wf, nil
}

func opGreaterOrEqual(have, want any) (bool, error) {
	hf, wf, err := numericPair(have, want)
	if err != nil {
		return false, err
	}
	return hf >= wf, nil
}

func opLessOrEqual(have, want any) (bool, error) {
	hf, wf, err := numericPair(have, want)
	if err != nil {
		return false, err
	}
	return hf <= wf, nil
}

// members normalizes the condition literal to a slice for set operators.
func members(want any) ([]any, error) {
	switch m := want.(type) {
	case []any:
		return m, nil
	case []string:
		out := make([]any, len(m))
		for i, s := range m {
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("comparison value %v is not a list", want)
	}
}

func opIn(have, want any) (bool, error) {
	set, err := members(want)
	if err != nil {
		return false, err
	}
	for _, m := range set {
		if eq, _ := opEquals(have, m); eq {
			return true, nil
		}
	}
	return false, nil
}

func opNotIn(have, want any) (bool, error) {
	in, err := opIn(have, want)
	if err != nil {
		return false, err
	}
	return !in, nil
}

// opContains handles both string containment and list membership, matching on
// the shape of the property value.
func opContains(have, want any) (bool, error) {
	if hs, ok := asString(have); ok {
		ws, ok := asString(want)
		if !ok {
			return false, fmt.Errorf("comparison value %v is not a string", want)
		}
		return strings.Contains(hs, ws), nil
	}
	if list, ok := have.([]any); ok {
		for _, m := range list {
			if eq, _ := opEquals(m, want); eq {
				return true, nil
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("value %v supports neither substring nor membership", have)
}

func opStartsWith(have, want any) (bool, error) {
	hs, ok := asString(have)
	if !ok {
		return false, fmt.Errorf("value %v is not a string", have)
	}
	ws, ok := asString(want)
	if !ok {
		return false, fmt.Errorf("comparison value %v is not a string", want)
	}
	return strings.HasPrefix(hs, ws), nil
}

func opEndsWith(have, want any) (bool, error) {
	hs, ok := asString(have)
	if !ok {
		return false, fmt.Errorf("value %v is not a string", have)
	}
	ws, ok := asString(want)
	if !ok {
		return false, fmt.Errorf("comparison value %v is not a string", want)
	}
	return strings.HasSuffix(hs, ws), nil
}

func opRegex(have, want any) (bool, error) {
	hs, ok := asString(have)
	if !ok {
		return false, fmt.Errorf("value %v is not a string", have)
	}
	pattern, ok := asString(want)
	if !ok {
		return false, fmt.Errorf("comparison value %v is not a string pattern", want)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Errorf("bad pattern %q: %w", pattern, err)
	}
	return re.MatchString(hs), nil
}

// opExists only looks at presence; the condition evaluator passes a sentinel
// for absent properties so every other operator can fail cleanly on them.
func opExists(have, _ any) (bool, error) {
	return have != absentValue, nil
}

// absentValue marks a property that is not present on the object, as opposed
// to one that is present with a nil value.
var absentValue = &struct{}{}

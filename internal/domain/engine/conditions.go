package engine

import (
	"fmt"

	"codecheck/internal/domain"
)

// LogicExecutor runs a raw JsonLogic expression against an object's property
// bag. The infrastructure layer provides the implementation; the evaluator
// only needs the boolean outcome.
type LogicExecutor interface {
	Apply(logic map[string]any, data map[string]any) (bool, error)
}

// ConditionEvaluator walks a rule's condition tree for one object.
type ConditionEvaluator struct {
	logic LogicExecutor
}

// NewConditionEvaluator builds an evaluator. The logic executor may be nil
// when no rule in the pack uses JsonLogic leaves.
func NewConditionEvaluator(logic LogicExecutor) *ConditionEvaluator {
	return &ConditionEvaluator{logic: logic}
}

// Evaluate reports whether the condition holds for the object. A nil condition
// holds vacuously. Combinators short-circuit; errors propagate immediately and
// the caller converts them to per-rule error results.
func (e *ConditionEvaluator) Evaluate(cond *domain.Condition, obj domain.BuildingObject) (bool, error) {
	if cond == nil {
		return true, nil
	}

	switch {
	case len(cond.All) > 0:
		for i := range cond.All {
			ok, err := e.Evaluate(&cond.All[i], obj)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case len(cond.Any) > 0:
		for i := range cond.Any {
			ok, err := e.Evaluate(&cond.Any[i], obj)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case cond.Not != nil:
		ok, err := e.Evaluate(cond.Not, obj)
		if err != nil {
			return false, err
		}
		return !ok, nil

	case len(cond.Logic) > 0:
		if e.logic == nil {
			return false, fmt.Errorf("rule uses a logic expression but no executor is configured")
		}
		return e.logic.Apply(cond.Logic, obj.Properties)

	case cond.Operator != "":
		return e.evaluateLeaf(cond, obj)

	default:
		return false, fmt.Errorf("empty condition node")
	}
}

func (e *ConditionEvaluator) evaluateLeaf(cond *domain.Condition, obj domain.BuildingObject) (bool, error) {
	fn, err := LookupOperator(cond.Operator)
	if err != nil {
		return false, err
	}

	have := any(absentValue)
	if v, ok := obj.Properties[cond.Property]; ok {
		have = v
	}

	// Absent properties fail every comparison except presence checks, so a
	// rule like "door width > 32" does not blow up on doors with no width.
	if have == any(absentValue) && cond.Operator != "exists" {
		return false, nil
	}

	ok, err := fn(have, cond.Value)
	if err != nil {
		return false, fmt.Errorf("property %q: %w", cond.Property, err)
	}
	return ok, nil
}

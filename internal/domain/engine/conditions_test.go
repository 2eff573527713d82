package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codecheck/internal/domain"
)

func obj(props map[string]any) domain.BuildingObject {
	return domain.BuildingObject{ObjectID: "o1", ObjectType: "door", Properties: props}
}

func TestEvaluateLeaf(t *testing.T) {
	eval := NewConditionEvaluator(nil)

	cond := &domain.Condition{Property: "width_in", Operator: "gte", Value: 32}

	ok, err := eval.Evaluate(cond, obj(map[string]any{"width_in": 36.0}))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = eval.Evaluate(cond, obj(map[string]any{"width_in": 28.0}))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluateAbsentPropertyFailsComparison(t *testing.T) {
	eval := NewConditionEvaluator(nil)
	cond := &domain.Condition{Property: "width_in", Operator: "gte", Value: 32}

	ok, err := eval.Evaluate(cond, obj(map[string]any{}))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluateExists(t *testing.T) {
	eval := NewConditionEvaluator(nil)
	cond := &domain.Condition{Property: "fire_rating", Operator: "exists"}

	ok, err := eval.Evaluate(cond, obj(map[string]any{"fire_rating": nil}))
	require.NoError(t, err)
	assert.True(t, ok, "present with nil value still exists")

	ok, err = eval.Evaluate(cond, obj(map[string]any{}))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluateCombinators(t *testing.T) {
	eval := NewConditionEvaluator(nil)
	wide := domain.Condition{Property: "width_in", Operator: "gte", Value: 32}
	rated := domain.Condition{Property: "fire_rating", Operator: "exists"}

	all := &domain.Condition{All: []domain.Condition{wide, rated}}
	anyOf := &domain.Condition{Any: []domain.Condition{wide, rated}}
	not := &domain.Condition{Not: &wide}

	o := obj(map[string]any{"width_in": 36.0})

	ok, err := eval.Evaluate(all, o)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = eval.Evaluate(anyOf, o)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = eval.Evaluate(not, o)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluateNilConditionHolds(t *testing.T) {
	eval := NewConditionEvaluator(nil)
	ok, err := eval.Evaluate(nil, obj(nil))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateShortCircuit(t *testing.T) {
	eval := NewConditionEvaluator(nil)
	bad := domain.Condition{Property: "width_in", Operator: "no_such_op", Value: 1}
	wide := domain.Condition{Property: "width_in", Operator: "gte", Value: 32}

	// The failing leaf comes second and must never run.
	all := &domain.Condition{All: []domain.Condition{
		{Property: "width_in", Operator: "less_than", Value: 10},
		bad,
	}}
	ok, err := eval.Evaluate(all, obj(map[string]any{"width_in": 36.0}))
	require.NoError(t, err)
	assert.False(t, ok)

	anyOf := &domain.Condition{Any: []domain.Condition{wide, bad}}
	ok, err = eval.Evaluate(anyOf, obj(map[string]any{"width_in": 36.0}))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateEmptyNodeErrors(t *testing.T) {
	eval := NewConditionEvaluator(nil)
	_, err := eval.Evaluate(&domain.Condition{}, obj(nil))
	assert.Error(t, err)
}

type stubLogic struct {
	result bool
	err    error
	called bool
}

func (s *stubLogic) Apply(logic map[string]any, data map[string]any) (bool, error) {
	s.called = true
	return s.result, s.err
}

func TestEvaluateLogicLeafDelegates(t *testing.T) {
	stub := &stubLogic{result: true}
	eval := NewConditionEvaluator(stub)

	cond := &domain.Condition{Logic: map[string]any{">": []any{map[string]any{"var": "width_in"}, 32}}}
	ok, err := eval.Evaluate(cond, obj(map[string]any{"width_in": 36.0}))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, stub.called)
}

func TestEvaluateLogicLeafWithoutExecutor(t *testing.T) {
	eval := NewConditionEvaluator(nil)
	cond := &domain.Condition{Logic: map[string]any{"==": []any{1, 1}}}
	_, err := eval.Evaluate(cond, obj(nil))
	assert.Error(t, err)
}

package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codecheck/internal/domain"
)

func TestLookupOperatorUnknown(t *testing.T) {
	_, err := LookupOperator("approximately")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnknownOperator))
}

func TestNumericComparisons(t *testing.T) {
	tests := []struct {
		name string
		op   string
		have any
		want any
		ok   bool
	}{
		{"gt true", "greater_than", 44.0, 32, true},
		{"gt false", "greater_than", 30.0, 32, false},
		{"gt int have", "greater_than", 44, 32, true},
		{"gt string have", "greater_than", "44", 32, true},
		{"lt true", "less_than", 0.05, 0.0833, true},
		{"gte boundary", "gte", 32.0, 32, true},
		{"lte boundary", "lte", 32.0, 32, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fn, err := LookupOperator(tc.op)
			require.NoError(t, err)
			got, err := fn(tc.have, tc.want)
			require.NoError(t, err)
			assert.Equal(t, tc.ok, got)
		})
	}
}

func TestNumericComparisonRejectsNonNumeric(t *testing.T) {
	fn, err := LookupOperator("greater_than")
	require.NoError(t, err)
	_, err = fn("wide", 32)
	assert.Error(t, err)
}

func TestEqualsCoercesNumbers(t *testing.T) {
	fn, _ := LookupOperator("equals")

	got, err := fn(32, 32.0)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = fn("A", "A")
	require.NoError(t, err)
	assert.True(t, got)

	got, err = fn(true, false)
	require.NoError(t, err)
	assert.False(t, got)

	got, err = fn("32", 32)
	require.NoError(t, err)
	assert.True(t, got, "numeric strings compare numerically")
}

func TestEqualsDoesNotStringifyAcrossTypes(t *testing.T) {
	fn, _ := LookupOperator("equals")

	cases := []struct {
		name string
		have any
		want any
		ok   bool
	}{
		{"bool vs its string form", true, "true", false},
		{"string form vs bool", "false", false, false},
		{"nil vs nil", nil, nil, true},
		{"nil vs null string", nil, "null", false},
		{"nil vs nil string form", nil, "<nil>", false},
		{"nil vs zero", nil, 0, false},
		{"slice vs identical slice", []any{"a", "b"}, []any{"a", "b"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := fn(tc.have, tc.want)
			require.NoError(t, err)
			assert.Equal(t, tc.ok, got)

			ne, _ := LookupOperator("not_equals")
			inv, err := ne(tc.have, tc.want)
			require.NoError(t, err)
			assert.Equal(t, !tc.ok, inv)
		})
	}
}

func TestStringOperators(t *testing.T) {
	cases := []struct {
		op   string
		have any
		want any
		ok   bool
	}{
		{"contains", "fire rated door", "rated", true},
		{"contains", "fire rated door", "sprinkler", false},
		{"starts_with", "B-occupancy", "B-", true},
		{"ends_with", "room 101A", "1A", true},
		{"regex", "R-2", `^R-\d+$`, true},
		{"regex", "office", `^R-\d+$`, false},
	}
	for _, tc := range cases {
		fn, err := LookupOperator(tc.op)
		require.NoError(t, err)
		got, err := fn(tc.have, tc.want)
		require.NoError(t, err)
		assert.Equal(t, tc.ok, got, "%s(%v, %v)", tc.op, tc.have, tc.want)
	}
}

func TestRegexBadPattern(t *testing.T) {
	fn, _ := LookupOperator("regex")
	_, err := fn("value", "([")
	assert.Error(t, err)
}

func TestMembershipOperators(t *testing.T) {
	in, _ := LookupOperator("in")
	got, err := in("B", []any{"A", "B", "E"})
	require.NoError(t, err)
	assert.True(t, got)

	got, err = in(2, []any{1.0, 2.0})
	require.NoError(t, err)
	assert.True(t, got)

	notIn, _ := LookupOperator("not_in")
	got, err = notIn("H", []any{"A", "B"})
	require.NoError(t, err)
	assert.True(t, got)
}

func TestContainsOnList(t *testing.T) {
	fn, _ := LookupOperator("contains")
	got, err := fn([]any{"exit", "stair"}, "stair")
	require.NoError(t, err)
	assert.True(t, got)
}

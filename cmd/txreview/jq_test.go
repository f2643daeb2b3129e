package main

import (
	"testing"

	"github.com/brojonat/txreview/service/review"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTruthy(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want bool
	}{
		{name: "null", v: nil, want: false},
		{name: "false", v: false, want: false},
		{name: "true", v: true, want: true},
		{name: "zero", v: 0, want: true},
		{name: "empty string", v: "", want: true},
		{name: "empty array", v: []any{}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTruthy(tt.v))
		})
	}
}

func TestFilterTransactions(t *testing.T) {
	food := sampleTransaction("T-1")
	food.CategoryName = "Food"
	rent := sampleTransaction("T-2")
	rent.Description = "Chirie"
	rent.Type = review.TypeTransfer
	txns := []review.Transaction{food, rent}

	tests := []struct {
		name    string
		filters []string
		want    []string
	}{
		{name: "no filters", filters: nil, want: []string{"T-1", "T-2"}},
		{name: "by type", filters: []string{`.type == "transfer"`}, want: []string{"T-2"}},
		{name: "all must match", filters: []string{`.type == "withdrawal"`, `.category_name == "Food"`}, want: []string{"T-1"}},
		{name: "amount is a string on the wire", filters: []string{`.amount == "45.5"`}, want: []string{"T-1", "T-2"}},
		{name: "empty result is falsy", filters: []string{`.notes | select(length > 0)`}, want: []string{}},
		{name: "regex", filters: []string{`.description | test("^chirie$"; "i")`}, want: []string{"T-2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codes, err := compileFilters(tt.filters)
			require.NoError(t, err)

			kept, err := filterTransactions(codes, txns)
			require.NoError(t, err)

			ids := make([]string, 0, len(kept))
			for _, txn := range kept {
				ids = append(ids, txn.ExternalID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestFilterTransactions_RuntimeError(t *testing.T) {
	codes, err := compileFilters([]string{`.amount + 1`})
	require.NoError(t, err)

	_, err = filterTransactions(codes, []review.Transaction{sampleTransaction("T-1")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jq filter failed on T-1")
}

func TestCompileFilters_Invalid(t *testing.T) {
	_, err := compileFilters([]string{`.type ==`})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse jq filter")

	_, err = compileFilters([]string{`$undefined`})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile jq filter")
}

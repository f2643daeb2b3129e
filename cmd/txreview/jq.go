package main

import (
	"encoding/json"
	"fmt"

	"github.com/brojonat/txreview/service/review"
	"github.com/itchyny/gojq"
)

// compileFilters parses and compiles every --must-jq expression.
func compileFilters(exprs []string) ([]*gojq.Code, error) {
	codes := make([]*gojq.Code, len(exprs))
	for i, expr := range exprs {
		query, err := gojq.Parse(expr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", expr, err)
		}
		codes[i], err = gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", expr, err)
		}
	}
	return codes, nil
}

// matchAll reports whether txn satisfies every filter. Filters see the transaction
// in its wire form, so `.amount` is a string and `.date` is whatever the upload had.
func matchAll(codes []*gojq.Code, txn review.Transaction) (bool, error) {
	if len(codes) == 0 {
		return true, nil
	}

	data, err := json.Marshal(txn)
	if err != nil {
		return false, fmt.Errorf("failed to marshal transaction %s: %w", txn.ExternalID, err)
	}
	var input any
	if err := json.Unmarshal(data, &input); err != nil {
		return false, fmt.Errorf("failed to unmarshal transaction %s: %w", txn.ExternalID, err)
	}

	for _, code := range codes {
		iter := code.Run(input)
		v, ok := iter.Next()
		if !ok {
			return false, nil
		}
		if err, isErr := v.(error); isErr {
			return false, fmt.Errorf("jq filter failed on %s: %w", txn.ExternalID, err)
		}
		if !isTruthy(v) {
			return false, nil
		}
	}
	return true, nil
}

// filterTransactions keeps the transactions matching every filter, in order.
func filterTransactions(codes []*gojq.Code, txns []review.Transaction) ([]review.Transaction, error) {
	kept := make([]review.Transaction, 0, len(txns))
	for _, txn := range txns {
		ok, err := matchAll(codes, txn)
		if err != nil {
			return nil, err
		}
		if ok {
			kept = append(kept, txn)
		}
	}
	return kept, nil
}

// isTruthy checks if a jq result value is truthy.
// In jq, false and null are falsy, everything else is truthy.
func isTruthy(v any) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

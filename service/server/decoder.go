package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/brojonat/txreview/service/review"
	"github.com/itchyny/gojq"
)

// Decoder turns the raw text of an uploaded file into candidate transactions.
type Decoder interface {
	Decode(ctx context.Context, content string) ([]review.Transaction, error)
}

// JQDecoder decodes JSON uploads by running a jq program over them.
// The program may emit transaction objects, arrays of them, or both;
// null outputs are skipped.
type JQDecoder struct {
	program string
	code    *gojq.Code
}

// NewJQDecoder compiles program. "." accepts an upload that already is a
// transaction array.
func NewJQDecoder(program string) (*JQDecoder, error) {
	query, err := gojq.Parse(program)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq program %q: %w", program, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq program %q: %w", program, err)
	}
	return &JQDecoder{program: program, code: code}, nil
}

// Program returns the jq source the decoder was built from.
func (d *JQDecoder) Program() string {
	return d.program
}

// Decode parses content as JSON and collects the program's outputs.
// The result is never nil, so an upload without rows decodes to an empty batch.
func (d *JQDecoder) Decode(ctx context.Context, content string) ([]review.Transaction, error) {
	var input any
	if err := json.Unmarshal([]byte(content), &input); err != nil {
		return nil, fmt.Errorf("upload is not valid JSON: %w", err)
	}

	out := make([]review.Transaction, 0)
	iter := d.code.RunWithContext(ctx, input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			return nil, fmt.Errorf("jq program failed: %w", err)
		}

		switch value := v.(type) {
		case nil:
			continue
		case []any:
			for _, item := range value {
				txn, err := toTransaction(item, len(out))
				if err != nil {
					return nil, err
				}
				out = append(out, txn)
			}
		case map[string]any:
			txn, err := toTransaction(value, len(out))
			if err != nil {
				return nil, err
			}
			out = append(out, txn)
		default:
			return nil, fmt.Errorf("jq program produced %T, want an object or an array of objects", v)
		}
	}
	return out, nil
}

func toTransaction(item any, index int) (review.Transaction, error) {
	if _, ok := item.(map[string]any); !ok {
		return review.Transaction{}, fmt.Errorf("row %d: want an object, got %T", index, item)
	}
	data, err := json.Marshal(item)
	if err != nil {
		return review.Transaction{}, fmt.Errorf("row %d: failed to encode: %w", index, err)
	}
	var txn review.Transaction
	if err := json.Unmarshal(data, &txn); err != nil {
		return review.Transaction{}, fmt.Errorf("row %d: %s", index, strings.TrimPrefix(err.Error(), "json: "))
	}
	return txn, nil
}

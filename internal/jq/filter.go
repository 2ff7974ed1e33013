// Package jq evaluates jq expressions against stored run records, with a
// timeout so a pathological expression cannot hang the CLI.
package jq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/itchyny/gojq"

	"troupe/pkg/errors"
)

// DefaultTimeout bounds jq expression evaluation.
const DefaultTimeout = 1 * time.Second

// Filter holds a compiled jq expression.
type Filter struct {
	code    *gojq.Code
	timeout time.Duration
}

// Compile parses and compiles a jq expression.
func Compile(expression string) (*Filter, error) {
	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, errors.Wrap(err, "invalid jq expression")
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, errors.Wrap(err, "jq compilation failed")
	}
	return &Filter{code: code, timeout: DefaultTimeout}, nil
}

// Apply runs the filter against an arbitrary value. The value is
// round-tripped through JSON first so gojq sees plain maps and slices
// rather than Go structs. A single result is returned directly; multiple
// results come back as a slice.
func (f *Filter) Apply(ctx context.Context, value any) (any, error) {
	data, err := toJSONValue(value)
	if err != nil {
		return nil, err
	}

	execCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	resultCh := make(chan any, 1)
	errCh := make(chan error, 1)

	go func() {
		iter := f.code.Run(data)
		var results []any
		for {
			v, ok := iter.Next()
			if !ok {
				break
			}
			if err, isErr := v.(error); isErr {
				errCh <- err
				return
			}
			results = append(results, v)
		}
		switch len(results) {
		case 0:
			resultCh <- nil
		case 1:
			resultCh <- results[0]
		default:
			resultCh <- results
		}
	}()

	select {
	case result := <-resultCh:
		return result, nil
	case err := <-errCh:
		return nil, err
	case <-execCtx.Done():
		return nil, fmt.Errorf("jq evaluation timed out after %v", f.timeout)
	}
}

// toJSONValue converts a Go value into the generic JSON shape gojq expects.
func toJSONValue(value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling value for jq")
	}
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, errors.Wrap(err, "unmarshaling value for jq")
	}
	return data, nil
}

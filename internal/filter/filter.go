// Package filter runs jq expressions over API responses.
package filter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/itchyny/gojq"
)

// NormalizeExpression fixes shell-escaped operators in jq expressions.
// Zsh escapes ! to \! even in single quotes, breaking operators like !=.
func NormalizeExpression(expr string) string {
	return strings.ReplaceAll(expr, `\!`, `!`)
}

// Query is a compiled jq expression that can be run on many values, such as
// every record of a paginated listing.
type Query struct {
	expr string
	code *gojq.Code
}

// Compile parses and compiles expr.
func Compile(expr string) (*Query, error) {
	expr = NormalizeExpression(strings.TrimSpace(expr))
	parsed, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid filter expression: %w", err)
	}
	code, err := gojq.Compile(parsed)
	if err != nil {
		return nil, fmt.Errorf("invalid filter expression: %w", err)
	}
	return &Query{expr: expr, code: code}, nil
}

// String returns the normalized expression.
func (q *Query) String() string {
	return q.expr
}

// Run applies the query to v. A single result is returned as is, several
// results as a slice.
func (q *Query) Run(v any) (any, error) {
	data, err := plain(v)
	if err != nil {
		return nil, err
	}

	iter := q.code.Run(data)
	var results []any
	for {
		out, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := out.(error); ok {
			return nil, fmt.Errorf("filter error: %w", err)
		}
		results = append(results, out)
	}
	if len(results) == 1 {
		return results[0], nil
	}
	return results, nil
}

// Apply compiles expression and runs it once. An empty expression returns
// the data unchanged.
func Apply(data any, expression string) (any, error) {
	if strings.TrimSpace(expression) == "" {
		return data, nil
	}
	q, err := Compile(expression)
	if err != nil {
		return nil, err
	}
	return q.Run(data)
}

// ApplyFromJSON applies a jq filter to JSON bytes and returns the result as a
// Go value.
func ApplyFromJSON(jsonData []byte, expression string) (any, error) {
	var data any
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return Apply(data, expression)
}

// plain converts named map and slice types (such as sdk4me.Object) into the
// generic JSON values gojq accepts.
func plain(v any) (any, error) {
	switch v.(type) {
	case nil, bool, string, float64, int, map[string]any, []any:
		return v, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode filter input: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode filter input: %w", err)
	}
	return out, nil
}

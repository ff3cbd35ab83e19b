// Package filter applies jq expressions to decoded JSON values.
package filter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/itchyny/gojq"
)

// NormalizeExpression undoes shell escaping that breaks jq operators.
// Zsh escapes ! to \! even in single quotes, which turns != into \!=.
func NormalizeExpression(expr string) string {
	return strings.ReplaceAll(expr, `\!`, `!`)
}

// Apply runs expression against data. A single result is returned as-is,
// several results as a slice. An empty expression returns data unchanged.
//
// Paginated list envelopes ({"total": n, "items": [...]}) can be queried as if
// they were the item array: ".[] | .name" falls back to ".items[] | .name".
func Apply(data any, expression string) (any, error) {
	if strings.TrimSpace(expression) == "" {
		return data, nil
	}

	expression = NormalizeExpression(expression)
	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid filter expression: %w", err)
	}

	results, err := run(query, data)
	if err != nil {
		items, ok := listItems(data, expression, err)
		if !ok {
			return nil, err
		}
		results, err = run(query, items)
		if err != nil {
			return nil, err
		}
	}

	if len(results) == 1 {
		return results[0], nil
	}
	return results, nil
}

// ApplyFromJSON decodes jsonData and applies expression to it.
func ApplyFromJSON(jsonData []byte, expression string) (any, error) {
	var data any
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return Apply(data, expression)
}

// ApplyValue round-trips v through JSON so typed values (structs, Results)
// can be queried by their JSON field names.
func ApplyValue(v any, expression string) (any, error) {
	if strings.TrimSpace(expression) == "" {
		return v, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode value for filter: %w", err)
	}
	return ApplyFromJSON(data, expression)
}

func run(query *gojq.Query, data any) ([]any, error) {
	iter := query.Run(data)

	var results []any
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			return nil, fmt.Errorf("filter error: %w", err)
		}
		results = append(results, v)
	}
	return results, nil
}

func listItems(data any, expression string, runErr error) (any, bool) {
	if !iteratesRoot(expression) {
		return nil, false
	}
	if !strings.Contains(runErr.Error(), "expected an object but got") {
		return nil, false
	}

	m, ok := data.(map[string]any)
	if !ok {
		return nil, false
	}
	items, ok := m["items"].([]any)
	if !ok {
		return nil, false
	}
	return items, true
}

func iteratesRoot(expression string) bool {
	expr := strings.TrimSpace(expression)
	return strings.HasPrefix(expr, ".[]") || strings.HasPrefix(expr, "[.[]") || strings.HasPrefix(expr, "(.[]")
}

package engine

import (
	"fmt"
	"slices"
	"strings"

	"github.com/kode4food/courier/internal/resolve"
	"github.com/kode4food/courier/pkg/api"
)

// evaluate decides whether a guarded step runs. The condition's value may
// itself contain references, which are resolved before comparing
func evaluate(c *api.Condition, ctx *resolve.Context) (bool, error) {
	switch c.Type {
	case api.ConditionAlways:
		return true, nil
	case api.ConditionNever:
		return false, nil
	case api.ConditionPreviousOutput:
		actual, ok := ctx.Lookup(fieldPath(c.Field))
		switch c.Operator {
		case api.OperatorExists:
			return ok, nil
		case api.OperatorNotExists:
			return !ok, nil
		case api.OperatorEquals:
			expected, _ := resolve.Resolve(c.Value, ctx)
			return ok && equal(actual, expected), nil
		case api.OperatorContains:
			expected, _ := resolve.Resolve(c.Value, ctx)
			return ok && contains(actual, expected), nil
		default:
			return false, fmt.Errorf("%w: %q",
				api.ErrInvalidOperator, c.Operator)
		}
	default:
		return false, fmt.Errorf("%w: %q", api.ErrInvalidCondition, c.Type)
	}
}

// fieldPath accepts a condition field written with or without braces
func fieldPath(field string) string {
	field = strings.TrimSpace(field)
	if inner, ok := strings.CutPrefix(field, "{{"); ok {
		if inner, ok = strings.CutSuffix(inner, "}}"); ok {
			return strings.TrimSpace(inner)
		}
	}
	return field
}

// equal compares strings directly and everything else by its JSON text, so
// that 3, 3.0, and "3" decoded from different sources agree
func equal(actual, expected any) bool {
	if a, ok := actual.(string); ok {
		if e, ok := expected.(string); ok {
			return a == e
		}
	}
	return resolve.Text(actual) == resolve.Text(expected)
}

// contains tests substrings of strings, elements of lists, and keys of
// objects
func contains(actual, expected any) bool {
	switch a := actual.(type) {
	case string:
		return strings.Contains(a, resolve.Text(expected))
	case []any:
		return slices.ContainsFunc(a, func(elem any) bool {
			return equal(elem, expected)
		})
	case map[string]any:
		_, ok := a[resolve.Text(expected)]
		return ok
	default:
		return strings.Contains(resolve.Text(actual), resolve.Text(expected))
	}
}

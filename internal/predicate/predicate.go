// Package predicate implements a small, total expression grammar for
// policy rules: equality, set-membership, numeric comparison, and
// logical and/or/not over a decision request. It has no dependency on
// the policy document shape or the evaluator state machine so both
// internal/policy (load-time validation) and internal/evaluate
// (request-time evaluation) can depend on it without a cycle.
package predicate

import (
	"fmt"
	"reflect"

	"github.com/lumyn-labs/lumyn/internal/model"
)

// Predicate nodes are decoded YAML/JSON objects with exactly one of these
// keys at the top level:
//
//	eq:  {path, value}        equality (path resolves to value; null==null)
//	in:  {path, values}       set membership
//	gte: {path, value}        numeric comparison (also gt, lte, lt)
//	and: [predicate, ...]
//	or:  [predicate, ...]
//	not: predicate
//
// Undefined paths resolve to null; comparisons against null are false
// except eq-with-null.

// ValidatePredicate checks that node conforms to the grammar above,
// recursively. It does not evaluate anything — it is run once at policy
// load time so that invalid predicates are rejected before any request is
// ever decided.
func ValidatePredicate(node any) error {
	if _, err := Eval(node, nil); err != nil {
		return err
	}
	// Eval short-circuits and/or, so walk every branch explicitly.
	for key, val := range node.(map[string]any) {
		switch key {
		case "and", "or":
			for _, item := range val.([]any) {
				if err := ValidatePredicate(item); err != nil {
					return err
				}
			}
		case "not":
			return ValidatePredicate(val)
		}
	}
	return nil
}

// Eval evaluates a predicate node against req. req may be nil only when
// called from ValidatePredicate to check grammar shape; comparisons
// against a nil request always resolve paths to null.
func Eval(node any, req model.Request) (bool, error) {
	obj, ok := node.(map[string]any)
	if !ok {
		return false, fmt.Errorf("evaluate: predicate must be an object, got %T", node)
	}
	if len(obj) != 1 {
		return false, fmt.Errorf("evaluate: predicate must have exactly one key, got %d", len(obj))
	}
	for key, val := range obj {
		switch key {
		case "eq":
			return evalCompareOp(val, req, cmpEq)
		case "gte":
			return evalCompareOp(val, req, cmpGTE)
		case "gt":
			return evalCompareOp(val, req, cmpGT)
		case "lte":
			return evalCompareOp(val, req, cmpLTE)
		case "lt":
			return evalCompareOp(val, req, cmpLT)
		case "in":
			return evalIn(val, req)
		case "and":
			return evalAnd(val, req)
		case "or":
			return evalOr(val, req)
		case "not":
			return evalNot(val, req)
		default:
			return false, fmt.Errorf("evaluate: unknown predicate operator %q", key)
		}
	}
	// unreachable: len(obj) == 1 guarantees the loop body runs.
	return false, fmt.Errorf("evaluate: empty predicate")
}

type cmpKind int

const (
	cmpEq cmpKind = iota
	cmpGTE
	cmpGT
	cmpLTE
	cmpLT
)

func evalCompareOp(val any, req model.Request, kind cmpKind) (bool, error) {
	args, ok := val.(map[string]any)
	if !ok {
		return false, fmt.Errorf("evaluate: comparison operand must be an object with path/value")
	}
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return false, fmt.Errorf("evaluate: comparison requires a non-empty string path")
	}
	if _, present := args["value"]; !present {
		return false, fmt.Errorf("evaluate: comparison requires a value")
	}
	expected := args["value"]

	var actual any
	if req != nil {
		actual, _ = req.Get(path)
	}

	switch kind {
	case cmpEq:
		return valuesEqual(actual, expected), nil
	default:
		af, aok := asNumber(actual)
		ef, eok := asNumber(expected)
		if !aok || !eok {
			return false, nil
		}
		switch kind {
		case cmpGTE:
			return af >= ef, nil
		case cmpGT:
			return af > ef, nil
		case cmpLTE:
			return af <= ef, nil
		case cmpLT:
			return af < ef, nil
		}
	}
	return false, nil
}

func evalIn(val any, req model.Request) (bool, error) {
	args, ok := val.(map[string]any)
	if !ok {
		return false, fmt.Errorf("evaluate: in operand must be an object with path/values")
	}
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return false, fmt.Errorf("evaluate: in requires a non-empty string path")
	}
	values, ok := args["values"].([]any)
	if !ok {
		return false, fmt.Errorf("evaluate: in requires a values array")
	}

	var actual any
	if req != nil {
		actual, _ = req.Get(path)
	}
	if actual == nil {
		return false, nil
	}
	if list, ok := actual.([]any); ok {
		for _, item := range list {
			for _, v := range values {
				if valuesEqual(item, v) {
					return true, nil
				}
			}
		}
		return false, nil
	}
	for _, v := range values {
		if valuesEqual(actual, v) {
			return true, nil
		}
	}
	return false, nil
}

func evalAnd(val any, req model.Request) (bool, error) {
	items, ok := val.([]any)
	if !ok {
		return false, fmt.Errorf("evaluate: and requires an array of predicates")
	}
	for _, item := range items {
		ok, err := Eval(item, req)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func evalOr(val any, req model.Request) (bool, error) {
	items, ok := val.([]any)
	if !ok {
		return false, fmt.Errorf("evaluate: or requires an array of predicates")
	}
	for _, item := range items {
		ok, err := Eval(item, req)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func evalNot(val any, req model.Request) (bool, error) {
	ok, err := Eval(val, req)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, aok := asNumber(a); aok {
		if bf, bok := asNumber(b); bok {
			return af == bf
		}
	}
	return reflect.DeepEqual(a, b)
}

func asNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}

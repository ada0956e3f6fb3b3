package schema

import (
	"fmt"
	"regexp"
	"sort"
)

// Validate checks instance against the schema and returns a sorted list of
// human-readable violations (empty when valid). It implements the subset
// of JSON Schema Draft 2020-12 this repo's own schemas use: type, enum,
// const, required, properties, additionalProperties, items, minimum,
// maximum, minLength, maxLength, pattern, minItems. $ref is deliberately
// unsupported — the schemas under schemas/ are written flat so this
// subset is sufficient.
func (s *Schema) Validate(instance any) []string {
	var errs []string
	validateNode(s.Doc, instance, "$", &errs)
	sort.Strings(errs)
	return errs
}

func validateNode(node map[string]any, instance any, path string, errs *[]string) {
	if constVal, ok := node["const"]; ok {
		if !deepEqual(constVal, instance) {
			*errs = append(*errs, fmt.Sprintf("%s: must equal constant value", path))
		}
	}
	if rawEnum, ok := node["enum"].([]any); ok {
		matched := false
		for _, v := range rawEnum {
			if deepEqual(v, instance) {
				matched = true
				break
			}
		}
		if !matched {
			*errs = append(*errs, fmt.Sprintf("%s: must be one of the enumerated values", path))
		}
	}
	if t, ok := node["type"].(string); ok {
		if !typeMatches(t, instance) {
			*errs = append(*errs, fmt.Sprintf("%s: expected type %s", path, t))
			return
		}
	}

	switch inst := instance.(type) {
	case map[string]any:
		validateObject(node, inst, path, errs)
	case []any:
		validateArray(node, inst, path, errs)
	case string:
		validateString(node, inst, path, errs)
	case float64:
		validateNumber(node, inst, path, errs)
	}
}

func validateObject(node map[string]any, inst map[string]any, path string, errs *[]string) {
	if reqRaw, ok := node["required"].([]any); ok {
		for _, r := range reqRaw {
			name, ok := r.(string)
			if !ok {
				continue
			}
			if _, present := inst[name]; !present {
				*errs = append(*errs, fmt.Sprintf("%s: missing required property %q", path, name))
			}
		}
	}
	props, _ := node["properties"].(map[string]any)
	for k, v := range inst {
		if props != nil {
			if propSchema, ok := props[k].(map[string]any); ok {
				validateNode(propSchema, v, path+"."+k, errs)
				continue
			}
		}
		if additional, ok := node["additionalProperties"]; ok {
			if b, isBool := additional.(bool); isBool && !b {
				*errs = append(*errs, fmt.Sprintf("%s: unexpected property %q", path, k))
			} else if schemaNode, isSchema := additional.(map[string]any); isSchema {
				validateNode(schemaNode, v, path+"."+k, errs)
			}
		}
	}
}

func validateArray(node map[string]any, inst []any, path string, errs *[]string) {
	if minItems, ok := asFloat(node["minItems"]); ok && float64(len(inst)) < minItems {
		*errs = append(*errs, fmt.Sprintf("%s: expected at least %v items", path, minItems))
	}
	itemSchema, ok := node["items"].(map[string]any)
	if !ok {
		return
	}
	for i, elem := range inst {
		validateNode(itemSchema, elem, fmt.Sprintf("%s[%d]", path, i), errs)
	}
}

func validateString(node map[string]any, inst string, path string, errs *[]string) {
	if minLen, ok := asFloat(node["minLength"]); ok && float64(len(inst)) < minLen {
		*errs = append(*errs, fmt.Sprintf("%s: expected length >= %v", path, minLen))
	}
	if maxLen, ok := asFloat(node["maxLength"]); ok && float64(len(inst)) > maxLen {
		*errs = append(*errs, fmt.Sprintf("%s: expected length <= %v", path, maxLen))
	}
	if pat, ok := node["pattern"].(string); ok {
		re, err := regexp.Compile(pat)
		if err == nil && !re.MatchString(inst) {
			*errs = append(*errs, fmt.Sprintf("%s: does not match pattern %q", path, pat))
		}
	}
}

func validateNumber(node map[string]any, inst float64, path string, errs *[]string) {
	if min, ok := asFloat(node["minimum"]); ok && inst < min {
		*errs = append(*errs, fmt.Sprintf("%s: expected >= %v", path, min))
	}
	if max, ok := asFloat(node["maximum"]); ok && inst > max {
		*errs = append(*errs, fmt.Sprintf("%s: expected <= %v", path, max))
	}
}

func typeMatches(t string, v any) bool {
	switch t {
	case "object":
		_, ok := v.(map[string]any)
		return ok
	case "array":
		_, ok := v.([]any)
		return ok
	case "string":
		_, ok := v.(string)
		return ok
	case "number":
		_, ok := v.(float64)
		return ok
	case "integer":
		f, ok := v.(float64)
		return ok && f == float64(int64(f))
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "null":
		return v == nil
	default:
		return true
	}
}

func asFloat(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

func deepEqual(a, b any) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			if !deepEqual(v, bv[k]) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !deepEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

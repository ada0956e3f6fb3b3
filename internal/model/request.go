// Package model holds the request/record document shapes shared across
// the decision pipeline. The request and its nested evidence stay open
// JSON documents (schema validation happens at the boundary in
// internal/schema); everything the engine derives from a request — the
// normalized feature view, the decision record — is a typed Go struct.
package model

import "strings"

// Request is a decoded decision_request.v0 document. It is kept as a
// generic JSON tree (not a fixed struct) because `evidence` is an open
// mapping and the predicate language (internal/predicate) needs to address
// arbitrary dotted paths into the whole document, including paths the
// schema doesn't fix ahead of time.
type Request map[string]any

// Get resolves a dotted path ("action.amount.value") against the request.
// Any missing segment, or a segment that isn't a JSON object, resolves to
// (nil, false) — undefined paths evaluate to null.
func (r Request) Get(path string) (any, bool) {
	if r == nil {
		return nil, false
	}
	var cur any = map[string]any(r)
	for _, seg := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, present := obj[seg]
		if !present {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// GetString resolves path to a string, returning "" if absent or not a string.
func (r Request) GetString(path string) string {
	v, ok := r.Get(path)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// RequestID returns the request_id field if present and a non-empty string.
func (r Request) RequestID() (string, bool) {
	v, ok := r.Get("request_id")
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// TenantID returns subject.tenant_id if present and a string.
func (r Request) TenantID() (string, bool) {
	v, ok := r.Get("subject.tenant_id")
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	return s, true
}

// TenantKey returns the tenant, or the literal "__global__" sentinel when
// the request carries no tenant_id.
func (r Request) TenantKey() string {
	if t, ok := r.TenantID(); ok && t != "" {
		return t
	}
	return "__global__"
}

// RedactionProfile returns context.redaction.profile if it is a string.
func (r Request) RedactionProfile() (string, bool) {
	v, ok := r.Get("context.redaction.profile")
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	return s, true
}

// PolicyModeOverride returns policy.mode if present.
func (r Request) PolicyModeOverride() (string, bool) {
	v, ok := r.Get("policy.mode")
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	return s, true
}

// WithPolicyMode returns a deep copy of r with policy.mode set to mode,
// creating the "policy" object if it is absent. A policy.mode the request
// already carries is kept, not overwritten. r itself is never mutated.
func (r Request) WithPolicyMode(mode string) Request {
	cp := DeepCopy(map[string]any(r)).(map[string]any)
	policy, ok := cp["policy"].(map[string]any)
	if !ok {
		policy = map[string]any{}
	}
	if _, exists := policy["mode"]; !exists {
		policy["mode"] = mode
	}
	cp["policy"] = policy
	return Request(cp)
}

// DeepCopy returns a deep copy of a value decoded from JSON: nested
// map[string]any, []any, and scalar leaves. Any other shape is returned
// unchanged (it isn't something decoding JSON produces).
func DeepCopy(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = DeepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = DeepCopy(val)
		}
		return out
	default:
		return x
	}
}

// Clone returns a deep copy of the request.
func (r Request) Clone() Request {
	return Request(DeepCopy(map[string]any(r)).(map[string]any))
}

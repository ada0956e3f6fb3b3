// Package redact applies a named redaction profile to the persisted view
// of a decision request. The output becomes both the value stored on the
// decision record and the value digested into inputs_digest, so redaction
// must run before any digest computation.
package redact

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/lumyn-labs/lumyn/internal/model"
)

const (
	ProfileNone    = "none"
	ProfileDefault = "default"
	ProfileStrict  = "strict"
)

// denyList holds evidence keys that carry free text the default profile
// strips. Structural identifiers (ids, hashes, digests) are left intact
// because downstream replay and lookups depend on them.
var denyList = map[string]bool{
	"notes":       true,
	"description": true,
	"message":     true,
	"comment":     true,
	"free_text":   true,
	"transcript":  true,
}

const redactedPlaceholder = "<redacted>"

// Redact returns a deep copy of req with profile applied to its
// evidence block. req is never mutated.
func Redact(req model.Request, profile string) model.Request {
	out := req.Clone()

	switch profile {
	case ProfileNone, "":
		return out
	case ProfileDefault:
		redactDenyListed(out)
		return out
	case ProfileStrict:
		redactDenyListed(out)
		hashLeaves(out)
		return out
	default:
		return out
	}
}

func redactDenyListed(req model.Request) {
	evidence, ok := req["evidence"].(map[string]any)
	if !ok {
		return
	}
	for key := range evidence {
		if denyList[key] {
			evidence[key] = redactedPlaceholder
		}
	}
}

func hashLeaves(req model.Request) {
	evidence, ok := req["evidence"].(map[string]any)
	if !ok {
		return
	}
	for key, val := range evidence {
		evidence[key] = hashValue(val)
	}
}

func hashValue(v any) any {
	switch x := v.(type) {
	case string:
		if x == redactedPlaceholder {
			return x
		}
		return sha256Prefix(x)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = hashValue(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = hashValue(val)
		}
		return out
	default:
		return v
	}
}

func sha256Prefix(s string) string {
	sum := sha256.Sum256([]byte(s))
	return "sha256:" + hex.EncodeToString(sum[:])[:16]
}

// ResolveProfile returns the effective redaction profile for req given
// the engine's configured default: the request's context.redaction.profile
// overrides the configured default.
func ResolveProfile(req model.Request, configured string) string {
	if p, ok := req.RedactionProfile(); ok && p != "" {
		return p
	}
	return configured
}

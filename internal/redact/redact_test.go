package redact

import (
	"strings"
	"testing"

	"github.com/lumyn-labs/lumyn/internal/model"
)

func sampleRequest() model.Request {
	return model.Request{
		"evidence": map[string]any{
			"ticket_id": "ZD-1",
			"notes":     "customer is upset",
		},
	}
}

func TestRedactNoneIsIdentity(t *testing.T) {
	r := sampleRequest()
	out := Redact(r, ProfileNone)
	evidence := out["evidence"].(map[string]any)
	if evidence["notes"] != "customer is upset" {
		t.Fatalf("expected notes untouched under none profile, got %v", evidence["notes"])
	}
}

func TestRedactDefaultDropsDenyListedKeepsIdentifiers(t *testing.T) {
	r := sampleRequest()
	out := Redact(r, ProfileDefault)
	evidence := out["evidence"].(map[string]any)
	if evidence["notes"] != redactedPlaceholder {
		t.Fatalf("expected notes redacted, got %v", evidence["notes"])
	}
	if evidence["ticket_id"] != "ZD-1" {
		t.Fatalf("expected ticket_id preserved, got %v", evidence["ticket_id"])
	}
}

func TestRedactStrictHashesLeaves(t *testing.T) {
	r := sampleRequest()
	out := Redact(r, ProfileStrict)
	evidence := out["evidence"].(map[string]any)
	if evidence["notes"] != redactedPlaceholder {
		t.Fatalf("expected notes redacted by deny-list pass first, got %v", evidence["notes"])
	}
	hashed, ok := evidence["ticket_id"].(string)
	if !ok || !strings.HasPrefix(hashed, "sha256:") {
		t.Fatalf("expected ticket_id hashed under strict profile, got %v", evidence["ticket_id"])
	}
}

func TestRedactDoesNotMutateInput(t *testing.T) {
	r := sampleRequest()
	_ = Redact(r, ProfileStrict)
	evidence := r["evidence"].(map[string]any)
	if evidence["notes"] != "customer is upset" {
		t.Fatalf("expected original request untouched, got %v", evidence["notes"])
	}
}

func TestResolveProfilePrefersRequestOverride(t *testing.T) {
	r := model.Request{"context": map[string]any{"redaction": map[string]any{"profile": "strict"}}}
	if got := ResolveProfile(r, "default"); got != "strict" {
		t.Fatalf("expected request override to win, got %s", got)
	}
	if got := ResolveProfile(model.Request{}, "default"); got != "default" {
		t.Fatalf("expected configured default when request has no override, got %s", got)
	}
}

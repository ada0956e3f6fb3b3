package pack

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lumyn-labs/lumyn/internal/config"
	"github.com/lumyn-labs/lumyn/internal/engine"
	"github.com/lumyn-labs/lumyn/internal/model"
	"github.com/lumyn-labs/lumyn/internal/policy"
	"github.com/lumyn-labs/lumyn/internal/schema"
	"github.com/lumyn-labs/lumyn/internal/store"
)

const fixturePolicyYAML = `
policy_id: test.v0
policy_version: "1"
mode: enforce
stages:
  - id: refunds
    rules:
      - id: high-value-refund
        when:
          gte: {path: action.amount.value, value: 500}
        effect: block
        reason_codes: [HIGH_VALUE]
      - id: low-value-refund
        when:
          lt: {path: action.amount.value, value: 500}
        effect: allow
        reason_codes: []
`

func buildFixtureRecord(t *testing.T) (model.DecisionRecord, string, *policy.Loader) {
	t.Helper()
	dir := t.TempDir()
	policyPath := filepath.Join(dir, "policy.yml")
	if err := os.WriteFile(policyPath, []byte(fixturePolicyYAML), 0o644); err != nil {
		t.Fatalf("write policy fixture: %v", err)
	}

	schemas := schema.NewLoader("../../schemas")
	policyLoader, err := policy.NewLoader(schemas, "../../schemas/reason_codes.v0.json")
	if err != nil {
		t.Fatalf("policy.NewLoader: %v", err)
	}
	st, err := store.Open(filepath.Join(dir, "lumyn.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := config.Config{PolicyPath: policyPath, StorePath: filepath.Join(dir, "lumyn.db"), TopK: 5, RedactionProfile: "default"}
	eng := engine.New(schemas, policyLoader, st, cfg)

	req := model.Request{
		"schema_version": "decision_request.v0",
		"request_id":     "req-pack-1",
		"subject":        map[string]any{"type": "agent", "id": "agent-1"},
		"action": map[string]any{
			"type":   "support.refund",
			"intent": "issue refund",
			"amount": map[string]any{"value": 1000.0, "currency": "USD"},
		},
		"evidence": map[string]any{"notes": "secret complaint"},
		"context":  map[string]any{"mode": "full", "digest": "d1"},
	}

	rec, err := eng.Decide(context.Background(), req)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}

	loadedPolicy, err := policyLoader.Load(policyPath)
	if err != nil {
		t.Fatalf("Load policy for export: %v", err)
	}
	return rec, loadedPolicy.Text, policyLoader
}

func TestExportReplayRoundTripSucceeds(t *testing.T) {
	rec, policyText, policyLoader := buildFixtureRecord(t)

	packBytes, err := Export(rec, policyText)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	replayed, err := Replay(packBytes, policyLoader)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if replayed.Record.DecisionID != rec.DecisionID {
		t.Fatalf("expected replayed record to match, got %s != %s", replayed.Record.DecisionID, rec.DecisionID)
	}
	if replayed.ComputedPolicyHash != rec.Policy.PolicyHash {
		t.Fatalf("expected matching policy_hash, got %s != %s", replayed.ComputedPolicyHash, rec.Policy.PolicyHash)
	}
	if replayed.ComputedInputsDigest != rec.Determinism.InputsDigest {
		t.Fatalf("expected matching inputs_digest, got %s != %s", replayed.ComputedInputsDigest, rec.Determinism.InputsDigest)
	}
}

func TestReplayDetectsPolicyTamper(t *testing.T) {
	rec, policyText, policyLoader := buildFixtureRecord(t)
	// policy_hash is computed over the canonical JSON of the parsed
	// document, so a semantic change (not just whitespace/comments) is
	// needed to move the hash.
	tamperedPolicy := strings.Replace(policyText, `policy_version: "1"`, `policy_version: "2"`, 1)
	if tamperedPolicy == policyText {
		t.Fatal("fixture did not contain the expected policy_version line")
	}

	packBytes, err := Export(rec, tamperedPolicy)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	_, err = Replay(packBytes, policyLoader)
	if err == nil {
		t.Fatal("expected replay to fail on a tampered policy.yml")
	}
}

func TestReplayDetectsRequestTamper(t *testing.T) {
	rec, policyText, policyLoader := buildFixtureRecord(t)
	tampered := rec
	tampered.Request = tampered.Request.Clone()
	tampered.Request["evidence"] = map[string]any{"notes": "tampered after the fact"}

	packBytes, err := Export(tampered, policyText)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	_, err = Replay(packBytes, policyLoader)
	if err == nil {
		t.Fatal("expected replay to fail when request.json diverges from inputs_digest")
	}
}

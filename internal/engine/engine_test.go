package engine

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/lumyn-labs/lumyn/internal/clock"
	"github.com/lumyn-labs/lumyn/internal/config"
	"github.com/lumyn-labs/lumyn/internal/errkit"
	"github.com/lumyn-labs/lumyn/internal/model"
	"github.com/lumyn-labs/lumyn/internal/policy"
	"github.com/lumyn-labs/lumyn/internal/record"
	"github.com/lumyn-labs/lumyn/internal/schema"
	"github.com/lumyn-labs/lumyn/internal/store"
)

type sequentialGenerator struct {
	n int
}

func (g *sequentialGenerator) NewDecisionID() string {
	g.n++
	return "dec-" + strconv.Itoa(g.n)
}

const testPolicyYAML = `
policy_id: test.v0
policy_version: "1"
mode: enforce
stages:
  - id: refunds
    match:
      eq: {path: action.type, value: support.refund}
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

func newTestEngine(t *testing.T, mode string) *Engine {
	t.Helper()
	dir := t.TempDir()

	if err := policyFixture(dir); err != nil {
		t.Fatalf("policyFixture: %v", err)
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

	cfg := config.Config{
		PolicyPath:       filepath.Join(dir, "policy.yml"),
		StorePath:        filepath.Join(dir, "lumyn.db"),
		TopK:             5,
		RedactionProfile: "default",
		Mode:             mode,
	}
	e := New(schemas, policyLoader, st, cfg)
	e.Builder = record.NewBuilder(clock.Frozen{At: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}, &sequentialGenerator{})
	return e
}

func policyFixture(dir string) error {
	return os.WriteFile(filepath.Join(dir, "policy.yml"), []byte(testPolicyYAML), 0o644)
}

func validRequest(requestID string, amount float64) model.Request {
	req := model.Request{
		"schema_version": "decision_request.v0",
		"request_id":     requestID,
		"subject":        map[string]any{"type": "agent", "id": "agent-1"},
		"action": map[string]any{
			"type":   "support.refund",
			"intent": "issue refund",
			"amount": map[string]any{"value": amount, "currency": "USD"},
		},
		"evidence": map[string]any{"notes": "customer complaint"},
		"context":  map[string]any{"mode": "full", "digest": "d1"},
	}
	if requestID == "" {
		delete(req, "request_id")
	}
	return req
}

func TestDecideAllowPath(t *testing.T) {
	e := newTestEngine(t, "")
	rec, err := e.Decide(context.Background(), validRequest("req-allow", 100))
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if rec.Evaluation.Verdict != model.VerdictAllow {
		t.Fatalf("expected ALLOW, got %s (reasons %v)", rec.Evaluation.Verdict, rec.Evaluation.ReasonCodes)
	}
}

func TestDecideBlockPathWithHighValueReasonCode(t *testing.T) {
	e := newTestEngine(t, "")
	rec, err := e.Decide(context.Background(), validRequest("req-block", 1000))
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if rec.Evaluation.Verdict != model.VerdictBlock {
		t.Fatalf("expected BLOCK, got %s", rec.Evaluation.Verdict)
	}
	found := false
	for _, c := range rec.Evaluation.ReasonCodes {
		if c == "HIGH_VALUE" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected HIGH_VALUE reason code, got %v", rec.Evaluation.ReasonCodes)
	}
}

func TestDecideIsIdempotentOnRequestID(t *testing.T) {
	e := newTestEngine(t, "")
	ctx := context.Background()
	req := validRequest("req-dup", 1000)

	first, err := e.Decide(ctx, req)
	if err != nil {
		t.Fatalf("first Decide: %v", err)
	}
	second, err := e.Decide(ctx, req)
	if err != nil {
		t.Fatalf("second Decide: %v", err)
	}
	if first.DecisionID != second.DecisionID {
		t.Fatalf("expected identical decision_id for duplicate request_id, got %s != %s", first.DecisionID, second.DecisionID)
	}
}

func TestDecideMissingTenantIDUsesGlobalKey(t *testing.T) {
	e := newTestEngine(t, "")
	rec, err := e.Decide(context.Background(), validRequest("req-global", 10))
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if rec.Evaluation.Verdict != model.VerdictAllow {
		t.Fatalf("expected ALLOW, got %s", rec.Evaluation.Verdict)
	}
	id, hit, err := e.Store.GetDecisionIDForRequestID(context.Background(), "__global__", "req-global")
	if err != nil || !hit || id != rec.DecisionID {
		t.Fatalf("expected idempotency row under __global__, got id=%s hit=%v err=%v", id, hit, err)
	}
}

func TestDecideUnknownCurrencyDoesNotChangeRefundVerdict(t *testing.T) {
	e := newTestEngine(t, "")
	req := validRequest("req-xyz", 100)
	req["action"].(map[string]any)["amount"].(map[string]any)["currency"] = "XYZ"
	rec, err := e.Decide(context.Background(), req)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	// Predicate path addresses raw request fields, not the normalized
	// view, so currency alone does not change the refund stage's verdict.
	if rec.Evaluation.Verdict != model.VerdictAllow {
		t.Fatalf("expected ALLOW from low-value-refund, got %s", rec.Evaluation.Verdict)
	}
}

func TestDecideValidationFailureIsRejected(t *testing.T) {
	e := newTestEngine(t, "")
	bad := model.Request{"schema_version": "decision_request.v0"}
	_, err := e.Decide(context.Background(), bad)
	if !errkit.Is(err, errkit.Validation) {
		t.Fatalf("expected Validation error, got %v", err)
	}
}

func TestDecideStorageFailureAbstainsAndDoesNotPersist(t *testing.T) {
	e := newTestEngine(t, "")
	e.Store.Close() // simulate storage being unavailable

	rec, err := e.Decide(context.Background(), validRequest("req-abstain", 10))
	if err != nil {
		t.Fatalf("expected abstain to be returned as a normal result, got error: %v", err)
	}
	if rec.Evaluation.Verdict != model.VerdictAbstain {
		t.Fatalf("expected ABSTAIN, got %s", rec.Evaluation.Verdict)
	}
	if rec.Risk.UncertaintyScore != 1.0 {
		t.Fatalf("expected uncertainty_score=1.0, got %v", rec.Risk.UncertaintyScore)
	}

	reopened, err := store.Open(e.Config.StorePath)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer reopened.Close()
	if _, found, err := reopened.GetDecisionRecord(context.Background(), rec.DecisionID); err != nil || found {
		t.Fatalf("expected abstain record not persisted, got found=%v err=%v", found, err)
	}
}

package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/lumyn-labs/lumyn/internal/config"
	"github.com/lumyn-labs/lumyn/internal/engine"
	"github.com/lumyn-labs/lumyn/internal/ids"
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
      - id: low-value-refund
        when:
          lt: {path: action.amount.value, value: 500}
        effect: allow
        reason_codes: []
`

func newTestServer(t *testing.T) *Server {
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
	return &Server{Engine: eng, IDs: ids.ULIDGenerator{}}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.NewRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestDecideEndpointAndGetDecision(t *testing.T) {
	s := newTestServer(t)
	router := s.NewRouter()

	body := map[string]any{
		"schema_version": "decision_request.v0",
		"request_id":     "req-http-1",
		"subject":        map[string]any{"type": "agent", "id": "agent-1"},
		"action": map[string]any{
			"type":   "support.refund",
			"intent": "issue refund",
			"amount": map[string]any{"value": 10.0, "currency": "USD"},
		},
		"evidence": map[string]any{},
		"context":  map[string]any{"mode": "full", "digest": "d1"},
	}
	raw, _ := json.Marshal(body)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v0/decide", bytes.NewReader(raw)))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var rec map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	decisionID, _ := rec["decision_id"].(string)
	if decisionID == "" {
		t.Fatal("expected a decision_id in the response")
	}

	rr2 := httptest.NewRecorder()
	router.ServeHTTP(rr2, httptest.NewRequest(http.MethodGet, "/v0/decisions/"+decisionID, nil))
	if rr2.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching decision, got %d", rr2.Code)
	}
}

func TestGetDecisionUnknownIDReturns404(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.NewRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v0/decisions/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestAppendEventRejectsBlankType(t *testing.T) {
	s := newTestServer(t)
	raw, _ := json.Marshal(map[string]any{"type": "", "data": map[string]any{"k": "v"}})
	rr := httptest.NewRecorder()
	s.NewRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v0/decisions/whatever/events", bytes.NewReader(raw)))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for blank type, got %d", rr.Code)
	}
}

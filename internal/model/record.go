package model

// Verdict is one of the four decision outcomes.
type Verdict string

const (
	VerdictAllow   Verdict = "ALLOW"
	VerdictBlock   Verdict = "BLOCK"
	VerdictQuery   Verdict = "QUERY"
	VerdictAbstain Verdict = "ABSTAIN"
)

// NormalizedRequest is the compact feature view derived by the normalizer.
type NormalizedRequest struct {
	ActionType     string   `json:"action_type"`
	AmountCurrency *string  `json:"amount_currency"`
	AmountUSD      *float64 `json:"amount_usd"`
	Tags           []string `json:"tags"`
}

// MatchedRule is one rule that fired during evaluation, in firing order.
type MatchedRule struct {
	Stage       string   `json:"stage"`
	RuleID      string   `json:"rule_id"`
	Effect      string   `json:"effect"`
	ReasonCodes []string `json:"reason_codes"`
}

// Query is one prompt raised by a fired query rule.
type Query struct {
	RuleID string `json:"rule_id"`
	Prompt string `json:"prompt"`
}

// Evaluation is the policy evaluator's output.
type Evaluation struct {
	Verdict      Verdict       `json:"verdict"`
	ReasonCodes  []string      `json:"reason_codes"`
	MatchedRules []MatchedRule `json:"matched_rules"`
	Queries      []Query       `json:"queries"`
}

// SimilarityMatch is one top-K memory match.
type SimilarityMatch struct {
	MemoryID string  `json:"memory_id"`
	Label    string  `json:"label"`
	Score    float64 `json:"score"`
	Summary  string  `json:"summary"`
}

// Risk folds the evaluation and similarity signals into a single score.
type Risk struct {
	UncertaintyScore       float64           `json:"uncertainty_score"`
	FailureSimilarityScore float64           `json:"failure_similarity_score"`
	FailureSimilarityTopK  []SimilarityMatch `json:"failure_similarity_top_k"`
}

// RecordPolicy is the policy summary embedded in a decision record.
type RecordPolicy struct {
	PolicyID      string `json:"policy_id"`
	PolicyVersion string `json:"policy_version"`
	PolicyHash    string `json:"policy_hash"`
	Mode          string `json:"mode"`
}

// Determinism carries the reproducibility anchors.
type Determinism struct {
	InputsDigest  string `json:"inputs_digest"`
	EngineVersion string `json:"engine_version"`
}

// DecisionRecord is the canonical decision_record.v0 document.
type DecisionRecord struct {
	SchemaVersion string       `json:"schema_version"`
	DecisionID    string       `json:"decision_id"`
	CreatedAt     string       `json:"created_at"`
	Request       Request      `json:"request"`
	Policy        RecordPolicy `json:"policy"`
	Evaluation    Evaluation   `json:"evaluation"`
	Risk          Risk         `json:"risk"`
	Determinism   Determinism  `json:"determinism"`
}

// MemoryItem is a labeled prior feature vector used for similarity scoring.
type MemoryItem struct {
	MemoryID   string         `json:"memory_id"`
	TenantID   *string        `json:"tenant_id"`
	ActionType string         `json:"action_type"`
	Label      string         `json:"label"`
	Feature    map[string]any `json:"feature"`
	Summary    string         `json:"summary"`
	CreatedAt  string         `json:"created_at"`
}

// DecisionEvent is an append-only annotation on a decision record.
type DecisionEvent struct {
	EventID    string         `json:"event_id"`
	DecisionID string         `json:"decision_id"`
	Type       string         `json:"type"`
	Data       map[string]any `json:"data"`
	CreatedAt  string         `json:"created_at"`
}

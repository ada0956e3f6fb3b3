// Package record assembles the canonical decision record. The builder is
// a pure function of its arguments plus two injected dependencies for
// reproducibility: a Clock for created_at and an id Generator for
// decision_id. It never mutates its inputs.
package record

import (
	"time"

	"github.com/lumyn-labs/lumyn/internal/clock"
	"github.com/lumyn-labs/lumyn/internal/ids"
	"github.com/lumyn-labs/lumyn/internal/model"
	"github.com/lumyn-labs/lumyn/internal/version"
)

const SchemaVersion = "decision_record.v0"

// EngineVersion is stamped into every record's determinism block.
var EngineVersion = "lumyn-engine/" + version.Version

// Builder assembles decision records with injected clock/id dependencies.
type Builder struct {
	Clock clock.Clock
	IDs   ids.Generator
}

// NewBuilder constructs a Builder with the given dependencies.
func NewBuilder(c clock.Clock, g ids.Generator) *Builder {
	return &Builder{Clock: c, IDs: g}
}

// Params bundles the already-computed inputs a Build call needs.
type Params struct {
	RedactedRequest        model.Request
	PolicyID               string
	PolicyVersion          string
	PolicyHash             string
	PolicyMode             string
	Evaluation             model.Evaluation
	UncertaintyScore       float64
	FailureSimilarityScore float64
	FailureSimilarityTopK  []model.SimilarityMatch
	InputsDigest           string
}

// Build assembles a DecisionRecord from p.
func (b *Builder) Build(p Params) model.DecisionRecord {
	topK := p.FailureSimilarityTopK
	if topK == nil {
		topK = []model.SimilarityMatch{}
	}

	return model.DecisionRecord{
		SchemaVersion: SchemaVersion,
		DecisionID:    b.IDs.NewDecisionID(),
		CreatedAt:     formatCreatedAt(b.Clock.Now()),
		Request:       p.RedactedRequest,
		Policy: model.RecordPolicy{
			PolicyID:      p.PolicyID,
			PolicyVersion: p.PolicyVersion,
			PolicyHash:    p.PolicyHash,
			Mode:          p.PolicyMode,
		},
		Evaluation: p.Evaluation,
		Risk: model.Risk{
			UncertaintyScore:       p.UncertaintyScore,
			FailureSimilarityScore: p.FailureSimilarityScore,
			FailureSimilarityTopK:  topK,
		},
		Determinism: model.Determinism{
			InputsDigest:  p.InputsDigest,
			EngineVersion: EngineVersion,
		},
	}
}

// Abstain builds the degraded ABSTAIN record: same shape, fixed
// uncertainty, no matches, not persisted by the caller.
func (b *Builder) Abstain(p Params) model.DecisionRecord {
	p.Evaluation = model.Evaluation{
		Verdict:      model.VerdictAbstain,
		ReasonCodes:  []string{"STORAGE_UNAVAILABLE"},
		MatchedRules: []model.MatchedRule{},
		Queries:      []model.Query{},
	}
	p.UncertaintyScore = 1.0
	p.FailureSimilarityScore = 0
	p.FailureSimilarityTopK = []model.SimilarityMatch{}
	return b.Build(p)
}

func formatCreatedAt(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

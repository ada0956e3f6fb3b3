// Package engine implements the decide orchestrator: it composes schema
// validation, policy loading, normalization, redaction, digesting, the
// store, similarity, and the evaluator into the end-to-end decision
// pipeline, including the idempotency and abstain-on-storage-failure
// contracts.
package engine

import (
	"context"
	"strconv"

	"github.com/lumyn-labs/lumyn/internal/clock"
	"github.com/lumyn-labs/lumyn/internal/config"
	"github.com/lumyn-labs/lumyn/internal/digest"
	"github.com/lumyn-labs/lumyn/internal/errkit"
	"github.com/lumyn-labs/lumyn/internal/evaluate"
	"github.com/lumyn-labs/lumyn/internal/ids"
	"github.com/lumyn-labs/lumyn/internal/log"
	"github.com/lumyn-labs/lumyn/internal/model"
	"github.com/lumyn-labs/lumyn/internal/normalize"
	"github.com/lumyn-labs/lumyn/internal/policy"
	"github.com/lumyn-labs/lumyn/internal/record"
	"github.com/lumyn-labs/lumyn/internal/redact"
	"github.com/lumyn-labs/lumyn/internal/schema"
	"github.com/lumyn-labs/lumyn/internal/similarity"
	"github.com/lumyn-labs/lumyn/internal/store"
	"github.com/lumyn-labs/lumyn/internal/telemetry"
)

const maxMemoryCandidates = 500

// Engine bundles the dependencies decide needs: schema loader, policy
// loader, store, clock, id generator, and logger. All are constructed
// once and reused across calls — decide itself holds no mutable state of
// its own and is safe to call concurrently.
type Engine struct {
	Schemas *schema.Loader
	Policy  *policy.Loader
	Store   *store.Store
	Builder *record.Builder
	Logger  *log.Logger
	Config  config.Config
}

// New constructs an Engine from its dependencies, defaulting the clock,
// id generator, and logger to their production implementations.
func New(schemas *schema.Loader, policyLoader *policy.Loader, st *store.Store, cfg config.Config) *Engine {
	return &Engine{
		Schemas: schemas,
		Policy:  policyLoader,
		Store:   st,
		Builder: record.NewBuilder(clock.System{}, ids.ULIDGenerator{}),
		Logger:  log.Nop,
		Config:  cfg,
	}
}

// Decide runs the end-to-end decision pipeline for req against the
// policy at e.Config.PolicyPath.
func (e *Engine) Decide(ctx context.Context, req model.Request) (model.DecisionRecord, error) {
	span := telemetry.StartSpan("lumyn.decide", map[string]string{"top_k": strconv.Itoa(e.Config.TopK)})
	rec, err := e.decide(ctx, req)
	span.End(err)
	e.logSpan(span, rec)
	return rec, err
}

func (e *Engine) decide(ctx context.Context, req model.Request) (model.DecisionRecord, error) {
	// Step 2: overlay config.mode onto request_eval.policy.mode without
	// mutating the caller's request and without leaking into the
	// persisted view except through normal redaction.
	requestEval := req.Clone()
	if e.Config.Mode == "enforce" || e.Config.Mode == "advisory" {
		requestEval = requestEval.WithPolicyMode(e.Config.Mode)
	}

	// Step 3: validate against the request schema.
	requestSchema, err := e.Schemas.Load("decision_request.v0.schema.json")
	if err != nil {
		return model.DecisionRecord{}, err
	}
	if issues := requestSchema.Validate(map[string]any(requestEval)); len(issues) > 0 {
		return model.DecisionRecord{}, errkit.New(errkit.Validation, "request failed schema validation: "+firstIssue(issues))
	}

	// Step 4: load policy.
	loadedPolicy, err := e.Policy.Load(e.Config.PolicyPath)
	if err != nil {
		return model.DecisionRecord{}, err
	}
	if mode, ok := requestEval.PolicyModeOverride(); ok && (mode == "enforce" || mode == "advisory") {
		loadedPolicy = withMode(loadedPolicy, mode)
	}

	// Step 5: normalize.
	normalized := normalize.Normalize(requestEval)

	// Step 6-7: resolve redaction profile and redact.
	profile := redact.ResolveProfile(requestEval, e.Config.RedactionProfile)
	requestForRecord := redact.Redact(requestEval, profile)

	// Step 8: inputs_digest over (redacted request, normalized).
	inputsDigest, err := digest.Of(map[string]any{
		"request":    map[string]any(requestForRecord),
		"normalized": normalizedToMap(normalized),
	})
	if err != nil {
		return model.DecisionRecord{}, errkit.Wrap(errkit.Internal, "failed to compute inputs_digest", err)
	}

	tenantKey := requestEval.TenantKey()
	requestID, hasRequestID := requestEval.RequestID()

	params := record.Params{
		RedactedRequest: requestForRecord,
		PolicyID:        loadedPolicy.PolicyID,
		PolicyVersion:   loadedPolicy.PolicyVersion,
		PolicyHash:      loadedPolicy.PolicyHash,
		PolicyMode:      loadedPolicy.Mode,
		InputsDigest:    inputsDigest,
	}

	// Step 9: store init + policy snapshot. Storage errors here degrade
	// to ABSTAIN.
	if err := e.Store.Init(); err != nil {
		return e.abstain(params, err), nil
	}
	createdAt := e.Builder.Clock.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	if err := e.Store.PutPolicySnapshot(ctx, loadedPolicy.PolicyHash, loadedPolicy.PolicyID, loadedPolicy.PolicyVersion, loadedPolicy.Text, createdAt); err != nil {
		return e.abstain(params, err), nil
	}

	// Step 10: idempotency pre-probe.
	if hasRequestID {
		if existingID, hit, err := e.Store.GetDecisionIDForRequestID(ctx, tenantKey, requestID); err != nil {
			return e.abstain(params, err), nil
		} else if hit {
			existing, found, err := e.Store.GetDecisionRecord(ctx, existingID)
			if err != nil {
				return e.abstain(params, err), nil
			}
			if found {
				return existing, nil
			}
		}
	}

	// Step 11: similarity candidates.
	candidates, err := e.Store.ListMemoryItems(ctx, optionalTenantID(requestEval), normalized.ActionType, maxMemoryCandidates)
	if err != nil {
		return e.abstain(params, err), nil
	}
	topK := similarity.TopKMatches(similarity.FromNormalized(normalized), candidates, e.Config.TopK)

	// Step 12: evaluate policy.
	evaluation, err := evaluate.Run(loadedPolicy, requestEval)
	if err != nil {
		return model.DecisionRecord{}, errkit.Wrap(errkit.InvalidPolicy, "predicate evaluation failed", err)
	}
	params.Evaluation = evaluation

	// Step 13: risk fold.
	uncertainty, failureScore := riskFold(evaluation.Verdict, topK)
	params.UncertaintyScore = uncertainty
	params.FailureSimilarityScore = failureScore
	params.FailureSimilarityTopK = topK

	// Step 14: build record.
	rec := e.Builder.Build(params)

	// Step 15: persist.
	if err := e.Store.PutDecisionRecord(ctx, rec, tenantKey, requestID); err != nil {
		if errkit.Is(err, errkit.Integrity) && hasRequestID {
			existingID, hit, probeErr := e.Store.GetDecisionIDForRequestID(ctx, tenantKey, requestID)
			if probeErr != nil {
				return e.abstain(params, probeErr), nil
			}
			if hit {
				existing, found, getErr := e.Store.GetDecisionRecord(ctx, existingID)
				if getErr != nil {
					return e.abstain(params, getErr), nil
				}
				if found {
					return existing, nil
				}
			}
		}
		return e.abstain(params, err), nil
	}

	return rec, nil
}

func (e *Engine) abstain(params record.Params, cause error) model.DecisionRecord {
	e.Logger.Error("decide: storage failure, abstaining", log.F("error", cause.Error()))
	return e.Builder.Abstain(params)
}

func (e *Engine) logSpan(span *telemetry.Span, rec model.DecisionRecord) {
	fields := []log.Field{
		log.F("span", span.Name),
		log.F("duration_ms", span.Duration.Milliseconds()),
	}
	if span.Err != nil {
		fields = append(fields, log.F("error", span.Err.Error()))
		e.Logger.Error("decide: failed", fields...)
		return
	}
	fields = append(fields, log.F("decision_id", rec.DecisionID), log.F("verdict", string(rec.Evaluation.Verdict)))
	e.Logger.Info("decide: completed", fields...)
}

func riskFold(verdict model.Verdict, topK []model.SimilarityMatch) (uncertainty float64, failureScore float64) {
	u := 0.2
	if verdict == model.VerdictQuery {
		u += 0.2
	}
	maxFailure := 0.0
	for _, m := range topK {
		if m.Label == "failure" && m.Score > maxFailure {
			maxFailure = m.Score
		}
	}
	if maxFailure >= 0.35 {
		u += 0.3
	}
	if u > 1 {
		u = 1
	}
	if u < 0 {
		u = 0
	}
	return u, maxFailure
}

func withMode(p *policy.Loaded, mode string) *policy.Loaded {
	cp := *p
	cp.Mode = mode
	return &cp
}

func normalizedToMap(n model.NormalizedRequest) map[string]any {
	out := map[string]any{
		"action_type": n.ActionType,
		"tags":        toAnySlice(n.Tags),
	}
	if n.AmountCurrency != nil {
		out["amount_currency"] = *n.AmountCurrency
	} else {
		out["amount_currency"] = nil
	}
	if n.AmountUSD != nil {
		out["amount_usd"] = *n.AmountUSD
	} else {
		out["amount_usd"] = nil
	}
	return out
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func optionalTenantID(req model.Request) string {
	t, _ := req.TenantID()
	return t
}

func firstIssue(issues []string) string {
	if len(issues) == 0 {
		return ""
	}
	return issues[0]
}


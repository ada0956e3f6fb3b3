// Package pack builds and replays decision packs: a ZIP bundling a
// decision record, its redacted request view, and the policy text it was
// evaluated against, for offline re-validation.
package pack

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/lumyn-labs/lumyn/internal/digest"
	"github.com/lumyn-labs/lumyn/internal/model"
	"github.com/lumyn-labs/lumyn/internal/normalize"
	"github.com/lumyn-labs/lumyn/internal/policy"
)

const (
	memberRecord  = "decision_record.json"
	memberRequest = "request.json"
	memberPolicy  = "policy.yml"
)

// Export serializes rec and policyText into a decision pack ZIP.
func Export(rec model.DecisionRecord, policyText string) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	recordJSON, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("pack: marshal decision record: %w", err)
	}
	if err := writeMember(w, memberRecord, recordJSON); err != nil {
		return nil, err
	}

	requestJSON, err := json.MarshalIndent(rec.Request, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("pack: marshal request: %w", err)
	}
	if err := writeMember(w, memberRequest, requestJSON); err != nil {
		return nil, err
	}

	if err := writeMember(w, memberPolicy, []byte(policyText)); err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("pack: close zip: %w", err)
	}
	return buf.Bytes(), nil
}

func writeMember(w *zip.Writer, name string, content []byte) error {
	f, err := w.Create(name)
	if err != nil {
		return fmt.Errorf("pack: create member %s: %w", name, err)
	}
	if _, err := f.Write(content); err != nil {
		return fmt.Errorf("pack: write member %s: %w", name, err)
	}
	return nil
}

// Replayed holds what was recomputed from a pack during replay.
type Replayed struct {
	Record               model.DecisionRecord
	ComputedPolicyHash   string
	ComputedInputsDigest string
}

// Replay reads a pack, recomputes policy_hash and inputs_digest from its
// members, and returns a mismatch error if either disagrees with the
// record.
func Replay(packBytes []byte, policyLoader *policy.Loader) (Replayed, error) {
	zr, err := zip.NewReader(bytes.NewReader(packBytes), int64(len(packBytes)))
	if err != nil {
		return Replayed{}, fmt.Errorf("pack: not a valid zip: %w", err)
	}

	recordRaw, err := readMember(zr, memberRecord)
	if err != nil {
		return Replayed{}, err
	}
	requestRaw, err := readMember(zr, memberRequest)
	if err != nil {
		return Replayed{}, err
	}
	policyRaw, err := readMember(zr, memberPolicy)
	if err != nil {
		return Replayed{}, err
	}

	var rec model.DecisionRecord
	if err := json.Unmarshal(recordRaw, &rec); err != nil {
		return Replayed{}, fmt.Errorf("pack: decision_record.json is malformed: %w", err)
	}

	loadedPolicy, err := policyLoader.LoadBytes(policyRaw)
	if err != nil {
		return Replayed{}, fmt.Errorf("pack: policy.yml failed to load: %w", err)
	}
	if loadedPolicy.PolicyHash != rec.Policy.PolicyHash {
		return Replayed{}, fmt.Errorf("policy_hash mismatch: record=%s computed=%s", rec.Policy.PolicyHash, loadedPolicy.PolicyHash)
	}

	var requestView map[string]any
	if err := json.Unmarshal(requestRaw, &requestView); err != nil {
		return Replayed{}, fmt.Errorf("pack: request.json is malformed: %w", err)
	}
	// Redaction never touches action.*, so renormalizing the redacted
	// view recovers exactly the NormalizedRequest the engine digested.
	normalized := normalize.Normalize(model.Request(requestView))
	computedDigest, err := digest.Of(map[string]any{
		"request":    requestView,
		"normalized": normalizedToDigestMap(normalized),
	})
	if err != nil {
		return Replayed{}, fmt.Errorf("pack: failed to recompute inputs_digest: %w", err)
	}
	if computedDigest != rec.Determinism.InputsDigest {
		return Replayed{}, fmt.Errorf("inputs_digest mismatch: record=%s computed=%s", rec.Determinism.InputsDigest, computedDigest)
	}

	return Replayed{Record: rec, ComputedPolicyHash: loadedPolicy.PolicyHash, ComputedInputsDigest: computedDigest}, nil
}

func readMember(zr *zip.Reader, name string) ([]byte, error) {
	f, err := zr.Open(name)
	if err != nil {
		return nil, fmt.Errorf("pack: missing member %s: %w", name, err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

// normalizedToDigestMap mirrors internal/engine's normalizedToMap so
// replay hashes the identical shape the orchestrator digested.
func normalizedToDigestMap(n model.NormalizedRequest) map[string]any {
	tags := make([]any, len(n.Tags))
	for i, t := range n.Tags {
		tags[i] = t
	}
	out := map[string]any{
		"action_type": n.ActionType,
		"tags":        tags,
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

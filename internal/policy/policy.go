// Package policy loads and validates a Lumyn policy document: parse YAML,
// validate against policy.v0.schema.json, cross-check every rule's reason
// codes against the reason-code registry, validate every predicate's
// grammar, and compute the policy_hash. Stage and rule ordering from the
// source document is preserved — it is significant for precedence.
package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lumyn-labs/lumyn/internal/digest"
	"github.com/lumyn-labs/lumyn/internal/errkit"
	"github.com/lumyn-labs/lumyn/internal/predicate"
	"github.com/lumyn-labs/lumyn/internal/schema"
)

const DefaultMode = "enforce"

// Rule is one policy rule within a stage.
type Rule struct {
	ID          string
	When        map[string]any
	Effect      string // allow | block | query
	ReasonCodes []string
	Prompt      string
}

// Stage is an ordered group of rules gated by an optional match predicate.
type Stage struct {
	ID    string
	Match map[string]any // nil => stage always applies
	Rules []Rule
}

// Loaded is a parsed, validated policy document plus its hash.
type Loaded struct {
	PolicyID      string
	PolicyVersion string
	Mode          string
	Stages        []Stage
	PolicyHash    string
	Text          string // original YAML source, for snapshotting and packs
}

// Loader loads policy documents, validating against the policy schema
// and the reason-code registry.
type Loader struct {
	schemas     *schema.Loader
	reasonCodes map[string]string
}

// NewLoader builds a Loader. schemas resolves policy.v0.schema.json;
// reasonCodesPath points at the reason-code registry JSON file.
func NewLoader(schemas *schema.Loader, reasonCodesPath string) (*Loader, error) {
	codes, err := loadReasonCodes(reasonCodesPath)
	if err != nil {
		return nil, err
	}
	return &Loader{schemas: schemas, reasonCodes: codes}, nil
}

// Load reads, parses, and validates the policy document at path.
func (l *Loader) Load(path string) (*Loaded, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errkit.Wrap(errkit.InvalidPolicy, fmt.Sprintf("policy unreadable: %s", path), err)
	}
	return l.LoadBytes(raw)
}

// LoadBytes parses and validates policy YAML already in memory (used by
// the loader above and by decision-pack replay).
func (l *Loader) LoadBytes(raw []byte) (*Loaded, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, errkit.Wrap(errkit.InvalidPolicy, "policy is not valid YAML", err)
	}

	policySchema, err := l.schemas.Load("policy.v0.schema.json")
	if err != nil {
		return nil, err
	}
	if issues := policySchema.Validate(doc); len(issues) > 0 {
		return nil, errkit.New(errkit.InvalidPolicy, fmt.Sprintf("policy schema violation: %v", issues))
	}

	loaded, err := parseDoc(doc)
	if err != nil {
		return nil, errkit.Wrap(errkit.InvalidPolicy, "policy failed structural validation", err)
	}

	if err := l.checkReasonCodes(loaded); err != nil {
		return nil, err
	}
	if err := validatePredicates(loaded); err != nil {
		return nil, errkit.Wrap(errkit.InvalidPolicy, "policy predicate is invalid", err)
	}

	hash, err := ComputeHash(doc)
	if err != nil {
		return nil, errkit.Wrap(errkit.InvalidPolicy, "failed to hash policy document", err)
	}
	loaded.PolicyHash = hash
	loaded.Text = string(raw)
	return loaded, nil
}

// ComputeHash returns the SHA-256 hex digest of the canonical JSON of a
// parsed policy document.
func ComputeHash(doc map[string]any) (string, error) {
	return digest.Of(doc)
}

func parseDoc(doc map[string]any) (*Loaded, error) {
	policyID, _ := doc["policy_id"].(string)
	policyVersion, _ := doc["policy_version"].(string)
	mode, _ := doc["mode"].(string)
	if mode == "" {
		mode = DefaultMode
	}

	rawStages, _ := doc["stages"].([]any)
	stages := make([]Stage, 0, len(rawStages))
	for _, rs := range rawStages {
		stageMap, ok := rs.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("stage entry is not an object")
		}
		id, _ := stageMap["id"].(string)
		match, _ := stageMap["match"].(map[string]any)

		rawRules, _ := stageMap["rules"].([]any)
		rules := make([]Rule, 0, len(rawRules))
		for _, rr := range rawRules {
			ruleMap, ok := rr.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("rule entry in stage %q is not an object", id)
			}
			ruleID, _ := ruleMap["id"].(string)
			when, _ := ruleMap["when"].(map[string]any)
			effect, _ := ruleMap["effect"].(string)
			prompt, _ := ruleMap["prompt"].(string)
			var reasonCodes []string
			if rc, ok := ruleMap["reason_codes"].([]any); ok {
				for _, c := range rc {
					if s, ok := c.(string); ok {
						reasonCodes = append(reasonCodes, s)
					}
				}
			}
			rules = append(rules, Rule{
				ID:          ruleID,
				When:        when,
				Effect:      effect,
				ReasonCodes: reasonCodes,
				Prompt:      prompt,
			})
		}
		stages = append(stages, Stage{ID: id, Match: match, Rules: rules})
	}

	return &Loaded{
		PolicyID:      policyID,
		PolicyVersion: policyVersion,
		Mode:          mode,
		Stages:        stages,
	}, nil
}

func (l *Loader) checkReasonCodes(loaded *Loaded) error {
	for _, stage := range loaded.Stages {
		for _, rule := range stage.Rules {
			for _, code := range rule.ReasonCodes {
				if _, known := l.reasonCodes[code]; !known {
					return errkit.New(errkit.InvalidPolicy,
						fmt.Sprintf("rule %s/%s references unknown reason code %q", stage.ID, rule.ID, code))
				}
			}
		}
	}
	return nil
}

func validatePredicates(loaded *Loaded) error {
	for _, stage := range loaded.Stages {
		if stage.Match != nil {
			if err := predicate.ValidatePredicate(stage.Match); err != nil {
				return fmt.Errorf("stage %s match: %w", stage.ID, err)
			}
		}
		for _, rule := range stage.Rules {
			if err := predicate.ValidatePredicate(rule.When); err != nil {
				return fmt.Errorf("rule %s/%s when: %w", stage.ID, rule.ID, err)
			}
		}
	}
	return nil
}

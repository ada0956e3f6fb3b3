// Package evaluate implements the policy state machine: a staged
// PENDING -> STAGE_K -> DECIDED scan that turns a loaded policy and a
// decision request into a verdict, the matched rules, and any queries
// raised for human input.
package evaluate

import (
	"github.com/lumyn-labs/lumyn/internal/model"
	"github.com/lumyn-labs/lumyn/internal/policy"
	"github.com/lumyn-labs/lumyn/internal/predicate"
)

// effect precedence, highest first: block > query > allow.
func precedence(effect string) int {
	switch effect {
	case "block":
		return 3
	case "query":
		return 2
	case "allow":
		return 1
	default:
		return 0
	}
}

// Run scans every stage of p in order. A stage is skipped entirely if its
// match predicate evaluates false. Within an applying stage, every rule is
// scanned in source order and fires if its when predicate evaluates true.
// The final verdict is the highest-precedence effect among all fired
// rules (block > query > allow); if nothing fires, the verdict defaults
// to ALLOW in enforce mode and QUERY in advisory mode, with reason code
// POLICY_DEFAULT_QUERY attached in the advisory case. Reason codes are
// deduplicated across all fired rules, preserving first-occurrence order.
func Run(p *policy.Loaded, req model.Request) (model.Evaluation, error) {
	var matched []model.MatchedRule
	var queries []model.Query
	var reasonCodes []string
	seenCodes := make(map[string]bool)
	bestEffect := ""

	for _, stage := range p.Stages {
		if stage.Match != nil {
			ok, err := predicate.Eval(stage.Match, req)
			if err != nil {
				return model.Evaluation{}, err
			}
			if !ok {
				continue
			}
		}

		for _, rule := range stage.Rules {
			ok, err := predicate.Eval(rule.When, req)
			if err != nil {
				return model.Evaluation{}, err
			}
			if !ok {
				continue
			}

			matched = append(matched, model.MatchedRule{
				Stage:       stage.ID,
				RuleID:      rule.ID,
				Effect:      rule.Effect,
				ReasonCodes: rule.ReasonCodes,
			})
			for _, code := range rule.ReasonCodes {
				if !seenCodes[code] {
					seenCodes[code] = true
					reasonCodes = append(reasonCodes, code)
				}
			}
			if rule.Effect == "query" {
				queries = append(queries, model.Query{RuleID: rule.ID, Prompt: rule.Prompt})
			}
			if precedence(rule.Effect) > precedence(bestEffect) {
				bestEffect = rule.Effect
			}
		}
	}

	verdict := effectToVerdict(bestEffect, p.Mode)
	if bestEffect == "" && verdict == model.VerdictQuery {
		if !seenCodes["POLICY_DEFAULT_QUERY"] {
			reasonCodes = append(reasonCodes, "POLICY_DEFAULT_QUERY")
		}
	}

	if matched == nil {
		matched = []model.MatchedRule{}
	}
	if queries == nil {
		queries = []model.Query{}
	}
	if reasonCodes == nil {
		reasonCodes = []string{}
	}

	return model.Evaluation{
		Verdict:      verdict,
		ReasonCodes:  reasonCodes,
		MatchedRules: matched,
		Queries:      queries,
	}, nil
}

func effectToVerdict(effect, mode string) model.Verdict {
	switch effect {
	case "block":
		return model.VerdictBlock
	case "query":
		return model.VerdictQuery
	case "allow":
		return model.VerdictAllow
	default:
		if mode == "advisory" {
			return model.VerdictQuery
		}
		return model.VerdictAllow
	}
}

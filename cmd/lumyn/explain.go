package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lumyn-labs/lumyn/internal/errkit"
)

var explainMarkdown bool

var explainCmd = &cobra.Command{
	Use:   "explain <decision_id>",
	Short: "Print a human-readable summary of a stored decision",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		decisionID := args[0]

		eng, closeStore, err := buildEngine(workspaceDir)
		if err != nil {
			return err
		}
		defer closeStore()

		rec, found, err := eng.Store.GetDecisionRecord(context.Background(), decisionID)
		if err != nil {
			return err
		}
		if !found {
			return errkit.New(errkit.NotFound, fmt.Sprintf("unknown decision id: %s", decisionID))
		}

		ruleIDs := make([]string, 0, len(rec.Evaluation.MatchedRules))
		for _, m := range rec.Evaluation.MatchedRules {
			ruleIDs = append(ruleIDs, fmt.Sprintf("%s/%s(%s)", m.Stage, m.RuleID, m.Effect))
		}

		if explainMarkdown {
			fmt.Printf("## Decision `%s`\n\n- created_at: %s\n- verdict: **%s**\n- reason_codes: %s\n- matched_rules: %s\n",
				rec.DecisionID, rec.CreatedAt, rec.Evaluation.Verdict,
				strings.Join(rec.Evaluation.ReasonCodes, ", "), strings.Join(ruleIDs, ", "))
		} else {
			fmt.Printf("decision_id: %s\ncreated_at:  %s\nverdict:     %s\nreason_codes: %s\nmatched_rules: %s\n",
				rec.DecisionID, rec.CreatedAt, rec.Evaluation.Verdict,
				strings.Join(rec.Evaluation.ReasonCodes, ", "), strings.Join(ruleIDs, ", "))
		}
		return nil
	},
}

func init() {
	explainCmd.Flags().BoolVar(&explainMarkdown, "markdown", false, "emit markdown output")
}

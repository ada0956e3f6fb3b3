package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lumyn-labs/lumyn/internal/pack"
	"github.com/lumyn-labs/lumyn/internal/policy"
	"github.com/lumyn-labs/lumyn/internal/schema"
)

var replayMarkdown bool

var replayCmd = &cobra.Command{
	Use:   "replay <pack.zip>",
	Short: "Re-validate a decision pack's policy_hash and inputs_digest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading pack: %w", err)
		}

		schemas := schema.NewLoader("schemas")
		policyLoader, err := policy.NewLoader(schemas, "schemas/reason_codes.v0.json")
		if err != nil {
			return err
		}

		replayed, err := pack.Replay(raw, policyLoader)
		if err != nil {
			return err
		}

		if replayMarkdown {
			fmt.Printf("## Replay OK\n\n- decision_id: `%s`\n- policy_hash: `%s`\n- inputs_digest: `%s`\n",
				replayed.Record.DecisionID, replayed.ComputedPolicyHash, replayed.ComputedInputsDigest)
		} else {
			fmt.Printf("replay ok: decision_id=%s policy_hash=%s inputs_digest=%s\n",
				replayed.Record.DecisionID, replayed.ComputedPolicyHash, replayed.ComputedInputsDigest)
		}
		return nil
	},
}

func init() {
	replayCmd.Flags().BoolVar(&replayMarkdown, "markdown", false, "emit markdown output")
}

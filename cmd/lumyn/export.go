package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lumyn-labs/lumyn/internal/errkit"
	"github.com/lumyn-labs/lumyn/internal/pack"
)

var (
	exportOutPath string
	exportAsPack  bool
)

var exportCmd = &cobra.Command{
	Use:   "export <decision_id>",
	Short: "Export a stored decision as a decision pack",
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

		policyText, found, err := eng.Store.GetPolicySnapshot(context.Background(), rec.Policy.PolicyHash)
		if err != nil {
			return err
		}
		if !found {
			return errkit.New(errkit.NotFound, fmt.Sprintf("no policy snapshot for hash %s", rec.Policy.PolicyHash))
		}

		if !exportAsPack {
			return fmt.Errorf("export requires --pack")
		}
		zipBytes, err := pack.Export(rec, policyText)
		if err != nil {
			return err
		}
		return os.WriteFile(exportOutPath, zipBytes, 0o644)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOutPath, "out", "", "output path for the decision pack")
	exportCmd.Flags().BoolVar(&exportAsPack, "pack", false, "produce a decision pack ZIP")
	_ = exportCmd.MarkFlagRequired("out")
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lumyn-labs/lumyn/internal/model"
)

var decideInPath string

var decideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Evaluate a decision request file against the workspace policy",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(decideInPath)
		if err != nil {
			return fmt.Errorf("reading --in: %w", err)
		}
		var req model.Request
		if err := json.Unmarshal(raw, &req); err != nil {
			return fmt.Errorf("parsing --in as JSON: %w", err)
		}

		eng, closeStore, err := buildEngine(workspaceDir)
		if err != nil {
			return err
		}
		defer closeStore()

		rec, err := eng.Decide(context.Background(), req)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	decideCmd.Flags().StringVar(&decideInPath, "in", "", "path to a decision_request.v0 JSON file")
	_ = decideCmd.MarkFlagRequired("in")
}

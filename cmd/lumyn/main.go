// Command lumyn is the Lumyn policy decision engine's CLI: decide against
// a local workspace, export/replay decision packs, and explain stored
// records.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var workspaceDir string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "lumyn",
	Short: "Lumyn deterministic policy decision engine",
	Long: `Lumyn evaluates agent/service actions against a versioned policy
document and emits a reproducible, auditable decision record.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&workspaceDir, "workspace", ".", "workspace directory")
	rootCmd.AddCommand(versionCmd, decideCmd, exportCmd, replayCmd, explainCmd)
}

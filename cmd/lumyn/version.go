package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lumyn-labs/lumyn/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the lumyn version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(version.Get().String())
		return nil
	},
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"noiseprop/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(stdout, version.Full())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/capgate-dev/capgate/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the capgate version",
	Run: func(cmd *cobra.Command, _ []string) {
		if verbose {
			cmd.Printf("capgate version %s\n", version.Full())
			return
		}
		cmd.Printf("capgate version %s\n", version.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

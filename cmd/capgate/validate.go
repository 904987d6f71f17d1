package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/capgate-dev/capgate/internal/policy"
)

var validateCmd = &cobra.Command{
	Use:   "validate <policy.yaml>",
	Short: "Validate a rights-requirement policy document",
	Long: `Validate loads a policy document, checks it against the policy JSON
schema and the supported version range, and compiles every guard
expression. A valid document is reported with its operation list.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	table, err := policy.LoadFile(args[0])
	if err != nil {
		return err
	}

	cmd.Printf("policy %s is valid (version %s, %d operations)\n",
		args[0], table.Version(), table.Len())

	for _, name := range table.Operations() {
		op, _ := table.Lookup(name)
		var parts []string
		for _, check := range op.Checks() {
			parts = append(parts, fmt.Sprintf("arg%d:%s", check.Arg, check.Rights))
		}
		suffix := ""
		if op.CreatesHandle {
			suffix = " (creates handle)"
		}
		cmd.Printf("  %-10s %s%s\n", name, strings.Join(parts, " "), suffix)
	}
	return nil
}

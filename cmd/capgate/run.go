package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/capgate-dev/capgate/internal/mediation"
	"github.com/capgate-dev/capgate/internal/policy"
	"github.com/capgate-dev/capgate/internal/vfs"
)

var (
	runPolicyPath string
	runDisabled   bool
)

var runCmd = &cobra.Command{
	Use:   "run <scenario.yaml>",
	Short: "Replay a mediation scenario",
	Long: `Run executes a scenario document - a resource tree, pre-opened
handles, and a sequence of mediated operations - against a policy
table and reports each step's outcome. Denied steps are outcomes, not
errors; the command fails only when the scenario itself is malformed.`,
	Args: cobra.ExactArgs(1),
	RunE: runScenario,
}

func init() {
	runCmd.Flags().StringVar(&runPolicyPath, "policy", "", "policy document (default: built-in table)")
	runCmd.Flags().BoolVar(&runDisabled, "disabled", false, "run with mediation disabled")
	_ = viper.BindPFlag("policy", runCmd.Flags().Lookup("policy"))
	rootCmd.AddCommand(runCmd)
}

func runScenario(cmd *cobra.Command, args []string) error {
	table, err := loadPolicyTable()
	if err != nil {
		return err
	}

	ic, err := mediation.New(mediation.Config{
		Enabled: !runDisabled,
		Policy:  table,
	})
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open scenario: %w", err)
	}
	defer func() {
		_ = f.Close() // Best-effort cleanup
	}()

	scenario, err := vfs.LoadScenario(f)
	if err != nil {
		return err
	}

	results, err := scenario.Run(ic)
	if err != nil {
		return err
	}

	denied := 0
	for _, res := range results {
		status := "ok"
		detail := res.Detail
		if !res.OK() {
			status = "denied"
			detail = res.Err.Error()
			denied++
		}
		cmd.Printf("step %d  %-10s %-6s %s\n", res.Index, res.Op, status, detail)
	}
	cmd.Printf("%d steps, %d denied\n", len(results), denied)
	return nil
}

// loadPolicyTable resolves the policy source: the --policy flag, then
// the config file, then the built-in table.
func loadPolicyTable() (*policy.Table, error) {
	path := runPolicyPath
	if path == "" {
		path = viper.GetString("policy")
	}
	if path == "" {
		return policy.Default(), nil
	}
	return policy.LoadFile(path)
}

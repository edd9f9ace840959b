package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/psantana5/perfpro/internal/report"
	"github.com/psantana5/perfpro/internal/runner"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Inspect run plans",
}

var planValidateCmd = &cobra.Command{
	Use:   "validate <plan.yaml>",
	Short: "Check a plan file and list its steps",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlanValidate,
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.AddCommand(planValidateCmd)
}

func runPlanValidate(cmd *cobra.Command, args []string) error {
	plan, err := runner.LoadPlan(args[0])
	if err != nil {
		return err
	}

	format, err := outputFormat()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	switch format {
	case report.FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(plan)
	case report.FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(plan); err != nil {
			return err
		}
		return encoder.Close()
	}

	table := tablewriter.NewWriter(w)
	table.Header("Step", "Command", "Timeout")
	for _, s := range plan.Steps {
		timeout := s.Timeout
		if timeout == "" {
			timeout = "-"
		}
		table.Append(s.Name, strings.TrimSpace(s.Command+" "+strings.Join(s.Args, " ")), timeout)
	}
	table.Render()

	fmt.Fprintf(w, "\nPlan %s is valid: %d steps\n", args[0], len(plan.Steps))
	return nil
}

package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harrison/agentd/internal/planner"
)

// NewPlanCommand creates the plan command.
func NewPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <goal>...",
		Short: "Plan a goal without executing it",
		Long: `Decompose the given goal into steps and print the plan: actions,
confidence scores, risk levels, and pre-computed fallbacks. Nothing is
executed.

Examples:
  agentd plan "add request tracing to the HTTP handlers"
  agentd plan --json "split the config package" > plan.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: planCommand,
	}

	addCommonFlags(cmd)
	cmd.Flags().Bool("json", false, "Print the plan as JSON")

	return cmd
}

func planCommand(cmd *cobra.Command, args []string) error {
	goal := strings.Join(args, " ")

	cfg, err := loadConfigFromFlags(cmd)
	if err != nil {
		return err
	}
	applyFlagOverrides(cmd, cfg)

	workspace, err := resolveWorkspace(cmd)
	if err != nil {
		return err
	}

	stack, err := buildStack(cfg, workspace, cmd)
	if err != nil {
		return err
	}
	defer stack.Close()

	task, err := stack.Planner.PlanTask(cmd.Context(), goal, planner.WorkspaceContext{Root: workspace})
	if err != nil {
		return fmt.Errorf("planning failed: %w", err)
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		data, err := json.MarshalIndent(task, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	printPlan(cmd, task)
	return nil
}

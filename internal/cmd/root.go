// Package cmd wires the agentd CLI: plan, run, and queue subcommands on
// a cobra root.
package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for agentd.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agentd",
		Short: "Resilient agent task orchestration",
		Long: `agentd decomposes natural-language goals into executable step plans
and runs them with retries, self-correction, fallback strategies,
approval gates for destructive actions, and rollback on failure.

Configuration is loaded from $AGENTD_HOME/config.yaml if present.
CLI flags override configuration file settings.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.AddCommand(NewPlanCommand())
	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewQueueCommand())

	return cmd
}

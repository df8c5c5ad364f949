package cmd

import (
	"github.com/spf13/cobra"

	"github.com/servebench/servebench/internal/servebench"
)

// Rebuild the metrics table from a past session and run the goodput analysis
// over it. Also refreshes the summary file inside the session directory.
func analyzeCmd(app *servebench.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <session-dir>",
		Short: "Analyze a session directory for best throughput and per-tier goodput.",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initParams(cmd, app)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Analyze(args[0])
		},
	}
	return cmd
}

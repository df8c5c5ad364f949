package cmd

import (
	"github.com/spf13/cobra"

	"github.com/servebench/servebench/internal/servebench"
)

// Rebuild the metrics table from the artifacts of a past session.
func aggregateCmd(app *servebench.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aggregate <session-dir>",
		Short: "Rebuild the metrics table from a session directory.",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initParams(cmd, app)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Aggregate(args[0])
		},
	}
	return cmd
}

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/servebench/servebench/internal/servebench"
)

// Print the deployment catalog.
func configsCmd(app *servebench.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "configs",
		Short: "List the deployment configurations available to deploy.",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initParams(cmd, app)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Configs()
		},
	}
	return cmd
}

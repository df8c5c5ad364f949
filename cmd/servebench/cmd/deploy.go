package cmd

import (
	"github.com/spf13/cobra"

	"github.com/servebench/servebench/internal/common"
	"github.com/servebench/servebench/internal/servebench"
)

// Deploy a catalog entry and sweep the benchmark against it.
// Prints the aggregated metrics table on exit.
func deployCmd(app *servebench.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy {name|index}",
		Short: "Deploy an inference stack and run the benchmark sweep against it.",
		Long: `Deploy an inference stack and run the benchmark sweep against it.

The argument is an entry from the deployment catalog: either its name or its
1-based index as printed by the configs command. The sweep's concurrency
levels can be overridden with the CONCURRENCIES environment variable, e.g.
CONCURRENCIES=1,10,50.`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initParams(cmd, app)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			shutdown := common.ServeMetrics(app.Params.Config.MetricsPort)
			defer shutdown()

			return app.Deploy(ctx, args[0])
		},
	}
	return cmd
}

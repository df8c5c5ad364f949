package cmd

import (
	"github.com/spf13/cobra"

	"github.com/servebench/servebench/internal/common"
	"github.com/servebench/servebench/internal/servebench"
)

// Sweep the benchmark against an endpoint that is already serving.
func benchCmd(app *servebench.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run the benchmark sweep against an endpoint that is already serving.",
		Long: `Run the benchmark sweep against an endpoint that is already serving.

Nothing is deployed and no tunnel is opened; the endpoint comes from the
SERVICE_URL environment variable, falling back to the configured default.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initParams(cmd, app)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			shutdown := common.ServeMetrics(app.Params.Config.MetricsPort)
			defer shutdown()

			return app.Bench(ctx)
		},
	}
	return cmd
}

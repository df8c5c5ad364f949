package cmd

import (
	"github.com/spf13/cobra"

	"github.com/servebench/servebench/internal/servebench"
)

// Record GPU telemetry on its own, outside a benchmark session.
func gpuMonitorCmd(app *servebench.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gpu-monitor",
		Short: "Record GPU telemetry to a CSV file until interrupted.",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initParams(cmd, app)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			out, err := cmd.Flags().GetString("out")
			if err != nil {
				return err
			}
			return app.GpuMonitor(ctx, out)
		},
	}

	cmd.Flags().String("out", "", "CSV file to write, e.g., './gpu_telemetry.csv'.")

	return cmd
}

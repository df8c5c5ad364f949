package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/servebench/servebench/internal/common"
	"github.com/servebench/servebench/internal/servebench"
)

// initParams loads the configuration into the app. It runs from PreRunE so the
// --config flag has been parsed by the time it is read.
func initParams(cmd *cobra.Command, app *servebench.App) error {
	cfgFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	return common.LoadConfig(app.Params.Config, cfgFile)
}

// signalContext returns a context that is cancelled on SIGINT/SIGTERM.
// Ensures tunnels and deployments are cleaned up on ctrl-C.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	stopSignal := make(chan os.Signal, 1)
	signal.Notify(stopSignal, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-stopSignal:
			cancel()
		}
	}()
	return ctx, cancel
}

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/servebench/servebench/internal/servebench"
)

// RootCmd is the root Cobra command that gets called from the main func.
// All other sub-commands should be registered here.
func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "servebench",
		Short: "servebench deploys LLM inference stacks to Kubernetes and benchmarks them.",
		Long: `servebench deploys LLM inference stacks to Kubernetes and benchmarks them.

The deployment catalog, readiness, tunnel and benchmark settings live in a config file.

Example structure:
namespace: dynamo
deployments:
  - name: vllm-agg
    path: components/backends/vllm/deploy/agg.yaml

The location of this file can be passed in using the --config argument.
If not provided, ./config/servebench and $HOME/.servebench.yaml are used.`,
	}

	cmd.PersistentFlags().String("config", "", "Path to a config file overriding the defaults.")

	cmd.AddCommand(
		deployCmd(servebench.New()),
		benchCmd(servebench.New()),
		aggregateCmd(servebench.New()),
		analyzeCmd(servebench.New()),
		configsCmd(servebench.New()),
		gpuMonitorCmd(servebench.New()),
		versionCmd(servebench.New()),
	)

	return cmd
}

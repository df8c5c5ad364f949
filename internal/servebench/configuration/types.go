package configuration

import (
	"github.com/servebench/servebench/internal/bench"
	"github.com/servebench/servebench/internal/deployment"
	"github.com/servebench/servebench/internal/kubectl"
	"github.com/servebench/servebench/internal/telemetry"
	"github.com/servebench/servebench/internal/tunnel"
)

type ServebenchConfig struct {
	// Namespace the deployments live in.
	Namespace string
	// KubectlBinary overrides the executable looked up on PATH.
	KubectlBinary string
	// KubeContext pins the kubectl context; empty uses the current one.
	KubeContext string

	// ArtifactRoot is where timestamped session directories are created.
	ArtifactRoot string

	// MetricsPort serves prometheus metrics during long sessions; 0 disables.
	MetricsPort uint16

	// TelemetryEnabled records GPU telemetry for the sweep window of a
	// session. Recording failures never fail the session.
	TelemetryEnabled bool

	// Deployments is the selectable configuration catalog, in menu order.
	Deployments []deployment.Config

	Discovery deployment.DiscoveryConfig
	Wait      deployment.WaitConfig
	Tunnel    tunnel.Config
	Telemetry telemetry.Config
	Bench     bench.Config
	// BenchParams is the default workload shape; DEPLOYMENT_MODEL_ID,
	// TOKENIZER_PATH and SERVICE_URL override its fields per session.
	BenchParams bench.Params
}

// Kubectl builds the orchestration CLI client this config describes.
func (c *ServebenchConfig) Kubectl() *kubectl.Kubectl {
	k := kubectl.New(c.Namespace)
	if c.KubectlBinary != "" {
		k.Binary = c.KubectlBinary
	}
	k.Context = c.KubeContext
	return k
}

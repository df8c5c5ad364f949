package servebench

import (
	"context"
	"path/filepath"
	"time"

	"github.com/servebench/servebench/internal/bench"
	"github.com/servebench/servebench/internal/common/util"
	"github.com/servebench/servebench/internal/deployment"
	"github.com/servebench/servebench/internal/telemetry"
	"github.com/servebench/servebench/internal/tunnel"
)

// Deploy selects a catalog entry, applies it to the cluster and runs the
// benchmark sweep against it through a port-forward tunnel. selection is a
// 1-based catalog index or an exact configuration name.
func (a *App) Deploy(ctx context.Context, selection string) error {
	config, err := deployment.Select(a.Params.Config.Deployments, selection)
	if err != nil {
		return err
	}
	return a.newSession(config).Run(ctx)
}

// buildSession wires a session against the real cluster CLI, load generator
// and GPU collectors.
func (a *App) buildSession(config deployment.Config) *Session {
	conf := a.Params.Config
	client := conf.Kubectl()
	outputDir := filepath.Join(conf.ArtifactRoot, sessionDirName(config.Name, time.Now()))

	applier := deployment.NewApplier(client)
	strategies := deployment.Strategies(client, conf.Discovery)
	waiter := deployment.NewWaiter(client)

	tunnelConfig := conf.Tunnel
	if tunnelConfig.LogPath == "" {
		tunnelConfig.LogPath = filepath.Join(outputDir, tunnel.DefaultLogFileName)
	}
	manager := tunnel.NewManager(client, tunnelConfig)

	// The sweep goes through the tunnel, so the endpoint is fixed by the
	// forwarded port rather than SERVICE_URL.
	params := a.benchParams(manager.URL())
	runner := bench.NewRunner(conf.Bench, params, outputDir)

	session := &Session{
		ID:               util.NewSessionId(),
		Deployment:       config,
		OutputDir:        outputDir,
		out:              a.Out,
		levels:           bench.ParseLevels(a.getenv(EnvConcurrencies)),
		params:           params,
		analyze:          a.envBool(EnvTestMode),
		deleteDeployment: a.envBool(EnvCleanup),
	}
	session.apply = func(ctx context.Context) error {
		return applier.Apply(ctx, config)
	}
	session.discover = func(ctx context.Context) ([]string, error) {
		return deployment.Discover(ctx, strategies, config.Name)
	}
	session.waitReady = func(ctx context.Context, targets []string) error {
		return waiter.WaitAllReady(ctx, targets, conf.Wait)
	}
	session.openTunnel = manager.Open
	session.runSweep = runner.RunSweep
	session.teardown = func(ctx context.Context) error {
		return applier.Delete(ctx, config)
	}
	if conf.TelemetryEnabled {
		session.startTelemetry = a.telemetryStarter(outputDir)
	}
	return session
}

// telemetryStarter builds the start hook for a session-scoped GPU recorder
// writing into the session directory.
func (a *App) telemetryStarter(outputDir string) func(ctx context.Context) (func() (*telemetry.Summary, error), error) {
	telemetryConfig := a.Params.Config.Telemetry
	if telemetryConfig.OutPath == "" {
		telemetryConfig.OutPath = filepath.Join(outputDir, telemetry.DefaultFileName)
	}
	recorder := telemetry.NewRecorder(telemetry.NewFallback(), telemetryConfig)
	return func(ctx context.Context) (func() (*telemetry.Summary, error), error) {
		if err := recorder.Start(ctx); err != nil {
			return nil, err
		}
		return recorder.Stop, nil
	}
}

// benchParams resolves the load generator parameters: environment variables
// override the configured values, and the model name stands in for a missing
// tokenizer path.
func (a *App) benchParams(serviceURL string) bench.Params {
	params := a.Params.Config.BenchParams
	params.Model = a.envOr(EnvModelID, params.Model)
	params.Tokenizer = a.envOr(EnvTokenizerPath, params.Tokenizer)
	params.URL = serviceURL
	return params
}

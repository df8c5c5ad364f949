package servebench

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/servebench/servebench/internal/bench"
	"github.com/servebench/servebench/internal/common/util"
	"github.com/servebench/servebench/internal/tunnel"
)

// Bench sweeps the load generator against an endpoint that is already
// serving. Nothing is applied to the cluster and no tunnel is opened; the
// endpoint comes from SERVICE_URL, falling back to the configuration.
func (a *App) Bench(ctx context.Context) error {
	conf := a.Params.Config

	fallbackURL := conf.BenchParams.URL
	if fallbackURL == "" {
		fallbackURL = fmt.Sprintf("http://127.0.0.1:%d", tunnel.DefaultLocalPort)
	}
	params := a.benchParams(a.envOr(EnvServiceURL, fallbackURL))

	outputDir := filepath.Join(conf.ArtifactRoot, sessionDirName("bench", time.Now()))
	runner := bench.NewRunner(conf.Bench, params, outputDir)

	session := &Session{
		ID:        util.NewSessionId(),
		OutputDir: outputDir,
		out:       a.Out,
		levels:    bench.ParseLevels(a.getenv(EnvConcurrencies)),
		params:    params,
		analyze:   a.envBool(EnvTestMode),
	}
	session.runSweep = runner.RunSweep
	if conf.TelemetryEnabled {
		session.startTelemetry = a.telemetryStarter(outputDir)
	}
	return session.RunDirect(ctx)
}

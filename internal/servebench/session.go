package servebench

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/servebench/servebench/internal/bench"
	"github.com/servebench/servebench/internal/deployment"
	"github.com/servebench/servebench/internal/report"
	"github.com/servebench/servebench/internal/telemetry"
	"github.com/servebench/servebench/internal/tunnel"
)

// Session is one benchmark cycle against one deployment configuration. The
// collaborator steps are fields so tests can run a session against a stubbed
// cluster and load generator.
type Session struct {
	// ID tags the session's log lines.
	ID string
	// Deployment is the selected configuration.
	Deployment deployment.Config
	// OutputDir is the timestamped session directory.
	OutputDir string

	out    io.Writer
	levels []int
	params bench.Params
	// analyze appends the goodput analysis to the command output.
	analyze bool
	// deleteDeployment tears the deployment down again during cleanup.
	deleteDeployment bool

	cleanupOnce sync.Once

	// Acquired mid-run, released exactly once by cleanup.
	handle        *tunnel.Handle
	stopTelemetry func() (*telemetry.Summary, error)
	gpuSummary    *telemetry.Summary

	// Stubbable for testing
	apply          func(ctx context.Context) error
	discover       func(ctx context.Context) ([]string, error)
	waitReady      func(ctx context.Context, targets []string) error
	openTunnel     func(ctx context.Context, target string) (*tunnel.Handle, error)
	startTelemetry func(ctx context.Context) (func() (*telemetry.Summary, error), error)
	runSweep       func(ctx context.Context, levels []int) ([]bench.RunResult, error)
	teardown       func(ctx context.Context) error
}

// Run drives the full orchestration loop: apply, discover, wait, tunnel,
// telemetry, sweep, report. Cleanup runs exactly once on every exit path.
// Individual failed sweep points do not fail the session; an aborted sweep
// still aggregates the partial results before its error is returned.
func (s *Session) Run(ctx context.Context) error {
	log.Infof("session %s: benchmarking deployment %s into %s", s.ID, s.Deployment.Name, s.OutputDir)
	if err := os.MkdirAll(s.OutputDir, 0o755); err != nil {
		return errors.WithStack(err)
	}
	s.recordInputs()
	defer s.cleanup()

	if err := s.apply(ctx); err != nil {
		return err
	}

	targets, err := s.discover(ctx)
	if err != nil {
		return err
	}
	log.Infof("discovered deployments: %s", strings.Join(targets, ", "))

	if err := s.waitReady(ctx, targets); err != nil {
		return err
	}

	frontend := pickFrontend(targets, s.Deployment.Name)
	handle, err := s.openTunnel(ctx, "svc/"+frontend)
	if err != nil {
		return err
	}
	s.handle = handle

	s.beginTelemetry(ctx)

	results, sweepErr := s.runSweep(ctx, s.levels)
	if sweepErr != nil {
		log.WithError(sweepErr).Error("sweep did not complete; aggregating what finished")
	}

	// Release the tunnel and stop telemetry before reporting, so the
	// recorded window covers exactly the sweep.
	s.cleanup()

	if err := s.report(results); err != nil {
		return err
	}
	return sweepErr
}

// RunDirect benchmarks an endpoint that is already up: nothing is applied to
// the cluster and no tunnel is opened; the sweep goes straight to the
// configured URL.
func (s *Session) RunDirect(ctx context.Context) error {
	log.Infof("session %s: benchmarking into %s", s.ID, s.OutputDir)
	if err := os.MkdirAll(s.OutputDir, 0o755); err != nil {
		return errors.WithStack(err)
	}
	s.recordInputs()
	defer s.cleanup()

	s.beginTelemetry(ctx)

	results, sweepErr := s.runSweep(ctx, s.levels)
	if sweepErr != nil {
		log.WithError(sweepErr).Error("sweep did not complete; aggregating what finished")
	}
	s.cleanup()

	if err := s.report(results); err != nil {
		return err
	}
	return sweepErr
}

// beginTelemetry starts GPU recording when configured. Telemetry is strictly
// best-effort; a recorder that cannot start is logged and skipped.
func (s *Session) beginTelemetry(ctx context.Context) {
	if s.startTelemetry == nil {
		return
	}
	stop, err := s.startTelemetry(ctx)
	if err != nil {
		log.WithError(err).Warn("gpu telemetry unavailable, continuing without it")
		return
	}
	s.stopTelemetry = stop
}

// cleanup releases the tunnel, then telemetry, then optionally deletes the
// deployment. Each step's error lands in a logged multierror so one failed
// release never blocks the next. Safe to call more than once; later calls do
// nothing.
func (s *Session) cleanup() {
	s.cleanupOnce.Do(func() {
		var result *multierror.Error
		if s.handle != nil {
			result = multierror.Append(result, s.handle.Close())
		}
		if s.stopTelemetry != nil {
			summary, err := s.stopTelemetry()
			s.gpuSummary = summary
			result = multierror.Append(result, err)
		}
		if s.deleteDeployment && s.teardown != nil {
			// Teardown gets its own context so it still runs after the
			// session context is cancelled by a signal.
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			log.Infof("deleting deployment %s", s.Deployment.Name)
			result = multierror.Append(result, s.teardown(ctx))
		}
		if err := result.ErrorOrNil(); err != nil {
			log.WithError(err).Warn("session cleanup reported errors")
		}
	})
}

// report aggregates whatever artifacts the sweep left behind, writes the
// plain-text summary into the session directory and renders the table to the
// command output.
func (s *Session) report(results []bench.RunResult) error {
	succeeded := 0
	for _, result := range results {
		if result.Err == nil && result.MetricsFile != "" {
			succeeded++
		}
	}
	log.Infof("sweep finished: %d/%d runs produced metrics", succeeded, len(results))

	rep, err := report.Aggregate(s.OutputDir, nil)
	if err != nil {
		return err
	}
	analysis := report.Analyze(rep)
	summaryPath, err := report.WriteSummary(s.OutputDir, rep, analysis)
	if err != nil {
		return err
	}

	fmt.Fprint(s.out, rep.Render())
	if s.analyze {
		fmt.Fprint(s.out, "\n")
		fmt.Fprint(s.out, report.RenderAnalysis(analysis))
	}
	if s.gpuSummary != nil {
		fmt.Fprintf(s.out, "\nGPU telemetry: %s\n", s.gpuSummary)
	}
	log.Infof("session %s summary written to %s", s.ID, summaryPath)
	return nil
}

// pickFrontend chooses the deployment whose service gets the tunnel. The
// operator names it "<deployment>-frontend"; failing that, any discovered
// name ending in "frontend" wins, then the first discovered name. Discovery
// never reports success with zero targets, so targets is non-empty here.
func pickFrontend(targets []string, deploymentName string) string {
	want := deploymentName + "-frontend"
	for _, target := range targets {
		if target == want {
			return target
		}
	}
	for _, target := range targets {
		if strings.HasSuffix(target, "frontend") {
			return target
		}
	}
	return targets[0]
}

// sessionDirName stamps a session directory the way the results tooling
// expects: <name>_YYYYMMDD_HHMMSS.
func sessionDirName(name string, now time.Time) string {
	return fmt.Sprintf("%s_%s", name, now.Format("20060102_150405"))
}

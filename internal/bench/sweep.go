// Package bench drives the external load generator across a concurrency
// sweep. Runs are strictly sequential: each level gets the serving stack to
// itself, and the per-level artifact directories it leaves behind are the
// source of truth for aggregation.
package bench

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/servebench/servebench/internal/common/bencherrors"
	"github.com/servebench/servebench/internal/common/util"
	"github.com/servebench/servebench/pkg/genaiperf"
)

// Original benchmark defaults: synthetic 2000-token prompts, 2000-token
// completions, no variance.
const (
	DefaultInputTokenMean  = 2000
	DefaultOutputTokenMean = 2000
)

// DefaultFailureThreshold is the number of consecutive failed runs after
// which the sweep gives up on the target.
const DefaultFailureThreshold = 3

// RunLogFileName is where each run's combined tool output lands, inside the
// run's own directory.
const RunLogFileName = "genai_perf.log"

// Params is the workload shape shared by every run of a sweep.
type Params struct {
	Model            string `yaml:"model"`
	Tokenizer        string `yaml:"tokenizer"`
	URL              string `yaml:"url"`
	InputTokenMean   int    `yaml:"inputTokenMean"`
	InputTokenStdDev int    `yaml:"inputTokenStdDev"`
	OutputTokenMean  int    `yaml:"outputTokenMean"`
}

func (p Params) withDefaults() Params {
	if p.InputTokenMean <= 0 {
		p.InputTokenMean = DefaultInputTokenMean
	}
	if p.OutputTokenMean <= 0 {
		p.OutputTokenMean = DefaultOutputTokenMean
	}
	if p.Tokenizer == "" {
		p.Tokenizer = p.Model
	}
	return p
}

// Config controls how the sweep executes.
type Config struct {
	// Binary is the load-generation executable, genai-perf by default.
	Binary string `yaml:"binary"`
	// PerRunTimeout caps a single run; zero means uncapped.
	PerRunTimeout time.Duration `yaml:"perRunTimeout"`
	// Cooldown is slept between consecutive runs so one level's queue
	// drain does not bleed into the next level's measurements.
	Cooldown time.Duration `yaml:"cooldown"`
	// FailureThreshold aborts the sweep after this many consecutive failed
	// runs; non-positive selects DefaultFailureThreshold.
	FailureThreshold int `yaml:"failureThreshold"`
}

// RunResult records the outcome of one sweep value. An empty MetricsFile
// means the run left no usable artifact behind; the aggregated report simply
// has no row for that level.
type RunResult struct {
	Concurrency int
	OutputDir   string
	MetricsFile string
	Err         error
}

// Runner executes a concurrency sweep, one synchronous run per level.
type Runner struct {
	config     Config
	params     Params
	outputRoot string
	clock      util.Clock

	// Stubbable for testing
	execute func(ctx context.Context, outputDir string, concurrency int) error
}

func NewRunner(config Config, params Params, outputRoot string) *Runner {
	if config.Binary == "" {
		config.Binary = genaiperf.DefaultBinary
	}
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultFailureThreshold
	}
	r := &Runner{
		config:     config,
		params:     params.withDefaults(),
		outputRoot: outputRoot,
		clock:      &util.DefaultClock{},
	}
	r.execute = r.executeGenaiPerf
	return r
}

// RunSweep benchmarks each concurrency level in the supplied order. A failed
// run is recorded and the sweep moves on; only FailureThreshold consecutive
// failures abort it, on the assumption that the target is down rather than
// overloaded. Results gathered before an abort are returned alongside the
// error so they can still be aggregated.
func (r *Runner) RunSweep(ctx context.Context, levels []int) ([]RunResult, error) {
	results := make([]RunResult, 0, len(levels))
	consecutiveFailures := 0
	for i, level := range levels {
		if err := ctx.Err(); err != nil {
			return results, errors.WithStack(err)
		}

		result := r.runOne(ctx, level)
		results = append(results, result)

		if result.Err != nil {
			consecutiveFailures++
			log.WithError(result.Err).Errorf(
				"run at concurrency %d failed (%d consecutive)", level, consecutiveFailures)
			if consecutiveFailures >= r.config.FailureThreshold {
				return results, &bencherrors.ErrTooManyConsecutiveFailures{
					Threshold:   r.config.FailureThreshold,
					Concurrency: level,
				}
			}
		} else {
			consecutiveFailures = 0
		}

		if i < len(levels)-1 && r.config.Cooldown > 0 {
			log.Infof("cooling down for %s before the next run", r.config.Cooldown)
			r.clock.Sleep(ctx, r.config.Cooldown)
		}
	}
	return results, nil
}

func (r *Runner) runOne(ctx context.Context, level int) RunResult {
	result := RunResult{
		Concurrency: level,
		OutputDir:   filepath.Join(r.outputRoot, fmt.Sprintf("c%d", level)),
	}

	// Re-running a level replaces its directory, so artifacts from an
	// earlier attempt cannot leak into the aggregated report.
	if err := os.RemoveAll(result.OutputDir); err != nil {
		result.Err = errors.WithMessagef(err, "clearing %s", result.OutputDir)
		return result
	}
	if err := os.MkdirAll(result.OutputDir, 0o755); err != nil {
		result.Err = errors.WithMessagef(err, "creating %s", result.OutputDir)
		return result
	}

	log.Infof("benchmarking %s at concurrency %d (input %d tokens, output %d tokens)",
		r.params.Model, level, r.params.InputTokenMean, r.params.OutputTokenMean)

	start := time.Now()
	err := r.execute(ctx, result.OutputDir, level)
	runDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		runsTotal.WithLabelValues("failed").Inc()
		result.Err = &bencherrors.ErrRunFailed{
			Concurrency: level,
			ExitCode:    util.ExitCode(err),
			Message:     err.Error(),
		}
		return result
	}
	runsTotal.WithLabelValues("succeeded").Inc()

	artifacts, err := genaiperf.FindArtifacts(result.OutputDir)
	if err != nil {
		result.Err = errors.WithMessagef(err, "scanning %s for artifacts", result.OutputDir)
		return result
	}
	switch len(artifacts) {
	case 1:
		result.MetricsFile = artifacts[0]
	case 0:
		log.Warnf("run at concurrency %d exited cleanly but left no metrics artifact", level)
	default:
		log.Warnf("run at concurrency %d left %d metrics artifacts, expected one; none recorded", level, len(artifacts))
	}
	return result
}

func (r *Runner) executeGenaiPerf(ctx context.Context, outputDir string, concurrency int) error {
	if r.config.PerRunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.PerRunTimeout)
		defer cancel()
	}

	params := genaiperf.ProfileParams{
		Model:            r.params.Model,
		Tokenizer:        r.params.Tokenizer,
		URL:              r.params.URL,
		InputTokenMean:   r.params.InputTokenMean,
		InputTokenStdDev: r.params.InputTokenStdDev,
		OutputTokenMean:  r.params.OutputTokenMean,
		Concurrency:      concurrency,
		ArtifactDir:      outputDir,
	}

	logFile, err := os.Create(filepath.Join(outputDir, RunLogFileName))
	if err != nil {
		return errors.WithStack(err)
	}
	defer logFile.Close()

	cmd := exec.CommandContext(ctx, r.config.Binary, params.Args()...)
	cmd.Dir = outputDir
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	log.Debugf("running %s %s", r.config.Binary, strings.Join(params.Args(), " "))
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return errors.Errorf("timed out after %s", r.config.PerRunTimeout)
		}
		return errors.WithStack(err)
	}
	return nil
}

package bench

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servebench/servebench/internal/common/bencherrors"
	"github.com/servebench/servebench/internal/common/util"
	"github.com/servebench/servebench/pkg/genaiperf"
)

// newTestRunner returns a runner whose execute stub records the levels it ran
// and writes a metrics artifact, failing outright at the levels in failAt.
func newTestRunner(t *testing.T, failAt map[int]bool) (*Runner, *[]int) {
	t.Helper()
	r := NewRunner(Config{}, Params{Model: "llama", URL: "http://127.0.0.1:18000"}, t.TempDir())
	executed := &[]int{}
	r.execute = func(ctx context.Context, outputDir string, concurrency int) error {
		*executed = append(*executed, concurrency)
		if failAt[concurrency] {
			return errors.New("load generator crashed")
		}
		return writeArtifact(outputDir)
	}
	return r, executed
}

func writeArtifact(outputDir string) error {
	return os.WriteFile(filepath.Join(outputDir, genaiperf.ArtifactFileName), []byte(`{}`), 0o644)
}

func TestRunSweepContinuesPastSingleFailure(t *testing.T) {
	r, executed := newTestRunner(t, map[int]bool{5: true})

	results, err := r.RunSweep(context.Background(), []int{1, 5, 20})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []int{1, 5, 20}, *executed)

	assert.NoError(t, results[0].Err)
	assert.NotEmpty(t, results[0].MetricsFile)

	var runErr *bencherrors.ErrRunFailed
	require.ErrorAs(t, results[1].Err, &runErr)
	assert.Equal(t, 5, runErr.Concurrency)
	assert.Empty(t, results[1].MetricsFile)

	assert.NoError(t, results[2].Err)
	assert.NotEmpty(t, results[2].MetricsFile)
}

func TestRunSweepAbortsAfterConsecutiveFailures(t *testing.T) {
	r, executed := newTestRunner(t, map[int]bool{1: true, 2: true, 5: true, 10: true, 50: true})

	results, err := r.RunSweep(context.Background(), []int{1, 2, 5, 10, 50})

	var tooMany *bencherrors.ErrTooManyConsecutiveFailures
	require.ErrorAs(t, err, &tooMany)
	assert.Equal(t, 3, tooMany.Threshold)
	assert.Equal(t, 5, tooMany.Concurrency)

	assert.Len(t, results, 3)
	assert.Equal(t, []int{1, 2, 5}, *executed)
}

func TestRunSweepFailureCountResetsOnSuccess(t *testing.T) {
	r, _ := newTestRunner(t, map[int]bool{1: true, 2: true, 10: true, 50: true})

	results, err := r.RunSweep(context.Background(), []int{1, 2, 5, 10, 50})
	require.NoError(t, err)
	assert.Len(t, results, 5)
}

func TestRunSweepReplacesStaleRunDirectory(t *testing.T) {
	r, _ := newTestRunner(t, nil)
	r.execute = func(ctx context.Context, outputDir string, concurrency int) error {
		return nil
	}

	staleDir := filepath.Join(r.outputRoot, "c5")
	require.NoError(t, os.MkdirAll(staleDir, 0o755))
	stale := filepath.Join(staleDir, genaiperf.ArtifactFileName)
	require.NoError(t, os.WriteFile(stale, []byte(`{}`), 0o644))

	results, err := r.RunSweep(context.Background(), []int{5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.Empty(t, results[0].MetricsFile)
	assert.NoFileExists(t, stale)
}

func TestRunSweepCooldownBetweenRuns(t *testing.T) {
	r, _ := newTestRunner(t, nil)
	clock := &util.DummyClock{}
	r.clock = clock
	r.config.Cooldown = 30 * time.Second

	_, err := r.RunSweep(context.Background(), []int{1, 5, 20})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{30 * time.Second, 30 * time.Second}, clock.Slept)
}

func TestRunSweepStopsWhenCancelled(t *testing.T) {
	r, executed := newTestRunner(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	r.execute = func(ctx context.Context, outputDir string, concurrency int) error {
		*executed = append(*executed, concurrency)
		cancel()
		return nil
	}

	results, err := r.RunSweep(ctx, []int{1, 5, 20})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, results, 1)
	assert.Equal(t, []int{1}, *executed)
}

func TestRunSweepMissingArtifactIsNotAFailure(t *testing.T) {
	r, _ := newTestRunner(t, nil)
	r.execute = func(ctx context.Context, outputDir string, concurrency int) error {
		return nil
	}

	results, err := r.RunSweep(context.Background(), []int{1})
	require.NoError(t, err)
	assert.NoError(t, results[0].Err)
	assert.Empty(t, results[0].MetricsFile)
}

func TestRunSweepAmbiguousArtifactsNotRecorded(t *testing.T) {
	r, _ := newTestRunner(t, nil)
	r.execute = func(ctx context.Context, outputDir string, concurrency int) error {
		if err := os.MkdirAll(filepath.Join(outputDir, "nested"), 0o755); err != nil {
			return err
		}
		if err := writeArtifact(outputDir); err != nil {
			return err
		}
		return writeArtifact(filepath.Join(outputDir, "nested"))
	}

	results, err := r.RunSweep(context.Background(), []int{1})
	require.NoError(t, err)
	assert.NoError(t, results[0].Err)
	assert.Empty(t, results[0].MetricsFile)
}

func TestRunSweepRealProcess(t *testing.T) {
	root := t.TempDir()
	r := NewRunner(Config{Binary: "true"}, Params{Model: "llama", URL: "http://127.0.0.1:18000"}, root)
	results, err := r.RunSweep(context.Background(), []int{1})
	require.NoError(t, err)
	assert.NoError(t, results[0].Err)
	assert.FileExists(t, filepath.Join(root, "c1", RunLogFileName))

	r = NewRunner(Config{Binary: "false"}, Params{Model: "llama", URL: "http://127.0.0.1:18000"}, root)
	results, err = r.RunSweep(context.Background(), []int{1})
	require.NoError(t, err)
	var runErr *bencherrors.ErrRunFailed
	require.ErrorAs(t, results[0].Err, &runErr)
	assert.Equal(t, 1, runErr.ExitCode)
}

func TestNewRunnerAppliesDefaults(t *testing.T) {
	r := NewRunner(Config{}, Params{Model: "llama"}, t.TempDir())
	assert.Equal(t, genaiperf.DefaultBinary, r.config.Binary)
	assert.Equal(t, DefaultFailureThreshold, r.config.FailureThreshold)
	assert.Equal(t, DefaultInputTokenMean, r.params.InputTokenMean)
	assert.Equal(t, DefaultOutputTokenMean, r.params.OutputTokenMean)
	assert.Equal(t, "llama", r.params.Tokenizer)
}

package telemetry

import (
	"context"
	"encoding/csv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/servebench/servebench/internal/common/task"
	"github.com/servebench/servebench/internal/common/util"
)

// Header is the fixed schema of the telemetry CSV.
const Header = "timestamp,gpu_id,utilization,memory_used,memory_total,power_draw,temperature"

// DefaultFileName is the telemetry CSV written into a session directory.
const DefaultFileName = "gpu_telemetry.csv"

const metricsPrefix = "servebench_"

// Config tunes one telemetry recorder.
type Config struct {
	Interval time.Duration `yaml:"interval"`
	OutPath  string        `yaml:"outPath"`
	// StopFile is a sentinel path; its appearance halts sampling. Empty
	// disables the sentinel.
	StopFile string `yaml:"stopFile"`
}

// Recorder samples GPU state on a background loop and appends CSV rows to the
// output file. One recorder serves one benchmark session; Start always begins
// a fresh file.
type Recorder struct {
	collector  Collector
	config     Config
	clock      util.Clock
	registerer prometheus.Registerer

	manager *task.BackgroundTaskManager

	mu       sync.Mutex
	file     *os.File
	writer   *csv.Writer
	stopped  bool
	samples  int
	failures int
}

func NewRecorder(collector Collector, config Config) *Recorder {
	if config.Interval <= 0 {
		config.Interval = 5 * time.Second
	}
	return &Recorder{
		collector:  collector,
		config:     config,
		clock:      &util.DefaultClock{},
		registerer: prometheus.DefaultRegisterer,
	}
}

// Start truncates the output file, writes the header and begins sampling in
// the background.
func (r *Recorder) Start(ctx context.Context) error {
	file, err := os.Create(r.config.OutPath)
	if err != nil {
		return errors.WithMessagef(err, "creating telemetry file %s", r.config.OutPath)
	}
	r.file = file
	r.writer = csv.NewWriter(file)
	if err := r.writer.Write(strings.Split(Header, ",")); err != nil {
		_ = file.Close()
		return errors.WithStack(err)
	}
	r.writer.Flush()

	r.manager = task.NewBackgroundTaskManager(metricsPrefix, r.registerer)
	r.manager.Register(func() { r.sampleOnce(ctx) }, r.config.Interval, "gpu_telemetry")
	log.Infof("recording GPU telemetry to %s every %s via %s", r.config.OutPath, r.config.Interval, r.collector.Name())
	return nil
}

// sampleOnce appends one tick's worth of rows. Failures are logged and the
// tick skipped; sampling carries on.
func (r *Recorder) sampleOnce(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	if r.config.StopFile != "" {
		if _, err := os.Stat(r.config.StopFile); err == nil {
			log.Infof("telemetry stop file %s present, sampling halted", r.config.StopFile)
			r.stopped = true
			return
		}
	}

	samples, err := r.collector.Collect(ctx)
	if err != nil {
		r.failures++
		log.WithError(err).Warn("gpu sample failed, skipping tick")
		return
	}

	now := r.clock.Now().UTC().Format(time.RFC3339)
	for _, sample := range samples {
		record := []string{
			now,
			strconv.Itoa(sample.GpuId),
			formatReading(sample.Utilization),
			formatReading(sample.MemoryUsedMib),
			formatReading(sample.MemoryTotalMib),
			formatReading(sample.PowerDraw),
			formatReading(sample.Temperature),
		}
		if err := r.writer.Write(record); err != nil {
			r.failures++
			log.WithError(err).Warn("could not append telemetry row")
			return
		}
	}
	r.writer.Flush()
	r.samples += len(samples)
}

// Stop halts sampling, closes the file and summarizes what was recorded.
func (r *Recorder) Stop() (*Summary, error) {
	if r.manager != nil {
		if timedOut := r.manager.StopAll(5 * time.Second); timedOut {
			log.Warn("telemetry loop did not stop in time")
		}
	}

	r.mu.Lock()
	r.stopped = true
	if r.writer != nil {
		r.writer.Flush()
	}
	if r.file != nil {
		_ = r.file.Close()
		r.file = nil
	}
	failures := r.failures
	r.mu.Unlock()

	if failures > 0 {
		log.Warnf("%d telemetry ticks failed during the session", failures)
	}
	return Summarize(r.config.OutPath)
}

func formatReading(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

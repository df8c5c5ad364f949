// Package report turns the per-run metrics artifacts of a sweep into sorted
// tables and a goodput analysis. Reports are recomputed from the artifact
// files every time; the artifacts stay the source of truth and nothing here
// is cached or persisted authoritatively.
package report

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/servebench/servebench/pkg/genaiperf"
)

// Field selects one numeric cell from a metrics artifact: the metric's export
// name plus the statistic to read from it.
type Field struct {
	Metric string
	Stat   string
}

// Key is the column name used in reports, e.g. "time_to_first_token_p90".
func (f Field) Key() string {
	return f.Metric + "_" + f.Stat
}

// DefaultFields mirror the columns of the original results table, plus the
// p90 tail latencies the goodput analysis gates on.
var DefaultFields = []Field{
	{Metric: "request_throughput", Stat: "avg"},
	{Metric: "output_token_throughput", Stat: "avg"},
	{Metric: "output_token_throughput_per_user", Stat: "avg"},
	{Metric: "request_latency", Stat: "avg"},
	{Metric: "time_to_first_token", Stat: "avg"},
	{Metric: "time_to_first_token", Stat: "p90"},
	{Metric: "inter_token_latency", Stat: "avg"},
	{Metric: "inter_token_latency", Stat: "p90"},
	{Metric: "time_to_second_token", Stat: "avg"},
}

// Row is one concurrency level's extracted metrics. A cell is absent from the
// map when the run's artifact did not carry that metric.
type Row struct {
	Concurrency int
	Metrics     map[string]float64
}

// Report is the aggregated view over one session's run directories.
type Report struct {
	Fields []Field
	Rows   []Row
}

var runDirPattern = regexp.MustCompile(`^c(\d+)$`)

// Aggregate scans the immediate c<level> subdirectories of outputRoot, loads
// the single metrics artifact each one is expected to hold, and extracts the
// requested fields (DefaultFields when none are given). Directories holding
// zero or multiple artifacts, or an unreadable one, are skipped with a
// warning. Rows come back sorted by numeric concurrency, so c10 sorts after
// c2, never lexicographically before it.
func Aggregate(outputRoot string, fields []Field) (*Report, error) {
	if len(fields) == 0 {
		fields = DefaultFields
	}
	entries, err := os.ReadDir(outputRoot)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	report := &Report{Fields: fields}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		match := runDirPattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		concurrency, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}

		dir := filepath.Join(outputRoot, entry.Name())
		artifacts, err := genaiperf.FindArtifacts(dir)
		if err != nil {
			return nil, err
		}
		if len(artifacts) != 1 {
			log.Warnf("skipping %s: found %d metrics artifacts, expected one", dir, len(artifacts))
			continue
		}
		artifact, err := genaiperf.Load(artifacts[0])
		if err != nil {
			log.WithError(err).Warnf("skipping %s: unreadable metrics artifact", dir)
			continue
		}

		row := Row{Concurrency: concurrency, Metrics: map[string]float64{}}
		for _, field := range fields {
			if value, ok := artifact.Metric(field.Metric).Value(field.Stat); ok {
				row.Metrics[field.Key()] = value
			}
		}
		report.Rows = append(report.Rows, row)
	}

	sort.Slice(report.Rows, func(i, j int) bool {
		return report.Rows[i].Concurrency < report.Rows[j].Concurrency
	})
	return report, nil
}

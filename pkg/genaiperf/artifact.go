package genaiperf

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// ArtifactFileName is the metrics file genai-perf writes somewhere under the
// artifact directory. The exact subdirectory depends on the genai-perf
// version, so callers locate it with FindArtifacts rather than by path.
const ArtifactFileName = "profile_export_genai_perf.json"

// MetricStat holds the statistics genai-perf reports for a single metric.
type MetricStat struct {
	Unit string  `json:"unit"`
	Avg  float64 `json:"avg"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	P50  float64 `json:"p50"`
	P90  float64 `json:"p90"`
	P95  float64 `json:"p95"`
	P99  float64 `json:"p99"`
	Std  float64 `json:"std"`
}

// Artifact is the subset of the genai-perf metrics export consumed by
// aggregation and analysis. Latencies are reported in milliseconds,
// throughputs in requests or tokens per second. Metrics absent from the
// export stay nil, which is distinct from a metric reported as zero.
type Artifact struct {
	RequestThroughput            *MetricStat `json:"request_throughput"`
	RequestLatency               *MetricStat `json:"request_latency"`
	TimeToFirstToken             *MetricStat `json:"time_to_first_token"`
	TimeToSecondToken            *MetricStat `json:"time_to_second_token"`
	InterTokenLatency            *MetricStat `json:"inter_token_latency"`
	OutputTokenThroughput        *MetricStat `json:"output_token_throughput"`
	OutputTokenThroughputPerUser *MetricStat `json:"output_token_throughput_per_user"`
	InputSequenceLength          *MetricStat `json:"input_sequence_length"`
	OutputSequenceLength         *MetricStat `json:"output_sequence_length"`
}

// Metric returns the named metric's statistics by its export name, or nil
// when the artifact does not carry that metric.
func (a *Artifact) Metric(name string) *MetricStat {
	switch name {
	case "request_throughput":
		return a.RequestThroughput
	case "request_latency":
		return a.RequestLatency
	case "time_to_first_token":
		return a.TimeToFirstToken
	case "time_to_second_token":
		return a.TimeToSecondToken
	case "inter_token_latency":
		return a.InterTokenLatency
	case "output_token_throughput":
		return a.OutputTokenThroughput
	case "output_token_throughput_per_user":
		return a.OutputTokenThroughputPerUser
	case "input_sequence_length":
		return a.InputSequenceLength
	case "output_sequence_length":
		return a.OutputSequenceLength
	}
	return nil
}

// Value returns the named statistic. The second return is false when the
// metric is nil or the statistic name is unknown.
func (m *MetricStat) Value(stat string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	switch stat {
	case "avg":
		return m.Avg, true
	case "min":
		return m.Min, true
	case "max":
		return m.Max, true
	case "p50":
		return m.P50, true
	case "p90":
		return m.P90, true
	case "p95":
		return m.P95, true
	case "p99":
		return m.P99, true
	case "std":
		return m.Std, true
	}
	return 0, false
}

// Load reads and decodes a metrics artifact.
func Load(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	artifact := &Artifact{}
	if err := json.Unmarshal(data, artifact); err != nil {
		return nil, errors.WithMessagef(err, "invalid metrics artifact %s", path)
	}
	return artifact, nil
}

// FindArtifacts walks root recursively and returns the paths of all metrics
// artifacts beneath it, in lexical order. A missing root is not an error; it
// returns an empty slice, as does a run that produced no artifact.
func FindArtifacts(root string) ([]string, error) {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, nil
	}
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == ArtifactFileName {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return paths, nil
}

package telemetry

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
)

// Summary aggregates one session's telemetry CSV.
type Summary struct {
	Samples         int
	Gpus            int
	PeakUtilization float64
	MeanUtilization float64
	PeakMemoryMib   float64
	TotalMemoryMib  float64
	PeakPower       float64
	PeakTemperature float64
}

// Summarize reads a telemetry CSV written by a Recorder and computes peak
// statistics. A missing, foreign or sample-less file is an error: summaries
// are never computed from a previous run's data.
func Summarize(path string) (*Summary, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.WithMessagef(err, "no fresh telemetry file at %s", path)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return nil, errors.WithMessagef(err, "reading telemetry header from %s", path)
	}
	if strings.Join(header, ",") != Header {
		return nil, errors.Errorf("%s is not a telemetry file (header %q)", path, strings.Join(header, ","))
	}

	var utilization, memoryUsed, power, temperature stats.Float64Data
	gpus := map[string]bool{}
	totalMemory := 0.0
	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.WithMessagef(err, "reading telemetry rows from %s", path)
		}
		if len(record) != 7 {
			continue
		}
		rows++
		gpus[record[1]] = true
		utilization = append(utilization, parseField(record[2]))
		memoryUsed = append(memoryUsed, parseField(record[3]))
		if total := parseField(record[4]); total > totalMemory {
			totalMemory = total
		}
		power = append(power, parseField(record[5]))
		temperature = append(temperature, parseField(record[6]))
	}
	if rows == 0 {
		return nil, errors.Errorf("telemetry file %s contains no samples", path)
	}

	summary := &Summary{Samples: rows, Gpus: len(gpus), TotalMemoryMib: totalMemory}
	summary.PeakUtilization, _ = stats.Max(utilization)
	summary.MeanUtilization, _ = stats.Mean(utilization)
	summary.PeakMemoryMib, _ = stats.Max(memoryUsed)
	summary.PeakPower, _ = stats.Max(power)
	summary.PeakTemperature, _ = stats.Max(temperature)
	return summary, nil
}

// String renders the summary on one line for logs and the analysis file.
func (s *Summary) String() string {
	return fmt.Sprintf(
		"%d samples across %d GPUs: peak utilization %.0f%% (mean %.1f%%), peak memory %s of %s, peak power %.1fW, peak temperature %.0fC",
		s.Samples, s.Gpus, s.PeakUtilization, s.MeanUtilization,
		humanize.IBytes(uint64(s.PeakMemoryMib)*humanize.MiByte),
		humanize.IBytes(uint64(s.TotalMemoryMib)*humanize.MiByte),
		s.PeakPower, s.PeakTemperature,
	)
}

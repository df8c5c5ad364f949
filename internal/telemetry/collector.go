// Package telemetry records GPU state during benchmark runs by sampling an
// external monitoring tool into a CSV file, and summarizes what was recorded.
package telemetry

import (
	"context"
	"os/exec"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Sample is one GPU's state at one instant. Memory is in MiB, power in
// watts, temperature in degrees C, utilization in percent.
type Sample struct {
	GpuId          int
	Utilization    float64
	MemoryUsedMib  float64
	MemoryTotalMib float64
	PowerDraw      float64
	Temperature    float64
}

// Collector samples every visible GPU once.
type Collector interface {
	Name() string
	Collect(ctx context.Context) ([]Sample, error)
}

// NvidiaSmi is the primary collector.
type NvidiaSmi struct {
	Binary string

	// Stubbable for testing
	run func(ctx context.Context, args ...string) ([]byte, error)
}

func NewNvidiaSmi() *NvidiaSmi {
	c := &NvidiaSmi{Binary: "nvidia-smi"}
	c.run = func(ctx context.Context, args ...string) ([]byte, error) {
		out, err := exec.CommandContext(ctx, c.Binary, args...).Output()
		return out, errors.WithStack(err)
	}
	return c
}

func (c *NvidiaSmi) Name() string { return "nvidia-smi" }

func (c *NvidiaSmi) Collect(ctx context.Context) ([]Sample, error) {
	out, err := c.run(ctx,
		"--query-gpu=index,utilization.gpu,memory.used,memory.total,power.draw,temperature.gpu",
		"--format=csv,noheader,nounits",
	)
	if err != nil {
		return nil, err
	}
	return parseNvidiaSmi(out)
}

func parseNvidiaSmi(out []byte) ([]Sample, error) {
	var samples []Sample
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 6 {
			return nil, errors.Errorf("malformed nvidia-smi line %q", line)
		}
		id, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return nil, errors.WithMessagef(err, "malformed gpu index in %q", line)
		}
		samples = append(samples, Sample{
			GpuId:          id,
			Utilization:    parseField(fields[1]),
			MemoryUsedMib:  parseField(fields[2]),
			MemoryTotalMib: parseField(fields[3]),
			PowerDraw:      parseField(fields[4]),
			Temperature:    parseField(fields[5]),
		})
	}
	return samples, nil
}

// Dcgmi collects through dcgmi dmon, used when nvidia-smi is unavailable.
// Field ids: 203 gpu utilization, 252 framebuffer used, 250 framebuffer
// total, 155 power usage, 150 gpu temperature.
type Dcgmi struct {
	Binary string

	// Stubbable for testing
	run func(ctx context.Context, args ...string) ([]byte, error)
}

func NewDcgmi() *Dcgmi {
	c := &Dcgmi{Binary: "dcgmi"}
	c.run = func(ctx context.Context, args ...string) ([]byte, error) {
		out, err := exec.CommandContext(ctx, c.Binary, args...).Output()
		return out, errors.WithStack(err)
	}
	return c
}

func (c *Dcgmi) Name() string { return "dcgmi" }

func (c *Dcgmi) Collect(ctx context.Context) ([]Sample, error) {
	out, err := c.run(ctx, "dmon", "-e", "203,252,250,155,150", "-c", "1")
	if err != nil {
		return nil, err
	}
	return parseDcgmi(out)
}

func parseDcgmi(out []byte) ([]Sample, error) {
	var samples []Sample
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) != 7 || fields[0] != "GPU" {
			continue
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		samples = append(samples, Sample{
			GpuId:          id,
			Utilization:    parseField(fields[2]),
			MemoryUsedMib:  parseField(fields[3]),
			MemoryTotalMib: parseField(fields[4]),
			PowerDraw:      parseField(fields[5]),
			Temperature:    parseField(fields[6]),
		})
	}
	if len(samples) == 0 {
		return nil, errors.New("dcgmi dmon returned no GPU rows")
	}
	return samples, nil
}

// Fallback tries each collector in order until one returns samples.
type Fallback struct {
	Collectors []Collector
}

// NewFallback returns the default collector chain: nvidia-smi, then dcgmi.
func NewFallback() *Fallback {
	return &Fallback{Collectors: []Collector{NewNvidiaSmi(), NewDcgmi()}}
}

func (c *Fallback) Name() string {
	names := make([]string, 0, len(c.Collectors))
	for _, collector := range c.Collectors {
		names = append(names, collector.Name())
	}
	return strings.Join(names, "+")
}

func (c *Fallback) Collect(ctx context.Context) ([]Sample, error) {
	var result *multierror.Error
	for _, collector := range c.Collectors {
		samples, err := collector.Collect(ctx)
		if err == nil && len(samples) > 0 {
			return samples, nil
		}
		if err != nil {
			result = multierror.Append(result, errors.WithMessage(err, collector.Name()))
		}
	}
	if result != nil {
		return nil, result.ErrorOrNil()
	}
	return nil, errors.New("no collector returned GPU samples")
}

// parseField tolerates the "[N/A]" placeholders nvidia-smi emits for
// unsupported readings.
func parseField(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "[N/A]") || strings.EqualFold(s, "N/A") {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

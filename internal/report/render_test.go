package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderReportTable(t *testing.T) {
	report := &Report{
		Fields: []Field{
			{Metric: "request_throughput", Stat: "avg"},
			{Metric: "time_to_first_token", Stat: "p90"},
		},
		Rows: []Row{
			{Concurrency: 1, Metrics: map[string]float64{
				"request_throughput_avg":  12.5,
				"time_to_first_token_p90": 61,
			}},
			{Concurrency: 10, Metrics: map[string]float64{
				"request_throughput_avg": 48.25,
			}},
		},
	}

	rendered := report.Render()
	lines := strings.Split(strings.TrimSpace(rendered), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "request_throughput_avg")
	assert.Contains(t, lines[0], "time_to_first_token_p90")
	assert.Contains(t, lines[1], "12.50")
	assert.Contains(t, lines[1], "61.00")
	assert.Contains(t, lines[2], "48.25")
	assert.Contains(t, lines[2], "-")
}

func TestRenderAnalysis(t *testing.T) {
	report := &Report{Rows: []Row{
		makeRow(1, 10, 40, 6),
		makeRow(100, 80, 300, 22),
	}}

	rendered := RenderAnalysis(Analyze(report))

	assert.Contains(t, rendered, "Best throughput: 80.00 req/s at concurrency 100")
	assert.Contains(t, rendered, "ultra_strict")
	assert.Contains(t, rendered, "very_loose")
	assert.Contains(t, rendered, "Goodput by concurrency")
}

func TestWriteSummary(t *testing.T) {
	root := t.TempDir()
	report := &Report{Fields: DefaultFields, Rows: []Row{makeRow(1, 10, 40, 6)}}

	path, err := WriteSummary(root, report, Analyze(report))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, SummaryFileName), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "concurrency")
	assert.Contains(t, string(content), "Best throughput")
}

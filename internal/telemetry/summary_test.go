package telemetry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTelemetry(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gpu_telemetry.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSummarize(t *testing.T) {
	path := writeTelemetry(t, Header+"\n"+
		"2026-08-22T10:00:00Z,0,50,20000,81920,200,55\n"+
		"2026-08-22T10:00:00Z,1,30,10000,81920,150,50\n"+
		"2026-08-22T10:00:05Z,0,90,45000,81920,355.5,70\n"+
		"2026-08-22T10:00:05Z,1,40,12000,81920,160,52\n")

	summary, err := Summarize(path)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Samples)
	assert.Equal(t, 2, summary.Gpus)
	assert.Equal(t, 90.0, summary.PeakUtilization)
	assert.InDelta(t, 52.5, summary.MeanUtilization, 0.001)
	assert.Equal(t, 45000.0, summary.PeakMemoryMib)
	assert.Equal(t, 355.5, summary.PeakPower)
	assert.Equal(t, 70.0, summary.PeakTemperature)

	rendered := summary.String()
	assert.Contains(t, rendered, "4 samples across 2 GPUs")
	assert.Contains(t, rendered, "44 GiB of 80 GiB")
}

func TestSummarizeMissingFile(t *testing.T) {
	_, err := Summarize(filepath.Join(t.TempDir(), "absent.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no fresh telemetry file")
}

func TestSummarizeForeignFile(t *testing.T) {
	path := writeTelemetry(t, "time,value\n1,2\n")
	_, err := Summarize(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not a telemetry file")
}

func TestSummarizeHeaderOnly(t *testing.T) {
	path := writeTelemetry(t, Header+"\n")
	_, err := Summarize(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contains no samples")
}

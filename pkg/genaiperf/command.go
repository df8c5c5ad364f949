// Package genaiperf wraps the external genai-perf profiler: building the
// command line for a single profiling run and reading back the metrics
// artifact it writes.
package genaiperf

import "strconv"

// DefaultBinary is the executable looked up on PATH when no explicit
// path is configured.
const DefaultBinary = "genai-perf"

// ProfileParams describes one profiling invocation against a serving endpoint.
type ProfileParams struct {
	Model            string
	Tokenizer        string
	URL              string
	InputTokenMean   int
	InputTokenStdDev int
	OutputTokenMean  int
	Concurrency      int
	ArtifactDir      string
}

// Args returns the argument vector for a profile run. Output length is pinned
// from both sides (max_tokens, min_tokens, ignore_eos) so the run measures
// decode behaviour rather than the model's stopping decisions.
func (p ProfileParams) Args() []string {
	osl := strconv.Itoa(p.OutputTokenMean)
	return []string{
		"profile",
		"-m", p.Model,
		"--endpoint-type", "chat",
		"--streaming",
		"-u", p.URL,
		"--synthetic-input-tokens-mean", strconv.Itoa(p.InputTokenMean),
		"--synthetic-input-tokens-stddev", strconv.Itoa(p.InputTokenStdDev),
		"--concurrency", strconv.Itoa(p.Concurrency),
		"--output-tokens-mean", osl,
		"--extra-inputs", "max_tokens:" + osl,
		"--extra-inputs", "min_tokens:" + osl,
		"--extra-inputs", "ignore_eos:true",
		"--tokenizer", p.Tokenizer,
		"--artifact-dir", p.ArtifactDir,
		"--",
		"-vv",
		"--max-threads=300",
	}
}

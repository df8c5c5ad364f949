package bench

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var runsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "servebench_benchmark_runs_total",
		Help: "Benchmark runs finished, split by outcome (succeeded/failed).",
	},
	[]string{"outcome"},
)

var runDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "servebench_benchmark_run_duration_seconds",
		Help:    "Wall-clock duration of individual benchmark runs.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	},
)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JudgementsTotal counts finished judgements by language and verdict status.
	JudgementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_judgements_total",
			Help: "Total number of judged submissions",
		},
		[]string{"language", "status"},
	)

	// JudgeDuration tracks end-to-end judging time in seconds.
	JudgeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentinel_judge_duration_seconds",
			Help:    "Duration of a full judgement in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
		[]string{"language"},
	)

	// CompileDuration tracks compile and syntax-check steps in seconds.
	CompileDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentinel_compile_duration_seconds",
			Help:    "Duration of compile steps in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
		[]string{"language"},
	)

	// TestCasesExecuted counts test case runs by outcome status.
	TestCasesExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_test_cases_executed_total",
			Help: "Total number of test case executions",
		},
		[]string{"language", "status"},
	)

	// WorkersActive tracks the number of currently active workers.
	WorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_workers_active",
			Help: "Number of currently active worker goroutines",
		},
	)

	// SandboxFailures counts sandbox infrastructure failures (not user code errors).
	SandboxFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_sandbox_failures_total",
			Help: "Total number of sandbox infrastructure failures",
		},
	)

	// ToolchainAvailable is 1 for each language whose toolchain probed successfully.
	ToolchainAvailable = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sentinel_toolchain_available",
			Help: "Whether a language toolchain is available in the sandbox",
		},
		[]string{"language"},
	)
)

package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	BatchesCreated   = prometheus.NewCounter(prometheus.CounterOpts{Name: "gen_batches_created_total", Help: "Generation batches accepted at intake"})
	BatchesCompleted = prometheus.NewCounter(prometheus.CounterOpts{Name: "gen_batches_completed_total", Help: "Batches that finished the title loop"})
	BatchesFailed    = prometheus.NewCounter(prometheus.CounterOpts{Name: "gen_batches_failed_total", Help: "Batches failed outside the per-book loop"})

	StagesCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "gen_stages_completed_total", Help: "Stage runs committed successfully"}, []string{"stage"})
	StagesFailed    = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "gen_stages_failed_total", Help: "Stage runs that ended in a failed state"}, []string{"stage"})
	ParseFailures   = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "gen_parse_failures_total", Help: "Model responses that did not match the expected shape"}, []string{"stage"})

	StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gen_stage_duration_seconds",
		Help:    "Wall time per stage job, success or failure",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"stage"})

	RateLimitRejects = prometheus.NewCounter(prometheus.CounterOpts{Name: "gen_rate_limit_rejects_total", Help: "Intake requests rejected by the rate limiter"})
	DeadLetters      = prometheus.NewCounter(prometheus.CounterOpts{Name: "gen_dead_letter_total", Help: "Jobs moved to the DLQ"})
	QueueDepth       = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "gen_queue_depth", Help: "Ready depth per named queue"}, []string{"queue"})
	InFlight         = prometheus.NewGauge(prometheus.GaugeOpts{Name: "gen_inflight_jobs", Help: "Jobs currently leased by workers"})
)

// Handler exposes the /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			BatchesCreated,
			BatchesCompleted,
			BatchesFailed,
			StagesCompleted,
			StagesFailed,
			ParseFailures,
			StageDuration,
			RateLimitRejects,
			DeadLetters,
			QueueDepth,
			InFlight,
		)
	})
	return promhttp.Handler()
}

package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var totalTokens atomic.Int64

var (
	GenerationTokensTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "generation_tokens_total",
		Help: "The total number of tokens generated",
	})

	GenerationSamplesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "generation_samples_total",
		Help: "The total number of completed generation samples",
	})

	GenerationEOSTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "generation_eos_total",
		Help: "Generations terminated by an end-of-sequence token",
	})

	StepDuration = promauto.NewSummary(prometheus.SummaryOpts{
		Name: "generation_step_duration_seconds",
		Help: "Duration of single decode steps",
	})

	GenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "generation_duration_seconds",
		Help:    "Duration of full generation runs",
		Buckets: prometheus.DefBuckets,
	})

	PromptLengthHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "prompt_length_tokens",
		Help:    "Distribution of prompt lengths processed",
		Buckets: []float64{1, 10, 50, 100, 500, 1000, 2000, 4000, 8000},
	})

	ModelFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "model_failures_total",
		Help: "Total number of fatal model forward errors",
	})

	CacheResetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "model_cache_resets_total",
		Help: "Total number of model cache resets issued by the engine",
	})

	CacheResetFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "model_cache_reset_failures_total",
		Help: "Cache resets that returned an error",
	})

	TokensPerSecond = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "generation_tokens_per_second",
		Help: "Throughput of the most recent generation run",
	})
)

// RecordStep records the duration of one decode step.
func RecordStep(duration time.Duration) {
	StepDuration.Observe(duration.Seconds())
}

// RecordGeneration records a completed generation run.
func RecordGeneration(tokens int, duration time.Duration, hitEOS bool) {
	GenerationTokensTotal.Add(float64(tokens))
	GenerationSamplesTotal.Inc()
	GenerationDuration.Observe(duration.Seconds())
	if hitEOS {
		GenerationEOSTotal.Inc()
	}
	if duration > 0 {
		TokensPerSecond.Set(float64(tokens) / duration.Seconds())
	}
	totalTokens.Add(int64(tokens))
}

// RecordPromptLength records the token length of an incoming prompt.
func RecordPromptLength(tokens int) {
	PromptLengthHistogram.Observe(float64(tokens))
}

// RecordModelFailure counts a fatal model forward error.
func RecordModelFailure() {
	ModelFailuresTotal.Inc()
}

// RecordCacheReset counts a cache reset issued by the engine.
func RecordCacheReset(failed bool) {
	CacheResetsTotal.Inc()
	if failed {
		CacheResetFailuresTotal.Inc()
	}
}

// TotalTokens returns the process-lifetime token count.
func TotalTokens() int64 {
	return totalTokens.Load()
}

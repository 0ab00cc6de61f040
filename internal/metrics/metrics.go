// Package metrics exposes Prometheus instrumentation for the scheduling
// core, scraped only by the thin ops server; the domain API itself stays
// function-call based.
package metrics

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry encapsulates Prometheus instrumentation for generation runs,
// writer commits, and elective allocation.
type Registry struct {
	registry *prometheus.Registry
	handler  http.Handler

	generationIterations *prometheus.HistogramVec
	generationDuration    *prometheus.HistogramVec
	generationOutcomes    *prometheus.CounterVec
	publishTotal          *prometheus.CounterVec
	allocationUnmatched   prometheus.Gauge
}

// New registers core Prometheus collectors for the scheduling core.
func New() *Registry {
	registry := prometheus.NewRegistry()

	generationIterations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "generation_iterations",
		Help:    "Number of backtracking iterations per generation run",
		Buckets: prometheus.ExponentialBuckets(10, 4, 8),
	}, []string{"outcome"})

	generationDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "generation_duration_seconds",
		Help:    "Wall-clock duration of a generation run",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	generationOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "generation_outcomes_total",
		Help: "Total generation runs by outcome",
	}, []string{"outcome"})

	publishTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "publish_total",
		Help: "Total timetable publish operations by result",
	}, []string{"result"})

	allocationUnmatched := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "allocation_unmatched_total",
		Help: "Students left unmatched after the most recent elective allocation run",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(generationIterations, generationDuration, generationOutcomes, publishTotal, allocationUnmatched, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &Registry{
		registry:              registry,
		handler:               handler,
		generationIterations:  generationIterations,
		generationDuration:    generationDuration,
		generationOutcomes:    generationOutcomes,
		publishTotal:          publishTotal,
		allocationUnmatched:   allocationUnmatched,
	}
}

// Handler exposes the Prometheus HTTP handler for the ops server.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return r.handler
}

// ObserveGeneration records one completed generation run.
func (r *Registry) ObserveGeneration(outcome string, iterations int, duration time.Duration) {
	if r == nil {
		return
	}
	r.generationIterations.WithLabelValues(outcome).Observe(float64(iterations))
	r.generationDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	r.generationOutcomes.WithLabelValues(outcome).Inc()
}

// ObservePublish records one writer commit attempt.
func (r *Registry) ObservePublish(result string) {
	if r == nil {
		return
	}
	r.publishTotal.WithLabelValues(result).Inc()
}

// SetAllocationUnmatched records the unmatched-student count from the most
// recent allocation run.
func (r *Registry) SetAllocationUnmatched(count int) {
	if r == nil {
		return
	}
	r.allocationUnmatched.Set(float64(count))
}

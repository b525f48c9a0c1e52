// Package metrics exposes the server's runtime health as Prometheus
// collectors: tick timing, queue depth, and chunk lifecycle counters.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every collector this core registers, so a caller wires
// one struct into the places that need to observe something rather than
// passing loose prometheus handles around.
type Registry struct {
	TickDuration   prometheus.Histogram
	TickOverrun    prometheus.Counter
	TPS            prometheus.Gauge
	TaskQueueDepth prometheus.Gauge
	LoadedChunks   prometheus.Gauge
	ChunkLoads     *prometheus.CounterVec
}

// New registers and returns a Registry against reg. Pass
// prometheus.NewRegistry() for an isolated registry in tests, or
// prometheus.DefaultRegisterer for process-wide metrics.
func New(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)
	return &Registry{
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "blockworld",
			Subsystem: "tick",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of one simulation tick.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		TickOverrun: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "blockworld",
			Subsystem: "tick",
			Name:      "overruns_total",
			Help:      "Number of ticks whose scheduled start slipped behind wall time.",
		}),
		TPS: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "blockworld",
			Subsystem: "tick",
			Name:      "rate",
			Help:      "Most recently measured ticks-per-second, averaged over a rolling window.",
		}),
		TaskQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "blockworld",
			Subsystem: "tasks",
			Name:      "queue_depth",
			Help:      "Number of submitted tasks waiting for a worker.",
		}),
		LoadedChunks: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "blockworld",
			Subsystem: "chunks",
			Name:      "loaded",
			Help:      "Number of chunk shells currently tracked by the index, in any lifecycle state.",
		}),
		ChunkLoads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blockworld",
			Subsystem: "chunks",
			Name:      "loads_total",
			Help:      "Async chunk loads completed, partitioned by outcome.",
		}, []string{"outcome"}),
	}
}

// Handler returns the HTTP handler a caller mounts at e.g. /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveTickDuration implements tick.Observer.
func (r *Registry) ObserveTickDuration(d time.Duration) { r.TickDuration.Observe(d.Seconds()) }

// ObserveOverrun implements tick.Observer.
func (r *Registry) ObserveOverrun() { r.TickOverrun.Inc() }

// ObserveTPS implements tick.Observer.
func (r *Registry) ObserveTPS(tps float64) { r.TPS.Set(tps) }

// ObserveChunkLoad records one async chunk load's outcome ("success" or
// "failure"), as called by the region reader just before it calls Finish.
func (r *Registry) ObserveChunkLoad(success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	r.ChunkLoads.WithLabelValues(outcome).Inc()
}

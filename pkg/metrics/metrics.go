package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Engine metrics
	CacheSizeBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stratakv_cf_block_cache_bytes",
			Help: "Configured block cache size per column family",
		},
		[]string{"cf"},
	)

	EngineOpenDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stratakv_engine_open_duration_seconds",
			Help:    "Time taken to open the storage engine",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Raft router metrics
	RaftRouterQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stratakv_raft_router_queue_depth",
			Help: "Number of messages currently queued in the Raft message router",
		},
	)

	RaftRouterQueueFullTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stratakv_raft_router_queue_full_total",
			Help: "Total number of Raft router sends rejected due to a full queue",
		},
	)

	// Resolver metrics
	ResolverCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stratakv_resolver_cache_hits_total",
			Help: "Total number of address resolver cache hits",
		},
	)

	ResolverCacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stratakv_resolver_cache_misses_total",
			Help: "Total number of address resolver cache misses requiring a PD round-trip",
		},
	)

	// Storage facade metrics
	SchedulerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stratakv_scheduler_queue_depth",
			Help: "Number of commands currently queued in the storage scheduler",
		},
	)

	CommandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stratakv_storage_command_duration_seconds",
			Help:    "Time taken to execute a storage facade command",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// Node / identity metrics
	StoreID = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stratakv_store_id",
			Help: "This node's allocated store id",
		},
	)

	// Time anomaly metrics
	WallClockJumpsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stratakv_wall_clock_jumps_total",
			Help: "Total number of detected backward wall-clock jumps",
		},
	)
)

func init() {
	prometheus.MustRegister(CacheSizeBytes)
	prometheus.MustRegister(EngineOpenDuration)
	prometheus.MustRegister(RaftRouterQueueDepth)
	prometheus.MustRegister(RaftRouterQueueFullTotal)
	prometheus.MustRegister(ResolverCacheHitsTotal)
	prometheus.MustRegister(ResolverCacheMissesTotal)
	prometheus.MustRegister(SchedulerQueueDepth)
	prometheus.MustRegister(CommandDuration)
	prometheus.MustRegister(StoreID)
	prometheus.MustRegister(WallClockJumpsTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

package telemetry

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Prometheus metric names.
const (
	MetricQueueDepth   = "commercesync_queue_depth"
	MetricActiveJobs   = "commercesync_pool_active_jobs"
	MetricPoolCapacity = "commercesync_pool_capacity"
	MetricSchedules    = "commercesync_schedules"
)

// PoolStats is the worker pool view exported on the scrape endpoint.
type PoolStats interface {
	Active() int
	Capacity() int
}

// QueueStats reports the number of jobs waiting for a worker.
type QueueStats interface {
	Len(ctx context.Context) (int64, error)
}

// ScheduleStats reports the number of registered recurring jobs.
type ScheduleStats interface {
	Count() int
}

// PrometheusRegistry holds the pull-based gauges served on /metrics.
// The values are read at scrape time, so nothing has to be pushed.
type PrometheusRegistry struct {
	registry *prometheus.Registry
	logger   *zap.Logger
}

// NewPrometheusRegistry creates a registry with the Go runtime and process
// collectors already registered.
func NewPrometheusRegistry(logger *zap.Logger) *PrometheusRegistry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &PrometheusRegistry{registry: reg, logger: logger}
}

// RegisterPool exports the pool's active job count and capacity.
func (r *PrometheusRegistry) RegisterPool(pool PoolStats) error {
	if err := r.registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: MetricActiveJobs,
		Help: "Jobs currently executing in the worker pool",
	}, func() float64 { return float64(pool.Active()) })); err != nil {
		return err
	}
	return r.registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: MetricPoolCapacity,
		Help: "Maximum number of concurrently executing jobs",
	}, func() float64 { return float64(pool.Capacity()) }))
}

// RegisterQueue exports the queue depth. A failed read is reported as NaN.
func (r *PrometheusRegistry) RegisterQueue(queue QueueStats) error {
	return r.registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: MetricQueueDepth,
		Help: "Jobs waiting in the queue",
	}, func() float64 {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		n, err := queue.Len(ctx)
		if err != nil {
			r.logger.Warn("Failed to read queue depth", zap.Error(err))
			return math.NaN()
		}
		return float64(n)
	}))
}

// RegisterSchedules exports the number of recurring jobs.
func (r *PrometheusRegistry) RegisterSchedules(schedules ScheduleStats) error {
	return r.registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: MetricSchedules,
		Help: "Recurring jobs registered with the scheduler",
	}, func() float64 { return float64(schedules.Count()) }))
}

// Handler returns the scrape handler for this registry.
func (r *PrometheusRegistry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Gatherer exposes the underlying registry, mainly for tests.
func (r *PrometheusRegistry) Gatherer() prometheus.Gatherer {
	return r.registry
}

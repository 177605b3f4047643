package api

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nerrad567/cadbridge/internal/bridge"
)

// Metrics holds the Prometheus collectors for the bridge. It observes the
// pump as a bridge.Observer and the RPC handler directly.
type Metrics struct {
	registry *prometheus.Registry

	tasks        *prometheus.CounterVec
	abandoned    prometheus.Counter
	taskDuration *prometheus.HistogramVec
	queueWait    prometheus.Histogram
	rpcRequests  *prometheus.CounterVec
	rpcDuration  *prometheus.HistogramVec
	rejected     prometheus.Counter
	rateLimited  prometheus.Counter
}

// NewMetrics registers the bridge collectors on a private registry.
// queueDepth is sampled at scrape time.
func NewMetrics(queueDepth func() int) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cadbridge",
			Name:      "tasks_total",
			Help:      "Tasks executed by the mutation pump.",
		}, []string{"method", "result"}),
		abandoned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cadbridge",
			Name:      "tasks_abandoned_total",
			Help:      "Tasks whose caller stopped waiting before the outcome arrived.",
		}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cadbridge",
			Name:      "task_duration_seconds",
			Help:      "Time spent running a task on the pump.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"method"}),
		queueWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cadbridge",
			Name:      "task_queue_wait_seconds",
			Help:      "Time a task spent queued before the pump started it.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		rpcRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cadbridge",
			Name:      "rpc_requests_total",
			Help:      "JSON-RPC requests by method and error code (0 for success).",
		}, []string{"method", "code"}),
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cadbridge",
			Name:      "rpc_duration_seconds",
			Help:      "JSON-RPC request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cadbridge",
			Name:      "access_rejected_requests_total",
			Help:      "Requests dropped by the allow-list middleware.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cadbridge",
			Name:      "rpc_rate_limited_total",
			Help:      "JSON-RPC requests refused by the per-address rate limiter.",
		}),
	}

	reg.MustRegister(
		m.tasks, m.abandoned, m.taskDuration, m.queueWait,
		m.rpcRequests, m.rpcDuration, m.rejected, m.rateLimited,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if queueDepth != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "cadbridge",
			Name:      "queue_depth",
			Help:      "Tasks waiting for the mutation pump.",
		}, func() float64 { return float64(queueDepth()) }))
	}
	return m
}

// Registry returns the registry to expose.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// TaskCompleted implements bridge.Observer.
func (m *Metrics) TaskCompleted(rec bridge.Record, _ bridge.Outcome) {
	result := "success"
	if !rec.Succeeded {
		result = "failure"
	}
	m.tasks.WithLabelValues(rec.Method, result).Inc()
	if rec.Abandoned {
		m.abandoned.Inc()
	}
	m.taskDuration.WithLabelValues(rec.Method).Observe(rec.Duration().Seconds())
	m.queueWait.Observe(rec.QueueWait().Seconds())
}

func (m *Metrics) observeRPC(method string, code int, elapsed time.Duration) {
	if code == rpcCodeMethodNotFound {
		method = "unknown"
	}
	m.rpcRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.rpcDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

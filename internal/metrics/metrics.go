// Package metrics exposes scheduler, purge and worker counters to
// Prometheus and serves them over HTTP with a health endpoint.
package metrics

import (
	"net/http"
	"time"

	"github.com/aatumaykin/purgebot/internal/cron"
	"github.com/aatumaykin/purgebot/internal/purge"
	"github.com/aatumaykin/purgebot/internal/workers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "purgebot"

// Metrics holds the bot collectors. It implements cron.Observer and
// purge.Observer.
type Metrics struct {
	registry *prometheus.Registry

	ticksTotal    prometheus.Counter
	tickErrors    prometheus.Counter
	tickDuration  prometheus.Histogram
	outcomesTotal *prometheus.CounterVec
	purgesTotal   *prometheus.CounterVec
	deletedTotal  *prometheus.CounterVec
	purgeDuration *prometheus.HistogramVec
}

// New creates and registers all collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		ticksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_ticks_total",
			Help:      "Total number of scheduler ticks.",
		}),
		tickErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_tick_errors_total",
			Help:      "Ticks that could not load schedules.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduler_tick_duration_seconds",
			Help:      "Time spent evaluating schedules per tick.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1},
		}),
		outcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_outcomes_total",
			Help:      "Per-schedule tick outcomes.",
		}, []string{"outcome"}),
		purgesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purges_total",
			Help:      "Channel purges by trigger and result.",
		}, []string{"trigger", "reason"}),
		deletedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_deleted_total",
			Help:      "Messages deleted by trigger.",
		}, []string{"trigger"}),
		purgeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "purge_duration_seconds",
			Help:      "Duration of channel purges.",
			Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"trigger"}),
	}

	reg.MustRegister(
		m.ticksTotal,
		m.tickErrors,
		m.tickDuration,
		m.outcomesTotal,
		m.purgesTotal,
		m.deletedTotal,
		m.purgeDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	for _, o := range cron.AllOutcomes {
		m.outcomesTotal.WithLabelValues(string(o))
	}

	return m
}

// ObserveTick records one scheduler tick.
func (m *Metrics) ObserveTick(r cron.TickReport, took time.Duration) {
	m.ticksTotal.Inc()
	m.tickDuration.Observe(took.Seconds())
	if r.Err != nil {
		m.tickErrors.Inc()
	}
	for _, o := range r.Outcomes {
		m.outcomesTotal.WithLabelValues(string(o)).Inc()
	}
}

// ObservePurge records one finished channel purge.
func (m *Metrics) ObservePurge(trigger string, r purge.Result) {
	m.purgesTotal.WithLabelValues(trigger, purge.Reason(r.Err)).Inc()
	m.deletedTotal.WithLabelValues(trigger).Add(float64(r.Deleted))
	m.purgeDuration.WithLabelValues(trigger).Observe(r.Duration.Seconds())
}

// WatchWorkers exports a worker group's counters.
func (m *Metrics) WatchWorkers(snapshot func() workers.Metrics) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers_running",
			Help:      "Purge tasks currently running.",
		}, func() float64 { return float64(snapshot().Running) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workers_tasks_completed_total",
			Help:      "Purge tasks that finished without error.",
		}, func() float64 { return float64(snapshot().TasksCompleted) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workers_tasks_failed_total",
			Help:      "Purge tasks that returned an error or panicked.",
		}, func() float64 { return float64(snapshot().TasksFailed) }),
	)
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

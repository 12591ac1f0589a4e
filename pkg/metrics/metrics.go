// Package metrics provides Prometheus instrumentation for dispatch components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace prefixes every metric name unless Config.Namespace overrides it.
const DefaultNamespace = "dispatch"

// Registry holds all metric instances for dispatch components.
type Registry struct {
	// Worker Pool Metrics
	WorkerPoolSize    *prometheus.GaugeVec
	WorkerPoolActive  *prometheus.GaugeVec
	WorkerPoolQueued  *prometheus.GaugeVec
	JobsSubmitted     *prometheus.CounterVec
	JobsRejected      *prometheus.CounterVec
	JobsCompleted     *prometheus.CounterVec
	JobsFailed        *prometheus.CounterVec
	JobDuration       *prometheus.HistogramVec
	JobQueueWait      *prometheus.HistogramVec

	// Event Bus Metrics
	EventsPublished    *prometheus.CounterVec
	HandlerInvocations *prometheus.CounterVec
	HandlerFailures    *prometheus.CounterVec
	Subscriptions      *prometheus.GaugeVec
	PublishDuration    *prometheus.HistogramVec

	// Scheduler Metrics
	ScheduledEntries    *prometheus.GaugeVec
	SchedulerDispatched *prometheus.CounterVec
	SchedulerRejected   *prometheus.CounterVec

	// Failure Reporting Metrics
	FailuresReported *prometheus.CounterVec
}

// DefaultRegistry is the default metrics registry used by dispatch components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return newRegistry(reg, DefaultNamespace, nil)
}

// New creates a registry honoring the namespace and constant labels in config.
// A nil config.Registry falls back to prometheus.DefaultRegisterer.
func New(config Config) *Registry {
	reg := config.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	ns := config.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	return newRegistry(reg, ns, config.Labels)
}

func newRegistry(reg prometheus.Registerer, ns string, labels prometheus.Labels) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		// Worker Pool Metrics
		WorkerPoolSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "workerpool",
				Name:        "size",
				Help:        "Number of workers in the pool",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		WorkerPoolActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "workerpool",
				Name:        "active_workers",
				Help:        "Number of workers currently executing a job",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		WorkerPoolQueued: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "workerpool",
				Name:        "queued_jobs",
				Help:        "Number of jobs waiting in the shared queue",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		JobsSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "workerpool",
				Name:        "jobs_submitted_total",
				Help:        "Total number of jobs accepted into the queue",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		JobsRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "workerpool",
				Name:        "jobs_rejected_total",
				Help:        "Total number of submissions rejected",
				ConstLabels: labels,
			},
			[]string{"pool_name", "reason"},
		),

		JobsCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "workerpool",
				Name:        "jobs_completed_total",
				Help:        "Total number of jobs that finished without error",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		JobsFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "workerpool",
				Name:        "jobs_failed_total",
				Help:        "Total number of jobs that returned an error or panicked",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		JobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   ns,
				Subsystem:   "workerpool",
				Name:        "job_duration_seconds",
				Help:        "Time spent executing jobs",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		JobQueueWait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   ns,
				Subsystem:   "workerpool",
				Name:        "job_queue_wait_seconds",
				Help:        "Time jobs spent queued before a worker picked them up",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		// Event Bus Metrics
		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "eventbus",
				Name:        "events_published_total",
				Help:        "Total number of publish calls",
				ConstLabels: labels,
			},
			[]string{"bus_name", "topic"},
		),

		HandlerInvocations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "eventbus",
				Name:        "handler_invocations_total",
				Help:        "Total number of handler invocations",
				ConstLabels: labels,
			},
			[]string{"bus_name", "topic"},
		),

		HandlerFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "eventbus",
				Name:        "handler_failures_total",
				Help:        "Total number of handler invocations that returned an error or panicked",
				ConstLabels: labels,
			},
			[]string{"bus_name", "topic"},
		),

		Subscriptions: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "eventbus",
				Name:        "subscriptions",
				Help:        "Number of live subscriptions",
				ConstLabels: labels,
			},
			[]string{"bus_name"},
		),

		PublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   ns,
				Subsystem:   "eventbus",
				Name:        "publish_duration_seconds",
				Help:        "Time spent fanning a publish out to its handlers",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: labels,
			},
			[]string{"bus_name"},
		),

		// Scheduler Metrics
		ScheduledEntries: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "scheduler",
				Name:        "entries",
				Help:        "Number of entries currently scheduled",
				ConstLabels: labels,
			},
			[]string{"scheduler_name"},
		),

		SchedulerDispatched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "scheduler",
				Name:        "dispatched_total",
				Help:        "Total number of scheduled jobs handed to the worker pool",
				ConstLabels: labels,
			},
			[]string{"scheduler_name"},
		),

		SchedulerRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "scheduler",
				Name:        "rejected_total",
				Help:        "Total number of scheduled jobs the worker pool refused",
				ConstLabels: labels,
			},
			[]string{"scheduler_name"},
		),

		// Failure Reporting Metrics
		FailuresReported: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "report",
				Name:        "failures_total",
				Help:        "Total number of contained job and handler failures reported",
				ConstLabels: labels,
			},
			[]string{"kind", "component"},
		),
	}
}

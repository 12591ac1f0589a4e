// Package metrics provides Prometheus instrumentation for dispatch components.
//
// # Overview
//
// The metrics package instruments:
//   - Worker pools (pool size, active workers, queued jobs, job outcomes and durations)
//   - Event buses (publishes, handler invocations, handler failures, subscriptions)
//   - Schedulers (scheduled entries, dispatched and rejected jobs)
//   - Failure reporting (contained job and handler failures by kind)
//
// # Quick Start
//
// Enable metrics by using the metrics-enabled constructors:
//
//	pool, err := workerpool.NewWithMetrics(workerpool.Config{WorkerCount: 4}, "ingest", metrics.DefaultConfig())
//
//	bus := eventbus.New[Order](eventbus.Config{Name: "orders", Metrics: metrics.DefaultRegistry})
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//	log.Fatal(http.ListenAndServe(":9090", nil))
//
// # Custom Registry
//
// Use a custom Prometheus registry for isolation, which is what tests do:
//
//	registry := prometheus.NewRegistry()
//	m := metrics.New(metrics.Config{Enabled: true, Registry: registry})
//
// # Available Metrics
//
//   - dispatch_workerpool_size
//   - dispatch_workerpool_active_workers
//   - dispatch_workerpool_queued_jobs
//   - dispatch_workerpool_jobs_submitted_total
//   - dispatch_workerpool_jobs_rejected_total{reason="closed"|"full"|"canceled"}
//   - dispatch_workerpool_jobs_completed_total
//   - dispatch_workerpool_jobs_failed_total
//   - dispatch_workerpool_job_duration_seconds
//   - dispatch_workerpool_job_queue_wait_seconds
//   - dispatch_eventbus_events_published_total
//   - dispatch_eventbus_handler_invocations_total
//   - dispatch_eventbus_handler_failures_total
//   - dispatch_eventbus_subscriptions
//   - dispatch_eventbus_publish_duration_seconds
//   - dispatch_scheduler_entries
//   - dispatch_scheduler_dispatched_total
//   - dispatch_scheduler_rejected_total
//   - dispatch_report_failures_total{kind, component}
//
// # Labels
//
//   - pool_name: User-provided name for the worker pool instance
//   - bus_name: User-provided name for the event bus instance
//   - topic: Event bus topic
//   - scheduler_name: User-provided name for the scheduler instance
//   - kind: "job" or "handler"
package metrics

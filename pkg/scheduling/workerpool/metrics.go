package workerpool

import (
	"context"
	"errors"
	"time"

	dserrors "github.com/vnykmshr/dispatch/pkg/common/errors"
	"github.com/vnykmshr/dispatch/pkg/metrics"
)

var _ metrics.Instrumentable = (*Pool)(nil)

// poolMetrics records pool activity into a metrics.Registry.
type poolMetrics struct {
	registry *metrics.Registry
	name     string
}

// NewWithMetrics creates a worker pool named name with Prometheus metrics
// collection configured by metricsConfig.
func NewWithMetrics(config Config, name string, metricsConfig metrics.Config) (*Pool, error) {
	config.Name = name
	pool, err := NewWithConfig(config)
	if err != nil {
		return nil, err
	}

	if err := pool.EnableMetrics(metricsConfig); err != nil {
		pool.Shutdown()
		return nil, err
	}
	return pool, nil
}

// EnableMetrics starts recording pool metrics. A config with Enabled unset
// disables collection instead. Registration failures are returned and leave
// the current metrics setting untouched.
func (p *Pool) EnableMetrics(config metrics.Config) error {
	registry, err := config.Build()
	if err != nil {
		return err
	}
	if registry == nil {
		p.DisableMetrics()
		return nil
	}

	m := &poolMetrics{registry: registry, name: p.name}
	p.metrics.Store(m)
	m.registry.WorkerPoolSize.WithLabelValues(p.name).Set(float64(p.Size()))
	m.refresh(p)
	return nil
}

// DisableMetrics stops recording pool metrics.
func (p *Pool) DisableMetrics() {
	p.metrics.Store(nil)
}

// MetricsEnabled returns true if metrics are currently enabled.
func (p *Pool) MetricsEnabled() bool {
	return p.metrics.Load() != nil
}

// refresh updates the current state gauges.
func (m *poolMetrics) refresh(p *Pool) {
	m.registry.WorkerPoolActive.WithLabelValues(m.name).Set(float64(p.ActiveWorkers()))
	m.registry.WorkerPoolQueued.WithLabelValues(m.name).Set(float64(p.QueueSize()))
}

func (m *poolMetrics) jobSubmitted(p *Pool) {
	m.registry.JobsSubmitted.WithLabelValues(m.name).Inc()
	m.registry.WorkerPoolQueued.WithLabelValues(m.name).Set(float64(p.QueueSize()))
}

func (m *poolMetrics) jobRejected(err error) {
	m.registry.JobsRejected.WithLabelValues(m.name, rejectReason(err)).Inc()
}

func (m *poolMetrics) jobStarted(p *Pool, wait time.Duration) {
	m.registry.JobQueueWait.WithLabelValues(m.name).Observe(wait.Seconds())
	m.refresh(p)
}

func (m *poolMetrics) jobFinished(p *Pool, result Result) {
	m.registry.JobDuration.WithLabelValues(m.name).Observe(result.Duration.Seconds())
	if result.Err != nil {
		m.registry.JobsFailed.WithLabelValues(m.name).Inc()
	} else {
		m.registry.JobsCompleted.WithLabelValues(m.name).Inc()
	}
	m.refresh(p)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, dserrors.ErrClosed):
		return "closed"
	case errors.Is(err, dserrors.ErrFull):
		return "full"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}

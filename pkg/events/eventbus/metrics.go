package eventbus

import (
	"time"

	"github.com/vnykmshr/dispatch/pkg/metrics"
)

var _ metrics.Instrumentable = (*Bus[any])(nil)

// busMetrics records bus activity into a metrics.Registry.
type busMetrics struct {
	registry *metrics.Registry
	name     string
}

// NewWithMetrics creates a bus named name with Prometheus metrics collection
// configured by metricsConfig.
func NewWithMetrics[T any](config Config, name string, metricsConfig metrics.Config) (*Bus[T], error) {
	config.Name = name
	b := New[T](config)
	if err := b.EnableMetrics(metricsConfig); err != nil {
		return nil, err
	}
	return b, nil
}

// EnableMetrics starts recording bus metrics. A config with Enabled unset
// disables collection instead. Registration failures are returned and leave
// the current metrics setting untouched.
func (b *Bus[T]) EnableMetrics(config metrics.Config) error {
	registry, err := config.Build()
	if err != nil {
		return err
	}
	if registry == nil {
		b.DisableMetrics()
		return nil
	}

	m := &busMetrics{registry: registry, name: b.name}
	b.metrics.Store(m)
	m.subscriptions(b.registry.Total())
	return nil
}

// DisableMetrics stops recording bus metrics.
func (b *Bus[T]) DisableMetrics() {
	b.metrics.Store(nil)
}

// MetricsEnabled returns true if metrics are currently enabled.
func (b *Bus[T]) MetricsEnabled() bool {
	return b.metrics.Load() != nil
}

func (m *busMetrics) published(topic string, invoked, failed int, took time.Duration) {
	m.registry.EventsPublished.WithLabelValues(m.name, topic).Inc()
	m.registry.HandlerInvocations.WithLabelValues(m.name, topic).Add(float64(invoked))
	if failed > 0 {
		m.registry.HandlerFailures.WithLabelValues(m.name, topic).Add(float64(failed))
	}
	m.registry.PublishDuration.WithLabelValues(m.name).Observe(took.Seconds())
}

func (m *busMetrics) subscriptions(n int) {
	m.registry.Subscriptions.WithLabelValues(m.name).Set(float64(n))
}

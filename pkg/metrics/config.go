package metrics

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Config holds configuration for metrics collection.
type Config struct {
	// Enabled controls whether metrics collection is active.
	Enabled bool

	// Registry is the Prometheus registry to use. If nil, uses prometheus.DefaultRegisterer.
	Registry prometheus.Registerer

	// Namespace overrides the default "dispatch" namespace for metrics.
	Namespace string

	// Labels are additional labels to add to all metrics.
	Labels prometheus.Labels
}

// DefaultConfig returns a default metrics configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		Registry:  prometheus.DefaultRegisterer,
		Namespace: DefaultNamespace,
		Labels:    nil,
	}
}

type resolvedKey struct {
	registerer prometheus.Registerer
	namespace  string
}

var (
	resolvedMu sync.Mutex
	resolved   = map[resolvedKey]*Registry{}
)

// Resolve returns the Registry described by c, or nil when metrics are
// disabled. Configs without extra labels naming the same registerer and
// namespace share one Registry, so several components can report into a
// single registerer without duplicate registration. The default registerer
// and namespace resolve to DefaultRegistry.
func (c Config) Resolve() *Registry {
	if !c.Enabled {
		return nil
	}
	if len(c.Labels) > 0 {
		return New(c)
	}

	key := resolvedKey{registerer: c.Registry, namespace: c.Namespace}
	if key.registerer == nil {
		key.registerer = prometheus.DefaultRegisterer
	}
	if key.namespace == "" {
		key.namespace = DefaultNamespace
	}
	if key.registerer == prometheus.DefaultRegisterer && key.namespace == DefaultNamespace {
		return DefaultRegistry
	}

	resolvedMu.Lock()
	defer resolvedMu.Unlock()
	if r, ok := resolved[key]; ok {
		return r
	}
	r := New(c)
	resolved[key] = r
	return r
}

// Build is Resolve with registration failures returned as an error instead
// of a panic, for example when a labelled config registers into the same
// registerer twice.
func (c Config) Build() (r *Registry, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r = nil
			if e, ok := rec.(error); ok {
				err = fmt.Errorf("metrics: register collectors: %w", e)
				return
			}
			err = fmt.Errorf("metrics: register collectors: %v", rec)
		}
	}()
	return c.Resolve(), nil
}

// Instrumentable is an interface for components that can be instrumented with metrics.
type Instrumentable interface {
	// EnableMetrics enables metrics collection for this component.
	EnableMetrics(config Config) error

	// DisableMetrics disables metrics collection for this component.
	DisableMetrics()

	// MetricsEnabled returns true if metrics are currently enabled.
	MetricsEnabled() bool
}

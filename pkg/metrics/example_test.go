package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Example_basicUsage demonstrates basic metrics configuration.
func Example_basicUsage() {
	// Create a separate registry for this example
	registry := NewRegistry(prometheus.NewRegistry())

	registry.JobsSubmitted.WithLabelValues("ingest").Add(10)
	registry.JobsCompleted.WithLabelValues("ingest").Add(9)
	registry.JobsFailed.WithLabelValues("ingest").Add(1)

	fmt.Println("Metrics updated successfully")

	// Output:
	// Metrics updated successfully
}

// Example_configuration demonstrates different metrics configurations.
func Example_configuration() {
	// Default configuration
	defaultConfig := DefaultConfig()
	fmt.Printf("Default enabled: %v\n", defaultConfig.Enabled)
	fmt.Printf("Default namespace: %s\n", defaultConfig.Namespace)

	// Disabled configuration resolves to no registry
	customConfig := Config{
		Enabled:   false,
		Namespace: "myapp",
	}
	fmt.Printf("Disabled resolves to nil: %v\n", customConfig.Resolve() == nil)

	// Output:
	// Default enabled: true
	// Default namespace: dispatch
	// Disabled resolves to nil: true
}

package config

import "time"

// Config is the root configuration of a dispatch process.
type Config struct {
	Pool      PoolConfig      `description:"Worker pool configuration" koanf:"pool" yaml:"pool"`
	Log       LogConfig       `description:"Logging configuration" koanf:"log" yaml:"log"`
	Metrics   MetricsConfig   `description:"Prometheus metrics configuration" koanf:"metrics" yaml:"metrics"`
	Report    ReportConfig    `description:"Failure reporting configuration" koanf:"report" yaml:"report"`
	Scheduler SchedulerConfig `description:"Scheduler configuration" koanf:"scheduler" yaml:"scheduler"`
}

// PoolConfig holds worker pool settings.
type PoolConfig struct {
	Name       string        `description:"Pool name used in logs, reports and metric labels" koanf:"name" yaml:"name" validate:"required,max=64"`
	Workers    int           `description:"Number of workers" koanf:"workers" yaml:"workers" validate:"min=1"`
	QueueSize  int           `description:"Queue capacity, 0 for unbounded" koanf:"queue_size" yaml:"queue_size" validate:"min=0"`
	Overflow   string        `description:"Full queue policy: block | reject" koanf:"overflow" yaml:"overflow" validate:"oneof=block reject"`
	JobTimeout time.Duration `description:"Per-job context timeout, 0 for none" koanf:"job_timeout" yaml:"job_timeout" validate:"gte=0"`
}

// LogConfig holds logging related configuration.
type LogConfig struct {
	Level  string `description:"Log level: trace | debug | info | warn | error" koanf:"level" yaml:"level" validate:"oneof=trace debug info warn error"`
	Format string `description:"Log format: json | console" koanf:"format" yaml:"format" validate:"oneof=json console"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `description:"Expose Prometheus metrics" koanf:"enabled" yaml:"enabled"`
	Addr      string `description:"Listen address of the /metrics endpoint" koanf:"addr" yaml:"addr" validate:"required,hostname_port"`
	Namespace string `description:"Metric namespace" koanf:"namespace" yaml:"namespace" validate:"required"`
}

// ReportConfig holds failure reporting sinks. Failures are always logged.
type ReportConfig struct {
	Redis RedisConfig `description:"Redis stream sink" koanf:"redis" yaml:"redis"`
}

// RedisConfig configures the Redis stream failure sink.
type RedisConfig struct {
	Enabled bool          `description:"Append failures to a Redis stream" koanf:"enabled" yaml:"enabled"`
	Addr    string        `description:"Redis address" koanf:"addr" yaml:"addr" validate:"required_if=Enabled true"`
	Stream  string        `description:"Stream key" koanf:"stream" yaml:"stream" validate:"required_if=Enabled true"`
	MaxLen  int64         `description:"Approximate stream length cap" koanf:"max_len" yaml:"max_len" validate:"gte=0"`
	Timeout time.Duration `description:"Timeout of each XADD" koanf:"timeout" yaml:"timeout" validate:"gte=0"`
}

// SchedulerConfig holds scheduler settings.
type SchedulerConfig struct {
	TickInterval time.Duration `description:"How often due entries are checked" koanf:"tick_interval" yaml:"tick_interval" validate:"gt=0"`

	// Heartbeat publishes a tick event on HeartbeatTopic at this interval. Zero disables it.
	Heartbeat      time.Duration `description:"Heartbeat event interval, 0 to disable" koanf:"heartbeat" yaml:"heartbeat" validate:"gte=0"`
	HeartbeatTopic string        `description:"Topic heartbeat events are published on" koanf:"heartbeat_topic" yaml:"heartbeat_topic" validate:"required"`
}

// Package config loads dispatch configuration from layered sources.
//
// Sources are merged in order, later ones overriding earlier ones:
//
//	defaults -> YAML file -> DISPATCH_* environment variables -> flags
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	dserrors "github.com/vnykmshr/dispatch/pkg/common/errors"
	"github.com/vnykmshr/dispatch/pkg/logging"
	"github.com/vnykmshr/dispatch/pkg/metrics"
	"github.com/vnykmshr/dispatch/pkg/report"
	"github.com/vnykmshr/dispatch/pkg/scheduling/queue"
	"github.com/vnykmshr/dispatch/pkg/scheduling/scheduler"
	"github.com/vnykmshr/dispatch/pkg/scheduling/workerpool"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "DISPATCH_"

var validate = newValidator()

// Manager handles loading and accessing configuration.
type Manager struct {
	k             *koanf.Koanf
	currentConfig Config
	mu            sync.RWMutex
}

// NewManager creates a Manager with an empty koanf instance.
func NewManager() *Manager {
	return &Manager{k: koanf.New(".")}
}

// DefaultConfig returns the configuration used when no source overrides it.
func DefaultConfig() Config {
	return Config{
		Pool: PoolConfig{
			Name:      workerpool.DefaultName,
			Workers:   4,
			QueueSize: 100,
			Overflow:  queue.Block.String(),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Addr:      ":9090",
			Namespace: metrics.DefaultNamespace,
		},
		Report: ReportConfig{
			Redis: RedisConfig{
				Addr:    "localhost:6379",
				Stream:  report.DefaultRedisStream,
				MaxLen:  10000,
				Timeout: 500 * time.Millisecond,
			},
		},
		Scheduler: SchedulerConfig{
			TickInterval:   scheduler.DefaultTickInterval,
			Heartbeat:      0,
			HeartbeatTopic: "dispatch.heartbeat",
		},
	}
}

// DefaultConfigAsMap flattens DefaultConfig into koanf keys. Every key a
// source may set must appear here; the env transform only recognises these.
func DefaultConfigAsMap() map[string]interface{} {
	def := DefaultConfig()
	return map[string]interface{}{
		"pool.name":        def.Pool.Name,
		"pool.workers":     def.Pool.Workers,
		"pool.queue_size":  def.Pool.QueueSize,
		"pool.overflow":    def.Pool.Overflow,
		"pool.job_timeout": def.Pool.JobTimeout,

		"log.level":  def.Log.Level,
		"log.format": def.Log.Format,

		"metrics.enabled":   def.Metrics.Enabled,
		"metrics.addr":      def.Metrics.Addr,
		"metrics.namespace": def.Metrics.Namespace,

		"report.redis.enabled": def.Report.Redis.Enabled,
		"report.redis.addr":    def.Report.Redis.Addr,
		"report.redis.stream":  def.Report.Redis.Stream,
		"report.redis.max_len": def.Report.Redis.MaxLen,
		"report.redis.timeout": def.Report.Redis.Timeout,

		"scheduler.tick_interval":   def.Scheduler.TickInterval,
		"scheduler.heartbeat":       def.Scheduler.Heartbeat,
		"scheduler.heartbeat_topic": def.Scheduler.HeartbeatTopic,
	}
}

// BindFlags defines a flag for every configuration key. Flag names are the
// koanf keys themselves so posflag can map them without a transform.
func BindFlags(flags *pflag.FlagSet) {
	def := DefaultConfig()

	flags.String("pool.name", def.Pool.Name, "Pool name used in logs, reports and metric labels")
	flags.Int("pool.workers", def.Pool.Workers, "Number of workers")
	flags.Int("pool.queue_size", def.Pool.QueueSize, "Queue capacity, 0 for unbounded")
	flags.String("pool.overflow", def.Pool.Overflow, "Full queue policy (block, reject)")
	flags.Duration("pool.job_timeout", def.Pool.JobTimeout, "Per-job context timeout, 0 for none")

	flags.String("log.level", def.Log.Level, "Log level (trace, debug, info, warn, error)")
	flags.String("log.format", def.Log.Format, "Log format (json, console)")

	flags.Bool("metrics.enabled", def.Metrics.Enabled, "Expose Prometheus metrics")
	flags.String("metrics.addr", def.Metrics.Addr, "Listen address of the /metrics endpoint")
	flags.String("metrics.namespace", def.Metrics.Namespace, "Metric namespace")

	flags.Bool("report.redis.enabled", def.Report.Redis.Enabled, "Append failures to a Redis stream")
	flags.String("report.redis.addr", def.Report.Redis.Addr, "Redis address")
	flags.String("report.redis.stream", def.Report.Redis.Stream, "Redis stream key")
	flags.Int64("report.redis.max_len", def.Report.Redis.MaxLen, "Approximate Redis stream length cap")
	flags.Duration("report.redis.timeout", def.Report.Redis.Timeout, "Timeout of each XADD")

	flags.Duration("scheduler.tick_interval", def.Scheduler.TickInterval, "How often due entries are checked")
	flags.Duration("scheduler.heartbeat", def.Scheduler.Heartbeat, "Heartbeat event interval, 0 to disable")
	flags.String("scheduler.heartbeat_topic", def.Scheduler.HeartbeatTopic, "Topic heartbeat events are published on")

	flags.Bool("debug", false, "Enable debug logging")
}

// Load merges every source and validates the result. An empty path skips the
// file layer; a path that does not exist is an error. flags may be nil.
func (m *Manager) Load(flags *pflag.FlagSet, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := koanf.New(".")

	if err := k.Load(confmap.Provider(DefaultConfigAsMap(), "."), nil); err != nil {
		return fmt.Errorf("error loading defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("error checking config file %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return fmt.Errorf("error loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return fmt.Errorf("error loading environment variables: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return fmt.Errorf("error loading command-line flags: %w", err)
		}

		debugFlag := flags.Lookup("debug")
		if debugFlag != nil && debugFlag.Value.String() == "true" {
			_ = k.Set("log.level", "debug")
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Pool.Overflow = strings.ToLower(cfg.Pool.Overflow)

	if err := Validate(cfg); err != nil {
		return err
	}

	m.k = k
	m.currentConfig = cfg
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentConfig
}

// Value reports the merged value of a single key.
func (m *Manager) Value(key string) (interface{}, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.k.Exists(key) {
		return nil, false
	}
	return m.k.Get(key), true
}

// Load is a convenience wrapper around a fresh Manager.
func Load(flags *pflag.FlagSet, path string) (Config, error) {
	m := NewManager()
	if err := m.Load(flags, path); err != nil {
		return Config{}, err
	}
	return m.Get(), nil
}

// Validate checks cfg against its struct tags. The first violation is
// returned as an *errors.ValidationError naming the koanf key.
func Validate(cfg Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("error validating config: %w", err)
	}

	fe := verrs[0]
	reason := "failed " + fe.Tag()
	if fe.Param() != "" {
		reason += "=" + fe.Param()
	}
	return dserrors.NewValidationError("config", fieldKey(fe), fe.Value(), reason)
}

// Workerpool converts the pool section into a workerpool.Config. Logger and
// Reporter are left for the caller.
func (c PoolConfig) Workerpool() (workerpool.Config, error) {
	policy, err := queue.ParsePolicy(c.Overflow)
	if err != nil {
		return workerpool.Config{}, err
	}
	return workerpool.Config{
		Name:        c.Name,
		WorkerCount: c.Workers,
		QueueSize:   c.QueueSize,
		Overflow:    policy,
		JobTimeout:  c.JobTimeout,
	}, nil
}

// Logging converts the log section into a logging.Config writing to stderr.
func (c LogConfig) Logging() logging.Config {
	return logging.Config{Level: c.Level, Format: c.Format}
}

// Collector converts the metrics section into a metrics.Config registering
// with reg.
func (c MetricsConfig) Collector(reg prometheus.Registerer) metrics.Config {
	return metrics.Config{
		Enabled:   c.Enabled,
		Registry:  reg,
		Namespace: c.Namespace,
	}
}

// Reporter converts the Redis section into a report.RedisConfig.
func (c RedisConfig) Reporter(logger *zerolog.Logger) report.RedisConfig {
	return report.RedisConfig{
		Stream:  c.Stream,
		MaxLen:  c.MaxLen,
		Timeout: c.Timeout,
		Logger:  logger,
	}
}

var envKeys = func() map[string]string {
	keys := make(map[string]string)
	for key := range DefaultConfigAsMap() {
		keys[strings.ToUpper(strings.ReplaceAll(key, ".", "_"))] = key
	}
	return keys
}()

// envKey maps DISPATCH_POOL_QUEUE_SIZE to pool.queue_size. Key segments may
// contain underscores themselves, so the mapping is looked up rather than
// derived; unknown variables map to "" and are skipped.
func envKey(name string) string {
	return envKeys[strings.TrimPrefix(name, EnvPrefix)]
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("koanf"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// fieldKey turns "Config.pool.workers" into "pool.workers".
func fieldKey(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

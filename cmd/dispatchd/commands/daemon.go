package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vnykmshr/dispatch/pkg/config"
	"github.com/vnykmshr/dispatch/pkg/events/eventbus"
	"github.com/vnykmshr/dispatch/pkg/metrics"
	"github.com/vnykmshr/dispatch/pkg/report"
	"github.com/vnykmshr/dispatch/pkg/scheduling/scheduler"
	"github.com/vnykmshr/dispatch/pkg/scheduling/workerpool"
)

// heartbeatID is the scheduler entry publishing heartbeats.
const heartbeatID = "heartbeat"

// Heartbeat is the payload published on the heartbeat topic.
type Heartbeat struct {
	At        time.Time
	Pool      string
	Queued    int
	Active    int
	Completed int64
	Failed    int64
}

// Daemon owns the long-lived components of a dispatchd process.
type Daemon struct {
	cfg    config.Config
	logger zerolog.Logger

	pool      *workerpool.Pool
	bus       *eventbus.Bus[Heartbeat]
	scheduler *scheduler.Scheduler

	registry *prometheus.Registry
	server   *http.Server
	redis    *report.RedisReporter

	mu       sync.Mutex
	listener net.Listener
}

// NewDaemon builds every component described by cfg without starting any
// of them.
func NewDaemon(cfg config.Config, logger zerolog.Logger) (*Daemon, error) {
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	d.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metricsConfig := cfg.Metrics.Collector(d.registry)

	reporter := d.buildReporter(metricsConfig)

	poolConfig, err := cfg.Pool.Workerpool()
	if err != nil {
		d.closeReporters()
		return nil, err
	}
	poolConfig.Logger = &d.logger
	poolConfig.Reporter = reporter

	d.pool, err = workerpool.NewWithMetrics(poolConfig, poolConfig.Name, metricsConfig)
	if err != nil {
		d.closeReporters()
		return nil, fmt.Errorf("create pool: %w", err)
	}

	d.bus, err = eventbus.NewWithMetrics[Heartbeat](eventbus.Config{
		Logger:   &d.logger,
		Reporter: reporter,
	}, poolConfig.Name, metricsConfig)
	if err != nil {
		d.pool.Shutdown()
		d.closeReporters()
		return nil, fmt.Errorf("create bus: %w", err)
	}

	d.scheduler, err = scheduler.New(scheduler.Config{
		Pool:         d.pool,
		Name:         poolConfig.Name,
		TickInterval: cfg.Scheduler.TickInterval,
		Logger:       &d.logger,
		Metrics:      metricsConfig,
	})
	if err != nil {
		d.pool.Shutdown()
		d.closeReporters()
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	if cfg.Scheduler.Heartbeat > 0 {
		d.bus.Subscribe(cfg.Scheduler.HeartbeatTopic, d.logHeartbeat)
		job := scheduler.PublishJob(d.bus, cfg.Scheduler.HeartbeatTopic, d.heartbeat)
		if err := d.scheduler.ScheduleRepeating(heartbeatID, job, cfg.Scheduler.Heartbeat); err != nil {
			<-d.scheduler.Stop()
			d.pool.Shutdown()
			d.closeReporters()
			return nil, fmt.Errorf("schedule heartbeat: %w", err)
		}
	}

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{Registry: d.registry}))
		d.server = &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	return d, nil
}

// buildReporter fans failures out to the log and, when enabled, a Redis
// stream, counting each one in metrics.
func (d *Daemon) buildReporter(metricsConfig metrics.Config) report.Reporter {
	reporters := []report.Reporter{report.NewLogReporter(d.logger)}

	if rc := d.cfg.Report.Redis; rc.Enabled {
		client := redis.NewClient(&redis.Options{Addr: rc.Addr})
		d.redis = report.NewRedisReporter(client, rc.Reporter(&d.logger))
		reporters = append(reporters, d.redis)
	}

	return report.WithMetrics(report.Multi(reporters...), metricsConfig.Resolve())
}

// Pool returns the daemon's worker pool.
func (d *Daemon) Pool() *workerpool.Pool { return d.pool }

// Bus returns the daemon's event bus.
func (d *Daemon) Bus() *eventbus.Bus[Heartbeat] { return d.bus }

// Scheduler returns the daemon's scheduler.
func (d *Daemon) Scheduler() *scheduler.Scheduler { return d.scheduler }

// MetricsAddr returns the address the metrics endpoint listens on, or "" when
// it is disabled or not started.
func (d *Daemon) MetricsAddr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listener == nil {
		return ""
	}
	return d.listener.Addr().String()
}

// Start opens the metrics endpoint and starts the scheduler.
func (d *Daemon) Start() error {
	if d.server != nil {
		ln, err := net.Listen("tcp", d.cfg.Metrics.Addr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", d.cfg.Metrics.Addr, err)
		}
		d.mu.Lock()
		d.listener = ln
		d.mu.Unlock()

		go func() {
			if err := d.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				d.logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	if err := d.scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	d.logger.Info().
		Str("pool", d.pool.Name()).
		Int("workers", d.pool.Size()).
		Int("queue_size", d.pool.QueueSize()).
		Str("metrics_addr", d.MetricsAddr()).
		Msg("dispatchd started")
	return nil
}

// Shutdown stops the scheduler, drains the pool and closes the metrics
// endpoint and reporters. ctx bounds the whole sequence.
func (d *Daemon) Shutdown(ctx context.Context) error {
	var errs []error

	select {
	case <-d.scheduler.Stop():
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("stop scheduler: %w", ctx.Err()))
	}

	if err := d.pool.ShutdownContext(ctx); err != nil {
		errs = append(errs, err)
	}

	if d.server != nil {
		if err := d.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop metrics server: %w", err))
		}
	}

	if err := d.closeReporters(); err != nil {
		errs = append(errs, err)
	}

	d.logger.Info().
		Int64("completed", d.pool.TotalCompleted()).
		Int64("failed", d.pool.TotalFailed()).
		Msg("dispatchd stopped")
	return errors.Join(errs...)
}

// Run starts the daemon, waits for ctx to end and shuts down within timeout.
func (d *Daemon) Run(ctx context.Context, timeout time.Duration) error {
	if err := d.Start(); err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return errors.Join(err, d.Shutdown(shutdownCtx))
	}

	<-ctx.Done()
	d.logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return d.Shutdown(shutdownCtx)
}

func (d *Daemon) closeReporters() error {
	if d.redis == nil {
		return nil
	}
	if err := d.redis.Close(); err != nil {
		return fmt.Errorf("close redis reporter: %w", err)
	}
	return nil
}

func (d *Daemon) heartbeat(at time.Time) Heartbeat {
	stats := d.pool.QueueStats()
	return Heartbeat{
		At:        at,
		Pool:      d.pool.Name(),
		Queued:    stats.Len,
		Active:    d.pool.ActiveWorkers(),
		Completed: d.pool.TotalCompleted(),
		Failed:    d.pool.TotalFailed(),
	}
}

func (d *Daemon) logHeartbeat(_ context.Context, ev eventbus.Event[Heartbeat]) error {
	hb := ev.Payload
	d.logger.Debug().
		Str("topic", ev.Topic).
		Int("queued", hb.Queued).
		Int("active", hb.Active).
		Int64("completed", hb.Completed).
		Int64("failed", hb.Failed).
		Msg("heartbeat")
	return nil
}

package report

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisConfig configures a RedisReporter.
type RedisConfig struct {
	// Stream is the Redis stream key failures are appended to.
	Stream string

	// MaxLen caps the stream length (approximate trimming). Zero means 10000.
	MaxLen int64

	// Timeout bounds each XADD. Zero means 500ms.
	Timeout time.Duration

	// Logger receives XADD errors. Nil disables them.
	Logger *zerolog.Logger
}

// DefaultRedisStream is the stream key used when RedisConfig.Stream is empty.
const DefaultRedisStream = "dispatch:failures"

// RedisReporter appends failures to a Redis stream so that an operator can
// tail them from outside the process. It is a reporting sink only; nothing is
// ever read back or re-executed.
type RedisReporter struct {
	client  redis.UniversalClient
	stream  string
	maxLen  int64
	timeout time.Duration
	logger  zerolog.Logger
}

// NewRedisReporter creates a RedisReporter using client.
func NewRedisReporter(client redis.UniversalClient, cfg RedisConfig) *RedisReporter {
	r := &RedisReporter{
		client:  client,
		stream:  cfg.Stream,
		maxLen:  cfg.MaxLen,
		timeout: cfg.Timeout,
		logger:  zerolog.Nop(),
	}
	if r.stream == "" {
		r.stream = DefaultRedisStream
	}
	if r.maxLen <= 0 {
		r.maxLen = 10000
	}
	if r.timeout <= 0 {
		r.timeout = 500 * time.Millisecond
	}
	if cfg.Logger != nil {
		r.logger = *cfg.Logger
	}
	return r
}

// Stream returns the stream key failures are written to.
func (r *RedisReporter) Stream() string {
	return r.stream
}

// Report implements Reporter.
func (r *RedisReporter) Report(ctx context.Context, f Failure) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: r.maxLen,
		Approx: true,
		Values: failureValues(f),
	}).Err()
	if err != nil {
		r.logger.Warn().Err(err).
			Str("stream", r.stream).
			Str("failure_id", f.ID).
			Msg("could not append failure to redis stream")
	}
}

// Close closes the underlying client.
func (r *RedisReporter) Close() error {
	return r.client.Close()
}

func failureValues(f Failure) map[string]interface{} {
	values := map[string]interface{}{
		"id":        f.ID,
		"kind":      string(f.Kind),
		"component": f.Component,
		"panicked":  strconv.FormatBool(f.Panicked),
		"time":      f.Time.UTC().Format(time.RFC3339Nano),
	}
	if f.Err != nil {
		values["error"] = f.Err.Error()
	}
	switch f.Kind {
	case JobFailure:
		values["worker_id"] = strconv.Itoa(f.WorkerID)
	case HandlerFailure:
		values["topic"] = f.Topic
		values["subscription"] = strconv.FormatUint(f.Subscription, 10)
	}
	if f.Panicked && len(f.Stack) > 0 {
		values["stack"] = string(f.Stack)
	}
	return values
}

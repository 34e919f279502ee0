package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sendwerk/outbox/pkg/dispatch"
)

// Redis is a dispatch.Notifier publishing notifications as JSON to a
// pub/sub channel. Delivery is fire-and-forget; publish failures are
// logged, never propagated into the send.
type Redis struct {
	client  redis.UniversalClient
	channel string
	log     *slog.Logger
}

// Notification is the published payload.
type Notification struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// NewRedis creates a pub/sub notifier publishing to the given channel.
func NewRedis(client redis.UniversalClient, channel string, log *slog.Logger) *Redis {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Redis{client: client, channel: channel, log: log}
}

// Notify implements dispatch.Notifier.
func (r *Redis) Notify(ctx context.Context, message string, severity dispatch.Severity) {
	payload, err := json.Marshal(Notification{Message: message, Severity: string(severity)})
	if err != nil {
		r.log.ErrorContext(ctx, "failed to encode notification", slog.String("error", err.Error()))
		return
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		r.log.WarnContext(ctx, "failed to publish notification",
			slog.String("channel", r.channel),
			slog.String("error", err.Error()))
	}
}

// DialOption configures Dial.
type DialOption func(*dialOptions)

type dialOptions struct {
	poolSize      int
	retryAttempts int
	retryInterval time.Duration
	dialTimeout   time.Duration
}

// WithPoolSize sets the maximum number of connections in the pool.
// Default: 10
func WithPoolSize(n int) DialOption {
	return func(o *dialOptions) { o.poolSize = n }
}

// WithRetry configures connection retry behavior.
// Default: 3 attempts, 5 second base interval with linear backoff.
func WithRetry(attempts int, interval time.Duration) DialOption {
	return func(o *dialOptions) {
		o.retryAttempts = attempts
		o.retryInterval = interval
	}
}

// WithDialTimeout sets the timeout for establishing new connections.
// Default: 5 seconds
func WithDialTimeout(d time.Duration) DialOption {
	return func(o *dialOptions) { o.dialTimeout = d }
}

// Dial creates a Redis client for the notifier. Supports both redis:// and
// rediss:// (TLS) URL schemes and retries the initial connection.
func Dial(ctx context.Context, url string, opts ...DialOption) (redis.UniversalClient, error) {
	if url == "" {
		return nil, ErrEmptyConnectionURL
	}
	if !strings.HasPrefix(url, "redis://") && !strings.HasPrefix(url, "rediss://") {
		return nil, ErrFailedToParseURL
	}

	o := &dialOptions{
		poolSize:      10,
		retryAttempts: 3,
		retryInterval: 5 * time.Second,
		dialTimeout:   5 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}

	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseURL, err)
	}
	redisOpts.PoolSize = o.poolSize
	redisOpts.DialTimeout = o.dialTimeout

	attempts := max(o.retryAttempts, 1)
	for i := range attempts {
		client := redis.NewClient(redisOpts)
		if err := client.Ping(ctx).Err(); err == nil {
			return client, nil
		}
		_ = client.Close()

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrConnectionFailed, ctx.Err())
		case <-time.After(time.Duration(i+1) * o.retryInterval):
		}
	}
	return nil, ErrConnectionFailed
}

package publish

import (
	"context"
	"fmt"
	"time"

	"quote-observer/src/logger"
	"quote-observer/src/models"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the part of *redis.Client the publisher uses.
type RedisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Pipeline() redis.Pipeliner
	Close() error
}

// RedisPublisher publishes every snapshot on snapshots.<symbol> and keeps the
// latest one per symbol and window under snapshot:<symbol>:<window>.
type RedisPublisher struct {
	client  RedisClient
	ttl     time.Duration
	timeout time.Duration
	Logger  *logger.Logger
}

// -----------------------------------------------------------------------------

func NewRedisPublisher(cfg models.MPublishConfig, log *logger.Logger) *RedisPublisher {
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	return NewRedisPublisherWithClient(client, cfg.TTL, cfg.Timeout, log)
}

func NewRedisPublisherWithClient(client RedisClient, ttl, timeout time.Duration, log *logger.Logger) *RedisPublisher {
	return &RedisPublisher{
		client:  client,
		ttl:     ttl,
		timeout: timeoutOrDefault(timeout),
		Logger:  log,
	}
}

func ChannelName(symbol string) string {
	return "snapshots." + symbol
}

func KeyName(symbol, window string) string {
	return fmt.Sprintf("snapshot:%s:%s", symbol, window)
}

// -----------------------------------------------------------------------------

func (p *RedisPublisher) Name() string { return "redis" }

// Ping checks the connection. Used at startup so a wrong address shows up in
// the logs right away.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.client.Ping(ctx).Err()
}

func (p *RedisPublisher) Publish(ctx context.Context, snapshots []models.MSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	pipe := p.client.Pipeline()
	for _, s := range snapshots {
		payload, err := encode(s)
		if err != nil {
			return fmt.Errorf("encode snapshot %s/%s: %w", s.Symbol, s.Window, err)
		}
		pipe.Set(ctx, KeyName(s.Symbol, s.Window), payload, p.ttl)
		pipe.Publish(ctx, ChannelName(s.Symbol), payload)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jwalitptl/crm-api/pkg/circuitbreaker"
	"github.com/jwalitptl/crm-api/pkg/messaging"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Queue implements messaging.Queue on Redis lists: LPUSH to enqueue, BRPOP to dequeue.
type Queue struct {
	client *redis.Client
	cb     *circuitbreaker.CircuitBreaker
	logger *zerolog.Logger
}

type Config struct {
	URL          string
	MaxRetries   int
	RetryBackoff time.Duration
	PoolSize     int
	MinIdleConns int
}

func NewQueue(config Config, logger *zerolog.Logger) (*Queue, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Configure connection pooling
	if config.MaxRetries > 0 {
		opts.MaxRetries = config.MaxRetries
	}
	if config.RetryBackoff > 0 {
		opts.MinRetryBackoff = config.RetryBackoff
	}
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	opts.MinIdleConns = config.MinIdleConns

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewQueueFromClient(client, logger), nil
}

// NewQueueFromClient wraps an existing client.
func NewQueueFromClient(client *redis.Client, logger *zerolog.Logger) *Queue {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Queue{
		client: client,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "redis-queue",
			MaxFailures: 5,
			Cooldown:    5 * time.Second,
		}),
		logger: logger,
	}
}

func (q *Queue) Push(ctx context.Context, queue string, payload []byte) error {
	err := q.cb.Execute(func() error {
		return q.client.LPush(ctx, queue, payload).Err()
	})
	if err != nil {
		q.logger.Error().Err(err).Str("queue", queue).Msg("failed to push job")
		return fmt.Errorf("failed to push to %s: %w", queue, err)
	}
	return nil
}

func (q *Queue) Pop(ctx context.Context, queue string, timeout time.Duration) ([]byte, error) {
	res, err := q.client.BRPop(ctx, timeout, queue).Result()
	if errors.Is(err, redis.Nil) {
		return nil, messaging.ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop from %s: %w", queue, err)
	}
	// BRPOP replies with [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply of length %d", len(res))
	}
	return []byte(res[1]), nil
}

func (q *Queue) Len(ctx context.Context, queue string) (int64, error) {
	return q.client.LLen(ctx, queue).Result()
}

func (q *Queue) Close() error {
	return q.client.Close()
}

var _ messaging.Queue = (*Queue)(nil)

// Ping reports whether Redis answers, for readiness checks.
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jwalitptl/crm-api/pkg/logger"
	"github.com/jwalitptl/crm-api/pkg/messaging"
	"github.com/jwalitptl/crm-api/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Envelope is what travels on the queue: the job payload plus delivery bookkeeping.
type Envelope struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Attempts  int             `json:"attempts"`
	Payload   json.RawMessage `json:"payload"`
	LastError string          `json:"last_error,omitempty"`
	QueuedAt  time.Time       `json:"queued_at"`
}

// Handler runs one job payload. A returned error triggers a retry.
type Handler func(ctx context.Context, payload []byte) error

type QueueProcessorConfig struct {
	Queue       string
	DeadLetter  string
	MaxAttempts int
	RetryDelay  time.Duration
	PollTimeout time.Duration
	Workers     int
}

type QueueProcessor struct {
	queue   messaging.Queue
	handler Handler
	config  QueueProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// Enqueue wraps payload in an Envelope and pushes it.
func Enqueue(ctx context.Context, q messaging.Queue, queue, name string, payload []byte) error {
	env := Envelope{
		ID:       uuid.NewString(),
		Name:     name,
		Payload:  payload,
		QueuedAt: time.Now().UTC(),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return q.Push(ctx, queue, raw)
}

func NewQueueProcessor(
	queue messaging.Queue,
	handler Handler,
	config QueueProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *QueueProcessor {
	// Config validation instead of defaults
	if config.Queue == "" || config.DeadLetter == "" {
		panic("Queue and DeadLetter must be set")
	}
	if config.MaxAttempts <= 0 {
		panic("MaxAttempts must be greater than 0")
	}
	if config.PollTimeout <= 0 {
		panic("PollTimeout must be greater than 0")
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}

	return &QueueProcessor{
		queue:   queue,
		handler: handler,
		config:  config,
		logger:  logger,
		metrics: metrics,
	}
}

// Start runs the configured number of consumers until ctx is done.
func (p *QueueProcessor) Start(ctx context.Context) {
	p.logger.Info("Starting queue processor", "queue", p.config.Queue, "workers", p.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < p.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				if _, err := p.ProcessOne(ctx); err != nil && ctx.Err() == nil {
					p.logger.Error(err, "Failed to process job")
					sleep(ctx, time.Second)
				}
			}
		}()
	}
	wg.Wait()

	p.logger.Info("Shutting down queue processor")
}

// ProcessOne waits for a single job and runs it. It reports false when the poll timed out.
func (p *QueueProcessor) ProcessOne(ctx context.Context) (bool, error) {
	raw, err := p.queue.Pop(ctx, p.config.Queue, p.config.PollTimeout)
	if errors.Is(err, messaging.ErrEmpty) {
		p.observeDepth(ctx)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		p.logger.Error(err, "Dropping malformed job")
		return true, p.queue.Push(ctx, p.config.DeadLetter, raw)
	}

	timer := prometheus.NewTimer(p.metrics.TaskLatency.WithLabelValues(env.Name))
	err = p.handler(ctx, env.Payload)
	timer.ObserveDuration()

	if err == nil {
		p.metrics.TasksProcessed.WithLabelValues(env.Name, "success").Inc()
		return true, nil
	}

	p.metrics.TasksProcessed.WithLabelValues(env.Name, "error").Inc()
	env.Attempts++
	env.LastError = err.Error()

	target := p.config.Queue
	if env.Attempts >= p.config.MaxAttempts {
		target = p.config.DeadLetter
		p.metrics.TasksDead.Inc()
		p.logger.Error(err, "Job exhausted retries", "job_id", env.ID, "name", env.Name, "attempts", env.Attempts)
	} else {
		p.metrics.TaskRetries.WithLabelValues(env.Name).Inc()
		p.logger.Warn("Retrying job", "job_id", env.ID, "name", env.Name, "attempts", env.Attempts, "error", err.Error())
		sleep(ctx, p.config.RetryDelay)
	}

	requeued, merr := json.Marshal(env)
	if merr != nil {
		return true, fmt.Errorf("failed to marshal job: %w", merr)
	}
	if perr := p.queue.Push(context.WithoutCancel(ctx), target, requeued); perr != nil {
		return true, fmt.Errorf("failed to requeue job %s: %w", env.ID, perr)
	}
	return true, nil
}

func (p *QueueProcessor) observeDepth(ctx context.Context) {
	if n, err := p.queue.Len(ctx, p.config.Queue); err == nil {
		p.metrics.QueueDepth.Set(float64(n))
	}
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

package messaging

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue is an in-process Queue used by tests and single-process development runs.
type MemoryQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queues map[string][][]byte
}

func NewMemoryQueue() *MemoryQueue {
	q := &MemoryQueue{queues: make(map[string][][]byte)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *MemoryQueue) Push(_ context.Context, queue string, payload []byte) error {
	q.mu.Lock()
	q.queues[queue] = append(q.queues[queue], append([]byte(nil), payload...))
	q.mu.Unlock()
	q.cond.Broadcast()
	return nil
}

func (q *MemoryQueue) Pop(ctx context.Context, queue string, timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	stop := context.AfterFunc(ctx, q.cond.Broadcast)
	defer stop()
	timer := time.AfterFunc(timeout, q.cond.Broadcast)
	defer timer.Stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.queues[queue]) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !time.Now().Before(deadline) {
			return nil, ErrEmpty
		}
		q.cond.Wait()
	}
	payload := q.queues[queue][0]
	q.queues[queue] = q.queues[queue][1:]
	return payload, nil
}

func (q *MemoryQueue) Len(_ context.Context, queue string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.queues[queue])), nil
}

func (q *MemoryQueue) Close() error {
	return nil
}

package messaging

import (
	"context"
	"errors"
	"time"
)

// ErrEmpty is returned by Pop when no message arrived before the timeout.
var ErrEmpty = errors.New("queue empty")

// Queue is a reliable FIFO of opaque payloads keyed by name.
type Queue interface {
	Push(ctx context.Context, queue string, payload []byte) error
	// Pop blocks up to timeout for the oldest payload.
	Pop(ctx context.Context, queue string, timeout time.Duration) ([]byte, error)
	Len(ctx context.Context, queue string) (int64, error)
	Close() error
}

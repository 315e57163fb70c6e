package connector

import (
	"context"
	"sync"
	"time"

	"github.com/tradeforge/poloniex-connector/internal/errs"
)

// SubmitQueue is the platform's deferred order-submission seam. CreateOrder
// re-enqueues expired intents here rather than dropping them.
type SubmitQueue interface {
	Submit(ctx context.Context, exchange, localID string, expireAt time.Time) error
}

// Submission is one queued order-submission request.
type Submission struct {
	Exchange string
	LocalID  string
	ExpireAt time.Time
}

// MemoryQueue is a bounded in-process SubmitQueue.
type MemoryQueue struct {
	mu     sync.Mutex
	items  chan Submission
	closed bool
}

// NewMemoryQueue constructs a queue holding at most capacity submissions.
func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 64
	}
	return &MemoryQueue{items: make(chan Submission, capacity)}
}

// Submit enqueues a submission, failing fast when the queue is full. The
// lock is held across the send so Close cannot close the channel between the
// closed check and the send.
func (q *MemoryQueue) Submit(ctx context.Context, exchange, localID string, expireAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return errs.New(exchange, errs.CodeStore, errs.WithMessage("submit queue closed"))
	}

	select {
	case q.items <- Submission{Exchange: exchange, LocalID: localID, ExpireAt: expireAt}:
		return nil
	default:
		return errs.New(exchange, errs.CodeStore, errs.WithMessage("submit queue full"))
	}
}

// Next pops the oldest submission, blocking until one arrives or ctx ends.
func (q *MemoryQueue) Next(ctx context.Context) (Submission, error) {
	select {
	case sub, ok := <-q.items:
		if !ok {
			return Submission{}, errs.New("", errs.CodeStore, errs.WithMessage("submit queue closed"))
		}
		return sub, nil
	case <-ctx.Done():
		return Submission{}, ctx.Err()
	}
}

// Len reports the number of queued submissions.
func (q *MemoryQueue) Len() int { return len(q.items) }

// Close drains no further submissions; pending ones can still be consumed.
func (q *MemoryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.items)
	}
}

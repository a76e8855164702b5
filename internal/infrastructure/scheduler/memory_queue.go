package scheduler

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue is a process-local Queue
type MemoryQueue struct {
	mu      sync.Mutex
	pending []*Job
	held    map[string]struct{}
	notify  chan struct{}
	done    chan struct{}
	closed  bool
}

// NewMemoryQueue creates an empty MemoryQueue
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		held:   make(map[string]struct{}),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Enqueue implements Queue
func (q *MemoryQueue) Enqueue(_ context.Context, job *Job) (bool, error) {
	if err := job.Validate(); err != nil {
		return false, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false, ErrQueueClosed
	}
	if _, ok := q.held[job.ID]; ok {
		return false, nil
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	q.held[job.ID] = struct{}{}
	q.pending = append(q.pending, job)
	q.signal()
	return true, nil
}

// Dequeue implements Queue
func (q *MemoryQueue) Dequeue(ctx context.Context) (*Job, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, ErrQueueClosed
		}
		if len(q.pending) > 0 {
			job := q.pending[0]
			q.pending[0] = nil
			q.pending = q.pending[1:]
			// Pass the wakeup on so other waiting workers see the rest.
			if len(q.pending) > 0 {
				q.signal()
			}
			q.mu.Unlock()
			return job, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.done:
			return nil, ErrQueueClosed
		case <-q.notify:
		}
	}
}

// Ack implements Queue
func (q *MemoryQueue) Ack(_ context.Context, job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.held, job.ID)
	return nil
}

// Len implements Queue
func (q *MemoryQueue) Len(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.pending)), nil
}

// Held returns the number of identities currently held, queued and running
func (q *MemoryQueue) Held() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.held)
}

// Close implements Queue
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
	return nil
}

// signal wakes one waiting Dequeue; caller holds q.mu
func (q *MemoryQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

var _ Queue = (*MemoryQueue)(nil)

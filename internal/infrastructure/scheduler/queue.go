package scheduler

import "context"

// Queue is the job queue drained by the worker pool.
// A job identity is held from Enqueue until Ack, so a job that is already
// queued or running cannot be enqueued a second time.
type Queue interface {
	// Enqueue adds the job unless its identity is held. It reports whether
	// the job was added.
	Enqueue(ctx context.Context, job *Job) (bool, error)

	// Dequeue blocks until a job is available, the context ends or the
	// queue is closed
	Dequeue(ctx context.Context) (*Job, error)

	// Ack releases the identity of a finished job
	Ack(ctx context.Context, job *Job) error

	// Len returns the number of queued jobs, running jobs excluded
	Len(ctx context.Context) (int64, error)

	// Close stops the queue; blocked Dequeue calls return ErrQueueClosed
	Close() error
}

package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when trying to submit a job to a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrQueueClosed is returned by a queue after Close
	ErrQueueClosed = errors.New("job queue is closed")

	// ErrUnknownJobType is returned when a job type has no handler
	ErrUnknownJobType = errors.New("unknown job type")

	// ErrInvalidJob is returned for jobs missing the fields their type requires
	ErrInvalidJob = errors.New("invalid job")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")
)

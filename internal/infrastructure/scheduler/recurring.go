package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SchedulerConfig holds recurring scheduler configuration
type SchedulerConfig struct {
	// TickInterval is how often due schedules are checked
	TickInterval time.Duration
}

// DefaultSchedulerConfig returns default recurring scheduler configuration
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{TickInterval: time.Second}
}

// Validate validates the scheduler configuration
func (c SchedulerConfig) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("%w: tick interval must be positive", ErrInvalidConfig)
	}
	return nil
}

// ScheduleInfo describes one registered recurring job
type ScheduleInfo struct {
	ID             string        `json:"id"`
	Type           JobType       `json:"type"`
	StoreID        *uuid.UUID    `json:"store_id,omitempty"`
	Interval       time.Duration `json:"interval"`
	NextRunAt      time.Time     `json:"next_run_at"`
	LastEnqueuedAt *time.Time    `json:"last_enqueued_at,omitempty"`
}

type schedule struct {
	job          Job
	interval     time.Duration
	nextRun      time.Time
	lastEnqueued time.Time
}

// Scheduler keeps recurring jobs keyed by job identity and enqueues each
// one when its interval elapses. A newly registered job is due at once.
type Scheduler struct {
	config SchedulerConfig
	queue  Queue
	logger *zap.Logger
	now    func() time.Time

	schedules map[string]*schedule

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewScheduler creates a new recurring scheduler
func NewScheduler(config SchedulerConfig, queue Queue, logger *zap.Logger) (*Scheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Scheduler{
		config:    config,
		queue:     queue,
		logger:    logger,
		now:       time.Now,
		schedules: make(map[string]*schedule),
	}, nil
}

// SetClock replaces the time source
func (s *Scheduler) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Register adds a recurring job. It reports false without changing anything
// when a schedule with the same job identity already exists.
func (s *Scheduler) Register(job *Job, interval time.Duration) (bool, error) {
	if err := job.Validate(); err != nil {
		return false, err
	}
	if interval <= 0 {
		return false, fmt.Errorf("%w: interval of %s must be positive", ErrInvalidConfig, job.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[job.ID]; ok {
		return false, nil
	}
	s.schedules[job.ID] = &schedule{
		job:      *job,
		interval: interval,
		nextRun:  s.now(),
	}
	s.logger.Debug("Recurring job registered",
		zap.String("job_id", job.ID),
		zap.Duration("interval", interval),
	)
	return true, nil
}

// Unregister removes a recurring job and reports whether it existed
func (s *Scheduler) Unregister(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[id]; !ok {
		return false
	}
	delete(s.schedules, id)
	s.logger.Debug("Recurring job unregistered", zap.String("job_id", id))
	return true
}

// Has reports whether a recurring job is registered
func (s *Scheduler) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.schedules[id]
	return ok
}

// Count returns the number of registered recurring jobs
func (s *Scheduler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.schedules)
}

// List returns the registered recurring jobs ordered by identity
func (s *Scheduler) List() []ScheduleInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ScheduleInfo, 0, len(s.schedules))
	for id, sc := range s.schedules {
		info := ScheduleInfo{
			ID:        id,
			Type:      sc.job.Type,
			Interval:  sc.interval,
			NextRunAt: sc.nextRun,
		}
		if sc.job.StoreID != uuid.Nil {
			storeID := sc.job.StoreID
			info.StoreID = &storeID
		}
		if !sc.lastEnqueued.IsZero() {
			last := sc.lastEnqueued
			info.LastEnqueuedAt = &last
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Trigger enqueues a one-off run of a job outside its schedule. It shares
// the job identity with the recurring run, so the two cannot overlap.
func (s *Scheduler) Trigger(ctx context.Context, job *Job) (bool, error) {
	s.mu.Lock()
	running := s.isRunning
	s.mu.Unlock()
	if !running {
		return false, ErrSchedulerNotRunning
	}
	return s.queue.Enqueue(ctx, job)
}

// Start starts the scheduling loop
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.runLoop(ctx)

	s.logger.Info("Recurring scheduler started", zap.Duration("tick_interval", s.config.TickInterval))
	return nil
}

// Stop stops the scheduling loop
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Recurring scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runLoop(ctx context.Context) {
	defer s.wg.Done()

	s.enqueueDue(ctx)

	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.enqueueDue(ctx)
		}
	}
}

// enqueueDue enqueues every schedule whose next run has passed. A job still
// held by the queue is not enqueued again; its schedule moves on regardless.
// An enqueue error leaves the schedule due for the next tick.
func (s *Scheduler) enqueueDue(ctx context.Context) int {
	s.mu.Lock()
	now := s.now()
	due := make([]*schedule, 0)
	for _, sc := range s.schedules {
		if !sc.nextRun.After(now) {
			due = append(due, sc)
		}
	}
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].job.ID < due[j].job.ID })

	enqueued := 0
	for _, sc := range due {
		job := sc.job
		job.EnqueuedAt = time.Time{}
		added, err := s.queue.Enqueue(ctx, &job)
		if err != nil {
			s.logger.Error("Failed to enqueue recurring job", zap.String("job_id", job.ID), zap.Error(err))
			continue
		}

		s.mu.Lock()
		sc.nextRun = now.Add(sc.interval)
		if added {
			sc.lastEnqueued = now
		}
		s.mu.Unlock()

		if added {
			enqueued++
		} else {
			s.logger.Debug("Recurring job still queued or running", zap.String("job_id", job.ID))
		}
	}
	return enqueued
}

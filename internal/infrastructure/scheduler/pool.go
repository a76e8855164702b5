package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/erp/commercesync/internal/infrastructure/logger"
	"github.com/erp/commercesync/internal/infrastructure/telemetry"
)

// JobHandler executes one dequeued job
type JobHandler interface {
	Handle(ctx context.Context, job *Job) error
}

// JobObserver receives the outcome of every executed job
type JobObserver interface {
	RecordJob(ctx context.Context, jobType string, duration time.Duration, success bool)
}

type nopJobObserver struct{}

func (nopJobObserver) RecordJob(context.Context, string, time.Duration, bool) {}

// PoolConfig holds worker pool configuration
type PoolConfig struct {
	// MaxConcurrentJobs is the number of jobs that may run at once
	MaxConcurrentJobs int
	// DispatchRate caps job starts per second across all workers
	DispatchRate float64
	// DispatchBurst is the number of starts allowed above the rate at once
	DispatchBurst int
	// JobTimeout bounds a single job execution
	JobTimeout time.Duration
}

// DefaultPoolConfig returns default worker pool configuration
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConcurrentJobs: 5,
		DispatchRate:      10,
		DispatchBurst:     1,
		JobTimeout:        5 * time.Minute,
	}
}

// Validate validates the pool configuration
func (c PoolConfig) Validate() error {
	if c.MaxConcurrentJobs <= 0 {
		return fmt.Errorf("%w: max concurrent jobs must be positive", ErrInvalidConfig)
	}
	if c.DispatchRate <= 0 {
		return fmt.Errorf("%w: dispatch rate must be positive", ErrInvalidConfig)
	}
	if c.DispatchBurst <= 0 {
		return fmt.Errorf("%w: dispatch burst must be positive", ErrInvalidConfig)
	}
	if c.JobTimeout <= 0 {
		return fmt.Errorf("%w: job timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// WorkerPool drains a Queue with a fixed number of workers. A shared
// limiter spaces job starts so the pool never exceeds DispatchRate.
type WorkerPool struct {
	config   PoolConfig
	queue    Queue
	handler  JobHandler
	limiter  *rate.Limiter
	observer JobObserver
	logger   *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	active    int
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(config PoolConfig, queue Queue, handler JobHandler, logger *zap.Logger) (*WorkerPool, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &WorkerPool{
		config:   config,
		queue:    queue,
		handler:  handler,
		limiter:  rate.NewLimiter(rate.Limit(config.DispatchRate), config.DispatchBurst),
		observer: nopJobObserver{},
		logger:   logger,
	}, nil
}

// SetObserver replaces the job observer
func (p *WorkerPool) SetObserver(o JobObserver) {
	if o != nil {
		p.observer = o
	}
}

// Start starts the workers
func (p *WorkerPool) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.isRunning {
		p.mu.Unlock()
		return nil
	}
	p.isRunning = true
	p.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for i := 0; i < p.config.MaxConcurrentJobs; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i+1)
	}

	p.logger.Info("Worker pool started",
		zap.Int("workers", p.config.MaxConcurrentJobs),
		zap.Float64("dispatch_rate", p.config.DispatchRate),
		zap.Duration("job_timeout", p.config.JobTimeout),
	)
	return nil
}

// Stop stops the workers and waits for running jobs to return
func (p *WorkerPool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return nil
	}
	p.isRunning = false
	p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("Worker pool stopped gracefully")
		return nil
	case <-ctx.Done():
		p.logger.Warn("Worker pool stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the pool has been started
func (p *WorkerPool) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isRunning
}

// Active returns the number of jobs currently executing
func (p *WorkerPool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Capacity returns the configured concurrency ceiling
func (p *WorkerPool) Capacity() int {
	return p.config.MaxConcurrentJobs
}

func (p *WorkerPool) worker(ctx context.Context, workerID int) {
	defer p.wg.Done()

	p.logger.Debug("Worker started", zap.Int("worker_id", workerID))

	for {
		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, ErrQueueClosed) || ctx.Err() != nil {
				p.logger.Debug("Worker stopping", zap.Int("worker_id", workerID))
				return
			}
			p.logger.Error("Failed to dequeue job", zap.Int("worker_id", workerID), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		// Admission is taken per dequeued job. An idle worker holding a
		// token would let a burst of arrivals start above DispatchRate.
		if err := p.limiter.Wait(ctx); err != nil {
			if ackErr := p.queue.Ack(context.WithoutCancel(ctx), job); ackErr != nil {
				p.logger.Error("Failed to release unstarted job", zap.String("job_id", job.ID), zap.Error(ackErr))
			}
			p.logger.Debug("Worker stopping", zap.Int("worker_id", workerID))
			return
		}

		p.processJob(ctx, job, workerID)
	}
}

func (p *WorkerPool) processJob(ctx context.Context, job *Job, workerID int) {
	p.mu.Lock()
	p.active++
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.active--
		p.mu.Unlock()
	}()

	jobCtx, cancel := context.WithTimeout(ctx, p.config.JobTimeout)
	defer cancel()

	var spanOpts []telemetry.SpanOption
	profileLabels := map[string]string{}
	if job.StoreID != uuid.Nil {
		spanOpts = append(spanOpts, telemetry.WithAttribute(telemetry.SpanAttrStoreID, job.StoreID.String()))
		profileLabels[telemetry.ProfilingLabelStoreID] = job.StoreID.String()
	}
	if entityType, ok := job.Type.EntityType(); ok {
		spanOpts = append(spanOpts, telemetry.WithAttribute(telemetry.SpanAttrEntityType, entityType.String()))
		profileLabels[telemetry.ProfilingLabelEntityType] = entityType.String()
	}
	jobCtx, span := telemetry.StartJobSpan(jobCtx, job.Type.String(), job.ID, spanOpts...)

	fields := logger.JobFields{JobID: job.ID, JobType: job.Type.String(), WorkerID: workerID}
	if job.StoreID != uuid.Nil {
		fields.StoreID = job.StoreID.String()
	}
	jobCtx, log := logger.WithJob(jobCtx, p.logger, fields)

	start := time.Now()
	var err error
	telemetry.WithJobProfileLabels(jobCtx, job.Type.String(), profileLabels, func(c context.Context) {
		err = p.runHandler(c, job)
	})
	duration := time.Since(start)
	telemetry.EndSpan(span, err)

	// The identity is released whatever the outcome; the next tick re-enqueues.
	if ackErr := p.queue.Ack(context.WithoutCancel(ctx), job); ackErr != nil {
		log.Error("Failed to ack job", zap.Error(ackErr))
	}
	p.observer.RecordJob(jobCtx, job.Type.String(), duration, err == nil)

	if err != nil {
		log.Error("Job failed", zap.Duration("duration", duration), zap.Error(err))
		return
	}
	log.Info("Job completed", zap.Duration("duration", duration))
}

// runHandler converts a handler panic into a job error
func (p *WorkerPool) runHandler(ctx context.Context, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.ID, r)
		}
	}()
	return p.handler.Handle(ctx, job)
}

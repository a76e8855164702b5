package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/erp/commercesync/internal/domain/integration"
)

type handlerFunc func(ctx context.Context, job *Job) error

func (f handlerFunc) Handle(ctx context.Context, job *Job) error { return f(ctx, job) }

type recordedJob struct {
	jobType string
	success bool
}

type recordingJobObserver struct {
	mu   sync.Mutex
	jobs []recordedJob
}

func (o *recordingJobObserver) RecordJob(_ context.Context, jobType string, _ time.Duration, success bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.jobs = append(o.jobs, recordedJob{jobType: jobType, success: success})
}

func (o *recordingJobObserver) snapshot() []recordedJob {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]recordedJob(nil), o.jobs...)
}

func fastPoolConfig(workers int) PoolConfig {
	return PoolConfig{
		MaxConcurrentJobs: workers,
		DispatchRate:      1000,
		DispatchBurst:     workers,
		JobTimeout:        5 * time.Second,
	}
}

func startPool(t *testing.T, cfg PoolConfig, q Queue, h JobHandler) *WorkerPool {
	t.Helper()
	pool, err := NewWorkerPool(cfg, q, h, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = pool.Stop(ctx)
	})
	return pool
}

func TestPoolConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultPoolConfig().Validate())

	tests := []struct {
		name   string
		modify func(*PoolConfig)
	}{
		{"zero workers", func(c *PoolConfig) { c.MaxConcurrentJobs = 0 }},
		{"zero rate", func(c *PoolConfig) { c.DispatchRate = 0 }},
		{"zero burst", func(c *PoolConfig) { c.DispatchBurst = 0 }},
		{"zero timeout", func(c *PoolConfig) { c.JobTimeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultPoolConfig()
			tt.modify(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestWorkerPool_ConcurrencyCeiling(t *testing.T) {
	q := NewMemoryQueue()
	release := make(chan struct{})
	var running, peak, done int32

	handler := handlerFunc(func(ctx context.Context, job *Job) error {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		<-release
		atomic.AddInt32(&running, -1)
		atomic.AddInt32(&done, 1)
		return nil
	})

	pool := startPool(t, fastPoolConfig(3), q, handler)

	for i := 0; i < 8; i++ {
		_, err := q.Enqueue(context.Background(), mustSyncJob(t, uuid.New(), integration.EntityTypeOrders))
		require.NoError(t, err)
	}

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&running) == 3 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(3), atomic.LoadInt32(&peak))
	assert.Equal(t, 3, pool.Active())

	close(release)
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&done) == 8 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(3), atomic.LoadInt32(&peak))
}

func TestWorkerPool_DispatchRate(t *testing.T) {
	q := NewMemoryQueue()
	var done int32
	handler := handlerFunc(func(ctx context.Context, job *Job) error {
		atomic.AddInt32(&done, 1)
		return nil
	})

	cfg := PoolConfig{MaxConcurrentJobs: 5, DispatchRate: 20, DispatchBurst: 1, JobTimeout: time.Second}
	for i := 0; i < 6; i++ {
		_, err := q.Enqueue(context.Background(), mustSyncJob(t, uuid.New(), integration.EntityTypeOrders))
		require.NoError(t, err)
	}

	start := time.Now()
	startPool(t, cfg, q, handler)
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&done) == 6 }, 3*time.Second, 5*time.Millisecond)

	// One start is free, the other five wait 50ms each.
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestWorkerPool_DispatchRateAfterIdle(t *testing.T) {
	q := NewMemoryQueue()
	var mu sync.Mutex
	var starts []time.Time
	handler := handlerFunc(func(ctx context.Context, job *Job) error {
		mu.Lock()
		starts = append(starts, time.Now())
		mu.Unlock()
		return nil
	})

	cfg := PoolConfig{MaxConcurrentJobs: 5, DispatchRate: 2, DispatchBurst: 1, JobTimeout: time.Second}
	startPool(t, cfg, q, handler)

	// Idle workers must not bank admission while the queue is empty
	time.Sleep(1500 * time.Millisecond)

	enqueued := time.Now()
	for i := 0; i < 10; i++ {
		_, err := q.Enqueue(context.Background(), mustSyncJob(t, uuid.New(), integration.EntityTypeOrders))
		require.NoError(t, err)
	}
	time.Sleep(1200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	early := 0
	for _, at := range starts {
		if at.Sub(enqueued) < time.Second {
			early++
		}
	}
	// One banked token plus two per second
	assert.LessOrEqual(t, early, 3)
	assert.GreaterOrEqual(t, early, 1)
}

func TestWorkerPool_StopReleasesUnstartedJob(t *testing.T) {
	q := NewMemoryQueue()
	handler := handlerFunc(func(context.Context, *Job) error { return nil })

	cfg := PoolConfig{MaxConcurrentJobs: 2, DispatchRate: 0.1, DispatchBurst: 1, JobTimeout: time.Second}
	pool, err := NewWorkerPool(cfg, q, handler, zap.NewNop())
	require.NoError(t, err)

	storeA, storeB := uuid.New(), uuid.New()
	for _, id := range []uuid.UUID{storeA, storeB} {
		_, err := q.Enqueue(context.Background(), mustSyncJob(t, id, integration.EntityTypeOrders))
		require.NoError(t, err)
	}
	require.NoError(t, pool.Start(context.Background()))

	// The first job takes the only token; the second waits ten seconds for admission
	assert.Eventually(t, func() bool {
		n, _ := q.Len(context.Background())
		return n == 0
	}, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, pool.Stop(context.Background()))

	for _, id := range []uuid.UUID{storeA, storeB} {
		added, err := q.Enqueue(context.Background(), mustSyncJob(t, id, integration.EntityTypeOrders))
		require.NoError(t, err)
		assert.True(t, added, "identity of %s is released after stop", id)
	}
}

func TestWorkerPool_FailuresAreScopedToTheJob(t *testing.T) {
	q := NewMemoryQueue()
	observer := &recordingJobObserver{}

	handler := handlerFunc(func(ctx context.Context, job *Job) error {
		switch job.Type {
		case JobTypeSyncOrders:
			return errors.New("platform unavailable")
		case JobTypeSyncProducts:
			panic("boom")
		default:
			return nil
		}
	})

	pool, err := NewWorkerPool(fastPoolConfig(1), q, handler, zap.NewNop())
	require.NoError(t, err)
	pool.SetObserver(observer)
	require.NoError(t, pool.Start(context.Background()))
	defer func() { _ = pool.Stop(context.Background()) }()

	storeID := uuid.New()
	for _, job := range []*Job{
		mustSyncJob(t, storeID, integration.EntityTypeOrders),
		mustSyncJob(t, storeID, integration.EntityTypeProducts),
		NewWebhookJob(),
	} {
		_, err := q.Enqueue(context.Background(), job)
		require.NoError(t, err)
	}

	assert.Eventually(t, func() bool { return len(observer.snapshot()) == 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []recordedJob{
		{jobType: "sync-orders", success: false},
		{jobType: "sync-products", success: false},
		{jobType: "process-webhooks", success: true},
	}, observer.snapshot())

	// Every identity is released, failed ones included
	assert.Eventually(t, func() bool { return q.Held() == 0 }, time.Second, 5*time.Millisecond)
}

func TestWorkerPool_JobTimeout(t *testing.T) {
	q := NewMemoryQueue()
	errs := make(chan error, 1)
	handler := handlerFunc(func(ctx context.Context, job *Job) error {
		<-ctx.Done()
		errs <- ctx.Err()
		return ctx.Err()
	})

	cfg := fastPoolConfig(1)
	cfg.JobTimeout = 30 * time.Millisecond
	startPool(t, cfg, q, handler)

	_, err := q.Enqueue(context.Background(), NewTickJob())
	require.NoError(t, err)

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not cancelled by the timeout")
	}
}

func TestWorkerPool_StartStopIdempotent(t *testing.T) {
	pool, err := NewWorkerPool(fastPoolConfig(2), NewMemoryQueue(), handlerFunc(func(context.Context, *Job) error { return nil }), zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, pool.Start(context.Background()))
	require.NoError(t, pool.Start(context.Background()))
	assert.True(t, pool.IsRunning())
	assert.Equal(t, 2, pool.Capacity())

	require.NoError(t, pool.Stop(context.Background()))
	require.NoError(t, pool.Stop(context.Background()))
	assert.False(t, pool.IsRunning())
}

func TestNewWorkerPool_InvalidConfig(t *testing.T) {
	_, err := NewWorkerPool(PoolConfig{}, NewMemoryQueue(), nil, zap.NewNop())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

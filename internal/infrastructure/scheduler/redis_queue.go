package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisQueueConfig holds the Redis queue settings
type RedisQueueConfig struct {
	// KeyPrefix namespaces the queue keys
	KeyPrefix string
	// Lease bounds how long an identity stays held without an Ack. It must
	// exceed the pool's JobTimeout or a running job can be enqueued again.
	Lease time.Duration
	// BlockTimeout is the BLPOP wait between context checks
	BlockTimeout time.Duration
}

// DefaultRedisQueueConfig returns the default Redis queue settings
func DefaultRedisQueueConfig() RedisQueueConfig {
	return RedisQueueConfig{
		KeyPrefix:    "commercesync:",
		Lease:        30 * time.Minute,
		BlockTimeout: time.Second,
	}
}

// Keys: KEYS[1] pending list, KEYS[2] held zset (score = lease deadline in
// ms), KEYS[3] hash of the current token per identity. A copy whose token is
// no longer current has been superseded and must never run.

// enqueueScript pushes the job unless its identity holds an unexpired lease.
// ARGV: id, payload, now ms, deadline ms, token.
var enqueueScript = redis.NewScript(`
local score = redis.call('ZSCORE', KEYS[2], ARGV[1])
if score and tonumber(score) > tonumber(ARGV[3]) then
  return 0
end
redis.call('ZADD', KEYS[2], ARGV[4], ARGV[1])
redis.call('HSET', KEYS[3], ARGV[1], ARGV[5])
redis.call('RPUSH', KEYS[1], ARGV[2])
return 1
`)

// claimScript renews the lease of a popped copy if it is still current.
// ARGV: id, token, deadline ms.
var claimScript = redis.NewScript(`
if redis.call('HGET', KEYS[3], ARGV[1]) ~= ARGV[2] then
  return 0
end
redis.call('ZADD', KEYS[2], ARGV[3], ARGV[1])
return 1
`)

// ackScript releases the identity unless a newer copy has taken it over.
// ARGV: id, token.
var ackScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[3], ARGV[1])
if ARGV[2] ~= '' and current and current ~= ARGV[2] then
  return 0
end
redis.call('ZREM', KEYS[2], ARGV[1])
redis.call('HDEL', KEYS[3], ARGV[1])
return 1
`)

// RedisQueue is a Queue shared by every worker process using the same Redis
type RedisQueue struct {
	client     redis.UniversalClient
	config     RedisQueueConfig
	pendingKey string
	heldKey    string
	tokenKey   string
	closed     atomic.Bool
}

// NewRedisQueue creates a RedisQueue on an existing client
func NewRedisQueue(client redis.UniversalClient, cfg RedisQueueConfig) *RedisQueue {
	def := DefaultRedisQueueConfig()
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = def.KeyPrefix
	}
	if cfg.Lease <= 0 {
		cfg.Lease = def.Lease
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = def.BlockTimeout
	}
	return &RedisQueue{
		client:     client,
		config:     cfg,
		pendingKey: cfg.KeyPrefix + "jobs:pending",
		heldKey:    cfg.KeyPrefix + "jobs:held",
		tokenKey:   cfg.KeyPrefix + "jobs:token",
	}
}

// Enqueue implements Queue
func (q *RedisQueue) Enqueue(ctx context.Context, job *Job) (bool, error) {
	if q.closed.Load() {
		return false, ErrQueueClosed
	}
	if err := job.Validate(); err != nil {
		return false, err
	}
	now := time.Now().UTC()
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = now
	}
	job.Token = uuid.NewString()
	payload, err := encodeJob(job)
	if err != nil {
		return false, fmt.Errorf("encode job %s: %w", job.ID, err)
	}

	added, err := enqueueScript.Run(ctx, q.client,
		q.keys(),
		job.ID, payload, now.UnixMilli(), now.Add(q.config.Lease).UnixMilli(), job.Token,
	).Int()
	if err != nil {
		return false, fmt.Errorf("enqueue job %s: %w", job.ID, err)
	}
	return added == 1, nil
}

// Dequeue implements Queue. The lease of a dequeued job is renewed so the
// identity stays held while it runs.
func (q *RedisQueue) Dequeue(ctx context.Context) (*Job, error) {
	for {
		if q.closed.Load() {
			return nil, ErrQueueClosed
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := q.client.BLPop(ctx, q.config.BlockTimeout, q.pendingKey).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("dequeue: %w", err)
		}

		// BLPOP returns [key, value]
		job, err := decodeJob([]byte(res[1]))
		if err != nil {
			return nil, err
		}
		deadline := time.Now().Add(q.config.Lease).UnixMilli()
		claimed, err := claimScript.Run(ctx, q.client, q.keys(), job.ID, job.Token, deadline).Int()
		if err != nil {
			return nil, fmt.Errorf("claim job %s: %w", job.ID, err)
		}
		if claimed == 0 {
			// Superseded after its lease lapsed in the pending list
			continue
		}
		return job, nil
	}
}

// Ack implements Queue. Acking a superseded copy leaves the identity held by
// the copy that replaced it.
func (q *RedisQueue) Ack(ctx context.Context, job *Job) error {
	if err := ackScript.Run(ctx, q.client, q.keys(), job.ID, job.Token).Err(); err != nil {
		return fmt.Errorf("ack job %s: %w", job.ID, err)
	}
	return nil
}

func (q *RedisQueue) keys() []string {
	return []string{q.pendingKey, q.heldKey, q.tokenKey}
}

// Len implements Queue
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.pendingKey).Result()
}

// Close implements Queue. The client is owned by the caller and stays open.
func (q *RedisQueue) Close() error {
	q.closed.Store(true)
	return nil
}

var _ Queue = (*RedisQueue)(nil)

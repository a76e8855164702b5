package scheduler

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/erp/commercesync/internal/domain/integration"
)

// JobType identifies what a job does. Dispatch switches over these values.
type JobType string

const (
	JobTypeSyncOrders      JobType = "sync-orders"
	JobTypeSyncProducts    JobType = "sync-products"
	JobTypeProcessWebhooks JobType = "process-webhooks"
	JobTypeSchedulerTick   JobType = "scheduler-tick"
)

// AllJobTypes returns every job type
func AllJobTypes() []JobType {
	return []JobType{
		JobTypeSyncOrders,
		JobTypeSyncProducts,
		JobTypeProcessWebhooks,
		JobTypeSchedulerTick,
	}
}

// IsValid returns true if the job type is known
func (t JobType) IsValid() bool {
	switch t {
	case JobTypeSyncOrders, JobTypeSyncProducts, JobTypeProcessWebhooks, JobTypeSchedulerTick:
		return true
	default:
		return false
	}
}

// String returns the string representation of JobType
func (t JobType) String() string {
	return string(t)
}

// SyncJobType returns the sync job type of an entity type
func SyncJobType(entityType integration.EntityType) (JobType, error) {
	switch entityType {
	case integration.EntityTypeOrders:
		return JobTypeSyncOrders, nil
	case integration.EntityTypeProducts:
		return JobTypeSyncProducts, nil
	default:
		return "", integration.ErrInvalidEntityType
	}
}

// EntityType returns the entity type a sync job pulls
func (t JobType) EntityType() (integration.EntityType, bool) {
	switch t {
	case JobTypeSyncOrders:
		return integration.EntityTypeOrders, true
	case JobTypeSyncProducts:
		return integration.EntityTypeProducts, true
	default:
		return "", false
	}
}

// Job is one unit of work for the worker pool.
// ID is derived from the content, so two jobs for the same (type, store)
// share an identity and the queue holds at most one of them.
type Job struct {
	ID         string    `json:"id"`
	Type       JobType   `json:"type"`
	StoreID    uuid.UUID `json:"store_id,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	// Token distinguishes enqueues of the same identity on shared backends
	Token string `json:"token,omitempty"`
}

// JobID returns the deterministic identity of a job
func JobID(jobType JobType, storeID uuid.UUID) string {
	if storeID == uuid.Nil {
		return jobType.String()
	}
	return jobType.String() + ":" + storeID.String()
}

// NewSyncJob creates the sync job of (store, entity type)
func NewSyncJob(storeID uuid.UUID, entityType integration.EntityType) (*Job, error) {
	jobType, err := SyncJobType(entityType)
	if err != nil {
		return nil, err
	}
	if storeID == uuid.Nil {
		return nil, fmt.Errorf("%w: sync job without store", ErrInvalidJob)
	}
	return &Job{ID: JobID(jobType, storeID), Type: jobType, StoreID: storeID}, nil
}

// NewWebhookJob creates the webhook drain job
func NewWebhookJob() *Job {
	return &Job{ID: JobID(JobTypeProcessWebhooks, uuid.Nil), Type: JobTypeProcessWebhooks}
}

// NewTickJob creates the store discovery job
func NewTickJob() *Job {
	return &Job{ID: JobID(JobTypeSchedulerTick, uuid.Nil), Type: JobTypeSchedulerTick}
}

// Validate checks that the job carries what its type needs
func (j *Job) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidJob)
	}
	if _, isSync := j.Type.EntityType(); isSync && j.StoreID == uuid.Nil {
		return fmt.Errorf("%w: %s without store", ErrInvalidJob, j.Type)
	}
	return nil
}

func encodeJob(j *Job) ([]byte, error) {
	return json.Marshal(j)
}

func decodeJob(b []byte) (*Job, error) {
	var j Job
	if err := json.Unmarshal(b, &j); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}
	return &j, nil
}

package scheduler

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/commercesync/internal/domain/integration"
)

func TestJobID_IsDeterministic(t *testing.T) {
	storeID := uuid.MustParse("7d4f2a3e-3e1b-4c1a-9b0e-1f2a3b4c5d6e")

	a, err := NewSyncJob(storeID, integration.EntityTypeOrders)
	require.NoError(t, err)
	b, err := NewSyncJob(storeID, integration.EntityTypeOrders)
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, "sync-orders:7d4f2a3e-3e1b-4c1a-9b0e-1f2a3b4c5d6e", a.ID)
	assert.Equal(t, "process-webhooks", NewWebhookJob().ID)
	assert.Equal(t, "scheduler-tick", NewTickJob().ID)
}

func TestNewSyncJob_Errors(t *testing.T) {
	_, err := NewSyncJob(uuid.New(), integration.EntityType("customers"))
	assert.ErrorIs(t, err, integration.ErrInvalidEntityType)

	_, err = NewSyncJob(uuid.Nil, integration.EntityTypeProducts)
	assert.ErrorIs(t, err, ErrInvalidJob)
}

func TestJobType_EntityType(t *testing.T) {
	tests := []struct {
		jobType JobType
		want    integration.EntityType
		isSync  bool
	}{
		{JobTypeSyncOrders, integration.EntityTypeOrders, true},
		{JobTypeSyncProducts, integration.EntityTypeProducts, true},
		{JobTypeProcessWebhooks, "", false},
		{JobTypeSchedulerTick, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.jobType.String(), func(t *testing.T) {
			got, ok := tt.jobType.EntityType()
			assert.Equal(t, tt.isSync, ok)
			assert.Equal(t, tt.want, got)
			assert.True(t, tt.jobType.IsValid())
		})
	}
	assert.False(t, JobType("send-email").IsValid())
}

func TestJobCodec(t *testing.T) {
	job, err := NewSyncJob(uuid.New(), integration.EntityTypeProducts)
	require.NoError(t, err)

	b, err := encodeJob(job)
	require.NoError(t, err)
	decoded, err := decodeJob(b)
	require.NoError(t, err)
	assert.Equal(t, job.ID, decoded.ID)
	assert.Equal(t, job.StoreID, decoded.StoreID)

	_, err = decodeJob([]byte("{"))
	assert.ErrorIs(t, err, ErrInvalidJob)
}

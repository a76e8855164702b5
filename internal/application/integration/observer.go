package integration

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/erp/commercesync/internal/domain/integration"
)

// Observer receives the sync signals emitted by the application services
type Observer interface {
	// RecordSyncLag reports how far the watermark trails the scan start
	RecordSyncLag(ctx context.Context, storeID uuid.UUID, entityType integration.EntityType, lag time.Duration)

	// RecordRecords reports how many records a sync run reconciled
	RecordRecords(ctx context.Context, entityType integration.EntityType, count int)

	// RecordWebhookEvent reports the terminal status given to one webhook event
	RecordWebhookEvent(ctx context.Context, topic string, status integration.WebhookStatus)
}

// NopObserver discards every signal
type NopObserver struct{}

// RecordSyncLag implements Observer
func (NopObserver) RecordSyncLag(context.Context, uuid.UUID, integration.EntityType, time.Duration) {}

// RecordRecords implements Observer
func (NopObserver) RecordRecords(context.Context, integration.EntityType, int) {}

// RecordWebhookEvent implements Observer
func (NopObserver) RecordWebhookEvent(context.Context, string, integration.WebhookStatus) {}

var _ Observer = NopObserver{}

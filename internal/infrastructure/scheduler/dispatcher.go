package scheduler

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appintegration "github.com/erp/commercesync/internal/application/integration"
	"github.com/erp/commercesync/internal/domain/integration"
	"github.com/erp/commercesync/internal/infrastructure/logger"
)

// StoreSyncer runs one incremental sync of a store
type StoreSyncer interface {
	Sync(ctx context.Context, storeID uuid.UUID, entityType integration.EntityType) (*appintegration.SyncResult, error)
}

// WebhookDrainer processes one batch of received webhook events
type WebhookDrainer interface {
	ProcessBatch(ctx context.Context) (*appintegration.WebhookBatchResult, error)
}

// StoreDiscovery reconciles the recurring schedules with the active stores
type StoreDiscovery interface {
	Discover(ctx context.Context) error
}

// Dispatcher routes a job to the service that executes its type
type Dispatcher struct {
	syncer    StoreSyncer
	webhooks  WebhookDrainer
	discovery StoreDiscovery
	logger    *zap.Logger
}

// NewDispatcher creates a new Dispatcher
func NewDispatcher(syncer StoreSyncer, webhooks WebhookDrainer, discovery StoreDiscovery, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		syncer:    syncer,
		webhooks:  webhooks,
		discovery: discovery,
		logger:    logger,
	}
}

// Handle implements JobHandler
func (d *Dispatcher) Handle(ctx context.Context, job *Job) error {
	switch job.Type {
	case JobTypeSyncOrders, JobTypeSyncProducts:
		entityType, _ := job.Type.EntityType()
		result, err := d.syncer.Sync(ctx, job.StoreID, entityType)
		if err != nil {
			return err
		}
		logger.FromContext(ctx, d.logger).Debug("Store sync finished",
			zap.Int("pages", result.Pages),
			zap.Int("records", result.Records),
			zap.Bool("watermark_advanced", result.Advanced),
			zap.Bool("skipped", result.Skipped),
		)
		return nil

	case JobTypeProcessWebhooks:
		result, err := d.webhooks.ProcessBatch(ctx)
		if err != nil {
			return err
		}
		logger.FromContext(ctx, d.logger).Debug("Webhook batch finished",
			zap.Int("fetched", result.Fetched),
			zap.Int("processed", result.Processed),
			zap.Int("failed", result.Failed),
			zap.Int("ignored", result.Ignored),
			zap.Int("skipped", result.Skipped),
		)
		return nil

	case JobTypeSchedulerTick:
		return d.discovery.Discover(ctx)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownJobType, job.Type)
	}
}

var _ JobHandler = (*Dispatcher)(nil)

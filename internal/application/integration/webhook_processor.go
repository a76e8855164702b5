package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/erp/commercesync/internal/domain/integration"
)

// DefaultWebhookBatchSize is the number of events drained per tick
const DefaultWebhookBatchSize = 50

// WebhookConfig holds the drain settings of the webhook processor
type WebhookConfig struct {
	Provider  string
	BatchSize int
}

// DefaultWebhookConfig returns the default drain settings
func DefaultWebhookConfig() WebhookConfig {
	return WebhookConfig{
		Provider:  integration.ProviderWooCommerce,
		BatchSize: DefaultWebhookBatchSize,
	}
}

// WebhookBatchResult summarizes one drain tick
type WebhookBatchResult struct {
	Fetched   int
	Processed int
	Failed    int
	// Ignored events have a topic no reconciler handles; they stay received.
	// The drain query already filters them, so this only counts races.
	Ignored int
	// Skipped events were no longer received when their outcome was recorded
	Skipped int
}

// WebhookProcessor drains received webhook events into the reconciler.
// Each event moves received -> processed or received -> failed; failed
// events are never picked up again.
type WebhookProcessor struct {
	events     integration.WebhookEventRepository
	stores     integration.StoreRepository
	reconciler *Reconciler
	validator  *PayloadValidator
	observer   Observer
	config     WebhookConfig
	logger     *zap.Logger
	now        func() time.Time
}

// NewWebhookProcessor creates a new WebhookProcessor
func NewWebhookProcessor(
	events integration.WebhookEventRepository,
	stores integration.StoreRepository,
	reconciler *Reconciler,
	validator *PayloadValidator,
	cfg WebhookConfig,
	logger *zap.Logger,
) *WebhookProcessor {
	if cfg.Provider == "" {
		cfg.Provider = integration.ProviderWooCommerce
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultWebhookBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookProcessor{
		events:     events,
		stores:     stores,
		reconciler: reconciler,
		validator:  validator,
		observer:   NopObserver{},
		config:     cfg,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetObserver sets the sink for per-event outcome signals
func (p *WebhookProcessor) SetObserver(o Observer) {
	if o != nil {
		p.observer = o
	}
}

// SetClock replaces the time source, for tests
func (p *WebhookProcessor) SetClock(now func() time.Time) {
	p.now = now
}

// ProcessBatch drains up to BatchSize oldest received events in creation
// order. A failing event is marked failed and the batch continues; only a
// failure to read the batch is returned.
func (p *WebhookProcessor) ProcessBatch(ctx context.Context) (*WebhookBatchResult, error) {
	events, err := p.events.FindReceived(ctx, p.config.Provider, integration.HandledTopicPrefixes(), p.config.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("load received webhook events: %w", err)
	}

	result := &WebhookBatchResult{Fetched: len(events)}
	for _, event := range events {
		kind := event.Kind()
		if kind == integration.TopicKindUnknown {
			result.Ignored++
			p.logger.Debug("Ignoring webhook event with unhandled topic",
				zap.String("event_id", event.ID.String()),
				zap.String("topic", event.Topic),
			)
			continue
		}

		cause := p.reconcile(ctx, event, kind)
		var markErr error
		if cause != nil {
			markErr = event.MarkFailed(cause, p.now())
		} else {
			markErr = event.MarkProcessed(p.now())
		}
		if markErr != nil {
			// Another drainer settled the event after it was read
			result.Skipped++
			p.logger.Error("Webhook event left the received state during processing",
				zap.String("event_id", event.ID.String()),
				zap.String("status", event.Status.String()),
				zap.Error(markErr),
			)
			continue
		}

		if err := p.events.Update(ctx, event); err != nil {
			p.logger.Error("Failed to persist webhook event status",
				zap.String("event_id", event.ID.String()),
				zap.String("status", event.Status.String()),
				zap.Error(err),
			)
			continue
		}

		p.observer.RecordWebhookEvent(ctx, event.Topic, event.Status)
		if cause != nil {
			result.Failed++
			p.logger.Warn("Webhook event failed",
				zap.String("event_id", event.ID.String()),
				zap.String("topic", event.Topic),
				zap.String("store_id", event.StoreID.String()),
				zap.Error(cause),
			)
			continue
		}
		result.Processed++
	}

	if result.Fetched > 0 {
		p.logger.Info("Webhook batch drained",
			zap.Int("fetched", result.Fetched),
			zap.Int("processed", result.Processed),
			zap.Int("failed", result.Failed),
			zap.Int("ignored", result.Ignored),
		)
	}
	return result, nil
}

func (p *WebhookProcessor) reconcile(ctx context.Context, event *integration.WebhookEvent, kind integration.TopicKind) error {
	store, err := p.stores.FindByID(ctx, event.StoreID)
	if err != nil {
		return fmt.Errorf("resolve store %s: %w", event.StoreID, err)
	}

	switch kind {
	case integration.TopicKindOrder:
		if p.validator != nil {
			if err := p.validator.ValidateOrder(event.Payload); err != nil {
				return err
			}
		}
		var ext integration.ExternalOrder
		if err := json.Unmarshal(event.Payload, &ext); err != nil {
			return fmt.Errorf("%w: %v", integration.ErrInvalidPayload, err)
		}
		_, err = p.reconciler.ReconcileOrder(ctx, store, &ext)
		return err

	case integration.TopicKindProduct:
		if p.validator != nil {
			if err := p.validator.ValidateProduct(event.Payload); err != nil {
				return err
			}
		}
		var ext integration.ExternalProduct
		if err := json.Unmarshal(event.Payload, &ext); err != nil {
			return fmt.Errorf("%w: %v", integration.ErrInvalidPayload, err)
		}
		_, err = p.reconciler.ReconcileProduct(ctx, store, &ext)
		return err

	default:
		return fmt.Errorf("unhandled topic %q", event.Topic)
	}
}

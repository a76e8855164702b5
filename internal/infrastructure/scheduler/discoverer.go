package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/erp/commercesync/internal/domain/integration"
)

// ActiveStoreFinder lists the stores that should be synced
type ActiveStoreFinder interface {
	FindActive(ctx context.Context) ([]*integration.Store, error)
}

// CadenceConfig holds the recurring intervals per job type
type CadenceConfig struct {
	OrderSyncInterval   time.Duration
	ProductSyncInterval time.Duration
	WebhookInterval     time.Duration
	DiscoveryInterval   time.Duration
}

// DefaultCadenceConfig returns the default cadence
func DefaultCadenceConfig() CadenceConfig {
	return CadenceConfig{
		OrderSyncInterval:   10 * time.Minute,
		ProductSyncInterval: 30 * time.Minute,
		WebhookInterval:     time.Minute,
		DiscoveryInterval:   5 * time.Minute,
	}
}

// Validate validates the cadence configuration
func (c CadenceConfig) Validate() error {
	if c.OrderSyncInterval <= 0 || c.ProductSyncInterval <= 0 || c.WebhookInterval <= 0 || c.DiscoveryInterval <= 0 {
		return fmt.Errorf("%w: cadence intervals must be positive", ErrInvalidConfig)
	}
	return nil
}

// interval returns the cadence of a sync entity type
func (c CadenceConfig) interval(entityType integration.EntityType) time.Duration {
	if entityType == integration.EntityTypeProducts {
		return c.ProductSyncInterval
	}
	return c.OrderSyncInterval
}

// StoreDiscoverer keeps one recurring sync job per active store and entity
// type registered, and drops the jobs of stores that are no longer active
type StoreDiscoverer struct {
	stores    ActiveStoreFinder
	scheduler *Scheduler
	cadence   CadenceConfig
	logger    *zap.Logger
}

// NewStoreDiscoverer creates a new StoreDiscoverer
func NewStoreDiscoverer(stores ActiveStoreFinder, scheduler *Scheduler, cadence CadenceConfig, logger *zap.Logger) (*StoreDiscoverer, error) {
	if err := cadence.Validate(); err != nil {
		return nil, err
	}
	return &StoreDiscoverer{
		stores:    stores,
		scheduler: scheduler,
		cadence:   cadence,
		logger:    logger,
	}, nil
}

// Bootstrap registers the global jobs and runs a first discovery
func (d *StoreDiscoverer) Bootstrap(ctx context.Context) error {
	if _, err := d.scheduler.Register(NewWebhookJob(), d.cadence.WebhookInterval); err != nil {
		return fmt.Errorf("register webhook job: %w", err)
	}
	if _, err := d.scheduler.Register(NewTickJob(), d.cadence.DiscoveryInterval); err != nil {
		return fmt.Errorf("register discovery job: %w", err)
	}
	return d.Discover(ctx)
}

// Discover implements StoreDiscovery
func (d *StoreDiscoverer) Discover(ctx context.Context) error {
	stores, err := d.stores.FindActive(ctx)
	if err != nil {
		return fmt.Errorf("load active stores: %w", err)
	}

	wanted := make(map[string]struct{}, len(stores)*len(integration.AllEntityTypes()))
	registered := 0
	for _, store := range stores {
		for _, entityType := range integration.AllEntityTypes() {
			job, err := NewSyncJob(store.ID, entityType)
			if err != nil {
				return err
			}
			wanted[job.ID] = struct{}{}

			added, err := d.scheduler.Register(job, d.cadence.interval(entityType))
			if err != nil {
				return fmt.Errorf("register %s: %w", job.ID, err)
			}
			if added {
				registered++
			}
		}
	}

	removed := 0
	for _, info := range d.scheduler.List() {
		if _, isSync := info.Type.EntityType(); !isSync {
			continue
		}
		if _, ok := wanted[info.ID]; ok {
			continue
		}
		if d.scheduler.Unregister(info.ID) {
			removed++
		}
	}

	d.logger.Info("Store discovery finished",
		zap.Int("active_stores", len(stores)),
		zap.Int("registered", registered),
		zap.Int("unregistered", removed),
	)
	return nil
}

var _ StoreDiscovery = (*StoreDiscoverer)(nil)

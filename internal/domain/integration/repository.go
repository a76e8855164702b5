package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StoreRepository persists stores and their sync watermarks
type StoreRepository interface {
	// FindByID returns the store with its watermarks loaded
	FindByID(ctx context.Context, id uuid.UUID) (*Store, error)

	// FindActive returns every active store
	FindActive(ctx context.Context) ([]*Store, error)

	// Save creates or updates the store row. Watermarks are ignored.
	Save(ctx context.Context, store *Store) error

	// AdvanceWatermark moves the watermark of (store, entityType) to ts in a
	// single conditional write. It never moves a watermark backwards and
	// reports whether the stored value changed.
	AdvanceWatermark(ctx context.Context, storeID uuid.UUID, entityType EntityType, ts time.Time) (bool, error)
}

// OrderRepository persists mirrored orders
type OrderRepository interface {
	// FindByExternalNo looks an order up by its natural key, items included
	FindByExternalNo(ctx context.Context, tenantID uuid.UUID, externalOrderNo string) (*Order, error)

	// Upsert writes the order row by natural key and replaces its item set.
	// The row write, the item delete and the item insert form one transaction.
	// On return order.ID holds the id of the persisted row.
	Upsert(ctx context.Context, order *Order) error

	// CountByTenant returns the number of orders of a tenant
	CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// ProductRepository persists mirrored products
type ProductRepository interface {
	// FindBySKU looks a product up by its natural key
	FindBySKU(ctx context.Context, tenantID uuid.UUID, sku string) (*Product, error)

	// Upsert writes the product row by natural key.
	// On return product.ID holds the id of the persisted row.
	Upsert(ctx context.Context, product *Product) error

	// CountByTenant returns the number of products of a tenant
	CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// WebhookEventRepository persists inbound webhook events
type WebhookEventRepository interface {
	// Create appends a new event
	Create(ctx context.Context, event *WebhookEvent) error

	// FindByID returns one event
	FindByID(ctx context.Context, id uuid.UUID) (*WebhookEvent, error)

	// FindReceived returns up to limit received events of a provider whose
	// topic starts with one of topicPrefixes, oldest first. No prefixes
	// means every topic.
	FindReceived(ctx context.Context, provider string, topicPrefixes []string, limit int) ([]*WebhookEvent, error)

	// Update persists the state-machine fields of an event
	Update(ctx context.Context, event *WebhookEvent) error

	// CountByStatus returns the number of events per status
	CountByStatus(ctx context.Context) (map[WebhookStatus]int64, error)
}

package integration

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/erp/commercesync/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// In-memory repositories
// ---------------------------------------------------------------------------

type memoryStoreRepo struct {
	mu         sync.Mutex
	stores     map[uuid.UUID]*integration.Store
	advanceErr error
}

func newMemoryStoreRepo(stores ...*integration.Store) *memoryStoreRepo {
	r := &memoryStoreRepo{stores: make(map[uuid.UUID]*integration.Store)}
	for _, s := range stores {
		r.stores[s.ID] = s
	}
	return r
}

func (r *memoryStoreRepo) FindByID(_ context.Context, id uuid.UUID) (*integration.Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[id]
	if !ok {
		return nil, integration.ErrStoreNotFound
	}
	cp := *s
	cp.LastSync = make(integration.Watermarks, len(s.LastSync))
	for k, v := range s.LastSync {
		cp.LastSync[k] = v
	}
	return &cp, nil
}

func (r *memoryStoreRepo) FindActive(_ context.Context) ([]*integration.Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*integration.Store
	for _, s := range r.stores {
		if s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memoryStoreRepo) Save(_ context.Context, store *integration.Store) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[store.ID] = store
	return nil
}

func (r *memoryStoreRepo) AdvanceWatermark(_ context.Context, storeID uuid.UUID, entityType integration.EntityType, ts time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.advanceErr != nil {
		return false, r.advanceErr
	}
	s, ok := r.stores[storeID]
	if !ok {
		return false, integration.ErrStoreNotFound
	}
	return s.SetWatermark(entityType, ts), nil
}

func (r *memoryStoreRepo) watermark(storeID uuid.UUID, entityType integration.EntityType) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ts, ok := r.stores[storeID].LastSync[entityType]
	return ts, ok
}

type orderKey struct {
	tenantID uuid.UUID
	orderNo  string
}

type memoryOrderRepo struct {
	mu        sync.Mutex
	orders    map[orderKey]*integration.Order
	upsertErr error
}

func newMemoryOrderRepo() *memoryOrderRepo {
	return &memoryOrderRepo{orders: make(map[orderKey]*integration.Order)}
}

func cloneOrder(o *integration.Order) *integration.Order {
	cp := *o
	cp.Items = append([]integration.OrderItem(nil), o.Items...)
	return &cp
}

func (r *memoryOrderRepo) FindByExternalNo(_ context.Context, tenantID uuid.UUID, externalOrderNo string) (*integration.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderKey{tenantID, externalOrderNo}]
	if !ok {
		return nil, integration.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (r *memoryOrderRepo) Upsert(_ context.Context, order *integration.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upsertErr != nil {
		return r.upsertErr
	}
	key := orderKey{order.TenantID, order.ExternalOrderNo}
	if existing, ok := r.orders[key]; ok {
		order.ID = existing.ID
		order.CreatedAt = existing.CreatedAt
	}
	order.BindItems()
	r.orders[key] = cloneOrder(order)
	return nil
}

func (r *memoryOrderRepo) CountByTenant(_ context.Context, tenantID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k := range r.orders {
		if k.tenantID == tenantID {
			n++
		}
	}
	return n, nil
}

type memoryProductRepo struct {
	mu       sync.Mutex
	products map[orderKey]*integration.Product
}

func newMemoryProductRepo() *memoryProductRepo {
	return &memoryProductRepo{products: make(map[orderKey]*integration.Product)}
}

func (r *memoryProductRepo) FindBySKU(_ context.Context, tenantID uuid.UUID, sku string) (*integration.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[orderKey{tenantID, sku}]
	if !ok {
		return nil, integration.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memoryProductRepo) Upsert(_ context.Context, product *integration.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := orderKey{product.TenantID, product.SKU}
	if existing, ok := r.products[key]; ok {
		product.ID = existing.ID
		product.CreatedAt = existing.CreatedAt
	}
	cp := *product
	r.products[key] = &cp
	return nil
}

func (r *memoryProductRepo) CountByTenant(_ context.Context, tenantID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k := range r.products {
		if k.tenantID == tenantID {
			n++
		}
	}
	return n, nil
}

type memoryWebhookRepo struct {
	mu     sync.Mutex
	events map[uuid.UUID]*integration.WebhookEvent
}

func newMemoryWebhookRepo(events ...*integration.WebhookEvent) *memoryWebhookRepo {
	r := &memoryWebhookRepo{events: make(map[uuid.UUID]*integration.WebhookEvent)}
	for _, e := range events {
		r.events[e.ID] = e
	}
	return r
}

func (r *memoryWebhookRepo) Create(_ context.Context, event *integration.WebhookEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *event
	r.events[event.ID] = &cp
	return nil
}

func (r *memoryWebhookRepo) FindByID(_ context.Context, id uuid.UUID) (*integration.WebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return nil, integration.ErrWebhookEventNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *memoryWebhookRepo) FindReceived(_ context.Context, provider string, topicPrefixes []string, limit int) ([]*integration.WebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*integration.WebhookEvent
	for _, e := range r.events {
		if e.Provider != provider || e.Status != integration.WebhookStatusReceived {
			continue
		}
		if len(topicPrefixes) > 0 && !hasAnyPrefix(e.Topic, topicPrefixes) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func (r *memoryWebhookRepo) Update(_ context.Context, event *integration.WebhookEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.events[event.ID]
	if !ok || cur.Status != integration.WebhookStatusReceived {
		return integration.ErrInvalidEventState
	}
	cp := *event
	r.events[event.ID] = &cp
	return nil
}

func (r *memoryWebhookRepo) CountByStatus(_ context.Context) (map[integration.WebhookStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[integration.WebhookStatus]int64)
	for _, e := range r.events {
		out[e.Status]++
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Platform mock
// ---------------------------------------------------------------------------

type mockPlatform struct {
	mock.Mock
}

func (m *mockPlatform) ListOrders(ctx context.Context, store *integration.Store, req integration.PageRequest) ([]integration.ExternalOrder, error) {
	args := m.Called(ctx, store, req)
	if v := args.Get(0); v != nil {
		return v.([]integration.ExternalOrder), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPlatform) ListProducts(ctx context.Context, store *integration.Store, req integration.PageRequest) ([]integration.ExternalProduct, error) {
	args := m.Called(ctx, store, req)
	if v := args.Get(0); v != nil {
		return v.([]integration.ExternalProduct), args.Error(1)
	}
	return nil, args.Error(1)
}

func page(n int) any {
	return mock.MatchedBy(func(req integration.PageRequest) bool { return req.Page == n })
}

// ---------------------------------------------------------------------------
// Recording observer
// ---------------------------------------------------------------------------

type recordingObserver struct {
	mu       sync.Mutex
	lags     []time.Duration
	records  int
	statuses map[integration.WebhookStatus]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{statuses: make(map[integration.WebhookStatus]int)}
}

func (o *recordingObserver) RecordSyncLag(_ context.Context, _ uuid.UUID, _ integration.EntityType, lag time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lags = append(o.lags, lag)
}

func (o *recordingObserver) RecordRecords(_ context.Context, _ integration.EntityType, count int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records += count
}

func (o *recordingObserver) RecordWebhookEvent(_ context.Context, _ string, status integration.WebhookStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses[status]++
}

var (
	_ integration.StoreRepository        = (*memoryStoreRepo)(nil)
	_ integration.OrderRepository        = (*memoryOrderRepo)(nil)
	_ integration.ProductRepository      = (*memoryProductRepo)(nil)
	_ integration.WebhookEventRepository = (*memoryWebhookRepo)(nil)
	_ integration.CommercePlatform       = (*mockPlatform)(nil)
	_ Observer                           = (*recordingObserver)(nil)
)

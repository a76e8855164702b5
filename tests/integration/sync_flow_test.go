package integration

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appintegration "github.com/erp/commercesync/internal/application/integration"
	"github.com/erp/commercesync/internal/domain/integration"
	"github.com/erp/commercesync/internal/infrastructure/ecommerce"
	"github.com/erp/commercesync/internal/infrastructure/persistence"
)

func TestMain(m *testing.M) {
	code := m.Run()
	CleanupSharedContainer()
	os.Exit(code)
}

// fakeShop serves the orders and products collections of one store. Every
// record is returned on page 1; later pages are empty.
type fakeShop struct {
	mu       sync.Mutex
	orders   []map[string]any
	products []map[string]any
	fail     bool
	queries  []string
}

func (s *fakeShop) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queries = append(s.queries, r.URL.RawQuery)
	if s.fail {
		http.Error(w, `{"code":"internal_error"}`, http.StatusInternalServerError)
		return
	}

	var records []map[string]any
	switch r.URL.Path {
	case "/wp-json/wc/v3/orders":
		records = s.orders
	case "/wp-json/wc/v3/products":
		records = s.products
	default:
		http.NotFound(w, r)
		return
	}
	if page, _ := strconv.Atoi(r.URL.Query().Get("page")); page > 1 {
		records = nil
	}
	if records == nil {
		records = []map[string]any{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(records)
}

func (s *fakeShop) set(fn func(s *fakeShop)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func (s *fakeShop) lastModifiedAfter(t *testing.T) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.queries)
	for i := len(s.queries) - 1; i >= 0; i-- {
		q, err := url.ParseQuery(s.queries[i])
		require.NoError(t, err)
		if q.Get("page") == "1" {
			return q.Get("modified_after")
		}
	}
	return ""
}

type syncEnv struct {
	db       *TestDB
	shop     *fakeShop
	store    *integration.Store
	stores   *persistence.GormStoreRepository
	orders   *persistence.GormOrderRepository
	products *persistence.GormProductRepository
	events   *persistence.GormWebhookEventRepository
	sync     *appintegration.SyncService
	webhooks *appintegration.WebhookProcessor
}

func newSyncEnv(t *testing.T) *syncEnv {
	t.Helper()
	tdb := NewSharedTestDB(t)

	shop := &fakeShop{}
	server := httptest.NewServer(shop)
	t.Cleanup(server.Close)

	env := &syncEnv{
		db:       tdb,
		shop:     shop,
		stores:   persistence.NewGormStoreRepository(tdb.DB),
		orders:   persistence.NewGormOrderRepository(tdb.DB),
		products: persistence.NewGormProductRepository(tdb.DB),
		events:   persistence.NewGormWebhookEventRepository(tdb.DB),
	}

	env.store = &integration.Store{
		TenantID:   uuid.New(),
		Name:       gofakeit.Company(),
		BaseURL:    server.URL,
		APIVersion: "v3",
		Credentials: integration.Credentials{
			ConsumerKey:    "ck_" + gofakeit.LetterN(16),
			ConsumerSecret: "cs_" + gofakeit.LetterN(16),
		},
		Active: true,
	}
	require.NoError(t, env.stores.Save(context.Background(), env.store))

	client, err := ecommerce.NewRESTClient(ecommerce.DefaultRESTConfig(), zap.NewNop())
	require.NoError(t, err)

	reconciler := appintegration.NewReconciler(env.orders, env.products)
	env.sync = appintegration.NewSyncService(env.stores, client, reconciler,
		appintegration.SyncConfig{PageSize: 50, InitialLookback: 24 * time.Hour}, zap.NewNop())

	validator, err := appintegration.NewPayloadValidator()
	require.NoError(t, err)
	env.webhooks = appintegration.NewWebhookProcessor(env.events, env.stores, reconciler, validator,
		appintegration.WebhookConfig{Provider: "woocommerce", BatchSize: 50}, zap.NewNop())
	return env
}

func order1001(items ...map[string]any) map[string]any {
	return map[string]any{
		"id":                1501,
		"number":            "1001",
		"status":            "processing",
		"currency":          "usd",
		"total":             "59.80",
		"payment_method":    "stripe",
		"date_created_gmt":  "2026-03-01T10:00:00",
		"date_paid_gmt":     "2026-03-01T10:05:00",
		"date_modified_gmt": "2026-03-01T10:05:00",
		"billing": map[string]any{
			"first_name": gofakeit.FirstName(),
			"email":      gofakeit.Email(),
			"phone":      gofakeit.Phone(),
		},
		"line_items": items,
	}
}

func lineItem(id int64, sku string, qty int, price string) map[string]any {
	return map[string]any{
		"id":         id,
		"product_id": id + 100,
		"name":       gofakeit.ProductName(),
		"sku":        sku,
		"quantity":   qty,
		"price":      price,
		"total":      price,
	}
}

func TestOrderSync_ReplayIsIdempotent(t *testing.T) {
	env := newSyncEnv(t)
	ctx := context.Background()

	env.shop.set(func(s *fakeShop) {
		s.orders = []map[string]any{order1001(
			lineItem(1, "TSHIRT-M", 2, "19.90"),
			lineItem(2, "MUG", 1, "20.00"),
		)}
	})

	result, err := env.sync.Sync(ctx, env.store.ID, integration.EntityTypeOrders)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Records)
	assert.True(t, result.Advanced)

	first, err := env.orders.FindByExternalNo(ctx, env.store.TenantID, "1001")
	require.NoError(t, err)
	assert.Equal(t, integration.OrderStatusConfirmed, first.MappedStatus)
	assert.Equal(t, "USD", first.Currency)
	assert.Equal(t, "59.8", first.Total.String())
	assert.Equal(t, time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC), first.ConfirmedAt.UTC())

	items, err := env.orders.CountItems(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), items)

	// The platform returns the same order again on the next scan
	_, err = env.sync.Sync(ctx, env.store.ID, integration.EntityTypeOrders)
	require.NoError(t, err)

	second, err := env.orders.FindByExternalNo(ctx, env.store.TenantID, "1001")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	count, err := env.orders.CountByTenant(ctx, env.store.TenantID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	items, err = env.orders.CountItems(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), items)
}

func TestOrderSync_ItemSetIsReplaced(t *testing.T) {
	env := newSyncEnv(t)
	ctx := context.Background()

	env.shop.set(func(s *fakeShop) {
		s.orders = []map[string]any{order1001(
			lineItem(1, "TSHIRT-M", 2, "19.90"),
			lineItem(2, "MUG", 1, "20.00"),
		)}
	})
	_, err := env.sync.Sync(ctx, env.store.ID, integration.EntityTypeOrders)
	require.NoError(t, err)

	env.shop.set(func(s *fakeShop) {
		o := order1001(lineItem(3, "POSTER", 1, "9.00"))
		o["status"] = "refunded"
		s.orders = []map[string]any{o}
	})
	_, err = env.sync.Sync(ctx, env.store.ID, integration.EntityTypeOrders)
	require.NoError(t, err)

	order, err := env.orders.FindByExternalNo(ctx, env.store.TenantID, "1001")
	require.NoError(t, err)
	assert.Equal(t, "refunded", order.Status)
	assert.Equal(t, integration.OrderStatusRefunded, order.MappedStatus)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "POSTER", order.Items[0].SKU)
}

func TestOrderSync_SameNumberAcrossStoresOfTenant(t *testing.T) {
	env := newSyncEnv(t)
	ctx := context.Background()

	env.shop.set(func(s *fakeShop) {
		s.orders = []map[string]any{order1001(lineItem(1, "MUG", 1, "20.00"))}
	})

	other := *env.store
	other.ID = uuid.Nil
	other.LastSync = nil
	require.NoError(t, env.stores.Save(ctx, &other))

	_, err := env.sync.Sync(ctx, env.store.ID, integration.EntityTypeOrders)
	require.NoError(t, err)
	_, err = env.sync.Sync(ctx, other.ID, integration.EntityTypeOrders)
	require.NoError(t, err)

	count, err := env.orders.CountByTenant(ctx, env.store.TenantID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "natural key is (tenant, order number)")
}

func TestSync_WatermarkMovesOnlyOnSuccess(t *testing.T) {
	env := newSyncEnv(t)
	ctx := context.Background()

	env.shop.set(func(s *fakeShop) { s.fail = true })
	_, err := env.sync.Sync(ctx, env.store.ID, integration.EntityTypeOrders)
	require.Error(t, err)
	assert.True(t, errors.Is(err, integration.ErrPlatformRequestFailed), "got %v", err)

	store, err := env.stores.FindByID(ctx, env.store.ID)
	require.NoError(t, err)
	assert.False(t, store.HasWatermark(integration.EntityTypeOrders))

	env.shop.set(func(s *fakeShop) { s.fail = false })
	result, err := env.sync.Sync(ctx, env.store.ID, integration.EntityTypeOrders)
	require.NoError(t, err)
	require.True(t, result.Advanced)

	store, err = env.stores.FindByID(ctx, env.store.ID)
	require.NoError(t, err)
	watermark := store.LastSync[integration.EntityTypeOrders]
	assert.WithinDuration(t, result.ScanStartedAt, watermark, time.Millisecond)
	assert.False(t, store.HasWatermark(integration.EntityTypeProducts), "watermarks are per entity type")

	// The next scan starts where the last one began
	_, err = env.sync.Sync(ctx, env.store.ID, integration.EntityTypeOrders)
	require.NoError(t, err)
	assert.Equal(t, watermark.UTC().Format("2006-01-02T15:04:05"), env.shop.lastModifiedAfter(t))
}

func TestSync_WatermarkNeverMovesBackwards(t *testing.T) {
	env := newSyncEnv(t)
	ctx := context.Background()

	future := time.Now().UTC().Add(time.Hour).Truncate(time.Microsecond)
	advanced, err := env.stores.AdvanceWatermark(ctx, env.store.ID, integration.EntityTypeProducts, future)
	require.NoError(t, err)
	require.True(t, advanced)

	result, err := env.sync.Sync(ctx, env.store.ID, integration.EntityTypeProducts)
	require.NoError(t, err)
	assert.False(t, result.Advanced)

	store, err := env.stores.FindByID(ctx, env.store.ID)
	require.NoError(t, err)
	assert.True(t, future.Equal(store.LastSync[integration.EntityTypeProducts]))
}

func TestSync_InactiveStoreIsSkipped(t *testing.T) {
	env := newSyncEnv(t)
	ctx := context.Background()

	env.store.Active = false
	require.NoError(t, env.stores.Save(ctx, env.store))
	env.shop.set(func(s *fakeShop) {
		s.orders = []map[string]any{order1001(lineItem(1, "MUG", 1, "20.00"))}
	})

	result, err := env.sync.Sync(ctx, env.store.ID, integration.EntityTypeOrders)
	require.NoError(t, err)
	assert.True(t, result.Skipped)

	env.shop.mu.Lock()
	assert.Empty(t, env.shop.queries, "an inactive store is never contacted")
	env.shop.mu.Unlock()

	count, err := env.orders.CountByTenant(ctx, env.store.TenantID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestProductSync_UpsertsBySKU(t *testing.T) {
	env := newSyncEnv(t)
	ctx := context.Background()

	stock := 12
	env.shop.set(func(s *fakeShop) {
		s.products = []map[string]any{
			{
				"id": 11, "name": "Mug", "sku": "MUG", "price": "20.00", "status": "publish",
				"stock_quantity": stock,
				"images":         []map[string]any{{"id": 1, "src": "https://cdn.example.com/mug.png"}},
				"tags":           []map[string]any{{"id": 1, "name": "kitchen"}},
			},
			{"id": 12, "name": "Draft poster", "sku": "", "price": 9, "status": "draft"},
		}
	})

	result, err := env.sync.Sync(ctx, env.store.ID, integration.EntityTypeProducts)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Records)

	mug, err := env.products.FindBySKU(ctx, env.store.TenantID, "MUG")
	require.NoError(t, err)
	assert.True(t, mug.Active)
	require.NotNil(t, mug.StockQuantity)
	assert.Equal(t, 12, *mug.StockQuantity)
	assert.Equal(t, []string{"https://cdn.example.com/mug.png"}, mug.ImageURLs)
	assert.Equal(t, []string{"kitchen"}, mug.Tags)

	poster, err := env.products.FindBySKU(ctx, env.store.TenantID, "12")
	require.NoError(t, err, "a product without SKU is keyed by its external id")
	assert.False(t, poster.Active)

	env.shop.set(func(s *fakeShop) {
		s.products = []map[string]any{{"id": 11, "name": "Mug v2", "sku": "MUG", "price": "22.50", "status": "publish"}}
	})
	_, err = env.sync.Sync(ctx, env.store.ID, integration.EntityTypeProducts)
	require.NoError(t, err)

	updated, err := env.products.FindBySKU(ctx, env.store.TenantID, "MUG")
	require.NoError(t, err)
	assert.Equal(t, mug.ID, updated.ID)
	assert.Equal(t, "Mug v2", updated.Name)
	assert.Equal(t, "22.5", updated.Price.String())

	count, err := env.products.CountByTenant(ctx, env.store.TenantID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestWebhookDrain(t *testing.T) {
	env := newSyncEnv(t)
	ctx := context.Background()

	orderPayload, err := json.Marshal(order1001(lineItem(1, "MUG", 1, "20.00")))
	require.NoError(t, err)
	productPayload, err := json.Marshal(map[string]any{"id": 21, "name": "Lamp", "sku": "LAMP", "price": "35.00", "status": "publish"})
	require.NoError(t, err)

	created := integration.NewWebhookEvent("woocommerce", "order.created", env.store.ID, orderPayload)
	product := integration.NewWebhookEvent("woocommerce", "product.updated", env.store.ID, productPayload)
	malformed := integration.NewWebhookEvent("woocommerce", "order.updated", env.store.ID, []byte(`{"status":"processing"}`))
	orphan := integration.NewWebhookEvent("woocommerce", "order.created", uuid.New(), orderPayload)
	unknown := integration.NewWebhookEvent("woocommerce", "customer.created", env.store.ID, []byte(`{"id":5}`))
	for _, e := range []*integration.WebhookEvent{created, product, malformed, orphan, unknown} {
		require.NoError(t, env.events.Create(ctx, e))
	}

	result, err := env.webhooks.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 2, result.Failed)

	tests := []struct {
		name   string
		event  *integration.WebhookEvent
		status integration.WebhookStatus
	}{
		{"order reconciled", created, integration.WebhookStatusProcessed},
		{"product reconciled", product, integration.WebhookStatusProcessed},
		{"payload without key", malformed, integration.WebhookStatusFailed},
		{"unknown store", orphan, integration.WebhookStatusFailed},
		{"unhandled topic", unknown, integration.WebhookStatusReceived},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := env.events.FindByID(ctx, tt.event.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.status, got.Status)
			switch tt.status {
			case integration.WebhookStatusProcessed:
				assert.NotNil(t, got.ProcessedAt)
				assert.Nil(t, got.Error)
			case integration.WebhookStatusFailed:
				assert.Nil(t, got.ProcessedAt)
				require.NotNil(t, got.Error)
				assert.NotEmpty(t, *got.Error)
			default:
				assert.Zero(t, got.Attempts)
			}
		})
	}

	_, err = env.orders.FindByExternalNo(ctx, env.store.TenantID, "1001")
	assert.NoError(t, err)
	_, err = env.products.FindBySKU(ctx, env.store.TenantID, "LAMP")
	assert.NoError(t, err)

	// Failed events are terminal and the unknown topic is never selected
	again, err := env.webhooks.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Fetched)

	byStatus, err := env.events.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), byStatus[integration.WebhookStatusProcessed])
	assert.Equal(t, int64(2), byStatus[integration.WebhookStatusFailed])
	assert.Equal(t, int64(1), byStatus[integration.WebhookStatusReceived])
}

func TestProductUpsert_ConcurrentWritersShareOneRow(t *testing.T) {
	env := newSyncEnv(t)
	ctx := context.Background()

	const writers = 10
	products := make([]*integration.Product, writers)
	for i := range products {
		products[i] = &integration.Product{
			TenantID:       env.store.TenantID,
			StoreID:        env.store.ID,
			SKU:            "LAMP-OAK",
			ExternalID:     77,
			Name:           gofakeit.ProductName(),
			Price:          decimal.NewFromInt(int64(40 + i)),
			ExternalStatus: "publish",
			Active:         true,
		}
	}

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	start := make(chan struct{})
	for _, p := range products {
		wg.Add(1)
		go func(p *integration.Product) {
			defer wg.Done()
			<-start
			errs <- env.products.Upsert(ctx, p)
		}(p)
	}
	close(start)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	count, err := env.products.CountByTenant(ctx, env.store.TenantID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	persisted, err := env.products.FindBySKU(ctx, env.store.TenantID, "LAMP-OAK")
	require.NoError(t, err)
	for _, p := range products {
		assert.Equal(t, persisted.ID, p.ID)
	}
}

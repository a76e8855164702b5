package ecommerce

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/erp/commercesync/internal/domain/integration"
)

func newTestStore(baseURL string) *integration.Store {
	return &integration.Store{
		ID:         uuid.New(),
		TenantID:   uuid.New(),
		BaseURL:    baseURL,
		APIVersion: "v3",
		Credentials: integration.Credentials{
			ConsumerKey:    "ck_test",
			ConsumerSecret: "cs_test",
		},
		Active: true,
	}
}

func newTestClient(t *testing.T) *RESTClient {
	t.Helper()
	client, err := NewRESTClient(DefaultRESTConfig(), zap.NewNop())
	require.NoError(t, err)
	return client
}

// ---------------------------------------------------------------------------
// Config Tests
// ---------------------------------------------------------------------------

func TestRESTConfig_Validate(t *testing.T) {
	cfg := RESTConfig{}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultAPIPathPrefix, cfg.APIPathPrefix)
	assert.Equal(t, DefaultAPIVersion, cfg.DefaultAPIVersion)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)

	cfg = RESTConfig{RequestTimeout: -time.Second}
	assert.ErrorIs(t, cfg.Validate(), ErrRESTConfigInvalidTimeout)
}

// ---------------------------------------------------------------------------
// Request Tests
// ---------------------------------------------------------------------------

func TestRESTClient_ListOrders(t *testing.T) {
	watermark := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/shop/wp-json/wc/v3/orders", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "50", r.URL.Query().Get("per_page"))
		assert.Equal(t, "2026-04-01T10:00:00", r.URL.Query().Get("modified_after"))
		assert.Equal(t, "modified", r.URL.Query().Get("orderby"))
		assert.Equal(t, "asc", r.URL.Query().Get("order"))

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "ck_test", user)
		assert.Equal(t, "cs_test", pass)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id": 1, "number": "1001", "status": "processing", "total": "10.00",
			"line_items": [{"id": 5, "name": "Mug", "quantity": 1, "price": 10, "total": "10.00"}]}]`))
	}))
	defer server.Close()

	client := newTestClient(t)
	orders, err := client.ListOrders(context.Background(), newTestStore(server.URL+"/shop/"), integration.PageRequest{
		Page:          2,
		ModifiedAfter: watermark,
	})

	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "1001", orders[0].OrderNo())
	require.Len(t, orders[0].LineItems, 1)
}

func TestRESTClient_ListProducts_EmptyPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/wc/v3/products", r.URL.Path)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	products, err := newTestClient(t).ListProducts(context.Background(), newTestStore(server.URL), integration.PageRequest{Page: 1})
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestRESTClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"server error", http.StatusInternalServerError, `{"code":"internal"}`, integration.ErrPlatformRequestFailed},
		{"unauthorized", http.StatusUnauthorized, `{"code":"woocommerce_rest_cannot_view"}`, integration.ErrPlatformRequestFailed},
		{"rate limited", http.StatusTooManyRequests, ``, integration.ErrPlatformRateLimited},
		{"redirect without location", http.StatusMultipleChoices, ``, integration.ErrPlatformRequestFailed},
		{"malformed json", http.StatusOK, `{not json`, integration.ErrPlatformInvalidResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestClient(t).ListOrders(context.Background(), newTestStore(server.URL), integration.PageRequest{})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRESTClient_Unavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestClient(t).ListOrders(context.Background(), newTestStore(url), integration.PageRequest{})
	assert.ErrorIs(t, err, integration.ErrPlatformUnavailable)
}

func TestRESTClient_InvalidConnection(t *testing.T) {
	tests := []struct {
		name  string
		store *integration.Store
	}{
		{"nil store", nil},
		{"missing base url", newTestStore("")},
		{"not a url", newTestStore("not a url")},
		{"missing secret", func() *integration.Store {
			s := newTestStore("https://shop.example.com")
			s.Credentials.ConsumerSecret = ""
			return s
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestClient(t).ListProducts(context.Background(), tt.store, integration.PageRequest{})
			assert.ErrorIs(t, err, integration.ErrInvalidStoreConnection)
		})
	}
}

func TestRESTClient_DefaultAPIVersion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/wc/v3/orders", r.URL.Path)
		assert.Empty(t, r.URL.Query().Get("modified_after"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	store := newTestStore(server.URL)
	store.APIVersion = ""

	_, err := newTestClient(t).ListOrders(context.Background(), store, integration.PageRequest{})
	require.NoError(t, err)
}

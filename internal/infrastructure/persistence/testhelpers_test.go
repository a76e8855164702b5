package persistence

import (
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/erp/commercesync/internal/domain/integration"
	"github.com/erp/commercesync/internal/infrastructure/persistence/models"
)

// setupSyncTestDB opens an in-memory SQLite database with the sync schema.
// A single connection keeps every statement on the same in-memory database.
func setupSyncTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func newTestStore(tenantID uuid.UUID, active bool) *integration.Store {
	return &integration.Store{
		TenantID:   tenantID,
		Name:       gofakeit.Company(),
		BaseURL:    "https://" + gofakeit.DomainName(),
		APIVersion: "v3",
		Credentials: integration.Credentials{
			ConsumerKey:    "ck_" + gofakeit.LetterN(16),
			ConsumerSecret: "cs_" + gofakeit.LetterN(16),
		},
		Active: active,
	}
}

func newTestOrder(tenantID, storeID uuid.UUID, orderNo string, lines int) *integration.Order {
	now := time.Now().UTC().Truncate(time.Second)
	order := &integration.Order{
		ID:              uuid.New(),
		TenantID:        tenantID,
		StoreID:         storeID,
		ExternalOrderNo: orderNo,
		ExternalID:      int64(gofakeit.Number(1, 1_000_000)),
		Status:          "processing",
		MappedStatus:    integration.OrderStatusConfirmed,
		Total:           decimal.NewFromInt(0),
		Currency:        "USD",
		CustomerEmail:   gofakeit.Email(),
		ShippingAddress: integration.Address{
			FirstName: gofakeit.FirstName(),
			City:      gofakeit.City(),
			Country:   "US",
		},
		PaymentMethod: "stripe",
		ConfirmedAt:   now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for i := 0; i < lines; i++ {
		price := decimal.NewFromInt(int64(10 + i))
		order.Items = append(order.Items, integration.OrderItem{
			ExternalItemID:    int64(100 + i),
			ExternalProductID: int64(500 + i),
			SKU:               gofakeit.LetterN(8),
			Name:              gofakeit.ProductName(),
			Quantity:          1,
			UnitPrice:         price,
			Total:             price,
		})
		order.Total = order.Total.Add(price)
	}
	return order
}

func newTestProduct(tenantID, storeID uuid.UUID, sku string) *integration.Product {
	now := time.Now().UTC().Truncate(time.Second)
	stock := 12
	return &integration.Product{
		ID:             uuid.New(),
		TenantID:       tenantID,
		StoreID:        storeID,
		SKU:            sku,
		ExternalID:     int64(gofakeit.Number(1, 1_000_000)),
		Name:           gofakeit.ProductName(),
		Price:          decimal.RequireFromString("19.99"),
		StockQuantity:  &stock,
		ImageURLs:      []string{"https://cdn.example.com/a.jpg"},
		Tags:           []string{"summer"},
		ExternalStatus: "publish",
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

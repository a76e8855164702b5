package models

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/erp/commercesync/internal/domain/integration"
)

// ProductModel is the persistence model for a mirrored product.
// (tenant_id, sku) is the natural key; sku holds the external id when the
// platform product has no SKU.
type ProductModel struct {
	BaseModel
	TenantID       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_products_tenant_sku,priority:1"`
	StoreID        uuid.UUID       `gorm:"type:uuid;not null;index:idx_products_store"`
	SKU            string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_products_tenant_sku,priority:2"`
	ExternalID     int64           `gorm:"not null"`
	Name           string          `gorm:"type:varchar(255);not null"`
	Price          decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	StockQuantity  *int
	ImageURLs      datatypes.JSON `gorm:"column:image_urls"`
	Tags           datatypes.JSON `gorm:"column:tags"`
	ExternalStatus string         `gorm:"type:varchar(32);not null"`
	Active         bool           `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ProductUpsertColumns are overwritten when an insert hits the natural key.
var ProductUpsertColumns = []string{
	"store_id", "external_id", "name", "price", "stock_quantity", "image_urls",
	"tags", "external_status", "active", "updated_at",
}

// ToDomain converts the persistence model to a domain Product.
func (m *ProductModel) ToDomain() *integration.Product {
	return &integration.Product{
		ID:             m.ID,
		TenantID:       m.TenantID,
		StoreID:        m.StoreID,
		SKU:            m.SKU,
		ExternalID:     m.ExternalID,
		Name:           m.Name,
		Price:          m.Price,
		StockQuantity:  m.StockQuantity,
		ImageURLs:      decodeStrings(m.ImageURLs),
		Tags:           decodeStrings(m.Tags),
		ExternalStatus: m.ExternalStatus,
		Active:         m.Active,
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
}

// ProductModelFromDomain creates a persistence model from a domain Product.
func ProductModelFromDomain(p *integration.Product) *ProductModel {
	return &ProductModel{
		BaseModel: BaseModel{
			ID:        p.ID,
			CreatedAt: p.CreatedAt,
			UpdatedAt: p.UpdatedAt,
		},
		TenantID:       p.TenantID,
		StoreID:        p.StoreID,
		SKU:            p.SKU,
		ExternalID:     p.ExternalID,
		Name:           p.Name,
		Price:          p.Price,
		StockQuantity:  p.StockQuantity,
		ImageURLs:      encodeStrings(p.ImageURLs),
		Tags:           encodeStrings(p.Tags),
		ExternalStatus: p.ExternalStatus,
		Active:         p.Active,
	}
}

func encodeStrings(values []string) datatypes.JSON {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(b)
}

func decodeStrings(raw datatypes.JSON) []string {
	out := []string{}
	if len(raw) == 0 {
		return out
	}
	_ = json.Unmarshal(raw, &out)
	return out
}

package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/erp/commercesync/internal/domain/integration"
)

// OrderModel is the persistence model for a mirrored order.
// (tenant_id, external_order_no) is the natural key.
type OrderModel struct {
	BaseModel
	TenantID        uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_orders_tenant_order_no,priority:1"`
	StoreID         uuid.UUID        `gorm:"type:uuid;not null;index:idx_orders_store"`
	ExternalOrderNo string           `gorm:"type:varchar(64);not null;uniqueIndex:idx_orders_tenant_order_no,priority:2"`
	ExternalID      int64            `gorm:"not null"`
	Status          string           `gorm:"type:varchar(32);not null"`
	MappedStatus    string           `gorm:"type:varchar(20);not null"`
	Total           decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	Currency        string           `gorm:"type:varchar(8);not null"`
	CustomerEmail   string           `gorm:"type:varchar(255)"`
	CustomerPhone   string           `gorm:"type:varchar(64)"`
	ShippingAddress datatypes.JSON   `gorm:"column:shipping_address"`
	BillingAddress  datatypes.JSON   `gorm:"column:billing_address"`
	PaymentMethod   string           `gorm:"type:varchar(64)"`
	ConfirmedAt     time.Time        `gorm:"not null"`
	Items           []OrderItemModel `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// OrderUpsertColumns are overwritten when an insert hits the natural key.
// id and created_at keep the values of the first insert.
var OrderUpsertColumns = []string{
	"store_id", "external_id", "status", "mapped_status", "total", "currency",
	"customer_email", "customer_phone", "shipping_address", "billing_address",
	"payment_method", "confirmed_at", "updated_at",
}

// OrderItemModel is the persistence model for one order line.
type OrderItemModel struct {
	ID                uuid.UUID       `gorm:"type:uuid;primary_key"`
	OrderID           uuid.UUID       `gorm:"type:uuid;not null;index:idx_order_items_order,priority:1"`
	TenantID          uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position          int             `gorm:"not null;index:idx_order_items_order,priority:2"`
	ExternalItemID    int64           `gorm:"not null"`
	ExternalProductID int64           `gorm:"not null"`
	SKU               string          `gorm:"type:varchar(100)"`
	Name              string          `gorm:"type:varchar(255);not null"`
	Quantity          int             `gorm:"not null"`
	UnitPrice         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Total             decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (OrderItemModel) TableName() string {
	return "order_items"
}

// ToDomain converts the persistence model to a domain Order.
func (m *OrderModel) ToDomain() *integration.Order {
	order := &integration.Order{
		ID:              m.ID,
		TenantID:        m.TenantID,
		StoreID:         m.StoreID,
		ExternalOrderNo: m.ExternalOrderNo,
		ExternalID:      m.ExternalID,
		Status:          m.Status,
		MappedStatus:    integration.OrderStatus(m.MappedStatus),
		Total:           m.Total,
		Currency:        m.Currency,
		CustomerEmail:   m.CustomerEmail,
		CustomerPhone:   m.CustomerPhone,
		ShippingAddress: decodeAddress(m.ShippingAddress),
		BillingAddress:  decodeAddress(m.BillingAddress),
		PaymentMethod:   m.PaymentMethod,
		ConfirmedAt:     m.ConfirmedAt.UTC(),
		Items:           make([]integration.OrderItem, 0, len(m.Items)),
		CreatedAt:       m.CreatedAt.UTC(),
		UpdatedAt:       m.UpdatedAt.UTC(),
	}
	for i := range m.Items {
		order.Items = append(order.Items, m.Items[i].ToDomain())
	}
	return order
}

// OrderModelFromDomain creates a persistence model from a domain Order.
// Items are not attached; they are written separately.
func OrderModelFromDomain(o *integration.Order) *OrderModel {
	return &OrderModel{
		BaseModel: BaseModel{
			ID:        o.ID,
			CreatedAt: o.CreatedAt,
			UpdatedAt: o.UpdatedAt,
		},
		TenantID:        o.TenantID,
		StoreID:         o.StoreID,
		ExternalOrderNo: o.ExternalOrderNo,
		ExternalID:      o.ExternalID,
		Status:          o.Status,
		MappedStatus:    o.MappedStatus.String(),
		Total:           o.Total,
		Currency:        o.Currency,
		CustomerEmail:   o.CustomerEmail,
		CustomerPhone:   o.CustomerPhone,
		ShippingAddress: encodeAddress(o.ShippingAddress),
		BillingAddress:  encodeAddress(o.BillingAddress),
		PaymentMethod:   o.PaymentMethod,
		ConfirmedAt:     o.ConfirmedAt,
	}
}

// ToDomain converts the persistence model to a domain OrderItem.
func (m *OrderItemModel) ToDomain() integration.OrderItem {
	return integration.OrderItem{
		ID:                m.ID,
		OrderID:           m.OrderID,
		TenantID:          m.TenantID,
		Position:          m.Position,
		ExternalItemID:    m.ExternalItemID,
		ExternalProductID: m.ExternalProductID,
		SKU:               m.SKU,
		Name:              m.Name,
		Quantity:          m.Quantity,
		UnitPrice:         m.UnitPrice,
		Total:             m.Total,
	}
}

// OrderItemModelsFromDomain converts bound domain items to persistence models.
func OrderItemModelsFromDomain(items []integration.OrderItem) []OrderItemModel {
	out := make([]OrderItemModel, 0, len(items))
	for _, it := range items {
		out = append(out, OrderItemModel{
			ID:                it.ID,
			OrderID:           it.OrderID,
			TenantID:          it.TenantID,
			Position:          it.Position,
			ExternalItemID:    it.ExternalItemID,
			ExternalProductID: it.ExternalProductID,
			SKU:               it.SKU,
			Name:              it.Name,
			Quantity:          it.Quantity,
			UnitPrice:         it.UnitPrice,
			Total:             it.Total,
		})
	}
	return out
}

func encodeAddress(a integration.Address) datatypes.JSON {
	b, err := json.Marshal(a)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(b)
}

func decodeAddress(raw datatypes.JSON) integration.Address {
	var a integration.Address
	if len(raw) == 0 {
		return a
	}
	_ = json.Unmarshal(raw, &a)
	return a
}

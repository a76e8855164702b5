package integration

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// OrderStatus is the internal status an external status maps to
// ---------------------------------------------------------------------------

// OrderStatus represents the internal lifecycle status of a mirrored order
type OrderStatus string

const (
	// OrderStatusPending indicates the order awaits payment or review
	OrderStatusPending OrderStatus = "PENDING"
	// OrderStatusConfirmed indicates the order is paid and being fulfilled
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	// OrderStatusCompleted indicates the order is fulfilled
	OrderStatusCompleted OrderStatus = "COMPLETED"
	// OrderStatusCancelled indicates the order was cancelled
	OrderStatusCancelled OrderStatus = "CANCELLED"
	// OrderStatusRefunded indicates the order was refunded
	OrderStatusRefunded OrderStatus = "REFUNDED"
	// OrderStatusFailed indicates payment failed
	OrderStatusFailed OrderStatus = "FAILED"
)

// IsValid returns true if the order status is valid
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusCompleted,
		OrderStatusCancelled, OrderStatusRefunded, OrderStatusFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of OrderStatus
func (s OrderStatus) String() string {
	return string(s)
}

// MapOrderStatus converts a platform order status into the internal status.
// Unknown statuses map to pending.
func MapOrderStatus(external string) OrderStatus {
	switch strings.ToLower(strings.TrimSpace(external)) {
	case "processing":
		return OrderStatusConfirmed
	case "completed":
		return OrderStatusCompleted
	case "cancelled":
		return OrderStatusCancelled
	case "refunded":
		return OrderStatusRefunded
	case "failed":
		return OrderStatusFailed
	default:
		// pending, on-hold, checkout-draft and anything new
		return OrderStatusPending
	}
}

// ---------------------------------------------------------------------------
// Address
// ---------------------------------------------------------------------------

// Address is a postal address as the platform sends it
type Address struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Company   string `json:"company,omitempty"`
	Address1  string `json:"address_1,omitempty"`
	Address2  string `json:"address_2,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	Postcode  string `json:"postcode,omitempty"`
	Country   string `json:"country,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// IsEmpty returns true if no address field is set
func (a Address) IsEmpty() bool {
	return a == Address{}
}

// ---------------------------------------------------------------------------
// Order
// ---------------------------------------------------------------------------

// Order is the internal mirror of one external order.
// Within a tenant it is addressed by ExternalOrderNo, never by ExternalID.
type Order struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	StoreID         uuid.UUID
	ExternalOrderNo string
	ExternalID      int64
	// Status is the raw platform status
	Status string
	// MappedStatus is the internal interpretation of Status
	MappedStatus    OrderStatus
	Total           decimal.Decimal
	Currency        string
	CustomerEmail   string
	CustomerPhone   string
	ShippingAddress Address
	BillingAddress  Address
	PaymentMethod   string
	ConfirmedAt     time.Time
	Items           []OrderItem
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderItem is one line of an order
type OrderItem struct {
	ID                uuid.UUID
	OrderID           uuid.UUID
	TenantID          uuid.UUID
	Position          int
	ExternalItemID    int64
	ExternalProductID int64
	SKU               string
	Name              string
	Quantity          int
	UnitPrice         decimal.Decimal
	Total             decimal.Decimal
}

// BindItems attaches every item to the order. Item ids are derived from the
// order id and the line position, so replaying the same line list produces
// the same rows.
func (o *Order) BindItems() {
	for i := range o.Items {
		item := &o.Items[i]
		item.Position = i
		item.OrderID = o.ID
		item.TenantID = o.TenantID
		item.ID = OrderItemID(o.ID, i, item.ExternalItemID)
	}
}

// OrderItemID returns the deterministic id of the line at position pos
func OrderItemID(orderID uuid.UUID, pos int, externalItemID int64) uuid.UUID {
	return uuid.NewSHA1(orderID, []byte(fmt.Sprintf("line:%d:%d", pos, externalItemID)))
}

// ItemCount returns the number of lines on the order
func (o *Order) ItemCount() int {
	return len(o.Items)
}

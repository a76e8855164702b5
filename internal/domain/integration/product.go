package integration

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the internal mirror of one external product.
// Within a tenant it is addressed by SKU; when the platform product has no
// SKU the stringified external id takes its place.
type Product struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	StoreID    uuid.UUID
	SKU        string
	ExternalID int64
	Name       string
	Price      decimal.Decimal
	// StockQuantity is nil when the platform does not track stock
	StockQuantity *int
	ImageURLs     []string
	Tags          []string
	// ExternalStatus is the raw platform status (publish, draft, trash, ...)
	ExternalStatus string
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ProductNaturalKey returns the SKU, falling back to the stringified id.
// The empty string means the product cannot be addressed.
func ProductNaturalKey(sku string, externalID int64) string {
	if s := strings.TrimSpace(sku); s != "" {
		return s
	}
	if externalID > 0 {
		return strconv.FormatInt(externalID, 10)
	}
	return ""
}

// IsProductActive reports whether a platform status counts as active
func IsProductActive(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "draft", "trash":
		return false
	default:
		return true
	}
}

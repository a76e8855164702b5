package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Wire scalars
// ---------------------------------------------------------------------------

// Amount is a money value the platform sends either as a JSON string or a
// JSON number. It is kept as text until converted to a decimal.
type Amount string

// UnmarshalJSON accepts "12.50", 12.5 and null
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*a = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Amount(strings.TrimSpace(s))
		return nil
	}
	*a = Amount(b)
	return nil
}

// Decimal converts the amount. An empty amount is zero.
func (a Amount) Decimal() (decimal.Decimal, error) {
	if a == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(string(a))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount %q", ErrInvalidPayload, string(a))
	}
	return d, nil
}

// platformTimeLayouts are tried in order; layouts without a zone are UTC
var platformTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Timestamp is a platform date. The zero value means the field was absent.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON accepts RFC 3339, zone-less ISO-8601 (read as UTC), "" and null
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: timestamp %s", ErrInvalidPayload, string(b))
	}
	parsed, err := ParsePlatformTime(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// MarshalJSON writes the zone-less UTC form the platform uses, or null
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format("2006-01-02T15:04:05"))
}

// ParsePlatformTime parses a platform date string. "" yields the zero time.
func ParsePlatformTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range platformTimeLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: timestamp %q", ErrInvalidPayload, s)
}

// ---------------------------------------------------------------------------
// External order payload
// ---------------------------------------------------------------------------

// ExternalOrder is an order as returned by the platform REST API and
// carried in order.* webhook payloads
type ExternalOrder struct {
	ID                 int64              `json:"id"`
	Number             string             `json:"number"`
	Status             string             `json:"status"`
	Currency           string             `json:"currency"`
	Total              Amount             `json:"total"`
	PaymentMethod      string             `json:"payment_method"`
	PaymentMethodTitle string             `json:"payment_method_title"`
	Billing            Address            `json:"billing"`
	Shipping           Address            `json:"shipping"`
	DateCreated        Timestamp          `json:"date_created_gmt"`
	DatePaid           Timestamp          `json:"date_paid_gmt"`
	DateModified       Timestamp          `json:"date_modified_gmt"`
	LineItems          []ExternalLineItem `json:"line_items"`
}

// ExternalLineItem is one line of an external order
type ExternalLineItem struct {
	ID          int64  `json:"id"`
	ProductID   int64  `json:"product_id"`
	VariationID int64  `json:"variation_id"`
	Name        string `json:"name"`
	SKU         string `json:"sku"`
	Quantity    int    `json:"quantity"`
	Price       Amount `json:"price"`
	Total       Amount `json:"total"`
}

// OrderNo returns the natural key: the order number, falling back to the id
func (o *ExternalOrder) OrderNo() string {
	if n := strings.TrimSpace(o.Number); n != "" {
		return n
	}
	if o.ID > 0 {
		return strconv.FormatInt(o.ID, 10)
	}
	return ""
}

// ---------------------------------------------------------------------------
// External product payload
// ---------------------------------------------------------------------------

// ExternalProduct is a product as returned by the platform REST API and
// carried in product.* webhook payloads
type ExternalProduct struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	SKU           string          `json:"sku"`
	Price         Amount          `json:"price"`
	Status        string          `json:"status"`
	StockQuantity *int            `json:"stock_quantity"`
	Images        []ExternalImage `json:"images"`
	Tags          []ExternalTag   `json:"tags"`
	DateModified  Timestamp       `json:"date_modified_gmt"`
}

// ExternalImage is a product image reference
type ExternalImage struct {
	ID  int64  `json:"id"`
	Src string `json:"src"`
}

// ExternalTag is a product tag reference
type ExternalTag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// NaturalKey returns the SKU-or-id key of the product
func (p *ExternalProduct) NaturalKey() string {
	return ProductNaturalKey(p.SKU, p.ID)
}

package integration

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExternalOrder_Unmarshal(t *testing.T) {
	raw := `{
		"id": 727,
		"number": "1001",
		"status": "processing",
		"currency": "usd",
		"total": "29.35",
		"payment_method": "bacs",
		"billing": {"first_name": "John", "email": "john@example.com", "phone": "(555) 555-5555"},
		"shipping": {"city": "San Francisco", "country": "US"},
		"date_created_gmt": "2026-03-22T16:28:02",
		"date_paid_gmt": null,
		"date_modified_gmt": "2026-03-22T16:30:00Z",
		"line_items": [
			{"id": 315, "product_id": 93, "name": "Woo Single #1", "sku": "", "quantity": 2, "price": 3, "total": "6.00"}
		]
	}`

	var o ExternalOrder
	require.NoError(t, json.Unmarshal([]byte(raw), &o))

	assert.Equal(t, "1001", o.OrderNo())
	assert.Equal(t, time.Date(2026, 3, 22, 16, 28, 2, 0, time.UTC), o.DateCreated.Time)
	assert.True(t, o.DatePaid.IsZero())
	assert.Equal(t, time.Date(2026, 3, 22, 16, 30, 0, 0, time.UTC), o.DateModified.Time)
	assert.Equal(t, "john@example.com", o.Billing.Email)
	require.Len(t, o.LineItems, 1)

	total, err := o.Total.Decimal()
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("29.35")))

	price, err := o.LineItems[0].Price.Decimal()
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(3)))
}

func TestExternalOrder_OrderNo(t *testing.T) {
	assert.Equal(t, "55", (&ExternalOrder{ID: 55}).OrderNo())
	assert.Equal(t, "A-1", (&ExternalOrder{ID: 55, Number: "A-1"}).OrderNo())
	assert.Equal(t, "", (&ExternalOrder{}).OrderNo())
}

func TestAmount_Decimal(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"quoted", `"12.50"`, "12.5", false},
		{"number", `12.5`, "12.5", false},
		{"empty string", `""`, "0", false},
		{"null", `null`, "0", false},
		{"garbage", `"abc"`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Amount
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &a))
			d, err := a.Decimal()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPayload)
				return
			}
			require.NoError(t, err)
			assert.True(t, d.Equal(decimal.RequireFromString(tt.want)), "got %s", d)
		})
	}
}

func TestTimestamp_Unmarshal(t *testing.T) {
	var ts Timestamp
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
	assert.Error(t, json.Unmarshal([]byte(`12345`), &ts))

	require.NoError(t, json.Unmarshal([]byte(`""`), &ts))
	assert.True(t, ts.IsZero())

	require.NoError(t, json.Unmarshal([]byte(`"2026-01-02T03:04:05+02:00"`), &ts))
	assert.Equal(t, time.Date(2026, 1, 2, 1, 4, 5, 0, time.UTC), ts.Time)

	out, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `"2026-01-02T01:04:05"`, string(out))
}

func TestExternalProduct_Unmarshal(t *testing.T) {
	raw := `{"id": 794, "name": "Premium Quality", "sku": "", "price": "21.99", "status": "publish",
		"stock_quantity": null, "images": [{"id": 1, "src": "https://cdn/a.jpg"}], "tags": [{"id": 3, "name": "sale"}]}`

	var p ExternalProduct
	require.NoError(t, json.Unmarshal([]byte(raw), &p))

	assert.Equal(t, "794", p.NaturalKey())
	assert.Nil(t, p.StockQuantity)
	require.Len(t, p.Images, 1)
	assert.Equal(t, "https://cdn/a.jpg", p.Images[0].Src)
}

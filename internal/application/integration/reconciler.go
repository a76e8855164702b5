package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/currency"

	"github.com/erp/commercesync/internal/domain/integration"
)

// Reconciler maps external records onto natural-key addressed rows.
// The sync service and the webhook processor share it so that a record
// reaching the engine through either path converges to the same state.
type Reconciler struct {
	orders   integration.OrderRepository
	products integration.ProductRepository
	now      func() time.Time
}

// NewReconciler creates a new Reconciler
func NewReconciler(orders integration.OrderRepository, products integration.ProductRepository) *Reconciler {
	return &Reconciler{
		orders:   orders,
		products: products,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source, for tests
func (r *Reconciler) SetClock(now func() time.Time) {
	r.now = now
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// ReconcileOrder inserts or updates the order addressed by
// (store tenant, number-or-id) and replaces its item set
func (r *Reconciler) ReconcileOrder(ctx context.Context, store *integration.Store, ext *integration.ExternalOrder) (*integration.Order, error) {
	orderNo := ext.OrderNo()
	if orderNo == "" {
		return nil, integration.ErrMissingOrderKey
	}

	existing, err := r.orders.FindByExternalNo(ctx, store.TenantID, orderNo)
	if err != nil && !errors.Is(err, integration.ErrOrderNotFound) {
		return nil, fmt.Errorf("lookup order %s: %w", orderNo, err)
	}

	now := r.now()
	order, err := mapOrder(store, ext, orderNo)
	if err != nil {
		return nil, err
	}

	switch {
	case !ext.DatePaid.IsZero():
		order.ConfirmedAt = ext.DatePaid.UTC()
	case !ext.DateCreated.IsZero():
		order.ConfirmedAt = ext.DateCreated.UTC()
	case existing != nil && !existing.ConfirmedAt.IsZero():
		order.ConfirmedAt = existing.ConfirmedAt
	default:
		order.ConfirmedAt = now
	}

	if existing != nil {
		order.ID = existing.ID
		order.CreatedAt = existing.CreatedAt
	} else {
		order.ID = uuid.New()
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	if err := r.orders.Upsert(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func mapOrder(store *integration.Store, ext *integration.ExternalOrder, orderNo string) (*integration.Order, error) {
	total, err := ext.Total.Decimal()
	if err != nil {
		return nil, fmt.Errorf("order %s total: %w", orderNo, err)
	}

	order := &integration.Order{
		TenantID:        store.TenantID,
		StoreID:         store.ID,
		ExternalOrderNo: orderNo,
		ExternalID:      ext.ID,
		Status:          ext.Status,
		MappedStatus:    integration.MapOrderStatus(ext.Status),
		Total:           total,
		Currency:        normalizeCurrency(ext.Currency),
		CustomerEmail:   strings.TrimSpace(ext.Billing.Email),
		CustomerPhone:   strings.TrimSpace(ext.Billing.Phone),
		ShippingAddress: ext.Shipping,
		BillingAddress:  ext.Billing,
		PaymentMethod:   ext.PaymentMethod,
		Items:           make([]integration.OrderItem, 0, len(ext.LineItems)),
	}
	if order.PaymentMethod == "" {
		order.PaymentMethod = ext.PaymentMethodTitle
	}

	for _, line := range ext.LineItems {
		unitPrice, err := line.Price.Decimal()
		if err != nil {
			return nil, fmt.Errorf("order %s line %d price: %w", orderNo, line.ID, err)
		}
		lineTotal, err := line.Total.Decimal()
		if err != nil {
			return nil, fmt.Errorf("order %s line %d total: %w", orderNo, line.ID, err)
		}
		order.Items = append(order.Items, integration.OrderItem{
			ExternalItemID:    line.ID,
			ExternalProductID: line.ProductID,
			SKU:               line.SKU,
			Name:              line.Name,
			Quantity:          line.Quantity,
			UnitPrice:         unitPrice,
			Total:             lineTotal,
		})
	}
	return order, nil
}

// normalizeCurrency returns the ISO 4217 code, or the trimmed upper-case
// input when it is not a known currency
func normalizeCurrency(code string) string {
	code = strings.TrimSpace(code)
	if unit, err := currency.ParseISO(code); err == nil {
		return unit.String()
	}
	return strings.ToUpper(code)
}

// ---------------------------------------------------------------------------
// Products
// ---------------------------------------------------------------------------

// ReconcileProduct inserts or updates the product addressed by
// (store tenant, SKU-or-id)
func (r *Reconciler) ReconcileProduct(ctx context.Context, store *integration.Store, ext *integration.ExternalProduct) (*integration.Product, error) {
	key := ext.NaturalKey()
	if key == "" {
		return nil, integration.ErrMissingProductKey
	}

	existing, err := r.products.FindBySKU(ctx, store.TenantID, key)
	if err != nil && !errors.Is(err, integration.ErrProductNotFound) {
		return nil, fmt.Errorf("lookup product %s: %w", key, err)
	}

	price, err := ext.Price.Decimal()
	if err != nil {
		return nil, fmt.Errorf("product %s price: %w", key, err)
	}

	now := r.now()
	product := &integration.Product{
		TenantID:       store.TenantID,
		StoreID:        store.ID,
		SKU:            key,
		ExternalID:     ext.ID,
		Name:           ext.Name,
		Price:          price,
		ImageURLs:      make([]string, 0, len(ext.Images)),
		Tags:           make([]string, 0, len(ext.Tags)),
		ExternalStatus: ext.Status,
		Active:         integration.IsProductActive(ext.Status),
		UpdatedAt:      now,
	}
	if ext.StockQuantity != nil {
		qty := *ext.StockQuantity
		product.StockQuantity = &qty
	}
	for _, img := range ext.Images {
		if src := strings.TrimSpace(img.Src); src != "" {
			product.ImageURLs = append(product.ImageURLs, src)
		}
	}
	for _, tag := range ext.Tags {
		if name := strings.TrimSpace(tag.Name); name != "" {
			product.Tags = append(product.Tags, name)
		}
	}

	if existing != nil {
		product.ID = existing.ID
		product.CreatedAt = existing.CreatedAt
	} else {
		product.ID = uuid.New()
		product.CreatedAt = now
	}

	if err := r.products.Upsert(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

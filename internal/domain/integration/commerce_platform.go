package integration

import (
	"context"
	"time"
)

// DefaultPageSize is the number of records requested per page
const DefaultPageSize = 50

// MaxPageSize is the largest page the platform accepts
const MaxPageSize = 100

// PageRequest selects one page of records modified after a watermark,
// ordered by modification time ascending
type PageRequest struct {
	// Page is 1-based
	Page int
	// PageSize is the number of records per page (default 50)
	PageSize int
	// ModifiedAfter filters out records modified at or before this time
	ModifiedAfter time.Time
}

// Validate normalizes the request
func (r *PageRequest) Validate() error {
	if r.Page <= 0 {
		r.Page = 1
	}
	if r.PageSize <= 0 {
		r.PageSize = DefaultPageSize
	}
	if r.PageSize > MaxPageSize {
		r.PageSize = MaxPageSize
	}
	return nil
}

// CommercePlatform is the port to the external commerce REST API.
// Any non-2xx response is returned as an error wrapping ErrPlatformRequestFailed
// or ErrPlatformRateLimited; transport failures wrap ErrPlatformUnavailable.
type CommercePlatform interface {
	// ListOrders returns one page of orders. An empty slice ends the scan.
	ListOrders(ctx context.Context, store *Store, req PageRequest) ([]ExternalOrder, error)

	// ListProducts returns one page of products. An empty slice ends the scan.
	ListProducts(ctx context.Context, store *Store, req PageRequest) ([]ExternalProduct, error)
}

package integration

import "errors"

// ---------------------------------------------------------------------------
// Integration Errors
// ---------------------------------------------------------------------------

var (
	// Platform errors
	ErrPlatformUnavailable     = errors.New("integration: platform temporarily unavailable")
	ErrPlatformRequestFailed   = errors.New("integration: platform request failed")
	ErrPlatformInvalidResponse = errors.New("integration: invalid platform response")
	ErrPlatformRateLimited     = errors.New("integration: platform rate limited")
	ErrInvalidStoreConnection  = errors.New("integration: invalid store connection settings")

	// Store errors
	ErrStoreNotFound  = errors.New("integration: store not found")
	ErrStoreInactive  = errors.New("integration: store is not active")
	ErrInvalidStoreID = errors.New("integration: invalid store ID")

	// Reconciliation errors
	ErrInvalidEntityType = errors.New("integration: invalid entity type")
	ErrInvalidPayload    = errors.New("integration: invalid payload")
	ErrOrderNotFound     = errors.New("integration: order not found")
	ErrProductNotFound   = errors.New("integration: product not found")
	ErrMissingOrderKey   = errors.New("integration: order has neither number nor id")
	ErrMissingProductKey = errors.New("integration: product has neither SKU nor id")

	// Webhook errors
	ErrWebhookEventNotFound = errors.New("integration: webhook event not found")
	ErrInvalidEventState    = errors.New("integration: webhook event is not in received state")
)

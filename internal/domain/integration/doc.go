// Package integration contains the commerce integration bounded context.
// It mirrors orders and products from an external commerce platform into the
// internal multi-tenant store.
//
// Key concepts:
//   - Store: tenant-scoped connection to one external shop, carrying the per-entity sync watermarks
//   - Order / OrderItem: internal mirror of an external order, keyed by (tenant, external order number)
//   - Product: internal mirror of an external product, keyed by (tenant, SKU or external id)
//   - WebhookEvent: inbound platform notification drained by the webhook processor
//   - CommercePlatform: port for the paginated external REST API
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration

package integration

import (
	"time"

	"github.com/google/uuid"
)

// DefaultInitialLookback is how far back the first sync of an entity type reaches
// when the store carries no watermark for it yet.
const DefaultInitialLookback = 7 * 24 * time.Hour

// ---------------------------------------------------------------------------
// EntityType identifies a synchronized record family
// ---------------------------------------------------------------------------

// EntityType identifies a record family that is pulled from the platform
type EntityType string

const (
	// EntityTypeOrders is the order collection
	EntityTypeOrders EntityType = "orders"
	// EntityTypeProducts is the product collection
	EntityTypeProducts EntityType = "products"
)

// AllEntityTypes lists every entity type the sync worker understands
func AllEntityTypes() []EntityType {
	return []EntityType{EntityTypeOrders, EntityTypeProducts}
}

// IsValid returns true if the entity type is known
func (e EntityType) IsValid() bool {
	switch e {
	case EntityTypeOrders, EntityTypeProducts:
		return true
	default:
		return false
	}
}

// String returns the string representation of EntityType
func (e EntityType) String() string {
	return string(e)
}

// ParseEntityType converts a raw string into an EntityType
func ParseEntityType(s string) (EntityType, error) {
	e := EntityType(s)
	if !e.IsValid() {
		return "", ErrInvalidEntityType
	}
	return e, nil
}

// ---------------------------------------------------------------------------
// Store
// ---------------------------------------------------------------------------

// Credentials are the basic-auth style API keys of one store
type Credentials struct {
	// ConsumerKey is sent as the basic-auth user
	ConsumerKey string
	// ConsumerSecret is sent as the basic-auth password
	ConsumerSecret string
}

// Watermarks maps an entity type to the last successful scan start time
type Watermarks map[EntityType]time.Time

// Store is a tenant-scoped connection to one external shop.
// The sync engine only ever mutates LastSync; Active and Credentials belong
// to administrative flows.
type Store struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Name        string
	BaseURL     string
	APIVersion  string
	Credentials Credentials
	Active      bool
	LastSync    Watermarks
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Watermark returns the persisted watermark for the entity type, or
// now minus lookback when the store has never been synced for it.
func (s *Store) Watermark(entityType EntityType, now time.Time, lookback time.Duration) time.Time {
	if lookback <= 0 {
		lookback = DefaultInitialLookback
	}
	if s.LastSync != nil {
		if ts, ok := s.LastSync[entityType]; ok && !ts.IsZero() {
			return ts
		}
	}
	return now.Add(-lookback)
}

// HasWatermark reports whether a watermark was ever persisted for the entity type
func (s *Store) HasWatermark(entityType EntityType) bool {
	if s.LastSync == nil {
		return false
	}
	ts, ok := s.LastSync[entityType]
	return ok && !ts.IsZero()
}

// SetWatermark records a watermark on the aggregate if it moves forward.
// It returns false when ts is not after the current value.
func (s *Store) SetWatermark(entityType EntityType, ts time.Time) bool {
	if s.LastSync == nil {
		s.LastSync = Watermarks{}
	}
	if cur, ok := s.LastSync[entityType]; ok && !ts.After(cur) {
		return false
	}
	s.LastSync[entityType] = ts
	return true
}

package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/erp/commercesync/internal/domain/integration"
)

// StoreModel is the persistence model for the Store aggregate.
type StoreModel struct {
	BaseModel
	TenantID       uuid.UUID             `gorm:"type:uuid;not null;index:idx_stores_tenant,priority:1"`
	Name           string                `gorm:"type:varchar(255);not null"`
	BaseURL        string                `gorm:"type:varchar(512);not null"`
	APIVersion     string                `gorm:"type:varchar(20);not null;default:'v3'"`
	ConsumerKey    string                `gorm:"type:varchar(255);not null"`
	ConsumerSecret string                `gorm:"type:varchar(255);not null"`
	Active         bool                  `gorm:"not null;index:idx_stores_active"`
	Watermarks     []StoreWatermarkModel `gorm:"foreignKey:StoreID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (StoreModel) TableName() string {
	return "stores"
}

// StoreWatermarkModel stores one lastSync entry of a store.
// (store_id, entity_type) is the primary key so each entry is written by a
// single conditional upsert.
type StoreWatermarkModel struct {
	StoreID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	EntityType string    `gorm:"type:varchar(32);primaryKey"`
	SyncedAt   time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (StoreWatermarkModel) TableName() string {
	return "store_sync_watermarks"
}

// ToDomain converts the persistence model to a domain Store.
func (m *StoreModel) ToDomain() *integration.Store {
	store := &integration.Store{
		ID:         m.ID,
		TenantID:   m.TenantID,
		Name:       m.Name,
		BaseURL:    m.BaseURL,
		APIVersion: m.APIVersion,
		Credentials: integration.Credentials{
			ConsumerKey:    m.ConsumerKey,
			ConsumerSecret: m.ConsumerSecret,
		},
		Active:    m.Active,
		LastSync:  make(integration.Watermarks, len(m.Watermarks)),
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
	for _, w := range m.Watermarks {
		store.LastSync[integration.EntityType(w.EntityType)] = w.SyncedAt.UTC()
	}
	return store
}

// StoreModelFromDomain creates a persistence model from a domain Store.
// Watermarks are written separately.
func StoreModelFromDomain(s *integration.Store) *StoreModel {
	return &StoreModel{
		BaseModel: BaseModel{
			ID:        s.ID,
			CreatedAt: s.CreatedAt,
			UpdatedAt: s.UpdatedAt,
		},
		TenantID:       s.TenantID,
		Name:           s.Name,
		BaseURL:        s.BaseURL,
		APIVersion:     s.APIVersion,
		ConsumerKey:    s.Credentials.ConsumerKey,
		ConsumerSecret: s.Credentials.ConsumerSecret,
		Active:         s.Active,
	}
}

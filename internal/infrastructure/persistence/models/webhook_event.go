package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/erp/commercesync/internal/domain/integration"
)

// WebhookEventModel is the persistence model for an inbound webhook event.
// idx_webhook_events_drain serves the FIFO drain query.
type WebhookEventModel struct {
	ID          uuid.UUID      `gorm:"type:uuid;primary_key"`
	Provider    string         `gorm:"type:varchar(32);not null;index:idx_webhook_events_drain,priority:1"`
	Topic       string         `gorm:"type:varchar(64);not null"`
	StoreID     uuid.UUID      `gorm:"type:uuid;not null;index"`
	Payload     datatypes.JSON `gorm:"column:payload;not null"`
	Status      string         `gorm:"type:varchar(16);not null;index:idx_webhook_events_drain,priority:2"`
	Attempts    int            `gorm:"not null"`
	Error       *string        `gorm:"type:text"`
	ProcessedAt *time.Time
	CreatedAt   time.Time `gorm:"not null;index:idx_webhook_events_drain,priority:3"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (WebhookEventModel) TableName() string {
	return "webhook_events"
}

// ToDomain converts the persistence model to a domain WebhookEvent.
func (m *WebhookEventModel) ToDomain() *integration.WebhookEvent {
	e := &integration.WebhookEvent{
		ID:        m.ID,
		Provider:  m.Provider,
		Topic:     m.Topic,
		StoreID:   m.StoreID,
		Payload:   []byte(m.Payload),
		Status:    integration.WebhookStatus(m.Status),
		Attempts:  m.Attempts,
		Error:     m.Error,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
	if m.ProcessedAt != nil {
		ts := m.ProcessedAt.UTC()
		e.ProcessedAt = &ts
	}
	return e
}

// WebhookEventModelFromDomain creates a persistence model from a domain WebhookEvent.
func WebhookEventModelFromDomain(e *integration.WebhookEvent) *WebhookEventModel {
	return &WebhookEventModel{
		ID:          e.ID,
		Provider:    e.Provider,
		Topic:       e.Topic,
		StoreID:     e.StoreID,
		Payload:     datatypes.JSON(e.Payload),
		Status:      e.Status.String(),
		Attempts:    e.Attempts,
		Error:       e.Error,
		ProcessedAt: e.ProcessedAt,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

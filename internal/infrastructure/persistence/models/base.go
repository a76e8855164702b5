package models

import (
	"time"

	"github.com/google/uuid"
)

// BaseModel provides common persistence fields for all models.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// All returns every persistence model in dependency order, for AutoMigrate in
// tests and local tooling. Production schemas come from migrations/.
func All() []any {
	return []any{
		&StoreModel{},
		&StoreWatermarkModel{},
		&OrderModel{},
		&OrderItemModel{},
		&ProductModel{},
		&WebhookEventModel{},
	}
}

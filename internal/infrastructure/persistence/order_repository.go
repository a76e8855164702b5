package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/commercesync/internal/domain/integration"
	"github.com/erp/commercesync/internal/infrastructure/persistence/models"
)

// GormOrderRepository implements integration.OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// FindByExternalNo finds an order by its natural key, items ordered by position
func (r *GormOrderRepository) FindByExternalNo(ctx context.Context, tenantID uuid.UUID, externalOrderNo string) (*integration.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("tenant_id = ? AND external_order_no = ?", tenantID, externalOrderNo).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrOrderNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Upsert writes the order row by natural key, then replaces the item set.
// The three statements share one transaction, so a failed item insert
// leaves both the previous row and the previous items in place.
func (r *GormOrderRepository) Upsert(ctx context.Context, order *integration.Order) error {
	if order.ExternalOrderNo == "" {
		return integration.ErrMissingOrderKey
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := models.OrderModelFromDomain(order)
		if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "external_order_no"}},
			DoUpdates: clause.AssignmentColumns(models.OrderUpsertColumns),
		}).Create(model).Error; err != nil {
			return fmt.Errorf("upsert order %s: %w", order.ExternalOrderNo, err)
		}

		// A concurrent insert may have won the natural key, so re-read the id.
		var persisted models.OrderModel
		if err := tx.Select("id", "created_at").
			Where("tenant_id = ? AND external_order_no = ?", order.TenantID, order.ExternalOrderNo).
			First(&persisted).Error; err != nil {
			return fmt.Errorf("resolve order %s: %w", order.ExternalOrderNo, err)
		}
		order.ID = persisted.ID
		order.CreatedAt = persisted.CreatedAt.UTC()
		order.BindItems()

		if err := tx.Where("order_id = ?", order.ID).Delete(&models.OrderItemModel{}).Error; err != nil {
			return fmt.Errorf("delete items of order %s: %w", order.ExternalOrderNo, err)
		}
		if len(order.Items) == 0 {
			return nil
		}

		items := models.OrderItemModelsFromDomain(order.Items)
		if err := tx.Create(&items).Error; err != nil {
			return fmt.Errorf("insert items of order %s: %w", order.ExternalOrderNo, err)
		}
		return nil
	})
}

// CountByTenant returns the number of orders of a tenant
func (r *GormOrderRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.OrderModel{}).Where("tenant_id = ?", tenantID).Count(&count).Error
	return count, err
}

// CountItems returns the number of item rows of an order
func (r *GormOrderRepository) CountItems(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.OrderItemModel{}).Where("order_id = ?", orderID).Count(&count).Error
	return count, err
}

// Ensure GormOrderRepository implements OrderRepository
var _ integration.OrderRepository = (*GormOrderRepository)(nil)

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

// GormProductRepository implements integration.ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// FindBySKU finds a product by its natural key
func (r *GormProductRepository) FindBySKU(ctx context.Context, tenantID uuid.UUID, sku string) (*integration.Product, error) {
	var model models.ProductModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND sku = ?", tenantID, sku).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrProductNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Upsert inserts the product or overwrites the row holding the same natural key
func (r *GormProductRepository) Upsert(ctx context.Context, product *integration.Product) error {
	if product.SKU == "" {
		return integration.ErrMissingProductKey
	}
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := models.ProductModelFromDomain(product)
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "sku"}},
			DoUpdates: clause.AssignmentColumns(models.ProductUpsertColumns),
		}).Create(model).Error; err != nil {
			return fmt.Errorf("upsert product %s: %w", product.SKU, err)
		}

		var persisted models.ProductModel
		if err := tx.Select("id", "created_at").
			Where("tenant_id = ? AND sku = ?", product.TenantID, product.SKU).
			First(&persisted).Error; err != nil {
			return fmt.Errorf("resolve product %s: %w", product.SKU, err)
		}
		product.ID = persisted.ID
		product.CreatedAt = persisted.CreatedAt.UTC()
		return nil
	})
}

// CountByTenant returns the number of products of a tenant
func (r *GormProductRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ProductModel{}).Where("tenant_id = ?", tenantID).Count(&count).Error
	return count, err
}

// Ensure GormProductRepository implements ProductRepository
var _ integration.ProductRepository = (*GormProductRepository)(nil)

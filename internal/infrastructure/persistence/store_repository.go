package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/commercesync/internal/domain/integration"
	"github.com/erp/commercesync/internal/infrastructure/persistence/models"
)

// GormStoreRepository implements integration.StoreRepository using GORM
type GormStoreRepository struct {
	db *gorm.DB
}

// NewGormStoreRepository creates a new GormStoreRepository
func NewGormStoreRepository(db *gorm.DB) *GormStoreRepository {
	return &GormStoreRepository{db: db}
}

// FindByID finds a store by ID with its watermarks
func (r *GormStoreRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.Store, error) {
	var model models.StoreModel
	if err := r.db.WithContext(ctx).
		Preload("Watermarks").
		Where("id = ?", id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrStoreNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActive returns all active stores, oldest first
func (r *GormStoreRepository) FindActive(ctx context.Context) ([]*integration.Store, error) {
	var rows []models.StoreModel
	if err := r.db.WithContext(ctx).
		Preload("Watermarks").
		Where("active = ?", true).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	stores := make([]*integration.Store, 0, len(rows))
	for i := range rows {
		stores = append(stores, rows[i].ToDomain())
	}
	return stores, nil
}

// Save creates or updates the store row. Watermarks are only written by AdvanceWatermark.
func (r *GormStoreRepository) Save(ctx context.Context, store *integration.Store) error {
	now := time.Now().UTC()
	if store.ID == uuid.Nil {
		store.ID = uuid.New()
	}
	if store.CreatedAt.IsZero() {
		store.CreatedAt = now
	}
	store.UpdatedAt = now

	model := models.StoreModelFromDomain(store)
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(model).Error
}

// AdvanceWatermark upserts the watermark row, updating it only when ts is
// later than the stored value
func (r *GormStoreRepository) AdvanceWatermark(ctx context.Context, storeID uuid.UUID, entityType integration.EntityType, ts time.Time) (bool, error) {
	if !entityType.IsValid() {
		return false, integration.ErrInvalidEntityType
	}

	row := models.StoreWatermarkModel{
		StoreID:    storeID,
		EntityType: entityType.String(),
		SyncedAt:   ts.UTC().Truncate(time.Microsecond),
		UpdatedAt:  time.Now().UTC(),
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "store_id"}, {Name: "entity_type"}},
		DoUpdates: clause.AssignmentColumns([]string{"synced_at", "updated_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "store_sync_watermarks.synced_at < excluded.synced_at"},
		}},
	}).Create(&row)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Ensure GormStoreRepository implements StoreRepository
var _ integration.StoreRepository = (*GormStoreRepository)(nil)

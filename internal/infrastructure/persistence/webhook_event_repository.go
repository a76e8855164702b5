package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/erp/commercesync/internal/domain/integration"
	"github.com/erp/commercesync/internal/infrastructure/persistence/models"
)

// GormWebhookEventRepository implements integration.WebhookEventRepository using GORM
type GormWebhookEventRepository struct {
	db *gorm.DB
}

// NewGormWebhookEventRepository creates a new GormWebhookEventRepository
func NewGormWebhookEventRepository(db *gorm.DB) *GormWebhookEventRepository {
	return &GormWebhookEventRepository{db: db}
}

// Create appends a new event
func (r *GormWebhookEventRepository) Create(ctx context.Context, event *integration.WebhookEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.UpdatedAt.IsZero() {
		event.UpdatedAt = event.CreatedAt
	}
	return r.db.WithContext(ctx).Create(models.WebhookEventModelFromDomain(event)).Error
}

// FindByID finds an event by ID
func (r *GormWebhookEventRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.WebhookEvent, error) {
	var model models.WebhookEventModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrWebhookEventNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindReceived returns received events of a provider in arrival order
func (r *GormWebhookEventRepository) FindReceived(ctx context.Context, provider string, topicPrefixes []string, limit int) ([]*integration.WebhookEvent, error) {
	if limit <= 0 {
		return []*integration.WebhookEvent{}, nil
	}

	query := r.db.WithContext(ctx).
		Where("provider = ? AND status = ?", provider, integration.WebhookStatusReceived.String())
	if len(topicPrefixes) > 0 {
		topics := r.db.Where("topic LIKE ?", topicPrefixes[0]+"%")
		for _, prefix := range topicPrefixes[1:] {
			topics = topics.Or("topic LIKE ?", prefix+"%")
		}
		query = query.Where(topics)
	}

	var rows []models.WebhookEventModel
	if err := query.
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	events := make([]*integration.WebhookEvent, 0, len(rows))
	for i := range rows {
		events = append(events, rows[i].ToDomain())
	}
	return events, nil
}

// Update writes the state-machine fields. Only rows still in received are
// touched; an event that already left received yields ErrInvalidEventState.
func (r *GormWebhookEventRepository) Update(ctx context.Context, event *integration.WebhookEvent) error {
	result := r.db.WithContext(ctx).
		Model(&models.WebhookEventModel{}).
		Where("id = ? AND status = ?", event.ID, integration.WebhookStatusReceived.String()).
		Updates(map[string]any{
			"status":       event.Status.String(),
			"attempts":     event.Attempts,
			"error":        event.Error,
			"processed_at": event.ProcessedAt,
			"updated_at":   event.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrInvalidEventState
	}
	return nil
}

// CountByStatus returns the number of events per status
func (r *GormWebhookEventRepository) CountByStatus(ctx context.Context) (map[integration.WebhookStatus]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.WebhookEventModel{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[integration.WebhookStatus]int64, len(rows))
	for _, row := range rows {
		counts[integration.WebhookStatus(row.Status)] = row.Count
	}
	return counts, nil
}

// Ensure GormWebhookEventRepository implements WebhookEventRepository
var _ integration.WebhookEventRepository = (*GormWebhookEventRepository)(nil)

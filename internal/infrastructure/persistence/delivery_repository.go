package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dilly/tablebot/internal/domain/delivery"
	"github.com/dilly/tablebot/internal/domain/shared"
	"github.com/dilly/tablebot/internal/infrastructure/persistence/models"
)

// DefaultListLimit caps ListRecent when the caller passes a non-positive limit
const DefaultListLimit = 50

// GormDeliveryRepository implements delivery.Repository using GORM
type GormDeliveryRepository struct {
	db *gorm.DB
}

// NewGormDeliveryRepository creates a new GormDeliveryRepository
func NewGormDeliveryRepository(db *gorm.DB) *GormDeliveryRepository {
	return &GormDeliveryRepository{db: db}
}

// Save inserts the record, or updates it when the message was already recorded
func (r *GormDeliveryRepository) Save(ctx context.Context, d *delivery.Delivery) error {
	model := models.DeliveryModelFromDomain(d)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "message_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"updated_at", "command", "shop_id", "prompt", "target",
				"artifact", "url", "status", "error", "duration_ms",
			}),
		}).
		Create(model).Error
}

// FindByMessageID returns the record for a chat message ID
func (r *GormDeliveryRepository) FindByMessageID(ctx context.Context, messageID string) (*delivery.Delivery, error) {
	var model models.DeliveryModel
	if err := r.db.WithContext(ctx).Where("message_id = ?", messageID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListRecent returns the newest records first
func (r *GormDeliveryRepository) ListRecent(ctx context.Context, limit int) ([]*delivery.Delivery, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var rows []models.DeliveryModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*delivery.Delivery, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// CountByStatus aggregates records per status
func (r *GormDeliveryRepository) CountByStatus(ctx context.Context) (map[delivery.Status]int64, error) {
	var results []struct {
		Status string
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.DeliveryModel{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[delivery.Status]int64, len(results))
	for _, row := range results {
		counts[delivery.Status(row.Status)] = row.Count
	}
	return counts, nil
}

// NoopDeliveryRepository discards records when no database is configured
type NoopDeliveryRepository struct{}

// Save implements delivery.Repository
func (NoopDeliveryRepository) Save(context.Context, *delivery.Delivery) error { return nil }

// FindByMessageID implements delivery.Repository
func (NoopDeliveryRepository) FindByMessageID(context.Context, string) (*delivery.Delivery, error) {
	return nil, shared.ErrNotFound
}

// ListRecent implements delivery.Repository
func (NoopDeliveryRepository) ListRecent(context.Context, int) ([]*delivery.Delivery, error) {
	return nil, nil
}

// CountByStatus implements delivery.Repository
func (NoopDeliveryRepository) CountByStatus(context.Context) (map[delivery.Status]int64, error) {
	return map[delivery.Status]int64{}, nil
}

var (
	_ delivery.Repository = (*GormDeliveryRepository)(nil)
	_ delivery.Repository = NoopDeliveryRepository{}
)

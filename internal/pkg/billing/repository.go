package billing

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/HubSuite/app/models"
)

// Repository persists the raw webhook ledger.
type Repository interface {
	CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	GetWebhookEvent(ctx context.Context, provider, providerEventID string) (*models.BillingWebhookEvent, error)
	GetWebhookEventByID(ctx context.Context, id uint) (*models.BillingWebhookEvent, error)
	MarkWebhookProcessed(ctx context.Context, id uint, outcome, processingError string) error
	ListFailedWebhookEvents(ctx context.Context, limit int) ([]models.BillingWebhookEvent, error)
	ListWebhookEventsByOutcome(ctx context.Context, outcome string, limit int) ([]models.BillingWebhookEvent, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	db := r.db.WithContext(ctx)
	tx := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.BillingWebhookEvent
	if err := db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) GetWebhookEvent(ctx context.Context, provider, providerEventID string) (*models.BillingWebhookEvent, error) {
	var stored models.BillingWebhookEvent
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_event_id = ?", provider, providerEventID).
		First(&stored).Error
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *gormRepository) GetWebhookEventByID(ctx context.Context, id uint) (*models.BillingWebhookEvent, error) {
	var stored models.BillingWebhookEvent
	if err := r.db.WithContext(ctx).First(&stored, id).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(ctx context.Context, id uint, outcome, processingError string) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"outcome":          outcome,
		"processing_error": processingError,
		"attempts":         gorm.Expr("attempts + 1"),
	}
	return r.db.WithContext(ctx).Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

// ListFailedWebhookEvents returns the most recent deliveries that ended in an error.
func (r *gormRepository) ListFailedWebhookEvents(ctx context.Context, limit int) ([]models.BillingWebhookEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var events []models.BillingWebhookEvent
	err := r.db.WithContext(ctx).
		Where("processing_error <> ''").
		Order("updated_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// ListWebhookEventsByOutcome returns the oldest rows whose last attempt ended
// with outcome.
func (r *gormRepository) ListWebhookEventsByOutcome(ctx context.Context, outcome string, limit int) ([]models.BillingWebhookEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var events []models.BillingWebhookEvent
	err := r.db.WithContext(ctx).
		Where("outcome = ?", outcome).
		Order("updated_at ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

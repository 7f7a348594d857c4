package mandates

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bikerent-backend/internal/repo"
	"github.com/angelmondragon/bikerent-backend/pkg/db/models"
	"github.com/angelmondragon/bikerent-backend/pkg/enums"
)

// Repository handles mandate persistence.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Base.WithTx(tx)}
}

func (r *Repository) Create(ctx context.Context, mandate *models.Mandate) error {
	return r.DB(ctx).Create(mandate).Error
}

// FindByID returns nil when absent.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Mandate, error) {
	return repo.First[models.Mandate](r.DB(ctx).Preload("Customer").Where("id = ?", id))
}

// FindBySubscriptionID returns nil when absent.
func (r *Repository) FindBySubscriptionID(ctx context.Context, subscriptionID string) (*models.Mandate, error) {
	return repo.First[models.Mandate](r.DB(ctx).Preload("Customer").Where("merchant_subscription_id = ?", subscriptionID))
}

// List returns all mandates with their customer, newest first.
func (r *Repository) List(ctx context.Context) ([]models.Mandate, error) {
	var out []models.Mandate
	if err := r.DB(ctx).Preload("Customer").Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListPendingSince returns PENDING mandates created at or after since, oldest first.
func (r *Repository) ListPendingSince(ctx context.Context, since time.Time, limit int) ([]models.Mandate, error) {
	var out []models.Mandate
	err := r.DB(ctx).
		Where("status = ? AND created_at >= ?", enums.MandateStatusPending, since.UTC()).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PaymentCounts returns the number of payments per mandate id.
func (r *Repository) PaymentCounts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}
	var rows []struct {
		MandateID uuid.UUID
		Total     int64
	}
	if err := r.DB(ctx).Model(&models.Payment{}).
		Select("mandate_id, COUNT(*) AS total").
		Where("mandate_id IN ?", ids).
		Group("mandate_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.MandateID] = row.Total
	}
	return counts, nil
}

// Update writes the given columns on one mandate.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return r.DB(ctx).Model(&models.Mandate{}).Where("id = ?", id).Updates(fields).Error
}

// UpdateWithTx writes the given columns using the provided transaction.
func (r *Repository) UpdateWithTx(tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	return tx.Model(&models.Mandate{}).Where("id = ?", id).Updates(fields).Error
}

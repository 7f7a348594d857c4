package dashboard

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/bikerent-backend/internal/repo"
	"github.com/angelmondragon/bikerent-backend/pkg/db/models"
	"github.com/angelmondragon/bikerent-backend/pkg/enums"
)

// Repository runs the aggregate queries behind the stats endpoint.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) active(ctx context.Context) *gorm.DB {
	return r.DB(ctx).Model(&models.Mandate{}).Where("status = ?", enums.MandateStatusActive)
}

func (r *Repository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.active(ctx).Count(&count).Error
	return count, err
}

// CountUndebitedSince counts active mandates with no confirmed debit at or after weekStart.
func (r *Repository) CountUndebitedSince(ctx context.Context, weekStart time.Time) (int64, error) {
	var count int64
	err := r.active(ctx).
		Where("(last_debit_date IS NULL OR last_debit_date < ?)", weekStart.UTC()).
		Count(&count).Error
	return count, err
}

// FindOverdue returns active mandates whose last confirmed debit is older than cutoff.
// Mandates never debited are not overdue; they are pending.
func (r *Repository) FindOverdue(ctx context.Context, cutoff time.Time) ([]models.Mandate, error) {
	var out []models.Mandate
	err := r.DB(ctx).
		Preload("Customer").
		Where("status = ? AND last_debit_date < ?", enums.MandateStatusActive, cutoff.UTC()).
		Order("last_debit_date ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SumCollectedSince totals SUCCESS payment amounts created at or after since.
func (r *Repository) SumCollectedSince(ctx context.Context, since time.Time) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.DB(ctx).Model(&models.Payment{}).
		Select("SUM(amount)").
		Where("status = ? AND created_at >= ?", enums.PaymentStatusSuccess, since.UTC()).
		Row().Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

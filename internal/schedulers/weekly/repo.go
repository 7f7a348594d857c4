package weekly

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/bikerent-backend/internal/repo"
	"github.com/angelmondragon/bikerent-backend/pkg/db/models"
	"github.com/angelmondragon/bikerent-backend/pkg/enums"
)

// Repository selects mandates for the weekly run.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// FindEligible returns ACTIVE mandates never debited or last debited at or before cutoff.
func (r *Repository) FindEligible(ctx context.Context, cutoff time.Time) ([]models.Mandate, error) {
	var out []models.Mandate
	err := r.DB(ctx).
		Preload("Customer").
		Where("status = ?", enums.MandateStatusActive).
		Where("(last_debit_date IS NULL OR last_debit_date <= ?)", cutoff.UTC()).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

package customers

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bikerent-backend/internal/repo"
	"github.com/angelmondragon/bikerent-backend/pkg/db/models"
)

// Repository handles customer persistence.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) Create(ctx context.Context, customer *models.Customer) error {
	return r.DB(ctx).Create(customer).Error
}

// FindByID returns nil when the customer does not exist.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	return repo.First[models.Customer](r.DB(ctx).Where("id = ?", id))
}

// List returns customers newest first.
func (r *Repository) List(ctx context.Context) ([]models.Customer, error) {
	var out []models.Customer
	if err := r.DB(ctx).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateContact writes only the provided contact columns.
func (r *Repository) UpdateContact(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return r.DB(ctx).Model(&models.Customer{}).Where("id = ?", id).Updates(fields).Error
}

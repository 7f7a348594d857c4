package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bikerent-backend/internal/repo"
	"github.com/angelmondragon/bikerent-backend/pkg/db/models"
	"github.com/angelmondragon/bikerent-backend/pkg/enums"
	pkgpagination "github.com/angelmondragon/bikerent-backend/pkg/pagination"
)

// Repository handles payment persistence.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// CreateWithTx inserts a payment using the provided transaction.
func (r *Repository) CreateWithTx(tx *gorm.DB, payment *models.Payment) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	return tx.Create(payment).Error
}

// UpdateWithTx writes the given columns using the provided transaction.
func (r *Repository) UpdateWithTx(tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	return tx.Model(&models.Payment{}).Where("id = ?", id).Updates(fields).Error
}

// FindByMerchantOrderID returns nil when absent.
func (r *Repository) FindByMerchantOrderID(ctx context.Context, merchantOrderID string) (*models.Payment, error) {
	return repo.First[models.Payment](r.DB(ctx).Where("merchant_order_id = ?", merchantOrderID))
}

// MostRecentBlocking returns the newest SUCCESS or PENDING payment created after since.
func (r *Repository) MostRecentBlocking(ctx context.Context, mandateID uuid.UUID, since time.Time) (*models.Payment, error) {
	return repo.First[models.Payment](r.DB(ctx).
		Where("mandate_id = ?", mandateID).
		Where("status IN ?", enums.BlockingPaymentStatuses).
		Where("created_at > ?", since.UTC()).
		Order("created_at DESC"))
}

type listQuery struct {
	limit     int
	cursor    *pkgpagination.Cursor
	status    *enums.PaymentStatus
	mandateID *uuid.UUID
}

// List returns payments newest first with their mandate and customer.
func (r *Repository) List(ctx context.Context, opts listQuery) ([]models.Payment, error) {
	query := r.DB(ctx).Model(&models.Payment{}).Preload("Mandate.Customer")

	if opts.status != nil {
		query = query.Where("status = ?", *opts.status)
	}
	if opts.mandateID != nil {
		query = query.Where("mandate_id = ?", *opts.mandateID)
	}
	if opts.cursor != nil {
		query = query.Where("((created_at < ?) OR (created_at = ? AND id < ?))", opts.cursor.CreatedAt, opts.cursor.CreatedAt, opts.cursor.ID)
	}

	query = query.Order("created_at DESC").Order("id DESC").Limit(opts.limit)

	var rows []models.Payment
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

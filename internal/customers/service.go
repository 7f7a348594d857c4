package customers

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/bikerent-backend/pkg/db"
	"github.com/angelmondragon/bikerent-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/bikerent-backend/pkg/errors"
)

type customerRepository interface {
	Create(ctx context.Context, customer *models.Customer) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	List(ctx context.Context) ([]models.Customer, error)
	UpdateContact(ctx context.Context, id uuid.UUID, fields map[string]any) error
}

// Service exposes customer operations for the back-office.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Customer, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	List(ctx context.Context) ([]models.Customer, error)
	UpdateContact(ctx context.Context, id uuid.UUID, input UpdateContactInput) (*models.Customer, error)
}

// CreateInput captures a new rider.
type CreateInput struct {
	Name  string
	UPIID string
	Email string
	Phone *string
}

// UpdateContactInput carries the only mutable customer fields; nil leaves a field unchanged.
type UpdateContactInput struct {
	Email *string
	Phone *string
}

type service struct {
	repo customerRepository
}

func NewService(repo customerRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("customer repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Customer, error) {
	name := strings.TrimSpace(input.Name)
	upi := strings.TrimSpace(input.UPIID)
	email := strings.TrimSpace(input.Email)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if !strings.Contains(upi, "@") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "upiId must be a valid UPI address")
	}
	if !strings.Contains(email, "@") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid email")
	}

	customer := &models.Customer{
		Name:  name,
		UPIID: upi,
		Email: email,
		Phone: normalizePhone(input.Phone),
	}
	if err := s.repo.Create(ctx, customer); err != nil {
		if db.IsUniqueViolation(err, "ux_customers_upi_id", "customers.upi_id") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "customer with this UPI ID already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create customer")
	}
	return customer, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	customer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load customer")
	}
	if customer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
	}
	return customer, nil
}

func (s *service) List(ctx context.Context) ([]models.Customer, error) {
	out, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list customers")
	}
	return out, nil
}

func (s *service) UpdateContact(ctx context.Context, id uuid.UUID, input UpdateContactInput) (*models.Customer, error) {
	fields := map[string]any{}
	if input.Email != nil {
		email := strings.TrimSpace(*input.Email)
		if !strings.Contains(email, "@") {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid email")
		}
		fields["email"] = email
	}
	if input.Phone != nil {
		fields["phone"] = normalizePhone(input.Phone)
	}

	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := s.repo.UpdateContact(ctx, id, fields); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update customer")
		}
	}
	return s.Get(ctx, id)
}

// normalizePhone maps blank input to NULL.
func normalizePhone(phone *string) *string {
	if phone == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*phone)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

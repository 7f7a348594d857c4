package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bikerent-backend/internal/mandates"
	"github.com/angelmondragon/bikerent-backend/internal/tokencache"
	"github.com/angelmondragon/bikerent-backend/pkg/db"
	"github.com/angelmondragon/bikerent-backend/pkg/db/models"
	"github.com/angelmondragon/bikerent-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bikerent-backend/pkg/errors"
	"github.com/angelmondragon/bikerent-backend/pkg/logger"
	pkgpagination "github.com/angelmondragon/bikerent-backend/pkg/pagination"
	"github.com/angelmondragon/bikerent-backend/pkg/phonepe"
	"github.com/angelmondragon/bikerent-backend/pkg/types"
)

const notifyOrderTTL = 48 * time.Hour

type paymentRepository interface {
	CreateWithTx(tx *gorm.DB, payment *models.Payment) error
	FindByMerchantOrderID(ctx context.Context, merchantOrderID string) (*models.Payment, error)
	MostRecentBlocking(ctx context.Context, mandateID uuid.UUID, since time.Time) (*models.Payment, error)
	List(ctx context.Context, opts listQuery) ([]models.Payment, error)
}

type mandateRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Mandate, error)
	UpdateWithTx(tx *gorm.DB, id uuid.UUID, fields map[string]any) error
}

type processor interface {
	Notify(ctx context.Context, token string, body phonepe.NotifyRequest) (json.RawMessage, error)
	Redeem(ctx context.Context, token, merchantOrderID string) (json.RawMessage, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service issues weekly debit notifications and reads payment history.
type Service interface {
	ActiveMandate(ctx context.Context, mandateID uuid.UUID) (*models.Mandate, error)
	TriggerWeeklyNotification(ctx context.Context, mandateID uuid.UUID, merchantOrderID string) (*TriggerResult, error)
	HasRecentPayment(ctx context.Context, mandateID uuid.UUID, window time.Duration) (*RecentPayment, bool, error)
	ExecuteRedemption(ctx context.Context, merchantOrderID string) (json.RawMessage, error)
	List(ctx context.Context, query ListQuery) (*types.Page[models.Payment], error)
}

type TriggerResult struct {
	Payment          *models.Payment `json:"payment"`
	ExternalResponse json.RawMessage `json:"externalResponse"`
}

// RecentPayment is the newest payment that still blocks a new trigger.
type RecentPayment struct {
	PaymentID       uuid.UUID           `json:"paymentId"`
	MerchantOrderID string              `json:"merchantOrderId"`
	Status          enums.PaymentStatus `json:"status"`
	CreatedAt       time.Time           `json:"createdAt"`
	Age             time.Duration       `json:"-"`
}

// DaysSince is the whole number of days since the payment was created.
func (r RecentPayment) DaysSince() int {
	return int(r.Age / (24 * time.Hour))
}

type ListQuery struct {
	pkgpagination.Params
	Status    *enums.PaymentStatus
	MandateID *uuid.UUID
}

type ServiceParams struct {
	Repo      paymentRepository
	Mandates  mandateRepository
	Processor processor
	Tokens    tokencache.Provider
	Tx        txRunner
	Logger    *logger.Logger
	Location  *time.Location
	Now       func() time.Time
}

type service struct {
	repo      paymentRepository
	mandates  mandateRepository
	processor processor
	tokens    tokencache.Provider
	tx        txRunner
	logg      *logger.Logger
	loc       *time.Location
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payment repository required")
	}
	if params.Mandates == nil {
		return nil, fmt.Errorf("mandate repository required")
	}
	if params.Processor == nil {
		return nil, fmt.Errorf("processor client required")
	}
	if params.Tokens == nil {
		return nil, fmt.Errorf("token provider required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:      params.Repo,
		mandates:  params.Mandates,
		processor: params.Processor,
		tokens:    params.Tokens,
		tx:        params.Tx,
		logg:      params.Logger,
		loc:       loc,
		now:       now,
	}, nil
}

// TriggerWeeklyNotification asks the processor to notify the customer of the
// upcoming debit. The processor executes the debit on its own schedule and
// reports the outcome by webhook; only a PENDING payment is written here.
func (s *service) TriggerWeeklyNotification(ctx context.Context, mandateID uuid.UUID, merchantOrderID string) (*TriggerResult, error) {
	merchantOrderID = strings.TrimSpace(merchantOrderID)
	if merchantOrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "merchantOrderId is required")
	}
	mandate, err := s.ActiveMandate(ctx, mandateID)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithOrder(s.logg.WithMandate(ctx, mandate.MerchantSubscriptionID), merchantOrderID)

	token, err := s.tokens.Get(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	window := mandates.DebitWindow(now, s.loc)
	payment := &models.Payment{
		MerchantOrderID: merchantOrderID,
		MandateID:       mandate.ID,
		CustomerID:      mandate.CustomerID,
		CustomerName:    customerName(mandate),
		Amount:          mandate.WeeklyAmount,
		Status:          enums.PaymentStatusPending,
		Type:            enums.PaymentTypeAutomatedWeeklyDebit,
		DebitWindow:     &window,
		CreatedAt:       now.UTC(),
		UpdatedAt:       now.UTC(),
	}

	// The payment row claims the week before anything reaches the processor:
	// a concurrent trigger blocks on the window index and fails without
	// notifying. A rejected notify rolls the claim back.
	var raw json.RawMessage
	var notifyErr error
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.CreateWithTx(tx, payment); err != nil {
			return err
		}
		if err := s.mandates.UpdateWithTx(tx, mandate.ID, map[string]any{
			"next_debit_date": mandates.NextMonday(now, s.loc).UTC(),
		}); err != nil {
			return err
		}
		raw, notifyErr = s.processor.Notify(ctx, token, phonepe.NotifyRequest{
			MerchantOrderID: merchantOrderID,
			Amount:          phonepe.Paise(mandate.WeeklyAmount),
			ExpireAt:        now.Add(notifyOrderTTL).UnixMilli(),
			PaymentFlow: phonepe.NotifyPaymentFlow{
				Type:                    phonepe.FlowSubscriptionRedemption,
				MerchantSubscriptionID:  mandate.MerchantSubscriptionID,
				RedemptionRetryStrategy: phonepe.RetryStrategyStandard,
				AutoDebit:               true,
			},
		})
		return notifyErr
	})
	switch {
	case err == nil:
	case notifyErr != nil:
		s.logg.Error(ctx, "weekly notify rejected by processor", notifyErr)
		return nil, notifyErr
	case db.IsUniqueViolation(err, models.PaymentDebitWindowIndex, "payments.debit_window"):
		s.logg.Warn(ctx, "another payment already holds this week")
		return nil, pkgerrors.Wrap(pkgerrors.CodePreconditionFailed, err, "payment already triggered this week")
	case db.IsUniqueViolation(err, "ux_payments_merchant_order", "payments.merchant_order_id"):
		return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "merchant order id already used")
	case raw != nil:
		// notify accepted but the commit failed; the webhook for this order will not find a payment
		s.logg.Error(s.logg.WithField(ctx, "external_response", string(raw)), "commit failed after processor accepted notify", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record payment")
	default:
		s.logg.Error(ctx, "persist payment", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record payment")
	}

	s.logg.Info(ctx, "weekly payment notification sent")
	return &TriggerResult{Payment: payment, ExternalResponse: raw}, nil
}

// ActiveMandate loads a mandate that may be debited, failing with NOT_FOUND
// or PRECONDITION_FAILED otherwise.
func (s *service) ActiveMandate(ctx context.Context, mandateID uuid.UUID) (*models.Mandate, error) {
	mandate, err := s.mandates.FindByID(ctx, mandateID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load mandate")
	}
	if mandate == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	if mandate.Status != enums.MandateStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodePreconditionFailed, "subscription is not active")
	}
	return mandate, nil
}

// HasRecentPayment is the single recency predicate: a SUCCESS or PENDING
// payment younger than window blocks a new trigger.
func (s *service) HasRecentPayment(ctx context.Context, mandateID uuid.UUID, window time.Duration) (*RecentPayment, bool, error) {
	now := s.now()
	payment, err := s.repo.MostRecentBlocking(ctx, mandateID, now.Add(-window))
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load recent payment")
	}
	if payment == nil {
		return nil, false, nil
	}
	recent := &RecentPayment{
		PaymentID:       payment.ID,
		MerchantOrderID: payment.MerchantOrderID,
		Status:          payment.Status,
		CreatedAt:       payment.CreatedAt,
		Age:             now.Sub(payment.CreatedAt),
	}
	return recent, recent.Age < window, nil
}

func (s *service) ExecuteRedemption(ctx context.Context, merchantOrderID string) (json.RawMessage, error) {
	merchantOrderID = strings.TrimSpace(merchantOrderID)
	if merchantOrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "merchantOrderId is required")
	}
	payment, err := s.repo.FindByMerchantOrderID(ctx, merchantOrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment")
	}
	if payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	ctx = s.logg.WithOrder(ctx, merchantOrderID)

	token, err := s.tokens.Get(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := s.processor.Redeem(ctx, token, merchantOrderID)
	if err != nil {
		s.logg.Error(ctx, "manual redemption rejected by processor", err)
		return nil, err
	}
	s.logg.Info(ctx, "manual redemption requested")
	return raw, nil
}

func (s *service) List(ctx context.Context, query ListQuery) (*types.Page[models.Payment], error) {
	cursor, err := pkgpagination.ParseCursor(query.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pkgpagination.NormalizeLimit(query.Limit)

	rows, err := s.repo.List(ctx, listQuery{
		limit:     pkgpagination.LimitWithBuffer(query.Limit),
		cursor:    cursor,
		status:    query.Status,
		mandateID: query.MandateID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list payments")
	}

	items, next := pkgpagination.Trim(rows, limit, func(p models.Payment) pkgpagination.Cursor {
		return pkgpagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	return &types.Page[models.Payment]{Items: items, NextCursor: next}, nil
}

func customerName(mandate *models.Mandate) string {
	if mandate.Customer != nil {
		return mandate.Customer.Name
	}
	return ""
}

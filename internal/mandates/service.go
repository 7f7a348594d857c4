package mandates

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bikerent-backend/internal/notifications"
	"github.com/angelmondragon/bikerent-backend/internal/tokencache"
	"github.com/angelmondragon/bikerent-backend/pkg/db/models"
	"github.com/angelmondragon/bikerent-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bikerent-backend/pkg/errors"
	"github.com/angelmondragon/bikerent-backend/pkg/logger"
	"github.com/angelmondragon/bikerent-backend/pkg/phonepe"
)

const (
	DefaultFrequency = "WEEKLY"

	setupPennyDropPaise = 200
	setupOrderTTL       = 10 * time.Minute
	subscriptionTTL     = 365 * 24 * time.Hour
	emailTimeout        = 30 * time.Second
)

type mandateRepository interface {
	Create(ctx context.Context, mandate *models.Mandate) error
	FindBySubscriptionID(ctx context.Context, subscriptionID string) (*models.Mandate, error)
	List(ctx context.Context) ([]models.Mandate, error)
	PaymentCounts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int64, error)
	Update(ctx context.Context, id uuid.UUID, fields map[string]any) error
}

type customerLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
}

type processor interface {
	SetupSubscription(ctx context.Context, token string, body phonepe.SetupRequest) (*phonepe.Result[phonepe.SetupResponse], error)
	SubscriptionStatus(ctx context.Context, token, merchantSubscriptionID string) (*phonepe.Result[phonepe.StatusResponse], error)
	Cancel(ctx context.Context, token, merchantSubscriptionID string) (json.RawMessage, error)
}

// Service manages the mandate lifecycle against the processor.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Mandate, json.RawMessage, error)
	CheckStatus(ctx context.Context, subscriptionID string) (*StatusResult, error)
	Cancel(ctx context.Context, subscriptionID string) (json.RawMessage, error)
	Get(ctx context.Context, subscriptionID string) (*models.Mandate, error)
	List(ctx context.Context) ([]MandateView, error)
}

type CreateInput struct {
	CustomerID   uuid.UUID
	WeeklyAmount decimal.Decimal
	Frequency    string
}

type StatusResult struct {
	SubscriptionID   string          `json:"subscriptionId"`
	Status           string          `json:"status"`
	ExternalResponse json.RawMessage `json:"externalResponse"`
}

// MandateView is a mandate annotated for the subscriptions listing.
type MandateView struct {
	models.Mandate
	IsDebitDue         bool  `json:"isDebitDue"`
	DaysUntilNextDebit int   `json:"daysUntilNextDebit"`
	PaymentCount       int64 `json:"paymentCount"`
}

type ServiceParams struct {
	Repo      mandateRepository
	Customers customerLookup
	Processor processor
	Tokens    tokencache.Provider
	// Mailer is optional; when nil or SendEmail is false no mail is sent.
	Mailer    notifications.Mailer
	SendEmail bool
	Logger    *logger.Logger
	Location  *time.Location
	Now       func() time.Time
}

type service struct {
	repo      mandateRepository
	customers customerLookup
	processor processor
	tokens    tokencache.Provider
	mailer    notifications.Mailer
	sendEmail bool
	logg      *logger.Logger
	loc       *time.Location
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("mandate repository required")
	}
	if params.Customers == nil {
		return nil, fmt.Errorf("customer lookup required")
	}
	if params.Processor == nil {
		return nil, fmt.Errorf("processor client required")
	}
	if params.Tokens == nil {
		return nil, fmt.Errorf("token provider required")
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
		customers: params.Customers,
		processor: params.Processor,
		tokens:    params.Tokens,
		mailer:    params.Mailer,
		sendEmail: params.SendEmail,
		logg:      params.Logger,
		loc:       loc,
		now:       now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Mandate, json.RawMessage, error) {
	if input.CustomerID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "customerId is required")
	}
	if !input.WeeklyAmount.IsPositive() {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "weeklyAmount must be greater than zero")
	}
	frequency := strings.ToUpper(strings.TrimSpace(input.Frequency))
	if frequency == "" {
		frequency = DefaultFrequency
	}

	customer, err := s.customers.FindByID(ctx, input.CustomerID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load customer")
	}
	if customer == nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
	}

	now := s.now()
	orderID := NewOrderID(now)
	subscriptionID := NewSubscriptionID(now)
	ctx = s.logg.WithMandate(ctx, subscriptionID)

	token, err := s.tokens.Get(ctx)
	if err != nil {
		return nil, nil, err
	}

	res, err := s.processor.SetupSubscription(ctx, token, phonepe.SetupRequest{
		MerchantOrderID: orderID,
		Amount:          setupPennyDropPaise,
		ExpireAt:        now.Add(setupOrderTTL).UnixMilli(),
		PaymentFlow: phonepe.SetupPaymentFlow{
			Type:                   phonepe.FlowSubscriptionSetup,
			MerchantSubscriptionID: subscriptionID,
			AuthWorkflowType:       phonepe.AuthWorkflowPennyDrop,
			AmountType:             phonepe.AmountTypeFixed,
			MaxAmount:              phonepe.Paise(input.WeeklyAmount),
			Frequency:              frequency,
			ExpireAt:               now.Add(subscriptionTTL).UnixMilli(),
			PaymentMode: phonepe.PaymentMode{
				Type:    phonepe.PaymentModeUPICollect,
				Details: phonepe.PaymentModeDetails{Type: phonepe.PaymentDetailsVPA, VPA: customer.UPIID},
			},
		},
	})
	if err != nil {
		s.logg.Error(ctx, "mandate setup rejected by processor", err)
		return nil, nil, err
	}

	nextDebit := NextMonday(now, s.loc).UTC()
	mandate := &models.Mandate{
		MerchantSubscriptionID: subscriptionID,
		CustomerID:             customer.ID,
		MerchantOrderID:        orderID,
		PhonePeOrderID:         optional(res.Data.OrderID),
		WeeklyAmount:           input.WeeklyAmount,
		Frequency:              frequency,
		Status:                 enums.MandateStatusFromRemote(res.Data.State),
		MandateURL:             optional(res.Data.IntentURL),
		NextDebitDate:          &nextDebit,
		CreatedAt:              now.UTC(),
		UpdatedAt:              now.UTC(),
	}
	if err := s.repo.Create(ctx, mandate); err != nil {
		// The processor already holds this subscription; the id in the log is the way back to it.
		s.logg.Error(ctx, "persist mandate after successful setup", err)
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create mandate")
	}
	mandate.Customer = customer

	s.logg.Info(ctx, "mandate setup initiated")
	s.notifyCustomer(ctx, customer, mandate)
	return mandate, res.Raw, nil
}

// notifyCustomer mails the authorization link in the background; failures are only logged.
func (s *service) notifyCustomer(ctx context.Context, customer *models.Customer, mandate *models.Mandate) {
	if !s.sendEmail || s.mailer == nil || customer.Email == "" || mandate.MandateURL == nil {
		return
	}
	mail := notifications.MandateEmail{To: customer.Email, Name: customer.Name, MandateURL: *mandate.MandateURL}
	bg := context.WithoutCancel(ctx)
	go func() {
		sendCtx, cancel := context.WithTimeout(bg, emailTimeout)
		defer cancel()
		if err := s.mailer.SendMandateLink(sendCtx, mail); err != nil {
			s.logg.Error(sendCtx, "send mandate email", err)
			return
		}
		s.logg.Info(sendCtx, "mandate email sent")
	}()
}

func (s *service) CheckStatus(ctx context.Context, subscriptionID string) (*StatusResult, error) {
	mandate, err := s.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithMandate(ctx, subscriptionID)

	token, err := s.tokens.Get(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.processor.SubscriptionStatus(ctx, token, subscriptionID)
	if err != nil {
		return nil, err
	}

	result := &StatusResult{SubscriptionID: subscriptionID, Status: res.Data.State, ExternalResponse: res.Raw}
	if res.Data.State == "" {
		return result, nil
	}

	now := s.now().UTC()
	status := enums.MandateStatusFromRemote(res.Data.State)
	fields := map[string]any{
		"status":       status,
		"last_checked": now,
	}
	if status == enums.MandateStatusActive {
		if mandate.ActivatedAt == nil {
			fields["activated_at"] = now
		}
		fields["scheduled_for_debit"] = true
		fields["next_debit_date"] = NextMonday(now, s.loc).UTC()
	} else {
		fields["scheduled_for_debit"] = false
	}
	if err := s.repo.Update(ctx, mandate.ID, fields); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update mandate status")
	}
	result.Status = string(status)
	return result, nil
}

func (s *service) Cancel(ctx context.Context, subscriptionID string) (json.RawMessage, error) {
	mandate, err := s.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithMandate(ctx, subscriptionID)

	token, err := s.tokens.Get(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := s.processor.Cancel(ctx, token, subscriptionID)
	if err != nil {
		s.logg.Warn(ctx, "processor refused cancel; mandate left unchanged")
		return nil, err
	}

	if err := s.repo.Update(ctx, mandate.ID, map[string]any{
		"status":       enums.MandateStatusCancelled,
		"cancelled_at": s.now().UTC(),
	}); err != nil {
		s.logg.Error(ctx, "persist cancellation after processor accepted it", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update mandate")
	}
	s.logg.Info(ctx, "mandate cancelled")
	return raw, nil
}

func (s *service) Get(ctx context.Context, subscriptionID string) (*models.Mandate, error) {
	subscriptionID = strings.TrimSpace(subscriptionID)
	if subscriptionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscriptionId is required")
	}
	mandate, err := s.repo.FindBySubscriptionID(ctx, subscriptionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load mandate")
	}
	if mandate == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	return mandate, nil
}

func (s *service) List(ctx context.Context) ([]MandateView, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list mandates")
	}
	ids := make([]uuid.UUID, 0, len(list))
	for _, m := range list {
		ids = append(ids, m.ID)
	}
	counts, err := s.repo.PaymentCounts(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count payments")
	}

	now := s.now()
	daysUntil := DaysUntilMonday(now, s.loc)
	out := make([]MandateView, 0, len(list))
	for _, m := range list {
		out = append(out, MandateView{
			Mandate:            m,
			IsDebitDue:         m.Status == enums.MandateStatusActive && IsDebitDue(m.LastDebitDate, now),
			DaysUntilNextDebit: daysUntil,
			PaymentCount:       counts[m.ID],
		})
	}
	return out, nil
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

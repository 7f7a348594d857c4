package phonepewebhook

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bikerent-backend/pkg/db/models"
	"github.com/angelmondragon/bikerent-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bikerent-backend/pkg/errors"
	"github.com/angelmondragon/bikerent-backend/pkg/logger"
	"github.com/angelmondragon/bikerent-backend/pkg/metrics"
)

// Result describes what a delivery did to local state.
type Result string

const (
	ResultApplied Result = "applied"
	// ResultNoop means the event was valid but local state already reflected it.
	ResultNoop    Result = "noop"
	ResultIgnored Result = "ignored"
)

const debitInterval = 7 * 24 * time.Hour

type mandateRepository interface {
	FindBySubscriptionID(ctx context.Context, subscriptionID string) (*models.Mandate, error)
	Update(ctx context.Context, id uuid.UUID, fields map[string]any) error
	UpdateWithTx(tx *gorm.DB, id uuid.UUID, fields map[string]any) error
}

type paymentRepository interface {
	FindByMerchantOrderID(ctx context.Context, merchantOrderID string) (*models.Payment, error)
	UpdateWithTx(tx *gorm.DB, id uuid.UUID, fields map[string]any) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Mandates          mandateRepository
	Payments          paymentRepository
	TransactionRunner txRunner
	Logger            *logger.Logger
	Metrics           *metrics.PaymentMetrics
	Now               func() time.Time
}

// Service reconciles local mandate and payment state with processor callbacks.
type Service struct {
	mandates mandateRepository
	payments paymentRepository
	txRunner txRunner
	logg     *logger.Logger
	metrics  *metrics.PaymentMetrics
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Mandates == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "mandate repo required")
	}
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment repo required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		mandates: params.Mandates,
		payments: params.Payments,
		txRunner: params.TransactionRunner,
		logg:     params.Logger,
		metrics:  params.Metrics,
		now:      now,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *Event) (Result, error) {
	if event == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "webhook event required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"event": event.Name, "event_kind": event.Kind.String()})

	result, err := s.dispatch(ctx, event)
	if err != nil {
		s.metrics.IncWebhook(event.Kind.String(), "error")
		return "", err
	}
	s.metrics.IncWebhook(event.Kind.String(), string(result))
	return result, nil
}

func (s *Service) dispatch(ctx context.Context, event *Event) (Result, error) {
	now := s.now().UTC()
	payload := event.Payload

	switch event.Kind {
	case EventSetupCompleted:
		return s.updateMandate(ctx, payload.PaymentFlow.MerchantSubscriptionID, func(m *models.Mandate) map[string]any {
			fields := map[string]any{
				"status":              enums.MandateStatusActive,
				"scheduled_for_debit": true,
				"last_webhook_at":     now,
			}
			if m.ActivatedAt == nil {
				fields["activated_at"] = now
			}
			return fields
		})
	case EventSetupFailed:
		return s.updateMandate(ctx, payload.PaymentFlow.MerchantSubscriptionID, func(*models.Mandate) map[string]any {
			return map[string]any{
				"status":          enums.MandateStatusFailed,
				"last_webhook_at": now,
			}
		})
	case EventCancelled:
		return s.updateMandate(ctx, payload.SubscriptionID(), func(m *models.Mandate) map[string]any {
			if m.Status == enums.MandateStatusCancelled {
				return nil
			}
			return map[string]any{
				"status":          enums.MandateStatusCancelled,
				"cancelled_at":    now,
				"last_webhook_at": now,
			}
		})
	case EventPaused:
		return s.updateMandate(ctx, payload.SubscriptionID(), func(*models.Mandate) map[string]any {
			return map[string]any{
				"status":              enums.MandateStatusPaused,
				"scheduled_for_debit": false,
				"last_webhook_at":     now,
			}
		})
	case EventUnpaused:
		return s.updateMandate(ctx, payload.SubscriptionID(), func(*models.Mandate) map[string]any {
			return map[string]any{
				"status":              enums.MandateStatusActive,
				"scheduled_for_debit": true,
				"last_webhook_at":     now,
			}
		})
	case EventRedemptionCompleted:
		return s.settlePayment(ctx, payload, enums.PaymentStatusSuccess, now)
	case EventRedemptionFailed:
		return s.settlePayment(ctx, payload, enums.PaymentStatusFailed, now)
	case EventUnknown:
		s.logg.Info(ctx, "ignoring unrecognized webhook event")
		return ResultIgnored, nil
	default:
		return "", pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("unhandled event kind %d", event.Kind))
	}
}

// updateMandate applies the fields built from the current mandate. A nil
// field set means the event is already reflected locally.
func (s *Service) updateMandate(ctx context.Context, subscriptionID string, build func(*models.Mandate) map[string]any) (Result, error) {
	if subscriptionID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "merchantSubscriptionId missing")
	}
	ctx = s.logg.WithMandate(ctx, subscriptionID)

	mandate, err := s.mandates.FindBySubscriptionID(ctx, subscriptionID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load mandate")
	}
	if mandate == nil {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}

	fields := build(mandate)
	if len(fields) == 0 {
		s.logg.Info(ctx, "mandate already reflects webhook")
		return ResultNoop, nil
	}
	if err := s.mandates.Update(ctx, mandate.ID, fields); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update mandate")
	}
	s.logg.Info(s.logg.WithField(ctx, "status", fields["status"]), "mandate updated from webhook")
	return ResultApplied, nil
}

// settlePayment records the processor's verdict on a weekly debit. The
// transaction id is written once; later deliveries for a settled payment are no-ops.
func (s *Service) settlePayment(ctx context.Context, payload Payload, status enums.PaymentStatus, now time.Time) (Result, error) {
	transactionID := payload.TransactionID()
	if transactionID == "" {
		s.logg.Info(ctx, "redemption event without transaction id ignored")
		return ResultIgnored, nil
	}
	if payload.MerchantOrderID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "merchantOrderId missing")
	}
	ctx = s.logg.WithOrder(ctx, payload.MerchantOrderID)

	payment, err := s.payments.FindByMerchantOrderID(ctx, payload.MerchantOrderID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment")
	}
	if payment == nil {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	if payment.Status.IsTerminal() {
		s.logg.Info(s.logg.WithField(ctx, "status", payment.Status), "payment already settled")
		return ResultNoop, nil
	}

	fields := map[string]any{
		"status":              status,
		"transaction_id":      transactionID,
		"webhook_received_at": now,
	}
	if status == enums.PaymentStatusFailed {
		fields["debit_window"] = nil
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.payments.UpdateWithTx(tx, payment.ID, fields); err != nil {
			return err
		}
		if status != enums.PaymentStatusSuccess {
			return nil
		}
		return s.mandates.UpdateWithTx(tx, payment.MandateID, map[string]any{
			"last_debit_date": now,
			"next_debit_date": now.Add(debitInterval),
		})
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "settle payment")
	}
	s.logg.Info(s.logg.WithField(ctx, "status", status), "payment settled from webhook")
	return ResultApplied, nil
}

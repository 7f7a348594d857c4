package weekly

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bikerent-backend/internal/mandates"
	"github.com/angelmondragon/bikerent-backend/internal/payments"
	"github.com/angelmondragon/bikerent-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/bikerent-backend/pkg/errors"
	"github.com/angelmondragon/bikerent-backend/pkg/logger"
	"github.com/angelmondragon/bikerent-backend/pkg/metrics"
)

const (
	NotMondayMessage     = "Not Monday - payments only processed on Mondays"
	RunMessage           = "Monday payment notifications processed with duplicate prevention. PhonePe will execute payments within 24 hours."
	ForcedRunMessage     = "TEST: Payment notifications processed with duplicate prevention. PhonePe will execute payments within 24 hours."
	resultMessage        = "Monday payment notification sent successfully"
	forcedResultMessage  = "TEST: Payment notification sent successfully"
	unknownCustomerLabel = "Unknown"
)

type eligibleRepo interface {
	FindEligible(ctx context.Context, cutoff time.Time) ([]models.Mandate, error)
}

type recencyChecker interface {
	HasRecentPayment(ctx context.Context, mandateID uuid.UUID, window time.Duration) (*payments.RecentPayment, bool, error)
}

type trigger interface {
	TriggerIfDue(ctx context.Context, mandateID uuid.UUID, merchantOrderID, source string) (*payments.TriggerResult, error)
}

// RunReport summarizes one weekly run.
type RunReport struct {
	Date           time.Time `json:"date"`
	Skipped        bool      `json:"skipped,omitempty"`
	TestMode       bool      `json:"testMode,omitempty"`
	TotalFound     int       `json:"totalFound"`
	TotalProcessed int       `json:"totalProcessed"`
	SuccessCount   int       `json:"successCount"`
	FailureCount   int       `json:"failureCount"`
	SkippedCount   int       `json:"skippedCount"`
	Results        []Result  `json:"results"`
	Message        string    `json:"message"`
}

// Result is the outcome for one mandate.
type Result struct {
	MandateID    uuid.UUID        `json:"subscriptionId"`
	CustomerName string           `json:"customerName"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
	Success      bool             `json:"success"`
	PaymentID    *uuid.UUID       `json:"paymentId,omitempty"`
	Error        string           `json:"error,omitempty"`
	Message      string           `json:"message,omitempty"`
}

type ServiceParams struct {
	Logger   *logger.Logger
	Repo     eligibleRepo
	Payments recencyChecker
	Guard    trigger
	Metrics  *metrics.PaymentMetrics
	Location *time.Location
	Now      func() time.Time
}

// Service runs the Monday notification sweep.
type Service struct {
	logg     *logger.Logger
	repo     eligibleRepo
	payments recencyChecker
	guard    trigger
	metrics  *metrics.PaymentMetrics
	loc      *time.Location
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("mandate repository required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment service required")
	}
	if params.Guard == nil {
		return nil, fmt.Errorf("payment guard required")
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logg:     params.Logger,
		repo:     params.Repo,
		payments: params.Payments,
		guard:    params.Guard,
		metrics:  params.Metrics,
		loc:      loc,
		now:      now,
	}, nil
}

// ProcessWeeklyRun notifies every due mandate, but only on Mondays in the configured zone.
func (s *Service) ProcessWeeklyRun(ctx context.Context) (*RunReport, error) {
	now := s.now()
	if !mandates.IsMonday(now, s.loc) {
		s.logg.Info(s.logg.WithField(ctx, "weekday", now.In(s.loc).Weekday().String()), "not Monday; weekly run skipped")
		return &RunReport{Date: now.UTC(), Skipped: true, Results: []Result{}, Message: NotMondayMessage}, nil
	}
	return s.process(ctx, now, false)
}

// ProcessWeeklyRunForce runs the same sweep without the Monday gate.
func (s *Service) ProcessWeeklyRunForce(ctx context.Context) (*RunReport, error) {
	return s.process(ctx, s.now(), true)
}

func (s *Service) process(ctx context.Context, now time.Time, forced bool) (*RunReport, error) {
	candidates, err := s.repo.FindEligible(ctx, now.Add(-payments.RecencyWindow))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load eligible mandates")
	}

	due := make([]models.Mandate, 0, len(candidates))
	var lookupFailures []Result
	for _, mandate := range candidates {
		recent, blocked, err := s.payments.HasRecentPayment(ctx, mandate.ID, payments.RecencyWindow)
		if err != nil {
			s.metrics.IncNotification(payments.SourceScheduler, metrics.OutcomeFailed)
			s.logg.Error(s.logg.WithMandate(ctx, mandate.MerchantSubscriptionID), "recent payment lookup failed", err)
			result := newResult(mandate)
			result.Error = errorMessage(err)
			lookupFailures = append(lookupFailures, result)
			continue
		}
		if blocked {
			s.metrics.IncNotification(payments.SourceScheduler, metrics.OutcomeSkipped)
			s.logg.Info(s.logg.WithFields(ctx, map[string]any{
				"merchant_subscription_id": mandate.MerchantSubscriptionID,
				"days_since_last_payment":  recent.DaysSince(),
			}), "skipping mandate with recent payment")
			continue
		}
		due = append(due, mandate)
	}

	report := &RunReport{
		Date:           now.UTC(),
		TestMode:       forced,
		TotalFound:     len(candidates),
		TotalProcessed: len(due) + len(lookupFailures),
		FailureCount:   len(lookupFailures),
		SkippedCount:   len(candidates) - len(due) - len(lookupFailures),
		Results:        append(make([]Result, 0, len(due)+len(lookupFailures)), lookupFailures...),
		Message:        RunMessage,
	}
	okMessage := resultMessage
	if forced {
		report.Message = ForcedRunMessage
		okMessage = forcedResultMessage
	}

	for _, mandate := range due {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		mctx := s.logg.WithMandate(ctx, mandate.MerchantSubscriptionID)
		result := newResult(mandate)

		triggered, err := s.guard.TriggerIfDue(mctx, mandate.ID, mandates.NewOrderID(s.now()), payments.SourceScheduler)
		if err != nil {
			s.logg.Error(mctx, "weekly notification failed", err)
			result.Error = errorMessage(err)
			report.FailureCount++
			report.Results = append(report.Results, result)
			continue
		}

		amount := mandate.WeeklyAmount
		paymentID := triggered.Payment.ID
		result.Amount = &amount
		result.Success = true
		result.PaymentID = &paymentID
		result.Message = okMessage
		report.SuccessCount++
		report.Results = append(report.Results, result)
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"total_found":   report.TotalFound,
		"success_count": report.SuccessCount,
		"failure_count": report.FailureCount,
		"skipped_count": report.SkippedCount,
		"forced":        forced,
	}), "weekly payment run completed")
	return report, nil
}

func errorMessage(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Message()
	}
	return err.Error()
}

func newResult(mandate models.Mandate) Result {
	result := Result{MandateID: mandate.ID, CustomerName: unknownCustomerLabel}
	if mandate.Customer != nil {
		result.CustomerName = mandate.Customer.Name
	}
	return result
}

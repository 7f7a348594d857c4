package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/bikerent-backend/pkg/errors"
	"github.com/angelmondragon/bikerent-backend/pkg/metrics"
)

// RecencyWindow is how long a SUCCESS or PENDING payment blocks the next trigger.
const RecencyWindow = 6 * 24 * time.Hour

// Notification sources recorded in metrics.
const (
	SourceScheduler = "scheduler"
	SourceManual    = "manual"
)

// RecentPaymentDetails is returned to operators when a trigger is blocked.
type RecentPaymentDetails struct {
	LastPaymentDate      time.Time `json:"lastPaymentDate"`
	DaysSinceLastPayment int       `json:"daysSinceLastPayment"`
}

// RecentPaymentError builds the PRECONDITION_FAILED error for a blocked trigger.
func RecentPaymentError(recent *RecentPayment) *pkgerrors.Error {
	days := recent.DaysSince()
	return pkgerrors.New(
		pkgerrors.CodePreconditionFailed,
		fmt.Sprintf("Payment was already triggered %d days ago. Please wait until next Monday.", days),
	).WithDetails(RecentPaymentDetails{LastPaymentDate: recent.CreatedAt, DaysSinceLastPayment: days})
}

// Guard applies the recency predicate in front of every trigger.
type Guard struct {
	payments Service
	metrics  *metrics.PaymentMetrics
	window   time.Duration
}

// NewGuard wraps svc; m may be nil.
func NewGuard(svc Service, m *metrics.PaymentMetrics) (*Guard, error) {
	if svc == nil {
		return nil, fmt.Errorf("payment service required")
	}
	return &Guard{payments: svc, metrics: m, window: RecencyWindow}, nil
}

// TriggerIfDue sends the weekly notification unless the mandate is not
// active or a recent payment blocks it, checked in that order.
func (g *Guard) TriggerIfDue(ctx context.Context, mandateID uuid.UUID, merchantOrderID, source string) (*TriggerResult, error) {
	if _, err := g.payments.ActiveMandate(ctx, mandateID); err != nil {
		g.metrics.IncNotification(source, metrics.OutcomeFailed)
		return nil, err
	}
	recent, blocked, err := g.payments.HasRecentPayment(ctx, mandateID, g.window)
	if err != nil {
		g.metrics.IncNotification(source, metrics.OutcomeFailed)
		return nil, err
	}
	if blocked {
		g.metrics.IncNotification(source, metrics.OutcomeSkipped)
		return nil, RecentPaymentError(recent)
	}

	result, err := g.payments.TriggerWeeklyNotification(ctx, mandateID, merchantOrderID)
	if err != nil {
		g.metrics.IncNotification(source, metrics.OutcomeFailed)
		return nil, err
	}
	g.metrics.IncNotification(source, metrics.OutcomeTriggered)
	return result, nil
}

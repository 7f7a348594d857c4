package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bikerent-backend/internal/mandates"
	"github.com/angelmondragon/bikerent-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/bikerent-backend/pkg/errors"
)

const week = 7 * 24 * time.Hour

type statsRepository interface {
	CountActive(ctx context.Context) (int64, error)
	CountUndebitedSince(ctx context.Context, weekStart time.Time) (int64, error)
	FindOverdue(ctx context.Context, cutoff time.Time) ([]models.Mandate, error)
	SumCollectedSince(ctx context.Context, since time.Time) (decimal.Decimal, error)
}

// Service computes the back-office headline numbers.
type Service interface {
	Stats(ctx context.Context) (*Stats, error)
}

// Stats is the dashboard payload.
type Stats struct {
	ActiveMandates       int64            `json:"activeMandates"`
	PendingThisWeek      int64            `json:"pendingThisWeek"`
	OverdueCount         int              `json:"overdueCount"`
	OverdueSubscriptions []OverdueMandate `json:"overdueSubscriptions"`
	MonthlyCollection    decimal.Decimal  `json:"monthlyCollection"`
}

// OverdueMandate is an active mandate more than a week past its last debit.
type OverdueMandate struct {
	models.Mandate
	WeeksOverdue int `json:"weeksOverdue"`
}

type ServiceParams struct {
	Repo     statsRepository
	Location *time.Location
	Now      func() time.Time
}

type service struct {
	repo statsRepository
	loc  *time.Location
	now  func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("dashboard repository required")
	}
	loc := params.Location
	if loc == nil {
		loc = time.Local
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{repo: params.Repo, loc: loc, now: now}, nil
}

func (s *service) Stats(ctx context.Context) (*Stats, error) {
	now := s.now()

	active, err := s.repo.CountActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count active mandates")
	}
	pending, err := s.repo.CountUndebitedSince(ctx, mandates.WeekStartLocal(now, s.loc))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count pending mandates")
	}
	overdue, err := s.repo.FindOverdue(ctx, now.Add(-week))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load overdue mandates")
	}
	collected, err := s.repo.SumCollectedSince(ctx, monthStart(now, s.loc))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sum monthly collection")
	}

	stats := &Stats{
		ActiveMandates:       active,
		PendingThisWeek:      pending,
		OverdueCount:         len(overdue),
		OverdueSubscriptions: make([]OverdueMandate, 0, len(overdue)),
		MonthlyCollection:    collected,
	}
	for _, m := range overdue {
		stats.OverdueSubscriptions = append(stats.OverdueSubscriptions, OverdueMandate{
			Mandate:      m,
			WeeksOverdue: weeksSince(m, now),
		})
	}
	return stats, nil
}

func weeksSince(m models.Mandate, now time.Time) int {
	from := m.CreatedAt
	if m.LastDebitDate != nil {
		from = *m.LastDebitDate
	}
	return int(now.Sub(from) / week)
}

func monthStart(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
}

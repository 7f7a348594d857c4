package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/bikerent-backend/internal/mandates"
	"github.com/angelmondragon/bikerent-backend/pkg/db/models"
	"github.com/angelmondragon/bikerent-backend/pkg/logger"
)

const (
	defaultStatusSyncLimit    = 100
	defaultStatusSyncLookback = 7 * 24 * time.Hour
)

type pendingMandateLister interface {
	ListPendingSince(ctx context.Context, since time.Time, limit int) ([]models.Mandate, error)
}

type statusChecker interface {
	CheckStatus(ctx context.Context, subscriptionID string) (*mandates.StatusResult, error)
}

// MandateStatusJobParams configures the pending-mandate poller.
type MandateStatusJobParams struct {
	Logger   *logger.Logger
	Repo     pendingMandateLister
	Mandates statusChecker
	Limit    int
	Lookback time.Duration
	Now      func() time.Time
}

// NewMandateStatusJob polls the processor for recently created mandates still
// PENDING, covering setup webhooks that never arrived.
func NewMandateStatusJob(params MandateStatusJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("mandate repository required")
	}
	if params.Mandates == nil {
		return nil, fmt.Errorf("mandate service required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultStatusSyncLimit
	}
	lookback := params.Lookback
	if lookback <= 0 {
		lookback = defaultStatusSyncLookback
	}
	return &mandateStatusJob{
		logg:     params.Logger,
		repo:     params.Repo,
		mandates: params.Mandates,
		limit:    limit,
		lookback: lookback,
		now:      now,
	}, nil
}

type mandateStatusJob struct {
	logg     *logger.Logger
	repo     pendingMandateLister
	mandates statusChecker
	limit    int
	lookback time.Duration
	now      func() time.Time
}

func (j *mandateStatusJob) Name() string { return "mandate-status-sync" }

func (j *mandateStatusJob) Run(ctx context.Context) error {
	pending, err := j.repo.ListPendingSince(ctx, j.now().Add(-j.lookback), j.limit)
	if err != nil {
		return fmt.Errorf("list pending mandates: %w", err)
	}

	var errs error
	changed := 0
	for _, m := range pending {
		result, err := j.mandates.CheckStatus(ctx, m.MerchantSubscriptionID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("check %s: %w", m.MerchantSubscriptionID, err))
			continue
		}
		if result.Status != string(m.Status) {
			changed++
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"candidates": len(pending),
		"changed":    changed,
	}), "mandate status sync complete")
	return errs
}

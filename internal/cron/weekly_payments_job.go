package cron

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/bikerent-backend/internal/schedulers/weekly"
	"github.com/angelmondragon/bikerent-backend/pkg/logger"
)

type weeklyRunner interface {
	ProcessWeeklyRun(ctx context.Context) (*weekly.RunReport, error)
}

// WeeklyPaymentsJobParams configures the weekly debit job.
type WeeklyPaymentsJobParams struct {
	Logger    *logger.Logger
	Scheduler weeklyRunner
}

// NewWeeklyPaymentsJob wraps the weekly scheduler. Outside Monday the scheduler
// skips on its own; repeated Monday cycles are no-ops once every mandate is notified.
func NewWeeklyPaymentsJob(params WeeklyPaymentsJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Scheduler == nil {
		return nil, fmt.Errorf("weekly scheduler required")
	}
	return &weeklyPaymentsJob{logg: params.Logger, scheduler: params.Scheduler}, nil
}

type weeklyPaymentsJob struct {
	logg      *logger.Logger
	scheduler weeklyRunner
}

func (j *weeklyPaymentsJob) Name() string { return "weekly-payments" }

func (j *weeklyPaymentsJob) Run(ctx context.Context) error {
	report, err := j.scheduler.ProcessWeeklyRun(ctx)
	if err != nil {
		return fmt.Errorf("weekly run: %w", err)
	}
	if report.Skipped {
		j.logg.Debug(ctx, report.Message)
		return nil
	}

	var errs error
	for _, result := range report.Results {
		if result.Success {
			continue
		}
		errs = multierr.Append(errs, fmt.Errorf("mandate %s: %w", result.MandateID, errors.New(result.Error)))
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"found":     report.TotalFound,
		"processed": report.TotalProcessed,
		"succeeded": report.SuccessCount,
		"failed":    report.FailureCount,
		"skipped":   report.SkippedCount,
	}), "weekly payments job complete")
	return errs
}

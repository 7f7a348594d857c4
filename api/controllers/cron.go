package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/bikerent-backend/api/responses"
	"github.com/angelmondragon/bikerent-backend/internal/schedulers/weekly"
	pkgerrors "github.com/angelmondragon/bikerent-backend/pkg/errors"
	"github.com/angelmondragon/bikerent-backend/pkg/logger"
)

// WeeklyRunner is satisfied by the weekly scheduler service.
type WeeklyRunner interface {
	ProcessWeeklyRun(ctx context.Context) (*weekly.RunReport, error)
	ProcessWeeklyRunForce(ctx context.Context) (*weekly.RunReport, error)
}

// CronWeeklyPayments runs the Monday sweep on demand from an external scheduler.
func CronWeeklyPayments(runner WeeklyRunner, logg *logger.Logger) http.HandlerFunc {
	return cronHandler(runner, false, logg)
}

// CronTestWeeklyPayments runs the sweep regardless of weekday.
func CronTestWeeklyPayments(runner WeeklyRunner, logg *logger.Logger) http.HandlerFunc {
	return cronHandler(runner, true, logg)
}

func cronHandler(runner WeeklyRunner, force bool, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if runner == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "weekly scheduler unavailable"))
			return
		}

		run := runner.ProcessWeeklyRun
		if force {
			run = runner.ProcessWeeklyRunForce
		}
		report, err := run(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if logg != nil {
			ctx := logg.WithFields(r.Context(), map[string]any{
				"forced":    force,
				"skipped":   report.Skipped,
				"found":     report.TotalFound,
				"succeeded": report.SuccessCount,
				"failed":    report.FailureCount,
			})
			logg.Info(ctx, "cron.weekly_payments.completed")
		}
		responses.WriteSuccess(w, report)
	}
}

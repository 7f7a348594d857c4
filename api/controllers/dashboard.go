package controllers

import (
	"net/http"

	"github.com/angelmondragon/bikerent-backend/api/responses"
	"github.com/angelmondragon/bikerent-backend/internal/dashboard"
	pkgerrors "github.com/angelmondragon/bikerent-backend/pkg/errors"
	"github.com/angelmondragon/bikerent-backend/pkg/logger"
)

func DashboardStats(svc dashboard.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dashboard service unavailable"))
			return
		}
		stats, err := svc.Stats(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

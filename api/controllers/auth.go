package controllers

import (
	"net/http"

	"github.com/angelmondragon/bikerent-backend/api/middleware"
	"github.com/angelmondragon/bikerent-backend/api/responses"
	"github.com/angelmondragon/bikerent-backend/api/validators"
	"github.com/angelmondragon/bikerent-backend/internal/auth"
	pkgerrors "github.com/angelmondragon/bikerent-backend/pkg/errors"
	"github.com/angelmondragon/bikerent-backend/pkg/logger"
)

// AuthLogin exchanges operator credentials for a bearer token.
func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var body auth.LoginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithField(ctx, "username", body.Username)
		}
		result, err := svc.Login(ctx, body)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		// bearer tokens must not land in shared caches
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		responses.WriteSuccess(w, result)
	}
}

// AuthLogout revokes the session behind the caller's token.
func AuthLogout(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}
		if err := svc.Logout(r.Context(), middleware.SessionIDFromContext(r.Context())); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"loggedOut": true})
	}
}

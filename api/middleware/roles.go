package middleware

import (
	"net/http"

	"github.com/angelmondragon/bikerent-backend/api/responses"
	pkgerrors "github.com/angelmondragon/bikerent-backend/pkg/errors"
	"github.com/angelmondragon/bikerent-backend/pkg/logger"
)

// RequireRole admits requests whose token role is one of allowed. It must run
// after Auth; a missing role means Auth was skipped.
func RequireRole(logg *logger.Logger, allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		set[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			if role == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
				return
			}
			if _, ok := set[role]; !ok {
				ctx := r.Context()
				if logg != nil {
					ctx = logg.WithFields(ctx, map[string]any{"role": role, "admin": AdminFromContext(ctx)})
				}
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "operator role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package middleware

import "context"

type contextKey string

const (
	ctxAdmin     contextKey = "admin"
	ctxRole      contextKey = "actor_role"
	ctxSessionID contextKey = "session_id"
)

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// AdminFromContext returns the authenticated operator's username.
func AdminFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxAdmin)
}

func RoleFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxRole)
}

// SessionIDFromContext returns the JWT id of the current session.
func SessionIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxSessionID)
}

// WithAdmin seeds the context the way Auth does; handler tests use it to skip token parsing.
func WithAdmin(ctx context.Context, username, role, sessionID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxAdmin, username)
	ctx = context.WithValue(ctx, ctxRole, role)
	return context.WithValue(ctx, ctxSessionID, sessionID)
}

package middleware

import "context"

type contextKey struct{ name string }

var (
	userIDKey   = contextKey{"user_id"}
	adminKey    = contextKey{"admin"}
	clientIPKey = contextKey{"client_ip"}
)

// WithIdentity returns a context with user_id and the admin flag set.
// Handlers read these via GetUserID and IsAdmin.
func WithIdentity(ctx context.Context, userID string, admin bool) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	ctx = context.WithValue(ctx, adminKey, admin)
	return ctx
}

// GetUserID returns the user_id from context and true if set; otherwise "", false.
func GetUserID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userIDKey).(string)
	return v, ok
}

// IsAdmin reports whether the authenticated caller carries the admin claim.
func IsAdmin(ctx context.Context) bool {
	v, ok := ctx.Value(adminKey).(bool)
	return ok && v
}

// WithClientIP returns a context carrying the client address for audit records.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIPFromContext returns the client IP stored by the request middleware,
// or "unknown" when none was recorded.
func ClientIPFromContext(ctx context.Context) string {
	v, ok := ctx.Value(clientIPKey).(string)
	if !ok || v == "" {
		return "unknown"
	}
	return v
}

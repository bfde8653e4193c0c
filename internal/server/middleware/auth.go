// Package middleware holds the HTTP middleware chain: bearer auth, identity
// propagation, and request telemetry.
package middleware

import (
	"net"
	"net/http"
	"strings"

	"wellness-at-work/backend/internal/httpapi"
	"wellness-at-work/backend/internal/security"
)

const bearerPrefix = "bearer "

// Auth returns middleware that validates the Bearer access token and sets
// user_id and the admin flag in the request context. Requests without a valid
// token are rejected with 401; route groups that are public simply do not
// mount this middleware.
func Auth(tokens *security.TokenProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			token := extractBearer(r)
			if token == "" {
				httpapi.Unauthorized(rw)
				return
			}
			userID, admin, err := tokens.ValidateAccess(token)
			if err != nil {
				httpapi.Unauthorized(rw)
				return
			}
			next.ServeHTTP(rw, r.WithContext(WithIdentity(r.Context(), userID, admin)))
		})
	}
}

// extractBearer returns the Bearer token from the Authorization header, or ""
// if missing or malformed.
func extractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

// RecordClientIP stores the client address in the request context so the
// audit logger can read it without holding the request.
func RecordClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(rw, r.WithContext(WithClientIP(r.Context(), ClientIP(r))))
	})
}

// ClientIP returns the client address for audit records. Proxy headers are
// trusted because the service only runs behind the deployment's ingress.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	if real := r.Header.Get("X-Real-Ip"); real != "" {
		return strings.TrimSpace(real)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Package server assembles the chi router: middleware chain, public routes,
// and the authenticated API surface.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	healthhandler "wellness-at-work/backend/internal/health/handler"
	identityhandler "wellness-at-work/backend/internal/identity/handler"
	samplehandler "wellness-at-work/backend/internal/sample/handler"
	"wellness-at-work/backend/internal/security"
	"wellness-at-work/backend/internal/server/middleware"
	sessionhandler "wellness-at-work/backend/internal/session/handler"
	"wellness-at-work/backend/internal/telemetry/producer"
	userhandler "wellness-at-work/backend/internal/user/handler"
)

// Deps holds the handlers and cross-cutting dependencies for the router.
type Deps struct {
	Tokens   *security.TokenProvider
	Auth     *identityhandler.AuthHandler
	Users    *userhandler.UserHandler
	Samples  *samplehandler.SampleHandler
	Sessions *sessionhandler.SessionHandler
	Health   *healthhandler.HealthHandler
	// Producer receives per-request telemetry events. May be nil.
	Producer producer.Producer
	// CORSAllowedOrigins for the web dashboard. Empty disables CORS headers.
	CORSAllowedOrigins []string
}

// NewRouter builds the HTTP router.
//
// Route map:
//   - GET  /health                           → health/handler (public)
//   - POST /v1/auth/login                    → identity/handler (public)
//   - POST /v1/auth/set-password             → identity/handler
//   - GET|DELETE /v1/me                      → user/handler
//   - POST|GET /v1/blinks, /v1/blinks/summary → sample/handler
//   - POST|GET /v1/sessions...               → session/handler
//   - GET /v1/admin/users/{userID}/blinks    → sample/handler (admin claim)
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	if len(deps.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   deps.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(middleware.RecordClientIP)
	requestTelemetry := middleware.Telemetry(deps.Producer, map[string]bool{"/health": true})

	// Public routes.
	r.Group(func(r chi.Router) {
		r.Use(requestTelemetry)
		if deps.Health != nil {
			deps.Health.Register(r)
		}
		if deps.Auth != nil {
			deps.Auth.RegisterPublic(r)
		}
	})

	// Authenticated routes. Telemetry mounts after auth so events carry the
	// caller's user id.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(deps.Tokens))
		r.Use(requestTelemetry)
		if deps.Auth != nil {
			deps.Auth.RegisterProtected(r)
		}
		if deps.Users != nil {
			deps.Users.Register(r)
		}
		if deps.Samples != nil {
			deps.Samples.Register(r)
			deps.Samples.RegisterAdmin(r)
		}
		if deps.Sessions != nil {
			deps.Sessions.Register(r)
		}
	})

	return r
}

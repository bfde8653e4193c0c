// Package handler exposes the auth endpoints.
package handler

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"wellness-at-work/backend/internal/audit"
	"wellness-at-work/backend/internal/httpapi"
	"wellness-at-work/backend/internal/identity/service"
	"wellness-at-work/backend/internal/platform/authz"
	userdomain "wellness-at-work/backend/internal/user/domain"
)

// AuthHandler serves the /v1/auth endpoints.
type AuthHandler struct {
	auth    *service.AuthService
	auditor audit.AuditLogger
}

// NewAuthHandler returns an AuthHandler backed by the given auth service. auditor may be nil.
func NewAuthHandler(auth *service.AuthService, auditor audit.AuditLogger) *AuthHandler {
	return &AuthHandler{auth: auth, auditor: auditor}
}

// RegisterPublic mounts the routes that do not require a Bearer token.
func (h *AuthHandler) RegisterPublic(r chi.Router) {
	r.Post("/v1/auth/login", h.login)
}

// RegisterProtected mounts the routes that require an authenticated caller.
func (h *AuthHandler) RegisterProtected(r chi.Router) {
	r.Post("/v1/auth/set-password", h.setPassword)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        userResponse `json:"user"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Consent   bool      `json:"consent"`
	IsAdmin   bool      `json:"is_admin,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u *userdomain.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Consent:   u.HasConsent(),
		IsAdmin:   u.IsAdmin,
		CreatedAt: u.CreatedAt,
	}
}

func (h *AuthHandler) login(rw http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httpapi.Read(rw, r, &req) {
		return
	}
	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInvalidEmail):
			httpapi.Write(rw, http.StatusUnauthorized, httpapi.Response{Message: "invalid credentials"})
		default:
			log.Printf("auth: login failed: %v", err)
			httpapi.InternalError(rw)
		}
		return
	}
	if h.auditor != nil {
		h.auditor.LogEvent(r.Context(), res.User.ID, "login", "auth", "")
	}
	httpapi.Write(rw, http.StatusOK, loginResponse{
		AccessToken: res.AccessToken,
		TokenType:   "bearer",
		ExpiresAt:   res.ExpiresAt,
		User:        toUserResponse(res.User),
	})
}

type setPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8"`
}

func (h *AuthHandler) setPassword(rw http.ResponseWriter, r *http.Request) {
	userID, err := authz.RequireUser(r.Context())
	if err != nil {
		httpapi.Unauthorized(rw)
		return
	}
	var req setPasswordRequest
	if !httpapi.Read(rw, r, &req) {
		return
	}
	if err := h.auth.SetPassword(r.Context(), userID, req.Password); err != nil {
		log.Printf("auth: set password for %s: %v", userID, err)
		httpapi.InternalError(rw)
		return
	}
	if h.auditor != nil {
		h.auditor.LogEvent(r.Context(), userID, "password_change", "auth", "")
	}
	httpapi.Write(rw, http.StatusOK, httpapi.Response{Message: "password updated"})
}

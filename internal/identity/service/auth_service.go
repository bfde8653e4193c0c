// Package service implements email/password authentication for the desktop
// client and the web dashboard.
package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"wellness-at-work/backend/internal/security"
	userdomain "wellness-at-work/backend/internal/user/domain"
)

// Sentinel errors for the auth service; handlers map them to HTTP statuses.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email format")
)

// AuthResult holds the outcome of Login: the access token and the user it
// authenticates.
type AuthResult struct {
	AccessToken string
	ExpiresAt   time.Time
	User        *userdomain.User
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
	SetPassword(ctx context.Context, userID, passwordHash string) error
}

// AuthService implements password login with first-login auto-provisioning.
type AuthService struct {
	userRepo UserRepo
	hasher   *security.Hasher
	tokens   *security.TokenProvider
}

// NewAuthService returns an AuthService with the given dependencies.
func NewAuthService(userRepo UserRepo, hasher *security.Hasher, tokens *security.TokenProvider) *AuthService {
	return &AuthService{userRepo: userRepo, hasher: hasher, tokens: tokens}
}

// Login authenticates with email/password and returns an access token.
//
// Unknown emails are provisioned on the spot: the account is created with the
// submitted password, a name derived from the email local part, and telemetry
// consent granted, since the desktop client shows the consent screen before
// its first login. Existing accounts must match the stored password hash.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if password == "" {
		return nil, ErrInvalidCredentials
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		user, err = s.provision(ctx, email, password)
		if err != nil {
			return nil, err
		}
	} else {
		if user.PasswordHash == "" {
			return nil, ErrInvalidCredentials
		}
		if err := s.hasher.Compare(user.PasswordHash, []byte(password)); err != nil {
			return nil, ErrInvalidCredentials
		}
	}
	token, expiresAt, err := s.tokens.IssueAccess(user.ID, user.IsAdmin)
	if err != nil {
		return nil, err
	}
	return &AuthResult{AccessToken: token, ExpiresAt: expiresAt, User: user}, nil
}

// SetPassword re-hashes and stores a new password for the user.
func (s *AuthService) SetPassword(ctx context.Context, userID, password string) error {
	if password == "" {
		return ErrInvalidCredentials
	}
	hashed, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return err
	}
	return s.userRepo.SetPassword(ctx, userID, hashed)
}

func (s *AuthService) provision(ctx context.Context, email, password string) (*userdomain.User, error) {
	hashed, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	user := &userdomain.User{
		ID:               uuid.New().String(),
		Email:            email,
		Name:             strings.SplitN(email, "@", 2)[0],
		PasswordHash:     hashed,
		ConsentGrantedAt: &now,
		CreatedAt:        now,
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func validateEmail(email string) error {
	if email == "" {
		return ErrInvalidEmail
	}
	const simpleEmail = `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	ok, _ := regexp.MatchString(simpleEmail, email)
	if !ok {
		return ErrInvalidEmail
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"wellness-at-work/backend/internal/user/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectColumns = `id, email, name, password_hash, is_admin, consent_granted_at, created_at`

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByEmail returns the user with the given email, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// Create persists the user to the database. The user must have ID set; it is not assigned by this method.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	consent := sql.NullTime{}
	if u.ConsentGrantedAt != nil {
		consent = sql.NullTime{Time: u.ConsentGrantedAt.UTC(), Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, password_hash, is_admin, consent_granted_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.IsAdmin, consent, u.CreatedAt)
	return err
}

// SetPassword replaces the user's password hash. No-op if the user does not exist.
func (r *PostgresRepository) SetPassword(ctx context.Context, userID, passwordHash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2 WHERE id = $1`, userID, passwordHash)
	return err
}

// GrantConsent records telemetry consent. The WHERE clause makes the first
// grant stick so the audit trail keeps the original timestamp.
func (r *PostgresRepository) GrantConsent(ctx context.Context, userID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET consent_granted_at = $2 WHERE id = $1 AND consent_granted_at IS NULL`,
		userID, at.UTC())
	return err
}

// HasConsent reports whether the user exists and has granted telemetry
// consent. A missing user reads as no consent, not an error.
func (r *PostgresRepository) HasConsent(ctx context.Context, userID string) (bool, error) {
	var granted sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT consent_granted_at FROM users WHERE id = $1`, userID).Scan(&granted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return granted.Valid, nil
}

// Delete removes the user row. blink_samples and tracking_sessions reference
// users with ON DELETE CASCADE, so erasure is a single statement.
func (r *PostgresRepository) Delete(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	return err
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	var consent sql.NullTime
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.IsAdmin, &consent, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if consent.Valid {
		t := consent.Time
		u.ConsentGrantedAt = &t
	}
	return &u, nil
}

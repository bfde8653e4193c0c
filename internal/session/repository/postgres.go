package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"wellness-at-work/backend/internal/session/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const upsertSQL = `
INSERT INTO tracking_sessions
    (user_id, client_session_id, device_id, app_version, started_at, ended_at,
     declared_total_blinks, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (user_id, client_session_id) DO UPDATE SET
    device_id = EXCLUDED.device_id,
    app_version = EXCLUDED.app_version,
    started_at = EXCLUDED.started_at,
    ended_at = EXCLUDED.ended_at,
    declared_total_blinks = EXCLUDED.declared_total_blinks,
    updated_at = EXCLUDED.updated_at`

// Upsert persists the declared session, last writer wins.
func (r *PostgresRepository) Upsert(ctx context.Context, s *domain.Session) error {
	updatedAt := s.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	ended := sql.NullTime{}
	if s.EndedAt != nil {
		ended = sql.NullTime{Time: s.EndedAt.UTC(), Valid: true}
	}
	declared := sql.NullInt64{}
	if s.DeclaredTotalBlinks != nil {
		declared = sql.NullInt64{Int64: int64(*s.DeclaredTotalBlinks), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, upsertSQL,
		s.UserID, s.ClientSessionID, s.DeviceID, s.AppVersion,
		s.StartedAt.UTC(), ended, declared, updatedAt)
	return err
}

const selectColumns = `user_id, client_session_id, device_id, app_version,
    started_at, ended_at, declared_total_blinks, updated_at`

// GetByID returns the declared session for the key, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, userID, clientSessionID string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM tracking_sessions WHERE user_id = $1 AND client_session_id = $2`,
		userID, clientSessionID)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// ListByUser returns all declared sessions for the user, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM tracking_sessions WHERE user_id = $1 ORDER BY started_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteByUser removes all declared sessions owned by userID.
func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tracking_sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var s domain.Session
	var ended sql.NullTime
	var declared sql.NullInt64
	err := row.Scan(&s.UserID, &s.ClientSessionID, &s.DeviceID, &s.AppVersion,
		&s.StartedAt, &ended, &declared, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if ended.Valid {
		t := ended.Time
		s.EndedAt = &t
	}
	if declared.Valid {
		n := int(declared.Int64)
		s.DeclaredTotalBlinks = &n
	}
	return &s, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"wellness-at-work/backend/internal/sample/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a sample repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const insertIfAbsentSQL = `
INSERT INTO blink_samples
    (user_id, device_id, client_sequence, client_session_id, captured_at,
     blink_count, app_version, cpu_percent, memory_mb, energy_impact, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT ON CONSTRAINT blink_samples_idempotency_key DO NOTHING`

// InsertIfAbsent writes the sample unless its idempotency key exists. The
// unique constraint makes the check-and-insert atomic under concurrency.
func (r *PostgresRepository) InsertIfAbsent(ctx context.Context, s *domain.Sample) (bool, error) {
	createdAt := s.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, insertIfAbsentSQL,
		s.UserID, s.DeviceID, s.ClientSequence, nullStringFromPtr(s.ClientSessionID),
		s.CapturedAt.UTC(), s.BlinkCount, s.AppVersion,
		nullFloatFromPtr(s.CPUPercent), nullFloatFromPtr(s.MemoryMB),
		nullStringFromPtr(s.EnergyImpact), createdAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

const listColumns = `id, user_id, device_id, client_sequence, client_session_id,
    captured_at, blink_count, app_version, cpu_percent, memory_mb, energy_impact, created_at`

// ListByUser returns the user's samples in deterministic order: captured_at,
// then the idempotency key (device_id, client_sequence) to break ties.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, f ListFilter) ([]*domain.Sample, error) {
	var b strings.Builder
	args := []interface{}{userID}
	fmt.Fprintf(&b, "SELECT %s FROM blink_samples WHERE user_id = $1", listColumns)
	if f.From != nil {
		args = append(args, f.From.UTC())
		fmt.Fprintf(&b, " AND captured_at >= $%d", len(args))
	}
	if f.To != nil {
		args = append(args, f.To.UTC())
		fmt.Fprintf(&b, " AND captured_at <= $%d", len(args))
	}
	dir := "ASC"
	if f.Descending {
		dir = "DESC"
	}
	fmt.Fprintf(&b, " ORDER BY captured_at %s, device_id %s, client_sequence %s", dir, dir, dir)
	if f.Limit > 0 {
		args = append(args, f.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Sample
	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

const summarizeSQL = `
SELECT COALESCE(SUM(blink_count), 0), COUNT(*),
       AVG(blink_count::double precision), AVG(cpu_percent), AVG(memory_mb)
FROM blink_samples
WHERE user_id = $1`

// SummarizeRange aggregates over matching samples. SQL AVG skips NULLs, which
// is exactly the per-field "mean over present values" the summary requires.
func (r *PostgresRepository) SummarizeRange(ctx context.Context, userID string, from, to *time.Time) (*domain.RangeSummary, error) {
	q := summarizeSQL
	args := []interface{}{userID}
	if from != nil {
		args = append(args, from.UTC())
		q += fmt.Sprintf(" AND captured_at >= $%d", len(args))
	}
	if to != nil {
		args = append(args, to.UTC())
		q += fmt.Sprintf(" AND captured_at <= $%d", len(args))
	}

	var sum domain.RangeSummary
	var avgBlinks, avgCPU, avgMem sql.NullFloat64
	err := r.db.QueryRowContext(ctx, q, args...).Scan(
		&sum.TotalBlinks, &sum.SampleCount, &avgBlinks, &avgCPU, &avgMem)
	if err != nil {
		return nil, err
	}
	sum.AvgBlinks = ptrFromNullFloat(avgBlinks)
	sum.AvgCPUPercent = ptrFromNullFloat(avgCPU)
	sum.AvgMemoryMB = ptrFromNullFloat(avgMem)
	return &sum, nil
}

const aggregateSessionsSQL = `
SELECT client_session_id, COALESCE(SUM(blink_count), 0), COUNT(*),
       MIN(captured_at), MAX(captured_at), AVG(cpu_percent), AVG(memory_mb)
FROM blink_samples
WHERE user_id = $1 AND client_session_id IS NOT NULL
GROUP BY client_session_id
ORDER BY MIN(captured_at) DESC`

// AggregateSessions reduces each tagged session's samples to one row. The
// reduction is a pure function of the stored set, so arrival order and batch
// grouping cannot change the result.
func (r *PostgresRepository) AggregateSessions(ctx context.Context, userID string) ([]*domain.SessionAggregate, error) {
	rows, err := r.db.QueryContext(ctx, aggregateSessionsSQL, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.SessionAggregate
	for rows.Next() {
		agg, err := scanSessionAggregate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, agg)
	}
	return out, rows.Err()
}

const aggregateSessionSQL = `
SELECT client_session_id, COALESCE(SUM(blink_count), 0), COUNT(*),
       MIN(captured_at), MAX(captured_at), AVG(cpu_percent), AVG(memory_mb)
FROM blink_samples
WHERE user_id = $1 AND client_session_id = $2
GROUP BY client_session_id`

// AggregateSession returns the aggregate for one session, or nil when the
// session has no stored samples. It returns an error only for database failures.
func (r *PostgresRepository) AggregateSession(ctx context.Context, userID, clientSessionID string) (*domain.SessionAggregate, error) {
	row := r.db.QueryRowContext(ctx, aggregateSessionSQL, userID, clientSessionID)
	agg, err := scanSessionAggregate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return agg, nil
}

// DeleteByUser removes all samples owned by userID and returns the row count.
func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM blink_samples WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Ping verifies connectivity to the store.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSample(row rowScanner) (*domain.Sample, error) {
	var s domain.Sample
	var sessionID, energy sql.NullString
	var cpu, mem sql.NullFloat64
	err := row.Scan(&s.ID, &s.UserID, &s.DeviceID, &s.ClientSequence, &sessionID,
		&s.CapturedAt, &s.BlinkCount, &s.AppVersion, &cpu, &mem, &energy, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	s.ClientSessionID = ptrFromNullString(sessionID)
	s.CPUPercent = ptrFromNullFloat(cpu)
	s.MemoryMB = ptrFromNullFloat(mem)
	s.EnergyImpact = ptrFromNullString(energy)
	return &s, nil
}

func scanSessionAggregate(row rowScanner) (*domain.SessionAggregate, error) {
	var agg domain.SessionAggregate
	var avgCPU, avgMem sql.NullFloat64
	err := row.Scan(&agg.ClientSessionID, &agg.TotalBlinks, &agg.SampleCount,
		&agg.FirstCapturedAt, &agg.LastCapturedAt, &avgCPU, &avgMem)
	if err != nil {
		return nil, err
	}
	agg.AvgCPUPercent = ptrFromNullFloat(avgCPU)
	agg.AvgMemoryMB = ptrFromNullFloat(avgMem)
	return &agg, nil
}

func nullStringFromPtr(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func ptrFromNullString(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	return &n.String
}

func nullFloatFromPtr(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func ptrFromNullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	return &n.Float64
}

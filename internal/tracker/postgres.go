package tracker

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresStore persists tracker records in Postgres. The duplicate
// guards ride on the unique keys in schema.sql: inserts use
// ON CONFLICT DO NOTHING so the check and the write are one statement.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store over an open connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

func (r *PostgresStore) CreateUser(ctx context.Context, u User) (User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = RoleStudent
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, name, role, password_hash)
		VALUES ($1, lower($2), $3, $4, $5)
		RETURNING created_at
	`, u.ID, u.Email, u.Name, u.Role, u.PasswordHash)
	if err := row.Scan(&u.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrEmailTaken
		}
		return User{}, err
	}
	return u, nil
}

func (r *PostgresStore) UserByID(ctx context.Context, id string) (*User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, name, role, password_hash, created_at
		FROM users WHERE id = $1
	`, id)
	return scanUser(row)
}

func (r *PostgresStore) UserByEmail(ctx context.Context, email string) (*User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, name, role, password_hash, created_at
		FROM users WHERE email = lower($1)
	`, email)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *PostgresStore) ListStudents(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email, name, role, password_hash, created_at
		FROM users WHERE role = 'student'
		ORDER BY email
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.PasswordHash, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *PostgresStore) InsertSubmission(ctx context.Context, s Submission) (Submission, bool, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = SubmissionPending
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO submissions (id, user_id, date_key, image_url, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, date_key) DO NOTHING
		RETURNING created_at
	`, s.ID, s.UserID, s.DateKey, s.ImageURL, s.Status)
	if err := row.Scan(&s.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// conflict: the day already has a submission
			return Submission{}, false, nil
		}
		return Submission{}, false, err
	}
	return s, true, nil
}

func (r *PostgresStore) SubmissionByID(ctx context.Context, id string) (*Submission, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, date_key, image_url, status, created_at
		FROM submissions WHERE id = $1
	`, id)
	var s Submission
	if err := row.Scan(&s.ID, &s.UserID, &s.DateKey, &s.ImageURL, &s.Status, &s.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *PostgresStore) ListSubmissions(ctx context.Context, userID string) ([]Submission, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, date_key, image_url, status, created_at
		FROM submissions
		WHERE user_id = $1
		ORDER BY date_key DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Submission
	for rows.Next() {
		var s Submission
		if err := rows.Scan(&s.ID, &s.UserID, &s.DateKey, &s.ImageURL, &s.Status, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PostgresStore) SubmissionDays(ctx context.Context, userID string, keys []string) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT date_key FROM submissions
		WHERE user_id = $1 AND date_key = ANY($2)
	`, userID, keys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	set := make(map[string]bool, len(keys))
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		set[k] = true
	}
	return set, rows.Err()
}

func (r *PostgresStore) SetSubmissionStatus(ctx context.Context, id string, status SubmissionStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE submissions SET status = $2
		WHERE id = $1 AND status = 'pending'
	`, id, status)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *PostgresStore) InsertLeave(ctx context.Context, l LeaveRequest) (LeaveRequest, error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Status == "" {
		l.Status = LeavePending
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO leaves (id, user_id, month, date_key, reason, status, kind, skip_next_day)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING requested_at
	`, l.ID, l.UserID, l.Month, l.DateKey, l.Reason, l.Status, l.Kind, l.SkipNextDay)
	if err := row.Scan(&l.RequestedAt); err != nil {
		return LeaveRequest{}, err
	}
	return l, nil
}

func (r *PostgresStore) LeaveByID(ctx context.Context, id string) (*LeaveRequest, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, month, date_key, reason, status, kind, skip_next_day, requested_at
		FROM leaves WHERE id = $1
	`, id)
	var l LeaveRequest
	if err := row.Scan(&l.ID, &l.UserID, &l.Month, &l.DateKey, &l.Reason, &l.Status, &l.Kind, &l.SkipNextDay, &l.RequestedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

func (r *PostgresStore) ListLeaves(ctx context.Context, userID string) ([]LeaveRequest, error) {
	return r.queryLeaves(ctx, `
		SELECT id, user_id, month, date_key, reason, status, kind, skip_next_day, requested_at
		FROM leaves WHERE user_id = $1
		ORDER BY date_key DESC
	`, userID)
}

func (r *PostgresStore) LeavesByMonth(ctx context.Context, userID, month string) ([]LeaveRequest, error) {
	return r.queryLeaves(ctx, `
		SELECT id, user_id, month, date_key, reason, status, kind, skip_next_day, requested_at
		FROM leaves WHERE user_id = $1 AND month = $2
		ORDER BY date_key DESC
	`, userID, month)
}

func (r *PostgresStore) queryLeaves(ctx context.Context, query string, args ...any) ([]LeaveRequest, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LeaveRequest
	for rows.Next() {
		var l LeaveRequest
		if err := rows.Scan(&l.ID, &l.UserID, &l.Month, &l.DateKey, &l.Reason, &l.Status, &l.Kind, &l.SkipNextDay, &l.RequestedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *PostgresStore) SetLeaveStatus(ctx context.Context, id string, status LeaveStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE leaves SET status = $2
		WHERE id = $1 AND status = 'pending'
	`, id, status)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *PostgresStore) InsertBonus(ctx context.Context, b BonusGrant) (bool, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO bonuses (id, user_id, week_start_key)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, week_start_key) DO NOTHING
		RETURNING awarded_at
	`, b.ID, b.UserID, b.WeekStartKey)
	var awardedAt time.Time
	if err := row.Scan(&awardedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *PostgresStore) CountBonuses(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT count(*) FROM bonuses WHERE user_id = $1
	`, userID).Scan(&n)
	return n, err
}

func (r *PostgresStore) ListBonuses(ctx context.Context, userID string) ([]BonusGrant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, week_start_key, awarded_at
		FROM bonuses WHERE user_id = $1
		ORDER BY week_start_key DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BonusGrant
	for rows.Next() {
		var b BonusGrant
		if err := rows.Scan(&b.ID, &b.UserID, &b.WeekStartKey, &b.AwardedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

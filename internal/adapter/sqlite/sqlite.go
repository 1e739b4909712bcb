// Package sqlite implements the domain repositories on an embedded SQLite
// database, for single-device deployments that run without PostgreSQL.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"stepcounter/internal/domain"
)

var (
	_ domain.StepRepository    = (*DB)(nil)
	_ domain.UserRepository    = (*DB)(nil)
	_ domain.SessionRepository = (*SessionRepo)(nil)
)

// DB implements the repositories on SQLite.
type DB struct {
	sql *sql.DB
}

// Open opens (or creates) the database at path and initializes the schema.
// Use ":memory:" for a throwaway database.
func Open(path string) (*DB, error) {
	s, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer keeps SQLite from returning SQLITE_BUSY and keeps
	// ":memory:" databases on a single connection.
	s.SetMaxOpenConns(1)

	d := &DB{sql: s}
	if err := d.initialize(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return d, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) initialize() error {
	schema := `
	PRAGMA journal_mode = WAL;
	PRAGMA foreign_keys = ON;
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		user_agent TEXT NOT NULL DEFAULT '',
		ip TEXT NOT NULL DEFAULT '',
		expires_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
	CREATE TABLE IF NOT EXISTS step_state (
		user_id INTEGER PRIMARY KEY,
		current_day TEXT NOT NULL,
		steps_today INTEGER NOT NULL CHECK(steps_today >= 0),
		last_sensor_value INTEGER NOT NULL CHECK(last_sensor_value >= 0),
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS daily_steps (
		user_id INTEGER NOT NULL,
		day TEXT NOT NULL,
		steps INTEGER NOT NULL CHECK(steps >= 0),
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, day)
	);
	`
	_, err := d.sql.Exec(schema)
	return err
}

// --- StepRepository ---

// LoadStepState returns the saved state for a user, or the zero state.
func (d *DB) LoadStepState(ctx context.Context, userID int64) (domain.StepState, error) {
	var (
		st  domain.StepState
		day string
	)
	err := d.sql.QueryRowContext(ctx,
		"SELECT current_day, steps_today, last_sensor_value FROM step_state WHERE user_id = ?", userID,
	).Scan(&day, &st.StepsToday, &st.LastRawValue)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StepState{}, nil
	}
	if err != nil {
		return domain.StepState{}, fmt.Errorf("query step_state: %w", err)
	}
	if st.Day, err = domain.ParseDay(day); err != nil {
		return domain.StepState{}, fmt.Errorf("step_state.current_day: %w", err)
	}
	return st, nil
}

// SaveStepState upserts the state and the day's running total.
func (d *DB) SaveStepState(ctx context.Context, userID int64, st domain.StepState) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().Unix()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO step_state (user_id, current_day, steps_today, last_sensor_value, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET current_day = excluded.current_day, steps_today = excluded.steps_today,
		   last_sensor_value = excluded.last_sensor_value, updated_at = excluded.updated_at`,
		userID, st.Day.String(), st.StepsToday, st.LastRawValue, now,
	); err != nil {
		return fmt.Errorf("upsert step_state: %w", err)
	}
	if !st.Day.IsZero() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO daily_steps (user_id, day, steps, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT (user_id, day) DO UPDATE SET steps = excluded.steps, updated_at = excluded.updated_at`,
			userID, st.Day.String(), st.StepsToday, now,
		); err != nil {
			return fmt.Errorf("upsert daily_steps: %w", err)
		}
	}
	return tx.Commit()
}

// ListDailySteps returns recorded totals within [from, to], oldest first.
func (d *DB) ListDailySteps(ctx context.Context, userID int64, from, to domain.Day) ([]domain.DailySteps, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT day, steps FROM daily_steps WHERE user_id = ? AND day >= ? AND day <= ? ORDER BY day",
		userID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("query daily_steps: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.DailySteps
	for rows.Next() {
		var (
			day string
			ds  domain.DailySteps
		)
		if err := rows.Scan(&day, &ds.Steps); err != nil {
			return nil, err
		}
		if ds.Day, err = domain.ParseDay(day); err != nil {
			return nil, fmt.Errorf("daily_steps.day: %w", err)
		}
		out = append(out, ds)
	}
	return out, rows.Err()
}

// --- UserRepository ---

func (d *DB) queryUser(ctx context.Context, where string, arg any) (*domain.User, error) {
	var (
		u       domain.User
		created int64
	)
	err := d.sql.QueryRowContext(ctx,
		"SELECT id, username, password_hash, created_at FROM users WHERE "+where+" = ?", arg,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = time.Unix(created, 0).UTC()
	return &u, nil
}

// GetByUsername retrieves a user by username.
func (d *DB) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return d.queryUser(ctx, "username", username)
}

// GetByID retrieves a user by ID.
func (d *DB) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return d.queryUser(ctx, "id", id)
}

// Create creates a new user.
func (d *DB) Create(ctx context.Context, username, passwordHash string) (*domain.User, error) {
	now := time.Now().UTC().Truncate(time.Second)
	res, err := d.sql.ExecContext(ctx,
		"INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)",
		username, passwordHash, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &domain.User{ID: id, Username: username, PasswordHash: passwordHash, CreatedAt: now}, nil
}

// Count returns the total number of users.
func (d *DB) Count(ctx context.Context) (int, error) {
	var n int
	err := d.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n)
	return n, err
}

// --- SessionRepository ---

// SessionRepo implements session persistence on DB.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo wraps a DB as a SessionRepository.
func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Create creates a new session.
func (r *SessionRepo) Create(ctx context.Context, userID int64, token, userAgent, ip string, expiresAt time.Time) error {
	_, err := r.db.sql.ExecContext(ctx,
		"INSERT INTO sessions (token, user_id, user_agent, ip, expires_at, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		token, userID, userAgent, ip, expiresAt.Unix(), time.Now().Unix())
	return err
}

// GetByToken retrieves a session by token.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	var (
		s                domain.Session
		expires, created int64
	)
	err := r.db.sql.QueryRowContext(ctx,
		"SELECT token, user_id, user_agent, ip, expires_at, created_at FROM sessions WHERE token = ?", token,
	).Scan(&s.Token, &s.UserID, &s.UserAgent, &s.IP, &expires, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.ExpiresAt = time.Unix(expires, 0).UTC()
	s.CreatedAt = time.Unix(created, 0).UTC()
	return &s, nil
}

// Delete deletes a session by token.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	_, err := r.db.sql.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token)
	return err
}

// DeleteExpired deletes all expired sessions.
func (r *SessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.sql.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at < ?", time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

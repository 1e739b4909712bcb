// Package memory implements an in-memory repository for development and testing.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"stepcounter/internal/domain"
)

type dayKey struct {
	userID int64
	day    domain.Day
}

// DB implements an in-memory database storage.
type DB struct {
	mu       sync.Mutex
	states   map[int64]domain.StepState
	daily    map[dayKey]int64
	users    []*domain.User
	sessions map[string]*domain.Session

	userIDCounter int64
	now           func() time.Time
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{
		states:   make(map[int64]domain.StepState),
		daily:    make(map[dayKey]int64),
		sessions: make(map[string]*domain.Session),
		now:      time.Now,
	}
}

// Ensure interfaces are met.
var _ domain.StepRepository = (*DB)(nil)
var _ domain.UserRepository = (*DB)(nil)
var _ domain.SessionRepository = (*SessionRepo)(nil)

// --- StepRepository ---

// LoadStepState returns the saved state for a user, or the zero state.
func (db *DB) LoadStepState(ctx context.Context, userID int64) (domain.StepState, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.states[userID], nil
}

// SaveStepState stores the state and the running total of its day.
func (db *DB) SaveStepState(ctx context.Context, userID int64, st domain.StepState) error {
	if st.StepsToday < 0 || st.LastRawValue < 0 {
		return errors.New("step counts must be non-negative")
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	db.states[userID] = st
	if !st.Day.IsZero() {
		db.daily[dayKey{userID: userID, day: st.Day}] = st.StepsToday
	}
	return nil
}

// ListDailySteps returns recorded totals within [from, to], oldest first.
func (db *DB) ListDailySteps(ctx context.Context, userID int64, from, to domain.Day) ([]domain.DailySteps, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var out []domain.DailySteps
	for k, steps := range db.daily {
		if k.userID != userID || k.day.Before(from) || to.Before(k.day) {
			continue
		}
		out = append(out, domain.DailySteps{Day: k.day, Steps: steps})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Day.Before(out[j].Day)
	})
	return out, nil
}

// --- UserRepository ---

// GetByUsername retrieves a user by username.
func (db *DB) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, nil
}

// GetByID retrieves a user by ID.
func (db *DB) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

// Create creates a new user.
func (db *DB) Create(ctx context.Context, username, passwordHash string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.Username == username {
			return nil, errors.New("user already exists")
		}
	}

	db.userIDCounter++
	u := &domain.User{
		ID:           db.userIDCounter,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    db.now().UTC(),
	}
	db.users = append(db.users, u)
	return u, nil
}

// Count returns the total number of users.
func (db *DB) Count(ctx context.Context) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.users), nil
}

// --- SessionRepository ---

// SessionRepo implements session persistence.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a new session repository.
func (db *DB) NewSessionRepo() *SessionRepo {
	return &SessionRepo{db: db}
}

// Create creates a new session.
func (r *SessionRepo) Create(ctx context.Context, userID int64, token, userAgent, ip string, expiresAt time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.sessions[token] = &domain.Session{
		Token:     token,
		UserID:    userID,
		UserAgent: userAgent,
		IP:        ip,
		ExpiresAt: expiresAt,
		CreatedAt: r.db.now().UTC(),
	}
	return nil
}

// GetByToken retrieves a session by token.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if s, ok := r.db.sessions[token]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

// Delete deletes a session.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.sessions, token)
	return nil
}

// DeleteExpired deletes all expired sessions.
func (r *SessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := r.db.now()
	var n int64
	for k, v := range r.db.sessions {
		if now.After(v.ExpiresAt) {
			delete(r.db.sessions, k)
			n++
		}
	}
	return n, nil
}

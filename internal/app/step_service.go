package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"stepcounter/internal/domain"
	"stepcounter/internal/logfields"
	"stepcounter/internal/metrics"
)

// ErrInvalidReading is returned for readings rejected before they reach an
// accumulator. RecordReading rejects negative values so API clients see the
// error; the Accumulator itself clamps them to zero.
var ErrInvalidReading = errors.New("rawValue must be a non-negative integer")

// StepServiceConfig holds the optional collaborators of a StepService.
type StepServiceConfig struct {
	Location *time.Location   // calendar used to derive "today"; nil means time.Local
	Now      func() time.Time // nil means time.Now
	Logger   *slog.Logger
	Metrics  metrics.Recorder
}

// StepService owns one Accumulator per user and fans their updates out to
// observers.
type StepService struct {
	repo    domain.StepRepository
	loc     *time.Location
	now     func() time.Time
	logger  *slog.Logger
	metrics metrics.Recorder
	hub     *Hub

	mu    sync.Mutex
	slots map[int64]*userSlot

	omu       sync.RWMutex
	observers map[int]func(domain.StepUpdate)
	nextObs   int
}

// NewStepService creates a StepService backed by the given repository.
func NewStepService(repo domain.StepRepository, cfg StepServiceConfig) *StepService {
	s := &StepService{
		repo:      repo,
		loc:       cfg.Location,
		now:       cfg.Now,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		hub:       NewHub(),
		slots:     make(map[int64]*userSlot),
		observers: make(map[int]func(domain.StepUpdate)),
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = metrics.NoopRecorder{}
	}
	s.Observe(s.hub.Publish)
	return s
}

// Today returns the calendar day of the current time.
func (s *StepService) Today() domain.Day {
	return domain.DayOf(s.now(), s.loc)
}

// Location returns the calendar location used for day boundaries.
func (s *StepService) Location() *time.Location {
	return s.loc
}

// RecordReading feeds a raw cumulative sensor reading for userID.
func (s *StepService) RecordReading(ctx context.Context, userID, raw int64) (domain.StepUpdate, error) {
	if raw < 0 {
		return domain.StepUpdate{}, ErrInvalidReading
	}
	slot := s.slot(ctx, userID)

	// Readings of one user apply and notify in order, and "today" is taken
	// inside the lock so it never moves backwards between them.
	slot.mu.Lock()
	defer slot.mu.Unlock()
	today := s.Today()
	steps := slot.acc.OnReading(ctx, raw, today)
	return domain.StepUpdate{UserID: userID, Day: today, StepsToday: steps, At: s.now()}, nil
}

// Current returns the state for today. A user whose tracked day is not today
// has taken no steps yet today.
func (s *StepService) Current(ctx context.Context, userID int64) domain.StepState {
	st := s.slot(ctx, userID).acc.State()
	today := s.Today()
	if st.Day != today {
		return domain.StepState{Day: today}
	}
	return st
}

// Observe registers fn for every step update of every user and returns a
// function that removes it.
func (s *StepService) Observe(fn func(domain.StepUpdate)) func() {
	s.omu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.omu.Unlock()

	return func() {
		s.omu.Lock()
		delete(s.observers, id)
		s.omu.Unlock()
	}
}

// Subscribe returns a channel of step updates for userID. Slow consumers
// lose the oldest buffered updates.
func (s *StepService) Subscribe(userID int64) (<-chan domain.StepUpdate, func()) {
	return s.hub.Subscribe(userID, 16)
}

// FlushDirty retries persistence for accumulators whose last save failed and
// returns how many were retried.
func (s *StepService) FlushDirty(ctx context.Context) int {
	n := 0
	for _, acc := range s.snapshot() {
		if acc.FlushIfDirty(ctx) {
			n++
		}
	}
	return n
}

// Close persists every accumulator. It is called on shutdown.
func (s *StepService) Close(ctx context.Context) {
	for _, acc := range s.snapshot() {
		acc.Flush(ctx)
	}
	s.hub.Close()
}

func (s *StepService) snapshot() []*Accumulator {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Accumulator, 0, len(s.slots))
	for _, slot := range s.slots {
		select {
		case <-slot.ready:
			out = append(out, slot.acc)
		default:
		}
	}
	return out
}

// userSlot holds one user's accumulator. ready is closed once acc is
// initialized; mu serializes the user's readings.
type userSlot struct {
	ready chan struct{}
	acc   *Accumulator
	mu    sync.Mutex
}

// slot returns the initialized slot of userID. Loading a user's state does
// not hold s.mu, so a slow store only delays that user.
func (s *StepService) slot(ctx context.Context, userID int64) *userSlot {
	s.mu.Lock()
	slot, ok := s.slots[userID]
	if !ok {
		slot = &userSlot{ready: make(chan struct{})}
		s.slots[userID] = slot
		s.metrics.SetActiveAccumulators(len(s.slots))
	}
	s.mu.Unlock()

	if ok {
		<-slot.ready
		return slot
	}
	slot.acc = s.newAccumulator(context.WithoutCancel(ctx), userID)
	close(slot.ready)
	return slot
}

func (s *StepService) newAccumulator(ctx context.Context, userID int64) *Accumulator {
	logger := s.logger.With(logfields.UserID(userID))
	acc := NewAccumulator(userStateStore{repo: s.repo, userID: userID},
		WithLogger(logger), WithMetrics(s.metrics))
	st := acc.Initialize(ctx, s.Today())
	acc.Subscribe(func(snap domain.StepState) {
		s.dispatch(domain.StepUpdate{UserID: userID, Day: snap.Day, StepsToday: snap.StepsToday, At: s.now()})
	})

	logger.Info("Step accumulator initialized",
		logfields.Day(st.Day.String()), logfields.Steps(st.StepsToday))
	return acc
}

func (s *StepService) dispatch(u domain.StepUpdate) {
	s.omu.RLock()
	fns := make([]func(domain.StepUpdate), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.omu.RUnlock()

	for _, fn := range fns {
		fn(u)
	}
}

// userStateStore scopes a StepRepository to one user.
type userStateStore struct {
	repo   domain.StepRepository
	userID int64
}

func (u userStateStore) LoadState(ctx context.Context) (domain.StepState, error) {
	return u.repo.LoadStepState(ctx, u.userID)
}

func (u userStateStore) SaveState(ctx context.Context, st domain.StepState) error {
	return u.repo.SaveStepState(ctx, u.userID, st)
}

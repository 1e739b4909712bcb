package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"stepcounter/internal/domain"
	"stepcounter/internal/logfields"
	"stepcounter/internal/metrics"
)

// StateStore loads and saves the state of a single accumulator. A missing
// record loads as the zero StepState.
type StateStore interface {
	LoadState(ctx context.Context) (domain.StepState, error)
	SaveState(ctx context.Context, st domain.StepState) error
}

// Listener receives the accumulator state after every accepted reading.
type Listener func(domain.StepState)

// Accumulator turns raw cumulative step counter readings into a daily step
// count. Readings must come from a single producer; OnReading and Flush
// serialize on the accumulator, while Steps and State may be called from any
// goroutine.
type Accumulator struct {
	store   StateStore
	logger  *slog.Logger
	metrics metrics.Recorder

	mu    sync.RWMutex
	state domain.StepState
	dirty bool

	lmu       sync.Mutex
	listeners map[int]Listener
	nextID    int
}

// AccumulatorOption configures an Accumulator.
type AccumulatorOption func(*Accumulator)

// WithLogger sets the logger used for persistence failures.
func WithLogger(l *slog.Logger) AccumulatorOption {
	return func(a *Accumulator) { a.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) AccumulatorOption {
	return func(a *Accumulator) { a.metrics = m }
}

// NewAccumulator creates an accumulator backed by store. Call Initialize
// before the first reading.
func NewAccumulator(store StateStore, opts ...AccumulatorOption) *Accumulator {
	a := &Accumulator{
		store:     store,
		logger:    slog.Default(),
		metrics:   metrics.NoopRecorder{},
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Initialize restores persisted state. State saved for today resumes as-is;
// anything else starts a pending day with zero counts so that the next
// reading sets the baseline. A failed read is retried once, then treated as
// no saved state.
func (a *Accumulator) Initialize(ctx context.Context, today domain.Day) domain.StepState {
	saved, err := a.load(ctx)
	if err != nil {
		a.logger.Warn("Load step state failed, retrying", logfields.Error(err))
		saved, err = a.load(ctx)
	}
	if err != nil {
		a.logger.Error("Load step state failed, starting from zero", logfields.Error(err))
		saved = domain.StepState{}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if !saved.Day.IsZero() && saved.Day == today {
		a.state = domain.StepState{
			Day:          saved.Day,
			StepsToday:   max(saved.StepsToday, 0),
			LastRawValue: max(saved.LastRawValue, 0),
		}
	} else {
		a.state = domain.StepState{}
	}
	a.dirty = false
	return a.state
}

// OnReading applies a raw cumulative reading observed on today and returns
// the updated step count for today.
//
// The first reading of a day only sets the baseline. A reading below the
// previous one means the counter restarted from zero, so the whole reading
// counts as new steps. Negative readings are clamped to zero.
func (a *Accumulator) OnReading(ctx context.Context, raw int64, today domain.Day) int64 {
	if raw < 0 {
		a.logger.Warn("Negative step reading clamped to zero", logfields.Raw(raw))
		raw = 0
	}

	a.mu.Lock()
	var delta int64
	if a.state.Day != today {
		a.state = domain.StepState{Day: today, StepsToday: 0, LastRawValue: raw}
		a.metrics.IncRollovers()
	} else {
		if raw < a.state.LastRawValue {
			delta = raw
			a.metrics.IncCounterResets()
			a.logger.Info("Step counter reset detected",
				logfields.Raw(raw), slog.Int64("previous_raw", a.state.LastRawValue))
		} else {
			delta = raw - a.state.LastRawValue
		}
		a.state.StepsToday += delta
		a.state.LastRawValue = raw
	}
	a.metrics.IncReadings()
	a.metrics.ObserveDelta(delta)
	a.persistLocked(ctx)
	snapshot := a.state
	a.mu.Unlock()

	a.notify(snapshot)
	return snapshot.StepsToday
}

// Flush writes the current state to the store. A pending day has nothing
// to write.
func (a *Accumulator) Flush(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Pending() {
		return
	}
	a.persistLocked(ctx)
}

// FlushIfDirty retries persistence only when the last save failed.
// It reports whether a write was attempted.
func (a *Accumulator) FlushIfDirty(ctx context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.dirty || a.state.Pending() {
		return false
	}
	a.persistLocked(ctx)
	return true
}

// Steps returns the step count for the tracked day.
func (a *Accumulator) Steps() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state.StepsToday
}

// State returns a snapshot of the accumulator state.
func (a *Accumulator) State() domain.StepState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Dirty reports whether the in-memory state is ahead of the store.
func (a *Accumulator) Dirty() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.dirty
}

// Subscribe registers l for state updates and returns a function that
// removes it.
func (a *Accumulator) Subscribe(l Listener) func() {
	a.lmu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = l
	a.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			a.lmu.Lock()
			delete(a.listeners, id)
			a.lmu.Unlock()
		})
	}
}

func (a *Accumulator) notify(st domain.StepState) {
	a.lmu.Lock()
	ls := make([]Listener, 0, len(a.listeners))
	for _, l := range a.listeners {
		ls = append(ls, l)
	}
	a.lmu.Unlock()

	for _, l := range ls {
		l(st)
	}
}

func (a *Accumulator) load(ctx context.Context) (domain.StepState, error) {
	start := time.Now()
	st, err := a.store.LoadState(ctx)
	a.metrics.ObservePersistDuration("load", time.Since(start))
	if err != nil {
		a.metrics.IncPersistFailure("load")
	}
	return st, err
}

// persistLocked saves a.state; the caller holds a.mu.
func (a *Accumulator) persistLocked(ctx context.Context) {
	start := time.Now()
	err := a.store.SaveState(ctx, a.state)
	a.metrics.ObservePersistDuration("save", time.Since(start))
	if err != nil {
		a.dirty = true
		a.metrics.IncPersistFailure("save")
		a.logger.Error("Save step state failed, keeping in-memory state",
			logfields.Day(a.state.Day.String()),
			logfields.Steps(a.state.StepsToday),
			logfields.Error(err))
		return
	}
	a.dirty = false
}

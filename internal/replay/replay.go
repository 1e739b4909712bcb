// Package replay feeds a recorded sequence of sensor readings through a step
// accumulator, for reproducing reported counts offline.
package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"stepcounter/internal/adapter/memory"
	"stepcounter/internal/app"
	"stepcounter/internal/domain"
)

const replayUser int64 = 1

// Script is a recorded session.
//
//	initial:
//	  currentDay: "2024-01-01"
//	  stepsToday: 1000
//	  lastSensorValue: 1000
//	readings:
//	  - {day: "2024-01-02", raw: 1050}
//	  - {day: "2024-01-02", raw: 1100, restart: true}
type Script struct {
	Initial  *State    `yaml:"initial"`
	Readings []Reading `yaml:"readings"`
}

// State is the persisted state a replay starts from.
type State struct {
	CurrentDay      string `yaml:"currentDay"`
	StepsToday      int64  `yaml:"stepsToday"`
	LastSensorValue int64  `yaml:"lastSensorValue"`
}

// Reading is one sensor callback. Restart simulates a process restart
// right before the reading is delivered.
type Reading struct {
	Day     string `yaml:"day"`
	Raw     int64  `yaml:"raw"`
	Restart bool   `yaml:"restart"`
}

// Step is the outcome of one replayed reading.
type Step struct {
	Day        domain.Day
	Raw        int64
	StepsToday int64
	Restarted  bool
}

// Load decodes a script and rejects unknown keys.
func Load(r io.Reader) (Script, error) {
	var s Script
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return Script{}, errors.New("empty replay script")
		}
		return Script{}, fmt.Errorf("decode replay script: %w", err)
	}
	if len(s.Readings) == 0 {
		return Script{}, errors.New("replay script has no readings")
	}
	return s, nil
}

// Run replays s and returns the step count after every reading together
// with the final persisted state.
func Run(ctx context.Context, s Script, logger *slog.Logger) ([]Step, domain.StepState, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db := memory.New()

	if s.Initial != nil {
		day, err := domain.ParseDay(s.Initial.CurrentDay)
		if err != nil {
			return nil, domain.StepState{}, fmt.Errorf("initial state: %w", err)
		}
		st := domain.StepState{Day: day, StepsToday: s.Initial.StepsToday, LastRawValue: s.Initial.LastSensorValue}
		if err := db.SaveStepState(ctx, replayUser, st); err != nil {
			return nil, domain.StepState{}, fmt.Errorf("initial state: %w", err)
		}
	}

	days := make([]domain.Day, len(s.Readings))
	for i, r := range s.Readings {
		d, err := domain.ParseDay(r.Day)
		if err != nil {
			return nil, domain.StepState{}, fmt.Errorf("reading %d: %w", i+1, err)
		}
		if d.IsZero() {
			return nil, domain.StepState{}, fmt.Errorf("reading %d: day is required", i+1)
		}
		days[i] = d
	}

	store := storeFor(db)
	start := func(day domain.Day) *app.Accumulator {
		acc := app.NewAccumulator(store, app.WithLogger(logger))
		acc.Initialize(ctx, day)
		return acc
	}

	acc := start(days[0])
	out := make([]Step, 0, len(s.Readings))
	for i, r := range s.Readings {
		if r.Restart && i > 0 {
			acc.Flush(ctx)
			acc = start(days[i])
		}
		steps := acc.OnReading(ctx, r.Raw, days[i])
		out = append(out, Step{Day: days[i], Raw: r.Raw, StepsToday: steps, Restarted: r.Restart})
	}
	acc.Flush(ctx)

	final, err := db.LoadStepState(ctx, replayUser)
	if err != nil {
		return nil, domain.StepState{}, err
	}
	return out, final, nil
}

// Print writes one aligned line per step.
func Print(w io.Writer, steps []Step) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DAY\tRAW\tSTEPS TODAY\t")
	for _, s := range steps {
		mark := ""
		if s.Restarted {
			mark = "(restart)"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", s.Day, s.Raw, domain.FormatSteps(s.StepsToday), mark)
	}
	return tw.Flush()
}

type dbStore struct {
	db *memory.DB
}

func storeFor(db *memory.DB) dbStore {
	return dbStore{db: db}
}

func (s dbStore) LoadState(ctx context.Context) (domain.StepState, error) {
	return s.db.LoadStepState(ctx, replayUser)
}

func (s dbStore) SaveState(ctx context.Context, st domain.StepState) error {
	return s.db.SaveStepState(ctx, replayUser, st)
}

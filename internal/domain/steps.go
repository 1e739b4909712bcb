package domain

import (
	"context"
	"time"
)

// StepState is the persisted state of a daily step accumulator.
type StepState struct {
	Day          Day   `json:"currentDay"`
	StepsToday   int64 `json:"stepsToday"`
	LastRawValue int64 `json:"lastSensorValue"`
}

// Pending reports whether no reading has been seen for the tracked day yet.
func (s StepState) Pending() bool {
	return s.Day.IsZero()
}

// StepUpdate is pushed to observers after every accepted reading.
type StepUpdate struct {
	UserID     int64     `json:"userId"`
	Day        Day       `json:"day"`
	StepsToday int64     `json:"stepsToday"`
	At         time.Time `json:"at"`
}

// DailySteps is the final (or running) step total of one day.
type DailySteps struct {
	Day   Day   `json:"day"`
	Steps int64 `json:"steps"`
}

// StepRepository is the port for step state persistence.
//
// SaveStepState stores the accumulator state under the keys current_day,
// steps_today and last_sensor_value, and records StepsToday as the running
// total of the state's day in the daily history.
type StepRepository interface {
	LoadStepState(ctx context.Context, userID int64) (StepState, error)
	SaveStepState(ctx context.Context, userID int64, st StepState) error
	ListDailySteps(ctx context.Context, userID int64, from, to Day) ([]DailySteps, error)
}

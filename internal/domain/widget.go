package domain

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultStepGoal is the daily goal shown when none is configured.
const DefaultStepGoal = 10000

// Widget is the data a home-screen widget needs to draw today's progress.
type Widget struct {
	Day     Day     `json:"day"`
	Steps   int64   `json:"steps"`
	Goal    int64   `json:"goal"`
	Display string  `json:"display"`
	Percent float64 `json:"percent"`
}

var stepPrinter = message.NewPrinter(language.English)

// FormatSteps renders a step count with grouped thousands, e.g. "12,345".
func FormatSteps(steps int64) string {
	return stepPrinter.Sprintf("%d", steps)
}

// NewWidget builds the widget view for steps against goal.
// A non-positive goal falls back to DefaultStepGoal; Percent is capped at 100.
func NewWidget(day Day, steps, goal int64) Widget {
	if goal <= 0 {
		goal = DefaultStepGoal
	}
	if steps < 0 {
		steps = 0
	}
	pct := float64(steps) / float64(goal) * 100
	if pct > 100 {
		pct = 100
	}
	return Widget{
		Day:     day,
		Steps:   steps,
		Goal:    goal,
		Display: FormatSteps(steps),
		Percent: pct,
	}
}

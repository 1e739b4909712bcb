package domain_test

import (
	"math"
	"testing"

	"stepcounter/internal/domain"
)

func almostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestFormatSteps(t *testing.T) {
	tests := []struct {
		steps int64
		want  string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{12345, "12,345"},
		{1234567, "1,234,567"},
	}
	for _, tc := range tests {
		if got := domain.FormatSteps(tc.steps); got != tc.want {
			t.Errorf("FormatSteps(%d) = %q; want %q", tc.steps, got, tc.want)
		}
	}
}

func TestNewWidget(t *testing.T) {
	day, _ := domain.ParseDay("2024-01-01")
	tests := []struct {
		name        string
		steps, goal int64
		wantGoal    int64
		wantPercent float64
	}{
		{"half way", 5000, 10000, 10000, 50},
		{"default goal", 2500, 0, domain.DefaultStepGoal, 25},
		{"over goal capped", 15000, 10000, 10000, 100},
		{"custom goal", 3000, 6000, 6000, 50},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := domain.NewWidget(day, tc.steps, tc.goal)
			if w.Goal != tc.wantGoal {
				t.Errorf("goal = %d; want %d", w.Goal, tc.wantGoal)
			}
			if !almostEqual(w.Percent, tc.wantPercent, 0.001) {
				t.Errorf("percent = %v; want %v", w.Percent, tc.wantPercent)
			}
			if w.Display != domain.FormatSteps(tc.steps) {
				t.Errorf("display = %q", w.Display)
			}
		})
	}
}

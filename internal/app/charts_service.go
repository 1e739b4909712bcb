package app

import (
	"context"
	"errors"

	"stepcounter/internal/domain"
)

const maxChartDays = 366

// ChartsService encapsulates chart data retrieval use cases.
type ChartsService struct {
	repo domain.StepRepository
	goal int64
}

// NewChartsService creates a ChartsService backed by the given repository.
// goal marks which days reached the daily step goal.
func NewChartsService(repo domain.StepRepository, goal int64) *ChartsService {
	if goal <= 0 {
		goal = domain.DefaultStepGoal
	}
	return &ChartsService{repo: repo, goal: goal}
}

// DayPoint is a single data point returned by GetDaily.
type DayPoint struct {
	Day     domain.Day `json:"day"`
	Steps   int64      `json:"steps"`
	GoalMet bool       `json:"goalMet"`
}

// GetDaily returns one point per day for the days days ending with today,
// oldest first. Days without a record have zero steps.
func (s *ChartsService) GetDaily(ctx context.Context, userID int64, today domain.Day, days int) ([]DayPoint, error) {
	if today.IsZero() {
		return nil, errors.New("today is required")
	}
	if days <= 0 {
		return nil, errors.New("days must be > 0")
	}
	if days > maxChartDays {
		days = maxChartDays
	}

	from := today.AddDays(-(days - 1))
	rows, err := s.repo.ListDailySteps(ctx, userID, from, today)
	if err != nil {
		return nil, err
	}
	byDay := make(map[domain.Day]int64, len(rows))
	for _, r := range rows {
		byDay[r.Day] = r.Steps
	}

	points := make([]DayPoint, 0, days)
	for d := from; !today.Before(d); d = d.AddDays(1) {
		steps := byDay[d]
		points = append(points, DayPoint{Day: d, Steps: steps, GoalMet: steps >= s.goal})
	}
	return points, nil
}

// Goal returns the daily step goal.
func (s *ChartsService) Goal() int64 {
	return s.goal
}

package app_test

import (
	"context"
	"errors"
	"testing"

	"stepcounter/internal/app"
	"stepcounter/internal/domain"
)

func TestGetDaily_BadDays(t *testing.T) {
	svc := app.NewChartsService(&mockStepRepo{}, 0)
	today, _ := domain.ParseDay("2024-01-10")
	if _, err := svc.GetDaily(context.Background(), 1, today, 0); err == nil {
		t.Fatal("expected error for days=0")
	}
	if _, err := svc.GetDaily(context.Background(), 1, domain.Day{}, 7); err == nil {
		t.Fatal("expected error for zero today")
	}
}

func TestGetDaily_ZeroFillsMissingDays(t *testing.T) {
	today, _ := domain.ParseDay("2024-01-10")
	repo := &mockStepRepo{
		listFn: func(_ context.Context, userID int64, from, to domain.Day) ([]domain.DailySteps, error) {
			if userID != 3 {
				t.Fatalf("unexpected user %d", userID)
			}
			if from.String() != "2024-01-08" || to.String() != "2024-01-10" {
				t.Fatalf("unexpected range %s..%s", from, to)
			}
			return []domain.DailySteps{
				{Day: today.AddDays(-2), Steps: 12000},
				{Day: today, Steps: 400},
			}, nil
		},
	}

	svc := app.NewChartsService(repo, 10000)
	points, err := svc.GetDaily(context.Background(), 3, today, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	want := []struct {
		day     string
		steps   int64
		goalMet bool
	}{
		{"2024-01-08", 12000, true},
		{"2024-01-09", 0, false},
		{"2024-01-10", 400, false},
	}
	for i, w := range want {
		p := points[i]
		if p.Day.String() != w.day || p.Steps != w.steps || p.GoalMet != w.goalMet {
			t.Errorf("point %d = %+v; want %+v", i, p, w)
		}
	}
}

func TestGetDaily_CapsDays(t *testing.T) {
	today, _ := domain.ParseDay("2024-12-31")
	svc := app.NewChartsService(&mockStepRepo{}, 0)
	points, err := svc.GetDaily(context.Background(), 1, today, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 366 {
		t.Fatalf("expected 366 points, got %d", len(points))
	}
	if points[0].Day.String() != "2024-01-01" {
		t.Fatalf("first day = %s", points[0].Day)
	}
}

func TestGetDaily_RepoError(t *testing.T) {
	today, _ := domain.ParseDay("2024-01-10")
	repo := &mockStepRepo{
		listFn: func(context.Context, int64, domain.Day, domain.Day) ([]domain.DailySteps, error) {
			return nil, errors.New("db down")
		},
	}
	svc := app.NewChartsService(repo, 0)
	if _, err := svc.GetDaily(context.Background(), 1, today, 7); err == nil {
		t.Fatal("expected repo error")
	}
}

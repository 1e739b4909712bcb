package memory

import (
	"context"
	"testing"
	"time"

	"stepcounter/internal/domain"
)

func day(t *testing.T, s string) domain.Day {
	t.Helper()
	d, err := domain.ParseDay(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestStepRepository(t *testing.T) {
	db := New()
	ctx := context.Background()
	userID := int64(1)

	// Missing state loads as zero
	st, err := db.LoadStepState(ctx, userID)
	if err != nil {
		t.Fatalf("LoadStepState: %v", err)
	}
	if st != (domain.StepState{}) {
		t.Fatalf("expected zero state, got %+v", st)
	}

	d1 := day(t, "2024-01-01")
	d2 := day(t, "2024-01-02")
	if err := db.SaveStepState(ctx, userID, domain.StepState{Day: d1, StepsToday: 10, LastRawValue: 510}); err != nil {
		t.Fatalf("SaveStepState: %v", err)
	}
	_ = db.SaveStepState(ctx, userID, domain.StepState{Day: d1, StepsToday: 560, LastRawValue: 540})
	_ = db.SaveStepState(ctx, userID, domain.StepState{Day: d2, StepsToday: 0, LastRawValue: 600})
	_ = db.SaveStepState(ctx, 2, domain.StepState{Day: d1, StepsToday: 9999, LastRawValue: 1})

	st, _ = db.LoadStepState(ctx, userID)
	if st.Day != d2 || st.StepsToday != 0 || st.LastRawValue != 600 {
		t.Errorf("unexpected state %+v", st)
	}

	days, err := db.ListDailySteps(ctx, userID, d1, d2)
	if err != nil {
		t.Fatalf("ListDailySteps: %v", err)
	}
	if len(days) != 2 {
		t.Fatalf("expected 2 days, got %d", len(days))
	}
	if days[0].Day != d1 || days[0].Steps != 560 {
		t.Errorf("day 1 = %+v", days[0])
	}
	if days[1].Day != d2 || days[1].Steps != 0 {
		t.Errorf("day 2 = %+v", days[1])
	}

	// Range is inclusive and scoped
	days, _ = db.ListDailySteps(ctx, userID, d2, d2)
	if len(days) != 1 {
		t.Errorf("expected 1 day, got %d", len(days))
	}
}

func TestStepRepository_RejectsNegative(t *testing.T) {
	db := New()
	err := db.SaveStepState(context.Background(), 1, domain.StepState{Day: day(t, "2024-01-01"), StepsToday: -1})
	if err == nil {
		t.Fatal("expected error for negative steps")
	}
}

func TestUserRepository(t *testing.T) {
	db := New()
	ctx := context.Background()

	u, err := db.Create(ctx, "bob", "hash")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.Username != "bob" {
		t.Errorf("expected bob, got %s", u.Username)
	}
	if _, err := db.Create(ctx, "bob", "hash"); err == nil {
		t.Error("expected duplicate user error")
	}

	u2, err := db.GetByUsername(ctx, "bob")
	if err != nil {
		t.Fatalf("GetByUsername: %v", err)
	}
	if u2 == nil || u2.ID != u.ID {
		t.Error("failed to retrieve user")
	}
	if missing, _ := db.GetByUsername(ctx, "alice"); missing != nil {
		t.Error("expected nil for unknown user")
	}

	count, _ := db.Count(ctx)
	if count != 1 {
		t.Errorf("expected 1 user, got %d", count)
	}
}

func TestSessionRepository(t *testing.T) {
	db := New()
	repo := db.NewSessionRepo()
	ctx := context.Background()

	if err := repo.Create(ctx, 1, "token123", "pixel", "10.0.0.1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_ = repo.Create(ctx, 1, "old", "pixel", "10.0.0.1", time.Now().Add(-time.Hour))

	sess, err := repo.GetByToken(ctx, "token123")
	if err != nil {
		t.Fatalf("GetByToken: %v", err)
	}
	if sess == nil || sess.UserAgent != "pixel" {
		t.Fatalf("unexpected session %+v", sess)
	}

	n, _ := repo.DeleteExpired(ctx)
	if n != 1 {
		t.Errorf("expected 1 expired session removed, got %d", n)
	}

	_ = repo.Delete(ctx, "token123")
	sess, _ = repo.GetByToken(ctx, "token123")
	if sess != nil {
		t.Error("expected nil (deleted)")
	}
}

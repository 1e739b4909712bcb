package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"stepcounter/internal/domain"
)

// LoadStepState returns the saved accumulator state for a user, or the zero
// state when none was saved.
func (d *DB) LoadStepState(ctx context.Context, userID int64) (domain.StepState, error) {
	var (
		st  domain.StepState
		day string
	)
	err := d.sql.QueryRowContext(ctx,
		"SELECT current_day, steps_today, last_sensor_value FROM step_state WHERE user_id=$1;", userID,
	).Scan(&day, &st.StepsToday, &st.LastRawValue)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StepState{}, nil
	}
	if err != nil {
		return domain.StepState{}, err
	}
	if st.Day, err = domain.ParseDay(day); err != nil {
		return domain.StepState{}, fmt.Errorf("step_state.current_day: %w", err)
	}
	return st, nil
}

// SaveStepState upserts the accumulator state and the day's running total in
// one transaction.
func (d *DB) SaveStepState(ctx context.Context, userID int64, st domain.StepState) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO step_state(user_id, current_day, steps_today, last_sensor_value, updated_at)
		 VALUES($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id) DO UPDATE SET current_day=EXCLUDED.current_day, steps_today=EXCLUDED.steps_today,
		   last_sensor_value=EXCLUDED.last_sensor_value, updated_at=EXCLUDED.updated_at;`,
		userID, st.Day.String(), st.StepsToday, st.LastRawValue, now,
	); err != nil {
		return fmt.Errorf("upsert step_state: %w", err)
	}

	if !st.Day.IsZero() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO daily_steps(user_id, day, steps, updated_at) VALUES($1, $2, $3, $4)
			 ON CONFLICT (user_id, day) DO UPDATE SET steps=EXCLUDED.steps, updated_at=EXCLUDED.updated_at;`,
			userID, st.Day.String(), st.StepsToday, now,
		); err != nil {
			return fmt.Errorf("upsert daily_steps: %w", err)
		}
	}
	return tx.Commit()
}

// ListDailySteps returns recorded daily totals within [from, to], oldest first.
func (d *DB) ListDailySteps(ctx context.Context, userID int64, from, to domain.Day) ([]domain.DailySteps, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT day, steps FROM daily_steps WHERE user_id=$1 AND day >= $2 AND day <= $3 ORDER BY day;",
		userID, from.String(), to.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.DailySteps
	for rows.Next() {
		var (
			day string
			ds  domain.DailySteps
		)
		if err := rows.Scan(&day, &ds.Steps); err != nil {
			return nil, err
		}
		if ds.Day, err = domain.ParseDay(day); err != nil {
			return nil, fmt.Errorf("daily_steps.day: %w", err)
		}
		out = append(out, ds)
	}
	return out, rows.Err()
}

package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/schedule"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/pkg/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type workScheduleRepositoryImpl struct {
	db *database.DB
}

func NewWorkScheduleRepository(db *database.DB) schedule.Repository {
	return &workScheduleRepositoryImpl{db: db}
}

// GetEmployeeSchedule implements schedule.Repository.
func (r *workScheduleRepositoryImpl) GetEmployeeSchedule(ctx context.Context, employeeID string) (schedule.WorkSchedule, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ws.id, ws.company_id, ws.name, ws.timezone, COALESCE(ws.weekly_minutes, 0)
		FROM work_schedules ws
		JOIN employees e ON e.work_schedule_id = ws.id
		WHERE e.id = $1 AND ws.deleted_at IS NULL
	`

	var (
		id, companyID, name, timezone string
		weeklyMinutes                 int
	)
	err := q.QueryRow(ctx, query, employeeID).Scan(&id, &companyID, &name, &timezone, &weeklyMinutes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return schedule.WorkSchedule{}, schedule.ErrWorkScheduleNotFound
		}
		return schedule.WorkSchedule{}, fmt.Errorf("failed to get work schedule: %w", err)
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return schedule.WorkSchedule{}, fmt.Errorf("work schedule %s has invalid timezone %q: %w", id, timezone, err)
	}

	times, err := r.listTimes(ctx, id)
	if err != nil {
		return schedule.WorkSchedule{}, err
	}

	ws := schedule.Build(id, companyID, name, times, loc)
	ws.WeeklyMinutes = weeklyMinutes
	return ws, nil
}

func (r *workScheduleRepositoryImpl) listTimes(ctx context.Context, scheduleID string) ([]schedule.WorkScheduleTime, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT day_of_week, clock_in_time, break_start_time, break_end_time, clock_out_time, is_next_day_checkout
		FROM work_schedule_times
		WHERE work_schedule_id = $1
		ORDER BY day_of_week
	`

	rows, err := q.Query(ctx, query, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list work schedule times: %w", err)
	}
	defer rows.Close()

	var times []schedule.WorkScheduleTime
	for rows.Next() {
		var (
			t                                  schedule.WorkScheduleTime
			clockIn, breakStart, breakEnd, out pgtype.Time
		)
		if err := rows.Scan(&t.DayOfWeek, &clockIn, &breakStart, &breakEnd, &out, &t.IsNextDayCheckout); err != nil {
			return nil, fmt.Errorf("failed to scan work schedule time: %w", err)
		}
		t.ClockInTime = clockOf(clockIn)
		t.ClockOutTime = clockOf(out)
		if breakStart.Valid && breakEnd.Valid {
			start, end := clockOf(breakStart), clockOf(breakEnd)
			t.BreakStartTime = &start
			t.BreakEndTime = &end
		}
		times = append(times, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate work schedule times: %w", err)
	}

	return times, nil
}

// clockOf turns a TIME column into a time of day on the zero date.
func clockOf(t pgtype.Time) time.Time {
	return time.Time{}.Add(time.Duration(t.Microseconds) * time.Microsecond)
}

package schedule

import "context"

type Repository interface {
	// GetEmployeeSchedule returns the schedule assigned to the employee, or ErrWorkScheduleNotFound.
	GetEmployeeSchedule(ctx context.Context, employeeID string) (WorkSchedule, error)
}

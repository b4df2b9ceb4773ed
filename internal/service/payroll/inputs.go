package payroll

import (
	"context"
	"errors"
	"fmt"

	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/employee"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/payroll"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/schedule"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/timerecord"
	"golang.org/x/sync/errgroup"
)

// InputService loads the per-employee inputs of a calculation.
type InputService struct {
	records   timerecord.Repository
	schedules schedule.Repository
	benefits  payroll.BenefitRepository
	pending   payroll.PendingDeductionRepository
}

func NewInputService(records timerecord.Repository, schedules schedule.Repository, benefits payroll.BenefitRepository, pending payroll.PendingDeductionRepository) *InputService {
	return &InputService{records: records, schedules: schedules, benefits: benefits, pending: pending}
}

// LoadInput implements payroll.InputLoader. An employee without a schedule gets the
// standard Monday to Friday week of the config.
func (s *InputService) LoadInput(ctx context.Context, rc payroll.RunContext, emp employee.Employee) (payroll.EmployeeInput, error) {
	in := payroll.EmployeeInput{Employee: emp}

	sched, err := s.schedules.GetEmployeeSchedule(ctx, emp.ID)
	switch {
	case errors.Is(err, schedule.ErrWorkScheduleNotFound):
		sched = schedule.Standard(rc.Config.HoursPerDay, false)
	case err != nil:
		return in, fmt.Errorf("failed to get work schedule: %w", err)
	}
	in.Schedule = sched

	loc := sched.Loc()
	// One extra day on each side so overnight shifts crossing a period edge close.
	from := rc.Period.Start(loc).AddDate(0, 0, -1)
	to := rc.Period.End(loc).AddDate(0, 0, 1)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		records, err := s.records.ListByEmployeePeriod(gCtx, emp.ID, from, to)
		if err != nil {
			return fmt.Errorf("failed to list time records: %w", err)
		}
		in.Records = records
		return nil
	})

	g.Go(func() error {
		benefits, err := s.benefits.ListAssignments(gCtx, emp.ID, rc.Period)
		if err != nil {
			return fmt.Errorf("failed to list benefit assignments: %w", err)
		}
		in.Benefits = benefits
		return nil
	})

	g.Go(func() error {
		pending, err := s.pending.ListPending(gCtx, emp.ID, rc.Period)
		if err != nil {
			return fmt.Errorf("failed to list pending deductions: %w", err)
		}
		in.PendingDeductions = pending
		return nil
	})

	if err := g.Wait(); err != nil {
		return in, err
	}
	return in, nil
}

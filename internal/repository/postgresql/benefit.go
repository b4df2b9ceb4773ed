package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/payroll"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/pkg/database"
)

type benefitRepository struct {
	db *database.DB
}

func NewBenefitRepository(db *database.DB) payroll.BenefitRepository {
	return &benefitRepository{db: db}
}

// ListAssignments implements payroll.BenefitRepository. Assignments overlapping the period
// are returned; whether one covers it is decided by payroll.BenefitAssignment.CoversPeriod.
func (r *benefitRepository) ListAssignments(ctx context.Context, employeeID string, period payroll.Period) ([]payroll.BenefitAssignment, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT eba.employee_id, rb.code, eba.custom_value, eba.start_date, eba.end_date, eba.is_active
		FROM employee_benefit_assignments eba
		JOIN rubricas rb ON rb.id = eba.rubrica_id
		WHERE eba.employee_id = $1
			AND eba.start_date < $3
			AND (eba.end_date IS NULL OR eba.end_date >= $2)
		ORDER BY rb.code, eba.start_date
	`

	start := period.Start(time.UTC)
	rows, err := q.Query(ctx, query, employeeID, start, period.End(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to list benefit assignments: %w", err)
	}
	defer rows.Close()

	var assignments []payroll.BenefitAssignment
	for rows.Next() {
		var a payroll.BenefitAssignment
		if err := rows.Scan(&a.EmployeeID, &a.RubricaCode, &a.CustomValue, &a.StartDate, &a.EndDate, &a.Active); err != nil {
			return nil, fmt.Errorf("failed to scan benefit assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate benefit assignments: %w", err)
	}

	return assignments, nil
}

package postgresql

import (
	"context"
	"fmt"

	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/payroll"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/pkg/database"
)

type pendingDeductionRepository struct {
	db *database.DB
}

func NewPendingDeductionRepository(db *database.DB) payroll.PendingDeductionRepository {
	return &pendingDeductionRepository{db: db}
}

// ListPending implements payroll.PendingDeductionRepository.
func (r *pendingDeductionRepository) ListPending(ctx context.Context, employeeID string, period payroll.Period) ([]payroll.PendingDeduction, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, employee_id, kind, COALESCE(description, ''), amount,
			COALESCE(installment, 0), COALESCE(total_installments, 0)
		FROM pending_deductions
		WHERE employee_id = $1 AND due_year = $2 AND due_month = $3 AND status = 'pending'
		ORDER BY created_at, id
	`

	rows, err := q.Query(ctx, query, employeeID, period.Year, period.Month)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending deductions: %w", err)
	}
	defer rows.Close()

	var pending []payroll.PendingDeduction
	for rows.Next() {
		var d payroll.PendingDeduction
		if err := rows.Scan(&d.ID, &d.EmployeeID, &d.Kind, &d.Description, &d.Amount, &d.Installment, &d.TotalInstallments); err != nil {
			return nil, fmt.Errorf("failed to scan pending deduction: %w", err)
		}
		pending = append(pending, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending deductions: %w", err)
	}

	return pending, nil
}

package postgresql

import (
	"context"
	"fmt"

	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/employee"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type employeeRepositoryImpl struct {
	db *database.DB
}

func NewEmployeeRepository(db *database.DB) employee.EmployeeRepository {
	return &employeeRepositoryImpl{db: db}
}

const employeeColumns = `
	id, company_id, employee_code, full_name, COALESCE(position_id::text, ''),
	COALESCE(work_schedule_id::text, ''), hire_date, base_salary, contract_type,
	dependents, employment_status
`

// GetActiveByCompanyID implements employee.EmployeeRepository. Employees on leave are
// still paid, so they are returned too.
func (r *employeeRepositoryImpl) GetActiveByCompanyID(ctx context.Context, companyID string) ([]employee.Employee, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + employeeColumns + `
		FROM employees
		WHERE company_id = $1 AND employment_status IN ($2, $3) AND deleted_at IS NULL
		ORDER BY full_name
	`

	rows, err := q.Query(ctx, query, companyID, employee.EmploymentStatusActive, employee.EmploymentStatusOnLeave)
	if err != nil {
		return nil, fmt.Errorf("failed to list active employees: %w", err)
	}
	return scanEmployees(rows)
}

// GetByIDs implements employee.EmployeeRepository.
func (r *employeeRepositoryImpl) GetByIDs(ctx context.Context, companyID string, ids []string) ([]employee.Employee, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + employeeColumns + `
		FROM employees
		WHERE company_id = $1 AND id = ANY($2::uuid[]) AND deleted_at IS NULL
	`

	rows, err := q.Query(ctx, query, companyID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get employees by ids: %w", err)
	}
	return scanEmployees(rows)
}

func scanEmployees(rows pgx.Rows) ([]employee.Employee, error) {
	defer rows.Close()

	var employees []employee.Employee
	for rows.Next() {
		var emp employee.Employee
		err := rows.Scan(
			&emp.ID, &emp.CompanyID, &emp.EmployeeCode, &emp.FullName, &emp.PositionID,
			&emp.WorkScheduleID, &emp.HireDate, &emp.BaseSalary, &emp.ContractType,
			&emp.Dependents, &emp.Status,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		employees = append(employees, emp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate employees: %w", err)
	}

	return employees, nil
}

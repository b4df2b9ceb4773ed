package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/payroll"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type payrollConfigRepository struct {
	db *database.DB
}

func NewPayrollConfigRepository(db *database.DB) payroll.ConfigRepository {
	return &payrollConfigRepository{db: db}
}

// ========== CONFIG ==========

const payrollConfigColumns = `
	id, company_id, period_year, period_month, reference_date, rounding_mode,
	working_days_per_month, hours_per_day, overtime_percent, dsr_percent,
	transport_voucher_percent, lateness_tolerance_minutes,
	apply_inss, apply_irrf, apply_fgts, is_active
`

func scanPayrollConfig(row pgx.Row) (payroll.PayrollConfig, error) {
	var c payroll.PayrollConfig
	err := row.Scan(
		&c.ID, &c.CompanyID, &c.Period.Year, &c.Period.Month, &c.ReferenceDate, &c.Rounding,
		&c.WorkingDaysPerMonth, &c.HoursPerDay, &c.OvertimePercent, &c.DSRPercent,
		&c.TransportVoucherPercent, &c.LatenessToleranceMinutes,
		&c.ApplyINSS, &c.ApplyIRRF, &c.ApplyFGTS, &c.Active,
	)
	return c, err
}

// GetConfigForPeriod implements payroll.ConfigRepository.
func (r *payrollConfigRepository) GetConfigForPeriod(ctx context.Context, companyID string, period payroll.Period) (payroll.PayrollConfig, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + payrollConfigColumns + `
		FROM payroll_configs
		WHERE company_id = $1 AND period_year = $2 AND period_month = $3 AND is_active = true
	`

	c, err := scanPayrollConfig(q.QueryRow(ctx, query, companyID, period.Year, period.Month))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.PayrollConfig{}, payroll.ErrConfigNotFound
		}
		return payroll.PayrollConfig{}, fmt.Errorf("failed to get payroll config: %w", err)
	}

	return c, nil
}

// GetLatestActiveConfig implements payroll.ConfigRepository.
func (r *payrollConfigRepository) GetLatestActiveConfig(ctx context.Context, companyID string) (payroll.PayrollConfig, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + payrollConfigColumns + `
		FROM payroll_configs
		WHERE company_id = $1 AND is_active = true
		ORDER BY period_year DESC, period_month DESC, created_at DESC
		LIMIT 1
	`

	c, err := scanPayrollConfig(q.QueryRow(ctx, query, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.PayrollConfig{}, payroll.ErrConfigNotFound
		}
		return payroll.PayrollConfig{}, fmt.Errorf("failed to get latest payroll config: %w", err)
	}

	return c, nil
}

// ========== RUBRICAS ==========

// ListRubricas implements payroll.ConfigRepository.
func (r *payrollConfigRepository) ListRubricas(ctx context.Context, companyID string, activeOnly bool) ([]payroll.Rubrica, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, company_id, code, name, kind, basis, amount, percentage,
			COALESCE(base_name, ''), COALESCE(formula_name, ''),
			incidence_inss, incidence_irrf, incidence_fgts, display_order,
			scope, COALESCE(scope_ref::text, ''), requires_assignment, is_active
		FROM rubricas
		WHERE company_id = $1
	`
	if activeOnly {
		query += " AND is_active = true"
	}
	query += " ORDER BY kind, display_order, code"

	rows, err := q.Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rubricas: %w", err)
	}
	defer rows.Close()

	var rubricas []payroll.Rubrica
	for rows.Next() {
		var rb payroll.Rubrica
		if err := rows.Scan(
			&rb.ID, &rb.CompanyID, &rb.Code, &rb.Name, &rb.Kind, &rb.Basis, &rb.Amount, &rb.Percentage,
			&rb.BaseName, &rb.FormulaName,
			&rb.Incidence.INSS, &rb.Incidence.IRRF, &rb.Incidence.FGTS, &rb.DisplayOrder,
			&rb.Scope, &rb.ScopeRef, &rb.RequiresAssignment, &rb.Active,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rubrica: %w", err)
		}
		rubricas = append(rubricas, rb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rubricas: %w", err)
	}

	return rubricas, nil
}

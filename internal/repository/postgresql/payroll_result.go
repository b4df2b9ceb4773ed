package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/payroll"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type payrollResultRepository struct {
	db *database.DB
}

func NewPayrollResultRepository(db *database.DB) payroll.ResultRepository {
	return &payrollResultRepository{db: db}
}

// SaveResult implements payroll.ResultRepository. The result, its events and its log are
// written in one transaction; saving the same employee of a run again replaces them.
func (r *payrollResultRepository) SaveResult(ctx context.Context, rc payroll.RunContext, result payroll.Payroll, log payroll.CalculationLog) error {
	entries, err := json.Marshal(log.Entries)
	if err != nil {
		return fmt.Errorf("failed to encode calculation log: %w", err)
	}

	return WithTransaction(ctx, r.db, func(ctx context.Context) error {
		q := GetQuerier(ctx, r.db)

		_, err := q.Exec(ctx, `
			INSERT INTO payroll_results (
				run_id, employee_id, company_id, period_year, period_month, process_type,
				gross, total_deductions, inss_base, irrf_base, fgts_base, inss, irrf, fgts,
				withholdings, net, worked_minutes, overtime_minutes, absence_minutes
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
			ON CONFLICT (run_id, employee_id) DO UPDATE SET
				gross = EXCLUDED.gross,
				total_deductions = EXCLUDED.total_deductions,
				inss_base = EXCLUDED.inss_base,
				irrf_base = EXCLUDED.irrf_base,
				fgts_base = EXCLUDED.fgts_base,
				inss = EXCLUDED.inss,
				irrf = EXCLUDED.irrf,
				fgts = EXCLUDED.fgts,
				withholdings = EXCLUDED.withholdings,
				net = EXCLUDED.net,
				worked_minutes = EXCLUDED.worked_minutes,
				overtime_minutes = EXCLUDED.overtime_minutes,
				absence_minutes = EXCLUDED.absence_minutes,
				updated_at = NOW()
		`,
			rc.RunID, result.EmployeeID, rc.CompanyID, rc.Period.Year, rc.Period.Month, rc.ProcessType,
			result.Gross, result.TotalDeductions, result.INSSBase, result.IRRFBase, result.FGTSBase,
			result.INSS, result.IRRF, result.FGTS, result.Withholdings, result.Net,
			result.Time.WorkedMinutes, result.Time.OvertimeMinutes, result.Time.AbsenceMinutes,
		)
		if err != nil {
			return fmt.Errorf("failed to save payroll result: %w", err)
		}

		if _, err := q.Exec(ctx, `DELETE FROM payroll_events WHERE run_id = $1 AND employee_id = $2`, rc.RunID, result.EmployeeID); err != nil {
			return fmt.Errorf("failed to clear payroll events: %w", err)
		}

		batch := &pgx.Batch{}
		for i, e := range result.Events {
			batch.Queue(`
				INSERT INTO payroll_events (
					run_id, employee_id, seq, rubrica_id, code, name, kind, amount, sign, reference, note,
					incidence_inss, incidence_irrf, incidence_fgts
				) VALUES ($1, $2, $3, NULLIF($4, '')::uuid, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			`,
				rc.RunID, result.EmployeeID, i+1, e.RubricaID, e.Code, e.Name, e.Kind, e.Amount, e.Sign,
				e.Reference, e.Note, e.Incidence.INSS, e.Incidence.IRRF, e.Incidence.FGTS,
			)
		}
		if err := sendBatch(ctx, q, batch); err != nil {
			return fmt.Errorf("failed to save payroll events: %w", err)
		}

		_, err = q.Exec(ctx, `
			INSERT INTO calculation_logs (run_id, employee_id, entries)
			VALUES ($1, $2, $3)
			ON CONFLICT (run_id, employee_id) DO UPDATE SET entries = EXCLUDED.entries, created_at = NOW()
		`, rc.RunID, result.EmployeeID, entries)
		if err != nil {
			return fmt.Errorf("failed to save calculation log: %w", err)
		}

		return nil
	})
}

// GetCalculationLog implements payroll.ResultRepository.
func (r *payrollResultRepository) GetCalculationLog(ctx context.Context, runID, employeeID string) (payroll.CalculationLog, error) {
	q := GetQuerier(ctx, r.db)

	var raw []byte
	err := q.QueryRow(ctx, `
		SELECT entries FROM calculation_logs WHERE run_id = $1 AND employee_id = $2
	`, runID, employeeID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.CalculationLog{}, payroll.ErrLogNotAvailable
		}
		return payroll.CalculationLog{}, fmt.Errorf("failed to get calculation log: %w", err)
	}

	log := payroll.CalculationLog{RunID: runID, EmployeeID: employeeID}
	if err := json.Unmarshal(raw, &log.Entries); err != nil {
		return payroll.CalculationLog{}, fmt.Errorf("failed to decode calculation log: %w", err)
	}
	return log, nil
}

func sendBatch(ctx context.Context, q database.Querier, batch *pgx.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	return q.SendBatch(ctx, batch).Close()
}

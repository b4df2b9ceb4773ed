package payroll

import (
	"context"
	"fmt"

	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/payroll"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/service/calclog"
	"github.com/shopspring/decimal"
)

// Calculator computes the payroll of a single employee:
// pending → aggregating → resolving_rubricas → computing_statutory → finalizing → done,
// with failed reachable from every working state.
type Calculator struct {
	rubricas *RubricaEngine
	results  payroll.ResultRepository
}

// NewCalculator builds a calculator. A nil results repository disables persistence.
func NewCalculator(rubricas *RubricaEngine, results payroll.ResultRepository) *Calculator {
	if rubricas == nil {
		rubricas = NewRubricaEngine(nil)
	}
	return &Calculator{rubricas: rubricas, results: results}
}

type calculation struct {
	state payroll.CalculationState
	log   *calclog.Logger
}

func (c *calculation) enter(next payroll.CalculationState) {
	c.log.Transition(c.state, next)
	c.state = next
}

// Calculate never returns an error: every failure becomes a failed outcome carrying the
// state it happened in.
func (c *Calculator) Calculate(ctx context.Context, rc payroll.RunContext, in payroll.EmployeeInput) payroll.Outcome {
	emp := in.Employee
	calc := &calculation{
		state: payroll.StatePending,
		log:   calclog.NewLogger(rc.RunID, emp.ID),
	}

	result, err := c.compute(calc, rc, in)
	if err != nil {
		calc.log.Fail(calc.state, err)
		log := calc.log.Freeze()
		return failedOutcome(in, calc.state, err, &log)
	}

	calc.enter(payroll.StateFinalizing)
	finalize(&result, calc)

	// The stored log is the one of a finished calculation; it only becomes the outcome's
	// log once the result is saved.
	done := calc.log.Fork()
	done.Transition(payroll.StateFinalizing, payroll.StateDone)
	log := done.Freeze()
	if rc.ProcessType != payroll.ProcessSimulation && c.results != nil {
		if err := c.results.SaveResult(ctx, rc, result, log); err != nil {
			err = fmt.Errorf("failed to save result: %w", err)
			calc.log.Fail(calc.state, err)
			failed := calc.log.Freeze()
			return failedOutcome(in, calc.state, err, &failed)
		}
	}
	calc.state = payroll.StateDone

	return payroll.Outcome{
		EmployeeID:   emp.ID,
		EmployeeName: emp.FullName,
		Status:       payroll.OutcomeSucceeded,
		Payroll:      &result,
		Log:          &log,
	}
}

func (c *Calculator) compute(calc *calculation, rc payroll.RunContext, in payroll.EmployeeInput) (payroll.Payroll, error) {
	cfg := rc.Config
	emp := in.Employee

	calc.enter(payroll.StateAggregating)
	summary := AggregateTime(emp.ID, rc.Period, in.Records, in.Schedule, cfg.LatenessToleranceMinutes)
	calc.log.Record("aggregate_time", map[string]any{
		"records":  len(in.Records),
		"schedule": in.Schedule.ID,
	}, map[string]any{
		"worked_minutes":   summary.WorkedMinutes,
		"overtime_minutes": summary.OvertimeMinutes,
		"absence_minutes":  summary.AbsenceMinutes,
		"complete_days":    summary.CompleteDays,
		"incomplete_days":  len(summary.IncompleteDays),
	})

	calc.enter(payroll.StateResolvingRubricas)
	events, err := c.rubricas.Resolve(rc, in, summary, calc.log)
	if err != nil {
		return payroll.Payroll{}, err
	}

	calc.enter(payroll.StateComputingStatutory)
	p := payroll.Payroll{
		EmployeeID: emp.ID,
		CompanyID:  rc.CompanyID,
		Period:     rc.Period,
		Events:     events,
		Time:       summary,
	}
	if err := c.statutory(&p, cfg, emp.Dependents, string(emp.ContractType), calc); err != nil {
		return payroll.Payroll{}, err
	}
	return p, nil
}

// statutory fills the bases and contributions. FGTS is an employer charge and is not withheld.
func (c *Calculator) statutory(p *payroll.Payroll, cfg payroll.PayrollConfig, dependents int, contractType string, calc *calculation) error {
	var (
		inssEarn, inssDed decimal.Decimal
		irrfEarn, irrfDed decimal.Decimal
		fgtsEarn, fgtsDed decimal.Decimal
	)
	for _, e := range p.Events {
		earning := e.Kind == payroll.RubricaKindEarning
		add := func(flag bool, earn, ded *decimal.Decimal) {
			if !flag {
				return
			}
			if earning {
				*earn = earn.Add(e.Amount)
			} else {
				*ded = ded.Add(e.Amount)
			}
		}
		add(e.Incidence.INSS, &inssEarn, &inssDed)
		add(e.Incidence.IRRF, &irrfEarn, &irrfDed)
		add(e.Incidence.FGTS, &fgtsEarn, &fgtsDed)
	}
	p.INSSBase = inssEarn.Sub(inssDed)
	if p.INSSBase.IsNegative() {
		return fmt.Errorf("%w: inss base %s", payroll.ErrNegativeBase, p.INSSBase)
	}
	if cfg.ApplyINSS {
		res, err := ComputeBracket(p.INSSBase, cfg.INSS, cfg.Rounding)
		if err != nil {
			return err
		}
		p.INSS = res.Tax
		calc.log.Record("inss", map[string]any{"base": p.INSSBase, "taxable": res.TaxableBase, "tier": res.AppliedTier}, res.Tax)
	}

	dependentDeduction := cfg.IRRF.DependentDeduction.Mul(decimal.NewFromInt(int64(dependents)))
	p.IRRFBase = irrfEarn.Sub(irrfDed).Sub(p.INSS).Sub(dependentDeduction)
	if p.IRRFBase.IsNegative() {
		p.IRRFBase = decimal.Zero
	}
	if cfg.ApplyIRRF {
		res, err := ComputeBracket(p.IRRFBase, cfg.IRRF, cfg.Rounding)
		if err != nil {
			return err
		}
		p.IRRF = res.Tax
		calc.log.Record("irrf", map[string]any{
			"base":                p.IRRFBase,
			"dependents":          dependents,
			"dependent_deduction": dependentDeduction,
			"tier":                res.AppliedTier,
		}, res.Tax)
	}

	p.FGTSBase = fgtsEarn.Sub(fgtsDed)
	if p.FGTSBase.IsNegative() {
		p.FGTSBase = decimal.Zero
	}
	if cfg.ApplyFGTS {
		flat, ok := cfg.FlatRateFor(contractType)
		if !ok {
			return fmt.Errorf("%w: %s", payroll.ErrNoFlatRate, contractType)
		}
		p.FGTS = ComputeFlatRate(p.FGTSBase, flat.Rate, flat.Ceiling, cfg.Rounding)
		calc.log.Record("fgts", map[string]any{"base": p.FGTSBase, "rate": flat.Rate, "contract_type": contractType}, p.FGTS)
	}

	return nil
}

// finalize sums the events and derives net = gross - deductions - withholdings.
func finalize(p *payroll.Payroll, calc *calculation) {
	var gross, deductions decimal.Decimal
	for _, e := range p.Events {
		if e.Kind == payroll.RubricaKindEarning {
			gross = gross.Add(e.Amount)
		} else {
			deductions = deductions.Add(e.Amount)
		}
	}
	p.Gross = gross
	p.TotalDeductions = deductions
	p.Withholdings = p.INSS.Add(p.IRRF)
	p.Net = gross.Sub(deductions).Sub(p.Withholdings)
	calc.log.Record("net", map[string]any{
		"gross":        gross,
		"deductions":   deductions,
		"withholdings": p.Withholdings,
	}, p.Net)
}

func failedOutcome(in payroll.EmployeeInput, state payroll.CalculationState, err error, log *payroll.CalculationLog) payroll.Outcome {
	return payroll.Outcome{
		EmployeeID:   in.Employee.ID,
		EmployeeName: in.Employee.FullName,
		Status:       payroll.OutcomeFailed,
		Log:          log,
		FailedState:  state,
		Reason:       err.Error(),
	}
}

package payroll

import (
	"fmt"
	"sort"

	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/employee"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/payroll"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/timerecord"
	"github.com/shopspring/decimal"
)

// Named bases a percentage rubrica can reference.
const (
	BaseSalary           = "base_salary"
	BaseHourlyRate       = "hourly_rate"
	BaseWorkedHoursValue = "worked_hours_value"
	BaseOvertimeValue    = "overtime_value"
	BaseGrossEarnings    = "gross_earnings"
)

// Names of the built-in formulas.
const (
	FormulaOvertime         = "overtime"
	FormulaOvertimeDSR      = "overtime_dsr"
	FormulaAbsence          = "absence"
	FormulaTransportVoucher = "transport_voucher"
	FormulaHourlyWage       = "hourly_wage"
)

// FormulaInput is everything a formula may read. Formulas must be pure.
type FormulaInput struct {
	Employee   employee.Employee
	Config     payroll.PayrollConfig
	Time       timerecord.Summary
	Rubrica    payroll.Rubrica
	Assignment *payroll.BenefitAssignment
	Gross      decimal.Decimal
	Deducting  bool
}

// Formula returns the unrounded amount and the reference (quantity or base) it was derived from.
type Formula func(in FormulaInput) (amount decimal.Decimal, reference decimal.Decimal, err error)

// FormulaRegistry maps formula names to pure functions. Register everything before the first run;
// lookups are read-only and safe for concurrent workers.
type FormulaRegistry struct {
	formulas map[string]Formula
}

// NewFormulaRegistry returns a registry holding the built-in formulas.
func NewFormulaRegistry() *FormulaRegistry {
	r := &FormulaRegistry{formulas: make(map[string]Formula)}
	r.Register(FormulaOvertime, overtimeFormula)
	r.Register(FormulaOvertimeDSR, overtimeDSRFormula)
	r.Register(FormulaAbsence, absenceFormula)
	r.Register(FormulaTransportVoucher, transportVoucherFormula)
	r.Register(FormulaHourlyWage, hourlyWageFormula)
	return r
}

func (r *FormulaRegistry) Register(name string, f Formula) {
	r.formulas[name] = f
}

func (r *FormulaRegistry) Lookup(name string) (Formula, bool) {
	f, ok := r.formulas[name]
	return f, ok
}

// Names lists the registered formulas, sorted.
func (r *FormulaRegistry) Names() []string {
	names := make([]string, 0, len(r.formulas))
	for n := range r.formulas {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ResolveBase returns the value of a named base for the input.
func ResolveBase(name string, in FormulaInput) (decimal.Decimal, error) {
	switch name {
	case BaseSalary:
		return baseSalary(in.Employee)
	case BaseHourlyRate:
		return hourlyRate(in)
	case BaseWorkedHoursValue:
		rate, err := hourlyRate(in)
		if err != nil {
			return decimal.Zero, err
		}
		return in.Time.WorkedHours().Mul(rate), nil
	case BaseOvertimeValue:
		return overtimeValue(in)
	case BaseGrossEarnings:
		if !in.Deducting {
			return decimal.Zero, fmt.Errorf("%w: %s is only available to deductions", payroll.ErrMissingBase, name)
		}
		return in.Gross, nil
	}
	return decimal.Zero, fmt.Errorf("%w: unknown base %q", payroll.ErrMissingBase, name)
}

func baseSalary(emp employee.Employee) (decimal.Decimal, error) {
	if emp.BaseSalary == nil {
		return decimal.Zero, fmt.Errorf("%w: %s", payroll.ErrMissingBase, employee.ErrNoBaseSalary)
	}
	return *emp.BaseSalary, nil
}

// hourlyRate divides the base salary by the monthly hours of the config.
func hourlyRate(in FormulaInput) (decimal.Decimal, error) {
	salary, err := baseSalary(in.Employee)
	if err != nil {
		return decimal.Zero, err
	}
	monthlyHours := decimal.NewFromInt(int64(in.Config.WorkingDaysPerMonth * in.Config.HoursPerDay))
	if !monthlyHours.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: monthly hours are not configured", payroll.ErrMissingBase)
	}
	return salary.Div(monthlyHours), nil
}

func overtimeValue(in FormulaInput) (decimal.Decimal, error) {
	rate, err := hourlyRate(in)
	if err != nil {
		return decimal.Zero, err
	}
	multiplier := decimal.NewFromInt(1).Add(in.Config.OvertimePercent)
	return in.Time.OvertimeHours().Mul(rate).Mul(multiplier), nil
}

func overtimeFormula(in FormulaInput) (decimal.Decimal, decimal.Decimal, error) {
	v, err := overtimeValue(in)
	return v, in.Time.OvertimeHours(), err
}

func overtimeDSRFormula(in FormulaInput) (decimal.Decimal, decimal.Decimal, error) {
	v, err := overtimeValue(in)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return v.Mul(in.Config.DSRPercent), v, nil
}

func absenceFormula(in FormulaInput) (decimal.Decimal, decimal.Decimal, error) {
	rate, err := hourlyRate(in)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return in.Time.AbsenceHours().Mul(rate), in.Time.AbsenceHours(), nil
}

// transportVoucherFormula withholds a share of the salary, capped at the benefit cost when assigned.
func transportVoucherFormula(in FormulaInput) (decimal.Decimal, decimal.Decimal, error) {
	salary, err := baseSalary(in.Employee)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	amount := salary.Mul(in.Config.TransportVoucherPercent)
	if in.Assignment != nil && in.Assignment.CustomValue != nil && in.Assignment.CustomValue.LessThan(amount) {
		amount = *in.Assignment.CustomValue
	}
	return amount, salary, nil
}

func hourlyWageFormula(in FormulaInput) (decimal.Decimal, decimal.Decimal, error) {
	rate, err := hourlyRate(in)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return in.Time.WorkedHours().Mul(rate), in.Time.WorkedHours(), nil
}

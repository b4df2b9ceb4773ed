package payroll

import (
	"fmt"
	"sort"

	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/payroll"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/timerecord"
	"github.com/shopspring/decimal"
)

// StepRecorder receives calculation steps for the audit trail.
type StepRecorder interface {
	Record(step string, inputs map[string]any, output any)
}

type nopRecorder struct{}

func (nopRecorder) Record(string, map[string]any, any) {}

// Codes of the system rubricas that carry pending deductions.
var PendingDeductionCodes = map[payroll.PendingDeductionKind]string{
	payroll.PendingMedicalCopay:   "COP_MED",
	payroll.PendingLoan:           "EMPREST",
	payroll.PendingFine:           "MULTA",
	payroll.PendingVehicleDamage:  "AVARIA",
	payroll.PendingMaterialDamage: "DANOS",
	payroll.PendingAdvance:        "ADIANT",
	payroll.PendingAgreed:         "DESC_COMB",
	payroll.PendingOther:          "DESC_OUT",
}

// RubricaEngine resolves the rubricas of a snapshot into payroll events for one employee.
type RubricaEngine struct {
	formulas *FormulaRegistry
}

func NewRubricaEngine(formulas *FormulaRegistry) *RubricaEngine {
	if formulas == nil {
		formulas = NewFormulaRegistry()
	}
	return &RubricaEngine{formulas: formulas}
}

// Resolve is a single pass: earnings first, so deductions see a stable gross, each group in
// display order. A rubrica with an unresolvable input fails the employee.
func (e *RubricaEngine) Resolve(rc payroll.RunContext, in payroll.EmployeeInput, summary timerecord.Summary, rec StepRecorder) ([]payroll.PayrollEvent, error) {
	if rec == nil {
		rec = nopRecorder{}
	}

	assignments := make(map[string]*payroll.BenefitAssignment, len(in.Benefits))
	for i := range in.Benefits {
		b := &in.Benefits[i]
		if b.EmployeeID != "" && b.EmployeeID != in.Employee.ID {
			continue
		}
		if b.CoversPeriod(rc.Period) {
			assignments[b.RubricaCode] = b
		}
	}

	applicable := e.applicable(rc.Config.Rubricas, in, assignments)

	var (
		events []payroll.PayrollEvent
		gross  = decimal.Zero
		round  = rc.Config.Rounding
	)
	for _, r := range applicable {
		fin := FormulaInput{
			Employee:   in.Employee,
			Config:     rc.Config,
			Time:       summary,
			Rubrica:    r,
			Assignment: assignments[r.Code],
			Gross:      gross,
			Deducting:  r.Kind == payroll.RubricaKindDeduction,
		}
		amount, reference, err := e.amount(r, fin)
		if err != nil {
			return nil, fmt.Errorf("rubrica %s: %w", r.Code, err)
		}
		amount = round.Round(amount)
		rec.Record("rubrica:"+r.Code, map[string]any{
			"kind":      r.Kind,
			"basis":     r.Basis,
			"reference": reference,
			"gross":     gross,
		}, amount)
		if amount.IsZero() {
			continue
		}
		if amount.IsNegative() {
			return nil, fmt.Errorf("rubrica %s: %w: amount %s", r.Code, payroll.ErrNegativeBase, amount)
		}
		events = append(events, newEvent(r, amount, reference, ""))
		if r.Kind == payroll.RubricaKindEarning {
			gross = gross.Add(amount)
		}
	}

	pending, err := e.pendingEvents(rc, in, rec)
	if err != nil {
		return nil, err
	}
	return append(events, pending...), nil
}

// applicable filters by scope, keeps the most specific rubrica per code and orders the result.
func (e *RubricaEngine) applicable(rubricas []payroll.Rubrica, in payroll.EmployeeInput, assignments map[string]*payroll.BenefitAssignment) []payroll.Rubrica {
	byCode := make(map[string]payroll.Rubrica)
	for _, r := range rubricas {
		if !r.Active || isPendingCode(r.Code) {
			continue
		}
		if !inScope(r, in) {
			continue
		}
		if r.RequiresAssignment && assignments[r.Code] == nil {
			continue
		}
		if cur, ok := byCode[r.Code]; ok && specificity(cur.Scope) >= specificity(r.Scope) {
			continue
		}
		byCode[r.Code] = r
	}

	out := make([]payroll.Rubrica, 0, len(byCode))
	for _, r := range byCode {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Kind != b.Kind {
			return a.Kind == payroll.RubricaKindEarning
		}
		if a.DisplayOrder != b.DisplayOrder {
			return a.DisplayOrder < b.DisplayOrder
		}
		return a.Code < b.Code
	})
	return out
}

func (e *RubricaEngine) amount(r payroll.Rubrica, in FormulaInput) (decimal.Decimal, decimal.Decimal, error) {
	switch r.Basis {
	case payroll.BasisFixed:
		amount := r.Amount
		if in.Assignment != nil && in.Assignment.CustomValue != nil {
			amount = *in.Assignment.CustomValue
		}
		return amount, decimal.NewFromInt(1), nil
	case payroll.BasisPercentage:
		base, err := ResolveBase(r.BaseName, in)
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		return base.Mul(r.Percentage), base, nil
	case payroll.BasisFormula:
		f, ok := e.formulas.Lookup(r.FormulaName)
		if !ok {
			return decimal.Zero, decimal.Zero, fmt.Errorf("%w: %q", payroll.ErrUnknownFormula, r.FormulaName)
		}
		return f(in)
	}
	return decimal.Zero, decimal.Zero, fmt.Errorf("%w: basis %q", payroll.ErrInvalidRubrica, r.Basis)
}

func (e *RubricaEngine) pendingEvents(rc payroll.RunContext, in payroll.EmployeeInput, rec StepRecorder) ([]payroll.PayrollEvent, error) {
	var events []payroll.PayrollEvent
	for _, p := range in.PendingDeductions {
		if p.EmployeeID != "" && p.EmployeeID != in.Employee.ID {
			continue
		}
		code, ok := PendingDeductionCodes[p.Kind]
		if !ok {
			code = PendingDeductionCodes[payroll.PendingOther]
		}
		r, ok := rc.Config.RubricaByCode(code)
		if !ok {
			return nil, fmt.Errorf("pending deduction %s: %w: %s", p.ID, payroll.ErrUnknownRubrica, code)
		}
		if p.Amount.IsNegative() {
			return nil, fmt.Errorf("pending deduction %s: %w: amount %s", p.ID, payroll.ErrNegativeBase, p.Amount)
		}
		amount := rc.Config.Rounding.Round(p.Amount)
		note := p.Description
		if p.TotalInstallments > 1 {
			note = fmt.Sprintf("Parcela %d/%d", p.Installment, p.TotalInstallments)
			if p.Description != "" {
				note = p.Description + " - " + note
			}
		}
		rec.Record("pending:"+code, map[string]any{
			"pending_id":  p.ID,
			"kind":        p.Kind,
			"installment": p.Installment,
		}, amount)
		if amount.IsZero() {
			continue
		}
		events = append(events, newEvent(r, amount, decimal.NewFromInt(1), note))
	}
	return events, nil
}

func newEvent(r payroll.Rubrica, amount, reference decimal.Decimal, note string) payroll.PayrollEvent {
	sign := 1
	if r.Kind == payroll.RubricaKindDeduction {
		sign = -1
	}
	return payroll.PayrollEvent{
		RubricaID: r.ID,
		Code:      r.Code,
		Name:      r.Name,
		Kind:      r.Kind,
		Amount:    amount,
		Sign:      sign,
		Reference: reference,
		Note:      note,
		Incidence: r.Incidence,
	}
}

func inScope(r payroll.Rubrica, in payroll.EmployeeInput) bool {
	switch r.Scope {
	case payroll.ScopeCompany:
		return true
	case payroll.ScopePosition:
		return r.ScopeRef == in.Employee.PositionID
	case payroll.ScopeEmployee:
		return r.ScopeRef == in.Employee.ID
	}
	return false
}

func specificity(s payroll.Scope) int {
	switch s {
	case payroll.ScopeEmployee:
		return 2
	case payroll.ScopePosition:
		return 1
	}
	return 0
}

func isPendingCode(code string) bool {
	for _, c := range PendingDeductionCodes {
		if c == code {
			return true
		}
	}
	return false
}

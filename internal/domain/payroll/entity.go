package payroll

import (
	"fmt"
	"time"

	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/timerecord"
	"github.com/shopspring/decimal"
)

// Period is a competence (year-month) covered by a run.
type Period struct {
	Year  int
	Month int
}

func (p Period) Validate() error {
	if p.Year < 2000 || p.Year > 2100 || p.Month < 1 || p.Month > 12 {
		return ErrInvalidPeriod
	}
	return nil
}

// Start is the first instant of the period in loc.
func (p Period) Start(loc *time.Location) time.Time {
	return time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, loc)
}

// End is the first instant after the period in loc.
func (p Period) End(loc *time.Location) time.Time {
	return p.Start(loc).AddDate(0, 1, 0)
}

// Index orders periods chronologically.
func (p Period) Index() int {
	return p.Year*12 + p.Month - 1
}

func (p Period) Before(o Period) bool {
	return p.Index() < o.Index()
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// ========== RUBRICAS ==========

type RubricaKind string

const (
	RubricaKindEarning   RubricaKind = "earning"
	RubricaKindDeduction RubricaKind = "deduction"
)

type CalculationBasis string

const (
	BasisFixed      CalculationBasis = "fixed"
	BasisPercentage CalculationBasis = "percentage"
	BasisFormula    CalculationBasis = "formula"
)

type Scope string

const (
	ScopeCompany  Scope = "company"
	ScopePosition Scope = "position"
	ScopeEmployee Scope = "employee"
)

// Incidence flags which statutory bases a rubrica feeds.
type Incidence struct {
	INSS bool
	IRRF bool
	FGTS bool
}

// Rubrica is a configured earning or deduction code.
type Rubrica struct {
	ID                 string
	CompanyID          string
	Code               string
	Name               string
	Kind               RubricaKind
	Basis              CalculationBasis
	Amount             decimal.Decimal // fixed basis
	Percentage         decimal.Decimal // percentage basis, as a ratio (0.10 = 10%)
	BaseName           string          // percentage basis
	FormulaName        string          // formula basis
	Incidence          Incidence
	DisplayOrder       int
	Scope              Scope
	ScopeRef           string // position id or employee id
	RequiresAssignment bool
	Active             bool
}

// Validate checks the static shape of a rubrica. Runtime inputs (bases, formulas) are checked per employee.
func (r Rubrica) Validate() error {
	if r.Code == "" {
		return fmt.Errorf("%w: code is required", ErrInvalidRubrica)
	}
	if r.Kind != RubricaKindEarning && r.Kind != RubricaKindDeduction {
		return fmt.Errorf("%w: %s has invalid kind %q", ErrInvalidRubrica, r.Code, r.Kind)
	}
	switch r.Basis {
	case BasisFixed:
		if r.Amount.IsNegative() {
			return fmt.Errorf("%w: %s has a negative amount", ErrInvalidRubrica, r.Code)
		}
	case BasisPercentage:
		if r.BaseName == "" {
			return fmt.Errorf("%w: %s has no base", ErrInvalidRubrica, r.Code)
		}
		if r.Percentage.IsNegative() {
			return fmt.Errorf("%w: %s has a negative percentage", ErrInvalidRubrica, r.Code)
		}
	case BasisFormula:
		if r.FormulaName == "" {
			return fmt.Errorf("%w: %s has no formula", ErrInvalidRubrica, r.Code)
		}
	default:
		return fmt.Errorf("%w: %s has invalid basis %q", ErrInvalidRubrica, r.Code, r.Basis)
	}
	switch r.Scope {
	case ScopeCompany:
	case ScopePosition, ScopeEmployee:
		if r.ScopeRef == "" {
			return fmt.Errorf("%w: %s scope %s needs a reference", ErrInvalidRubrica, r.Code, r.Scope)
		}
	default:
		return fmt.Errorf("%w: %s has invalid scope %q", ErrInvalidRubrica, r.Code, r.Scope)
	}
	return nil
}

// BenefitAssignment attaches a rubrica to an employee for a date range, optionally with its own value.
type BenefitAssignment struct {
	EmployeeID  string
	RubricaCode string
	CustomValue *decimal.Decimal
	StartDate   time.Time
	EndDate     *time.Time
	Active      bool
}

// CoversPeriod reports whether the assignment is active at any point of the period.
func (b BenefitAssignment) CoversPeriod(p Period) bool {
	if !b.Active {
		return false
	}
	start := p.Start(b.StartDate.Location())
	end := p.End(b.StartDate.Location())
	if !b.StartDate.Before(end) {
		return false
	}
	return b.EndDate == nil || !b.EndDate.Before(start)
}

type PendingDeductionKind string

const (
	PendingMedicalCopay   PendingDeductionKind = "coparticipacao_medica"
	PendingLoan           PendingDeductionKind = "emprestimo"
	PendingFine           PendingDeductionKind = "multa"
	PendingVehicleDamage  PendingDeductionKind = "avaria_veiculo"
	PendingMaterialDamage PendingDeductionKind = "danos_materiais"
	PendingAdvance        PendingDeductionKind = "adiantamento"
	PendingAgreed         PendingDeductionKind = "desconto_combinado"
	PendingOther          PendingDeductionKind = "outros"
)

// PendingDeduction is a one-off or installment deduction due in the period.
type PendingDeduction struct {
	ID                string
	EmployeeID        string
	Kind              PendingDeductionKind
	Description       string
	Amount            decimal.Decimal
	Installment       int
	TotalInstallments int
}

// ========== CONFIGURATION ==========

type RoundingMode string

const (
	RoundingHalfUp RoundingMode = "half_up"
	RoundingUp     RoundingMode = "up"
	RoundingDown   RoundingMode = "down"
)

// Round rounds to the currency minor unit.
func (m RoundingMode) Round(d decimal.Decimal) decimal.Decimal {
	switch m {
	case RoundingUp:
		return d.RoundCeil(2)
	case RoundingDown:
		return d.RoundFloor(2)
	default:
		return d.Round(2)
	}
}

type TableKind string

const (
	TableINSS TableKind = "inss"
	TableIRRF TableKind = "irrf"
)

// TaxTier is one row of a progressive table. Upper nil means open-ended.
type TaxTier struct {
	Lower      decimal.Decimal
	Upper      *decimal.Decimal
	Rate       decimal.Decimal
	Deductible decimal.Decimal
}

// Contains reports lower <= base < upper.
func (t TaxTier) Contains(base decimal.Decimal) bool {
	if base.LessThan(t.Lower) {
		return false
	}
	return t.Upper == nil || base.LessThan(*t.Upper)
}

// TaxTable is a progressive bracket table valid for a range of periods.
type TaxTable struct {
	Kind               TableKind
	ValidFrom          Period
	ValidTo            *Period
	Ceiling            *decimal.Decimal
	DependentDeduction decimal.Decimal
	Tiers              []TaxTier
}

// Validate enforces ascending, contiguous, non-overlapping tiers covering [0, ∞).
func (t TaxTable) Validate() error {
	if len(t.Tiers) == 0 {
		return fmt.Errorf("%w: %s table has no tiers", ErrInvalidTaxTable, t.Kind)
	}
	if !t.Tiers[0].Lower.IsZero() {
		return fmt.Errorf("%w: %s table does not start at zero", ErrInvalidTaxTable, t.Kind)
	}
	for i, tier := range t.Tiers {
		last := i == len(t.Tiers)-1
		if tier.Upper == nil && !last {
			return fmt.Errorf("%w: %s tier %d is open-ended but not last", ErrInvalidTaxTable, t.Kind, i)
		}
		if tier.Upper != nil && !tier.Upper.GreaterThan(tier.Lower) {
			return fmt.Errorf("%w: %s tier %d upper bound must exceed lower bound", ErrInvalidTaxTable, t.Kind, i)
		}
		if last && tier.Upper != nil {
			return fmt.Errorf("%w: %s last tier must be open-ended", ErrInvalidTaxTable, t.Kind)
		}
		if i > 0 && !tier.Lower.Equal(*t.Tiers[i-1].Upper) {
			return fmt.Errorf("%w: %s tier %d is not contiguous with tier %d", ErrInvalidTaxTable, t.Kind, i, i-1)
		}
		if tier.Rate.IsNegative() || tier.Rate.GreaterThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("%w: %s tier %d rate out of range", ErrInvalidTaxTable, t.Kind, i)
		}
		if tier.Deductible.IsNegative() {
			return fmt.Errorf("%w: %s tier %d has a negative deductible", ErrInvalidTaxTable, t.Kind, i)
		}
	}
	if t.Ceiling != nil && !t.Ceiling.IsPositive() {
		return fmt.Errorf("%w: %s ceiling must be positive", ErrInvalidTaxTable, t.Kind)
	}
	if t.DependentDeduction.IsNegative() {
		return fmt.Errorf("%w: %s dependent deduction is negative", ErrInvalidTaxTable, t.Kind)
	}
	return nil
}

// ActiveIn reports whether the table is valid for p.
func (t TaxTable) ActiveIn(p Period) bool {
	if p.Before(t.ValidFrom) {
		return false
	}
	return t.ValidTo == nil || !t.ValidTo.Before(p)
}

// FlatRateConfig is a single-rate contribution (FGTS) with an optional base ceiling.
// An empty ContractType is the default for contract types without their own config.
type FlatRateConfig struct {
	ContractType string
	Rate         decimal.Decimal
	Ceiling      *decimal.Decimal
	ValidFrom    Period
	ValidTo      *Period
}

func (f FlatRateConfig) Validate() error {
	if f.Rate.IsNegative() || f.Rate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: rate out of range", ErrInvalidFlatRate)
	}
	if f.Ceiling != nil && !f.Ceiling.IsPositive() {
		return fmt.Errorf("%w: ceiling must be positive", ErrInvalidFlatRate)
	}
	return nil
}

// PayrollConfig is the per-company, per-period configuration snapshot of a run.
type PayrollConfig struct {
	ID                       string
	CompanyID                string
	Period                   Period
	ReferenceDate            time.Time
	Rounding                 RoundingMode
	WorkingDaysPerMonth      int
	HoursPerDay              int
	OvertimePercent          decimal.Decimal
	DSRPercent               decimal.Decimal
	TransportVoucherPercent  decimal.Decimal
	LatenessToleranceMinutes int
	ApplyINSS                bool
	ApplyIRRF                bool
	ApplyFGTS                bool
	Active                   bool

	Rubricas []Rubrica
	INSS     TaxTable
	IRRF     TaxTable
	FGTS     []FlatRateConfig
}

// DefaultConfig returns the configuration used when a company has none.
func DefaultConfig(companyID string, period Period) PayrollConfig {
	return PayrollConfig{
		CompanyID:                companyID,
		Period:                   period,
		ReferenceDate:            period.Start(time.UTC),
		Rounding:                 RoundingHalfUp,
		WorkingDaysPerMonth:      22,
		HoursPerDay:              8,
		OvertimePercent:          decimal.RequireFromString("0.50"),
		DSRPercent:               decimal.RequireFromString("0.0455"),
		TransportVoucherPercent:  decimal.RequireFromString("0.06"),
		LatenessToleranceMinutes: 5,
		ApplyINSS:                true,
		ApplyIRRF:                true,
		ApplyFGTS:                true,
		Active:                   true,
	}
}

// Validate checks the snapshot once, at load time.
func (c PayrollConfig) Validate() error {
	if c.CompanyID == "" {
		return fmt.Errorf("%w: company is required", ErrInvalidConfig)
	}
	if err := c.Period.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	switch c.Rounding {
	case RoundingHalfUp, RoundingUp, RoundingDown:
	default:
		return fmt.Errorf("%w: unknown rounding mode %q", ErrInvalidConfig, c.Rounding)
	}
	if c.WorkingDaysPerMonth <= 0 || c.HoursPerDay <= 0 {
		return fmt.Errorf("%w: working days and hours per day must be positive", ErrInvalidConfig)
	}
	if c.OvertimePercent.IsNegative() || c.DSRPercent.IsNegative() || c.TransportVoucherPercent.IsNegative() {
		return fmt.Errorf("%w: percentages must be non-negative", ErrInvalidConfig)
	}
	if c.LatenessToleranceMinutes < 0 {
		return fmt.Errorf("%w: lateness tolerance must be non-negative", ErrInvalidConfig)
	}
	seen := make(map[string]bool, len(c.Rubricas))
	for _, r := range c.Rubricas {
		if err := r.Validate(); err != nil {
			return err
		}
		if seen[r.ID] && r.ID != "" {
			return fmt.Errorf("%w: duplicate rubrica id %s", ErrInvalidConfig, r.ID)
		}
		seen[r.ID] = true
	}
	if c.ApplyINSS {
		if err := c.INSS.Validate(); err != nil {
			return err
		}
	}
	if c.ApplyIRRF {
		if err := c.IRRF.Validate(); err != nil {
			return err
		}
	}
	if c.ApplyFGTS {
		if len(c.FGTS) == 0 {
			return fmt.Errorf("%w: no FGTS configuration", ErrInvalidFlatRate)
		}
		for _, f := range c.FGTS {
			if err := f.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// FlatRateFor picks the FGTS config of a contract type, falling back to the default one.
func (c PayrollConfig) FlatRateFor(contractType string) (FlatRateConfig, bool) {
	var fallback *FlatRateConfig
	for i, f := range c.FGTS {
		if f.ContractType == contractType {
			return f, true
		}
		if f.ContractType == "" && fallback == nil {
			fallback = &c.FGTS[i]
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return FlatRateConfig{}, false
}

// RubricaByCode returns the first snapshot rubrica with code.
func (c PayrollConfig) RubricaByCode(code string) (Rubrica, bool) {
	for _, r := range c.Rubricas {
		if r.Code == code {
			return r, true
		}
	}
	return Rubrica{}, false
}

// ========== RUN ==========

type ProcessType string

const (
	ProcessMonthly    ProcessType = "folha_mensal"
	ProcessRecalc     ProcessType = "recalculo"
	ProcessAdjustment ProcessType = "ajuste"
	ProcessSimulation ProcessType = "simulacao"
)

func (t ProcessType) Valid() bool {
	switch t {
	case ProcessMonthly, ProcessRecalc, ProcessAdjustment, ProcessSimulation:
		return true
	}
	return false
}

// RunContext is the explicit, immutable context shared by every component of a run.
type RunContext struct {
	RunID       string
	CompanyID   string
	Period      Period
	ProcessType ProcessType
	Config      PayrollConfig
}

// PayrollEvent is one resolved rubrica instance for one employee in one run.
type PayrollEvent struct {
	RubricaID string
	Code      string
	Name      string
	Kind      RubricaKind
	Amount    decimal.Decimal
	Sign      int
	Reference decimal.Decimal // quantity or base the amount was derived from
	Note      string
	Incidence Incidence
}

// Signed returns the amount with its sign applied.
func (e PayrollEvent) Signed() decimal.Decimal {
	if e.Sign < 0 {
		return e.Amount.Neg()
	}
	return e.Amount
}

// Payroll is the computed pay of one employee.
type Payroll struct {
	EmployeeID      string
	CompanyID       string
	Period          Period
	Events          []PayrollEvent
	Gross           decimal.Decimal
	TotalDeductions decimal.Decimal
	INSSBase        decimal.Decimal
	IRRFBase        decimal.Decimal
	FGTSBase        decimal.Decimal
	INSS            decimal.Decimal
	IRRF            decimal.Decimal
	FGTS            decimal.Decimal
	Withholdings    decimal.Decimal
	Net             decimal.Decimal
	Time            timerecord.Summary
}

type CalculationState string

const (
	StatePending            CalculationState = "pending"
	StateAggregating        CalculationState = "aggregating"
	StateResolvingRubricas  CalculationState = "resolving_rubricas"
	StateComputingStatutory CalculationState = "computing_statutory"
	StateFinalizing         CalculationState = "finalizing"
	StateDone               CalculationState = "done"
	StateFailed             CalculationState = "failed"
)

// LogEntry is one recorded calculation step.
type LogEntry struct {
	Seq    int            `json:"seq"`
	Step   string         `json:"step"`
	Inputs map[string]any `json:"inputs,omitempty"`
	Output any            `json:"output,omitempty"`
	At     time.Time      `json:"at"`
}

// CalculationLog is the ordered audit trail of one employee in one run.
type CalculationLog struct {
	RunID      string     `json:"run_id"`
	EmployeeID string     `json:"employee_id"`
	Entries    []LogEntry `json:"entries"`
}

type OutcomeStatus string

const (
	OutcomeSucceeded OutcomeStatus = "succeeded"
	OutcomeFailed    OutcomeStatus = "failed"
	OutcomeSkipped   OutcomeStatus = "skipped"
)

// Outcome is the per-employee result of a run.
type Outcome struct {
	EmployeeID   string
	EmployeeName string
	Status       OutcomeStatus
	Payroll      *Payroll
	Log          *CalculationLog
	FailedState  CalculationState
	Reason       string
}

// BatchResult is produced exactly once per run.
type BatchResult struct {
	RunID      string
	CompanyID  string
	Period     Period
	Requested  int
	Succeeded  int
	Failed     int
	Skipped    int
	Cancelled  bool
	Outcomes   []Outcome
	StartedAt  time.Time
	FinishedAt time.Time
}

// Outcome returns the outcome of an employee.
func (b BatchResult) Outcome(employeeID string) (Outcome, bool) {
	for _, o := range b.Outcomes {
		if o.EmployeeID == employeeID {
			return o, true
		}
	}
	return Outcome{}, false
}

// ProgressUpdate is emitted once per processed employee, in completion order.
type ProgressUpdate struct {
	RunID              string
	Processed          int
	Total              int
	EmployeeID         string
	EmployeeName       string
	Status             OutcomeStatus
	Percent            int
	EstimatedRemaining time.Duration
	Timestamp          time.Time
}

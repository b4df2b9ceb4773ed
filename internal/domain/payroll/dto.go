package payroll

import (
	"fmt"
	"time"

	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

// PayrollCalculationParams are the inputs of one engine run.
type PayrollCalculationParams struct {
	RunID            string // optional, generated when empty
	CompanyID        string
	Period           Period
	EmployeeIDs      []string // empty means all active employees
	ConcurrencyLimit int      // 0 means the configured default
	ProcessType      ProcessType
	Timeout          time.Duration // 0 means no bound
}

func (p *PayrollCalculationParams) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(p.CompanyID) {
		errs = append(errs, validator.ValidationError{Field: "company_id", Message: "is required"})
	}
	if !validator.IsValidPeriod(p.Period.Year, p.Period.Month) {
		errs = append(errs, validator.ValidationError{Field: "period", Message: "must be a valid year and month"})
	}
	if p.ConcurrencyLimit < 0 {
		errs = append(errs, validator.ValidationError{Field: "concurrency_limit", Message: "must be non-negative"})
	}
	if p.ProcessType != "" && !p.ProcessType.Valid() {
		errs = append(errs, validator.ValidationError{Field: "process_type", Message: "is not a known process type"})
	}
	if validator.HasDuplicates(p.EmployeeIDs) {
		errs = append(errs, validator.ValidationError{Field: "employee_ids", Message: "must not contain duplicates"})
	}
	if p.Timeout < 0 {
		errs = append(errs, validator.ValidationError{Field: "timeout", Message: "must be non-negative"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// PayrollCalculationResult wraps the batch result of a run.
type PayrollCalculationResult struct {
	Batch BatchResult
}

// ========== HTTP DTOs ==========

type StartRunRequest struct {
	CompanyID        string   `json:"-"`
	PeriodYear       int      `json:"period_year"`
	PeriodMonth      int      `json:"period_month"`
	EmployeeIDs      []string `json:"employee_ids,omitempty"`
	ConcurrencyLimit int      `json:"concurrency_limit,omitempty"`
	ProcessType      string   `json:"process_type,omitempty"`
	TimeoutSeconds   int      `json:"timeout_seconds,omitempty"`
}

func (r *StartRunRequest) Validate() error {
	var errs validator.ValidationErrors

	if !validator.IsValidPeriod(r.PeriodYear, r.PeriodMonth) {
		errs = append(errs, validator.ValidationError{Field: "period", Message: "must be a valid year and month"})
	}
	for _, id := range r.EmployeeIDs {
		if !validator.IsValidUUID(id) {
			errs = append(errs, validator.ValidationError{Field: "employee_ids", Message: "must contain valid UUIDs"})
			break
		}
	}
	if validator.HasDuplicates(r.EmployeeIDs) {
		errs = append(errs, validator.ValidationError{Field: "employee_ids", Message: "must not contain duplicates"})
	}
	if r.ConcurrencyLimit < 0 {
		errs = append(errs, validator.ValidationError{Field: "concurrency_limit", Message: "must be non-negative"})
	}
	if r.ProcessType != "" && !ProcessType(r.ProcessType).Valid() {
		errs = append(errs, validator.ValidationError{Field: "process_type", Message: "must be folha_mensal, recalculo, ajuste or simulacao"})
	}
	if r.TimeoutSeconds < 0 {
		errs = append(errs, validator.ValidationError{Field: "timeout_seconds", Message: "must be non-negative"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Params converts the request into engine params.
func (r StartRunRequest) Params(runID string) PayrollCalculationParams {
	pt := ProcessType(r.ProcessType)
	if pt == "" {
		pt = ProcessMonthly
	}
	return PayrollCalculationParams{
		RunID:            runID,
		CompanyID:        r.CompanyID,
		Period:           Period{Year: r.PeriodYear, Month: r.PeriodMonth},
		EmployeeIDs:      r.EmployeeIDs,
		ConcurrencyLimit: r.ConcurrencyLimit,
		ProcessType:      pt,
		Timeout:          time.Duration(r.TimeoutSeconds) * time.Second,
	}
}

type RunStatusResponse struct {
	RunID      string               `json:"run_id"`
	CompanyID  string               `json:"company_id"`
	Period     string               `json:"period"`
	Status     string               `json:"status"`
	Processed  int                  `json:"processed"`
	Total      int                  `json:"total"`
	Error      string               `json:"error,omitempty"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt *time.Time           `json:"finished_at,omitempty"`
	Result     *BatchResultResponse `json:"result,omitempty"`
}

const (
	DefaultRunListLimit = 20
	MaxRunListLimit     = 100
)

type ListRunsRequest struct {
	CompanyID string `json:"-"`
	Status    string `json:"status,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

func (r *ListRunsRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.Status != "" && !validator.IsInSlice(r.Status, []string{"iniciado", "processando", "concluido", "erro", "cancelado"}) {
		errs = append(errs, validator.ValidationError{Field: "status", Message: "must be iniciado, processando, concluido, erro or cancelado"})
	}
	if r.Limit < 0 || r.Limit > MaxRunListLimit {
		errs = append(errs, validator.ValidationError{Field: "limit", Message: fmt.Sprintf("must be between 1 and %d", MaxRunListLimit)})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// RunStatsResponse counts a company's runs per stored status.
type RunStatsResponse struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
}

type BatchResultResponse struct {
	RunID      string            `json:"run_id"`
	Period     string            `json:"period"`
	Requested  int               `json:"requested"`
	Succeeded  int               `json:"succeeded"`
	Failed     int               `json:"failed"`
	Skipped    int               `json:"skipped"`
	Cancelled  bool              `json:"cancelled"`
	Outcomes   []OutcomeResponse `json:"outcomes"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}

type OutcomeResponse struct {
	EmployeeID   string           `json:"employee_id"`
	EmployeeName string           `json:"employee_name,omitempty"`
	Status       string           `json:"status"`
	FailedState  string           `json:"failed_state,omitempty"`
	Reason       string           `json:"reason,omitempty"`
	Payroll      *PayrollResponse `json:"payroll,omitempty"`
}

type PayrollResponse struct {
	Gross           decimal.Decimal `json:"gross"`
	TotalDeductions decimal.Decimal `json:"total_deductions"`
	INSSBase        decimal.Decimal `json:"inss_base"`
	INSS            decimal.Decimal `json:"inss"`
	IRRFBase        decimal.Decimal `json:"irrf_base"`
	IRRF            decimal.Decimal `json:"irrf"`
	FGTSBase        decimal.Decimal `json:"fgts_base"`
	FGTS            decimal.Decimal `json:"fgts"`
	Net             decimal.Decimal `json:"net"`
	WorkedHours     decimal.Decimal `json:"worked_hours"`
	OvertimeHours   decimal.Decimal `json:"overtime_hours"`
	AbsenceHours    decimal.Decimal `json:"absence_hours"`
	IncompleteDays  []string        `json:"incomplete_days,omitempty"`
	Events          []EventResponse `json:"events"`
}

type EventResponse struct {
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Kind      string          `json:"kind"`
	Amount    decimal.Decimal `json:"amount"`
	Reference decimal.Decimal `json:"reference"`
	Note      string          `json:"note,omitempty"`
}

// ToResponse maps a batch result for the API.
func (b BatchResult) ToResponse() BatchResultResponse {
	res := BatchResultResponse{
		RunID:      b.RunID,
		Period:     b.Period.String(),
		Requested:  b.Requested,
		Succeeded:  b.Succeeded,
		Failed:     b.Failed,
		Skipped:    b.Skipped,
		Cancelled:  b.Cancelled,
		Outcomes:   make([]OutcomeResponse, 0, len(b.Outcomes)),
		StartedAt:  b.StartedAt,
		FinishedAt: b.FinishedAt,
	}
	for _, o := range b.Outcomes {
		or := OutcomeResponse{
			EmployeeID:   o.EmployeeID,
			EmployeeName: o.EmployeeName,
			Status:       string(o.Status),
			Reason:       o.Reason,
		}
		if o.Status == OutcomeFailed {
			or.FailedState = string(o.FailedState)
		}
		if o.Payroll != nil {
			or.Payroll = o.Payroll.toResponse()
		}
		res.Outcomes = append(res.Outcomes, or)
	}
	return res
}

func (p Payroll) toResponse() *PayrollResponse {
	res := &PayrollResponse{
		Gross:           p.Gross,
		TotalDeductions: p.TotalDeductions,
		INSSBase:        p.INSSBase,
		INSS:            p.INSS,
		IRRFBase:        p.IRRFBase,
		IRRF:            p.IRRF,
		FGTSBase:        p.FGTSBase,
		FGTS:            p.FGTS,
		Net:             p.Net,
		WorkedHours:     p.Time.WorkedHours().Round(2),
		OvertimeHours:   p.Time.OvertimeHours().Round(2),
		AbsenceHours:    p.Time.AbsenceHours().Round(2),
		Events:          make([]EventResponse, 0, len(p.Events)),
	}
	for _, d := range p.Time.IncompleteDays {
		res.IncompleteDays = append(res.IncompleteDays, d.Format("2006-01-02"))
	}
	for _, e := range p.Events {
		res.Events = append(res.Events, EventResponse{
			Code:      e.Code,
			Name:      e.Name,
			Kind:      string(e.Kind),
			Amount:    e.Amount,
			Reference: e.Reference,
			Note:      e.Note,
		})
	}
	return res
}

type ProgressResponse struct {
	RunID                     string `json:"run_id"`
	Processed                 int    `json:"processed"`
	Total                     int    `json:"total"`
	Percent                   int    `json:"percent"`
	EmployeeID                string `json:"employee_id"`
	EmployeeName              string `json:"employee_name,omitempty"`
	Status                    string `json:"status"`
	EstimatedRemainingSeconds int64  `json:"estimated_remaining_seconds"`
	Timestamp                 string `json:"timestamp"`
}

func (u ProgressUpdate) ToResponse() ProgressResponse {
	return ProgressResponse{
		RunID:                     u.RunID,
		Processed:                 u.Processed,
		Total:                     u.Total,
		Percent:                   u.Percent,
		EmployeeID:                u.EmployeeID,
		EmployeeName:              u.EmployeeName,
		Status:                    string(u.Status),
		EstimatedRemainingSeconds: int64(u.EstimatedRemaining.Seconds()),
		Timestamp:                 u.Timestamp.Format(time.RFC3339),
	}
}

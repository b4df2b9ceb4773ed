package notification

import (
	"time"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	TypePayrollRunCompleted NotificationType = "payroll_run_completed"
	TypePayrollRunFailed    NotificationType = "payroll_run_failed"
	TypePayrollRunCancelled NotificationType = "payroll_run_cancelled"
)

// RunSummary is what the notification collaborator learns about a finished run.
// It carries counts only, never per-employee figures.
type RunSummary struct {
	Type       NotificationType `json:"type"`
	RunID      string           `json:"run_id"`
	CompanyID  string           `json:"company_id"`
	Period     string           `json:"period"`
	Requested  int              `json:"requested"`
	Succeeded  int              `json:"succeeded"`
	Failed     int              `json:"failed"`
	Skipped    int              `json:"skipped"`
	Error      string           `json:"error,omitempty"`
	FinishedAt time.Time        `json:"finished_at"`
}

// Title returns a one-line subject for the summary.
func (s RunSummary) Title() string {
	switch s.Type {
	case TypePayrollRunFailed:
		return "Folha " + s.Period + ": falha no processamento"
	case TypePayrollRunCancelled:
		return "Folha " + s.Period + ": processamento cancelado"
	default:
		return "Folha " + s.Period + ": processamento concluído"
	}
}

package calclog

import (
	"time"

	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/payroll"
)

// Status of a payroll process as stored in the run log.
type Status string

const (
	StatusStarted    Status = "iniciado"
	StatusProcessing Status = "processando"
	StatusCompleted  Status = "concluido"
	StatusError      Status = "erro"
	StatusCancelled  Status = "cancelado"
)

// Terminal reports whether no further transition is expected.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

// Valid reports whether s is one of the stored statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusStarted, StatusProcessing, StatusCompleted, StatusError, StatusCancelled:
		return true
	}
	return false
}

// ListFilter narrows a company's run listing. An empty Status matches every run.
type ListFilter struct {
	Status Status
	Limit  int
}

// RunLog is the process-level record of one run.
type RunLog struct {
	RunID          string
	CompanyID      string
	Period         payroll.Period
	ProcessType    payroll.ProcessType
	Status         Status
	TotalEmployees int
	Processed      int
	Succeeded      int
	Failed         int
	Skipped        int
	ErrorMessage   *string
	StartedAt      time.Time
	FinishedAt     *time.Time
}

// Progress returns the processed share in percent.
func (r RunLog) Progress() int {
	if r.TotalEmployees == 0 {
		return 0
	}
	return r.Processed * 100 / r.TotalEmployees
}

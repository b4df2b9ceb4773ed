package payroll

import (
	"context"

	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/employee"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/schedule"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/timerecord"
)

// EmployeeInput is everything the calculator reads for one employee.
type EmployeeInput struct {
	Employee          employee.Employee
	Records           []timerecord.TimeRecord
	Schedule          schedule.WorkSchedule
	Benefits          []BenefitAssignment
	PendingDeductions []PendingDeduction
}

// Snapshot is the read-only state loaded once per run before fan-out.
type Snapshot struct {
	Run        RunContext
	Employees  []employee.Employee
	Unresolved []string
}

type SnapshotLoader interface {
	Load(ctx context.Context, runID string, params PayrollCalculationParams) (Snapshot, error)
}

type InputLoader interface {
	LoadInput(ctx context.Context, rc RunContext, emp employee.Employee) (EmployeeInput, error)
}

// ProgressFunc receives progress updates from a single consumer goroutine.
type ProgressFunc func(ProgressUpdate)

type Engine interface {
	Run(ctx context.Context, params PayrollCalculationParams, onProgress ProgressFunc) (PayrollCalculationResult, error)
}

// RunService drives runs for the HTTP layer. Company is read from the request claims.
type RunService interface {
	Start(ctx context.Context, req StartRunRequest) (RunStatusResponse, error)
	RunSync(ctx context.Context, req StartRunRequest) (BatchResultResponse, error)
	Get(ctx context.Context, companyID, runID string) (RunStatusResponse, error)
	List(ctx context.Context, req ListRunsRequest) ([]RunStatusResponse, error)
	Stats(ctx context.Context, companyID string) (RunStatsResponse, error)
	Cancel(ctx context.Context, companyID, runID string) error
	GetCalculationLog(ctx context.Context, companyID, runID, employeeID string) (CalculationLog, error)
}

package payroll

import "context"

// ConfigRepository reads payroll configuration. All methods are scoped by company.
type ConfigRepository interface {
	// GetConfigForPeriod returns ErrConfigNotFound when the company has no config for the period.
	GetConfigForPeriod(ctx context.Context, companyID string, period Period) (PayrollConfig, error)
	GetLatestActiveConfig(ctx context.Context, companyID string) (PayrollConfig, error)
	ListRubricas(ctx context.Context, companyID string, activeOnly bool) ([]Rubrica, error)
}

type TaxTableRepository interface {
	// GetActiveTable returns ErrTaxTableNotFound when no table of kind covers the period.
	GetActiveTable(ctx context.Context, kind TableKind, period Period) (TaxTable, error)
	ListFlatRateConfigs(ctx context.Context, period Period) ([]FlatRateConfig, error)
}

type BenefitRepository interface {
	ListAssignments(ctx context.Context, employeeID string, period Period) ([]BenefitAssignment, error)
}

type PendingDeductionRepository interface {
	ListPending(ctx context.Context, employeeID string, period Period) ([]PendingDeduction, error)
}

// ResultRepository persists successful employee results. One call per employee; no cross-employee transaction.
type ResultRepository interface {
	SaveResult(ctx context.Context, rc RunContext, result Payroll, log CalculationLog) error
	GetCalculationLog(ctx context.Context, runID, employeeID string) (CalculationLog, error)
}

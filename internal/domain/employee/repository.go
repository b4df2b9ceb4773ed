package employee

import "context"

type EmployeeRepository interface {
	GetActiveByCompanyID(ctx context.Context, companyID string) ([]Employee, error)
	// GetByIDs returns the employees of the company among ids; unknown ids are silently absent.
	GetByIDs(ctx context.Context, companyID string, ids []string) ([]Employee, error)
}

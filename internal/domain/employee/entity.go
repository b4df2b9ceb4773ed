package employee

import (
	"time"

	"github.com/shopspring/decimal"
)

// Employee is the immutable view of an employee that a payroll run reads.
type Employee struct {
	ID             string
	CompanyID      string
	EmployeeCode   string
	FullName       string
	PositionID     string
	WorkScheduleID string
	HireDate       time.Time
	BaseSalary     *decimal.Decimal
	ContractType   ContractType
	Dependents     int
	Status         EmploymentStatus
}

type ContractType string

const (
	ContractTypeCLT        ContractType = "clt"
	ContractTypeApprentice ContractType = "menor_aprendiz"
	ContractTypeIntern     ContractType = "estagio"
	ContractTypeTemporary  ContractType = "temporario"
)

type EmploymentStatus string

const (
	EmploymentStatusActive   EmploymentStatus = "active"
	EmploymentStatusInactive EmploymentStatus = "inactive"
	EmploymentStatusOnLeave  EmploymentStatus = "on_leave"
)

// Payable reports whether the employee takes part in a run that targets all active staff.
func (e Employee) Payable() bool {
	return e.Status == EmploymentStatusActive || e.Status == EmploymentStatusOnLeave
}

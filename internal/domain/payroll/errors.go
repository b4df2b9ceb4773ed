package payroll

import "errors"

// Run-level (fatal) errors abort a run before any worker starts.
var (
	ErrInvalidPeriod      = errors.New("invalid payroll period")
	ErrInvalidConfig      = errors.New("invalid payroll configuration")
	ErrInvalidRubrica     = errors.New("invalid rubrica")
	ErrInvalidTaxTable    = errors.New("invalid tax bracket table")
	ErrTaxTableNotFound   = errors.New("no active tax bracket table for period")
	ErrInvalidFlatRate    = errors.New("invalid flat rate configuration")
	ErrConfigNotFound     = errors.New("payroll configuration not found")
	ErrNoEmployees        = errors.New("no employees resolvable for run")
	ErrCompanyRequired    = errors.New("company is required")
	ErrRunNotFound        = errors.New("payroll run not found")
	ErrRunAlreadyFinished = errors.New("payroll run already finished")
)

// Per-employee errors turn into a failed outcome and never abort siblings.
var (
	ErrMissingBase     = errors.New("required calculation base is missing")
	ErrUnknownFormula  = errors.New("formula is not registered")
	ErrNegativeBase    = errors.New("computed statutory base is negative")
	ErrNoFlatRate      = errors.New("no flat rate configuration for contract type")
	ErrUnknownRubrica  = errors.New("rubrica not present in configuration snapshot")
	ErrLogNotAvailable = errors.New("calculation log not available")
)

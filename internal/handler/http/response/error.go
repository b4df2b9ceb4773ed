package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/payroll"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/pkg/jwt"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	// Auth errors
	case errors.Is(err, jwt.ErrInvalidToken):
		Unauthorized(w, "Invalid token")
	case errors.Is(err, jwt.ErrTokenRunMismatch):
		Unauthorized(w, "Token was not issued for this run")
	case errors.Is(err, jwt.ErrMissingCompanyID), errors.Is(err, payroll.ErrCompanyRequired):
		Forbidden(w, "Company is required")

	// Run errors
	case errors.Is(err, payroll.ErrRunNotFound):
		NotFound(w, "Payroll run not found")
	case errors.Is(err, payroll.ErrLogNotAvailable):
		NotFound(w, "Calculation log not available")
	case errors.Is(err, payroll.ErrRunAlreadyFinished):
		Conflict(w, "Payroll run already finished")
	case errors.Is(err, payroll.ErrNoEmployees):
		BadRequest(w, "No employees to process", nil)
	case errors.Is(err, payroll.ErrInvalidPeriod):
		BadRequest(w, "Invalid payroll period", nil)

	// Configuration errors abort the run; the message says what to fix.
	case errors.Is(err, payroll.ErrInvalidConfig),
		errors.Is(err, payroll.ErrInvalidRubrica),
		errors.Is(err, payroll.ErrInvalidTaxTable),
		errors.Is(err, payroll.ErrTaxTableNotFound),
		errors.Is(err, payroll.ErrInvalidFlatRate):
		UnprocessableEntity(w, "INVALID_CONFIGURATION", err.Error())

	// Default
	default:
		slog.Error("unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}

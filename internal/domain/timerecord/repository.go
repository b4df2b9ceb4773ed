package timerecord

import (
	"context"
	"time"
)

type Repository interface {
	// ListByEmployeePeriod returns records with from <= timestamp < to, ordered by timestamp.
	ListByEmployeePeriod(ctx context.Context, employeeID string, from, to time.Time) ([]TimeRecord, error)
}

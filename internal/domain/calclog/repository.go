package calclog

import (
	"context"
	"time"
)

type RunLogRepository interface {
	Create(ctx context.Context, log RunLog) error
	Finish(ctx context.Context, log RunLog) error
	GetByRunID(ctx context.Context, companyID, runID string) (RunLog, error)
	// ListByCompany returns the newest runs first.
	ListByCompany(ctx context.Context, companyID string, filter ListFilter) ([]RunLog, error)
	CountByStatus(ctx context.Context, companyID string) (map[Status]int, error)
	// MarkStale moves runs still processing since before olderThan to error and returns how many moved.
	MarkStale(ctx context.Context, olderThan time.Time) (int64, error)
}

package calclog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/calclog"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/payroll"
)

// Tracker keeps the process-level run log in step with the engine.
// Failures to write the log are reported but never fail the run.
type Tracker struct {
	repo calclog.RunLogRepository
	now  func() time.Time
}

func NewTracker(repo calclog.RunLogRepository) *Tracker {
	return &Tracker{repo: repo, now: time.Now}
}

// Started stores the run as processing.
func (t *Tracker) Started(ctx context.Context, rc payroll.RunContext, total int) {
	if t == nil || t.repo == nil {
		return
	}
	entry := calclog.RunLog{
		RunID:          rc.RunID,
		CompanyID:      rc.CompanyID,
		Period:         rc.Period,
		ProcessType:    rc.ProcessType,
		Status:         calclog.StatusProcessing,
		TotalEmployees: total,
		StartedAt:      t.now(),
	}
	if err := t.repo.Create(ctx, entry); err != nil {
		slog.Error("failed to create run log", "run_id", rc.RunID, "error", err)
	}
}

// Finished stores the final counts of a run. A nil batch with runErr marks a fatal failure.
func (t *Tracker) Finished(ctx context.Context, rc payroll.RunContext, batch *payroll.BatchResult, runErr error) {
	if t == nil || t.repo == nil {
		return
	}
	finishedAt := t.now()
	entry := calclog.RunLog{
		RunID:       rc.RunID,
		CompanyID:   rc.CompanyID,
		Period:      rc.Period,
		ProcessType: rc.ProcessType,
		Status:      StatusOf(batch, runErr),
		FinishedAt:  &finishedAt,
	}
	if batch != nil {
		entry.TotalEmployees = batch.Requested
		entry.Processed = batch.Succeeded + batch.Failed
		entry.Succeeded = batch.Succeeded
		entry.Failed = batch.Failed
		entry.Skipped = batch.Skipped
		entry.StartedAt = batch.StartedAt
	}
	if runErr != nil {
		msg := runErr.Error()
		entry.ErrorMessage = &msg
	}
	if err := t.repo.Finish(ctx, entry); err != nil {
		slog.Error("failed to finish run log", "run_id", rc.RunID, "error", err)
	}
}

// Get returns the run log of a company's run.
func (t *Tracker) Get(ctx context.Context, companyID, runID string) (calclog.RunLog, error) {
	if t == nil || t.repo == nil {
		return calclog.RunLog{}, calclog.ErrRunLogNotFound
	}
	entry, err := t.repo.GetByRunID(ctx, companyID, runID)
	if err != nil {
		return calclog.RunLog{}, fmt.Errorf("failed to get run log: %w", err)
	}
	return entry, nil
}

// List returns a company's runs, newest first.
func (t *Tracker) List(ctx context.Context, companyID string, filter calclog.ListFilter) ([]calclog.RunLog, error) {
	if t == nil || t.repo == nil {
		return nil, nil
	}
	logs, err := t.repo.ListByCompany(ctx, companyID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list run logs: %w", err)
	}
	return logs, nil
}

// Stats counts a company's runs per status.
func (t *Tracker) Stats(ctx context.Context, companyID string) (map[calclog.Status]int, error) {
	if t == nil || t.repo == nil {
		return map[calclog.Status]int{}, nil
	}
	counts, err := t.repo.CountByStatus(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to count run logs: %w", err)
	}
	return counts, nil
}

// MarkStale moves runs stuck in processing to error.
func (t *Tracker) MarkStale(ctx context.Context, after time.Duration) (int64, error) {
	return t.repo.MarkStale(ctx, t.now().Add(-after))
}

// StatusOf maps a run result to the stored status.
func StatusOf(batch *payroll.BatchResult, runErr error) calclog.Status {
	switch {
	case runErr != nil:
		return calclog.StatusError
	case batch != nil && batch.Cancelled:
		return calclog.StatusCancelled
	default:
		return calclog.StatusCompleted
	}
}

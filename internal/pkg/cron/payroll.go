package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// StaleRunMarker moves runs stuck in processing for longer than after to error.
type StaleRunMarker interface {
	MarkStale(ctx context.Context, after time.Duration) (int64, error)
}

type PayrollJobs struct {
	runs       StaleRunMarker
	staleAfter time.Duration
	interval   time.Duration
}

func NewPayrollJobs(runs StaleRunMarker, staleAfter, interval time.Duration) *PayrollJobs {
	return &PayrollJobs{
		runs:       runs,
		staleAfter: staleAfter,
		interval:   interval,
	}
}

func (j *PayrollJobs) RegisterJobs(scheduler *Scheduler) error {
	return scheduler.AddJob(Job{
		Name:     "mark_stale_payroll_runs",
		Interval: j.interval,
		Timeout:  time.Minute,
		Fn:       j.MarkStaleRuns,
	})
}

// MarkStaleRuns closes run logs left in processing by a process that died mid-run.
func (j *PayrollJobs) MarkStaleRuns(ctx context.Context) error {
	n, err := j.runs.MarkStale(ctx, j.staleAfter)
	if err != nil {
		return fmt.Errorf("failed to mark stale payroll runs: %w", err)
	}
	if n > 0 {
		slog.Warn("Marked stale payroll runs as failed", "count", n, "older_than", j.staleAfter)
	}
	return nil
}

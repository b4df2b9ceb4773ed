package payroll

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/employee"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/notification"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/payroll"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/pkg/metrics"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/service/calclog"
	"github.com/google/uuid"
)

const (
	DefaultConcurrency    = 4
	DefaultConcurrencyCap = 16
	DefaultProgressBuffer = 32
)

// EngineOptions tunes the worker pool and the progress channel.
type EngineOptions struct {
	DefaultConcurrency int
	ConcurrencyCap     int
	ProgressBuffer     int
	ProgressPolicy     ProgressPolicy
}

func (o EngineOptions) withDefaults() EngineOptions {
	if o.DefaultConcurrency <= 0 {
		o.DefaultConcurrency = DefaultConcurrency
	}
	if o.ConcurrencyCap <= 0 {
		o.ConcurrencyCap = DefaultConcurrencyCap
	}
	if o.DefaultConcurrency > o.ConcurrencyCap {
		o.DefaultConcurrency = o.ConcurrencyCap
	}
	if o.ProgressBuffer <= 0 {
		o.ProgressBuffer = DefaultProgressBuffer
	}
	if o.ProgressPolicy == "" {
		o.ProgressPolicy = ProgressDropOldest
	}
	return o
}

var _ payroll.Engine = (*ParallelEngine)(nil)

// ParallelEngine fans the employees of a run out over a bounded worker pool.
type ParallelEngine struct {
	snapshots  payroll.SnapshotLoader
	inputs     payroll.InputLoader
	calculator *Calculator
	tracker    *calclog.Tracker
	notifier   notification.Notifier
	metrics    *metrics.PayrollMetrics
	opts       EngineOptions
	now        func() time.Time
}

// NewParallelEngine wires an engine. tracker, notifier and metrics may be nil.
func NewParallelEngine(
	snapshots payroll.SnapshotLoader,
	inputs payroll.InputLoader,
	calculator *Calculator,
	tracker *calclog.Tracker,
	notifier notification.Notifier,
	m *metrics.PayrollMetrics,
	opts EngineOptions,
) *ParallelEngine {
	return &ParallelEngine{
		snapshots:  snapshots,
		inputs:     inputs,
		calculator: calculator,
		tracker:    tracker,
		notifier:   notifier,
		metrics:    m,
		opts:       opts.withDefaults(),
		now:        time.Now,
	}
}

// WorkerCount returns the pool size for n employees and a requested limit (0 = default).
func (e *ParallelEngine) WorkerCount(limit, n int) int {
	if limit <= 0 {
		limit = e.opts.DefaultConcurrency
	}
	if limit > e.opts.ConcurrencyCap {
		limit = e.opts.ConcurrencyCap
	}
	return max(1, min(limit, n))
}

// run is the mutable state of one run, guarded by mu.
type run struct {
	mu        sync.Mutex
	rc        payroll.RunContext
	started   time.Time
	total     int
	processed int
	outcomes  []payroll.Outcome
	progress  *progressEmitter
	now       func() time.Time
}

// record appends an outcome and emits its progress in the same critical section, so
// progress order is completion order.
func (r *run) record(o payroll.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.outcomes = append(r.outcomes, o)
	r.processed++

	now := r.now()
	var eta time.Duration
	if remaining := r.total - r.processed; remaining > 0 {
		eta = now.Sub(r.started) / time.Duration(r.processed) * time.Duration(remaining)
	}
	r.progress.emit(payroll.ProgressUpdate{
		RunID:              r.rc.RunID,
		Processed:          r.processed,
		Total:              r.total,
		EmployeeID:         o.EmployeeID,
		EmployeeName:       o.EmployeeName,
		Status:             o.Status,
		Percent:            r.processed * 100 / r.total,
		EstimatedRemaining: eta,
		Timestamp:          now,
	})
}

// Run implements payroll.Engine. Only run-level failures are returned as errors; every
// per-employee failure ends up as a failed outcome in the batch.
func (e *ParallelEngine) Run(ctx context.Context, params payroll.PayrollCalculationParams, onProgress payroll.ProgressFunc) (payroll.PayrollCalculationResult, error) {
	if err := params.Validate(); err != nil {
		return payroll.PayrollCalculationResult{}, err
	}

	runID := params.RunID
	if runID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return payroll.PayrollCalculationResult{}, fmt.Errorf("failed to generate run id: %w", err)
		}
		runID = id.String()
	}

	if params.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, params.Timeout)
		defer cancel()
	}

	started := e.now()
	// Bookkeeping outlives cancellation of the run itself.
	bg := context.WithoutCancel(ctx)

	snap, err := e.snapshots.Load(ctx, runID, params)
	if err != nil {
		rc := payroll.RunContext{RunID: runID, CompanyID: params.CompanyID, Period: params.Period, ProcessType: params.ProcessType}
		e.fail(bg, rc, started, err)
		return payroll.PayrollCalculationResult{}, err
	}
	rc := snap.Run
	total := len(snap.Employees) + len(snap.Unresolved)
	workers := e.WorkerCount(params.ConcurrencyLimit, len(snap.Employees))

	e.tracker.Started(bg, rc, total)
	slog.Info("payroll run started",
		"run_id", rc.RunID,
		"company_id", rc.CompanyID,
		"period", rc.Period.String(),
		"process_type", rc.ProcessType,
		"employees", total,
		"workers", workers,
	)

	r := &run{
		rc:       rc,
		started:  started,
		total:    total,
		outcomes: make([]payroll.Outcome, 0, total),
		progress: newProgressEmitter(e.opts.ProgressBuffer, e.opts.ProgressPolicy, onProgress, e.metrics),
		now:      e.now,
	}

	for _, id := range snap.Unresolved {
		r.record(payroll.Outcome{
			EmployeeID:  id,
			Status:      payroll.OutcomeFailed,
			FailedState: payroll.StatePending,
			Reason:      employee.ErrEmployeeNotFound.Error(),
		})
	}

	dispatched := e.dispatch(ctx, r, snap.Employees, workers)
	cancelled := dispatched < len(snap.Employees)

	r.progress.close()

	for _, emp := range snap.Employees[dispatched:] {
		r.outcomes = append(r.outcomes, payroll.Outcome{
			EmployeeID:   emp.ID,
			EmployeeName: emp.FullName,
			Status:       payroll.OutcomeSkipped,
			Reason:       context.Cause(ctx).Error(),
		})
	}

	batch := payroll.BatchResult{
		RunID:      rc.RunID,
		CompanyID:  rc.CompanyID,
		Period:     rc.Period,
		Requested:  total,
		Cancelled:  cancelled,
		Outcomes:   r.outcomes,
		StartedAt:  started,
		FinishedAt: e.now(),
	}
	for _, o := range batch.Outcomes {
		switch o.Status {
		case payroll.OutcomeSucceeded:
			batch.Succeeded++
		case payroll.OutcomeFailed:
			batch.Failed++
		case payroll.OutcomeSkipped:
			batch.Skipped++
		}
	}

	e.finish(bg, rc, batch)
	return payroll.PayrollCalculationResult{Batch: batch}, nil
}

// dispatch starts one unit per employee while a worker slot is free and the run is live. It
// returns how many employees were dispatched; units already running always complete.
func (e *ParallelEngine) dispatch(ctx context.Context, r *run, emps []employee.Employee, workers int) int {
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)

	dispatched := 0
	for _, emp := range emps {
		acquired := false
		select {
		case <-ctx.Done():
		case sem <- struct{}{}:
			acquired = true
		}
		// Both cases may be ready at once; cancellation wins.
		if ctx.Err() != nil {
			if acquired {
				<-sem
			}
			break
		}

		dispatched++
		wg.Add(1)
		go func(emp employee.Employee) {
			defer wg.Done()
			defer func() { <-sem }()
			r.record(e.process(ctx, r.rc, emp))
		}(emp)
	}

	wg.Wait()
	return dispatched
}

// process runs one employee to completion regardless of cancellation.
func (e *ParallelEngine) process(ctx context.Context, rc payroll.RunContext, emp employee.Employee) payroll.Outcome {
	e.metrics.WorkerStarted()
	defer e.metrics.WorkerFinished()

	unitCtx := context.WithoutCancel(ctx)
	start := e.now()

	var outcome payroll.Outcome
	in, err := e.inputs.LoadInput(unitCtx, rc, emp)
	if err != nil {
		outcome = payroll.Outcome{
			EmployeeID:   emp.ID,
			EmployeeName: emp.FullName,
			Status:       payroll.OutcomeFailed,
			FailedState:  payroll.StatePending,
			Reason:       err.Error(),
		}
	} else {
		outcome = e.calculator.Calculate(unitCtx, rc, in)
	}

	if outcome.Status == payroll.OutcomeFailed {
		slog.Warn("payroll employee failed",
			"run_id", rc.RunID,
			"employee_id", emp.ID,
			"state", outcome.FailedState,
			"reason", outcome.Reason,
		)
	}
	e.metrics.ObserveEmployee(string(outcome.Status), e.now().Sub(start))
	return outcome
}

func (e *ParallelEngine) finish(ctx context.Context, rc payroll.RunContext, batch payroll.BatchResult) {
	status := metrics.RunStatusCompleted
	summaryType := notification.TypePayrollRunCompleted
	if batch.Cancelled {
		status = metrics.RunStatusCancelled
		summaryType = notification.TypePayrollRunCancelled
	}
	duration := batch.FinishedAt.Sub(batch.StartedAt)

	e.tracker.Finished(ctx, rc, &batch, nil)
	e.metrics.ObserveRun(status, duration)
	slog.Info("payroll run finished",
		"run_id", rc.RunID,
		"succeeded", batch.Succeeded,
		"failed", batch.Failed,
		"skipped", batch.Skipped,
		"cancelled", batch.Cancelled,
		"duration", duration,
	)

	e.notify(ctx, notification.RunSummary{
		Type:       summaryType,
		RunID:      rc.RunID,
		CompanyID:  rc.CompanyID,
		Period:     rc.Period.String(),
		Requested:  batch.Requested,
		Succeeded:  batch.Succeeded,
		Failed:     batch.Failed,
		Skipped:    batch.Skipped,
		FinishedAt: batch.FinishedAt,
	})
}

func (e *ParallelEngine) fail(ctx context.Context, rc payroll.RunContext, started time.Time, err error) {
	finished := e.now()
	e.tracker.Started(ctx, rc, 0)
	e.tracker.Finished(ctx, rc, nil, err)
	e.metrics.ObserveRun(metrics.RunStatusFailed, finished.Sub(started))
	slog.Error("payroll run failed",
		"run_id", rc.RunID,
		"company_id", rc.CompanyID,
		"reason", metrics.ClassifyRunFailure(err),
		"error", err,
	)

	e.notify(ctx, notification.RunSummary{
		Type:       notification.TypePayrollRunFailed,
		RunID:      rc.RunID,
		CompanyID:  rc.CompanyID,
		Period:     rc.Period.String(),
		Error:      err.Error(),
		FinishedAt: finished,
	})
}

func (e *ParallelEngine) notify(ctx context.Context, summary notification.RunSummary) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.NotifyRunCompleted(ctx, summary); err != nil {
		slog.Error("failed to notify payroll run", "run_id", summary.RunID, "error", err)
	}
}

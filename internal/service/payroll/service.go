package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/calclog"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/payroll"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/pkg/sse"
	calclogsvc "github.com/DeiversonMedeiros/multiweave-core-sub010/internal/service/calclog"
	"github.com/google/uuid"
)

// EventProgress is the SSE event name of a progress update.
const EventProgress = "progress"

// finishedRetention bounds how long finished runs stay in memory.
const finishedRetention = time.Hour

type runEntry struct {
	status RunStatus
	cancel context.CancelFunc
	done   chan struct{}
	batch  *payroll.BatchResult
}

// RunStatus is the in-memory view of a run.
type RunStatus struct {
	payroll.RunStatusResponse
	finishedAt time.Time
}

var _ payroll.RunService = (*RunServiceImpl)(nil)

type RunServiceImpl struct {
	engine         payroll.Engine
	tracker        *calclogsvc.Tracker
	results        payroll.ResultRepository
	hub            *sse.Hub
	defaultTimeout time.Duration

	baseCtx  context.Context
	shutdown context.CancelFunc
	wg       sync.WaitGroup

	mu   sync.RWMutex
	runs map[string]*runEntry
}

// NewRunService wires the run service. Async runs live until Shutdown.
func NewRunService(engine payroll.Engine, tracker *calclogsvc.Tracker, results payroll.ResultRepository, hub *sse.Hub, defaultTimeout time.Duration) *RunServiceImpl {
	ctx, cancel := context.WithCancel(context.Background())
	return &RunServiceImpl{
		engine:         engine,
		tracker:        tracker,
		results:        results,
		hub:            hub,
		defaultTimeout: defaultTimeout,
		baseCtx:        ctx,
		shutdown:       cancel,
		runs:           make(map[string]*runEntry),
	}
}

// Start implements payroll.RunService. The run continues after the request returns.
func (s *RunServiceImpl) Start(ctx context.Context, req payroll.StartRunRequest) (payroll.RunStatusResponse, error) {
	params, err := s.params(req)
	if err != nil {
		return payroll.RunStatusResponse{}, err
	}

	runCtx, cancel := context.WithCancel(s.baseCtx)
	entry := &runEntry{
		status: RunStatus{RunStatusResponse: payroll.RunStatusResponse{
			RunID:     params.RunID,
			CompanyID: params.CompanyID,
			Period:    params.Period.String(),
			Status:    string(calclog.StatusProcessing),
			StartedAt: time.Now(),
		}},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	s.pruneLocked(time.Now())
	s.runs[params.RunID] = entry
	resp := entry.status.RunStatusResponse
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(entry.done)
		defer cancel()

		result, err := s.engine.Run(runCtx, params, s.progressFunc(params.RunID))
		s.complete(params.RunID, result, err)
	}()

	return resp, nil
}

// RunSync implements payroll.RunService.
func (s *RunServiceImpl) RunSync(ctx context.Context, req payroll.StartRunRequest) (payroll.BatchResultResponse, error) {
	params, err := s.params(req)
	if err != nil {
		return payroll.BatchResultResponse{}, err
	}

	result, err := s.engine.Run(ctx, params, s.progressFunc(params.RunID))
	if err != nil {
		return payroll.BatchResultResponse{}, err
	}
	return result.Batch.ToResponse(), nil
}

// Get implements payroll.RunService. Runs no longer in memory are read from the run log.
func (s *RunServiceImpl) Get(ctx context.Context, companyID, runID string) (payroll.RunStatusResponse, error) {
	s.mu.RLock()
	entry, ok := s.runs[runID]
	var resp payroll.RunStatusResponse
	if ok {
		resp = entry.status.RunStatusResponse
	}
	s.mu.RUnlock()

	if ok {
		if resp.CompanyID != companyID {
			return payroll.RunStatusResponse{}, payroll.ErrRunNotFound
		}
		return resp, nil
	}

	log, err := s.tracker.Get(ctx, companyID, runID)
	if err != nil {
		if errors.Is(err, calclog.ErrRunLogNotFound) {
			return payroll.RunStatusResponse{}, payroll.ErrRunNotFound
		}
		return payroll.RunStatusResponse{}, err
	}
	return runLogResponse(log), nil
}

// List implements payroll.RunService. Runs still in memory report their live progress.
func (s *RunServiceImpl) List(ctx context.Context, req payroll.ListRunsRequest) ([]payroll.RunStatusResponse, error) {
	if req.CompanyID == "" {
		return nil, payroll.ErrCompanyRequired
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit == 0 {
		limit = payroll.DefaultRunListLimit
	}

	logs, err := s.tracker.List(ctx, req.CompanyID, calclog.ListFilter{Status: calclog.Status(req.Status), Limit: limit})
	if err != nil {
		return nil, err
	}

	runs := make([]payroll.RunStatusResponse, 0, len(logs))
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, log := range logs {
		resp := runLogResponse(log)
		if entry, ok := s.runs[log.RunID]; ok && entry.status.CompanyID == req.CompanyID {
			resp = entry.status.RunStatusResponse
			resp.Result = nil
		}
		if req.Status != "" && resp.Status != req.Status {
			continue
		}
		runs = append(runs, resp)
	}
	return runs, nil
}

// Stats implements payroll.RunService.
func (s *RunServiceImpl) Stats(ctx context.Context, companyID string) (payroll.RunStatsResponse, error) {
	if companyID == "" {
		return payroll.RunStatsResponse{}, payroll.ErrCompanyRequired
	}
	counts, err := s.tracker.Stats(ctx, companyID)
	if err != nil {
		return payroll.RunStatsResponse{}, err
	}

	stats := payroll.RunStatsResponse{ByStatus: make(map[string]int, len(counts))}
	for status, n := range counts {
		stats.ByStatus[string(status)] = n
		stats.Total += n
	}
	return stats, nil
}

func runLogResponse(log calclog.RunLog) payroll.RunStatusResponse {
	resp := payroll.RunStatusResponse{
		RunID:      log.RunID,
		CompanyID:  log.CompanyID,
		Period:     log.Period.String(),
		Status:     string(log.Status),
		Processed:  log.Processed + log.Skipped,
		Total:      log.TotalEmployees,
		StartedAt:  log.StartedAt,
		FinishedAt: log.FinishedAt,
	}
	if log.ErrorMessage != nil {
		resp.Error = *log.ErrorMessage
	}
	return resp
}

// Cancel implements payroll.RunService. Employees already being calculated still finish.
func (s *RunServiceImpl) Cancel(ctx context.Context, companyID, runID string) error {
	s.mu.RLock()
	entry, ok := s.runs[runID]
	s.mu.RUnlock()

	if !ok || entry.status.CompanyID != companyID {
		return payroll.ErrRunNotFound
	}
	select {
	case <-entry.done:
		return payroll.ErrRunAlreadyFinished
	default:
	}

	entry.cancel()
	slog.Info("payroll run cancellation requested", "run_id", runID, "company_id", companyID)
	return nil
}

// GetCalculationLog implements payroll.RunService.
func (s *RunServiceImpl) GetCalculationLog(ctx context.Context, companyID, runID, employeeID string) (payroll.CalculationLog, error) {
	s.mu.RLock()
	entry, ok := s.runs[runID]
	var batch *payroll.BatchResult
	if ok {
		batch = entry.batch
	}
	s.mu.RUnlock()

	if ok {
		if entry.status.CompanyID != companyID {
			return payroll.CalculationLog{}, payroll.ErrRunNotFound
		}
		if batch != nil {
			if o, found := batch.Outcome(employeeID); found && o.Log != nil {
				return *o.Log, nil
			}
			return payroll.CalculationLog{}, payroll.ErrLogNotAvailable
		}
	} else if _, err := s.Get(ctx, companyID, runID); err != nil {
		return payroll.CalculationLog{}, err
	}

	if s.results == nil {
		return payroll.CalculationLog{}, payroll.ErrLogNotAvailable
	}
	log, err := s.results.GetCalculationLog(ctx, runID, employeeID)
	if err != nil {
		return payroll.CalculationLog{}, err
	}
	return log, nil
}

// Shutdown cancels running runs and waits for them until ctx is done.
func (s *RunServiceImpl) Shutdown(ctx context.Context) error {
	s.shutdown()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("payroll runs still finishing: %w", ctx.Err())
	}
}

func (s *RunServiceImpl) params(req payroll.StartRunRequest) (payroll.PayrollCalculationParams, error) {
	if req.CompanyID == "" {
		return payroll.PayrollCalculationParams{}, payroll.ErrCompanyRequired
	}
	if err := req.Validate(); err != nil {
		return payroll.PayrollCalculationParams{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return payroll.PayrollCalculationParams{}, fmt.Errorf("failed to generate run id: %w", err)
	}
	params := req.Params(id.String())
	if params.Timeout == 0 {
		params.Timeout = s.defaultTimeout
	}
	return params, nil
}

func (s *RunServiceImpl) progressFunc(runID string) payroll.ProgressFunc {
	return func(u payroll.ProgressUpdate) {
		s.mu.Lock()
		if entry, ok := s.runs[runID]; ok {
			entry.status.Processed = u.Processed
			entry.status.Total = u.Total
		}
		s.mu.Unlock()

		if s.hub != nil {
			s.hub.Publish(runID, sse.Event{Topic: runID, Event: EventProgress, Data: u.ToResponse()})
		}
	}
}

func (s *RunServiceImpl) complete(runID string, result payroll.PayrollCalculationResult, err error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.runs[runID]
	if !ok {
		return
	}
	entry.status.finishedAt = now
	entry.status.FinishedAt = &now
	if err != nil {
		entry.status.Status = string(calclog.StatusError)
		entry.status.Error = err.Error()
		return
	}

	batch := result.Batch
	entry.batch = &batch
	entry.status.Status = string(calclogsvc.StatusOf(&batch, nil))
	entry.status.Processed = batch.Succeeded + batch.Failed + batch.Skipped
	entry.status.Total = batch.Requested
	res := batch.ToResponse()
	entry.status.Result = &res
}

func (s *RunServiceImpl) pruneLocked(now time.Time) {
	for id, entry := range s.runs {
		if !entry.status.finishedAt.IsZero() && now.Sub(entry.status.finishedAt) > finishedRetention {
			delete(s.runs, id)
		}
	}
}

package calclog

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/calclog"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/payroll"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRunLogs struct {
	mu        sync.Mutex
	logs      map[string]calclog.RunLog
	createErr error
}

func newMemRunLogs() *memRunLogs {
	return &memRunLogs{logs: make(map[string]calclog.RunLog)}
}

func (m *memRunLogs) Create(_ context.Context, log calclog.RunLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.logs[log.RunID] = log
	return nil
}

func (m *memRunLogs) Finish(_ context.Context, log calclog.RunLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.logs[log.RunID]
	if !ok {
		return calclog.ErrRunLogNotFound
	}
	if log.StartedAt.IsZero() {
		log.StartedAt = prev.StartedAt
	}
	m.logs[log.RunID] = log
	return nil
}

func (m *memRunLogs) GetByRunID(_ context.Context, companyID, runID string) (calclog.RunLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	log, ok := m.logs[runID]
	if !ok || log.CompanyID != companyID {
		return calclog.RunLog{}, calclog.ErrRunLogNotFound
	}
	return log, nil
}

func (m *memRunLogs) ListByCompany(_ context.Context, companyID string, filter calclog.ListFilter) ([]calclog.RunLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []calclog.RunLog
	for _, log := range m.logs {
		if log.CompanyID == companyID && (filter.Status == "" || log.Status == filter.Status) {
			out = append(out, log)
		}
	}
	slices.SortFunc(out, func(a, b calclog.RunLog) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *memRunLogs) CountByStatus(_ context.Context, companyID string) (map[calclog.Status]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[calclog.Status]int)
	for _, log := range m.logs {
		if log.CompanyID == companyID {
			counts[log.Status]++
		}
	}
	return counts, nil
}

func (m *memRunLogs) MarkStale(_ context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, log := range m.logs {
		if log.Status == calclog.StatusProcessing && log.StartedAt.Before(olderThan) {
			log.Status = calclog.StatusError
			m.logs[id] = log
			n++
		}
	}
	return n, nil
}

func runContext() payroll.RunContext {
	return payroll.RunContext{
		RunID:       "run-1",
		CompanyID:   "company-1",
		Period:      payroll.Period{Year: 2024, Month: 3},
		ProcessType: payroll.ProcessMonthly,
	}
}

func TestTracker_Lifecycle(t *testing.T) {
	t.Parallel()

	repo := newMemRunLogs()
	tracker := NewTracker(repo)
	ctx := context.Background()
	rc := runContext()

	tracker.Started(ctx, rc, 5)
	log, err := tracker.Get(ctx, "company-1", "run-1")
	require.NoError(t, err)
	assert.Equal(t, calclog.StatusProcessing, log.Status)
	assert.Equal(t, 5, log.TotalEmployees)
	assert.Nil(t, log.FinishedAt)

	batch := &payroll.BatchResult{Requested: 5, Succeeded: 3, Failed: 1, Skipped: 1, Cancelled: true}
	tracker.Finished(ctx, rc, batch, nil)

	log, err = tracker.Get(ctx, "company-1", "run-1")
	require.NoError(t, err)
	assert.Equal(t, calclog.StatusCancelled, log.Status)
	assert.Equal(t, 4, log.Processed)
	assert.Equal(t, 1, log.Skipped)
	assert.Equal(t, 80, log.Progress())
	assert.NotNil(t, log.FinishedAt)
	assert.False(t, log.StartedAt.IsZero())
	assert.True(t, log.Status.Terminal())

	_, err = tracker.Get(ctx, "company-2", "run-1")
	assert.ErrorIs(t, err, calclog.ErrRunLogNotFound)
}

func TestTracker_FatalError(t *testing.T) {
	t.Parallel()

	repo := newMemRunLogs()
	tracker := NewTracker(repo)
	ctx := context.Background()

	tracker.Started(ctx, runContext(), 0)
	tracker.Finished(ctx, runContext(), nil, payroll.ErrInvalidTaxTable)

	log, err := tracker.Get(ctx, "company-1", "run-1")
	require.NoError(t, err)
	assert.Equal(t, calclog.StatusError, log.Status)
	require.NotNil(t, log.ErrorMessage)
	assert.Equal(t, payroll.ErrInvalidTaxTable.Error(), *log.ErrorMessage)
}

func TestTracker_RepositoryErrorsDoNotPanic(t *testing.T) {
	t.Parallel()

	repo := newMemRunLogs()
	repo.createErr = errors.New("db down")
	tracker := NewTracker(repo)

	tracker.Started(context.Background(), runContext(), 1)
	tracker.Finished(context.Background(), runContext(), &payroll.BatchResult{}, nil)

	_, err := tracker.Get(context.Background(), "company-1", "run-1")
	assert.ErrorIs(t, err, calclog.ErrRunLogNotFound)
}

func TestTracker_NilIsSafe(t *testing.T) {
	t.Parallel()

	var tracker *Tracker
	tracker.Started(context.Background(), runContext(), 1)
	tracker.Finished(context.Background(), runContext(), nil, nil)
	_, err := tracker.Get(context.Background(), "company-1", "run-1")
	assert.ErrorIs(t, err, calclog.ErrRunLogNotFound)
}

func TestTracker_MarkStale(t *testing.T) {
	t.Parallel()

	repo := newMemRunLogs()
	tracker := NewTracker(repo)
	now := time.Date(2024, time.March, 31, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return now.Add(-3 * time.Hour) }
	tracker.Started(context.Background(), runContext(), 1)

	tracker.now = func() time.Time { return now }
	n, err := tracker.MarkStale(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	log, err := tracker.Get(context.Background(), "company-1", "run-1")
	require.NoError(t, err)
	assert.Equal(t, calclog.StatusError, log.Status)

	n, err = tracker.MarkStale(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTracker_ListAndStats(t *testing.T) {
	t.Parallel()

	repo := newMemRunLogs()
	tracker := NewTracker(repo)
	ctx := context.Background()
	base := time.Date(2024, time.April, 1, 8, 0, 0, 0, time.UTC)

	runs := []struct {
		id      string
		company string
		status  calclog.Status
	}{
		{"run-1", "company-1", calclog.StatusCompleted},
		{"run-2", "company-1", calclog.StatusError},
		{"run-3", "company-1", calclog.StatusCompleted},
		{"run-4", "company-2", calclog.StatusCompleted},
	}
	for i, r := range runs {
		require.NoError(t, repo.Create(ctx, calclog.RunLog{
			RunID: r.id, CompanyID: r.company, Status: r.status, StartedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	tests := []struct {
		name   string
		filter calclog.ListFilter
		want   []string
	}{
		{name: "newest first", filter: calclog.ListFilter{Limit: 10}, want: []string{"run-3", "run-2", "run-1"}},
		{name: "limited", filter: calclog.ListFilter{Limit: 1}, want: []string{"run-3"}},
		{name: "by status", filter: calclog.ListFilter{Status: calclog.StatusCompleted, Limit: 10}, want: []string{"run-3", "run-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logs, err := tracker.List(ctx, "company-1", tt.filter)
			require.NoError(t, err)
			var ids []string
			for _, l := range logs {
				ids = append(ids, l.RunID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	counts, err := tracker.Stats(ctx, "company-1")
	require.NoError(t, err)
	assert.Equal(t, map[calclog.Status]int{calclog.StatusCompleted: 2, calclog.StatusError: 1}, counts)

	var nilTracker *Tracker
	logs, err := nilTracker.List(ctx, "company-1", calclog.ListFilter{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestStatusOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, calclog.StatusError, StatusOf(nil, errors.New("x")))
	assert.Equal(t, calclog.StatusCancelled, StatusOf(&payroll.BatchResult{Cancelled: true}, nil))
	assert.Equal(t, calclog.StatusCompleted, StatusOf(&payroll.BatchResult{}, nil))
}

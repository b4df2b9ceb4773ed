package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStaleMarker struct {
	after time.Duration
	n     int64
	err   error
}

func (f *fakeStaleMarker) MarkStale(_ context.Context, after time.Duration) (int64, error) {
	f.after = after
	return f.n, f.err
}

func TestScheduler_AddJobValidation(t *testing.T) {
	t.Parallel()

	noop := func(context.Context) error { return nil }
	tests := []struct {
		name string
		job  Job
	}{
		{name: "missing name", job: Job{Interval: time.Second, Fn: noop}},
		{name: "zero interval", job: Job{Name: "x", Fn: noop}},
		{name: "missing fn", job: Job{Name: "x", Interval: time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Error(t, NewScheduler().AddJob(tt.job))
		})
	}
}

func TestScheduler_RunOnceJoinsErrors(t *testing.T) {
	t.Parallel()

	s := NewScheduler()
	var calls atomic.Int32
	boom := errors.New("boom")
	require.NoError(t, s.AddJob(Job{Name: "ok", Interval: time.Hour, Fn: func(context.Context) error {
		calls.Add(1)
		return nil
	}}))
	require.NoError(t, s.AddJob(Job{Name: "bad", Interval: time.Hour, Fn: func(context.Context) error {
		calls.Add(1)
		return boom
	}}))

	err := s.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "bad")
	assert.Equal(t, int32(2), calls.Load())
}

func TestScheduler_TimeoutBoundsExecution(t *testing.T) {
	t.Parallel()

	s := NewScheduler()
	require.NoError(t, s.AddJob(Job{Name: "slow", Interval: time.Hour, Timeout: 10 * time.Millisecond, Fn: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}))

	assert.ErrorIs(t, s.RunOnce(context.Background()), context.DeadlineExceeded)
}

func TestScheduler_StartRunsImmediatelyAndStops(t *testing.T) {
	t.Parallel()

	s := NewScheduler()
	ran := make(chan struct{}, 1)
	require.NoError(t, s.AddJob(Job{Name: "tick", Interval: time.Hour, Fn: func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}}))

	s.Start()
	s.Start()
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("job did not run on start")
	}
	s.Stop()
}

func TestPayrollJobs_MarkStaleRuns(t *testing.T) {
	t.Parallel()

	marker := &fakeStaleMarker{n: 2}
	jobs := NewPayrollJobs(marker, 2*time.Hour, 15*time.Minute)
	require.NoError(t, jobs.MarkStaleRuns(context.Background()))
	assert.Equal(t, 2*time.Hour, marker.after)

	marker.err = errors.New("db down")
	assert.ErrorIs(t, jobs.MarkStaleRuns(context.Background()), marker.err)

	s := NewScheduler()
	require.NoError(t, jobs.RegisterJobs(s))
	marker.err = nil
	assert.NoError(t, s.RunOnce(context.Background()))
}

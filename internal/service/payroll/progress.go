package payroll

import (
	"fmt"
	"sync"

	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/payroll"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/pkg/metrics"
)

// ProgressPolicy decides what a full progress buffer does to the producer.
type ProgressPolicy string

const (
	// ProgressDropOldest discards the oldest queued update so workers never wait on the consumer.
	ProgressDropOldest ProgressPolicy = "drop_oldest"
	// ProgressBlock makes workers wait until the consumer catches up.
	ProgressBlock ProgressPolicy = "block"
)

func ParseProgressPolicy(s string) (ProgressPolicy, error) {
	switch ProgressPolicy(s) {
	case "", ProgressDropOldest:
		return ProgressDropOldest, nil
	case ProgressBlock:
		return ProgressBlock, nil
	}
	return "", fmt.Errorf("unknown progress policy %q", s)
}

// progressEmitter hands updates to a single consumer goroutine through a bounded buffer,
// so the callback never runs concurrently with itself.
type progressEmitter struct {
	ch      chan payroll.ProgressUpdate
	policy  ProgressPolicy
	done    chan struct{}
	metrics *metrics.PayrollMetrics

	mu      sync.Mutex
	dropped int
}

func newProgressEmitter(size int, policy ProgressPolicy, fn payroll.ProgressFunc, m *metrics.PayrollMetrics) *progressEmitter {
	if size < 1 {
		size = 1
	}
	e := &progressEmitter{
		ch:      make(chan payroll.ProgressUpdate, size),
		policy:  policy,
		done:    make(chan struct{}),
		metrics: m,
	}
	go func() {
		defer close(e.done)
		for u := range e.ch {
			if fn != nil {
				fn(u)
			}
		}
	}()
	return e
}

// emit must not be called after close.
func (e *progressEmitter) emit(u payroll.ProgressUpdate) {
	if e.policy == ProgressBlock {
		e.ch <- u
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for {
		select {
		case e.ch <- u:
			return
		default:
		}
		select {
		case <-e.ch:
			e.dropped++
			e.metrics.ProgressDropped()
		default:
		}
	}
}

// close flushes the buffer and waits for the consumer to return.
func (e *progressEmitter) close() {
	close(e.ch)
	<-e.done
}

func (e *progressEmitter) droppedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dropped
}

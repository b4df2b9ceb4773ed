package calclog

import (
	"sync"
	"time"

	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/payroll"
)

// Logger collects the ordered calculation steps of one employee in one run.
// After Freeze every further call is ignored.
type Logger struct {
	mu         sync.Mutex
	runID      string
	employeeID string
	entries    []payroll.LogEntry
	frozen     bool
	now        func() time.Time
}

func NewLogger(runID, employeeID string) *Logger {
	return &Logger{
		runID:      runID,
		employeeID: employeeID,
		now:        time.Now,
	}
}

// Record appends a step with the next sequence number.
func (l *Logger) Record(step string, inputs map[string]any, output any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.frozen {
		return
	}
	l.entries = append(l.entries, payroll.LogEntry{
		Seq:    len(l.entries) + 1,
		Step:   step,
		Inputs: inputs,
		Output: output,
		At:     l.now(),
	})
}

// Transition records a state change of the calculator.
func (l *Logger) Transition(from, to payroll.CalculationState) {
	l.Record("state", map[string]any{"from": from}, to)
}

// Fail records the state the calculation failed in and the reason.
func (l *Logger) Fail(state payroll.CalculationState, err error) {
	l.Record("failed", map[string]any{"state": state}, err.Error())
}

// Freeze stops recording and returns a copy of the log.
func (l *Logger) Freeze() payroll.CalculationLog {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.frozen = true
	entries := make([]payroll.LogEntry, len(l.entries))
	copy(entries, l.entries)
	return payroll.CalculationLog{
		RunID:      l.runID,
		EmployeeID: l.employeeID,
		Entries:    entries,
	}
}

// Fork returns a logger that continues from a copy of the entries recorded so far.
func (l *Logger) Fork() *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := make([]payroll.LogEntry, len(l.entries))
	copy(entries, l.entries)
	return &Logger{
		runID:      l.runID,
		employeeID: l.employeeID,
		entries:    entries,
		frozen:     l.frozen,
		now:        l.now,
	}
}

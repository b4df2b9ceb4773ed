package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	RunStatusCompleted = "completed"
	RunStatusCancelled = "cancelled"
	RunStatusFailed    = "failed"
)

const (
	FailureReasonDeadlineExceeded = "deadline_exceeded"
	FailureReasonCanceled         = "canceled"
	FailureReasonUnknown          = "unknown"
)

// PayrollMetrics captures payroll engine health signals. All methods are nil-safe.
type PayrollMetrics struct {
	runs             *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
	employees        *prometheus.CounterVec
	employeeDuration prometheus.Histogram
	workersInFlight  prometheus.Gauge
	progressDropped  prometheus.Counter
}

// NewPayrollMetrics registers the payroll collectors on registerer, the default one when nil.
func NewPayrollMetrics(registerer prometheus.Registerer) *PayrollMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &PayrollMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payroll_runs_total",
			Help: "Payroll runs by final status.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "payroll_run_duration_seconds",
			Help:    "Wall time of payroll runs from snapshot load to batch result.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800},
		}, []string{"status"}),
		employees: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payroll_employees_total",
			Help: "Employee outcomes by status.",
		}, []string{"status"}),
		employeeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "payroll_employee_duration_seconds",
			Help:    "Calculation time of a single employee including persistence.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		workersInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "payroll_workers_in_flight",
			Help: "Employee calculations currently running.",
		}),
		progressDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payroll_progress_dropped_total",
			Help: "Progress updates dropped because the consumer fell behind.",
		}),
	}

	registerer.MustRegister(
		m.runs,
		m.runDuration,
		m.employees,
		m.employeeDuration,
		m.workersInFlight,
		m.progressDropped,
	)
	return m
}

func (m *PayrollMetrics) ObserveRun(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(d.Seconds())
}

func (m *PayrollMetrics) ObserveEmployee(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.employees.WithLabelValues(status).Inc()
	m.employeeDuration.Observe(d.Seconds())
}

func (m *PayrollMetrics) WorkerStarted() {
	if m == nil {
		return
	}
	m.workersInFlight.Inc()
}

func (m *PayrollMetrics) WorkerFinished() {
	if m == nil {
		return
	}
	m.workersInFlight.Dec()
}

func (m *PayrollMetrics) ProgressDropped() {
	if m == nil {
		return
	}
	m.progressDropped.Inc()
}

// ClassifyRunFailure maps a fatal run error to a low-cardinality reason.
func ClassifyRunFailure(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return FailureReasonDeadlineExceeded
	case errors.Is(err, context.Canceled):
		return FailureReasonCanceled
	default:
		return FailureReasonUnknown
	}
}

package payroll

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/calclog"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/employee"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/notification"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/payroll"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/schedule"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/timerecord"
	"github.com/shopspring/decimal"
)

const testCompanyID = "company-1"

var testPeriod = payroll.Period{Year: 2024, Month: 3}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// testINSSTable is a single 8% tier capped at 7786.02.
func testINSSTable() payroll.TaxTable {
	return payroll.TaxTable{
		Kind:      payroll.TableINSS,
		ValidFrom: payroll.Period{Year: 2024, Month: 1},
		Ceiling:   decPtr("7786.02"),
		Tiers: []payroll.TaxTier{
			{Lower: decimal.Zero, Rate: dec("0.08")},
		},
	}
}

// testIRRFTable is exempt below 2000 and 7.5% minus 150 above.
func testIRRFTable() payroll.TaxTable {
	return payroll.TaxTable{
		Kind:               payroll.TableIRRF,
		ValidFrom:          payroll.Period{Year: 2024, Month: 1},
		DependentDeduction: dec("189.59"),
		Tiers: []payroll.TaxTier{
			{Lower: decimal.Zero, Upper: decPtr("2000"), Rate: decimal.Zero},
			{Lower: dec("2000"), Rate: dec("0.075"), Deductible: dec("150")},
		},
	}
}

func testFGTS() []payroll.FlatRateConfig {
	return []payroll.FlatRateConfig{
		{ContractType: "", Rate: dec("0.08")},
		{ContractType: string(employee.ContractTypeApprentice), Rate: dec("0.02")},
	}
}

func testConfig() payroll.PayrollConfig {
	cfg := payroll.DefaultConfig(testCompanyID, testPeriod)
	cfg.INSS = testINSSTable()
	cfg.IRRF = testIRRFTable()
	cfg.FGTS = testFGTS()
	cfg.Rubricas = withSystemRubricas(testCompanyID, nil)
	return cfg
}

func testRunContext() payroll.RunContext {
	return payroll.RunContext{
		RunID:       "run-1",
		CompanyID:   testCompanyID,
		Period:      testPeriod,
		ProcessType: payroll.ProcessMonthly,
		Config:      testConfig(),
	}
}

func testEmployee(id, salary string) employee.Employee {
	e := employee.Employee{
		ID:           id,
		CompanyID:    testCompanyID,
		FullName:     "Employee " + id,
		PositionID:   "pos-1",
		ContractType: employee.ContractTypeCLT,
		Status:       employee.EmploymentStatusActive,
	}
	if salary != "" {
		e.BaseSalary = decPtr(salary)
	}
	return e
}

// ---- repositories ----

type fakeConfigRepo struct {
	period   *payroll.PayrollConfig
	latest   *payroll.PayrollConfig
	rubricas []payroll.Rubrica
	err      error
}

func (f *fakeConfigRepo) GetConfigForPeriod(_ context.Context, _ string, _ payroll.Period) (payroll.PayrollConfig, error) {
	if f.err != nil {
		return payroll.PayrollConfig{}, f.err
	}
	if f.period == nil {
		return payroll.PayrollConfig{}, payroll.ErrConfigNotFound
	}
	return *f.period, nil
}

func (f *fakeConfigRepo) GetLatestActiveConfig(_ context.Context, _ string) (payroll.PayrollConfig, error) {
	if f.latest == nil {
		return payroll.PayrollConfig{}, payroll.ErrConfigNotFound
	}
	return *f.latest, nil
}

func (f *fakeConfigRepo) ListRubricas(_ context.Context, _ string, _ bool) ([]payroll.Rubrica, error) {
	return f.rubricas, nil
}

type fakeTaxRepo struct {
	inss *payroll.TaxTable
	irrf *payroll.TaxTable
	fgts []payroll.FlatRateConfig
}

func newFakeTaxRepo() *fakeTaxRepo {
	inss, irrf := testINSSTable(), testIRRFTable()
	return &fakeTaxRepo{inss: &inss, irrf: &irrf, fgts: testFGTS()}
}

func (f *fakeTaxRepo) GetActiveTable(_ context.Context, kind payroll.TableKind, _ payroll.Period) (payroll.TaxTable, error) {
	t := f.inss
	if kind == payroll.TableIRRF {
		t = f.irrf
	}
	if t == nil {
		return payroll.TaxTable{}, payroll.ErrTaxTableNotFound
	}
	return *t, nil
}

func (f *fakeTaxRepo) ListFlatRateConfigs(_ context.Context, _ payroll.Period) ([]payroll.FlatRateConfig, error) {
	return f.fgts, nil
}

type fakeEmployeeRepo struct {
	employees []employee.Employee
}

func (f *fakeEmployeeRepo) GetActiveByCompanyID(_ context.Context, companyID string) ([]employee.Employee, error) {
	var out []employee.Employee
	for _, e := range f.employees {
		if e.CompanyID == companyID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEmployeeRepo) GetByIDs(_ context.Context, companyID string, ids []string) ([]employee.Employee, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []employee.Employee
	for _, e := range f.employees {
		if e.CompanyID == companyID && want[e.ID] {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeTimeRepo struct {
	records map[string][]timerecord.TimeRecord
}

func (f *fakeTimeRepo) ListByEmployeePeriod(_ context.Context, employeeID string, from, to time.Time) ([]timerecord.TimeRecord, error) {
	var out []timerecord.TimeRecord
	for _, r := range f.records[employeeID] {
		if !r.Timestamp.Before(from) && r.Timestamp.Before(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeScheduleRepo struct {
	schedules map[string]schedule.WorkSchedule
}

func (f *fakeScheduleRepo) GetEmployeeSchedule(_ context.Context, employeeID string) (schedule.WorkSchedule, error) {
	if s, ok := f.schedules[employeeID]; ok {
		return s, nil
	}
	return schedule.WorkSchedule{}, schedule.ErrWorkScheduleNotFound
}

type fakeBenefitRepo struct {
	assignments map[string][]payroll.BenefitAssignment
}

func (f *fakeBenefitRepo) ListAssignments(_ context.Context, employeeID string, _ payroll.Period) ([]payroll.BenefitAssignment, error) {
	return f.assignments[employeeID], nil
}

type fakePendingRepo struct {
	pending map[string][]payroll.PendingDeduction
}

func (f *fakePendingRepo) ListPending(_ context.Context, employeeID string, _ payroll.Period) ([]payroll.PendingDeduction, error) {
	return f.pending[employeeID], nil
}

type fakeResultRepo struct {
	mu      sync.Mutex
	saved   map[string]payroll.Payroll
	logs    map[string]payroll.CalculationLog
	saves   int
	onSave  func(n int)
	failFor map[string]error
	delay   time.Duration

	inFlight    int
	maxInFlight int
}

func newFakeResultRepo() *fakeResultRepo {
	return &fakeResultRepo{
		saved: make(map[string]payroll.Payroll),
		logs:  make(map[string]payroll.CalculationLog),
	}
}

func (f *fakeResultRepo) SaveResult(_ context.Context, rc payroll.RunContext, result payroll.Payroll, log payroll.CalculationLog) error {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--

	if err := f.failFor[result.EmployeeID]; err != nil {
		return err
	}
	f.saves++
	f.saved[result.EmployeeID] = result
	f.logs[rc.RunID+"/"+result.EmployeeID] = log
	if f.onSave != nil {
		f.onSave(f.saves)
	}
	return nil
}

func (f *fakeResultRepo) GetCalculationLog(_ context.Context, runID, employeeID string) (payroll.CalculationLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	log, ok := f.logs[runID+"/"+employeeID]
	if !ok {
		return payroll.CalculationLog{}, payroll.ErrLogNotAvailable
	}
	return log, nil
}

func (f *fakeResultRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

type fakeRunLogRepo struct {
	mu   sync.Mutex
	logs map[string]calclog.RunLog
}

func newFakeRunLogRepo() *fakeRunLogRepo {
	return &fakeRunLogRepo{logs: make(map[string]calclog.RunLog)}
}

func (f *fakeRunLogRepo) Create(_ context.Context, log calclog.RunLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs[log.RunID] = log
	return nil
}

func (f *fakeRunLogRepo) Finish(_ context.Context, log calclog.RunLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, ok := f.logs[log.RunID]
	if !ok {
		return fmt.Errorf("run %s: %w", log.RunID, calclog.ErrRunLogNotFound)
	}
	if log.StartedAt.IsZero() {
		log.StartedAt = prev.StartedAt
	}
	f.logs[log.RunID] = log
	return nil
}

func (f *fakeRunLogRepo) GetByRunID(_ context.Context, companyID, runID string) (calclog.RunLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	log, ok := f.logs[runID]
	if !ok || log.CompanyID != companyID {
		return calclog.RunLog{}, calclog.ErrRunLogNotFound
	}
	return log, nil
}

func (f *fakeRunLogRepo) ListByCompany(_ context.Context, companyID string, filter calclog.ListFilter) ([]calclog.RunLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []calclog.RunLog
	for _, log := range f.logs {
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

func (f *fakeRunLogRepo) CountByStatus(_ context.Context, companyID string) (map[calclog.Status]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[calclog.Status]int)
	for _, log := range f.logs {
		if log.CompanyID == companyID {
			counts[log.Status]++
		}
	}
	return counts, nil
}

func (f *fakeRunLogRepo) MarkStale(_ context.Context, olderThan time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, log := range f.logs {
		if log.Status == calclog.StatusProcessing && log.StartedAt.Before(olderThan) {
			log.Status = calclog.StatusError
			f.logs[id] = log
			n++
		}
	}
	return n, nil
}

func (f *fakeRunLogRepo) get(runID string) calclog.RunLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logs[runID]
}

type fakeNotifier struct {
	mu        sync.Mutex
	summaries []notification.RunSummary
}

func (f *fakeNotifier) NotifyRunCompleted(_ context.Context, s notification.RunSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = append(f.summaries, s)
	return nil
}

func (f *fakeNotifier) all() []notification.RunSummary {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notification.RunSummary(nil), f.summaries...)
}

package postgresql_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/pkg/database"
)

// TestDatabaseSetup owns a connection to the test database.
type TestDatabaseSetup struct {
	DB *database.DB
}

// NewTestDatabase connects to TEST_DATABASE_URL and creates the payroll tables.
// Tests are skipped when the variable is unset.
func NewTestDatabase(t *testing.T) *TestDatabaseSetup {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := database.NewPostgreSQLDB(ctx, dsn, 5, 1)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	setup := &TestDatabaseSetup{DB: db}
	if _, err := db.Exec(ctx, schema); err != nil {
		db.Close()
		t.Fatalf("failed to create schema: %v", err)
	}
	if err := setup.TruncateAllTables(ctx); err != nil {
		db.Close()
		t.Fatalf("failed to truncate tables: %v", err)
	}
	t.Cleanup(setup.Close)
	return setup
}

// TruncateAllTables removes every row of the payroll tables.
func (t *TestDatabaseSetup) TruncateAllTables(ctx context.Context) error {
	tx, err := t.DB.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tables := []string{
		"calculation_logs",
		"payroll_events",
		"payroll_results",
		"payroll_run_logs",
		"pending_deductions",
		"employee_benefit_assignments",
		"rubricas",
		"fgts_configs",
		"tax_table_tiers",
		"tax_tables",
		"payroll_configs",
		"time_records",
		"employees",
		"work_schedule_times",
		"work_schedules",
	}

	for _, table := range tables {
		_, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		if err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return tx.Commit(ctx)
}

func (t *TestDatabaseSetup) Close() {
	t.DB.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS work_schedules (
	id UUID PRIMARY KEY,
	company_id UUID NOT NULL,
	name TEXT NOT NULL,
	timezone TEXT NOT NULL DEFAULT 'America/Sao_Paulo',
	weekly_minutes INT,
	deleted_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS work_schedule_times (
	id BIGSERIAL PRIMARY KEY,
	work_schedule_id UUID NOT NULL REFERENCES work_schedules(id),
	day_of_week INT NOT NULL,
	clock_in_time TIME NOT NULL,
	break_start_time TIME,
	break_end_time TIME,
	clock_out_time TIME NOT NULL,
	is_next_day_checkout BOOLEAN NOT NULL DEFAULT false
);

CREATE TABLE IF NOT EXISTS employees (
	id UUID PRIMARY KEY,
	company_id UUID NOT NULL,
	employee_code TEXT NOT NULL,
	full_name TEXT NOT NULL,
	position_id UUID,
	work_schedule_id UUID REFERENCES work_schedules(id),
	hire_date DATE NOT NULL,
	base_salary NUMERIC(14, 2),
	contract_type TEXT NOT NULL DEFAULT 'clt',
	dependents INT NOT NULL DEFAULT 0,
	employment_status TEXT NOT NULL DEFAULT 'active',
	deleted_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS time_records (
	id BIGSERIAL PRIMARY KEY,
	employee_id UUID NOT NULL REFERENCES employees(id),
	recorded_at TIMESTAMPTZ NOT NULL,
	kind TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS payroll_configs (
	id UUID PRIMARY KEY,
	company_id UUID NOT NULL,
	period_year INT NOT NULL,
	period_month INT NOT NULL,
	reference_date DATE NOT NULL,
	rounding_mode TEXT NOT NULL DEFAULT 'half_up',
	working_days_per_month INT NOT NULL DEFAULT 22,
	hours_per_day INT NOT NULL DEFAULT 8,
	overtime_percent NUMERIC(6, 4) NOT NULL DEFAULT 0.50,
	dsr_percent NUMERIC(6, 4) NOT NULL DEFAULT 0.0455,
	transport_voucher_percent NUMERIC(6, 4) NOT NULL DEFAULT 0.06,
	lateness_tolerance_minutes INT NOT NULL DEFAULT 5,
	apply_inss BOOLEAN NOT NULL DEFAULT true,
	apply_irrf BOOLEAN NOT NULL DEFAULT true,
	apply_fgts BOOLEAN NOT NULL DEFAULT true,
	is_active BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS rubricas (
	id UUID PRIMARY KEY,
	company_id UUID NOT NULL,
	code TEXT NOT NULL,
	name TEXT NOT NULL,
	kind TEXT NOT NULL,
	basis TEXT NOT NULL,
	amount NUMERIC(14, 2) NOT NULL DEFAULT 0,
	percentage NUMERIC(8, 6) NOT NULL DEFAULT 0,
	base_name TEXT,
	formula_name TEXT,
	incidence_inss BOOLEAN NOT NULL DEFAULT false,
	incidence_irrf BOOLEAN NOT NULL DEFAULT false,
	incidence_fgts BOOLEAN NOT NULL DEFAULT false,
	display_order INT NOT NULL DEFAULT 0,
	scope TEXT NOT NULL DEFAULT 'company',
	scope_ref UUID,
	requires_assignment BOOLEAN NOT NULL DEFAULT false,
	is_active BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS tax_tables (
	id UUID PRIMARY KEY,
	kind TEXT NOT NULL,
	valid_from_year INT NOT NULL,
	valid_from_month INT NOT NULL,
	valid_to_year INT,
	valid_to_month INT,
	ceiling NUMERIC(14, 2),
	dependent_deduction NUMERIC(14, 2) NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS tax_table_tiers (
	id BIGSERIAL PRIMARY KEY,
	tax_table_id UUID NOT NULL REFERENCES tax_tables(id),
	lower_bound NUMERIC(14, 2) NOT NULL,
	upper_bound NUMERIC(14, 2),
	rate NUMERIC(8, 6) NOT NULL,
	deductible NUMERIC(14, 2) NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS fgts_configs (
	id BIGSERIAL PRIMARY KEY,
	contract_type TEXT,
	rate NUMERIC(8, 6) NOT NULL,
	ceiling NUMERIC(14, 2),
	valid_from_year INT NOT NULL,
	valid_from_month INT NOT NULL,
	valid_to_year INT,
	valid_to_month INT
);

CREATE TABLE IF NOT EXISTS employee_benefit_assignments (
	id BIGSERIAL PRIMARY KEY,
	employee_id UUID NOT NULL REFERENCES employees(id),
	rubrica_id UUID NOT NULL REFERENCES rubricas(id),
	custom_value NUMERIC(14, 2),
	start_date DATE NOT NULL,
	end_date DATE,
	is_active BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS pending_deductions (
	id UUID PRIMARY KEY,
	employee_id UUID NOT NULL REFERENCES employees(id),
	kind TEXT NOT NULL,
	description TEXT,
	amount NUMERIC(14, 2) NOT NULL,
	installment INT,
	total_installments INT,
	due_year INT NOT NULL,
	due_month INT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS payroll_run_logs (
	run_id UUID PRIMARY KEY,
	company_id UUID NOT NULL,
	period_year INT NOT NULL,
	period_month INT NOT NULL,
	process_type TEXT NOT NULL,
	status TEXT NOT NULL,
	total_employees INT NOT NULL DEFAULT 0,
	processed INT NOT NULL DEFAULT 0,
	succeeded INT NOT NULL DEFAULT 0,
	failed INT NOT NULL DEFAULT 0,
	skipped INT NOT NULL DEFAULT 0,
	error_message TEXT,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS payroll_results (
	run_id UUID NOT NULL,
	employee_id UUID NOT NULL,
	company_id UUID NOT NULL,
	period_year INT NOT NULL,
	period_month INT NOT NULL,
	process_type TEXT NOT NULL,
	gross NUMERIC(14, 2) NOT NULL,
	total_deductions NUMERIC(14, 2) NOT NULL,
	inss_base NUMERIC(14, 2) NOT NULL,
	irrf_base NUMERIC(14, 2) NOT NULL,
	fgts_base NUMERIC(14, 2) NOT NULL,
	inss NUMERIC(14, 2) NOT NULL,
	irrf NUMERIC(14, 2) NOT NULL,
	fgts NUMERIC(14, 2) NOT NULL,
	withholdings NUMERIC(14, 2) NOT NULL,
	net NUMERIC(14, 2) NOT NULL,
	worked_minutes INT NOT NULL,
	overtime_minutes INT NOT NULL,
	absence_minutes INT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (run_id, employee_id)
);

CREATE TABLE IF NOT EXISTS payroll_events (
	run_id UUID NOT NULL,
	employee_id UUID NOT NULL,
	seq INT NOT NULL,
	rubrica_id UUID,
	code TEXT NOT NULL,
	name TEXT NOT NULL,
	kind TEXT NOT NULL,
	amount NUMERIC(14, 2) NOT NULL,
	sign INT NOT NULL,
	reference NUMERIC(14, 4) NOT NULL,
	note TEXT,
	incidence_inss BOOLEAN NOT NULL,
	incidence_irrf BOOLEAN NOT NULL,
	incidence_fgts BOOLEAN NOT NULL,
	PRIMARY KEY (run_id, employee_id, seq)
);

CREATE TABLE IF NOT EXISTS calculation_logs (
	run_id UUID NOT NULL,
	employee_id UUID NOT NULL,
	entries JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (run_id, employee_id)
);
`

package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/employee"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/payroll"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// SalaryRubricaCode is the rubrica a company without any configured rubrica gets.
const SalaryRubricaCode = "SAL_BASE"

var pendingRubricaNames = map[string]string{
	"COP_MED":   "Coparticipação médica",
	"EMPREST":   "Empréstimo consignado",
	"MULTA":     "Multa",
	"AVARIA":    "Avaria de veículo",
	"DANOS":     "Danos materiais",
	"ADIANT":    "Adiantamento salarial",
	"DESC_COMB": "Desconto combinado",
	"DESC_OUT":  "Outros descontos",
}

// SnapshotService loads the read-only state of a run in one parallel pass.
type SnapshotService struct {
	configs   payroll.ConfigRepository
	tables    payroll.TaxTableRepository
	employees employee.EmployeeRepository
}

func NewSnapshotService(configs payroll.ConfigRepository, tables payroll.TaxTableRepository, employees employee.EmployeeRepository) *SnapshotService {
	return &SnapshotService{configs: configs, tables: tables, employees: employees}
}

// Load implements payroll.SnapshotLoader. Every error it returns is fatal to the run.
func (s *SnapshotService) Load(ctx context.Context, runID string, params payroll.PayrollCalculationParams) (payroll.Snapshot, error) {
	var (
		cfg              payroll.PayrollConfig
		rubricas         []payroll.Rubrica
		inss, irrf       payroll.TaxTable
		inssErr, irrfErr error
		fgts             []payroll.FlatRateConfig
		emps             []employee.Employee
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		c, err := s.config(gCtx, params.CompanyID, params.Period)
		if err != nil {
			return err
		}
		cfg = c
		return nil
	})

	g.Go(func() error {
		list, err := s.configs.ListRubricas(gCtx, params.CompanyID, true)
		if err != nil {
			return fmt.Errorf("failed to list rubricas: %w", err)
		}
		rubricas = list
		return nil
	})

	// Missing tables are only fatal when the config applies them, which is not known yet.
	g.Go(func() error {
		inss, inssErr = s.tables.GetActiveTable(gCtx, payroll.TableINSS, params.Period)
		if inssErr != nil && !errors.Is(inssErr, payroll.ErrTaxTableNotFound) {
			return fmt.Errorf("failed to get INSS table: %w", inssErr)
		}
		return nil
	})

	g.Go(func() error {
		irrf, irrfErr = s.tables.GetActiveTable(gCtx, payroll.TableIRRF, params.Period)
		if irrfErr != nil && !errors.Is(irrfErr, payroll.ErrTaxTableNotFound) {
			return fmt.Errorf("failed to get IRRF table: %w", irrfErr)
		}
		return nil
	})

	g.Go(func() error {
		list, err := s.tables.ListFlatRateConfigs(gCtx, params.Period)
		if err != nil {
			return fmt.Errorf("failed to list FGTS configs: %w", err)
		}
		fgts = list
		return nil
	})

	g.Go(func() error {
		var err error
		if len(params.EmployeeIDs) == 0 {
			emps, err = s.employees.GetActiveByCompanyID(gCtx, params.CompanyID)
		} else {
			emps, err = s.employees.GetByIDs(gCtx, params.CompanyID, params.EmployeeIDs)
		}
		if err != nil {
			return fmt.Errorf("failed to load employees: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return payroll.Snapshot{}, err
	}

	cfg.CompanyID = params.CompanyID
	cfg.Period = params.Period
	cfg.Rubricas = withSystemRubricas(params.CompanyID, rubricas)
	cfg.FGTS = fgts
	if cfg.ApplyINSS {
		if inssErr != nil {
			return payroll.Snapshot{}, fmt.Errorf("%w: inss %s", payroll.ErrTaxTableNotFound, params.Period)
		}
		cfg.INSS = inss
	}
	if cfg.ApplyIRRF {
		if irrfErr != nil {
			return payroll.Snapshot{}, fmt.Errorf("%w: irrf %s", payroll.ErrTaxTableNotFound, params.Period)
		}
		cfg.IRRF = irrf
	}
	if err := cfg.Validate(); err != nil {
		return payroll.Snapshot{}, err
	}

	selected, unresolved := selectEmployees(emps, params.EmployeeIDs)
	if len(selected) == 0 {
		return payroll.Snapshot{}, payroll.ErrNoEmployees
	}
	if len(unresolved) > 0 {
		slog.Warn("employees not found for payroll run", "run_id", runID, "count", len(unresolved))
	}

	processType := params.ProcessType
	if processType == "" {
		processType = payroll.ProcessMonthly
	}
	return payroll.Snapshot{
		Run: payroll.RunContext{
			RunID:       runID,
			CompanyID:   params.CompanyID,
			Period:      params.Period,
			ProcessType: processType,
			Config:      cfg,
		},
		Employees:  selected,
		Unresolved: unresolved,
	}, nil
}

// config falls back from the period config to the latest active one, then to the defaults.
func (s *SnapshotService) config(ctx context.Context, companyID string, period payroll.Period) (payroll.PayrollConfig, error) {
	cfg, err := s.configs.GetConfigForPeriod(ctx, companyID, period)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, payroll.ErrConfigNotFound) {
		return payroll.PayrollConfig{}, fmt.Errorf("failed to get payroll config: %w", err)
	}

	cfg, err = s.configs.GetLatestActiveConfig(ctx, companyID)
	if err == nil {
		slog.Info("using latest active payroll config", "company_id", companyID, "period", period.String(), "config_period", cfg.Period.String())
		return cfg, nil
	}
	if !errors.Is(err, payroll.ErrConfigNotFound) {
		return payroll.PayrollConfig{}, fmt.Errorf("failed to get latest payroll config: %w", err)
	}

	slog.Info("using default payroll config", "company_id", companyID, "period", period.String())
	return payroll.DefaultConfig(companyID, period), nil
}

// selectEmployees keeps payable employees when all are requested, or the requested ones in
// request order, reporting ids that did not resolve.
func selectEmployees(emps []employee.Employee, requested []string) ([]employee.Employee, []string) {
	if len(requested) == 0 {
		out := make([]employee.Employee, 0, len(emps))
		for _, e := range emps {
			if e.Payable() {
				out = append(out, e)
			}
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
		return out, nil
	}

	byID := make(map[string]employee.Employee, len(emps))
	for _, e := range emps {
		byID[e.ID] = e
	}
	var (
		out        []employee.Employee
		unresolved []string
	)
	for _, id := range requested {
		if e, ok := byID[id]; ok {
			out = append(out, e)
		} else {
			unresolved = append(unresolved, id)
		}
	}
	return out, unresolved
}

// withSystemRubricas adds the base salary rubrica when none is configured and the deduction
// rubricas pending deductions are posted to.
func withSystemRubricas(companyID string, rubricas []payroll.Rubrica) []payroll.Rubrica {
	out := make([]payroll.Rubrica, 0, len(rubricas)+len(pendingRubricaNames)+1)
	out = append(out, rubricas...)

	if len(rubricas) == 0 {
		out = append(out, payroll.Rubrica{
			CompanyID:    companyID,
			Code:         SalaryRubricaCode,
			Name:         "Salário base",
			Kind:         payroll.RubricaKindEarning,
			Basis:        payroll.BasisPercentage,
			Percentage:   decimal.NewFromInt(1),
			BaseName:     BaseSalary,
			Incidence:    payroll.Incidence{INSS: true, IRRF: true, FGTS: true},
			DisplayOrder: 1,
			Scope:        payroll.ScopeCompany,
			Active:       true,
		})
	}

	present := make(map[string]bool, len(out))
	for _, r := range out {
		present[r.Code] = true
	}
	codes := make([]string, 0, len(pendingRubricaNames))
	for code := range pendingRubricaNames {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for i, code := range codes {
		if present[code] {
			continue
		}
		out = append(out, payroll.Rubrica{
			CompanyID:    companyID,
			Code:         code,
			Name:         pendingRubricaNames[code],
			Kind:         payroll.RubricaKindDeduction,
			Basis:        payroll.BasisFixed,
			DisplayOrder: 900 + i,
			Scope:        payroll.ScopeCompany,
			Active:       true,
		})
	}
	return out
}

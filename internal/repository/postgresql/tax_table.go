package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/payroll"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/pkg/database"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type taxTableRepository struct {
	db *database.DB
}

func NewTaxTableRepository(db *database.DB) payroll.TaxTableRepository {
	return &taxTableRepository{db: db}
}

// Periods are compared as year*12 + month - 1, matching payroll.Period.Index.
const periodCovers = `
	valid_from_year * 12 + valid_from_month - 1 <= $%[1]d
	AND (valid_to_year IS NULL OR valid_to_year * 12 + valid_to_month - 1 >= $%[1]d)
`

// GetActiveTable implements payroll.TaxTableRepository. When several tables cover the
// period the most recent one wins.
func (r *taxTableRepository) GetActiveTable(ctx context.Context, kind payroll.TableKind, period payroll.Period) (payroll.TaxTable, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, valid_from_year, valid_from_month, valid_to_year, valid_to_month,
			ceiling, dependent_deduction
		FROM tax_tables
		WHERE kind = $1 AND ` + fmt.Sprintf(periodCovers, 2) + `
		ORDER BY valid_from_year DESC, valid_from_month DESC
		LIMIT 1
	`

	t := payroll.TaxTable{Kind: kind}
	var (
		tableID         string
		toYear, toMonth *int
	)
	err := q.QueryRow(ctx, query, kind, period.Index()).Scan(
		&tableID, &t.ValidFrom.Year, &t.ValidFrom.Month, &toYear, &toMonth,
		&t.Ceiling, &t.DependentDeduction,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.TaxTable{}, payroll.ErrTaxTableNotFound
		}
		return payroll.TaxTable{}, fmt.Errorf("failed to get %s table: %w", kind, err)
	}
	t.ValidTo = periodOf(toYear, toMonth)

	rows, err := q.Query(ctx, `
		SELECT lower_bound, upper_bound, rate, deductible
		FROM tax_table_tiers
		WHERE tax_table_id = $1
		ORDER BY lower_bound
	`, tableID)
	if err != nil {
		return payroll.TaxTable{}, fmt.Errorf("failed to list %s tiers: %w", kind, err)
	}
	defer rows.Close()

	for rows.Next() {
		var tier payroll.TaxTier
		if err := rows.Scan(&tier.Lower, &tier.Upper, &tier.Rate, &tier.Deductible); err != nil {
			return payroll.TaxTable{}, fmt.Errorf("failed to scan %s tier: %w", kind, err)
		}
		t.Tiers = append(t.Tiers, tier)
	}
	if err := rows.Err(); err != nil {
		return payroll.TaxTable{}, fmt.Errorf("failed to iterate %s tiers: %w", kind, err)
	}

	return t, nil
}

// ListFlatRateConfigs implements payroll.TaxTableRepository.
func (r *taxTableRepository) ListFlatRateConfigs(ctx context.Context, period payroll.Period) ([]payroll.FlatRateConfig, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT COALESCE(contract_type, ''), rate, ceiling,
			valid_from_year, valid_from_month, valid_to_year, valid_to_month
		FROM fgts_configs
		WHERE ` + fmt.Sprintf(periodCovers, 1) + `
		ORDER BY contract_type NULLS LAST, valid_from_year DESC, valid_from_month DESC
	`

	rows, err := q.Query(ctx, query, period.Index())
	if err != nil {
		return nil, fmt.Errorf("failed to list FGTS configs: %w", err)
	}
	defer rows.Close()

	var configs []payroll.FlatRateConfig
	for rows.Next() {
		var (
			f               payroll.FlatRateConfig
			ceiling         *decimal.Decimal
			toYear, toMonth *int
		)
		if err := rows.Scan(
			&f.ContractType, &f.Rate, &ceiling,
			&f.ValidFrom.Year, &f.ValidFrom.Month, &toYear, &toMonth,
		); err != nil {
			return nil, fmt.Errorf("failed to scan FGTS config: %w", err)
		}
		f.Ceiling = ceiling
		f.ValidTo = periodOf(toYear, toMonth)
		configs = append(configs, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate FGTS configs: %w", err)
	}

	return configs, nil
}

func periodOf(year, month *int) *payroll.Period {
	if year == nil || month == nil {
		return nil
	}
	return &payroll.Period{Year: *year, Month: *month}
}

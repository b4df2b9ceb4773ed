package payroll

import (
	"fmt"

	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/payroll"
	"github.com/shopspring/decimal"
)

// BracketResult is the outcome of a progressive table lookup.
type BracketResult struct {
	TaxableBase   decimal.Decimal
	Tax           decimal.Decimal
	EffectiveRate decimal.Decimal
	AppliedTier   int // -1 when no tier applies
}

// ComputeBracket applies the single tier containing base: tax = base × rate − deductible.
// The table must already be validated. Only the final figure is rounded.
func ComputeBracket(base decimal.Decimal, table payroll.TaxTable, rounding payroll.RoundingMode) (BracketResult, error) {
	if base.IsNegative() {
		return BracketResult{}, fmt.Errorf("%w: %s base %s", payroll.ErrNegativeBase, table.Kind, base.String())
	}

	taxable := base
	if table.Ceiling != nil && taxable.GreaterThan(*table.Ceiling) {
		taxable = *table.Ceiling
	}

	res := BracketResult{
		TaxableBase:   taxable,
		Tax:           decimal.Zero,
		EffectiveRate: decimal.Zero,
		AppliedTier:   -1,
	}
	if taxable.IsZero() {
		return res, nil
	}

	for i, tier := range table.Tiers {
		if !tier.Contains(taxable) {
			continue
		}
		tax := taxable.Mul(tier.Rate).Sub(tier.Deductible)
		if tax.IsNegative() {
			tax = decimal.Zero
		}
		res.Tax = rounding.Round(tax)
		res.EffectiveRate = tax.DivRound(taxable, 6)
		res.AppliedTier = i
		return res, nil
	}

	// Unreachable for a validated table covering [0, ∞).
	return BracketResult{}, fmt.Errorf("%w: %s base %s not covered", payroll.ErrInvalidTaxTable, table.Kind, taxable.String())
}

// ComputeFlatRate returns min(base, ceiling) × rate, rounded.
func ComputeFlatRate(base, rate decimal.Decimal, ceiling *decimal.Decimal, rounding payroll.RoundingMode) decimal.Decimal {
	if !base.IsPositive() {
		return decimal.Zero
	}
	capped := base
	if ceiling != nil && capped.GreaterThan(*ceiling) {
		capped = *ceiling
	}
	return rounding.Round(capped.Mul(rate))
}

package payroll

import (
	"testing"

	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/payroll"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tieredTable() payroll.TaxTable {
	return payroll.TaxTable{
		Kind: payroll.TableIRRF,
		Tiers: []payroll.TaxTier{
			{Lower: decimal.Zero, Upper: decPtr("1000"), Rate: decimal.Zero},
			{Lower: dec("1000"), Upper: decPtr("2000"), Rate: dec("0.10"), Deductible: dec("100")},
			{Lower: dec("2000"), Rate: dec("0.20"), Deductible: dec("300")},
		},
	}
}

func TestComputeBracket(t *testing.T) {
	t.Parallel()

	capped := tieredTable()
	capped.Ceiling = decPtr("1800")

	tests := []struct {
		name    string
		base    string
		table   payroll.TaxTable
		tax     string
		taxable string
		tier    int
	}{
		{name: "single tier 8%", base: "1000", table: testINSSTable(), tax: "80", taxable: "1000", tier: 0},
		{name: "exempt tier", base: "999.99", table: tieredTable(), tax: "0", taxable: "999.99", tier: 0},
		{name: "middle tier", base: "1500", table: tieredTable(), tax: "50", taxable: "1500", tier: 1},
		{name: "lower bound belongs to upper tier", base: "2000", table: tieredTable(), tax: "100", taxable: "2000", tier: 2},
		{name: "top tier", base: "3000", table: tieredTable(), tax: "300", taxable: "3000", tier: 2},
		{name: "ceiling caps base", base: "5000", table: capped, tax: "80", taxable: "1800", tier: 1},
		{name: "zero base", base: "0", table: tieredTable(), tax: "0", taxable: "0", tier: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res, err := ComputeBracket(dec(tt.base), tt.table, payroll.RoundingHalfUp)
			require.NoError(t, err)
			assert.True(t, dec(tt.tax).Equal(res.Tax), "tax: want %s got %s", tt.tax, res.Tax)
			assert.True(t, dec(tt.taxable).Equal(res.TaxableBase), "taxable: want %s got %s", tt.taxable, res.TaxableBase)
			assert.Equal(t, tt.tier, res.AppliedTier)
		})
	}
}

func TestComputeBracket_NegativeBase(t *testing.T) {
	t.Parallel()

	_, err := ComputeBracket(dec("-0.01"), tieredTable(), payroll.RoundingHalfUp)
	assert.ErrorIs(t, err, payroll.ErrNegativeBase)
}

func TestComputeBracket_EffectiveRate(t *testing.T) {
	t.Parallel()

	res, err := ComputeBracket(dec("1500"), tieredTable(), payroll.RoundingHalfUp)
	require.NoError(t, err)
	// 50 / 1500
	assert.True(t, dec("0.033333").Equal(res.EffectiveRate), "got %s", res.EffectiveRate)
}

func TestComputeBracket_MonotonicAndContinuous(t *testing.T) {
	t.Parallel()

	table := tieredTable()
	prev := decimal.Zero
	for base := decimal.Zero; base.LessThan(dec("5000")); base = base.Add(dec("12.34")) {
		res, err := ComputeBracket(base, table, payroll.RoundingHalfUp)
		require.NoError(t, err)
		assert.False(t, res.Tax.LessThan(prev), "tax decreased at base %s", base)
		prev = res.Tax
	}

	// Both sides of each boundary agree within a cent.
	for _, boundary := range []string{"1000", "2000"} {
		below, err := ComputeBracket(dec(boundary).Sub(dec("0.01")), table, payroll.RoundingHalfUp)
		require.NoError(t, err)
		at, err := ComputeBracket(dec(boundary), table, payroll.RoundingHalfUp)
		require.NoError(t, err)
		assert.True(t, at.Tax.Sub(below.Tax).Abs().LessThanOrEqual(dec("0.01")), "jump at %s: %s -> %s", boundary, below.Tax, at.Tax)
	}
}

func TestComputeBracket_RoundingModes(t *testing.T) {
	t.Parallel()

	table := payroll.TaxTable{Kind: payroll.TableINSS, Tiers: []payroll.TaxTier{{Lower: decimal.Zero, Rate: dec("0.075")}}}
	base := dec("1234.57") // 92.59275

	tests := []struct {
		mode payroll.RoundingMode
		want string
	}{
		{payroll.RoundingHalfUp, "92.59"},
		{payroll.RoundingUp, "92.60"},
		{payroll.RoundingDown, "92.59"},
	}
	for _, tt := range tests {
		res, err := ComputeBracket(base, table, tt.mode)
		require.NoError(t, err)
		assert.True(t, dec(tt.want).Equal(res.Tax), "%s: want %s got %s", tt.mode, tt.want, res.Tax)
	}
}

func TestTaxTableValidate(t *testing.T) {
	t.Parallel()

	gap := tieredTable()
	gap.Tiers[1].Lower = dec("1100")

	notFromZero := tieredTable()
	notFromZero.Tiers[0].Lower = dec("1")

	closedLast := tieredTable()
	closedLast.Tiers[2].Upper = decPtr("9000")

	openMiddle := tieredTable()
	openMiddle.Tiers[1].Upper = nil

	badRate := tieredTable()
	badRate.Tiers[2].Rate = dec("1.5")

	tests := []struct {
		name  string
		table payroll.TaxTable
	}{
		{"gap between tiers", gap},
		{"does not start at zero", notFromZero},
		{"last tier closed", closedLast},
		{"open tier in the middle", openMiddle},
		{"rate above one", badRate},
		{"no tiers", payroll.TaxTable{Kind: payroll.TableINSS}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.ErrorIs(t, tt.table.Validate(), payroll.ErrInvalidTaxTable)
		})
	}

	assert.NoError(t, tieredTable().Validate())
	assert.NoError(t, testINSSTable().Validate())
	assert.NoError(t, testIRRFTable().Validate())
}

func TestComputeFlatRate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		base    string
		ceiling *decimal.Decimal
		want    string
	}{
		{name: "plain", base: "2000", want: "160"},
		{name: "ceiling", base: "2000", ceiling: decPtr("1000"), want: "80"},
		{name: "below ceiling", base: "500", ceiling: decPtr("1000"), want: "40"},
		{name: "zero base", base: "0", want: "0"},
		{name: "negative base", base: "-10", want: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ComputeFlatRate(dec(tt.base), dec("0.08"), tt.ceiling, payroll.RoundingHalfUp)
			assert.True(t, dec(tt.want).Equal(got), "want %s got %s", tt.want, got)
		})
	}
}

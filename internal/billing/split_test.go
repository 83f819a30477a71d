package billing

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeSplitReferenceAmount(t *testing.T) {
	s := ComputeSplit(119.00, DefaultSplitPolicy())

	assert.True(t, s.Base.Equal(decimal.RequireFromString("117.24")), "base = %s", s.Base)
	assert.True(t, s.CommissionBase.Equal(decimal.RequireFromString("1.48")), "commission = %s", s.CommissionBase)
	assert.True(t, s.Tax.Equal(decimal.RequireFromString("0.28")), "tax = %s", s.Tax)
	assert.True(t, s.Total().Equal(decimal.RequireFromString("119.00")), "total = %s", s.Total())
}

func TestComputeSplitNonPositiveAndNonFinite(t *testing.T) {
	for _, gross := range []float64{0, -0.01, -500, math.NaN(), math.Inf(1), math.Inf(-1)} {
		s := ComputeSplit(gross, DefaultSplitPolicy())
		assert.True(t, s.Base.IsZero(), "base for %v", gross)
		assert.True(t, s.CommissionBase.IsZero(), "commission for %v", gross)
		assert.True(t, s.Tax.IsZero(), "tax for %v", gross)
	}
}

func TestComputeSplitPartsAreRoundedIndependently(t *testing.T) {
	policy := DefaultSplitPolicy()
	for _, gross := range []float64{0.01, 1, 33.33, 100, 119, 1017.55, 250000, 999999.99} {
		s := ComputeSplit(gross, policy)
		for name, part := range map[string]decimal.Decimal{
			"base": s.Base, "commission": s.CommissionBase, "tax": s.Tax,
		} {
			require.GreaterOrEqual(t, part.Exponent(), int32(-2),
				"%s of %v has more than 2 decimals: %s", name, gross, part)
			require.False(t, part.IsNegative(), "%s of %v is negative", name, gross)
		}
		// The invoiced total is the literal sum of the rounded parts, not
		// the original gross.
		assert.True(t, s.Total().Equal(s.Base.Add(s.CommissionBase).Add(s.Tax)))
	}
}

func TestComputeSplitRespectsAccountPolicy(t *testing.T) {
	policy := SplitPolicy{
		PassThroughFactor: decimal.RequireFromString("1.02"),
		CommissionRate:    decimal.RequireFromString("0.02"),
		TaxRate:           decimal.RequireFromString("0.19"),
	}
	s := ComputeSplit(102.00, policy)
	assert.True(t, s.Base.Equal(decimal.RequireFromString("100.00")), "base = %s", s.Base)
	assert.True(t, s.CommissionBase.Equal(decimal.RequireFromString("1.68")), "commission = %s", s.CommissionBase)
	assert.True(t, s.Tax.Equal(decimal.RequireFromString("0.32")), "tax = %s", s.Tax)
}

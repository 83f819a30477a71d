package billing

import (
	"math"

	"github.com/shopspring/decimal"
)

// DefaultSplitPolicy returns the factors used when an account has no
// overrides configured: 1.5% pass-through markup, 1.5% commission, 19% tax
// on the commission.
func DefaultSplitPolicy() SplitPolicy {
	return SplitPolicy{
		PassThroughFactor: decimal.RequireFromString("1.015"),
		CommissionRate:    decimal.RequireFromString("0.015"),
		TaxRate:           decimal.RequireFromString("0.19"),
	}
}

// ComputeSplit breaks a gross collected amount into the untaxed pass-through
// base, the taxable commission and the tax on that commission.
//
// Each part is rounded to 2 decimals independently, so the invoice total is
// always the literal sum of its line items even when that sum drifts from
// the gross by a cent or two. Non-positive and non-finite amounts produce a
// zero split; one bad amount must never stop a run.
func ComputeSplit(gross float64, p SplitPolicy) Split {
	if gross <= 0 || math.IsNaN(gross) || math.IsInf(gross, 0) {
		return Split{
			Base:           decimal.Zero,
			CommissionBase: decimal.Zero,
			Tax:            decimal.Zero,
		}
	}

	t := decimal.NewFromFloat(gross)
	one := decimal.NewFromInt(1)

	base := t.Div(p.PassThroughFactor)
	commission := base.Mul(p.CommissionRate).Div(one.Add(p.TaxRate))
	tax := commission.Mul(p.TaxRate)

	return Split{
		Base:           base.Round(2),
		CommissionBase: commission.Round(2),
		Tax:            tax.Round(2),
	}
}

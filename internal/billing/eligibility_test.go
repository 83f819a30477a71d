package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ConciliaMayorista/internal/config"
)

func TestEligibleForInvoicing(t *testing.T) {
	denylist := NewDenylist(config.DefaultReferenceDenylist)
	records := []IncomeRecord{
		{IncomeID: "I-05", ClientID: "900123456", GrossAmount: 119.00},
		{IncomeID: "I-01", ClientID: "900123456", GrossAmount: 50.00},
		{IncomeID: "I-02", ClientID: "", GrossAmount: 80.00},                                 // unassigned
		{IncomeID: "I-03", ClientID: "900123456", GrossAmount: 75.00, InvoiceNumber: "488"}, // closed
		{IncomeID: "I-04", ClientID: "900123456", GrossAmount: -10.00},                      // reversal
	}

	got := EligibleForInvoicing(records, denylist)

	ids := make([]string, 0, len(got))
	for _, rec := range got {
		ids = append(ids, rec.IncomeID)
	}
	assert.Equal(t, []string{"I-01", "I-05"}, ids, "eligible set ordered by income id")
}

func TestEligibleForInvoicingDenylistIsCaseAndSpaceInsensitive(t *testing.T) {
	denylist := NewDenylist([]string{"ABONO INTERESES AHORROS"})
	records := []IncomeRecord{
		{IncomeID: "I-01", ClientID: "900123456", GrossAmount: 3.17, ReferenceText: "  abono intereses ahorros  "},
		{IncomeID: "I-02", ClientID: "900123456", GrossAmount: 200.00, ReferenceText: "Pago pedido 7781"},
	}

	got := EligibleForInvoicing(records, denylist)

	assert.Len(t, got, 1)
	assert.Equal(t, "I-02", got[0].IncomeID)
}

func TestEligibleForInvoicingZeroAmountPassesFilter(t *testing.T) {
	// Zero amounts are not reversals; they flow through and the split
	// calculator yields a zero split for them.
	got := EligibleForInvoicing([]IncomeRecord{
		{IncomeID: "I-01", ClientID: "900123456", GrossAmount: 0},
	}, NewDenylist(nil))
	assert.Len(t, got, 1)
}

package billing

import (
	"sort"
	"strings"
)

// Denylist is the set of reference texts that must never be auto-invoiced
// (interest credits and similar non-revenue postings). Matching is
// case-insensitive on the trimmed text.
type Denylist map[string]struct{}

func NewDenylist(entries []string) Denylist {
	d := make(Denylist, len(entries))
	for _, e := range entries {
		d[normalizeReference(e)] = struct{}{}
	}
	return d
}

func (d Denylist) Blocks(referenceText string) bool {
	_, ok := d[normalizeReference(referenceText)]
	return ok
}

func normalizeReference(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// EligibleForInvoicing selects the records ready to be invoiced: assigned to
// a client, not yet numbered, non-negative amount and not denylisted.
// Reversals (negative amounts) and denylisted postings are excluded before
// the inclusion rule is even considered. The result is ordered by income id
// so runs are reproducible.
func EligibleForInvoicing(records []IncomeRecord, denylist Denylist) []IncomeRecord {
	eligible := make([]IncomeRecord, 0, len(records))
	for _, rec := range records {
		if rec.GrossAmount < 0 {
			continue
		}
		if denylist.Blocks(rec.ReferenceText) {
			continue
		}
		if rec.ClientID == "" || rec.InvoiceNumber != "" {
			continue
		}
		eligible = append(eligible, rec)
	}
	sort.Slice(eligible, func(i, j int) bool {
		return eligible[i].IncomeID < eligible[j].IncomeID
	})
	return eligible
}

// Package validation checks uploaded ledger sheets before staging, so a
// malformed workbook fails the upload loudly instead of silently skipping
// every row during promotion.
package validation

import (
	"fmt"
	"strings"

	"ConciliaMayorista/internal/config"
)

// CheckLedgerHeader verifies that a sheet's header row carries the columns
// promotion cannot work without. The remaining columns are optional; rows
// missing them are handled per-row.
func CheckLedgerHeader(header []string) error {
	have := make(map[string]bool, len(header))
	for _, h := range header {
		have[strings.TrimSpace(h)] = true
	}
	var missing []string
	for _, required := range []string{config.HeaderIncomeID, config.HeaderMonto} {
		if !have[required] {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("header is missing required columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

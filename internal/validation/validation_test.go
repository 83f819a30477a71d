package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckLedgerHeader(t *testing.T) {
	require.NoError(t, CheckLedgerHeader([]string{"ID", "Fecha", "Tipo", "Monto", "Motivo", "NIT Cliente", "Factura"}))

	// Column order and extra columns are irrelevant; padding is tolerated.
	require.NoError(t, CheckLedgerHeader([]string{" Monto ", "Extra", "ID"}))

	err := CheckLedgerHeader([]string{"Fecha", "Motivo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ID")
	assert.Contains(t, err.Error(), "Monto")
}

func TestCheckLedgerHeaderEmpty(t *testing.T) {
	require.Error(t, CheckLedgerHeader(nil))
}

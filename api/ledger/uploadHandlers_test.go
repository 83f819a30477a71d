package ledger

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestParseIncomeFileCSV(t *testing.T) {
	csvData := strings.Join([]string{
		"ID,Fecha,Tipo,Monto,Motivo,NIT Cliente,Factura",
		`A1,2025-07-07,Ingreso,"119.00",Pago pedido 7781,900123456,`,
		"A2,2025-07-07,Egreso,-12.00,Comision,,",
	}, "\n")

	sheets, err := parseIncomeFile(bytes.NewReader([]byte(csvData)), ".csv")
	require.NoError(t, err)
	require.Len(t, sheets, 1)
	assert.Empty(t, sheets[0].Name, "csv carries a single unnamed partition")
	require.Len(t, sheets[0].Rows, 3)
	assert.Equal(t, []string{"ID", "Fecha", "Tipo", "Monto", "Motivo", "NIT Cliente", "Factura"}, sheets[0].Rows[0])
	assert.Equal(t, "119.00", sheets[0].Rows[1][3])
}

func TestParseIncomeFileXLSXKeepsSheetNames(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "1633 - Nathalia Ospina"))
	_, err := f.NewSheet("2120 - Jimmy Cortes")
	require.NoError(t, err)
	header := []interface{}{"ID", "Monto"}
	require.NoError(t, f.SetSheetRow("1633 - Nathalia Ospina", "A1", &header))
	row := []interface{}{"A1", 119.00}
	require.NoError(t, f.SetSheetRow("1633 - Nathalia Ospina", "A2", &row))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	sheets, err := parseIncomeFile(bytes.NewReader(buf.Bytes()), ".xlsx")
	require.NoError(t, err)
	require.Len(t, sheets, 2)
	assert.Equal(t, "1633 - Nathalia Ospina", sheets[0].Name)
	assert.Equal(t, "2120 - Jimmy Cortes", sheets[1].Name)
	require.Len(t, sheets[0].Rows, 2)
	assert.Equal(t, "A1", sheets[0].Rows[1][0])
}

func TestParseIncomeFileRejectsUnknownExtension(t *testing.T) {
	_, err := parseIncomeFile(bytes.NewReader(nil), ".pdf")
	require.Error(t, err)
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"119.00", 119.00, true},
		{" $1,017.55 ", 1017.55, true},
		{"-12.00", -12.00, true},
		{"0", 0, true},
		{"", 0, false},
		{"n/a", 0, false},
	}
	for _, c := range cases {
		got, ok := parseAmount(c.in)
		assert.Equal(t, c.ok, ok, "ok for %q", c.in)
		if c.ok {
			assert.InDelta(t, c.want, got, 0.0001, "value for %q", c.in)
		}
	}
}

func TestParseFecha(t *testing.T) {
	fallback := time.Date(2025, 7, 7, 12, 0, 0, 0, time.UTC)

	got := parseFecha("2025-03-15", fallback)
	assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), got)

	got = parseFecha("15/03/2025", fallback)
	assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), got)

	// Unparseable dates keep the row with the upload time instead of
	// dropping it.
	assert.Equal(t, fallback, parseFecha("mañana", fallback))
	assert.Equal(t, fallback, parseFecha("", fallback))
}

func TestGetFileExt(t *testing.T) {
	assert.Equal(t, ".xlsx", getFileExt("Conciliacion JULIO.XLSX"))
	assert.Equal(t, ".csv", getFileExt("ledger.csv"))
	assert.Equal(t, "", getFileExt("noextension"))
}

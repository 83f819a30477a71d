package config

const (
	DefaultTimeZone    = "America/Bogota"
	DefaultRunSchedule = "0 7 * * *" // daily morning billing pass

	// Numbering defaults; per-account values in recon.account_billing_config
	// override these.
	DefaultNumberCeiling   = 99999999
	DefaultMaxAttempts     = 25
	DefaultSeedPageSize    = 100
	DefaultSeedPatience    = 3
	DefaultRequestTimeoutS = 30

	// Ingestion
	StagingBatchSize = 1000

	// Workbook column headers the ledger ingestion recognizes. The shared
	// reseller workbook keeps one sheet per account.
	HeaderIncomeID  = "ID"
	HeaderFecha     = "Fecha"
	HeaderTipo      = "Tipo"
	HeaderMonto     = "Monto"
	HeaderMotivo    = "Motivo"
	HeaderClientID  = "NIT Cliente"
	HeaderInvoiceNo = "Factura"

	// Row type markers used in the workbook's Tipo column.
	TipoIngreso = "Ingreso"
	TipoEgreso  = "Egreso"
	TipoTotal   = "Total"
)

// DefaultReferenceDenylist lists postings that must never be auto-invoiced,
// whatever their amount. Interest accruals from the collection account are
// the known offenders.
var DefaultReferenceDenylist = []string{
	"ABONO INTERESES AHORROS",
	"GRAVAMEN MOVIMIENTOS FINANCIEROS",
}

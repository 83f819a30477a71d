package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// IncomeRecord is one row of the money-received ledger for a reseller account.
// Amount and reference fields are immutable after ingestion; only ClientID
// (manual assignment) and InvoiceNumber (write-back) change afterwards.
type IncomeRecord struct {
	IncomeID        string    `json:"income_id"`
	Account         string    `json:"account"`
	ClientID        string    `json:"client_id"`
	InvoiceNumber   string    `json:"invoice_number"`
	GrossAmount     float64   `json:"gross_amount"`
	ReferenceText   string    `json:"reference_text"`
	SourcePartition string    `json:"source_partition"`
	Fecha           time.Time `json:"fecha"`
	UploadedAt      time.Time `json:"uploaded_at"`
}

// ClientBillingProfile carries everything needed to create the counterpart
// customer in the invoicing authority.
type ClientBillingProfile struct {
	Identification string `json:"identification"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Address        string `json:"address"`
	CityCode       string `json:"city_code"`
	StateCode      string `json:"state_code"`
	CountryCode    string `json:"country_code"`
	Phone          string `json:"phone"`
	Email          string `json:"email"`
}

// SplitPolicy holds the financial split factors for one account.
type SplitPolicy struct {
	PassThroughFactor decimal.Decimal // f1, divides gross into the untaxed base
	CommissionRate    decimal.Decimal // f2, applied to the base
	TaxRate           decimal.Decimal // f3, applied to the commission only
}

// Split is the three-way breakdown of a gross collected amount.
// Each part is already rounded to 2 decimal places.
type Split struct {
	Base           decimal.Decimal `json:"base"`
	CommissionBase decimal.Decimal `json:"commission_base"`
	Tax            decimal.Decimal `json:"tax"`
}

// Total is the amount invoiced and paid: the literal sum of the rounded
// parts, which may differ from the original gross by a few hundredths.
func (s Split) Total() decimal.Decimal {
	return s.Base.Add(s.CommissionBase).Add(s.Tax)
}

// AccountConfig is the per-account billing configuration loaded from the
// account_billing_config table.
type AccountConfig struct {
	Account        string
	DocumentTypeID int64
	SellerID       int64
	PaymentMeansID int64
	TaxID          int64
	BaseItemCode   string
	FeeItemCode    string
	Observations   string
	NumberCeiling  int64
	AccessKey      string
	AutoRun        bool
	Split          SplitPolicy
}

// InvoiceDraft is what the orchestrator asks the authority to issue:
// the computed line items plus the per-account identifiers.
type InvoiceDraft struct {
	Number         int64
	Date           time.Time
	CustomerID     string
	DocumentTypeID int64
	SellerID       int64
	PaymentMeansID int64
	TaxID          int64
	BaseItemCode   string
	FeeItemCode    string
	Split          Split
	Observations   string
}

// IssueStatus classifies the authority's answer to a create-invoice call.
// Conflict (number already taken) is the only retryable rejection; the
// allocator advances its candidate for conflicts and for accepts, never for
// the other two.
type IssueStatus int

const (
	IssueAccepted IssueStatus = iota
	IssueConflict
	IssueRejected
	IssueTransportError
)

func (s IssueStatus) String() string {
	switch s {
	case IssueAccepted:
		return "accepted"
	case IssueConflict:
		return "conflict"
	case IssueRejected:
		return "rejected"
	case IssueTransportError:
		return "transport_error"
	}
	return "unknown"
}

// IssueResult is the tagged outcome of one create-invoice attempt.
type IssueResult struct {
	Status     IssueStatus
	InvoiceRef string // authority-side id when accepted
	Reason     string // human-readable detail otherwise
}

// InvoicePage is one page of the authority's invoice listing, used only to
// seed the numbering allocator.
type InvoicePage struct {
	Numbers []int64
	HasMore bool
}

// Allocation pairs one income record with the invoice number that was
// finally committed (or the failure that stopped it).
type Allocation struct {
	RequestedNumber int64
	Attempts        int
	Result          IssueResult
}

// Assignment is an accepted (income, number) pairing destined for
// write-back into the source ledger partition.
type Assignment struct {
	IncomeID        string
	SourcePartition string
	InvoiceNumber   string
}

// FailureCategory buckets per-record failures for the run report and the
// audit log.
type FailureCategory string

const (
	FailureValidation FailureCategory = "validation"
	FailureCollision  FailureCategory = "collision_exhausted"
	FailureTransport  FailureCategory = "transport"
	FailureRejected   FailureCategory = "rejected"
)

// RecordFailure is one skipped income record within a run.
type RecordFailure struct {
	IncomeID string          `json:"income_id"`
	Category FailureCategory `json:"category"`
	Reason   string          `json:"reason"`
	At       time.Time       `json:"at"`
}

// RunReport summarizes one billing run.
type RunReport struct {
	RunID       string          `json:"run_id"`
	Account     string          `json:"account"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
	Succeeded   int             `json:"succeeded"`
	Failed      int             `json:"failed"`
	Aborted     bool            `json:"aborted"`
	AbortReason string          `json:"abort_reason,omitempty"`
	Assignments []Assignment    `json:"assignments"`
	Failures    []RecordFailure `json:"failures"`
}

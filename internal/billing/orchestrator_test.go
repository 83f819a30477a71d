package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	records      []IncomeRecord
	writeBacks   map[string][]string
	writeBackErr error
}

func newMemStore(records ...IncomeRecord) *memStore {
	return &memStore{records: records, writeBacks: make(map[string][]string)}
}

func (m *memStore) ListByAccount(ctx context.Context, account string) ([]IncomeRecord, error) {
	return m.records, nil
}

func (m *memStore) SetInvoiceNumber(ctx context.Context, incomeID, invoiceNumber string) error {
	if m.writeBackErr != nil {
		return m.writeBackErr
	}
	m.writeBacks[incomeID] = append(m.writeBacks[incomeID], invoiceNumber)
	return nil
}

type memProfiles struct {
	profiles map[string]ClientBillingProfile
}

func (m *memProfiles) ProfileByIdentification(ctx context.Context, identification string) (ClientBillingProfile, error) {
	p, ok := m.profiles[identification]
	if !ok {
		return ClientBillingProfile{}, ErrProfileNotFound
	}
	return p, nil
}

type fakeAuthority struct {
	customers         map[string]bool
	createCustomerErr error
	created           []string
	pages             []InvoicePage
	issue             func(draft InvoiceDraft) IssueResult
	issued            []InvoiceDraft
}

func (f *fakeAuthority) FindCustomer(ctx context.Context, identification string) (bool, error) {
	return f.customers[identification], nil
}

func (f *fakeAuthority) CreateCustomer(ctx context.Context, profile ClientBillingProfile) error {
	if f.createCustomerErr != nil {
		return f.createCustomerErr
	}
	f.created = append(f.created, profile.Identification)
	f.customers[profile.Identification] = true
	return nil
}

func (f *fakeAuthority) CreateInvoice(ctx context.Context, draft InvoiceDraft) IssueResult {
	f.issued = append(f.issued, draft)
	if f.issue != nil {
		return f.issue(draft)
	}
	return IssueResult{Status: IssueAccepted}
}

func (f *fakeAuthority) ListInvoices(ctx context.Context, page, pageSize int) (InvoicePage, error) {
	if page-1 < len(f.pages) {
		return f.pages[page-1], nil
	}
	return InvoicePage{}, nil
}

type memSink struct {
	runs     []RunReport
	failures map[string][]RecordFailure
}

func newMemSink() *memSink {
	return &memSink{failures: make(map[string][]RecordFailure)}
}

func (m *memSink) SaveRun(ctx context.Context, report RunReport) error {
	m.runs = append(m.runs, report)
	return nil
}

func (m *memSink) SaveFailures(ctx context.Context, runID string, failures []RecordFailure) error {
	m.failures[runID] = append(m.failures[runID], failures...)
	return nil
}

func testOrchestrator(store *memStore, auth *fakeAuthority, sink *memSink) *Orchestrator {
	return &Orchestrator{
		Store: store,
		Profiles: &memProfiles{profiles: map[string]ClientBillingProfile{
			"900123456": {Identification: "900123456", FirstName: "Nathalia", LastName: "Ospina"},
			"800555111": {Identification: "800555111", FirstName: "Jimmy", LastName: "Cortes"},
		}},
		Authority: auth,
		Sink:      sink,
		Config: AccountConfig{
			Account:       "1633 - Nathalia Ospina",
			NumberCeiling: 100000,
			Observations:  "Recaudo mayoristas",
			Split:         DefaultSplitPolicy(),
		},
		Denylist:  NewDenylist([]string{"ABONO INTERESES AHORROS"}),
		Allocator: AllocatorConfig{Ceiling: 100000},
		Now:       func() time.Time { return time.Date(2025, 7, 7, 18, 0, 0, 0, time.UTC) },
	}
}

func TestRunEndToEnd(t *testing.T) {
	store := newMemStore(IncomeRecord{
		IncomeID:        "A1",
		Account:         "1633 - Nathalia Ospina",
		ClientID:        "900123456",
		GrossAmount:     119.00,
		SourcePartition: "1633 - Nathalia Ospina",
	})
	auth := &fakeAuthority{
		customers: map[string]bool{},
		pages:     []InvoicePage{{Numbers: []int64{500}}},
	}
	sink := newMemSink()

	report, err := testOrchestrator(store, auth, sink).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 0, report.Failed)
	assert.False(t, report.Aborted)

	// The missing customer was created before issuing.
	assert.Equal(t, []string{"900123456"}, auth.created)

	require.Len(t, auth.issued, 1)
	draft := auth.issued[0]
	assert.Equal(t, int64(501), draft.Number)
	assert.True(t, draft.Split.Base.Equal(decimal.RequireFromString("117.24")))
	assert.True(t, draft.Split.CommissionBase.Equal(decimal.RequireFromString("1.48")))
	assert.True(t, draft.Split.Tax.Equal(decimal.RequireFromString("0.28")))

	// Write-back happened exactly once, into the record's own partition.
	assert.Equal(t, []string{"501"}, store.writeBacks["A1"])
	require.Len(t, report.Assignments, 1)
	assert.Equal(t, Assignment{
		IncomeID:        "A1",
		SourcePartition: "1633 - Nathalia Ospina",
		InvoiceNumber:   "501",
	}, report.Assignments[0])

	require.Len(t, sink.runs, 1)
	assert.Equal(t, report.RunID, sink.runs[0].RunID)
}

func TestRunSkipsRecordWhenCustomerCreationRejected(t *testing.T) {
	store := newMemStore(
		IncomeRecord{IncomeID: "A1", ClientID: "999999999", GrossAmount: 10}, // no profile
		IncomeRecord{IncomeID: "A2", ClientID: "900123456", GrossAmount: 20},
	)
	auth := &fakeAuthority{customers: map[string]bool{"900123456": true}}
	sink := newMemSink()

	report, err := testOrchestrator(store, auth, sink).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "A1", report.Failures[0].IncomeID)
	assert.Equal(t, FailureValidation, report.Failures[0].Category)
	assert.Empty(t, store.writeBacks["A1"])
	assert.Equal(t, []string{"1"}, store.writeBacks["A2"])
	assert.Equal(t, report.Failures, sink.failures[report.RunID])
}

func TestRunTransportFailureDoesNotBurnNumbers(t *testing.T) {
	store := newMemStore(
		IncomeRecord{IncomeID: "A1", ClientID: "900123456", GrossAmount: 10},
		IncomeRecord{IncomeID: "A2", ClientID: "800555111", GrossAmount: 20},
	)
	auth := &fakeAuthority{
		customers: map[string]bool{"900123456": true, "800555111": true},
		pages:     []InvoicePage{{Numbers: []int64{700}}},
	}
	auth.issue = func(draft InvoiceDraft) IssueResult {
		if draft.CustomerID == "900123456" {
			return IssueResult{Status: IssueTransportError, Reason: "timeout"}
		}
		return IssueResult{Status: IssueAccepted}
	}
	sink := newMemSink()

	report, err := testOrchestrator(store, auth, sink).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, FailureTransport, report.Failures[0].Category)
	// A2 receives the number A1's transport failure left unconsumed.
	assert.Equal(t, []string{"701"}, store.writeBacks["A2"])
}

func TestRunAbortsOnCeilingAndKeepsCompletedRecords(t *testing.T) {
	store := newMemStore(
		IncomeRecord{IncomeID: "A1", ClientID: "900123456", GrossAmount: 10},
		IncomeRecord{IncomeID: "A2", ClientID: "900123456", GrossAmount: 20},
	)
	auth := &fakeAuthority{
		customers: map[string]bool{"900123456": true},
		pages:     []InvoicePage{{Numbers: []int64{99998}}},
	}
	sink := newMemSink()
	orch := testOrchestrator(store, auth, sink)
	orch.Allocator.Ceiling = 100000

	report, err := orch.Run(context.Background())
	require.ErrorIs(t, err, ErrNumberCeiling)

	// A1 got 99999 (the last legal number) and stays committed; the run
	// aborted before A2 was touched.
	assert.Equal(t, 1, report.Succeeded)
	assert.True(t, report.Aborted)
	assert.Equal(t, []string{"99999"}, store.writeBacks["A1"])
	assert.Empty(t, store.writeBacks["A2"])
	require.Len(t, sink.runs, 1, "aborted runs are still persisted")
}

func TestRunWriteBackFailureIsSurfacedNotSwallowed(t *testing.T) {
	store := newMemStore(IncomeRecord{IncomeID: "A1", ClientID: "900123456", GrossAmount: 10})
	store.writeBackErr = errors.New("ledger unavailable")
	auth := &fakeAuthority{customers: map[string]bool{"900123456": true}}
	sink := newMemSink()

	report, err := testOrchestrator(store, auth, sink).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.Succeeded)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, FailureTransport, report.Failures[0].Category)
	assert.Contains(t, report.Failures[0].Reason, "write-back failed")
}

package billing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"

	"ConciliaMayorista/internal/logger"
)

// IncomeStore is the ledger boundary the orchestrator depends on. The
// write-back is update-by-key and idempotent: setting a number that is
// already present for that income id is a safe no-op.
type IncomeStore interface {
	ListByAccount(ctx context.Context, account string) ([]IncomeRecord, error)
	SetInvoiceNumber(ctx context.Context, incomeID, invoiceNumber string) error
}

// ErrProfileNotFound is returned by a ProfileSource when no billing profile
// exists for an identification.
var ErrProfileNotFound = errors.New("client billing profile not found")

// ProfileSource is the client-registry boundary.
type ProfileSource interface {
	ProfileByIdentification(ctx context.Context, identification string) (ClientBillingProfile, error)
}

// Authority is the full invoicing-authority surface one run consumes.
type Authority interface {
	Issuer
	FindCustomer(ctx context.Context, identification string) (bool, error)
	CreateCustomer(ctx context.Context, profile ClientBillingProfile) error
}

// RunSink persists run summaries and per-record failures for the report
// endpoints. Sink errors are logged, never allowed to fail a run.
type RunSink interface {
	SaveRun(ctx context.Context, report RunReport) error
	SaveFailures(ctx context.Context, runID string, failures []RecordFailure) error
}

// Orchestrator drives one end-to-end billing pass for an account:
// select eligible incomes, ensure the customer exists at the authority,
// split the gross amount, allocate a number, issue the invoice and write
// the accepted number back into the ledger. Records are processed strictly
// one at a time; the allocator's sequence state has no concurrency
// protection and must not need any.
type Orchestrator struct {
	Store     IncomeStore
	Profiles  ProfileSource
	Authority Authority
	Sink      RunSink
	Config    AccountConfig
	Denylist  Denylist
	Allocator AllocatorConfig
	Now       func() time.Time
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Run executes one billing run. Per-record failures are captured in the
// report and the audit log; only a numbering-ceiling breach aborts the run,
// leaving already-completed records committed. The returned error is non-nil
// only when the run could not start (ledger or seeding unavailable) or was
// aborted on the ceiling.
func (o *Orchestrator) Run(ctx context.Context) (RunReport, error) {
	report := RunReport{
		RunID:     uuid.New().String(),
		Account:   o.Config.Account,
		StartedAt: o.now(),
	}
	o.audit(fmt.Sprintf("[Billing] run %s started for account %s", report.RunID, report.Account))

	records, err := o.Store.ListByAccount(ctx, o.Config.Account)
	if err != nil {
		return report, fmt.Errorf("failed to load income records for %s: %w", o.Config.Account, err)
	}
	eligible := EligibleForInvoicing(records, o.Denylist)
	o.audit(fmt.Sprintf("[Billing] run %s: %d of %d records eligible", report.RunID, len(eligible), len(records)))

	alloc := NewAllocator(o.Authority, o.Allocator)
	if err := alloc.Seed(ctx); err != nil {
		return report, err
	}
	o.audit(fmt.Sprintf("[Billing] run %s: allocator seeded, next candidate %d", report.RunID, alloc.Next()))

	var abortErr error
	for _, rec := range eligible {
		assignment, failure, fatal := o.processRecord(ctx, rec, alloc)
		if fatal != nil {
			report.Aborted = true
			report.AbortReason = fatal.Error()
			abortErr = fatal
			o.audit(fmt.Sprintf("[Billing][FATAL] run %s aborted at income %s: %v", report.RunID, rec.IncomeID, fatal))
			break
		}
		if failure != nil {
			report.Failed++
			report.Failures = append(report.Failures, *failure)
			o.logFailure(report.RunID, *failure)
			continue
		}
		report.Succeeded++
		report.Assignments = append(report.Assignments, *assignment)
	}

	report.FinishedAt = o.now()
	o.persist(ctx, report)
	o.audit(fmt.Sprintf("[Billing] run %s finished: %d succeeded, %d failed, aborted=%v",
		report.RunID, report.Succeeded, report.Failed, report.Aborted))
	return report, abortErr
}

// processRecord walks one income record through the per-record state
// machine (Selected → CustomerEnsured → Split → NumberAllocated → Issued →
// WrittenBack). Exactly one of the three returns is set: an assignment on
// success, a failure for skippable problems, or a fatal error that must
// abort the run.
func (o *Orchestrator) processRecord(ctx context.Context, rec IncomeRecord, alloc *Allocator) (*Assignment, *RecordFailure, error) {
	profile, err := o.Profiles.ProfileByIdentification(ctx, rec.ClientID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return nil, o.failure(rec, FailureValidation, fmt.Sprintf("no billing profile for client %s", rec.ClientID)), nil
		}
		return nil, o.failure(rec, FailureTransport, fmt.Sprintf("registry lookup failed: %v", err)), nil
	}

	exists, err := o.Authority.FindCustomer(ctx, rec.ClientID)
	if err != nil {
		return nil, o.failure(rec, FailureTransport, fmt.Sprintf("customer lookup failed: %v", err)), nil
	}
	if !exists {
		if err := o.Authority.CreateCustomer(ctx, profile); err != nil {
			return nil, o.failure(rec, FailureValidation, fmt.Sprintf("customer creation rejected: %v", err)), nil
		}
	}

	split := ComputeSplit(rec.GrossAmount, o.Config.Split)
	draft := InvoiceDraft{
		Date:           o.now(),
		CustomerID:     rec.ClientID,
		DocumentTypeID: o.Config.DocumentTypeID,
		SellerID:       o.Config.SellerID,
		PaymentMeansID: o.Config.PaymentMeansID,
		TaxID:          o.Config.TaxID,
		BaseItemCode:   o.Config.BaseItemCode,
		FeeItemCode:    o.Config.FeeItemCode,
		Split:          split,
		Observations:   o.Config.Observations,
	}

	allocation, err := alloc.AllocateAndCommit(ctx, draft)
	if err != nil {
		// Ceiling breaches (and a failed lazy seed) are fatal for the run.
		return nil, nil, err
	}

	switch allocation.Result.Status {
	case IssueAccepted:
		number := strconv.FormatInt(allocation.RequestedNumber, 10)
		if err := o.Store.SetInvoiceNumber(ctx, rec.IncomeID, number); err != nil {
			// The authority holds the invoice but the ledger refused the
			// write-back; surface it for manual follow-up rather than
			// pretending the record is still open.
			return nil, o.failure(rec, FailureTransport,
				fmt.Sprintf("invoice %s issued but write-back failed: %v", number, err)), nil
		}
		return &Assignment{
			IncomeID:        rec.IncomeID,
			SourcePartition: rec.SourcePartition,
			InvoiceNumber:   number,
		}, nil, nil
	case IssueConflict:
		return nil, o.failure(rec, FailureCollision, allocation.Result.Reason), nil
	case IssueTransportError:
		return nil, o.failure(rec, FailureTransport, allocation.Result.Reason), nil
	default:
		return nil, o.failure(rec, FailureRejected, allocation.Result.Reason), nil
	}
}

func (o *Orchestrator) failure(rec IncomeRecord, category FailureCategory, reason string) *RecordFailure {
	return &RecordFailure{
		IncomeID: rec.IncomeID,
		Category: category,
		Reason:   reason,
		At:       o.now(),
	}
}

func (o *Orchestrator) persist(ctx context.Context, report RunReport) {
	if o.Sink == nil {
		return
	}
	if err := o.Sink.SaveRun(ctx, report); err != nil {
		o.audit(fmt.Sprintf("[Billing][ERROR] run %s: failed to persist run summary: %v", report.RunID, err))
	}
	if len(report.Failures) > 0 {
		if err := o.Sink.SaveFailures(ctx, report.RunID, report.Failures); err != nil {
			o.audit(fmt.Sprintf("[Billing][ERROR] run %s: failed to persist failures: %v", report.RunID, err))
		}
	}
}

// logFailure writes the append-only, human-readable audit line every skipped
// record gets, whatever its category.
func (o *Orchestrator) logFailure(runID string, f RecordFailure) {
	o.audit(fmt.Sprintf("[Billing][SKIP] run %s income %s (%s): %s", runID, f.IncomeID, f.Category, f.Reason))
}

func (o *Orchestrator) audit(msg string) {
	if logger.GlobalLogger != nil {
		logger.GlobalLogger.LogAudit(msg)
		return
	}
	log.Println(msg)
}

package billing

import (
	"context"
	"errors"
	"fmt"
)

// ErrNumberCeiling signals that the next candidate number would exceed the
// legal numbering ceiling. This is a regulatory limit, not a retryable
// condition: the whole run must abort.
var ErrNumberCeiling = errors.New("invoice number ceiling reached")

// Issuer is the slice of the invoicing authority the allocator talks to.
type Issuer interface {
	CreateInvoice(ctx context.Context, draft InvoiceDraft) IssueResult
	ListInvoices(ctx context.Context, page, pageSize int) (InvoicePage, error)
}

// AllocatorConfig bounds the allocator's behaviour.
type AllocatorConfig struct {
	Ceiling      int64 // highest number the authorization allows
	MaxAttempts  int   // create-invoice attempts per income record
	SeedPageSize int
	SeedPatience int // consecutive pages without a higher number before the scan stops
}

// Allocator hands out a strictly increasing sequence of invoice numbers
// reconciled against an authority other writers also use. It is not safe
// for concurrent use; billing runs are strictly sequential by design.
type Allocator struct {
	issuer Issuer
	cfg    AllocatorConfig
	next   int64
	seeded bool
}

func NewAllocator(issuer Issuer, cfg AllocatorConfig) *Allocator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 25
	}
	if cfg.SeedPageSize <= 0 {
		cfg.SeedPageSize = 100
	}
	if cfg.SeedPatience <= 0 {
		cfg.SeedPatience = 3
	}
	return &Allocator{issuer: issuer, cfg: cfg}
}

// Seed derives the starting candidate from the authority's own history.
// The listing is not guaranteed to surface the highest number first, so the
// scan keeps paging until SeedPatience consecutive pages fail to improve on
// the maximum seen so far.
func (a *Allocator) Seed(ctx context.Context) error {
	var max int64
	noImprovement := 0
	for page := 1; ; page++ {
		p, err := a.issuer.ListInvoices(ctx, page, a.cfg.SeedPageSize)
		if err != nil {
			return fmt.Errorf("failed to scan authority invoices for seeding: %w", err)
		}
		improved := false
		for _, n := range p.Numbers {
			if n > max {
				max = n
				improved = true
			}
		}
		if improved {
			noImprovement = 0
		} else {
			noImprovement++
		}
		if !p.HasMore || noImprovement >= a.cfg.SeedPatience {
			break
		}
	}
	a.next = max + 1
	a.seeded = true
	return nil
}

// Next reports the candidate the next allocation will propose.
func (a *Allocator) Next() int64 {
	return a.next
}

// AllocateAndCommit proposes the current candidate for the given draft and
// submits it to the authority, walking past numbers other writers already
// took. The candidate advances on accept and on conflict, never on an
// unrelated rejection or a transport error; burning sequence numbers on
// failures that have nothing to do with the number would open gaps.
//
// A ceiling breach returns ErrNumberCeiling before the authority is
// contacted; everything else comes back inside the Allocation.
func (a *Allocator) AllocateAndCommit(ctx context.Context, draft InvoiceDraft) (Allocation, error) {
	if !a.seeded {
		if err := a.Seed(ctx); err != nil {
			return Allocation{}, err
		}
	}

	alloc := Allocation{}
	for attempt := 1; attempt <= a.cfg.MaxAttempts; attempt++ {
		number := a.next
		// Reaching the ceiling means the authorized range is exhausted:
		// ceiling-1 is the last number this engine will ever propose.
		if a.cfg.Ceiling > 0 && number >= a.cfg.Ceiling {
			return alloc, fmt.Errorf("%w: candidate %d reaches ceiling %d", ErrNumberCeiling, number, a.cfg.Ceiling)
		}

		draft.Number = number
		alloc.RequestedNumber = number
		alloc.Attempts = attempt
		alloc.Result = a.issuer.CreateInvoice(ctx, draft)

		switch alloc.Result.Status {
		case IssueAccepted:
			a.next = number + 1
			return alloc, nil
		case IssueConflict:
			// Another writer got there first; step over it and retry.
			a.next = number + 1
			continue
		default:
			return alloc, nil
		}
	}

	alloc.Result = IssueResult{
		Status: IssueConflict,
		Reason: fmt.Sprintf("gave up after %d consecutive number conflicts", a.cfg.MaxAttempts),
	}
	return alloc, nil
}

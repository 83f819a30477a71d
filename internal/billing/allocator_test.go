package billing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedIssuer replays canned authority answers and records every number
// the allocator proposes.
type scriptedIssuer struct {
	results   []IssueResult
	proposed  []int64
	pages     []InvoicePage
	listCalls int
}

func (s *scriptedIssuer) CreateInvoice(ctx context.Context, draft InvoiceDraft) IssueResult {
	s.proposed = append(s.proposed, draft.Number)
	if len(s.results) == 0 {
		return IssueResult{Status: IssueAccepted}
	}
	r := s.results[0]
	s.results = s.results[1:]
	return r
}

func (s *scriptedIssuer) ListInvoices(ctx context.Context, page, pageSize int) (InvoicePage, error) {
	s.listCalls++
	if page-1 < len(s.pages) {
		return s.pages[page-1], nil
	}
	return InvoicePage{}, nil
}

func TestAllocatorAdvancesPastCollisions(t *testing.T) {
	issuer := &scriptedIssuer{
		pages: []InvoicePage{{Numbers: []int64{498, 500, 499}}},
		results: []IssueResult{
			{Status: IssueConflict, Reason: "already exists"},
			{Status: IssueConflict, Reason: "already exists"},
			{Status: IssueAccepted},
		},
	}
	alloc := NewAllocator(issuer, AllocatorConfig{Ceiling: 1000})
	require.NoError(t, alloc.Seed(context.Background()))
	require.Equal(t, int64(501), alloc.Next())

	got, err := alloc.AllocateAndCommit(context.Background(), InvoiceDraft{})
	require.NoError(t, err)
	assert.Equal(t, IssueAccepted, got.Result.Status)
	assert.Equal(t, int64(503), got.RequestedNumber)
	assert.Equal(t, []int64{501, 502, 503}, issuer.proposed)

	// The next record starts right after the accepted number; nothing is
	// reused within the run.
	assert.Equal(t, int64(504), alloc.Next())
	got, err = alloc.AllocateAndCommit(context.Background(), InvoiceDraft{})
	require.NoError(t, err)
	assert.Equal(t, int64(504), got.RequestedNumber)
}

func TestAllocatorDoesNotBurnNumbersOnUnrelatedFailures(t *testing.T) {
	for _, status := range []IssueStatus{IssueRejected, IssueTransportError} {
		issuer := &scriptedIssuer{
			pages:   []InvoicePage{{Numbers: []int64{10}}},
			results: []IssueResult{{Status: status, Reason: "boom"}},
		}
		alloc := NewAllocator(issuer, AllocatorConfig{Ceiling: 1000})
		require.NoError(t, alloc.Seed(context.Background()))

		got, err := alloc.AllocateAndCommit(context.Background(), InvoiceDraft{})
		require.NoError(t, err)
		assert.Equal(t, status, got.Result.Status)
		assert.Equal(t, 1, got.Attempts)
		// An unrelated failure must leave the candidate untouched.
		assert.Equal(t, int64(11), alloc.Next())
	}
}

func TestAllocatorCeilingIsFatalBeforeContactingAuthority(t *testing.T) {
	issuer := &scriptedIssuer{
		pages: []InvoicePage{{Numbers: []int64{999}}}, // ceiling - 1
	}
	alloc := NewAllocator(issuer, AllocatorConfig{Ceiling: 1000})
	require.NoError(t, alloc.Seed(context.Background()))
	require.Equal(t, int64(1000), alloc.Next())

	_, err := alloc.AllocateAndCommit(context.Background(), InvoiceDraft{})
	require.ErrorIs(t, err, ErrNumberCeiling)
	assert.Empty(t, issuer.proposed, "the ceiling proposal must never reach the authority")
}

func TestAllocatorGivesUpAfterRetryCap(t *testing.T) {
	issuer := &scriptedIssuer{
		pages: []InvoicePage{{Numbers: []int64{100}}},
		results: []IssueResult{
			{Status: IssueConflict}, {Status: IssueConflict}, {Status: IssueConflict},
		},
	}
	alloc := NewAllocator(issuer, AllocatorConfig{Ceiling: 10000, MaxAttempts: 3})
	require.NoError(t, alloc.Seed(context.Background()))

	got, err := alloc.AllocateAndCommit(context.Background(), InvoiceDraft{})
	require.NoError(t, err)
	assert.Equal(t, IssueConflict, got.Result.Status)
	assert.Contains(t, got.Result.Reason, "gave up after 3")
	assert.Equal(t, []int64{101, 102, 103}, issuer.proposed)
}

func TestAllocatorSeedScansDeepPages(t *testing.T) {
	// The highest number hides on a later page; the scan only stops after
	// SeedPatience consecutive pages without improvement.
	issuer := &scriptedIssuer{
		pages: []InvoicePage{
			{Numbers: []int64{120, 95}, HasMore: true},
			{Numbers: []int64{80}, HasMore: true},
			{Numbers: []int64{300, 61}, HasMore: true},
			{Numbers: []int64{12}, HasMore: true},
			{Numbers: []int64{9}, HasMore: true},
			{Numbers: []int64{3}, HasMore: true},
		},
	}
	alloc := NewAllocator(issuer, AllocatorConfig{Ceiling: 10000, SeedPatience: 2})
	require.NoError(t, alloc.Seed(context.Background()))
	assert.Equal(t, int64(301), alloc.Next())
	assert.Equal(t, 5, issuer.listCalls, "scan stops two pages after the last improvement")
}

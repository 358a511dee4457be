package loan_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/equipment-loan/loan"
)

// =============================================================================
// PRECEDENCE TESTS
// =============================================================================

func TestResolveStatus_Idempotent(t *testing.T) {
	l := borrowedLoan()
	l.Approvals["Globex"] = loan.Approval{Approved: no(), RejectionReason: "no budget"}

	first := loan.ResolveStatus(l)
	second := loan.ResolveStatus(l)

	assert.Equal(t, first, second)
}

func TestResolveStatus_OverrideWins(t *testing.T) {
	// GIVEN: Approvals that alone would derive APPROVED
	// WHEN: loanStatus says REJECTED
	// THEN: The override decides
	l := approvedLoan()
	l.LoanStatus = "REJECTED"

	res := loan.ResolveStatus(l)

	assert.Equal(t, loan.StatusRejected, res.Status)
	assert.Equal(t, loan.RuleOverride, res.Rule)
	require.Len(t, res.Trace, 1)
	assert.True(t, res.Trace[0].Decided)
}

func TestResolveStatus_OverrideTokensFold(t *testing.T) {
	cases := map[string]loan.Status{
		"pending":         loan.StatusPendingApproval,
		"PENDING":         loan.StatusPendingApproval,
		"Return-FollowUp": loan.StatusReturnFollowUp,
		" approved ":      loan.StatusApproved,
		"Draft":           loan.StatusDraft,
		"canceled":        loan.StatusCancelled,
	}
	for raw, want := range cases {
		l := approvedLoan()
		l.LoanStatus = raw
		assert.Equal(t, want, loan.ResolveStatus(l).Status, raw)
	}
}

func TestResolveStatus_UnknownOverrideIgnored(t *testing.T) {
	// GIVEN: A draft with a garbage override
	// WHEN: Resolving
	// THEN: The override is skipped with a warning and the draft rule decides
	l := approvedLoan()
	l.Approvals = nil
	l.IsDraft = true
	l.LoanStatus = "whatever"

	res := loan.ResolveStatus(l)

	assert.Equal(t, loan.StatusDraft, res.Status)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, loan.WarnUnknownToken, res.Warnings[0].Code)
	assert.Equal(t, "loanStatus", res.Warnings[0].Field)
}

func TestResolveStatus_WarehouseSubsumesApprovals(t *testing.T) {
	for _, raw := range []string{"borrowed", "Approved", "processed", "DIPINJAM"} {
		l := approvedLoan()
		l.WarehouseStatus = &loan.WarehouseStatus{Status: raw}

		res := loan.ResolveStatus(l)

		assert.Equal(t, loan.StatusBorrowed, res.Status, raw)
		assert.Equal(t, loan.RuleWarehouse, res.Rule, raw)
	}
}

func TestResolveStatus_WarehousePendingFallsThrough(t *testing.T) {
	l := approvedLoan()
	l.WarehouseStatus = &loan.WarehouseStatus{Status: "pending"}

	res := loan.ResolveStatus(l)

	assert.Equal(t, loan.StatusApproved, res.Status)
	assert.Equal(t, loan.RuleApprovalsComplete, res.Rule)
}

func TestResolveStatus_UnknownWarehousePassesThrough(t *testing.T) {
	l := approvedLoan()
	l.WarehouseStatus = &loan.WarehouseStatus{Status: "lost_in_transit"}

	res := loan.ResolveStatus(l)

	assert.Equal(t, loan.Status("lost_in_transit"), res.Status)
	assert.False(t, res.Status.IsCanonical())
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "warehouseStatus.status", res.Warnings[0].Field)
}

func TestResolveStatus_WarehouseRejected(t *testing.T) {
	// GIVEN: The warehouse refused the hand-out; a stray return entry exists
	// THEN: REJECTED, the return history is not consulted
	l := approvedLoan()
	l.WarehouseStatus = &loan.WarehouseStatus{Status: "rejected", RejectionReason: "out of stock"}
	l.ReturnRequests = []loan.ReturnRequest{{ID: "R-1", Status: loan.ReturnRequested}}

	res := loan.ResolveStatus(l)

	assert.Equal(t, loan.StatusRejected, res.Status)
	assert.Equal(t, loan.RuleWarehouse, res.Rule)
}

// =============================================================================
// APPROVAL TESTS
// =============================================================================

func TestResolveStatus_SingleRejectionDominates(t *testing.T) {
	// GIVEN: A approved, B rejected with a reason
	// WHEN: Resolving
	// THEN: REJECTED regardless of A
	l := approvedLoan()
	l.Approvals["Globex"] = loan.Approval{Approved: no(), RejectionReason: "damaged"}

	res := loan.ResolveStatus(l)

	assert.Equal(t, loan.StatusRejected, res.Status)
	assert.Equal(t, loan.RuleApprovalsRejected, res.Rule)
}

func TestResolveStatus_RejectionWithoutReasonStaysPending(t *testing.T) {
	l := approvedLoan()
	l.Approvals["Globex"] = loan.Approval{Approved: no()}

	res := loan.ResolveStatus(l)

	assert.Equal(t, loan.StatusPendingApproval, res.Status)
	assert.Equal(t, loan.RuleDefault, res.Rule)
	assert.Len(t, res.Trace, 8)
}

func TestResolveStatus_PartialApprovalIsPending(t *testing.T) {
	l := approvedLoan()
	l.Approvals["Globex"] = loan.Approval{}

	res := loan.ResolveStatus(l)

	assert.Equal(t, loan.StatusPendingApproval, res.Status)
	assert.NotEqual(t, loan.StatusPartiallyApproved, res.Status)
}

func TestResolveStatus_EmptyApprovals(t *testing.T) {
	l := approvedLoan()
	l.Approvals = map[string]loan.Approval{}

	res := loan.ResolveStatus(l)

	assert.Equal(t, loan.StatusPendingApproval, res.Status)
	assert.Equal(t, loan.RuleApprovalsEmpty, res.Rule)
}

func TestResolveStatus_Draft(t *testing.T) {
	l := &loan.Loan{ID: "L-9", IsDraft: true}
	assert.Equal(t, loan.StatusDraft, loan.ResolveStatus(l).Status)
}

func TestResolveStatus_Nil(t *testing.T) {
	res := loan.ResolveStatus(nil)

	assert.Equal(t, loan.StatusPendingApproval, res.Status)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, loan.WarnNilLoan, res.Warnings[0].Code)
}

// =============================================================================
// RETURN THREAD TESTS
// =============================================================================

func TestResolveStatus_LatestReturnEntryDecides(t *testing.T) {
	cases := map[loan.ReturnRequestStatus]loan.Status{
		loan.ReturnRequested: loan.StatusReturnRequested,
		loan.ReturnAccepted:  loan.StatusReturned,
		loan.ReturnFollowUp:  loan.StatusReturnFollowUp,
		loan.ReturnRejected:  loan.StatusReturnRejected,
		loan.ReturnCompleted: loan.StatusCompleted,
		"Follow-Up":          loan.StatusReturnFollowUp,
	}
	for entry, want := range cases {
		l := borrowedLoan()
		l.ReturnRequests = []loan.ReturnRequest{
			{ID: "R-0", Status: loan.ReturnRejected},
			{ID: "R-1", RootID: "R-0", Status: entry},
		}

		res := loan.ResolveStatus(l)

		assert.Equal(t, want, res.Status, string(entry))
		assert.Equal(t, loan.RuleReturnThread, res.Rule, string(entry))
	}
}

func TestResolveStatus_LegacyReturnSummaryWithoutHistory(t *testing.T) {
	l := borrowedLoan()
	l.ReturnStatus = &loan.ReturnStatus{Status: "accepted"}

	assert.Equal(t, loan.StatusReturned, loan.ResolveStatus(l).Status)
}

func TestResolveStatus_WarehouseMirroringReturnIsRepaired(t *testing.T) {
	// GIVEN: A legacy write copied the return rejection into warehouseStatus
	// WHEN: Resolving
	// THEN: previousStatus restores the hand-out and the return rejection shows
	l := approvedLoan()
	l.WarehouseStatus = &loan.WarehouseStatus{Status: "rejected"}
	l.ReturnStatus = &loan.ReturnStatus{Status: "rejected", PreviousStatus: "borrowed"}

	res := loan.ResolveStatus(l)

	assert.Equal(t, loan.StatusReturnRejected, res.Status)
	require.NotEmpty(t, res.Warnings)
	assert.Equal(t, loan.WarnStatusOverlap, res.Warnings[0].Code)
	// The input record is left untouched.
	assert.Equal(t, "rejected", l.WarehouseStatus.Status)
}

func TestNormalize_ReturnTokenInPreviousStatus(t *testing.T) {
	l := approvedLoan()
	l.WarehouseStatus = &loan.WarehouseStatus{Status: "completed"}
	l.ReturnStatus = &loan.ReturnStatus{Status: "completed", PreviousStatus: "accepted"}

	normalized, warnings := loan.Normalize(l)

	assert.Equal(t, "BORROWED", normalized.WarehouseStatus.Status)
	assert.Len(t, warnings, 1)
	assert.Equal(t, loan.StatusCompleted, loan.ResolveStatus(l).Status)
}

func TestResolveStatus_FromStoredJSON(t *testing.T) {
	raw := `{
		"id": "L-7",
		"borrower": "andi@example.com",
		"companies": ["ACME"],
		"isDraft": false,
		"returnDate": "2025-01-10",
		"approvals": {"ACME": {"approved": true, "approvedBy": "budi"}},
		"warehouseStatus": {"status": "Approved", "processedAt": "2025-01-01T08:00:00+07:00"},
		"returnRequest": [
			{"id": "R-1", "requestedBy": "andi", "status": "requested", "photoResults": [{"url": "x"}]}
		]
	}`
	var l loan.Loan
	require.NoError(t, json.Unmarshal([]byte(raw), &l))

	res := loan.ResolveStatus(&l)

	assert.Equal(t, loan.StatusReturnRequested, res.Status)
	assert.True(t, res.Status.IsCanonical())
}

package loan_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/equipment-loan/loan"
)

func processReturn(l *loan.Loan, outcome loan.ReturnRequestStatus, note string) error {
	_, err := loan.ProcessReturn(l, loan.ReturnDecision{
		Outcome: outcome,
		By:      "gudang",
		Note:    note,
		At:      wib(2025, time.January, 9, 14),
	})
	return err
}

// =============================================================================
// GATING TESTS
// =============================================================================

func TestReturn_ThreadGating(t *testing.T) {
	// GIVEN: A borrowed loan with no return history
	l := borrowedLoan()

	// WHEN: The warehouse tries to act
	// THEN: State conflict, nothing open
	assert.False(t, loan.CanProcessReturn(l))
	assert.ErrorIs(t, processReturn(l, loan.ReturnAccepted, ""), loan.ErrStateConflict)
	assert.ErrorIs(t, processReturn(l, loan.ReturnRejected, "scratched"), loan.ErrStateConflict)

	// WHEN: The borrower submits a return
	require.NoError(t, submitReturn(l, "R-1"))
	assert.True(t, loan.CanProcessReturn(l))
	assert.Equal(t, loan.StatusReturnRequested, loan.ResolveStatus(l).Status)

	// WHEN: The warehouse rejects it
	require.NoError(t, processReturn(l, loan.ReturnRejected, "scratched lens"))
	assert.False(t, loan.CanProcessReturn(l))
	assert.Equal(t, loan.StatusReturnRejected, loan.ResolveStatus(l).Status)

	// THEN: A second request may be submitted on the same thread
	require.NoError(t, submitReturn(l, "R-2"))
	require.Len(t, l.ReturnRequests, 2)
	assert.Equal(t, "R-1", l.ReturnRequests[1].RootID)
	assert.Equal(t, loan.ReturnRejected, l.ReturnRequests[0].Status)

	threads := loan.Threads(l)
	require.Len(t, threads, 1)
	assert.Len(t, threads[0].Entries, 2)
	assert.Equal(t, loan.StatusReturnRequested, threads[0].Latest)
}

func TestReturn_SubmitRequiresPhotos(t *testing.T) {
	l := borrowedLoan()

	_, err := loan.SubmitReturn(l, loan.ReturnSubmission{ID: "R-1", By: l.Borrower, Note: "here"})

	var verr *loan.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "photoResults", verr.Field)
	assert.Empty(t, l.ReturnRequests)
}

func TestReturn_SubmitWhileOpenConflicts(t *testing.T) {
	l := borrowedLoan()
	require.NoError(t, submitReturn(l, "R-1"))

	err := submitReturn(l, "R-2")

	assert.ErrorIs(t, err, loan.ErrStateConflict)
	assert.Len(t, l.ReturnRequests, 1)
}

func TestReturn_SubmitBeforeHandOutConflicts(t *testing.T) {
	l := approvedLoan()

	err := submitReturn(l, "R-1")

	var cerr *loan.StateConflictError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, loan.StatusApproved, cerr.Current)
}

func TestReturn_RejectAndFollowUpNeedNote(t *testing.T) {
	l := borrowedLoan()
	require.NoError(t, submitReturn(l, "R-1"))

	assert.ErrorIs(t, processReturn(l, loan.ReturnRejected, " "), loan.ErrValidation)
	assert.ErrorIs(t, processReturn(l, loan.ReturnFollowUp, ""), loan.ErrValidation)
	assert.ErrorIs(t, processReturn(l, loan.ReturnCompleted, "x"), loan.ErrValidation)
	assert.True(t, loan.CanProcessReturn(l))
}

// =============================================================================
// COMPLETION TESTS
// =============================================================================

func TestReturn_AcceptThenComplete(t *testing.T) {
	l := borrowedLoan()
	require.NoError(t, submitReturn(l, "R-1"))
	require.NoError(t, processReturn(l, loan.ReturnAccepted, ""))
	assert.Equal(t, loan.StatusReturned, loan.ResolveStatus(l).Status)

	accepted, _, ok := loan.LatestAcceptedReturn(l)
	require.True(t, ok)
	assert.Equal(t, "R-1", accepted.ID)

	entry, err := loan.CompleteReturn(l, loan.ReturnCompletion{By: "gudang", At: wib(2025, time.January, 10, 9)})
	require.NoError(t, err)

	assert.Equal(t, loan.ReturnCompleted, entry.Status)
	assert.Equal(t, loan.ReturnAccepted, entry.ProcessedStatus)
	assert.Equal(t, loan.StatusCompleted, loan.ResolveStatus(l).Status)
	_, _, ok = loan.LatestAcceptedReturn(l)
	assert.False(t, ok)
	// Accept and complete update the same entry.
	assert.Len(t, l.ReturnRequests, 1)
}

func TestReturn_FollowUpThenComplete(t *testing.T) {
	l := borrowedLoan()
	require.NoError(t, submitReturn(l, "R-1"))
	require.NoError(t, processReturn(l, loan.ReturnFollowUp, "charger missing"))
	assert.Equal(t, loan.StatusReturnFollowUp, loan.ResolveStatus(l).Status)

	_, err := loan.CompleteReturn(l, loan.ReturnCompletion{By: "gudang", Note: "charger received"})

	require.NoError(t, err)
	assert.Equal(t, loan.StatusCompleted, loan.ResolveStatus(l).Status)
}

func TestReturn_CompleteWithoutAcceptConflicts(t *testing.T) {
	l := borrowedLoan()
	require.NoError(t, submitReturn(l, "R-1"))

	_, err := loan.CompleteReturn(l, loan.ReturnCompletion{By: "gudang"})

	assert.ErrorIs(t, err, loan.ErrStateConflict)
}

// =============================================================================
// PROJECTION TESTS
// =============================================================================

func TestProjectReturnStatus_KeepsWarehouseAndFineFlags(t *testing.T) {
	// GIVEN: A paused fine and a rejected return
	l := borrowedLoan()
	l.ReturnStatus = &loan.ReturnStatus{FinePaused: true, FinePausedAt: day(2025, time.January, 12), FinePausedBy: "admin"}
	require.NoError(t, submitReturn(l, "R-1"))
	require.NoError(t, processReturn(l, loan.ReturnRejected, "dented"))

	// WHEN: Projecting the summary
	loan.ProjectReturnStatus(l)

	// THEN: Summary mirrors the entry, flags survive, warehouse untouched
	rs := l.ReturnStatus
	require.NotNil(t, rs)
	assert.Equal(t, "rejected", rs.Status)
	assert.Equal(t, "requested", rs.PreviousStatus)
	assert.Equal(t, "dented", rs.Note)
	assert.Equal(t, "gudang", rs.ProcessedBy)
	assert.True(t, rs.FinePaused)
	assert.Equal(t, "admin", rs.FinePausedBy)
	assert.Equal(t, "borrowed", l.WarehouseStatus.Status)
}

func TestProjectReturnStatus_FirstRequestRemembersHandOut(t *testing.T) {
	l := borrowedLoan()
	require.NoError(t, submitReturn(l, "R-1"))

	loan.ProjectReturnStatus(l)

	assert.Equal(t, "requested", l.ReturnStatus.Status)
	assert.Equal(t, "borrowed", l.ReturnStatus.PreviousStatus)
	assert.Len(t, l.ReturnStatus.PhotoResults, 1)
}

func TestProjectReturnStatus_NoHistoryLeavesSummary(t *testing.T) {
	l := borrowedLoan()
	l.ReturnStatus = &loan.ReturnStatus{Status: "accepted"}

	loan.ProjectReturnStatus(l)

	assert.Equal(t, "accepted", l.ReturnStatus.Status)
}

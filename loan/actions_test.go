package loan_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/equipment-loan/loan"
)

func draft(submit bool) loan.Draft {
	return loan.Draft{
		ID:         "L-1",
		Borrower:   "rina@example.com",
		Companies:  []string{"ACME", "Globex", "ACME", " "},
		OutDate:    day(2025, time.January, 1),
		ReturnDate: day(2025, time.January, 10),
		Product:    "Sony A7 III",
		Submit:     submit,
		At:         wib(2024, time.December, 30, 9),
	}
}

func TestNewLoan_Draft(t *testing.T) {
	l, err := loan.NewLoan(draft(false))

	require.NoError(t, err)
	assert.True(t, l.IsDraft)
	assert.Equal(t, []string{"ACME", "Globex"}, l.Companies)
	assert.Nil(t, l.Approvals)
	assert.Equal(t, loan.StatusDraft, loan.ResolveStatus(l).Status)
}

func TestNewLoan_SubmitPopulatesApprovals(t *testing.T) {
	l, err := loan.NewLoan(draft(true))

	require.NoError(t, err)
	assert.False(t, l.IsDraft)
	assert.Len(t, l.Approvals, 2)
	assert.Nil(t, l.Approvals["ACME"].Approved)
	assert.True(t, l.SubmittedAt.Valid())
	assert.Equal(t, loan.StatusPendingApproval, loan.ResolveStatus(l).Status)
}

func TestNewLoan_Validation(t *testing.T) {
	d := draft(true)
	d.Companies = nil
	_, err := loan.NewLoan(d)
	assert.ErrorIs(t, err, loan.ErrValidation)

	d = draft(false)
	d.ReturnDate = day(2024, time.December, 1)
	_, err = loan.NewLoan(d)
	assert.ErrorIs(t, err, loan.ErrValidation)

	d = draft(false)
	d.Borrower = ""
	_, err = loan.NewLoan(d)
	assert.ErrorIs(t, err, loan.ErrValidation)
}

func TestSubmit_OnlyDrafts(t *testing.T) {
	l, err := loan.NewLoan(draft(true))
	require.NoError(t, err)

	assert.ErrorIs(t, loan.Submit(l, time.Now()), loan.ErrStateConflict)
}

func TestDecideApproval_AllCompaniesMustApprove(t *testing.T) {
	// GIVEN: Two approving companies
	l, err := loan.NewLoan(draft(true))
	require.NoError(t, err)

	// WHEN: Only ACME approves
	require.NoError(t, loan.DecideApproval(l, loan.ApprovalDecision{Company: "ACME", Approve: true, By: "budi"}))
	// THEN: Still pending
	assert.Equal(t, loan.StatusPendingApproval, loan.ResolveStatus(l).Status)

	// WHEN: Globex approves too
	require.NoError(t, loan.DecideApproval(l, loan.ApprovalDecision{Company: "Globex", Approve: true, By: "sari"}))
	// THEN: Approved
	assert.Equal(t, loan.StatusApproved, loan.ResolveStatus(l).Status)
	assert.ErrorIs(t,
		loan.DecideApproval(l, loan.ApprovalDecision{Company: "Globex", Approve: false, By: "sari", Reason: "oops"}),
		loan.ErrStateConflict)
}

func TestDecideApproval_RejectionNeedsReason(t *testing.T) {
	l, err := loan.NewLoan(draft(true))
	require.NoError(t, err)

	err = loan.DecideApproval(l, loan.ApprovalDecision{Company: "ACME", Approve: false, By: "budi"})
	assert.ErrorIs(t, err, loan.ErrValidation)

	require.NoError(t, loan.DecideApproval(l, loan.ApprovalDecision{Company: "ACME", Approve: false, By: "budi", Reason: "no budget"}))
	assert.Equal(t, loan.StatusRejected, loan.ResolveStatus(l).Status)
	assert.Equal(t, "no budget", l.Approvals["ACME"].RejectionReason)
}

func TestDecideApproval_UnknownCompany(t *testing.T) {
	l, err := loan.NewLoan(draft(true))
	require.NoError(t, err)

	err = loan.DecideApproval(l, loan.ApprovalDecision{Company: "Initech", Approve: true, By: "x"})
	assert.ErrorIs(t, err, loan.ErrStateConflict)
}

func TestWarehouse_ProcessRequiresApproval(t *testing.T) {
	l, err := loan.NewLoan(draft(true))
	require.NoError(t, err)
	action := loan.WarehouseAction{By: "gudang"}

	assert.ErrorIs(t, loan.ProcessWarehouse(l, action), loan.ErrStateConflict)

	approved := approvedLoan()
	require.NoError(t, loan.ProcessWarehouse(approved, action))
	assert.Equal(t, loan.StatusBorrowed, loan.ResolveStatus(approved).Status)
	assert.ErrorIs(t, loan.ProcessWarehouse(approved, action), loan.ErrStateConflict)
}

func TestWarehouse_RejectNeedsReason(t *testing.T) {
	l := approvedLoan()

	assert.ErrorIs(t, loan.RejectWarehouse(l, loan.WarehouseAction{By: "gudang"}), loan.ErrValidation)
	require.NoError(t, loan.RejectWarehouse(l, loan.WarehouseAction{By: "gudang", Reason: "out of stock"}))
	assert.Equal(t, loan.StatusRejected, loan.ResolveStatus(l).Status)
}

func TestSetFineFlags_PauseAndResume(t *testing.T) {
	l := borrowedLoan()
	pause, resume := true, false
	at := wib(2025, time.January, 13, 9)

	require.NoError(t, loan.SetFineFlags(l, loan.FineFlags{FinePaused: &pause, By: "admin", At: at}))
	require.NotNil(t, l.ReturnStatus)
	assert.True(t, l.ReturnStatus.FinePaused)
	assert.True(t, l.ReturnStatus.FinePausedAt.Time.Equal(at))

	require.NoError(t, loan.SetFineFlags(l, loan.FineFlags{FinePaused: &resume, By: "admin", At: at.Add(time.Hour)}))
	assert.False(t, l.ReturnStatus.FinePaused)
	assert.False(t, l.ReturnStatus.FinePausedAt.Valid())
}

func TestSetFineFlags_Validation(t *testing.T) {
	waive := true
	assert.ErrorIs(t, loan.SetFineFlags(borrowedLoan(), loan.FineFlags{By: "admin"}), loan.ErrValidation)
	assert.ErrorIs(t, loan.SetFineFlags(approvedLoan(), loan.FineFlags{NoFine: &waive, By: "admin"}), loan.ErrStateConflict)
}

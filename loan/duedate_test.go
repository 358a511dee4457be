package loan_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/equipment-loan/generic"
	"github.com/warp/equipment-loan/loan"
)

func TestResolveDueDate_PendingExtensionIgnored(t *testing.T) {
	// GIVEN: Submitted 2025-01-10, approved extension to 01-20, pending to 01-25
	// WHEN: Resolving the due date
	// THEN: 2025-01-20 from the approved extension
	l := borrowedLoan()
	l.Extensions = []loan.ExtendRequest{
		{RequestedReturnDate: day(2025, time.January, 20), ApproveStatus: loan.DecisionApproved},
		{RequestedReturnDate: day(2025, time.January, 25), ApproveStatus: loan.DecisionPending},
	}

	due := loan.ResolveDueDate(l)

	assert.True(t, due.Date.Equal(day(2025, time.January, 20)))
	assert.Equal(t, loan.SourceExtension, due.Source)
	assert.Equal(t, 0, due.ExtensionIndex)
}

func TestResolveDueDate_NoExtensions(t *testing.T) {
	due := loan.ResolveDueDate(borrowedLoan())

	assert.True(t, due.Date.Equal(day(2025, time.January, 10)))
	assert.Equal(t, loan.SourceSubmitted, due.Source)
	assert.Equal(t, -1, due.ExtensionIndex)
}

func TestResolveDueDate_LatestApprovedWins(t *testing.T) {
	l := borrowedLoan()
	l.Extensions = []loan.ExtendRequest{
		{RequestedReturnDate: day(2025, time.January, 20), ApproveStatus: "Approved"},
		{RequestedReturnDate: day(2025, time.January, 15), ApproveStatus: "rejected"},
		{RequestedReturnDate: day(2025, time.January, 18), ApproveStatus: "disetujui"},
	}

	due := loan.ResolveDueDate(l)

	// Array order decides, not the later calendar date.
	assert.True(t, due.Date.Equal(day(2025, time.January, 18)))
	assert.Equal(t, 2, due.ExtensionIndex)
}

func TestResolveDueDate_RejectedOnly(t *testing.T) {
	l := borrowedLoan()
	l.Extensions = []loan.ExtendRequest{
		{RequestedReturnDate: day(2025, time.January, 20), ApproveStatus: "not approved"},
		{RequestedReturnDate: day(2025, time.January, 21), ApproveStatus: "Ditolak"},
	}

	due := loan.ResolveDueDate(l)

	assert.True(t, due.Date.Equal(day(2025, time.January, 10)))
	assert.Equal(t, loan.SourceSubmitted, due.Source)
}

func TestResolveDueDate_MalformedApprovedDateSkipped(t *testing.T) {
	l := borrowedLoan()
	l.Extensions = []loan.ExtendRequest{
		{RequestedReturnDate: day(2025, time.January, 20), ApproveStatus: loan.DecisionApproved},
		{RequestedReturnDate: generic.ParseTimePoint("next week"), ApproveStatus: loan.DecisionApproved},
	}

	due := loan.ResolveDueDate(l)

	assert.True(t, due.Date.Equal(day(2025, time.January, 20)))
	require.Len(t, due.Warnings, 1)
	assert.Equal(t, loan.WarnMalformedDate, due.Warnings[0].Code)
	assert.Equal(t, "next week", due.Warnings[0].Value)
}

func TestResolveDueDate_BooleanDecisionsFromJSON(t *testing.T) {
	raw := `{
		"id": "L-3",
		"returnDate": "2025-01-10",
		"extendStatus": [
			{"requestedReturnDate": "2025-01-15", "approveStatus": true},
			{"requestedReturnDate": "2025-01-30", "approveStatus": false},
			{"requestedReturnDate": "2025-02-05", "approveStatus": null}
		]
	}`
	var l loan.Loan
	require.NoError(t, json.Unmarshal([]byte(raw), &l))

	due := loan.ResolveDueDate(&l)

	assert.True(t, due.Date.Equal(day(2025, time.January, 15)))
	_, _, pending := loan.PendingExtension(&l)
	assert.True(t, pending)
}

func TestDecision_Kind(t *testing.T) {
	cases := map[loan.Decision]loan.DecisionKind{
		"":                loan.KindPending,
		"pending":         loan.KindPending,
		"approved":        loan.KindApproved,
		"APPROVED":        loan.KindApproved,
		"accepted":        loan.KindApproved,
		"OK":              loan.KindApproved,
		"Disetujui":       loan.KindApproved,
		"rejected":        loan.KindRejected,
		"unapproved":      loan.KindRejected,
		"not approved":    loan.KindRejected,
		"not-accepted":    loan.KindRejected,
		"belum disetujui": loan.KindRejected,
		"declined":        loan.KindRejected,
		"maybe":           loan.KindUnknown,
	}
	for raw, want := range cases {
		assert.Equal(t, want, raw.Kind(), string(raw))
	}
}

func TestDecision_JSON(t *testing.T) {
	var d loan.Decision
	require.NoError(t, json.Unmarshal([]byte("true"), &d))
	assert.Equal(t, loan.DecisionApproved, d)

	require.NoError(t, json.Unmarshal([]byte("null"), &d))
	assert.Equal(t, loan.DecisionPending, d)

	out, err := json.Marshal(loan.DecisionPending)
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}

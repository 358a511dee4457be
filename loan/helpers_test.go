package loan_test

import (
	"time"

	"github.com/warp/equipment-loan/generic"
	"github.com/warp/equipment-loan/loan"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func yes() *bool { b := true; return &b }
func no() *bool  { b := false; return &b }

func day(y int, m time.Month, d int) generic.TimePoint {
	return generic.NewTimePoint(y, m, d)
}

// wib builds an instant on the business clock.
func wib(y int, m time.Month, d, hour int) time.Time {
	return time.Date(y, m, d, hour, 0, 0, 0, loan.DefaultLocation)
}

func photos() []loan.PhotoResult {
	return []loan.PhotoResult{{URL: "https://files.example/return-1.jpg", Caption: "front"}}
}

// approvedLoan is submitted and approved by both companies, not handed out.
func approvedLoan() *loan.Loan {
	return &loan.Loan{
		ID:         "L-1",
		Borrower:   "rina@example.com",
		Companies:  []string{"ACME", "Globex"},
		OutDate:    day(2025, time.January, 1),
		ReturnDate: day(2025, time.January, 10),
		Approvals: map[string]loan.Approval{
			"ACME":   {Approved: yes(), ApprovedBy: "budi"},
			"Globex": {Approved: yes(), ApprovedBy: "sari"},
		},
	}
}

// borrowedLoan has been handed out by the warehouse.
func borrowedLoan() *loan.Loan {
	l := approvedLoan()
	l.WarehouseStatus = &loan.WarehouseStatus{Status: "borrowed", ProcessedBy: "gudang"}
	return l
}

func submitReturn(l *loan.Loan, id string) error {
	_, err := loan.SubmitReturn(l, loan.ReturnSubmission{
		ID:     id,
		By:     l.Borrower,
		Note:   "done with it",
		Photos: photos(),
		At:     wib(2025, time.January, 9, 10),
	})
	return err
}

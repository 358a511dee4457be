package loan

import (
	"strings"
	"time"

	"github.com/warp/equipment-loan/generic"
)

// =============================================================================
// EXTENSION REQUESTS - Append-only due date extensions
// =============================================================================
//
//   pending (approveStatus null) ──► approved | rejected
//
// Both outcomes are terminal. A new request may be appended only once the
// latest one is decided. Approval moves the effective due date; rejection
// leaves it alone.

// LatestExtension returns the last entry of the history.
func LatestExtension(l *Loan) (ExtendRequest, int, bool) {
	if l == nil || len(l.Extensions) == 0 {
		return ExtendRequest{}, -1, false
	}
	i := len(l.Extensions) - 1
	return l.Extensions[i], i, true
}

// PendingExtension returns the latest entry when it is still undecided.
func PendingExtension(l *Loan) (ExtendRequest, int, bool) {
	ext, i, ok := LatestExtension(l)
	if !ok || ext.ApproveStatus.Kind() != KindPending {
		return ExtendRequest{}, -1, false
	}
	return ext, i, true
}

// LatestDecision returns the most recent decided entry.
func LatestDecision(l *Loan) (ExtendRequest, int, bool) {
	if l == nil {
		return ExtendRequest{}, -1, false
	}
	for i := len(l.Extensions) - 1; i >= 0; i-- {
		if l.Extensions[i].ApproveStatus.Kind() != KindPending {
			return l.Extensions[i], i, true
		}
	}
	return ExtendRequest{}, -1, false
}

// CanRequestExtension reports whether the borrower may ask for a new date.
func CanRequestExtension(l *Loan, status Status) bool {
	_, _, pending := PendingExtension(l)
	return !pending && status.WithBorrower()
}

// ExtensionSubmission is the borrower's request for a later due date.
type ExtensionSubmission struct {
	RequestedReturnDate generic.TimePoint
	By                  string
	Note                string
	At                  time.Time
}

// SubmitExtension appends a pending entry. The requested date must fall
// after the current effective due date.
func SubmitExtension(l *Loan, sub ExtensionSubmission) (*ExtendRequest, error) {
	if strings.TrimSpace(sub.By) == "" {
		return nil, required("requestBy")
	}
	if strings.TrimSpace(sub.Note) == "" {
		return nil, required("note")
	}
	if !sub.RequestedReturnDate.Valid() {
		return nil, &ValidationError{Field: "requestedReturnDate", Message: "must be a date"}
	}
	due := ResolveDueDate(l).Date
	if due.Valid() && !sub.RequestedReturnDate.After(due) {
		return nil, &ValidationError{
			Field:   "requestedReturnDate",
			Message: "must be after the current due date " + due.String(),
		}
	}

	status := ResolveStatus(l).Status
	if _, _, pending := PendingExtension(l); pending {
		return nil, conflict(l, "request extension", status, "the previous extension is still pending")
	}
	if !status.WithBorrower() {
		return nil, conflict(l, "request extension", status, "equipment is not with the borrower")
	}

	l.Extensions = append(l.Extensions, ExtendRequest{
		RequestedReturnDate: sub.RequestedReturnDate,
		RequestAt:           generic.At(sub.At),
		RequestBy:           sub.By,
		Note:                strings.TrimSpace(sub.Note),
		ApproveStatus:       DecisionPending,
	})
	return &l.Extensions[len(l.Extensions)-1], nil
}

// ExtensionDecision approves or rejects the pending extension.
type ExtensionDecision struct {
	Approve bool
	By      string
	Note    string
	At      time.Time
}

// DecideExtension records the decision on the pending entry. A rejection
// needs a note.
func DecideExtension(l *Loan, d ExtensionDecision) (*ExtendRequest, error) {
	if strings.TrimSpace(d.By) == "" {
		return nil, required("approveBy")
	}
	if !d.Approve && strings.TrimSpace(d.Note) == "" {
		return nil, required("note")
	}
	_, i, pending := PendingExtension(l)
	if !pending {
		return nil, conflict(l, "decide extension", ResolveStatus(l).Status, "no pending extension")
	}

	ext := &l.Extensions[i]
	ext.ApproveStatus = DecisionRejected
	if d.Approve {
		ext.ApproveStatus = DecisionApproved
	}
	ext.ApproveAt = generic.At(d.At)
	ext.ApproveBy = d.By
	ext.ApproveNote = strings.TrimSpace(d.Note)
	return ext, nil
}

package loan

import (
	"strings"
	"time"

	"github.com/warp/equipment-loan/generic"
)

// =============================================================================
// LIFECYCLE ACTIONS - Draft, submission, approval and hand-out
// =============================================================================
//
// Each action mutates the loan in place and reports a ValidationError or a
// StateConflictError before touching anything. Persistence is the caller's
// job (see Service).

// Draft is the borrower's input when opening a loan.
type Draft struct {
	ID           string
	CreatedBy    string
	Borrower     string
	BorrowerName string
	EntityID     string
	Companies    []string
	NeedType     string
	OutDate      generic.TimePoint
	UseDate      generic.TimePoint
	ReturnDate   generic.TimePoint
	Product      string
	PickupMethod string
	Note         string
	Submit       bool
	At           time.Time
}

// NewLoan builds a loan from a draft, submitting it straight away when
// d.Submit is set.
func NewLoan(d Draft) (*Loan, error) {
	if d.ID == "" {
		return nil, required("id")
	}
	if strings.TrimSpace(d.Borrower) == "" {
		return nil, required("borrower")
	}
	if d.OutDate.Valid() && d.ReturnDate.Valid() && d.ReturnDate.Before(d.OutDate) {
		return nil, &ValidationError{Field: "returnDate", Message: "must not be before outDate"}
	}

	l := &Loan{
		ID:           d.ID,
		Borrower:     d.Borrower,
		BorrowerName: d.BorrowerName,
		EntityID:     d.EntityID,
		Companies:    dedupeCompanies(d.Companies),
		NeedType:     d.NeedType,
		OutDate:      d.OutDate,
		UseDate:      d.UseDate,
		ReturnDate:   d.ReturnDate,
		Product:      d.Product,
		PickupMethod: d.PickupMethod,
		Note:         d.Note,
		IsDraft:      true,
		CreatedAt:    generic.At(d.At),
		CreatedBy:    d.CreatedBy,
	}
	if d.Submit {
		if err := Submit(l, d.At); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func dedupeCompanies(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, c := range in {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// Submit turns a draft into a request awaiting one approval per company.
func Submit(l *Loan, at time.Time) error {
	if !l.IsDraft {
		return conflict(l, "submit", ResolveStatus(l).Status, "loan is not a draft")
	}
	if len(l.Companies) == 0 {
		return &ValidationError{Field: "companies", Message: "at least one company is required"}
	}
	if !l.ReturnDate.Valid() {
		return &ValidationError{Field: "returnDate", Message: "must be a date"}
	}

	l.Approvals = make(map[string]Approval, len(l.Companies))
	for _, c := range l.Companies {
		l.Approvals[c] = Approval{}
	}
	l.IsDraft = false
	l.SubmittedAt = generic.At(at)
	return nil
}

// ApprovalDecision is one company's answer.
type ApprovalDecision struct {
	Company string
	Approve bool
	By      string
	Reason  string
	Note    string
	At      time.Time
}

// DecideApproval records a company's decision. Rejecting requires a reason.
func DecideApproval(l *Loan, d ApprovalDecision) error {
	if strings.TrimSpace(d.By) == "" {
		return required("approvedBy")
	}
	if strings.TrimSpace(d.Company) == "" {
		return required("company")
	}
	if !d.Approve && strings.TrimSpace(d.Reason) == "" {
		return required("rejectionReason")
	}

	status := ResolveStatus(l).Status
	if status != StatusPendingApproval {
		return conflict(l, "decide approval", status, "loan is not awaiting approval")
	}
	current, ok := l.Approvals[d.Company]
	if !ok {
		return conflict(l, "decide approval", status, "company "+d.Company+" is not an approver")
	}
	if current.Approved != nil && *current.Approved {
		return conflict(l, "decide approval", status, "company "+d.Company+" already approved")
	}

	approved := d.Approve
	decision := Approval{
		Approved:   &approved,
		ApprovedBy: d.By,
		ApprovedAt: generic.At(d.At),
		Note:       strings.TrimSpace(d.Note),
	}
	if !approved {
		decision.RejectionReason = strings.TrimSpace(d.Reason)
	}
	l.Approvals[d.Company] = decision
	return nil
}

// WarehouseAction is the warehouse's hand-out or refusal.
type WarehouseAction struct {
	By     string
	Note   string
	Reason string
	At     time.Time
}

// ProcessWarehouse hands the equipment out.
func ProcessWarehouse(l *Loan, a WarehouseAction) error {
	if strings.TrimSpace(a.By) == "" {
		return required("processedBy")
	}
	if status := ResolveStatus(l).Status; status != StatusApproved {
		return conflict(l, "process warehouse", status, "loan is not approved")
	}
	l.WarehouseStatus = &WarehouseStatus{
		Status:      "borrowed",
		ProcessedAt: generic.At(a.At),
		ProcessedBy: a.By,
		Note:        strings.TrimSpace(a.Note),
	}
	return nil
}

// RejectWarehouse refuses the hand-out of an approved loan.
func RejectWarehouse(l *Loan, a WarehouseAction) error {
	if strings.TrimSpace(a.By) == "" {
		return required("processedBy")
	}
	if strings.TrimSpace(a.Reason) == "" {
		return required("rejectionReason")
	}
	if status := ResolveStatus(l).Status; status != StatusApproved {
		return conflict(l, "reject warehouse", status, "loan is not approved")
	}
	l.WarehouseStatus = &WarehouseStatus{
		Status:          "rejected",
		ProcessedAt:     generic.At(a.At),
		ProcessedBy:     a.By,
		RejectionReason: strings.TrimSpace(a.Reason),
		Note:            strings.TrimSpace(a.Note),
	}
	return nil
}

// FineFlags changes the fine waiver and pause switches. Nil leaves a flag
// as it is.
type FineFlags struct {
	NoFine     *bool
	FinePaused *bool
	By         string
	At         time.Time
}

// SetFineFlags updates returnStatus.noFine and returnStatus.finePaused.
// Pausing stamps the pause instant; resuming clears it.
func SetFineFlags(l *Loan, f FineFlags) error {
	if strings.TrimSpace(f.By) == "" {
		return required("by")
	}
	if f.NoFine == nil && f.FinePaused == nil {
		return &ValidationError{Field: "flags", Message: "noFine or finePaused is required"}
	}
	if status := ResolveStatus(l).Status; !status.HandedOut() {
		return conflict(l, "set fine flags", status, "equipment was never handed out")
	}

	if l.ReturnStatus == nil {
		l.ReturnStatus = &ReturnStatus{}
	}
	rs := l.ReturnStatus
	if f.NoFine != nil {
		rs.NoFine = *f.NoFine
	}
	if f.FinePaused != nil && *f.FinePaused != rs.FinePaused {
		rs.FinePaused = *f.FinePaused
		if rs.FinePaused {
			rs.FinePausedAt = generic.At(f.At)
			rs.FinePausedBy = f.By
		} else {
			rs.FinePausedAt = generic.TimePoint{}
			rs.FinePausedBy = ""
		}
	}
	return nil
}

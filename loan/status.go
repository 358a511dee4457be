package loan

import "strings"

// =============================================================================
// STATUS RESOLUTION
// =============================================================================
//
// The canonical status is derived, never stored. Rules run in order and the
// first decisive rule wins:
//
//   override       loanStatus, when it names a known status
//   return-thread  latest return request, once the item was handed out
//   warehouse      warehouseStatus.status, when the warehouse has acted
//   draft          isDraft
//   approvals      no entries -> PENDING_APPROVAL
//                  any rejected with a reason -> REJECTED
//                  all approved -> APPROVED
//   default        PENDING_APPROVAL
//
// A partially approved loan stays PENDING_APPROVAL; one rejection rejects
// the whole loan.

const (
	RuleOverride          = "override"
	RuleReturnThread      = "return-thread"
	RuleWarehouse         = "warehouse"
	RuleDraft             = "draft"
	RuleApprovalsEmpty    = "approvals-empty"
	RuleApprovalsRejected = "approvals-rejected"
	RuleApprovalsComplete = "approvals-complete"
	RuleDefault           = "default"
)

// RuleTrace records whether one rule was consulted and whether it decided.
type RuleTrace struct {
	Rule    string `json:"rule"`
	Decided bool   `json:"decided"`
}

// Resolution is the outcome of ResolveStatus.
type Resolution struct {
	Status   Status      `json:"status"`
	Rule     string      `json:"rule"`
	Trace    []RuleTrace `json:"trace"`
	Warnings []Warning   `json:"warnings,omitempty"`
}

type statusRule struct {
	name string
	eval func(l *Loan, warn func(Warning)) (Status, bool)
}

var statusRules = []statusRule{
	{RuleOverride, overrideRule},
	{RuleReturnThread, returnThreadRule},
	{RuleWarehouse, warehouseRule},
	{RuleDraft, draftRule},
	{RuleApprovalsEmpty, approvalsEmptyRule},
	{RuleApprovalsRejected, approvalsRejectedRule},
	{RuleApprovalsComplete, approvalsCompleteRule},
}

// ResolveStatus derives the canonical status of a loan. It is total: any
// record, including nil, yields a status.
func ResolveStatus(l *Loan) Resolution {
	if l == nil {
		return Resolution{
			Status:   StatusPendingApproval,
			Rule:     RuleDefault,
			Trace:    []RuleTrace{{Rule: RuleDefault, Decided: true}},
			Warnings: []Warning{{Code: WarnNilLoan, Field: "loan", Message: "no loan record"}},
		}
	}

	normalized, warnings := Normalize(l)
	res := Resolution{Warnings: warnings}
	warn := func(w Warning) { res.Warnings = append(res.Warnings, w) }

	for _, rule := range statusRules {
		status, decided := rule.eval(normalized, warn)
		res.Trace = append(res.Trace, RuleTrace{Rule: rule.name, Decided: decided})
		if decided {
			res.Status = status
			res.Rule = rule.name
			return res
		}
	}

	res.Trace = append(res.Trace, RuleTrace{Rule: RuleDefault, Decided: true})
	res.Status = StatusPendingApproval
	res.Rule = RuleDefault
	return res
}

func overrideRule(l *Loan, warn func(Warning)) (Status, bool) {
	if l.LoanStatus == "" {
		return "", false
	}
	if s, ok := canonicalStatus(l.LoanStatus); ok {
		return s, true
	}
	warn(Warning{
		Code:    WarnUnknownToken,
		Field:   "loanStatus",
		Value:   l.LoanStatus,
		Message: "override is not a known status and was ignored",
	})
	return "", false
}

func returnThreadRule(l *Loan, warn func(Warning)) (Status, bool) {
	if !handedOut(l) {
		return "", false
	}
	if n := len(l.ReturnRequests); n > 0 {
		entry := l.ReturnRequests[n-1]
		state, ok := entry.Status.Normalize()
		if !ok {
			warn(Warning{
				Code:    WarnUnknownToken,
				Field:   "returnRequest.status",
				Value:   string(entry.Status),
				Message: "return request status not recognized",
			})
			return "", false
		}
		return returnRequestLoanStatus[state], true
	}

	// Records written before the history existed only carry the summary.
	if l.ReturnStatus == nil || l.ReturnStatus.Status == "" {
		return "", false
	}
	raw := l.ReturnStatus.Status
	if state, ok := ReturnRequestStatus(raw).Normalize(); ok {
		return returnRequestLoanStatus[state], true
	}
	if s, ok := canonicalStatus(raw); ok && s.HandedOut() {
		return s, true
	}
	warn(Warning{
		Code:    WarnUnknownToken,
		Field:   "returnStatus.status",
		Value:   raw,
		Message: "return status not recognized",
	})
	return "", false
}

func handedOut(l *Loan) bool {
	if l.WarehouseStatus == nil {
		return false
	}
	s, ok := warehouseStatus(l.WarehouseStatus.Status)
	return ok && s.HandedOut()
}

func warehouseRule(l *Loan, warn func(Warning)) (Status, bool) {
	if l.WarehouseStatus == nil || warehouseUndecided[fold(l.WarehouseStatus.Status)] {
		return "", false
	}
	raw := l.WarehouseStatus.Status
	if s, ok := warehouseStatus(raw); ok {
		return s, true
	}
	warn(Warning{
		Code:    WarnUnknownToken,
		Field:   "warehouseStatus.status",
		Value:   raw,
		Message: "warehouse status not recognized; passed through",
	})
	return Status(raw), true
}

func draftRule(l *Loan, _ func(Warning)) (Status, bool) {
	return StatusDraft, l.IsDraft
}

func approvalsEmptyRule(l *Loan, _ func(Warning)) (Status, bool) {
	return StatusPendingApproval, len(l.Approvals) == 0
}

func approvalsRejectedRule(l *Loan, _ func(Warning)) (Status, bool) {
	for _, a := range l.Approvals {
		if a.Approved != nil && !*a.Approved && strings.TrimSpace(a.RejectionReason) != "" {
			return StatusRejected, true
		}
	}
	return "", false
}

func approvalsCompleteRule(l *Loan, _ func(Warning)) (Status, bool) {
	for _, a := range l.Approvals {
		if a.Approved == nil || !*a.Approved {
			return "", false
		}
	}
	return StatusApproved, true
}

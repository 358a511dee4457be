package loan

import (
	"strings"

	"golang.org/x/text/cases"
)

// Stored status tokens come from several client generations: "Approved",
// "PENDING", "follow-up", "Dipinjam". fold maps them onto one spelling
// before lookup.
func fold(s string) string {
	s = cases.Fold().String(strings.TrimSpace(s))
	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}

var canonicalTokens = map[string]Status{
	"draft": StatusDraft,

	"pending":          StatusPendingApproval,
	"pending_approval": StatusPendingApproval,
	"waiting":          StatusPendingApproval,
	"menunggu":         StatusPendingApproval,

	"approved":  StatusApproved,
	"approve":   StatusApproved,
	"disetujui": StatusApproved,

	"partially_approved": StatusPartiallyApproved,
	"partial":            StatusPartiallyApproved,

	"rejected": StatusRejected,
	"reject":   StatusRejected,
	"ditolak":  StatusRejected,

	"borrowed":    StatusBorrowed,
	"on_loan":     StatusBorrowed,
	"dipinjam":    StatusBorrowed,
	"processed":   StatusBorrowed,
	"handed_over": StatusBorrowed,

	"return_requested": StatusReturnRequested,
	"requested_return": StatusReturnRequested,

	"return_followup":  StatusReturnFollowUp,
	"return_follow_up": StatusReturnFollowUp,
	"follow_up":        StatusReturnFollowUp,
	"followup":         StatusReturnFollowUp,

	"return_rejected": StatusReturnRejected,

	"returned":        StatusReturned,
	"return_accepted": StatusReturned,
	"dikembalikan":    StatusReturned,

	"completed": StatusCompleted,
	"complete":  StatusCompleted,
	"done":      StatusCompleted,
	"selesai":   StatusCompleted,

	"cancelled":  StatusCancelled,
	"canceled":   StatusCancelled,
	"dibatalkan": StatusCancelled,
}

// In the warehouse object "approved" means the hand-out happened.
var warehouseTokens = map[string]Status{
	"approved":  StatusBorrowed,
	"approve":   StatusBorrowed,
	"disetujui": StatusBorrowed,
	"rejected":  StatusRejected,
	"ditolak":   StatusRejected,
}

// Warehouse tokens that mean the warehouse has not acted yet.
var warehouseUndecided = map[string]bool{
	"":         true,
	"pending":  true,
	"waiting":  true,
	"menunggu": true,
}

// canonicalStatus maps a stored token onto the vocabulary.
func canonicalStatus(raw string) (Status, bool) {
	s, ok := canonicalTokens[fold(raw)]
	return s, ok
}

// warehouseStatus maps a warehouse token, falling back to the general table.
func warehouseStatus(raw string) (Status, bool) {
	if s, ok := warehouseTokens[fold(raw)]; ok {
		return s, true
	}
	return canonicalStatus(raw)
}

var returnRequestTokens = map[string]ReturnRequestStatus{
	"requested":        ReturnRequested,
	"return_requested": ReturnRequested,
	"pending":          ReturnRequested,
	"accepted":         ReturnAccepted,
	"return_accepted":  ReturnAccepted,
	"received":         ReturnAccepted,
	"diterima":         ReturnAccepted,
	"follow_up":        ReturnFollowUp,
	"followup":         ReturnFollowUp,
	"return_followup":  ReturnFollowUp,
	"return_follow_up": ReturnFollowUp,
	"rejected":         ReturnRejected,
	"return_rejected":  ReturnRejected,
	"ditolak":          ReturnRejected,
	"completed":        ReturnCompleted,
	"complete":         ReturnCompleted,
	"returned":         ReturnCompleted,
	"done":             ReturnCompleted,
	"selesai":          ReturnCompleted,
}

// Canonical status a return-request state puts the loan in.
var returnRequestLoanStatus = map[ReturnRequestStatus]Status{
	ReturnRequested: StatusReturnRequested,
	ReturnAccepted:  StatusReturned,
	ReturnFollowUp:  StatusReturnFollowUp,
	ReturnRejected:  StatusReturnRejected,
	ReturnCompleted: StatusCompleted,
}

// Extension decision tokens. Negative tokens are checked first so that
// "not approved" or "unapproved" never count as an approval.
var (
	negativeDecisionTokens    = []string{"reject", "tolak", "declin", "denied", "unapprov", "not_approv", "not_accept", "belum", "false"}
	affirmativeDecisionTokens = []string{"approv", "setuju", "accept", "diterima", "acc", "ok", "yes", "true", "granted"}
	pendingDecisionTokens     = map[string]bool{"": true, "pending": true, "waiting": true, "menunggu": true, "null": true}
)

func classifyDecision(raw string) DecisionKind {
	f := fold(raw)
	if pendingDecisionTokens[f] {
		return KindPending
	}
	for _, tok := range negativeDecisionTokens {
		if strings.Contains(f, tok) {
			return KindRejected
		}
	}
	for _, tok := range affirmativeDecisionTokens {
		if strings.Contains(f, tok) {
			return KindApproved
		}
	}
	return KindUnknown
}

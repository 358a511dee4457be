package loan

import (
	"strings"
	"time"

	"github.com/warp/equipment-loan/generic"
)

// =============================================================================
// RETURN REQUESTS - Append-only return history
// =============================================================================
//
// Each entry moves through:
//
//   requested ──► accepted ──► completed
//       │    └──► follow_up ──► completed
//       └──► rejected
//
// A rejected entry closes its thread. The borrower starts the next attempt
// as a new entry carrying the same root id, so a thread is every entry
// sharing a root. At most one entry, the latest, may be open.

// ReturnRequestStatus is the state of one return entry.
type ReturnRequestStatus string

const (
	ReturnRequested ReturnRequestStatus = "requested"
	ReturnAccepted  ReturnRequestStatus = "accepted"
	ReturnFollowUp  ReturnRequestStatus = "follow_up"
	ReturnRejected  ReturnRequestStatus = "rejected"
	ReturnCompleted ReturnRequestStatus = "completed"
)

var returnTransitions = generic.Transitions[ReturnRequestStatus]{
	ReturnRequested: {ReturnAccepted, ReturnFollowUp, ReturnRejected},
	ReturnAccepted:  {ReturnCompleted},
	ReturnFollowUp:  {ReturnCompleted},
}

// Normalize maps stored spellings onto the constants above.
func (s ReturnRequestStatus) Normalize() (ReturnRequestStatus, bool) {
	n, ok := returnRequestTokens[fold(string(s))]
	return n, ok
}

func (r ReturnRequest) state() ReturnRequestStatus {
	if s, ok := r.Status.Normalize(); ok {
		return s
	}
	return r.Status
}

// ReturnThread groups the entries of one return attempt chain.
type ReturnThread struct {
	RootID  string          `json:"rootId"`
	Entries []ReturnRequest `json:"entries"`
	Latest  Status          `json:"latest"`
}

// Threads groups the return history by root id in first-seen order.
func Threads(l *Loan) []ReturnThread {
	if l == nil {
		return nil
	}
	var threads []ReturnThread
	index := make(map[string]int)
	for _, entry := range l.ReturnRequests {
		root := entry.Root()
		i, ok := index[root]
		if !ok {
			i = len(threads)
			index[root] = i
			threads = append(threads, ReturnThread{RootID: root})
		}
		threads[i].Entries = append(threads[i].Entries, entry)
		if s, known := returnRequestLoanStatus[entry.state()]; known {
			threads[i].Latest = s
		} else {
			threads[i].Latest = Status(entry.Status)
		}
	}
	return threads
}

// OpenReturn returns the entry awaiting a warehouse decision, if any.
func OpenReturn(l *Loan) (ReturnRequest, int, bool) {
	if l == nil || len(l.ReturnRequests) == 0 {
		return ReturnRequest{}, -1, false
	}
	i := len(l.ReturnRequests) - 1
	entry := l.ReturnRequests[i]
	if entry.state() != ReturnRequested {
		return ReturnRequest{}, -1, false
	}
	return entry, i, true
}

// CanProcessReturn reports whether the warehouse has a return to act on.
func CanProcessReturn(l *Loan) bool {
	_, _, ok := OpenReturn(l)
	return ok
}

// LatestAcceptedReturn returns the latest entry waiting for completion.
func LatestAcceptedReturn(l *Loan) (ReturnRequest, int, bool) {
	if l == nil {
		return ReturnRequest{}, -1, false
	}
	for i := len(l.ReturnRequests) - 1; i >= 0; i-- {
		switch l.ReturnRequests[i].state() {
		case ReturnAccepted, ReturnFollowUp:
			return l.ReturnRequests[i], i, true
		case ReturnCompleted:
			return ReturnRequest{}, -1, false
		}
	}
	return ReturnRequest{}, -1, false
}

// =============================================================================
// MUTATIONS
// =============================================================================

// ReturnSubmission is the borrower's return request.
type ReturnSubmission struct {
	ID     string
	By     string
	Note   string
	Photos []PhotoResult
	At     time.Time
}

// SubmitReturn appends a new requested entry. It needs a note and photo
// evidence; the equipment must be with the borrower and no other return
// may be open.
func SubmitReturn(l *Loan, sub ReturnSubmission) (*ReturnRequest, error) {
	if strings.TrimSpace(sub.By) == "" {
		return nil, required("requestedBy")
	}
	if strings.TrimSpace(sub.Note) == "" {
		return nil, required("note")
	}
	if len(sub.Photos) == 0 {
		return nil, &ValidationError{Field: "photoResults", Message: "at least one photo is required"}
	}
	for _, p := range sub.Photos {
		if strings.TrimSpace(p.URL) == "" {
			return nil, &ValidationError{Field: "photoResults.url", Message: "is required"}
		}
	}
	if sub.ID == "" {
		return nil, required("id")
	}

	status := ResolveStatus(l).Status
	if _, _, open := OpenReturn(l); open {
		return nil, conflict(l, "request return", status, "a return request is already open")
	}
	if !status.WithBorrower() {
		return nil, conflict(l, "request return", status, "equipment is not with the borrower")
	}

	entry := ReturnRequest{
		ID:           sub.ID,
		RequestedAt:  generic.At(sub.At),
		RequestedBy:  sub.By,
		Note:         strings.TrimSpace(sub.Note),
		PhotoResults: append([]PhotoResult(nil), sub.Photos...),
		Status:       ReturnRequested,
	}
	if n := len(l.ReturnRequests); n > 0 && l.ReturnRequests[n-1].state() == ReturnRejected {
		entry.RootID = l.ReturnRequests[n-1].Root()
	}
	l.ReturnRequests = append(l.ReturnRequests, entry)
	return &l.ReturnRequests[len(l.ReturnRequests)-1], nil
}

// ReturnDecision is the warehouse's outcome for the open return.
type ReturnDecision struct {
	Outcome ReturnRequestStatus // accepted, follow_up or rejected
	By      string
	Note    string
	At      time.Time
}

// ProcessReturn applies the warehouse outcome to the open entry. Rejecting
// or asking for follow-up requires a note.
func ProcessReturn(l *Loan, d ReturnDecision) (*ReturnRequest, error) {
	if strings.TrimSpace(d.By) == "" {
		return nil, required("processedBy")
	}
	outcome, ok := d.Outcome.Normalize()
	if !ok || (outcome != ReturnAccepted && outcome != ReturnFollowUp && outcome != ReturnRejected) {
		return nil, &ValidationError{Field: "action", Message: "must be accept, follow_up or reject"}
	}
	if (outcome == ReturnRejected || outcome == ReturnFollowUp) && strings.TrimSpace(d.Note) == "" {
		return nil, required("note")
	}

	_, i, open := OpenReturn(l)
	if !open {
		return nil, conflict(l, "process return", ResolveStatus(l).Status, "no open return request")
	}
	entry := &l.ReturnRequests[i]
	if err := returnTransitions.Check(entry.state(), outcome); err != nil {
		return nil, conflict(l, "process return", ResolveStatus(l).Status, err.Error())
	}

	entry.Status = outcome
	entry.ProcessedStatus = outcome
	entry.ProcessedAt = generic.At(d.At)
	entry.ProcessedBy = d.By
	entry.ProcessedNote = strings.TrimSpace(d.Note)
	return entry, nil
}

// ReturnCompletion closes an accepted or followed-up return.
type ReturnCompletion struct {
	By   string
	Note string
	At   time.Time
}

// CompleteReturn marks the latest accepted entry completed.
func CompleteReturn(l *Loan, c ReturnCompletion) (*ReturnRequest, error) {
	if strings.TrimSpace(c.By) == "" {
		return nil, required("completedBy")
	}
	_, i, ok := LatestAcceptedReturn(l)
	if !ok {
		return nil, conflict(l, "complete return", ResolveStatus(l).Status, "no accepted return request")
	}
	entry := &l.ReturnRequests[i]
	if err := returnTransitions.Check(entry.state(), ReturnCompleted); err != nil {
		return nil, conflict(l, "complete return", ResolveStatus(l).Status, err.Error())
	}

	entry.Status = ReturnCompleted
	entry.CompletedAt = generic.At(c.At)
	entry.CompletedBy = c.By
	entry.CompletedNote = strings.TrimSpace(c.Note)
	return entry, nil
}

// =============================================================================
// PROJECTION - returnStatus summary
// =============================================================================

// ProjectReturnStatus rewrites the returnStatus summary from the latest
// return entry. Fine flags are preserved. warehouseStatus is never touched.
func ProjectReturnStatus(l *Loan) {
	if l == nil || len(l.ReturnRequests) == 0 {
		return
	}
	n := len(l.ReturnRequests)
	latest := l.ReturnRequests[n-1]

	rs := ReturnStatus{}
	if l.ReturnStatus != nil {
		rs.NoFine = l.ReturnStatus.NoFine
		rs.FinePaused = l.ReturnStatus.FinePaused
		rs.FinePausedAt = l.ReturnStatus.FinePausedAt
		rs.FinePausedBy = l.ReturnStatus.FinePausedBy
	}

	state := latest.state()
	rs.Status = string(state)
	rs.PhotoResults = latest.PhotoResults

	switch state {
	case ReturnRequested:
		rs.Note = latest.Note
		rs.ProcessedAt = latest.RequestedAt
		rs.ProcessedBy = latest.RequestedBy
		switch {
		case n > 1:
			rs.PreviousStatus = string(l.ReturnRequests[n-2].state())
		case l.WarehouseStatus != nil:
			rs.PreviousStatus = l.WarehouseStatus.Status
		}
	case ReturnCompleted:
		rs.Note = latest.CompletedNote
		rs.ProcessedAt = latest.CompletedAt
		rs.ProcessedBy = latest.CompletedBy
		rs.PreviousStatus = string(latest.ProcessedStatus)
	default:
		rs.Note = latest.ProcessedNote
		rs.ProcessedAt = latest.ProcessedAt
		rs.ProcessedBy = latest.ProcessedBy
		rs.PreviousStatus = string(ReturnRequested)
	}
	l.ReturnStatus = &rs
}

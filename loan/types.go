// Package loan implements the equipment loan lifecycle: the stored record,
// the pure derivations over it (canonical status, effective due date,
// duration, overdue fine) and the two append-only sub-workflows (return
// requests and extension requests) that feed them.
//
// Every caller that needs a status, a due date or a fine goes through
// Engine.Evaluate. Nothing else in the repository re-implements those rules.
package loan

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/warp/equipment-loan/generic"
)

// =============================================================================
// LOAN - The stored document
// =============================================================================

// Loan is the whole persisted record of one borrowing transaction. JSON
// field names follow the stored documents.
type Loan struct {
	ID           string            `json:"id"`
	Borrower     string            `json:"borrower"`
	BorrowerName string            `json:"borrowerName,omitempty"`
	EntityID     string            `json:"entityId,omitempty"`
	Companies    []string          `json:"companies"`
	NeedType     string            `json:"needType,omitempty"`
	OutDate      generic.TimePoint `json:"outDate"`
	UseDate      generic.TimePoint `json:"useDate"`
	ReturnDate   generic.TimePoint `json:"returnDate"`
	Product      string            `json:"productDetail,omitempty"`
	PickupMethod string            `json:"pickupMethod,omitempty"`
	Note         string            `json:"note,omitempty"`
	IsDraft      bool              `json:"isDraft"`
	CreatedAt    generic.TimePoint `json:"createdAt"`
	CreatedBy    string            `json:"createdBy,omitempty"`
	SubmittedAt  generic.TimePoint `json:"submittedAt"`

	Approvals       map[string]Approval `json:"approvals,omitempty"`
	WarehouseStatus *WarehouseStatus    `json:"warehouseStatus,omitempty"`
	ReturnStatus    *ReturnStatus       `json:"returnStatus,omitempty"`
	ReturnRequests  []ReturnRequest     `json:"returnRequest,omitempty"`
	Extensions      []ExtendRequest     `json:"extendStatus,omitempty"`

	// LoanStatus is an explicit override written straight into storage.
	LoanStatus string `json:"loanStatus,omitempty"`

	// TotalDenda is the cached fine. Written, never read by the calculator.
	TotalDenda *FineCache `json:"totalDenda,omitempty"`
}

// Approval is one company's decision on the loan.
type Approval struct {
	Approved        *bool             `json:"approved"`
	ApprovedBy      string            `json:"approvedBy,omitempty"`
	ApprovedAt      generic.TimePoint `json:"approvedAt"`
	RejectionReason string            `json:"rejectionReason,omitempty"`
	Note            string            `json:"note,omitempty"`
}

// UnmarshalJSON reads approved leniently: besides true, false and null it
// accepts decision words ("approved", "ditolak"), "1"/"0" and numbers.
// Anything else counts as undecided.
func (a *Approval) UnmarshalJSON(data []byte) error {
	type plain Approval
	var doc struct {
		plain
		Approved json.RawMessage `json:"approved"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*a = Approval(doc.plain)
	a.Approved = lenientBool(doc.Approved)
	return nil
}

func lenientBool(data json.RawMessage) *bool {
	data = bytes.TrimSpace(data)
	yes, no := true, false
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")):
		return nil
	case bytes.Equal(data, []byte("true")):
		return &yes
	case bytes.Equal(data, []byte("false")):
		return &no
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return nil
		}
		if n != 0 {
			return &yes
		}
		return &no
	}
	if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
		return &b
	}
	switch classifyDecision(s) {
	case KindApproved:
		return &yes
	case KindRejected:
		return &no
	}
	return nil
}

// WarehouseStatus is the hand-out side of the loan. Return completion
// must not be written here; ReturnedAt/ReturnedBy exist only because old
// records carry them.
type WarehouseStatus struct {
	Status          string            `json:"status"`
	ProcessedAt     generic.TimePoint `json:"processedAt"`
	ProcessedBy     string            `json:"processedBy,omitempty"`
	RejectionReason string            `json:"rejectionReason,omitempty"`
	Note            string            `json:"note,omitempty"`
	ReturnedAt      generic.TimePoint `json:"returnedAt"`
	ReturnedBy      string            `json:"returnedBy,omitempty"`
}

// ReturnStatus is the cached summary of the return history plus the fine
// flags. The summary part is re-projected from ReturnRequests on write.
type ReturnStatus struct {
	Status         string            `json:"status,omitempty"`
	PreviousStatus string            `json:"previousStatus,omitempty"`
	Note           string            `json:"note,omitempty"`
	ProcessedAt    generic.TimePoint `json:"processedAt"`
	ProcessedBy    string            `json:"processedBy,omitempty"`
	PhotoResults   []PhotoResult     `json:"photoResults,omitempty"`

	NoFine       bool              `json:"noFine,omitempty"`
	FinePaused   bool              `json:"finePaused,omitempty"`
	FinePausedAt generic.TimePoint `json:"finePausedAt"`
	FinePausedBy string            `json:"finePausedBy,omitempty"`
}

// PhotoResult references evidence uploaded elsewhere.
type PhotoResult struct {
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

// ReturnRequest is one entry of the append-only return history.
type ReturnRequest struct {
	ID           string              `json:"id"`
	RootID       string              `json:"rootRequestId,omitempty"`
	RequestedAt  generic.TimePoint   `json:"requestedAt"`
	RequestedBy  string              `json:"requestedBy"`
	Note         string              `json:"note,omitempty"`
	PhotoResults []PhotoResult       `json:"photoResults,omitempty"`
	Status       ReturnRequestStatus `json:"status"`

	// Warehouse processing (accept, follow-up or reject).
	ProcessedStatus ReturnRequestStatus `json:"processedStatus,omitempty"`
	ProcessedAt     generic.TimePoint   `json:"processedAt"`
	ProcessedBy     string              `json:"processedBy,omitempty"`
	ProcessedNote   string              `json:"processedNote,omitempty"`

	// Completion after an accept or follow-up.
	CompletedAt   generic.TimePoint `json:"completedAt"`
	CompletedBy   string            `json:"completedBy,omitempty"`
	CompletedNote string            `json:"completedNote,omitempty"`
}

// Root returns the thread id the entry belongs to.
func (r ReturnRequest) Root() string {
	if r.RootID != "" {
		return r.RootID
	}
	return r.ID
}

// ExtendRequest is one entry of the append-only extension history.
type ExtendRequest struct {
	RequestedReturnDate generic.TimePoint `json:"requestedReturnDate"`
	RequestAt           generic.TimePoint `json:"requestAt"`
	RequestBy           string            `json:"requestBy"`
	Note                string            `json:"note,omitempty"`
	ApproveStatus       Decision          `json:"approveStatus"`
	ApproveAt           generic.TimePoint `json:"approveAt"`
	ApproveBy           string            `json:"approveBy,omitempty"`
	ApproveNote         string            `json:"approveNote,omitempty"`
}

// FineCache is the memoized fine written by the batch job.
type FineCache struct {
	DaysOverdue int               `json:"daysOverdue"`
	FineAmount  generic.Money     `json:"fineAmount"`
	UpdatedAt   generic.TimePoint `json:"updatedAt"`

	// raw holds a stored value that did not decode. It is written back
	// unchanged until the next recomputation replaces it.
	raw json.RawMessage
}

// Malformed reports whether the stored cache could not be read.
func (c *FineCache) Malformed() bool {
	return c != nil && len(c.raw) > 0
}

// Raw returns the undecodable stored value, if any.
func (c *FineCache) Raw() string {
	if c == nil {
		return ""
	}
	return string(c.raw)
}

func (c FineCache) MarshalJSON() ([]byte, error) {
	if len(c.raw) > 0 {
		return c.raw, nil
	}
	type plain FineCache
	return json.Marshal(plain(c))
}

// UnmarshalJSON never fails: a cache in any unexpected shape ("3" days,
// "Rp 15.000") is kept as raw text and recomputed on the next write.
func (c *FineCache) UnmarshalJSON(data []byte) error {
	type plain FineCache
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		*c = FineCache{raw: append(json.RawMessage(nil), bytes.TrimSpace(data)...)}
		return nil
	}
	*c = FineCache(p)
	return nil
}

// =============================================================================
// DECISION - Extension approval token
// =============================================================================

// Decision is the raw approveStatus of an extension. It keeps whatever the
// record holds; Kind() interprets it.
type Decision string

const (
	DecisionPending  Decision = ""
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// DecisionKind is the interpreted form of a Decision.
type DecisionKind int

const (
	KindPending DecisionKind = iota
	KindApproved
	KindRejected
	KindUnknown
)

func (d Decision) Kind() DecisionKind {
	return classifyDecision(string(d))
}

func (d Decision) MarshalJSON() ([]byte, error) {
	if d == DecisionPending {
		return []byte("null"), nil
	}
	return json.Marshal(string(d))
}

// UnmarshalJSON accepts strings, booleans and null.
func (d *Decision) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")):
		*d = DecisionPending
	case bytes.Equal(data, []byte("true")):
		*d = DecisionApproved
	case bytes.Equal(data, []byte("false")):
		*d = DecisionRejected
	default:
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*d = Decision(strings.Trim(string(data), `"`))
			return nil
		}
		*d = Decision(s)
	}
	return nil
}

// =============================================================================
// CANONICAL STATUS
// =============================================================================

// Status is the canonical lifecycle label. Values outside the constants
// below only appear when a stored token could not be recognized.
type Status string

const (
	StatusDraft             Status = "DRAFT"
	StatusPendingApproval   Status = "PENDING_APPROVAL"
	StatusApproved          Status = "APPROVED"
	StatusPartiallyApproved Status = "PARTIALLY_APPROVED"
	StatusRejected          Status = "REJECTED"
	StatusBorrowed          Status = "BORROWED"
	StatusReturnRequested   Status = "RETURN_REQUESTED"
	StatusReturnFollowUp    Status = "RETURN_FOLLOWUP"
	StatusReturnRejected    Status = "RETURN_REJECTED"
	StatusReturned          Status = "RETURNED"
	StatusCompleted         Status = "COMPLETED"
	StatusCancelled         Status = "CANCELLED"
)

// Vocabulary lists every canonical status.
var Vocabulary = []Status{
	StatusDraft, StatusPendingApproval, StatusApproved, StatusPartiallyApproved,
	StatusRejected, StatusBorrowed, StatusReturnRequested, StatusReturnFollowUp,
	StatusReturnRejected, StatusReturned, StatusCompleted, StatusCancelled,
}

// IsCanonical reports whether s is part of the closed vocabulary.
func (s Status) IsCanonical() bool {
	for _, v := range Vocabulary {
		if s == v {
			return true
		}
	}
	return false
}

// HandedOut reports whether the warehouse has given the equipment out at
// some point.
func (s Status) HandedOut() bool {
	switch s {
	case StatusBorrowed, StatusReturnRequested, StatusReturnFollowUp,
		StatusReturnRejected, StatusReturned, StatusCompleted:
		return true
	}
	return false
}

// WithBorrower reports whether the equipment is currently held by the
// borrower, i.e. a return or extension may be requested.
func (s Status) WithBorrower() bool {
	return s == StatusBorrowed || s == StatusReturnRejected
}

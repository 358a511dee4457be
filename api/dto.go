/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Request bodies are
  decoded into these types, validated, then converted into the action
  inputs of the loan package. Responses reuse loan.Result directly so the
  client sees the stored document next to its derived evaluation.

NAMING CONVENTION:
  - *Request:  Request body types from clients
  - *Response: Response wrappers that are not loan.Result

TYPES:
  Loans:
    CreateLoanRequest, SubmitLoanRequest

  Approvals / warehouse:
    ApprovalRequest, WarehouseRequest

  Returns:
    ReturnSubmissionRequest, ReturnActionRequest, PhotoDTO

  Extensions:
    ExtensionRequest, ExtensionDecisionRequest

  Fines:
    FineFlagsRequest, FineReportResponse, FineRunDTO

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Struct tags are checked with go-playground/validator before the action
  runs. The tags cover shape only (required fields, enumerations); state
  rules stay in the loan package.

VERSIONING:
  Every mutating request carries the acting user in `actor` and may carry
  `version`, the loan version the client last read. Zero skips the check.

SEE ALSO:
  - handlers.go: Uses these types
  - loan/service.go: The actions they feed
*/
package api

import (
	"time"

	"github.com/warp/equipment-loan/generic"
	"github.com/warp/equipment-loan/loan"
)

// =============================================================================
// LOAN DTOs
// =============================================================================

// CreateLoanRequest opens a loan. With Submit set it goes straight to
// approval.
type CreateLoanRequest struct {
	Actor        string            `json:"actor" validate:"required"`
	ID           string            `json:"id,omitempty" validate:"omitempty,max=64"`
	Borrower     string            `json:"borrower" validate:"required"`
	BorrowerName string            `json:"borrowerName,omitempty"`
	EntityID     string            `json:"entityId,omitempty"`
	Companies    []string          `json:"companies" validate:"max=20,dive,max=120"`
	NeedType     string            `json:"needType,omitempty"`
	OutDate      generic.TimePoint `json:"outDate"`
	UseDate      generic.TimePoint `json:"useDate"`
	ReturnDate   generic.TimePoint `json:"returnDate"`
	Product      string            `json:"product,omitempty"`
	PickupMethod string            `json:"pickupMethod,omitempty"`
	Note         string            `json:"note,omitempty"`
	Submit       bool              `json:"submit"`
}

func (r CreateLoanRequest) toDraft() loan.Draft {
	return loan.Draft{
		ID:           r.ID,
		CreatedBy:    r.Actor,
		Borrower:     r.Borrower,
		BorrowerName: r.BorrowerName,
		EntityID:     r.EntityID,
		Companies:    r.Companies,
		NeedType:     r.NeedType,
		OutDate:      r.OutDate,
		UseDate:      r.UseDate,
		ReturnDate:   r.ReturnDate,
		Product:      r.Product,
		PickupMethod: r.PickupMethod,
		Note:         r.Note,
		Submit:       r.Submit,
	}
}

// SubmitLoanRequest moves a draft into approval.
type SubmitLoanRequest struct {
	Actor   string `json:"actor" validate:"required"`
	Version int64  `json:"version" validate:"gte=0"`
}

// =============================================================================
// APPROVAL / WAREHOUSE DTOs
// =============================================================================

// ApprovalRequest records one company's decision.
type ApprovalRequest struct {
	Actor   string `json:"actor" validate:"required"`
	Version int64  `json:"version" validate:"gte=0"`
	Company string `json:"company" validate:"required"`
	Approve *bool  `json:"approve" validate:"required"`
	Reason  string `json:"reason,omitempty"`
	Note    string `json:"note,omitempty"`
}

// WarehouseRequest hands the equipment out or refuses to.
type WarehouseRequest struct {
	Actor   string `json:"actor" validate:"required"`
	Version int64  `json:"version" validate:"gte=0"`
	Action  string `json:"action" validate:"required,oneof=process reject"`
	Note    string `json:"note,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// =============================================================================
// RETURN DTOs
// =============================================================================

// PhotoDTO is one piece of return evidence.
type PhotoDTO struct {
	URL     string `json:"url" validate:"required"`
	Caption string `json:"caption,omitempty"`
}

// ReturnSubmissionRequest is the borrower's return request.
type ReturnSubmissionRequest struct {
	Actor        string     `json:"actor" validate:"required"`
	Version      int64      `json:"version" validate:"gte=0"`
	Note         string     `json:"note" validate:"required"`
	PhotoResults []PhotoDTO `json:"photoResults" validate:"required,min=1,dive"`
}

func (r ReturnSubmissionRequest) photos() []loan.PhotoResult {
	out := make([]loan.PhotoResult, len(r.PhotoResults))
	for i, p := range r.PhotoResults {
		out[i] = loan.PhotoResult{URL: p.URL, Caption: p.Caption}
	}
	return out
}

// ReturnActionRequest is the warehouse's action on a return.
type ReturnActionRequest struct {
	Actor   string `json:"actor" validate:"required"`
	Version int64  `json:"version" validate:"gte=0"`
	Action  string `json:"action" validate:"required,oneof=accept follow_up reject complete"`
	Note    string `json:"note,omitempty"`
}

var returnOutcomes = map[string]loan.ReturnRequestStatus{
	"accept":    loan.ReturnAccepted,
	"follow_up": loan.ReturnFollowUp,
	"reject":    loan.ReturnRejected,
}

// =============================================================================
// EXTENSION DTOs
// =============================================================================

// ExtensionRequest asks for a later return date.
type ExtensionRequest struct {
	Actor               string            `json:"actor" validate:"required"`
	Version             int64             `json:"version" validate:"gte=0"`
	RequestedReturnDate generic.TimePoint `json:"requestedReturnDate"`
	Note                string            `json:"note" validate:"required"`
}

// ExtensionDecisionRequest approves or rejects the pending extension.
type ExtensionDecisionRequest struct {
	Actor   string `json:"actor" validate:"required"`
	Version int64  `json:"version" validate:"gte=0"`
	Approve *bool  `json:"approve" validate:"required"`
	Note    string `json:"note,omitempty"`
}

// =============================================================================
// FINE DTOs
// =============================================================================

// FineFlagsRequest waives or pauses the fine. Omitted flags are left alone.
type FineFlagsRequest struct {
	Actor      string `json:"actor" validate:"required"`
	Version    int64  `json:"version" validate:"gte=0"`
	NoFine     *bool  `json:"noFine,omitempty"`
	FinePaused *bool  `json:"finePaused,omitempty"`
}

// OutstandingFineDTO is one overdue loan in the fine report.
type OutstandingFineDTO struct {
	LoanID      string            `json:"loanId"`
	Borrower    string            `json:"borrower"`
	Status      loan.Status       `json:"status"`
	DueDate     generic.TimePoint `json:"dueDate"`
	DaysOverdue int               `json:"daysOverdue"`
	FineAmount  generic.Money     `json:"fineAmount"`
	Paused      bool              `json:"paused,omitempty"`
}

// FineReportResponse summarizes loans by status and lists unpaid fines.
type FineReportResponse struct {
	GeneratedAt      time.Time            `json:"generatedAt"`
	StatusCounts     map[loan.Status]int  `json:"statusCounts"`
	Outstanding      []OutstandingFineDTO `json:"outstanding"`
	TotalOutstanding generic.Money        `json:"totalOutstanding"`
}

// FineRunDTO is one recorded execution of the fine batch.
type FineRunDTO struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	Processed   int        `json:"processed"`
	Updated     int        `json:"updated"`
	Skipped     int        `json:"skipped"`
	Failed      int        `json:"failed"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// =============================================================================
// SCENARIO DTOs
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// LoadScenarioRequest selects the scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// =============================================================================
// COMMON
// =============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

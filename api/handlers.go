/*
handlers.go - HTTP API handlers for the equipment loan service

PURPOSE:
  Exposes the loan service via REST API. Handles HTTP request/response,
  JSON serialization and payload validation, and delegates every state
  change to loan.Service.

ENDPOINTS:
  Loans:
    GET    /api/loans                         List loans with evaluation
    POST   /api/loans                         Create (draft or submitted)
    GET    /api/loans/{id}                    Loan detail
    POST   /api/loans/{id}/submit             Submit draft

  Approvals / warehouse:
    POST   /api/loans/{id}/approve            Company approve/reject
    POST   /api/loans/{id}/warehouse          Hand out or refuse

  Returns:
    POST   /api/loans/{id}/request-return         Borrower return request
    POST   /api/loans/{id}/request-return-action  accept/follow_up/reject/complete

  Extensions:
    POST   /api/loans/{id}/extend             Borrower extension request
    POST   /api/loans/{id}/extend/decision    Approve/reject extension

  Fines:
    POST   /api/loans/{id}/fine               Set noFine / finePaused
    GET    /api/reports/fines                 Status counts + outstanding fines
    POST   /api/admin/fines/recompute         Run the fine batch now
    GET    /api/admin/fines/runs              Recorded batch runs

  Scenarios:
    GET    /api/scenarios                     List demo scenarios
    POST   /api/scenarios/load                Reset and load a demo scenario

REQUEST FLOW:
  1. Decode JSON body
  2. Validate shape (validator tags)
  3. Call the loan service action
  4. Return {loan, version, evaluation}

ERROR HANDLING:
  Errors are returned as {message} with the status taken from the error
  taxonomy:
  - 400: Validation errors, malformed bodies
  - 404: Loan not found
  - 409: State conflict, or a concurrent writer won (reload and retry)
  - 500: Internal errors

SECURITY NOTE:
  No authentication. The actor in the payload is trusted.

SEE ALSO:
  - dto.go: Request/response data structures
  - scheduler.go: Background fine batch
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/warp/equipment-loan/generic"
	"github.com/warp/equipment-loan/loan"
	"github.com/warp/equipment-loan/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// FineRunStore persists fine batch runs. *sqlite.Store implements it.
type FineRunStore interface {
	SaveFineRun(ctx context.Context, r sqlite.FineRun) error
	ListFineRuns(ctx context.Context, limit int) ([]sqlite.FineRun, error)
}

// Pinger reports whether the database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *loan.Service
	Logger  *zap.Logger

	// Optional. Without a scheduler the recompute endpoint calls the
	// service directly and nothing is recorded.
	Fines *FineScheduler
	Runs  FineRunStore

	// Optional. Enables the demo scenario endpoints.
	Scenarios ScenarioStore

	// Optional. Checked by the health probe.
	DB Pinger

	validate *validator.Validate
}

// NewHandler creates a new handler for the given service.
func NewHandler(svc *loan.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Service:  svc,
		Logger:   logger,
		validate: validator.New(),
	}
}

// =============================================================================
// LOAN HANDLERS
// =============================================================================

// ListLoans returns every loan with its evaluation.
func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	results, err := h.Service.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// GetLoan returns one loan.
func (h *Handler) GetLoan(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CreateLoan opens a new loan.
func (h *Handler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req CreateLoanRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.Service.Create(r.Context(), req.toDraft())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// SubmitLoan moves a draft into approval.
func (h *Handler) SubmitLoan(w http.ResponseWriter, r *http.Request) {
	var req SubmitLoanRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, r)(h.Service.Submit(r.Context(), chi.URLParam(r, "id"), req.Version))
}

// =============================================================================
// APPROVAL / WAREHOUSE HANDLERS
// =============================================================================

// DecideApproval records one company's approval or rejection.
func (h *Handler) DecideApproval(w http.ResponseWriter, r *http.Request) {
	var req ApprovalRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, r)(h.Service.DecideApproval(r.Context(), chi.URLParam(r, "id"), req.Version, loan.ApprovalDecision{
		Company: req.Company,
		Approve: *req.Approve,
		By:      req.Actor,
		Reason:  req.Reason,
		Note:    req.Note,
	}))
}

// Warehouse hands the equipment out or refuses to.
func (h *Handler) Warehouse(w http.ResponseWriter, r *http.Request) {
	var req WarehouseRequest
	if !h.decode(w, r, &req) {
		return
	}
	action := loan.WarehouseAction{By: req.Actor, Note: req.Note, Reason: req.Reason}
	id := chi.URLParam(r, "id")
	if req.Action == "reject" {
		h.respond(w, r)(h.Service.RejectWarehouse(r.Context(), id, req.Version, action))
		return
	}
	h.respond(w, r)(h.Service.ProcessWarehouse(r.Context(), id, req.Version, action))
}

// =============================================================================
// RETURN HANDLERS
// =============================================================================

// RequestReturn records the borrower's return request.
func (h *Handler) RequestReturn(w http.ResponseWriter, r *http.Request) {
	var req ReturnSubmissionRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, r)(h.Service.SubmitReturn(r.Context(), chi.URLParam(r, "id"), req.Version, loan.ReturnSubmission{
		By:     req.Actor,
		Note:   req.Note,
		Photos: req.photos(),
	}))
}

// ReturnAction accepts, follows up, rejects or completes a return.
func (h *Handler) ReturnAction(w http.ResponseWriter, r *http.Request) {
	var req ReturnActionRequest
	if !h.decode(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	if req.Action == "complete" {
		h.respond(w, r)(h.Service.CompleteReturn(r.Context(), id, req.Version, loan.ReturnCompletion{
			By:   req.Actor,
			Note: req.Note,
		}))
		return
	}
	h.respond(w, r)(h.Service.ProcessReturn(r.Context(), id, req.Version, loan.ReturnDecision{
		Outcome: returnOutcomes[req.Action],
		By:      req.Actor,
		Note:    req.Note,
	}))
}

// =============================================================================
// EXTENSION HANDLERS
// =============================================================================

// RequestExtension records the borrower's extension request.
func (h *Handler) RequestExtension(w http.ResponseWriter, r *http.Request) {
	var req ExtensionRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, r)(h.Service.SubmitExtension(r.Context(), chi.URLParam(r, "id"), req.Version, loan.ExtensionSubmission{
		RequestedReturnDate: req.RequestedReturnDate,
		By:                  req.Actor,
		Note:                req.Note,
	}))
}

// DecideExtension approves or rejects the pending extension.
func (h *Handler) DecideExtension(w http.ResponseWriter, r *http.Request) {
	var req ExtensionDecisionRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, r)(h.Service.DecideExtension(r.Context(), chi.URLParam(r, "id"), req.Version, loan.ExtensionDecision{
		Approve: *req.Approve,
		By:      req.Actor,
		Note:    req.Note,
	}))
}

// =============================================================================
// FINE HANDLERS
// =============================================================================

// SetFineFlags waives or pauses the fine on a loan.
func (h *Handler) SetFineFlags(w http.ResponseWriter, r *http.Request) {
	var req FineFlagsRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, r)(h.Service.SetFineFlags(r.Context(), chi.URLParam(r, "id"), req.Version, loan.FineFlags{
		NoFine:     req.NoFine,
		FinePaused: req.FinePaused,
		By:         req.Actor,
	}))
}

// FineReport counts loans per status and lists the ones with a fine due.
func (h *Handler) FineReport(w http.ResponseWriter, r *http.Request) {
	results, err := h.Service.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	report := FineReportResponse{
		GeneratedAt:      h.Service.Now(),
		StatusCounts:     make(map[loan.Status]int),
		Outstanding:      []OutstandingFineDTO{},
		TotalOutstanding: generic.NewMoney(0, generic.CurrencyIDR),
	}
	for _, res := range results {
		ev := res.Evaluation
		report.StatusCounts[ev.Status.Status]++
		if ev.Fine == nil || ev.Fine.DaysOverdue == 0 {
			continue
		}
		report.Outstanding = append(report.Outstanding, OutstandingFineDTO{
			LoanID:      res.Loan.ID,
			Borrower:    res.Loan.Borrower,
			Status:      ev.Status.Status,
			DueDate:     ev.DueDate.Date,
			DaysOverdue: ev.Fine.DaysOverdue,
			FineAmount:  ev.Fine.Amount,
			Paused:      ev.Fine.Paused,
		})
		report.TotalOutstanding = report.TotalOutstanding.Add(ev.Fine.Amount)
	}
	sort.Slice(report.Outstanding, func(i, j int) bool {
		a, b := report.Outstanding[i], report.Outstanding[j]
		if a.DaysOverdue != b.DaysOverdue {
			return a.DaysOverdue > b.DaysOverdue
		}
		return a.LoanID < b.LoanID
	})
	writeJSON(w, http.StatusOK, report)
}

// RecomputeFines runs the fine batch synchronously and returns its report.
func (h *Handler) RecomputeFines(w http.ResponseWriter, r *http.Request) {
	var (
		report *loan.BatchReport
		err    error
	)
	if h.Fines != nil {
		report, err = h.Fines.RunNow(r.Context())
	} else {
		report, err = h.Service.RecomputeFines(r.Context())
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ListFineRuns returns the most recent fine batch runs.
func (h *Handler) ListFineRuns(w http.ResponseWriter, r *http.Request) {
	if h.Runs == nil {
		writeJSON(w, http.StatusOK, []FineRunDTO{})
		return
	}
	runs, err := h.Runs.ListFineRuns(r.Context(), 50)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]FineRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = FineRunDTO{
			ID:          run.ID,
			Status:      run.Status,
			Processed:   run.Processed,
			Updated:     run.Updated,
			Skipped:     run.Skipped,
			Failed:      run.Failed,
			Error:       run.Error,
			StartedAt:   run.StartedAt,
			CompletedAt: run.CompletedAt,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Health is the liveness probe. With a DB set it also pings the store.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.DB != nil {
		if err := h.DB.Ping(r.Context()); err != nil {
			h.Logger.Error("health check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "database unavailable", nil)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads and validates the request body. On failure it writes the
// 400 response and returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Message: "validation failed",
				Code:    "validation",
				Details: fields,
			})
			return false
		}
		writeError(w, http.StatusBadRequest, "validation failed", err)
		return false
	}
	return true
}

// respond writes an action result or maps its error.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request) func(*loan.Result, error) {
	return func(res *loan.Result, err error) {
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// fail maps the error taxonomy onto HTTP statuses.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, loan.ErrValidation):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: err.Error(), Code: "validation"})
	case generic.IsRetryable(err):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Message: "loan was modified by another request, reload and retry",
			Code:    "concurrent_modification",
			Details: err.Error(),
		})
	case errors.Is(err, loan.ErrStateConflict):
		writeJSON(w, http.StatusConflict, ErrorResponse{Message: err.Error(), Code: "state_conflict"})
	case generic.IsDuplicate(err):
		writeJSON(w, http.StatusConflict, ErrorResponse{Message: "a loan with this id already exists", Code: "duplicate"})
	case generic.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Message: "loan not found", Code: "not_found"})
	default:
		h.Logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Message: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Message: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

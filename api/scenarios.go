/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	loans for demos and manual testing. Each scenario drives loans through
	the same service actions the API exposes, so every seeded loan went
	through the real validation and projection path.

AVAILABLE SCENARIOS:

	overdue:     Borrowed loans, one past its due date, one not yet due
	returns:     Return threads in every state (open, follow-up, resubmitted, completed)
	extensions:  Pending and approved extension requests
	fine-flags:  Waived and paused fines on overdue loans
	legacy:      Raw documents with the inconsistencies older clients wrote

HOW SCENARIOS WORK:
 1. Reset the store (clear all loans and fine runs)
 2. Create each loan from a draft dated relative to today
 3. Thread the returned version through each following action
 4. For legacy, insert documents as-is, bypassing the actions

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "returns"}

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Action handlers the loaders mirror
  - loan/normalize.go: What the legacy documents exercise
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/warp/equipment-loan/generic"
	"github.com/warp/equipment-loan/loan"
)

// ScenarioStore is the store access demo loading needs beyond the service.
type ScenarioStore interface {
	Reset(ctx context.Context) error
	Create(ctx context.Context, id string, data []byte) (generic.Record, error)
}

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "overdue",
		Name:        "Overdue Loans",
		Description: "Two borrowed cameras, one four days late accruing a fine",
		Category:    "fines",
	},
	{
		ID:          "returns",
		Name:        "Return Threads",
		Description: "Open, follow-up, rejected-then-resubmitted and completed returns",
		Category:    "returns",
	},
	{
		ID:          "extensions",
		Name:        "Extensions",
		Description: "A pending extension request and an approved one moving the due date",
		Category:    "extensions",
	},
	{
		ID:          "fine-flags",
		Name:        "Waived & Paused Fines",
		Description: "Overdue loans with the fine waived or paused by an admin",
		Category:    "fines",
	},
	{
		ID:          "legacy",
		Name:        "Legacy Records",
		Description: "Documents written by older clients: corrupted warehouse status, free-text dates, boolean decisions",
		Category:    "legacy",
	},
}

var scenarioLoaders = map[string]func(h *Handler, ctx context.Context) error{
	"overdue":    loadOverdueScenario,
	"returns":    loadReturnsScenario,
	"extensions": loadExtensionsScenario,
	"fine-flags": loadFineFlagsScenario,
	"legacy":     loadLegacyScenario,
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario resets the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	if h.Scenarios == nil {
		writeError(w, http.StatusNotFound, "scenarios are disabled", nil)
		return
	}
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}
	load, ok := scenarioLoaders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown scenario", nil)
		return
	}

	ctx := r.Context()
	if err := h.Scenarios.Reset(ctx); err != nil {
		h.fail(w, r, fmt.Errorf("reset store: %w", err))
		return
	}
	if err := load(h, ctx); err != nil {
		h.fail(w, r, fmt.Errorf("load scenario %s: %w", req.ScenarioID, err))
		return
	}

	h.Logger.Info("scenario loaded", zap.String("scenario", req.ScenarioID))
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadOverdueScenario(h *Handler, ctx context.Context) error {
	today := wibToday()
	s := &seeder{ctx: ctx, svc: h.Service}

	s.loan(demoDraft("demo-overdue", "andi@example.com", "Sony A7 III", today.AddDays(-14), today.AddDays(-4)),
		s.approveAll, s.handOut)
	s.loan(demoDraft("demo-due-soon", "sari@example.com", "DJI Ronin RS3", today.AddDays(-2), today.AddDays(3)),
		s.approveAll, s.handOut)
	return s.err
}

func loadReturnsScenario(h *Handler, ctx context.Context) error {
	today := wibToday()
	s := &seeder{ctx: ctx, svc: h.Service}

	s.loan(demoDraft("demo-return-open", "andi@example.com", "Canon EF 50mm", today.AddDays(-7), today.AddDays(1)),
		s.approveAll, s.handOut, s.requestReturn("lens back in its case"))
	s.loan(demoDraft("demo-return-follow-up", "budi@example.com", "Zoom H6 recorder", today.AddDays(-10), today.AddDays(-1)),
		s.approveAll, s.handOut, s.requestReturn("returning everything"),
		s.processReturn(loan.ReturnFollowUp, "windscreen missing"))
	s.loan(demoDraft("demo-return-resubmitted", "rina@example.com", "Aputure 300d", today.AddDays(-9), today.AddDays(-2)),
		s.approveAll, s.handOut, s.requestReturn("light returned"),
		s.processReturn(loan.ReturnRejected, "no photo of the power cable"),
		s.requestReturn("cable photo attached"))
	s.loan(demoDraft("demo-return-completed", "sari@example.com", "Manfrotto tripod", today.AddDays(-6), today.AddDays(-3)),
		s.approveAll, s.handOut, s.requestReturn("tripod returned"),
		s.processReturn(loan.ReturnAccepted, ""), s.completeReturn)
	return s.err
}

func loadExtensionsScenario(h *Handler, ctx context.Context) error {
	today := wibToday()
	s := &seeder{ctx: ctx, svc: h.Service}

	s.loan(demoDraft("demo-extension-pending", "andi@example.com", "Sony FX3", today.AddDays(-5), today.AddDays(2)),
		s.approveAll, s.handOut, s.requestExtension(today.AddDays(9), "shoot moved to next week"))
	s.loan(demoDraft("demo-extension-approved", "budi@example.com", "Rode NTG5", today.AddDays(-8), today.AddDays(-1)),
		s.approveAll, s.handOut, s.requestExtension(today.AddDays(4), "second recording day"),
		s.decideExtension(true, ""))
	return s.err
}

func loadFineFlagsScenario(h *Handler, ctx context.Context) error {
	today := wibToday()
	s := &seeder{ctx: ctx, svc: h.Service}
	yes := true

	s.loan(demoDraft("demo-fine-waived", "rina@example.com", "GoPro Hero 12", today.AddDays(-12), today.AddDays(-5)),
		s.approveAll, s.handOut, s.fineFlags(loan.FineFlags{NoFine: &yes}))
	s.loan(demoDraft("demo-fine-paused", "andi@example.com", "Atomos Ninja V", today.AddDays(-12), today.AddDays(-5)),
		s.approveAll, s.handOut, s.fineFlags(loan.FineFlags{FinePaused: &yes}))
	return s.err
}

// Legacy documents are inserted verbatim. Reading them exercises the
// normalization and tolerant decoding paths.
var legacyDocuments = map[string]string{
	// warehouseStatus overwritten with the return status; previousStatus
	// still remembers the hand-out.
	"legacy-corrupted-warehouse": `{
		"id": "legacy-corrupted-warehouse",
		"borrower": "andi@example.com",
		"companies": ["ACME"],
		"outDate": "2025-01-02",
		"returnDate": "2025-01-09",
		"approvals": {"ACME": {"approved": true, "approvedBy": "budi"}},
		"warehouseStatus": {"status": "returned", "processedBy": "gudang"},
		"returnStatus": {"status": "returned", "previousStatus": "borrowed"}
	}`,
	// Free-text return date and an extension decided with a bare boolean.
	"legacy-free-text": `{
		"id": "legacy-free-text",
		"borrower": "sari@example.com",
		"companies": ["ACME", "Globex"],
		"outDate": "2025-02-01T08:00:00+07:00",
		"returnDate": "secepatnya",
		"approvals": {
			"ACME": {"approved": true},
			"Globex": {"approved": true}
		},
		"warehouseStatus": {"status": "Dipinjam"},
		"extendStatus": [
			{"requestedReturnDate": "2025-02-20", "requestBy": "sari@example.com", "approveStatus": true}
		]
	}`,
	// An explicit status override that no longer means anything.
	"legacy-unknown-override": `{
		"id": "legacy-unknown-override",
		"borrower": "budi@example.com",
		"companies": ["ACME"],
		"outDate": "2025-03-01",
		"returnDate": "2025-03-05",
		"approvals": {"ACME": {"approved": null}},
		"loanStatus": "ARCHIVED_V1"
	}`,
}

func loadLegacyScenario(h *Handler, ctx context.Context) error {
	for id, doc := range legacyDocuments {
		if !json.Valid([]byte(doc)) {
			return fmt.Errorf("legacy document %s is not valid JSON", id)
		}
		if _, err := h.Scenarios.Create(ctx, id, []byte(doc)); err != nil {
			return fmt.Errorf("insert %s: %w", id, err)
		}
	}
	return nil
}

// =============================================================================
// SEEDER
// =============================================================================

// step is one service action on an existing loan.
type step func(id string, version int64) (*loan.Result, error)

// seeder creates loans and threads versions through their actions. The
// first error stops every later call.
type seeder struct {
	ctx context.Context
	svc *loan.Service
	err error
}

func (s *seeder) loan(d loan.Draft, steps ...func(*loan.Result) step) {
	if s.err != nil {
		return
	}
	res, err := s.svc.Create(s.ctx, d)
	if err != nil {
		s.err = fmt.Errorf("create %s: %w", d.ID, err)
		return
	}
	for i, mk := range steps {
		res, err = mk(res)(res.Loan.ID, res.Version)
		if err != nil {
			s.err = fmt.Errorf("%s step %d: %w", d.ID, i+1, err)
			return
		}
	}
}

func (s *seeder) approveAll(res *loan.Result) step {
	return func(id string, version int64) (*loan.Result, error) {
		out := res
		for _, company := range res.Loan.Companies {
			var err error
			out, err = s.svc.DecideApproval(s.ctx, id, version, loan.ApprovalDecision{
				Company: company,
				Approve: true,
				By:      "approver@" + company,
			})
			if err != nil {
				return nil, err
			}
			version = out.Version
		}
		return out, nil
	}
}

func (s *seeder) handOut(*loan.Result) step {
	return func(id string, version int64) (*loan.Result, error) {
		return s.svc.ProcessWarehouse(s.ctx, id, version, loan.WarehouseAction{By: "gudang", Note: "checked and packed"})
	}
}

func (s *seeder) requestReturn(note string) func(*loan.Result) step {
	return func(res *loan.Result) step {
		return func(id string, version int64) (*loan.Result, error) {
			return s.svc.SubmitReturn(s.ctx, id, version, loan.ReturnSubmission{
				By:     res.Loan.Borrower,
				Note:   note,
				Photos: []loan.PhotoResult{{URL: "https://files.example.com/" + id + ".jpg", Caption: "returned equipment"}},
			})
		}
	}
}

func (s *seeder) processReturn(outcome loan.ReturnRequestStatus, note string) func(*loan.Result) step {
	return func(*loan.Result) step {
		return func(id string, version int64) (*loan.Result, error) {
			return s.svc.ProcessReturn(s.ctx, id, version, loan.ReturnDecision{Outcome: outcome, By: "gudang", Note: note})
		}
	}
}

func (s *seeder) completeReturn(*loan.Result) step {
	return func(id string, version int64) (*loan.Result, error) {
		return s.svc.CompleteReturn(s.ctx, id, version, loan.ReturnCompletion{By: "gudang", Note: "all items checked in"})
	}
}

func (s *seeder) requestExtension(to generic.TimePoint, note string) func(*loan.Result) step {
	return func(res *loan.Result) step {
		return func(id string, version int64) (*loan.Result, error) {
			return s.svc.SubmitExtension(s.ctx, id, version, loan.ExtensionSubmission{
				RequestedReturnDate: to,
				By:                  res.Loan.Borrower,
				Note:                note,
			})
		}
	}
}

func (s *seeder) decideExtension(approve bool, note string) func(*loan.Result) step {
	return func(*loan.Result) step {
		return func(id string, version int64) (*loan.Result, error) {
			return s.svc.DecideExtension(s.ctx, id, version, loan.ExtensionDecision{Approve: approve, By: "budi", Note: note})
		}
	}
}

func (s *seeder) fineFlags(f loan.FineFlags) func(*loan.Result) step {
	return func(*loan.Result) step {
		return func(id string, version int64) (*loan.Result, error) {
			f.By = "admin"
			return s.svc.SetFineFlags(s.ctx, id, version, f)
		}
	}
}

func demoDraft(id, borrower, product string, out, due generic.TimePoint) loan.Draft {
	return loan.Draft{
		ID:           id,
		Borrower:     borrower,
		Companies:    []string{"ACME", "Globex"},
		NeedType:     "production",
		OutDate:      out,
		UseDate:      out,
		ReturnDate:   due,
		Product:      product,
		PickupMethod: "pickup",
		Submit:       true,
	}
}

func wibToday() generic.TimePoint {
	t := time.Now().In(loan.DefaultLocation)
	return generic.NewTimePoint(t.Year(), t.Month(), t.Day())
}

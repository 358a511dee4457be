package loan

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/warp/equipment-loan/generic"
	"github.com/warp/equipment-loan/metrics"
)

// =============================================================================
// ENGINE - One entry point for every derived value
// =============================================================================

// Engine composes the derivations. List views, detail views, the fine batch
// and the action responses all call Evaluate; none of them re-derive status,
// due date or fine on their own.
type Engine struct {
	Fines  FinePolicy
	Logger *zap.Logger
}

// NewEngine returns an engine using the given fine policy.
func NewEngine(fines FinePolicy, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{Fines: fines, Logger: logger}
}

// Evaluation is everything derived from one loan snapshot.
type Evaluation struct {
	Status           Resolution     `json:"status"`
	DueDate          DueDate        `json:"dueDate"`
	Fine             *Fine          `json:"fine"`
	LoanDuration     *Duration      `json:"loanDuration"`
	Threads          []ReturnThread `json:"returnThreads,omitempty"`
	OpenReturn       *ReturnRequest `json:"openReturn,omitempty"`
	AcceptedReturn   *ReturnRequest `json:"acceptedReturn,omitempty"`
	PendingExtension *ExtendRequest `json:"pendingExtension,omitempty"`
	LatestDecision   *ExtendRequest `json:"latestExtensionDecision,omitempty"`
	Permissions      Permissions    `json:"permissions"`
	Warnings         []Warning      `json:"warnings,omitempty"`
}

// Permissions tells a client which actions the current state admits.
type Permissions struct {
	CanProcessReturn    bool `json:"canProcessReturn"`
	CanCompleteReturn   bool `json:"canCompleteReturn"`
	CanRequestReturn    bool `json:"canRequestReturn"`
	CanRequestExtension bool `json:"canRequestExtension"`
	CanDecideExtension  bool `json:"canDecideExtension"`
}

// Evaluate derives status, due date, fine, duration and the sub-workflow
// projections. It never fails: a panic in any derivation is logged and
// turned into a safe evaluation carrying a warning.
func (e *Engine) Evaluate(l *Loan, now time.Time) (ev Evaluation) {
	defer func() {
		if r := recover(); r != nil {
			id := ""
			if l != nil {
				id = l.ID
			}
			e.logger().Error("loan evaluation panicked", zap.String("loan_id", id), zap.Any("panic", r))
			ev = Evaluation{
				Status:  Resolution{Status: StatusPendingApproval, Rule: RuleDefault},
				DueDate: DueDate{Source: SourceSubmitted, ExtensionIndex: -1},
				Warnings: []Warning{{
					Code:    WarnDerivationPanic,
					Field:   "loan",
					Message: fmt.Sprint(r),
				}},
			}
		}
	}()

	ev.Status = ResolveStatus(l)
	ev.DueDate = ResolveDueDate(l)

	status := ev.Status.Status
	ev.Fine = e.Fines.Calculate(FineInputFor(l, status, ev.DueDate.Date, now))
	if l != nil {
		ev.LoanDuration = CalculateDuration(l.OutDate, ev.DueDate.Date, e.Fines.Location)
	}

	ev.Threads = Threads(l)
	if r, _, ok := OpenReturn(l); ok {
		ev.OpenReturn = &r
	}
	if r, _, ok := LatestAcceptedReturn(l); ok {
		ev.AcceptedReturn = &r
	}
	if x, _, ok := PendingExtension(l); ok {
		ev.PendingExtension = &x
	}
	if x, _, ok := LatestDecision(l); ok {
		ev.LatestDecision = &x
	}
	ev.Permissions = Permissions{
		CanProcessReturn:    ev.OpenReturn != nil,
		CanCompleteReturn:   ev.AcceptedReturn != nil,
		CanRequestReturn:    ev.OpenReturn == nil && status.WithBorrower(),
		CanRequestExtension: CanRequestExtension(l, status),
		CanDecideExtension:  ev.PendingExtension != nil,
	}

	ev.Warnings = append(ev.Warnings, ev.Status.Warnings...)
	ev.Warnings = append(ev.Warnings, ev.DueDate.Warnings...)
	if ev.Fine != nil {
		ev.Warnings = append(ev.Warnings, ev.Fine.Warnings...)
	}
	if l != nil && l.OutDate.Malformed() {
		ev.Warnings = append(ev.Warnings, Warning{
			Code:    WarnMalformedDate,
			Field:   "outDate",
			Value:   l.OutDate.Raw,
			Message: "out date is not a date",
		})
	}
	if l != nil && l.TotalDenda.Malformed() {
		ev.Warnings = append(ev.Warnings, Warning{
			Code:    WarnMalformedCache,
			Field:   "totalDenda",
			Value:   l.TotalDenda.Raw(),
			Message: "cached fine is unreadable; it is recomputed on the next write",
		})
	}
	e.logWarnings(l, ev.Warnings)
	return ev
}

// FineCache builds the totalDenda value for the loan, or nil when no fine
// applies.
func (e *Engine) FineCache(l *Loan, now time.Time) *FineCache {
	fine := e.Evaluate(l, now).Fine
	if fine == nil {
		return nil
	}
	return &FineCache{
		DaysOverdue: fine.DaysOverdue,
		FineAmount:  fine.Amount,
		UpdatedAt:   generic.At(now),
	}
}

// SameFine reports whether two caches hold the same fine, ignoring when
// they were computed. A malformed cache never matches.
func SameFine(a, b *FineCache) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Malformed() || b.Malformed() {
		return false
	}
	return a.DaysOverdue == b.DaysOverdue && a.FineAmount.Value.Equal(b.FineAmount.Value)
}

func (e *Engine) logWarnings(l *Loan, warnings []Warning) {
	if len(warnings) == 0 {
		return
	}
	id := ""
	if l != nil {
		id = l.ID
	}
	log := e.logger()
	for _, w := range warnings {
		metrics.DerivationWarningsTotal.WithLabelValues(w.Code).Inc()
		log.Warn("loan derivation warning",
			zap.String("loan_id", id),
			zap.String("code", w.Code),
			zap.String("field", w.Field),
			zap.String("value", w.Value),
			zap.String("message", w.Message),
		)
	}
}

func (e *Engine) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

package loan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/warp/equipment-loan/generic"
	"github.com/warp/equipment-loan/metrics"
)

// =============================================================================
// SERVICE - Read, mutate, re-derive, compare-and-swap
// =============================================================================
//
// Every action follows the same path:
//
//   1. load the whole loan with its version
//   2. reject early if the caller read an older version
//   3. apply the legacy normalization and the action
//   4. re-project returnStatus and totalDenda from the post-merge loan
//   5. write back only if the stored version is still the one read in 1
//
// A lost race surfaces as *ConcurrencyConflictError and nothing is written.

// Result is a loan as stored after an action, with its derived values.
type Result struct {
	Loan       *Loan      `json:"loan"`
	Version    int64      `json:"version"`
	Evaluation Evaluation `json:"evaluation"`
}

type Service struct {
	repo             *Repository
	engine           *Engine
	logger           *zap.Logger
	now              func() time.Time
	newID            func() string
	batchConcurrency int
}

type ServiceOption func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces the UUID generator for loan and return ids.
func WithIDGenerator(newID func() string) ServiceOption {
	return func(s *Service) { s.newID = newID }
}

// WithBatchConcurrency bounds the number of loans the fine batch handles
// at once.
func WithBatchConcurrency(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.batchConcurrency = n
		}
	}
}

func NewService(repo *Repository, engine *Engine, logger *zap.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		repo:             repo,
		engine:           engine,
		logger:           logger,
		now:              time.Now,
		newID:            uuid.NewString,
		batchConcurrency: 4,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine exposes the derivation engine the service evaluates with.
func (s *Service) Engine() *Engine { return s.engine }

// Now is the service clock every evaluation runs at.
func (s *Service) Now() time.Time { return s.now() }

// =============================================================================
// READS
// =============================================================================

// Get returns one loan evaluated at the current instant.
func (s *Service) Get(ctx context.Context, id string) (*Result, error) {
	stored, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.result(stored, s.now()), nil
}

// List returns every loan that decodes. Broken records are logged and
// left out so one bad document cannot break the listing.
func (s *Service) List(ctx context.Context) ([]Result, error) {
	stored, bad, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range bad {
		s.logger.Warn("skipping undecodable loan", zap.Error(e))
	}
	now := s.now()
	results := make([]Result, 0, len(stored))
	for i := range stored {
		results = append(results, *s.result(&stored[i], now))
	}
	return results, nil
}

func (s *Service) result(stored *Stored, now time.Time) *Result {
	return &Result{
		Loan:       stored.Loan,
		Version:    stored.Version,
		Evaluation: s.engine.Evaluate(stored.Loan, now),
	}
}

// =============================================================================
// ACTIONS
// =============================================================================

// Create opens a new loan, as a draft or submitted.
func (s *Service) Create(ctx context.Context, d Draft) (res *Result, err error) {
	defer func() { s.record("create", err) }()

	now := s.now()
	if d.ID == "" {
		d.ID = s.newID()
	}
	if d.At.IsZero() {
		d.At = now
	}
	l, err := NewLoan(d)
	if err != nil {
		return nil, err
	}
	stored, err := s.repo.Create(ctx, l)
	if err != nil {
		return nil, err
	}
	s.logger.Info("loan created", zap.String("loan_id", l.ID), zap.Bool("draft", l.IsDraft))
	return s.result(stored, now), nil
}

// Submit sends a draft out for approval.
func (s *Service) Submit(ctx context.Context, id string, version int64) (*Result, error) {
	return s.mutate(ctx, "submit", id, version, func(l *Loan, now time.Time) error {
		return Submit(l, now)
	})
}

func (s *Service) DecideApproval(ctx context.Context, id string, version int64, d ApprovalDecision) (*Result, error) {
	return s.mutate(ctx, "approval", id, version, func(l *Loan, now time.Time) error {
		d.At = stamp(d.At, now)
		return DecideApproval(l, d)
	})
}

func (s *Service) ProcessWarehouse(ctx context.Context, id string, version int64, a WarehouseAction) (*Result, error) {
	return s.mutate(ctx, "warehouse_process", id, version, func(l *Loan, now time.Time) error {
		a.At = stamp(a.At, now)
		return ProcessWarehouse(l, a)
	})
}

func (s *Service) RejectWarehouse(ctx context.Context, id string, version int64, a WarehouseAction) (*Result, error) {
	return s.mutate(ctx, "warehouse_reject", id, version, func(l *Loan, now time.Time) error {
		a.At = stamp(a.At, now)
		return RejectWarehouse(l, a)
	})
}

func (s *Service) SubmitReturn(ctx context.Context, id string, version int64, sub ReturnSubmission) (*Result, error) {
	return s.mutate(ctx, "return_request", id, version, func(l *Loan, now time.Time) error {
		sub.At = stamp(sub.At, now)
		if sub.ID == "" {
			sub.ID = s.newID()
		}
		_, err := SubmitReturn(l, sub)
		return err
	})
}

func (s *Service) ProcessReturn(ctx context.Context, id string, version int64, d ReturnDecision) (*Result, error) {
	return s.mutate(ctx, "return_process", id, version, func(l *Loan, now time.Time) error {
		d.At = stamp(d.At, now)
		_, err := ProcessReturn(l, d)
		return err
	})
}

func (s *Service) CompleteReturn(ctx context.Context, id string, version int64, c ReturnCompletion) (*Result, error) {
	return s.mutate(ctx, "return_complete", id, version, func(l *Loan, now time.Time) error {
		c.At = stamp(c.At, now)
		_, err := CompleteReturn(l, c)
		return err
	})
}

func (s *Service) SubmitExtension(ctx context.Context, id string, version int64, sub ExtensionSubmission) (*Result, error) {
	return s.mutate(ctx, "extension_request", id, version, func(l *Loan, now time.Time) error {
		sub.At = stamp(sub.At, now)
		_, err := SubmitExtension(l, sub)
		return err
	})
}

func (s *Service) DecideExtension(ctx context.Context, id string, version int64, d ExtensionDecision) (*Result, error) {
	return s.mutate(ctx, "extension_decision", id, version, func(l *Loan, now time.Time) error {
		d.At = stamp(d.At, now)
		_, err := DecideExtension(l, d)
		return err
	})
}

func (s *Service) SetFineFlags(ctx context.Context, id string, version int64, f FineFlags) (*Result, error) {
	return s.mutate(ctx, "fine_flags", id, version, func(l *Loan, now time.Time) error {
		f.At = stamp(f.At, now)
		return SetFineFlags(l, f)
	})
}

// mutate runs one action under compare-and-swap. version 0 skips the
// client-side check; the store-level check always applies.
func (s *Service) mutate(ctx context.Context, action, id string, version int64, apply func(*Loan, time.Time) error) (res *Result, err error) {
	defer func() { s.record(action, err) }()

	stored, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if version > 0 && version != stored.Version {
		return nil, &ConcurrencyConflictError{LoanID: id, ExpectedVersion: version, StoredVersion: stored.Version}
	}

	now := s.now()
	l, repairs := Normalize(stored.Loan)
	for _, w := range repairs {
		metrics.DerivationWarningsTotal.WithLabelValues(w.Code).Inc()
		s.logger.Warn("legacy status repaired on write",
			zap.String("loan_id", id),
			zap.String("action", action),
			zap.String("field", w.Field),
			zap.String("value", w.Value),
			zap.String("message", w.Message),
		)
	}
	if err := apply(l, now); err != nil {
		return nil, err
	}
	ProjectReturnStatus(l)
	l.TotalDenda = s.nextFineCache(l, now)

	saved, err := s.repo.Save(ctx, l, stored.Version)
	if err != nil {
		return nil, err
	}
	s.logger.Info("loan action applied",
		zap.String("loan_id", id),
		zap.String("action", action),
		zap.Int64("version", saved.Version),
	)
	return s.result(saved, now), nil
}

// nextFineCache recomputes totalDenda, keeping the old value (and its
// timestamp) when the fine did not change.
func (s *Service) nextFineCache(l *Loan, now time.Time) *FineCache {
	next := s.engine.FineCache(l, now)
	if SameFine(l.TotalDenda, next) {
		return l.TotalDenda
	}
	return next
}

func (s *Service) record(action string, err error) {
	metrics.LoanActionsTotal.WithLabelValues(action, outcome(err)).Inc()
	if errors.Is(err, generic.ErrConcurrentModification) {
		metrics.ConcurrencyConflictsTotal.Inc()
	}
	if err != nil && !IsClientError(err) && !generic.IsRetryable(err) && !generic.IsNotFound(err) && !generic.IsDuplicate(err) {
		s.logger.Error("loan action failed", zap.String("action", action), zap.Error(err))
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrStateConflict):
		return "conflict"
	case errors.Is(err, generic.ErrConcurrentModification):
		return "concurrency"
	case errors.Is(err, generic.ErrEntityNotFound):
		return "not_found"
	case errors.Is(err, generic.ErrDuplicateRecord):
		return "duplicate"
	default:
		return "error"
	}
}

func stamp(t, now time.Time) time.Time {
	if t.IsZero() {
		return now
	}
	return t
}

// =============================================================================
// FINE BATCH
// =============================================================================

// BatchReport summarizes one fine recomputation pass.
type BatchReport struct {
	Processed   int          `json:"processed"`
	Updated     int          `json:"updated"`
	Skipped     int          `json:"skipped"`
	Failed      int          `json:"failed"`
	Errors      []BatchError `json:"errors,omitempty"`
	StartedAt   time.Time    `json:"startedAt"`
	CompletedAt time.Time    `json:"completedAt"`
}

// BatchError is the failure of one loan within a batch.
type BatchError struct {
	LoanID  string `json:"loanId"`
	Message string `json:"message"`
}

const (
	batchUpdated = "updated"
	batchSkipped = "skipped"
	batchFailed  = "failed"
)

func (r *BatchReport) add(loanID, result string, err error) {
	r.Processed++
	switch result {
	case batchUpdated:
		r.Updated++
	case batchSkipped:
		r.Skipped++
	default:
		r.Failed++
		r.Errors = append(r.Errors, BatchError{LoanID: loanID, Message: err.Error()})
	}
	metrics.FineLoansTotal.WithLabelValues(result).Inc()
}

// maxFineAttempts bounds the retries of one loan after lost write races.
const maxFineAttempts = 3

// RecomputeFines refreshes totalDenda on every loan. Loans are handled
// independently: a decode error, a panic or a lost race on one loan is
// reported in the result and the batch moves on. Only a failure to list
// the loans fails the call.
func (s *Service) RecomputeFines(ctx context.Context) (*BatchReport, error) {
	report := &BatchReport{StartedAt: s.now()}
	stored, bad, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range bad {
		id := ""
		var de *DecodeError
		if errors.As(e, &de) {
			id = de.LoanID
		}
		report.add(id, batchFailed, e)
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.batchConcurrency)
	for i := range stored {
		st := stored[i]
		g.Go(func() error {
			result, err := s.recomputeOne(ctx, st)
			mu.Lock()
			report.add(st.Loan.ID, result, err)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	report.CompletedAt = s.now()
	s.logger.Info("fine recomputation finished",
		zap.Int("processed", report.Processed),
		zap.Int("updated", report.Updated),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Duration("elapsed", report.CompletedAt.Sub(report.StartedAt)),
	)
	return report, nil
}

func (s *Service) recomputeOne(ctx context.Context, st Stored) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = batchFailed, fmt.Errorf("panic: %v", r)
			s.logger.Error("fine recomputation panicked", zap.String("loan_id", st.Loan.ID), zap.Any("panic", r))
		}
	}()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return batchFailed, err
		}
		now := s.now()
		next := s.engine.FineCache(st.Loan, now)
		if SameFine(st.Loan.TotalDenda, next) {
			return batchSkipped, nil
		}

		l := *st.Loan
		l.TotalDenda = next
		_, err := s.repo.Save(ctx, &l, st.Version)
		if err == nil {
			return batchUpdated, nil
		}
		if !generic.IsRetryable(err) || attempt >= maxFineAttempts {
			s.logger.Warn("fine update failed", zap.String("loan_id", st.Loan.ID), zap.Int("attempt", attempt), zap.Error(err))
			return batchFailed, err
		}

		reloaded, getErr := s.repo.Get(ctx, st.Loan.ID)
		if getErr != nil {
			return batchFailed, getErr
		}
		st = *reloaded
	}
}

package loan

import (
	"errors"
	"fmt"

	"github.com/warp/equipment-loan/generic"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned when caller input is incomplete or malformed.
	ErrValidation = errors.New("validation failed")

	// ErrStateConflict is returned when the loan is not in the state an
	// action requires.
	ErrStateConflict = errors.New("state conflict")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports missing or malformed caller input. Nothing is
// persisted when it is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func required(field string) error {
	return &ValidationError{Field: field, Message: "is required"}
}

// StateConflictError reports an action attempted against a loan whose
// sub-state does not meet the action's precondition.
type StateConflictError struct {
	LoanID  string
	Action  string
	Current Status
	Reason  string
}

func (e *StateConflictError) Error() string {
	if e.Current != "" {
		return fmt.Sprintf("cannot %s loan %s in status %s: %s", e.Action, e.LoanID, e.Current, e.Reason)
	}
	return fmt.Sprintf("cannot %s loan %s: %s", e.Action, e.LoanID, e.Reason)
}

func (e *StateConflictError) Unwrap() error { return ErrStateConflict }

func conflict(l *Loan, action string, current Status, reason string) error {
	return &StateConflictError{LoanID: l.ID, Action: action, Current: current, Reason: reason}
}

// ConcurrencyConflictError reports that the stored loan changed after the
// caller read it. The caller should reload and retry.
type ConcurrencyConflictError struct {
	LoanID          string
	ExpectedVersion int64
	StoredVersion   int64
}

func (e *ConcurrencyConflictError) Error() string {
	if e.StoredVersion > 0 {
		return fmt.Sprintf("loan %s was modified (expected version %d, stored %d): reload and retry",
			e.LoanID, e.ExpectedVersion, e.StoredVersion)
	}
	return fmt.Sprintf("loan %s was modified since version %d: reload and retry", e.LoanID, e.ExpectedVersion)
}

func (e *ConcurrencyConflictError) Unwrap() error { return generic.ErrConcurrentModification }

// DecodeError reports a stored document that is not valid JSON for a Loan.
type DecodeError struct {
	LoanID string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode loan %s: %v", e.LoanID, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// =============================================================================
// DERIVATION WARNINGS - Never returned as errors
// =============================================================================

// Warning describes input the derivations tolerated: an unknown token, a
// malformed date. Warnings are logged and shown, never thrown.
type Warning struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

const (
	WarnUnknownToken     = "unknown_token"
	WarnMalformedDate    = "malformed_date"
	WarnMalformedCache   = "malformed_cache"
	WarnStatusOverlap    = "status_overlap"
	WarnMissingPauseTime = "missing_pause_instant"
	WarnNilLoan          = "nil_loan"
	WarnDerivationPanic  = "derivation_panic"
)

// IsClientError returns true if the error is due to invalid client input
// or a precondition the client can observe.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrStateConflict)
}

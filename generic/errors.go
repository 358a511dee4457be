/*
errors.go - Centralized error types for the generic engine

PURPOSE:
  Sentinel errors shared by stores and the loan package. Domain packages
  wrap these with structured errors that carry context.

ERROR CATEGORIES:
  1. Store errors - Missing records, version conflicts
  2. Workflow errors - Transitions not permitted by a transition table
  3. Input errors - Malformed periods

USAGE:
    if errors.Is(err, generic.ErrConcurrentModification) {
        // reload and retry
    }

SEE ALSO:
  - store.go: Uses these errors
  - loan/errors.go: Wraps these errors with domain context
*/
package generic

import "errors"

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrConcurrentModification is returned when optimistic locking detects a conflict.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrEntityNotFound is returned when a referenced record doesn't exist.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrDuplicateRecord is returned when creating a record whose id is taken.
	ErrDuplicateRecord = errors.New("duplicate record")

	// ErrInvalidTransition is returned when a transition table forbids a move.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")
)

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsDuplicate returns true if the error indicates an id that is taken.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicateRecord)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntityNotFound)
}

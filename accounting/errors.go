/*
errors.go - Centralized error types for the accounting engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every error the engine returns unwraps to exactly one sentinel, so callers
  branch with errors.Is and the api maps sentinels to HTTP status codes.

ERROR CATEGORIES:
  1. Validation  - malformed input, bad financial-year label, bad entry shape
  2. NotFound    - unknown (or not owned) invoice, customer or ledger entry
  3. Conflict    - a uniqueness rule of the store fired (customer name, invoice id)
  4. Consistency - stored data contradicts an invariant the engine relies on
                   (mirror row count, unparseable invoice suffix)
  5. Database    - anything else the store reported

  Not-found and not-owned are deliberately indistinguishable: every lookup is
  scoped by user, so another user's invoice simply does not exist.

USAGE:
    if errors.Is(err, accounting.ErrNotFound) {
        // 404
    }

    var ce *accounting.ConsistencyError
    if errors.As(err, &ce) {
        // page someone; the transaction was rolled back
    }

SEE ALSO:
  - engine.go: wraps store failures into DatabaseError
  - api/handlers.go: maps sentinels to status codes
*/
package accounting

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for rejected input. Nothing was written.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a record does not exist for the user.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write violates a uniqueness rule.
	ErrConflict = errors.New("conflict")

	// ErrConsistency is returned when stored data breaks an engine invariant.
	ErrConsistency = errors.New("data inconsistency")

	// ErrDatabase is returned for store failures (connectivity, lock timeouts, deadlocks).
	ErrDatabase = errors.New("database error")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NotFoundError identifies what was looked up.
type NotFoundError struct {
	Kind string // "invoice", "customer", "ledger entry"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// ConflictError reports a uniqueness violation from the store.
type ConflictError struct {
	Message string
	Err     error
}

func (e *ConflictError) Error() string {
	return e.Message
}

func (e *ConflictError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConflict}
	}
	return []error{ErrConflict, e.Err}
}

// ConsistencyError reports stored data that an operation refuses to build on.
type ConsistencyError struct {
	Message string
}

func (e *ConsistencyError) Error() string {
	return "inconsistent data: " + e.Message
}

func (e *ConsistencyError) Unwrap() error {
	return ErrConsistency
}

// DatabaseError wraps a raw store failure with the operation that hit it.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() []error {
	return []error{ErrDatabase, e.Err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrConflict)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// isEngineError reports whether err already belongs to the taxonomy above.
func isEngineError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrConsistency) ||
		errors.Is(err, ErrDatabase)
}

// storeError classifies an error that came out of a store call.
func storeError(op string, err error) error {
	if err == nil || isEngineError(err) {
		return err
	}
	return &DatabaseError{Op: op, Err: err}
}

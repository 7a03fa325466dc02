/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages (issue, inventory, rebuild) wrap these with context.

ERROR CATEGORIES:
  1. Not-found errors - referenced entity/document/BOM version absent
  2. State errors - document state machine preconditions violated
  3. Unit errors - conversion across incompatible families (recoverable)
  4. Persistence errors - snapshot store failures (always fatal to the op)

USAGE:
  Callers classify with the helpers:

    if ledger.IsInvalidState(err) {
        // 409 at the HTTP boundary, abort at the CLI
    }

SEE ALSO:
  - store.go: persistence boundary returning PersistenceError
  - issue/: InvalidStateError on post/cancel preconditions
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced entity, document, or BOM
	// version does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when a document state machine precondition
	// is violated (posting a POSTED issue, cancelling a DRAFT one).
	ErrInvalidState = errors.New("invalid state")

	// ErrUnitConversion is returned when two units belong to different
	// families or either is unrecognized. Recoverable: callers degrade to a
	// raw-quantity passthrough with an annotated reason.
	ErrUnitConversion = errors.New("unit conversion failed")

	// ErrPersistence is returned when the snapshot store cannot load or save.
	// Always fatal to the current operation; in-memory changes are discarded.
	ErrPersistence = errors.New("persistence failure")

	// ErrAmbiguousName is returned when name-based entity resolution matches
	// more than one entity. Never silently resolved to the first match.
	ErrAmbiguousName = errors.New("ambiguous entity name")

	// ErrInsufficientStock is returned when an outbound document would drive
	// stock below zero and the caller asked for the guard.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrLockTimeout is returned when the cooperative store lock could not be
	// acquired within the configured wait.
	ErrLockTimeout = errors.New("store lock timeout")

	// ErrStoreRequired is returned when an operation needs a store and none
	// was injected.
	ErrStoreRequired = errors.New("snapshot store required")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError identifies what was looked up and missed.
type NotFoundError struct {
	Kind string // "raw_material", "product", "issue", "bom_version", ...
	ID   int64
	Name string // set when the lookup was by name
}

func (e *NotFoundError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
	}
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InvalidStateError reports a state machine precondition violation.
type InvalidStateError struct {
	Doc     string // "issue", "goods_receipt", ...
	ID      int64
	Current string
	Want    string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s %d is %s, must be %s", e.Doc, e.ID, e.Current, e.Want)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// UnitConversionError reports an impossible conversion.
type UnitConversionError struct {
	From Unit
	To   Unit
}

func (e *UnitConversionError) Error() string {
	return fmt.Sprintf("cannot convert %q to %q", e.From, e.To)
}

func (e *UnitConversionError) Unwrap() error { return ErrUnitConversion }

// PersistenceError wraps a store failure with the operation that hit it.
type PersistenceError struct {
	Op  string // "load", "save", "backup", "lock"
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return ErrPersistence }

// AmbiguousNameError lists the entity ids sharing one name.
type AmbiguousNameError struct {
	Class EntityClass
	Name  string
	IDs   []int64
}

func (e *AmbiguousNameError) Error() string {
	return fmt.Sprintf("%s name %q matches %d entities %v", e.Class, e.Name, len(e.IDs), e.IDs)
}

func (e *AmbiguousNameError) Unwrap() error { return ErrAmbiguousName }

// InsufficientStockError reports a shortage blocking an outbound document.
type InsufficientStockError struct {
	Class     EntityClass
	EntityID  int64
	Name      string
	Available Quantity
	Requested Quantity
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s %q: available %s, requested %s",
		e.Class, e.Name, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInvalidState returns true if a state machine precondition failed.
func IsInvalidState(err error) bool { return errors.Is(err, ErrInvalidState) }

// IsConversionFailure returns true for incompatible-unit errors.
func IsConversionFailure(err error) bool { return errors.Is(err, ErrUnitConversion) }

// IsPersistenceFailure returns true if the backing store failed. Such errors
// abort the operation and leave no partial in-memory state behind.
func IsPersistenceFailure(err error) bool { return errors.Is(err, ErrPersistence) }

// IsClientError returns true if the error is due to invalid caller input
// rather than system failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrAmbiguousName) ||
		errors.Is(err, ErrInsufficientStock)
}

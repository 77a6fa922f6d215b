// Package errors defines the sentinel errors shared across farmops.
// All errors can be categorized by callers with errors.Is(), and the web
// layer maps them onto HTTP status codes.
//
// This package must not import any other internal package.
package errors

import "errors"

var (
	// ErrValidation indicates malformed input, e.g. a weekly schedule
	// with an empty day set. Rejected before any persistence.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates a template, task or other record id that
	// does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrPropagation indicates a template-change batch that failed while
	// updating instances. The whole batch is rolled back.
	ErrPropagation = errors.New("propagation failed")

	// ErrConflictResolution indicates a resolve-conflict call that could
	// not be applied. Safe to retry, resolution is idempotent per task.
	ErrConflictResolution = errors.New("conflict resolution failed")

	// ErrNotInConflict indicates a resolution request against a task
	// that the classifier does not consider conflicted.
	ErrNotInConflict = errors.New("task is not in conflict")

	// ErrInvalidTransition indicates a task status change that the
	// lifecycle does not allow (e.g. completing a skipped task).
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInsufficientStock indicates an inventory consumption larger
	// than the quantity on hand.
	ErrInsufficientStock = errors.New("insufficient stock")
)

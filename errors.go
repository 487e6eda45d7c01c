package operations

import (
	"errors"
	"fmt"
)

// Condition failure sentinels, matched with [errors.Is].
var (
	// ErrFalseCondition is returned by FalseCondition, always.
	ErrFalseCondition = errors.New("operations: condition is always false")

	// ErrBlockFailed is returned by BlockCondition when its predicate is false.
	ErrBlockFailed = errors.New("operations: block condition failed")

	// ErrCancelledDependencies is returned by NoFailedDependenciesCondition
	// when at least one dependency was cancelled.
	ErrCancelledDependencies = errors.New("operations: one or more dependencies were cancelled")

	// ErrFailedDependencies is returned by NoFailedDependenciesCondition
	// when at least one dependency finished with errors.
	ErrFailedDependencies = errors.New("operations: one or more dependencies failed")

	// ErrRequirementNotSatisfied is returned by Negated when the wrapped
	// condition is satisfied. No composed condition injects it for a failed
	// indirect dependency.
	ErrRequirementNotSatisfied = errors.New("operations: composed condition requirement not satisfied")

	// ErrDuplicateOperation is recorded as the operation's error (not
	// panicked) when the same Operation value is submitted to a Queue a
	// second time.
	ErrDuplicateOperation = errors.New("operations: operation already submitted to this queue")

	// ErrRetryExhausted is appended to a RetryOperation's final error list
	// when it stops retrying without a successful attempt: the generator
	// is exhausted, the policy declines a further attempt, or MaxCount is
	// reached.
	ErrRetryExhausted = errors.New("operations: retry attempts exhausted")
)

// ParentCancelledError wraps a group's cancellation errors when propagating
// cancellation to a child that supports error-carrying cancel. The Causes
// field and Unwrap() both expose the wrapped causes so errors.Is/errors.As still see
// through to them.
type ParentCancelledError struct {
	Causes []error
}

func (e *ParentCancelledError) Error() string {
	if len(e.Causes) == 0 {
		return "operations: cancelled because parent group was cancelled"
	}
	return fmt.Sprintf("operations: parent group cancelled with %d error(s): %v", len(e.Causes), e.Causes[0])
}

// Unwrap supports multi-error unwrapping for errors.Is/errors.As (Go 1.20+).
func (e *ParentCancelledError) Unwrap() []error { return e.Causes }

// AggregateError bundles every error accumulated by an evaluator, a group's
// fatal-error set, or a finished operation's error list, into a single
// error value while preserving each cause for errors.Is/errors.As.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "operations: no errors"
	case 1:
		return e.Errors[0].Error()
	default:
		return fmt.Sprintf("operations: %d errors, first: %v", len(e.Errors), e.Errors[0])
	}
}

// Unwrap supports multi-error unwrapping for errors.Is/errors.As (Go 1.20+).
func (e *AggregateError) Unwrap() []error { return e.Errors }

// WrapError mirrors fmt.Errorf("%s: %w", message, cause) as a named helper,
// kept for call sites that prefer to name the wrap explicitly.
func WrapError(message string, cause error) error {
	return fmt.Errorf("%s: %w", message, cause)
}

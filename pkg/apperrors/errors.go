// Package apperrors defines the business error taxonomy shared by the order
// and review services. Every error here is a non-retryable rule violation;
// transport or database faults are wrapped with fmt.Errorf and stay outside
// this taxonomy.
package apperrors

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed input: empty items, out-of-range
// rating, missing required field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// AuthError reports that the requester is not the customer/seller the
// attempted action requires.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	if e.Reason == "" {
		return "not permitted"
	}
	return "not permitted: " + e.Reason
}

// InvalidTransitionError reports a status change outside the state machine,
// carrying the current and attempted states for the caller's message.
type InvalidTransitionError struct {
	From, To string
	Reason   string
}

func (e *InvalidTransitionError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

// ConflictError reports a uniqueness violation: duplicate review, duplicate
// reply, or the losing side of a concurrent transition race.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return "conflict: " + e.Reason }

// PreconditionError reports a failed eligibility check, such as an order
// that is not delivered yet.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string { return "precondition failed: " + e.Reason }

// NotFoundError reports that a referenced order or review does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s not found", e.Entity, e.ID) }

func IsValidation(err error) bool {
	var t *ValidationError
	return errors.As(err, &t)
}

func IsAuth(err error) bool {
	var t *AuthError
	return errors.As(err, &t)
}

func IsInvalidTransition(err error) bool {
	var t *InvalidTransitionError
	return errors.As(err, &t)
}

func IsConflict(err error) bool {
	var t *ConflictError
	return errors.As(err, &t)
}

func IsPrecondition(err error) bool {
	var t *PreconditionError
	return errors.As(err, &t)
}

func IsNotFound(err error) bool {
	var t *NotFoundError
	return errors.As(err, &t)
}

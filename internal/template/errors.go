package template

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedTemplate signals a render-time placeholder invariant violation.
// Save-time validation guarantees the placeholder is present exactly once, so
// seeing this at render time is a programming error, not user input.
var ErrMalformedTemplate = errors.New("template: user prompt template must contain the input placeholder exactly once")

// ValidationError reports every violated constraint in user-supplied input.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Violations) == 0 {
		return "template: validation failed"
	}
	return "template: validation failed: " + strings.Join(e.Violations, "; ")
}

// NewValidationError wraps a non-empty violation list.
func NewValidationError(violations ...string) *ValidationError {
	return &ValidationError{Violations: violations}
}

// PreconditionError reports a legal request made against the wrong state,
// e.g. activating a DRAFT or archiving the current ACTIVE row.
type PreconditionError struct {
	Op     string
	Reason string
}

func (e *PreconditionError) Error() string {
	if e == nil {
		return "template: precondition failed"
	}
	if e.Op == "" {
		return fmt.Sprintf("template: precondition failed: %s", e.Reason)
	}
	return fmt.Sprintf("template: %s: precondition failed: %s", e.Op, e.Reason)
}

// NotFoundError reports an unknown template id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	if e == nil {
		return "template: not found"
	}
	return fmt.Sprintf("template: %q not found", e.ID)
}

// IllegalTransitionError reports a status transition outside the allowed set.
type IllegalTransitionError struct {
	From Status
	To   Status
}

func (e *IllegalTransitionError) Error() string {
	if e == nil {
		return "template: illegal transition"
	}
	return fmt.Sprintf("template: illegal transition %s -> %s", e.From, e.To)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsPrecondition reports whether err is a PreconditionError or an
// IllegalTransitionError; both map to HTTP 409.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	if errors.As(err, &pe) {
		return true
	}
	var te *IllegalTransitionError
	return errors.As(err, &te)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

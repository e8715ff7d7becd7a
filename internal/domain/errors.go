package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a rate, rule or adjustment id does not exist.
var ErrNotFound = errors.New("not found")

// ErrNoApplicableRate means no active rate covers the query; the room is
// unavailable, not free. This replaces the legacy zero-price sentinel.
var ErrNoApplicableRate = errors.New("no applicable rate")

// ValidationError rejects malformed input at the service boundary.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// ApprovalStateError rejects transitions on adjustments that already left the
// Pending state.
type ApprovalStateError struct {
	AdjustmentID string
	Status       ApprovalStatus
}

func (e *ApprovalStateError) Error() string {
	return fmt.Sprintf("adjustment %s is %s and cannot be re-resolved", e.AdjustmentID, e.Status)
}

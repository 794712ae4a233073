package hiring

import (
	"fmt"
	"time"
)

// Outcome classifies a hire attempt for callers and for the attempt audit.
type Outcome string

const (
	OutcomeSuccess      Outcome = "SUCCESS"
	OutcomeConflict     Outcome = "CONFLICT"
	OutcomeUnauthorized Outcome = "UNAUTHORIZED"
	OutcomeNotFound     Outcome = "NOT_FOUND"
	OutcomeSystemError  Outcome = "SYSTEM_ERROR"
)

// Result is returned to the caller after a committed hire.
type Result struct {
	GigID        string
	BidID        string
	FreelancerID string
	HiredAt      time.Time
}

// HireError is the typed failure returned by Hire. The Outcome is the
// machine-readable code; the remaining fields carry the diagnostic payload a
// caller needs to explain the failure, e.g. which bid already won a gig that
// is no longer open.
type HireError struct {
	Outcome    Outcome
	Reason     string
	GigStatus  string
	BidStatus  string
	HiredBidID *string
	cause      error
}

func (e *HireError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("hiring: %s: %s: %v", e.Outcome, e.Reason, e.cause)
	}
	return fmt.Sprintf("hiring: %s: %s", e.Outcome, e.Reason)
}

func (e *HireError) Unwrap() error { return e.cause }

// Retryable reports whether the same Hire call may safely be repeated. Only
// transient store failures qualify; every other outcome is permanent for
// this bid.
func (e *HireError) Retryable() bool { return e.Outcome == OutcomeSystemError }

func notFoundError(reason string) *HireError {
	return &HireError{Outcome: OutcomeNotFound, Reason: reason}
}

func unauthorizedError(reason string) *HireError {
	return &HireError{Outcome: OutcomeUnauthorized, Reason: reason}
}

func systemError(reason string, cause error) *HireError {
	return &HireError{Outcome: OutcomeSystemError, Reason: reason, cause: cause}
}

// Attempt is the immutable audit record of one Hire invocation. Exactly one
// is produced per call, success or not, and it is never mutated or deleted.
type Attempt struct {
	GigID   string
	BidID   string
	ActorID string
	Outcome Outcome
	Detail  string
	At      time.Time
}

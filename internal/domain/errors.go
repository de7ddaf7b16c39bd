package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Base sentinel errors. Delivery maps these to HTTP status codes.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
	// ErrUnavailable marks failures of an external service (payment provider, mail relay).
	ErrUnavailable = errors.New("service unavailable")
)

// Conflict specialisations.
var (
	ErrAlreadyMember        = fmt.Errorf("%w: already registered for this conference", ErrConflict)
	ErrDuplicateEmail       = fmt.Errorf("%w: email already in use", ErrConflict)
	ErrDuplicateConference  = fmt.Errorf("%w: conference name or slug already in use", ErrConflict)
	ErrDuplicateTrack       = fmt.Errorf("%w: track already exists in this conference", ErrConflict)
	ErrDuplicateSubmission  = fmt.Errorf("%w: a paper with this title was already submitted", ErrConflict)
	ErrDuplicateAssignment  = fmt.Errorf("%w: reviewer already assigned to this submission", ErrConflict)
	ErrDuplicatePayment     = fmt.Errorf("%w: payment provider id already recorded", ErrConflict)
	ErrSubmissionLocked     = fmt.Errorf("%w: submission can no longer be changed", ErrConflict)
	ErrReviewSubmitted      = fmt.Errorf("%w: review has already been submitted", ErrConflict)
	ErrReviewNotSubmitted   = fmt.Errorf("%w: review has not been submitted yet", ErrConflict)
	ErrConfirmationRequired = fmt.Errorf("%w: reviewer already submitted a review; confirm deletion", ErrConflict)
	ErrAlreadyPaid          = fmt.Errorf("%w: registration fee already paid", ErrConflict)
)

// Other specialisations.
var (
	ErrUserNotFound         = fmt.Errorf("user %w", ErrNotFound)
	ErrMembershipRequired   = fmt.Errorf("%w: register for the conference first", ErrForbidden)
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrNotEligible          = fmt.Errorf("%w: membership is not an eligible reviewer for this submission", ErrInvalidInput)
	ErrPaymentUnavailable   = fmt.Errorf("payment %w", ErrUnavailable)
	ErrWebhookSignature     = fmt.Errorf("%w: webhook signature could not be verified", ErrInvalidInput)
	ErrOrderAlreadyCaptured = errors.New("order already captured")
)

// ValidationError is returned when user input fails validation. It unwraps to ErrInvalidInput.
type ValidationError struct {
	Messages []string
}

// NewValidationError returns a ValidationError with the given messages.
func NewValidationError(msgs ...string) *ValidationError {
	return &ValidationError{Messages: msgs}
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

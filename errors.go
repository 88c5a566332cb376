package rapport

import (
	"errors"
	"fmt"
)

// Category sentinels. Every specific error below belongs to exactly one
// category; use the Is* helpers to test membership.
var (
	ErrNotFound    = errors.New("rapport: not found")
	ErrForbidden   = errors.New("rapport: forbidden")
	ErrConflict    = errors.New("rapport: conflict")
	ErrUnavailable = errors.New("rapport: store unavailable")

	ErrInvalidInput = errors.New("rapport: invalid input")
)

// Interest / match errors.
var (
	ErrBlocked           = errors.New("rapport: users have blocked each other")
	ErrSelfInterest      = errors.New("rapport: cannot record interest in yourself")
	ErrDuplicateInterest = errors.New("rapport: interest already recorded")
	ErrEdgeNotFound      = errors.New("rapport: interest edge not found")
	ErrEdgeNotPending    = errors.New("rapport: interest edge is not pending")
	ErrNotMatched        = errors.New("rapport: users are not matched")
	ErrMatchNotFound     = errors.New("rapport: match not found")
)

// Presence errors.
var (
	ErrSessionNotFound = errors.New("rapport: presence session not found")
	ErrSessionEnded    = errors.New("rapport: presence session already ended")
	ErrSessionFull     = errors.New("rapport: presence session is full")
	ErrSelfJoin        = errors.New("rapport: host cannot join own session")
	ErrDuplicateCode   = errors.New("rapport: presence code already in use")
	ErrCodeExhausted   = errors.New("rapport: could not allocate a unique presence code")
)

// Entitlement errors.
var (
	ErrAlreadyActive = errors.New("rapport: an active subscription already exists")
	ErrGrantNotFound = errors.New("rapport: grant not found")
	ErrUnknownPlan   = errors.New("rapport: unknown subscription plan")
	ErrUnknownKind   = errors.New("rapport: unknown entitlement kind")
)

// VibeLock errors.
var (
	ErrRoundNotFound  = errors.New("rapport: vibelock round not found")
	ErrNotParticipant = errors.New("rapport: caller is not a participant of this round")
	ErrRoundCompleted = errors.New("rapport: vibelock round already completed")
	ErrInvalidAnswer  = errors.New("rapport: answer is not one of the question's options")
)

// Store errors.
var (
	ErrStoreClosed     = errors.New("rapport: store is closed")
	ErrMigrationFailed = errors.New("rapport: migration failed")
	ErrNoStoreDriver   = errors.New("rapport: no store driver configured")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("rapport: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets ValidationError match ErrInvalidInput.
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "rapport: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("rapport: %d errors occurred: %v", len(e.Errors), e.Errors[0])
}

// Unwrap exposes every collected error to errors.Is and errors.As.
func (e MultiError) Unwrap() []error { return e.Errors }

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// Unavailable wraps a driver error so that IsUnavailable reports true while
// the original cause stays inspectable with errors.As.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}

// IsNotFound reports whether err means the referenced record is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrEdgeNotFound) ||
		errors.Is(err, ErrMatchNotFound) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrGrantNotFound) ||
		errors.Is(err, ErrRoundNotFound)
}

// IsForbidden reports whether the caller is not a legitimate party.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrBlocked) ||
		errors.Is(err, ErrNotParticipant)
}

// IsConflict reports whether err is a state-machine violation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrSelfInterest) ||
		errors.Is(err, ErrDuplicateInterest) ||
		errors.Is(err, ErrEdgeNotPending) ||
		errors.Is(err, ErrNotMatched) ||
		errors.Is(err, ErrSessionEnded) ||
		errors.Is(err, ErrSessionFull) ||
		errors.Is(err, ErrSelfJoin) ||
		errors.Is(err, ErrDuplicateCode) ||
		errors.Is(err, ErrAlreadyActive) ||
		errors.Is(err, ErrRoundCompleted)
}

// IsUnavailable reports whether the persistence layer could not be reached.
// The core never retries these; retry policy belongs to the caller.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrStoreClosed)
}

// IsRetryable reports whether the caller may retry the same request.
func IsRetryable(err error) bool {
	return IsUnavailable(err) || errors.Is(err, ErrCodeExhausted)
}

package service

import "errors"

// Error kinds. Every error returned by a service method wraps exactly
// one of these, so callers can branch with errors.Is without knowing
// the specific failure.
var (
	// ErrValidation marks malformed input the caller must correct.
	ErrValidation = errors.New("validation error")
	// ErrConflict marks a well-formed request that collides with the
	// current state of a record.
	ErrConflict = errors.New("conflict")
	// ErrPermission marks an actor lacking rights for the action.
	ErrPermission = errors.New("permission denied")
	// ErrNotFound marks a record that is absent or outside the actor's
	// visible set. The two cases are deliberately indistinguishable.
	ErrNotFound = errors.New("not found")
)

// Error is a classified failure with a message safe to show to clients.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// Unwrap exposes the kind sentinel to errors.Is.
func (e *Error) Unwrap() error { return e.Kind }

func newErr(kind error, msg string) *Error { return &Error{Kind: kind, Msg: msg} }

// Specific failures. Tests and handlers may match on these directly.
var (
	ErrInvalidDateRange = newErr(ErrValidation, "check_in must be before check_out")
	ErrBookingOverlap   = newErr(ErrConflict, "listing is already booked for these dates")
	ErrAlreadyProcessed = newErr(ErrConflict, "booking already processed")
	ErrCancelWindow     = newErr(ErrConflict, "booking can no longer be cancelled")
	ErrNotPending       = newErr(ErrConflict, "only pending bookings can be rescheduled")

	ErrRatingRange         = newErr(ErrValidation, "rating must be between 1 and 5")
	ErrDuplicateReview     = newErr(ErrValidation, "you have already reviewed this listing")
	ErrNoBooking           = newErr(ErrValidation, "you have no booking for this listing")
	ErrBookingNotConfirmed = newErr(ErrValidation, "your booking for this listing is not confirmed")
	ErrReviewRace          = newErr(ErrConflict, "review was submitted concurrently")

	ErrListingNotFound = newErr(ErrNotFound, "listing not found")
	ErrBookingNotFound = newErr(ErrNotFound, "booking not found")
	ErrReviewNotFound  = newErr(ErrNotFound, "review not found")
	ErrUserNotFound    = newErr(ErrNotFound, "user not found")

	ErrForbidden = newErr(ErrPermission, "forbidden")
)

// invalid builds a validation error with a custom message.
func invalid(msg string) error { return newErr(ErrValidation, msg) }

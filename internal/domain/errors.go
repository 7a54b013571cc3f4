package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedRequest         = errors.New("malformed request")
	ErrDuplicateBooking         = errors.New("booking already exists for this user and flight")
	ErrSeatConflict             = errors.New("one or more seats are unavailable")
	ErrInsufficientSeats        = errors.New("not enough seats available")
	ErrFlightNotFound           = errors.New("flight not found")
	ErrInventoryUnavailable     = errors.New("inventory service unavailable")
	ErrCancellationWindowClosed = errors.New("ticket cannot be cancelled within the cutoff before departure")
	ErrInventoryUnreachable     = errors.New("unable to verify flight schedule")
	ErrCompensationFailure      = errors.New("compensation failed")
	ErrBookingNotFound          = errors.New("booking not found")
	ErrNotCancellable           = errors.New("booking cannot be cancelled")
)

// RejectionError carries one of the sentinel kinds above together with a
// caller-facing message and an optional cause.
type RejectionError struct {
	Kind    error
	Message string
	Err     error
}

func (e *RejectionError) Error() string {
	msg := e.Kind.Error()
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s (caused by: %v)", msg, e.Err)
	}
	return msg
}

func (e *RejectionError) Is(target error) bool {
	return target == e.Kind
}

func (e *RejectionError) Unwrap() error {
	return e.Err
}

func Reject(kind error, format string, args ...any) *RejectionError {
	return &RejectionError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func RejectWrap(kind error, err error, format string, args ...any) *RejectionError {
	return &RejectionError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// IsBusinessOutcome reports whether err is a definitive answer from the
// inventory authority rather than a transport failure.
func IsBusinessOutcome(err error) bool {
	return errors.Is(err, ErrSeatConflict) ||
		errors.Is(err, ErrInsufficientSeats) ||
		errors.Is(err, ErrFlightNotFound) ||
		errors.Is(err, ErrMalformedRequest)
}

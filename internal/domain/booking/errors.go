package booking

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrValidation        = errors.New("booking: invalid request")
	ErrConflict          = errors.New("booking: dates unavailable")
	ErrInvalidTransition = errors.New("booking: invalid state transition")
	ErrForbidden         = errors.New("booking: not permitted")
	ErrImmutableBooking  = errors.New("booking: booking can no longer be modified")
	ErrPersistence       = errors.New("booking: persistence failure")
	ErrBookingNotFound   = errors.New("booking: not found")
	ErrConcurrentUpdate  = errors.New("booking: concurrent update detected")
)

// ValidationError reports malformed or out-of-range input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("booking: invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ConflictingStay exposes only what the requester may see about another stay.
type ConflictingStay struct {
	BookingID BookingID `json:"booking_id"`
	CheckIn   time.Time `json:"check_in"`
	CheckOut  time.Time `json:"check_out"`
}

// ConflictError is returned when requested nights are already held.
type ConflictError struct {
	Conflicts []ConflictingStay
}

func (e *ConflictError) Error() string {
	if len(e.Conflicts) == 0 {
		return ErrConflict.Error()
	}
	parts := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		parts = append(parts, c.CheckIn.Format(time.DateOnly)+".."+c.CheckOut.Format(time.DateOnly))
	}
	return ErrConflict.Error() + ": overlaps " + strings.Join(parts, ", ")
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// NewConflictError strips conflicting bookings down to ids and dates.
func NewConflictError(conflicts []*Booking) *ConflictError {
	out := make([]ConflictingStay, 0, len(conflicts))
	for _, b := range conflicts {
		out = append(out, ConflictingStay{BookingID: b.ID, CheckIn: b.Range.CheckIn, CheckOut: b.Range.CheckOut})
	}
	return &ConflictError{Conflicts: out}
}

// TransitionError explains why a requested status change is not in the table.
type TransitionError struct {
	From   Status
	To     Status
	Actor  ActorType
	Reason string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("booking: cannot move from %s to %s as %s", e.From, e.To, e.Actor)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// PersistenceError wraps storage failures; callers may retry the whole operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("booking: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// Persistence wraps err unless it already belongs to the booking taxonomy.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomainError(err) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// IsDomainError reports whether err is one of the caller-facing booking errors.
func IsDomainError(err error) bool {
	for _, target := range []error{ErrValidation, ErrConflict, ErrInvalidTransition, ErrForbidden, ErrImmutableBooking, ErrPersistence} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

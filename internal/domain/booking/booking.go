package booking

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"staybook/internal/domain/listings"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/events"
)

const (
	maxFreeTextLength    = 2000
	maxArrivalTimeLength = 32
)

type BookingID string

type Booking struct {
	ID              BookingID
	ListingID       listings.ListingID
	PropertyID      listings.PropertyID
	GuestID         string
	Range           daterange.DateRange
	Guests          int
	Price           pricing.Breakdown
	Status          Status
	RecordState     RecordState
	SpecialRequests string
	Notes           string
	ArrivalTime     string
	CheckedOutAt    time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       time.Time
	Version         int64
	events.EventRecorder
}

// Repository persists booking rows. Save is optimistic on Version and
// returns ErrConcurrentUpdate when the stored row moved on.
type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	Insert(ctx context.Context, booking *Booking) error
	Save(ctx context.Context, booking *Booking) error
	ListCheckedOutBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Booking, error)
}

type CreateParams struct {
	ID              BookingID
	Listing         listings.Snapshot
	GuestID         string
	Range           daterange.DateRange
	Guests          int
	Price           pricing.Breakdown
	SpecialRequests string
	CreatedAt       time.Time
}

// NewBooking builds a pending booking. Availability is the coordinator's concern.
func NewBooking(params CreateParams) (*Booking, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, invalid("id", "required")
	}
	if strings.TrimSpace(params.GuestID) == "" {
		return nil, invalid("guest_id", "required")
	}
	if err := params.Range.Validate(); err != nil {
		return nil, invalid("check_out", "must be after check_in")
	}
	if params.Guests < 1 {
		return nil, invalid("guests", "must be at least 1")
	}
	if params.Guests > params.Listing.MaxGuests {
		return nil, invalid("guests", "exceeds listing capacity")
	}
	if params.Price.Nights != params.Range.Nights() {
		return nil, invalid("price", "nights do not match the stay")
	}
	if err := params.Price.Verify(); err != nil {
		return nil, invalid("price", err.Error())
	}
	if err := checkText("special_requests", params.SpecialRequests, maxFreeTextLength); err != nil {
		return nil, err
	}
	now := params.CreatedAt.UTC()
	b := &Booking{
		ID:              params.ID,
		ListingID:       params.Listing.ID,
		PropertyID:      params.Listing.PropertyID,
		GuestID:         params.GuestID,
		Range:           params.Range,
		Guests:          params.Guests,
		Price:           params.Price,
		Status:          StatusPending,
		RecordState:     RecordActive,
		SpecialRequests: strings.TrimSpace(params.SpecialRequests),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	b.Record(newLifecycleEvent(EventCreated, b, Guest(b.GuestID), "", now))
	return b, nil
}

// Nights is the stored night count, frozen at creation.
func (b *Booking) Nights() int {
	return b.Price.Nights
}

func (b *Booking) IsDeleted() bool {
	return b.RecordState == RecordDeleted
}

// HoldsNights reports whether the booking currently occupies its interval.
func (b *Booking) HoldsNights() bool {
	return !b.IsDeleted() && b.Status.HoldsNights()
}

// Authorize checks that actor may act on this booking at all. Hosts are
// matched against the current owner of the listing. Every failure is the
// same ErrForbidden so callers cannot learn whether it exists.
func (b *Booking) Authorize(actor Actor, owner listings.HostID) error {
	if err := actor.Validate(); err != nil {
		return ErrForbidden
	}
	if actor.Privileged() {
		return nil
	}
	if b.IsDeleted() {
		return ErrForbidden
	}
	switch actor.Type {
	case ActorGuest:
		if actor.ID == b.GuestID {
			return nil
		}
	case ActorHost:
		if owner != "" && actor.ID == string(owner) {
			return nil
		}
	}
	return ErrForbidden
}

// Details carries the guest-editable fields; nil leaves a field untouched.
type Details struct {
	SpecialRequests *string
	Notes           *string
	ArrivalTime     *string
}

func (d Details) Empty() bool {
	return d.SpecialRequests == nil && d.Notes == nil && d.ArrivalTime == nil
}

// UpdateDetails lets the owning guest edit free-form input while pending.
func (b *Booking) UpdateDetails(actor Actor, d Details, now time.Time) error {
	if actor.Type != ActorGuest || actor.ID != b.GuestID || b.IsDeleted() {
		return ErrForbidden
	}
	if b.Status != StatusPending {
		return ErrImmutableBooking
	}
	if d.Empty() {
		return invalid("details", "nothing to update")
	}
	if d.SpecialRequests != nil {
		if err := checkText("special_requests", *d.SpecialRequests, maxFreeTextLength); err != nil {
			return err
		}
	}
	if d.Notes != nil {
		if err := checkText("notes", *d.Notes, maxFreeTextLength); err != nil {
			return err
		}
	}
	if d.ArrivalTime != nil {
		if err := checkText("arrival_time", *d.ArrivalTime, maxArrivalTimeLength); err != nil {
			return err
		}
	}
	if d.SpecialRequests != nil {
		b.SpecialRequests = strings.TrimSpace(*d.SpecialRequests)
	}
	if d.Notes != nil {
		b.Notes = strings.TrimSpace(*d.Notes)
	}
	if d.ArrivalTime != nil {
		b.ArrivalTime = strings.TrimSpace(*d.ArrivalTime)
	}
	b.UpdatedAt = now.UTC()
	return nil
}

// SoftDelete hides the booking from availability and listings. It reports
// whether the booking was holding nights that must now be released.
func (b *Booking) SoftDelete(actor Actor, now time.Time) (bool, error) {
	if !actor.Privileged() {
		return false, ErrForbidden
	}
	if b.IsDeleted() {
		return false, invalid("booking", "already deleted")
	}
	held := b.HoldsNights()
	b.RecordState = RecordDeleted
	b.DeletedAt = now.UTC()
	b.UpdatedAt = b.DeletedAt
	return held, nil
}

func checkText(field, value string, limit int) error {
	if utf8.RuneCountInString(value) > limit {
		return invalid(field, "too long")
	}
	return nil
}

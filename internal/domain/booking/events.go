package booking

import "time"

const (
	EventCreated    = "booking.created"
	EventConfirmed  = "booking.confirmed"
	EventRejected   = "booking.rejected"
	EventCancelled  = "booking.cancelled"
	EventCheckedIn  = "booking.checked_in"
	EventCheckedOut = "booking.checked_out"
	EventCompleted  = "booking.completed"
)

func eventNameFor(to Status) string {
	return "booking." + string(to)
}

// Snapshot is the serialisable view of a booking carried in events.
type Snapshot struct {
	ID              string    `json:"id"`
	ListingID       string    `json:"listing_id"`
	PropertyID      string    `json:"property_id,omitempty"`
	GuestID         string    `json:"guest_id"`
	CheckIn         time.Time `json:"check_in"`
	CheckOut        time.Time `json:"check_out"`
	Guests          int       `json:"guests"`
	Nights          int       `json:"nights"`
	Currency        string    `json:"currency"`
	PricePerNight   int64     `json:"price_per_night"`
	CleaningFee     int64     `json:"cleaning_fee"`
	ServiceFee      int64     `json:"service_fee"`
	TotalPrice      int64     `json:"total_price"`
	Status          string    `json:"status"`
	SpecialRequests string    `json:"special_requests,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	ArrivalTime     string    `json:"arrival_time,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (b *Booking) Snapshot() Snapshot {
	return Snapshot{
		ID:              string(b.ID),
		ListingID:       string(b.ListingID),
		PropertyID:      string(b.PropertyID),
		GuestID:         b.GuestID,
		CheckIn:         b.Range.CheckIn,
		CheckOut:        b.Range.CheckOut,
		Guests:          b.Guests,
		Nights:          b.Price.Nights,
		Currency:        b.Price.Total.Currency,
		PricePerNight:   b.Price.PricePerNight.Amount,
		CleaningFee:     b.Price.CleaningFee.Amount,
		ServiceFee:      b.Price.ServiceFee.Amount,
		TotalPrice:      b.Price.Total.Amount,
		Status:          string(b.Status),
		SpecialRequests: b.SpecialRequests,
		Notes:           b.Notes,
		ArrivalTime:     b.ArrivalTime,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

// LifecycleEvent is emitted once per successful creation or transition.
type LifecycleEvent struct {
	Name    string    `json:"name"`
	Booking Snapshot  `json:"booking"`
	Actor   Actor     `json:"actor"`
	Reason  string    `json:"reason,omitempty"`
	At      time.Time `json:"at"`
}

func newLifecycleEvent(name string, b *Booking, actor Actor, reason string, at time.Time) LifecycleEvent {
	return LifecycleEvent{Name: name, Booking: b.Snapshot(), Actor: actor, Reason: reason, At: at}
}

func (e LifecycleEvent) EventName() string     { return e.Name }
func (e LifecycleEvent) AggregateID() string   { return e.Booking.ID }
func (e LifecycleEvent) OccurredAt() time.Time { return e.At }

package dto

import (
	"time"

	domainaudit "staybook/internal/domain/audit"
	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type PriceDTO struct {
	Nights        int      `json:"nights"`
	PricePerNight MoneyDTO `json:"price_per_night"`
	Subtotal      MoneyDTO `json:"subtotal"`
	CleaningFee   MoneyDTO `json:"cleaning_fee"`
	ServiceFee    MoneyDTO `json:"service_fee"`
	Total         MoneyDTO `json:"total"`
}

type Booking struct {
	ID              string     `json:"id"`
	ListingID       string     `json:"listing_id"`
	PropertyID      string     `json:"property_id,omitempty"`
	GuestID         string     `json:"guest_id"`
	CheckIn         string     `json:"check_in"`
	CheckOut        string     `json:"check_out"`
	Guests          int        `json:"guests"`
	Price           PriceDTO   `json:"price"`
	Status          string     `json:"status"`
	SpecialRequests string     `json:"special_requests,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	ArrivalTime     string     `json:"arrival_time,omitempty"`
	CheckedOutAt    *time.Time `json:"checked_out_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Deleted         bool       `json:"deleted,omitempty"`
}

type HistoryEntry struct {
	Sequence       int               `json:"sequence"`
	EventType      string            `json:"event_type"`
	PreviousStatus string            `json:"previous_status,omitempty"`
	NewStatus      string            `json:"new_status"`
	TriggeredBy    string            `json:"triggered_by,omitempty"`
	ActorType      string            `json:"actor_type"`
	Reason         string            `json:"reason,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

type History struct {
	BookingID string         `json:"booking_id"`
	Entries   []HistoryEntry `json:"entries"`
}

type DueBookings struct {
	IDs []string `json:"ids"`
}

func MapMoney(value money.Money) MoneyDTO {
	return MoneyDTO{
		Amount:   value.Amount,
		Currency: value.Currency,
	}
}

func MapPrice(p pricing.Breakdown) PriceDTO {
	return PriceDTO{
		Nights:        p.Nights,
		PricePerNight: MapMoney(p.PricePerNight),
		Subtotal:      MapMoney(p.Subtotal),
		CleaningFee:   MapMoney(p.CleaningFee),
		ServiceFee:    MapMoney(p.ServiceFee),
		Total:         MapMoney(p.Total),
	}
}

func MapBooking(b *domainbooking.Booking) *Booking {
	out := &Booking{
		ID:              string(b.ID),
		ListingID:       string(b.ListingID),
		PropertyID:      string(b.PropertyID),
		GuestID:         b.GuestID,
		CheckIn:         FormatDay(b.Range.CheckIn),
		CheckOut:        FormatDay(b.Range.CheckOut),
		Guests:          b.Guests,
		Price:           MapPrice(b.Price),
		Status:          string(b.Status),
		SpecialRequests: b.SpecialRequests,
		Notes:           b.Notes,
		ArrivalTime:     b.ArrivalTime,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
		Deleted:         b.IsDeleted(),
	}
	if !b.CheckedOutAt.IsZero() {
		at := b.CheckedOutAt
		out.CheckedOutAt = &at
	}
	return out
}

func MapHistory(id domainbooking.BookingID, entries []domainaudit.Entry) *History {
	out := &History{BookingID: string(id), Entries: make([]HistoryEntry, 0, len(entries))}
	for _, e := range entries {
		out.Entries = append(out.Entries, HistoryEntry{
			Sequence:       e.Sequence,
			EventType:      string(e.EventType),
			PreviousStatus: string(e.PreviousStatus),
			NewStatus:      string(e.NewStatus),
			TriggeredBy:    e.TriggeredBy,
			ActorType:      string(e.ActorType),
			Reason:         e.Reason,
			Metadata:       e.Metadata,
			CreatedAt:      e.CreatedAt,
		})
	}
	return out
}

func FormatDay(t time.Time) string {
	return daterange.Day(t).Format(time.DateOnly)
}

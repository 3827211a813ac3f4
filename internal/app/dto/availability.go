package dto

import "staybook/internal/domain/shared/daterange"

type RangeDTO struct {
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
}

type Availability struct {
	ListingID string     `json:"listing_id"`
	From      string     `json:"from"`
	To        string     `json:"to"`
	Blocked   []RangeDTO `json:"blocked"`
}

func MapRange(r daterange.DateRange) RangeDTO {
	return RangeDTO{CheckIn: FormatDay(r.CheckIn), CheckOut: FormatDay(r.CheckOut)}
}

func MapAvailability(listingID string, window daterange.DateRange, blocked []daterange.DateRange) *Availability {
	out := &Availability{
		ListingID: listingID,
		From:      FormatDay(window.CheckIn),
		To:        FormatDay(window.CheckOut),
		Blocked:   make([]RangeDTO, 0, len(blocked)),
	}
	for _, r := range blocked {
		out.Blocked = append(out.Blocked, MapRange(r))
	}
	return out
}

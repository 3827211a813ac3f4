package listings

import (
	"context"
	"errors"
	"strings"

	"staybook/internal/domain/shared/money"
)

var (
	ErrListingNotFound = errors.New("listings: listing not found")
	ErrGuestsLimit     = errors.New("listings: guests limit must be at least 1")
	ErrNightlyRate     = errors.New("listings: nightly rate must be positive")
	ErrCleaningFee     = errors.New("listings: cleaning fee must be non-negative")
)

type ListingID string
type PropertyID string
type HostID string

// Snapshot is the part of a listing the reservation engine reads at booking time.
// Listings are owned elsewhere; this package only describes what is consumed.
type Snapshot struct {
	ID            ListingID
	PropertyID    PropertyID
	Host          HostID
	PricePerNight money.Money
	CleaningFee   money.Money
	MaxGuests     int
}

func (s Snapshot) Validate() error {
	if strings.TrimSpace(string(s.ID)) == "" {
		return errors.New("listings: id is required")
	}
	if strings.TrimSpace(string(s.Host)) == "" {
		return errors.New("listings: host is required")
	}
	if s.MaxGuests < 1 {
		return ErrGuestsLimit
	}
	if s.PricePerNight.Amount <= 0 || s.PricePerNight.Currency == "" {
		return ErrNightlyRate
	}
	if s.CleaningFee.IsNegative() {
		return ErrCleaningFee
	}
	if s.CleaningFee.Currency != "" && s.CleaningFee.Currency != s.PricePerNight.Currency {
		return money.ErrCurrencyMismatch
	}
	return nil
}

// Fee returns the cleaning fee in the nightly rate currency.
func (s Snapshot) Fee() money.Money {
	if s.CleaningFee.Currency == "" {
		return money.Money{Amount: s.CleaningFee.Amount, Currency: s.PricePerNight.Currency}
	}
	return s.CleaningFee
}

// Reader resolves listing snapshots; implementations return ErrListingNotFound.
type Reader interface {
	Snapshot(ctx context.Context, id ListingID) (Snapshot, error)
}

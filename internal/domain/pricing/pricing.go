package pricing

import (
	"errors"

	"staybook/internal/domain/listings"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

var (
	ErrNightsRange       = errors.New("pricing: nights must be at least 1")
	ErrNegativeComponent = errors.New("pricing: components cannot be negative")
	ErrCurrencyUnset     = errors.New("pricing: currency must be defined")
	ErrServiceFeeRate    = errors.New("pricing: service fee basis points must be between 0 and 10000")
)

// Breakdown is the money snapshot stored on a booking.
type Breakdown struct {
	Nights        int
	PricePerNight money.Money
	Subtotal      money.Money
	CleaningFee   money.Money
	ServiceFee    money.Money
	Total         money.Money
}

// Policy holds marketplace-wide parameters applied on top of the listing rate.
type Policy struct {
	ServiceFeeBasisPoints int64
}

func (p Policy) Validate() error {
	if p.ServiceFeeBasisPoints < 0 || p.ServiceFeeBasisPoints > 10000 {
		return ErrServiceFeeRate
	}
	return nil
}

// Calculate derives subtotal and total from already-resolved components.
// Identical inputs always produce identical outputs.
func Calculate(nights int, rate, cleaningFee, serviceFee money.Money) (Breakdown, error) {
	if nights < 1 {
		return Breakdown{}, ErrNightsRange
	}
	if rate.Currency == "" {
		return Breakdown{}, ErrCurrencyUnset
	}
	if rate.IsNegative() || cleaningFee.IsNegative() || serviceFee.IsNegative() {
		return Breakdown{}, ErrNegativeComponent
	}
	subtotal, err := rate.Multiply(int64(nights))
	if err != nil {
		return Breakdown{}, err
	}
	total, err := subtotal.Add(cleaningFee)
	if err != nil {
		return Breakdown{}, err
	}
	total, err = total.Add(serviceFee)
	if err != nil {
		return Breakdown{}, err
	}
	return Breakdown{
		Nights:        nights,
		PricePerNight: rate,
		Subtotal:      subtotal,
		CleaningFee:   cleaningFee,
		ServiceFee:    serviceFee,
		Total:         total,
	}, nil
}

// Quote prices a stay on a listing: rate and cleaning fee come from the
// listing snapshot, the service fee is a share of the subtotal.
func Quote(listing listings.Snapshot, dr daterange.DateRange, policy Policy) (Breakdown, error) {
	if err := policy.Validate(); err != nil {
		return Breakdown{}, err
	}
	if err := dr.Validate(); err != nil {
		return Breakdown{}, ErrNightsRange
	}
	nights := dr.Nights()
	rate := listing.PricePerNight
	subtotal, err := rate.Multiply(int64(nights))
	if err != nil {
		return Breakdown{}, err
	}
	serviceFee, err := subtotal.BasisPoints(policy.ServiceFeeBasisPoints)
	if err != nil {
		return Breakdown{}, err
	}
	return Calculate(nights, rate, listing.Fee(), serviceFee)
}

// Verify recomputes the total from the stored components.
func (b Breakdown) Verify() error {
	again, err := Calculate(b.Nights, b.PricePerNight, b.CleaningFee, b.ServiceFee)
	if err != nil {
		return err
	}
	if again != b {
		return errors.New("pricing: breakdown does not add up")
	}
	return nil
}

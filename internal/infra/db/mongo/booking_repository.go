package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/listings"
	domainpricing "staybook/internal/domain/pricing"
	domainrange "staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

var ErrDuplicateBooking = errors.New("mongo: booking already exists")

type BookingRepository struct {
	col     *mongo.Collection
	session mongo.Session
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	return &BookingRepository{col: db.Collection(bookingsCollection)}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(scoped(ctx, r.session), bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainbooking.ErrBookingNotFound
		}
		return nil, err
	}
	return doc.toAggregate()
}

func (r *BookingRepository) Insert(ctx context.Context, b *domainbooking.Booking) error {
	doc := newBookingDocument(b)
	doc.Version = 1
	if _, err := r.col.InsertOne(scoped(ctx, r.session), doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateBooking
		}
		return err
	}
	b.Version = doc.Version
	return nil
}

// Save replaces the row only while its stored version still matches.
func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	doc := newBookingDocument(b)
	filter := bson.M{"_id": doc.ID, "version": b.Version}
	doc.Version = b.Version + 1
	res, err := r.col.ReplaceOne(scoped(ctx, r.session), filter, doc)
	if err != nil {
		if isWriteConflict(err) {
			return domainbooking.ErrConcurrentUpdate
		}
		return err
	}
	if res.MatchedCount == 0 {
		return domainbooking.ErrConcurrentUpdate
	}
	b.Version = doc.Version
	return nil
}

func (r *BookingRepository) ListCheckedOutBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domainbooking.Booking, error) {
	filter := bson.M{
		"status":         string(domainbooking.StatusCheckedOut),
		"record_state":   bson.M{"$ne": string(domainbooking.RecordDeleted)},
		"checked_out_at": bson.M{"$lte": cutoff.UTC()},
	}
	opts := options.Find().SetSort(bson.D{{Key: "checked_out_at", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	ctx = scoped(ctx, r.session)
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []bookingDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domainbooking.Booking, 0, len(docs))
	for _, d := range docs {
		b, err := d.toAggregate()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

type moneyDocument struct {
	Amount   int64  `bson:"amount"`
	Currency string `bson:"currency"`
}

type priceDocument struct {
	Nights        int           `bson:"nights"`
	PricePerNight moneyDocument `bson:"price_per_night"`
	Subtotal      moneyDocument `bson:"subtotal"`
	CleaningFee   moneyDocument `bson:"cleaning_fee"`
	ServiceFee    moneyDocument `bson:"service_fee"`
	Total         moneyDocument `bson:"total"`
}

type bookingDocument struct {
	ID              string        `bson:"_id"`
	ListingID       string        `bson:"listing_id"`
	PropertyID      string        `bson:"property_id"`
	GuestID         string        `bson:"guest_id"`
	CheckIn         time.Time     `bson:"check_in"`
	CheckOut        time.Time     `bson:"check_out"`
	Guests          int           `bson:"guests"`
	Price           priceDocument `bson:"price"`
	Status          string        `bson:"status"`
	RecordState     string        `bson:"record_state"`
	SpecialRequests string        `bson:"special_requests,omitempty"`
	Notes           string        `bson:"notes,omitempty"`
	ArrivalTime     string        `bson:"arrival_time,omitempty"`
	CheckedOutAt    *time.Time    `bson:"checked_out_at,omitempty"`
	CreatedAt       time.Time     `bson:"created_at"`
	UpdatedAt       time.Time     `bson:"updated_at"`
	DeletedAt       *time.Time    `bson:"deleted_at,omitempty"`
	Version         int64         `bson:"version"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	return bookingDocument{
		ID:              string(b.ID),
		ListingID:       string(b.ListingID),
		PropertyID:      string(b.PropertyID),
		GuestID:         b.GuestID,
		CheckIn:         b.Range.CheckIn.UTC(),
		CheckOut:        b.Range.CheckOut.UTC(),
		Guests:          b.Guests,
		Price:           newPriceDocument(b.Price),
		Status:          string(b.Status),
		RecordState:     string(b.RecordState),
		SpecialRequests: b.SpecialRequests,
		Notes:           b.Notes,
		ArrivalTime:     b.ArrivalTime,
		CheckedOutAt:    optionalTime(b.CheckedOutAt),
		CreatedAt:       b.CreatedAt.UTC(),
		UpdatedAt:       b.UpdatedAt.UTC(),
		DeletedAt:       optionalTime(b.DeletedAt),
		Version:         b.Version,
	}
}

func (d bookingDocument) toAggregate() (*domainbooking.Booking, error) {
	status, err := domainbooking.ParseStatus(d.Status)
	if err != nil {
		return nil, err
	}
	state := domainbooking.RecordActive
	if d.RecordState == string(domainbooking.RecordDeleted) {
		state = domainbooking.RecordDeleted
	}
	return &domainbooking.Booking{
		ID:              domainbooking.BookingID(d.ID),
		ListingID:       listings.ListingID(d.ListingID),
		PropertyID:      listings.PropertyID(d.PropertyID),
		GuestID:         d.GuestID,
		Range:           domainrange.DateRange{CheckIn: d.CheckIn.UTC(), CheckOut: d.CheckOut.UTC()},
		Guests:          d.Guests,
		Price:           d.Price.toBreakdown(),
		Status:          status,
		RecordState:     state,
		SpecialRequests: d.SpecialRequests,
		Notes:           d.Notes,
		ArrivalTime:     d.ArrivalTime,
		CheckedOutAt:    derefTime(d.CheckedOutAt),
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
		DeletedAt:       derefTime(d.DeletedAt),
		Version:         d.Version,
	}, nil
}

func newPriceDocument(p domainpricing.Breakdown) priceDocument {
	return priceDocument{
		Nights:        p.Nights,
		PricePerNight: newMoneyDocument(p.PricePerNight),
		Subtotal:      newMoneyDocument(p.Subtotal),
		CleaningFee:   newMoneyDocument(p.CleaningFee),
		ServiceFee:    newMoneyDocument(p.ServiceFee),
		Total:         newMoneyDocument(p.Total),
	}
}

func (d priceDocument) toBreakdown() domainpricing.Breakdown {
	return domainpricing.Breakdown{
		Nights:        d.Nights,
		PricePerNight: d.PricePerNight.toMoney(),
		Subtotal:      d.Subtotal.toMoney(),
		CleaningFee:   d.CleaningFee.toMoney(),
		ServiceFee:    d.ServiceFee.toMoney(),
		Total:         d.Total.toMoney(),
	}
}

func newMoneyDocument(m money.Money) moneyDocument {
	return moneyDocument{Amount: m.Amount, Currency: m.Currency}
}

func (d moneyDocument) toMoney() money.Money {
	return money.Money{Amount: d.Amount, Currency: d.Currency}
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}

package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainavailability "staybook/internal/domain/availability"
	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/listings"
	domainrange "staybook/internal/domain/shared/daterange"
)

// IntervalStore keeps one document per stay and one per occupied night.
// Night ids are "listing|YYYY-MM-DD", so the _id index rejects a second
// stay on the same night even when two transactions race past the checker.
type IntervalStore struct {
	intervals *mongo.Collection
	nights    *mongo.Collection
	session   mongo.Session
}

func NewIntervalStore(db *mongo.Database) *IntervalStore {
	return &IntervalStore{
		intervals: db.Collection(intervalsCollection),
		nights:    db.Collection(nightsCollection),
	}
}

type intervalDocument struct {
	BookingID string    `bson:"_id"`
	ListingID string    `bson:"listing_id"`
	CheckIn   time.Time `bson:"check_in"`
	CheckOut  time.Time `bson:"check_out"`
}

type nightDocument struct {
	ID        string    `bson:"_id"`
	ListingID string    `bson:"listing_id"`
	BookingID string    `bson:"booking_id"`
	Night     time.Time `bson:"night"`
}

func nightID(listingID listings.ListingID, night time.Time) string {
	return string(listingID) + "|" + night.UTC().Format("2006-01-02")
}

func nightDocuments(iv domainavailability.Interval) []any {
	days := iv.Range.Days()
	docs := make([]any, 0, len(days))
	for _, d := range days {
		docs = append(docs, nightDocument{
			ID:        nightID(iv.ListingID, d),
			ListingID: string(iv.ListingID),
			BookingID: string(iv.BookingID),
			Night:     d,
		})
	}
	return docs
}

func (s *IntervalStore) Overlapping(ctx context.Context, listingID listings.ListingID, r domainrange.DateRange) ([]domainavailability.Interval, error) {
	filter := bson.M{
		"listing_id": string(listingID),
		"check_in":   bson.M{"$lt": r.CheckOut.UTC()},
		"check_out":  bson.M{"$gt": r.CheckIn.UTC()},
	}
	ctx = scoped(ctx, s.session)
	cur, err := s.intervals.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "check_in", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []intervalDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domainavailability.Interval, 0, len(docs))
	for _, d := range docs {
		out = append(out, domainavailability.Interval{
			ListingID: listings.ListingID(d.ListingID),
			BookingID: domainbooking.BookingID(d.BookingID),
			Range:     domainrange.DateRange{CheckIn: d.CheckIn.UTC(), CheckOut: d.CheckOut.UTC()},
		})
	}
	return out, nil
}

// Reserve claims every night of the interval. A duplicate night id, or a
// write conflict with a transaction holding that night, is an overlap.
func (s *IntervalStore) Reserve(ctx context.Context, iv domainavailability.Interval) error {
	if err := iv.Range.Validate(); err != nil {
		return err
	}
	ctx = scoped(ctx, s.session)
	if _, err := s.nights.InsertMany(ctx, nightDocuments(iv)); err != nil {
		if mongo.IsDuplicateKeyError(err) || isWriteConflict(err) {
			return domainavailability.ErrOverlappingRange
		}
		return err
	}
	doc := intervalDocument{
		BookingID: string(iv.BookingID),
		ListingID: string(iv.ListingID),
		CheckIn:   iv.Range.CheckIn.UTC(),
		CheckOut:  iv.Range.CheckOut.UTC(),
	}
	if _, err := s.intervals.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainavailability.ErrOverlappingRange
		}
		return err
	}
	return nil
}

func (s *IntervalStore) Release(ctx context.Context, listingID listings.ListingID, bookingID domainbooking.BookingID) error {
	ctx = scoped(ctx, s.session)
	filter := bson.M{"listing_id": string(listingID), "booking_id": string(bookingID)}
	if _, err := s.nights.DeleteMany(ctx, filter); err != nil {
		return err
	}
	_, err := s.intervals.DeleteOne(ctx, bson.M{"_id": string(bookingID), "listing_id": string(listingID)})
	return err
}

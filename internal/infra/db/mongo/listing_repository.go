package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"staybook/internal/domain/listings"
	"staybook/internal/domain/shared/money"
)

// ListingRepository reads the listing snapshots published by the catalogue.
type ListingRepository struct {
	col *mongo.Collection
}

func NewListingRepository(db *mongo.Database) *ListingRepository {
	return &ListingRepository{col: db.Collection(listingsCollection)}
}

type listingDocument struct {
	ID            string `bson:"_id"`
	PropertyID    string `bson:"property_id"`
	HostID        string `bson:"host_id"`
	Currency      string `bson:"currency"`
	PricePerNight int64  `bson:"price_per_night"`
	CleaningFee   int64  `bson:"cleaning_fee"`
	MaxGuests     int    `bson:"max_guests"`
}

func (r *ListingRepository) Snapshot(ctx context.Context, id listings.ListingID) (listings.Snapshot, error) {
	var doc listingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return listings.Snapshot{}, listings.ErrListingNotFound
		}
		return listings.Snapshot{}, err
	}
	return doc.toSnapshot(), nil
}

// Put upserts a snapshot; used to seed fixtures.
func (r *ListingRepository) Put(ctx context.Context, s listings.Snapshot) error {
	if err := s.Validate(); err != nil {
		return err
	}
	doc := listingDocument{
		ID:            string(s.ID),
		PropertyID:    string(s.PropertyID),
		HostID:        string(s.Host),
		Currency:      s.PricePerNight.Currency,
		PricePerNight: s.PricePerNight.Amount,
		CleaningFee:   s.Fee().Amount,
		MaxGuests:     s.MaxGuests,
	}
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (d listingDocument) toSnapshot() listings.Snapshot {
	return listings.Snapshot{
		ID:            listings.ListingID(d.ID),
		PropertyID:    listings.PropertyID(d.PropertyID),
		Host:          listings.HostID(d.HostID),
		PricePerNight: money.Money{Amount: d.PricePerNight, Currency: d.Currency},
		CleaningFee:   money.Money{Amount: d.CleaningFee, Currency: d.Currency},
		MaxGuests:     d.MaxGuests,
	}
}

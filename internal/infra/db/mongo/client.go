package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	bookingsCollection  = "bookings"
	intervalsCollection = "listing_intervals"
	nightsCollection    = "listing_nights"
	activityCollection  = "booking_activity"
	listingsCollection  = "listings"
)

type Client struct {
	DB *mongo.Database
}

// New connects and checks the server answers. Transactions need a replica
// set, so a standalone server fails on the first write rather than here.
func New(ctx context.Context, uri, database string) (*Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	opts := options.Client().ApplyURI(uri).SetRetryWrites(true)
	m, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := m.Ping(ctx, nil); err != nil {
		_ = m.Disconnect(context.Background())
		return nil, err
	}
	return &Client{DB: m.Database(database)}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.Client().Ping(ctx, nil)
}

func (c *Client) Close(ctx context.Context) error {
	return c.DB.Client().Disconnect(ctx)
}

// EnsureIndexes creates the indexes the repositories rely on for
// correctness, not just speed: the unique night ids and activity sequences
// are what turn racing writers into errors.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	db := c.DB
	specs := map[string][]mongo.IndexModel{
		bookingsCollection: {
			{Keys: bson.D{{Key: "listing_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "checked_out_at", Value: 1}}},
		},
		intervalsCollection: {
			{Keys: bson.D{{Key: "listing_id", Value: 1}, {Key: "check_in", Value: 1}, {Key: "check_out", Value: 1}}},
		},
		nightsCollection: {
			{Keys: bson.D{{Key: "booking_id", Value: 1}}},
		},
		activityCollection: {
			{Keys: bson.D{{Key: "booking_id", Value: 1}, {Key: "sequence", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}
	var errs []error
	for name, models := range specs {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

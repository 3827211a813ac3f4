package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainaudit "staybook/internal/domain/audit"
	domainbooking "staybook/internal/domain/booking"
)

var ErrActivityWithoutBooking = errors.New("mongo: activity entry without booking")

// ActivityRepository is append-only. Sequence numbers are assigned inside
// the caller's transaction; the unique (booking_id, sequence) index turns a
// racing writer into a failed commit instead of a gap or a duplicate.
type ActivityRepository struct {
	col         *mongo.Collection
	session     mongo.Session
	idGenerator func() string
}

func NewActivityRepository(db *mongo.Database, idGenerator func() string) *ActivityRepository {
	return &ActivityRepository{col: db.Collection(activityCollection), idGenerator: idGenerator}
}

type activityDocument struct {
	ID             string            `bson:"_id"`
	BookingID      string            `bson:"booking_id"`
	Sequence       int               `bson:"sequence"`
	EventType      string            `bson:"event_type"`
	PreviousStatus string            `bson:"previous_status,omitempty"`
	NewStatus      string            `bson:"new_status"`
	TriggeredBy    string            `bson:"triggered_by,omitempty"`
	ActorType      string            `bson:"actor_type"`
	Reason         string            `bson:"reason,omitempty"`
	Metadata       map[string]string `bson:"metadata,omitempty"`
	CreatedAt      time.Time         `bson:"created_at"`
}

func (r *ActivityRepository) Append(ctx context.Context, entry domainaudit.Entry) error {
	if entry.BookingID == "" {
		return ErrActivityWithoutBooking
	}
	ctx = scoped(ctx, r.session)
	count, err := r.col.CountDocuments(ctx, bson.M{"booking_id": string(entry.BookingID)})
	if err != nil {
		return err
	}
	entry.Sequence = int(count) + 1
	if entry.ID == "" && r.idGenerator != nil {
		entry.ID = r.idGenerator()
	}
	if entry.ID == "" {
		entry.ID = fmt.Sprintf("%s#%d", entry.BookingID, entry.Sequence)
	}
	_, err = r.col.InsertOne(ctx, newActivityDocument(entry))
	return err
}

func (r *ActivityRepository) ListByBooking(ctx context.Context, id domainbooking.BookingID) ([]domainaudit.Entry, error) {
	ctx = scoped(ctx, r.session)
	opts := options.Find().SetSort(bson.D{{Key: "sequence", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"booking_id": string(id)}, opts)
	if err != nil {
		return nil, err
	}
	var docs []activityDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domainaudit.Entry, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toEntry())
	}
	return out, nil
}

func newActivityDocument(e domainaudit.Entry) activityDocument {
	return activityDocument{
		ID:             e.ID,
		BookingID:      string(e.BookingID),
		Sequence:       e.Sequence,
		EventType:      string(e.EventType),
		PreviousStatus: string(e.PreviousStatus),
		NewStatus:      string(e.NewStatus),
		TriggeredBy:    e.TriggeredBy,
		ActorType:      string(e.ActorType),
		Reason:         e.Reason,
		Metadata:       e.Metadata,
		CreatedAt:      e.CreatedAt.UTC(),
	}
}

func (d activityDocument) toEntry() domainaudit.Entry {
	return domainaudit.Entry{
		ID:             d.ID,
		BookingID:      domainbooking.BookingID(d.BookingID),
		Sequence:       d.Sequence,
		EventType:      domainaudit.EventType(d.EventType),
		PreviousStatus: domainbooking.Status(d.PreviousStatus),
		NewStatus:      domainbooking.Status(d.NewStatus),
		TriggeredBy:    d.TriggeredBy,
		ActorType:      domainbooking.ActorType(d.ActorType),
		Reason:         d.Reason,
		Metadata:       d.Metadata,
		CreatedAt:      d.CreatedAt.UTC(),
	}
}

package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	appoutbox "staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	domainaudit "staybook/internal/domain/audit"
	domainavailability "staybook/internal/domain/availability"
	domainbooking "staybook/internal/domain/booking"
	domainlistings "staybook/internal/domain/listings"
)

// Factory wires Mongo transactions into the generic UnitOfWork interface.
type Factory struct {
	DB *mongo.Database

	Listings    domainlistings.Reader
	Outbox      appoutbox.Outbox
	IDGenerator func() string
}

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// Begin starts a MongoDB session. Writable units run inside a snapshot
// transaction with majority commit; read-only units share the session for
// causal reads without one.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	if !opts.ReadOnly {
		txnOpts := options.Transaction().
			SetReadConcern(readconcern.Snapshot()).
			SetWriteConcern(writeconcern.Majority())
		if err := session.StartTransaction(txnOpts); err != nil {
			session.EndSession(ctx)
			return nil, err
		}
	}
	listings := f.Listings
	if listings == nil {
		listings = NewListingRepository(f.DB)
	}
	bookings := NewBookingRepository(f.DB)
	bookings.session = session
	intervals := NewIntervalStore(f.DB)
	intervals.session = session
	activity := NewActivityRepository(f.DB, f.IDGenerator)
	activity.session = session
	return &Unit{
		session:   session,
		inTxn:     !opts.ReadOnly,
		listings:  listings,
		bookings:  bookings,
		intervals: intervals,
		activity:  activity,
		outbox:    f.Outbox,
	}, nil
}

type Unit struct {
	session mongo.Session
	inTxn   bool
	done    bool

	listings  domainlistings.Reader
	bookings  *BookingRepository
	intervals *IntervalStore
	activity  *ActivityRepository
	outbox    appoutbox.Outbox
}

func (u *Unit) Listings() domainlistings.Reader {
	return u.listings
}

func (u *Unit) Bookings() domainbooking.Repository {
	return u.bookings
}

func (u *Unit) Intervals() domainavailability.IntervalStore {
	return u.intervals
}

func (u *Unit) Activity() domainaudit.Repository {
	return u.activity
}

// Outbox stages records in the same transaction as the booking write.
func (u *Unit) Outbox() appoutbox.Outbox {
	if u.outbox == nil {
		return appoutbox.Discard{}
	}
	return sessionOutbox{box: u.outbox, session: u.session}
}

func (u *Unit) Commit(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	defer u.session.EndSession(context.WithoutCancel(ctx))
	if !u.inTxn {
		return nil
	}
	return u.session.CommitTransaction(ctx)
}

func (u *Unit) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	defer u.session.EndSession(ctx)
	if !u.inTxn {
		return nil
	}
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

type sessionOutbox struct {
	box     appoutbox.Outbox
	session mongo.Session
}

func (o sessionOutbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	return o.box.Add(scoped(ctx, o.session), record)
}

func (o sessionOutbox) Flush(context.Context) error { return nil }

var (
	_ uow.UoWFactory = Factory{}
	_ uow.UnitOfWork = (*Unit)(nil)
)

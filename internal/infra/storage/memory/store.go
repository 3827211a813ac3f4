package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	appoutbox "staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	domainaudit "staybook/internal/domain/audit"
	domainavailability "staybook/internal/domain/availability"
	domainbooking "staybook/internal/domain/booking"
	domainlistings "staybook/internal/domain/listings"
	domainrange "staybook/internal/domain/shared/daterange"
)

var (
	ErrUnitClosed       = errors.New("memory: unit of work already finished")
	ErrReadOnlyUnit     = errors.New("memory: write attempted in read-only unit")
	ErrDuplicateBooking = errors.New("memory: booking already exists")
	ErrStoreMisconfig   = errors.New("memory: store misconfigured")
)

// Store keeps bookings, intervals and the activity log behind one lock.
// Units stage their writes and apply them atomically on Commit, after
// checking them again against whatever committed in the meantime.
type Store struct {
	mu        sync.RWMutex
	listings  *ListingRepository
	relay     appoutbox.Outbox
	bookings  map[domainbooking.BookingID]*domainbooking.Booking
	intervals map[domainlistings.ListingID][]domainavailability.Interval
	activity  map[domainbooking.BookingID][]domainaudit.Entry
}

// NewStore builds an empty store. relay receives committed event records;
// nil discards them.
func NewStore(listings *ListingRepository, relay appoutbox.Outbox) *Store {
	if listings == nil {
		listings = NewListingRepository()
	}
	if relay == nil {
		relay = appoutbox.Discard{}
	}
	return &Store{
		listings:  listings,
		relay:     relay,
		bookings:  make(map[domainbooking.BookingID]*domainbooking.Booking),
		intervals: make(map[domainlistings.ListingID][]domainavailability.Interval),
		activity:  make(map[domainbooking.BookingID][]domainaudit.Entry),
	}
}

// Begin opens a unit over the store.
func (s *Store) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if s == nil || s.bookings == nil {
		return nil, ErrStoreMisconfig
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Unit{
		store:    s,
		readOnly: opts.ReadOnly,
		inserted: make(map[domainbooking.BookingID]*domainbooking.Booking),
		saved:    make(map[domainbooking.BookingID]stagedSave),
	}, nil
}

// Listings exposes the listing repository the store reads snapshots from.
func (s *Store) Listings() *ListingRepository {
	return s.listings
}

// CommittedIntervals returns a copy of the occupied intervals of a listing.
func (s *Store) CommittedIntervals(listingID domainlistings.ListingID) []domainavailability.Interval {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]domainavailability.Interval(nil), s.intervals[listingID]...)
	domainavailability.SortIntervals(out)
	return out
}

// BookingCount reports committed bookings, deleted ones included.
func (s *Store) BookingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bookings)
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

type stagedSave struct {
	booking  *domainbooking.Booking
	expected int64
}

type releaseKey struct {
	listingID domainlistings.ListingID
	bookingID domainbooking.BookingID
}

// Unit is a single-goroutine unit of work over Store.
type Unit struct {
	store    *Store
	readOnly bool
	done     bool

	inserted map[domainbooking.BookingID]*domainbooking.Booking
	saved    map[domainbooking.BookingID]stagedSave
	reserved []domainavailability.Interval
	released []releaseKey
	entries  []domainaudit.Entry
	records  []appoutbox.EventRecord
}

func (u *Unit) Listings() domainlistings.Reader {
	return u.store.listings
}

func (u *Unit) Bookings() domainbooking.Repository {
	return unitBookings{u}
}

func (u *Unit) Intervals() domainavailability.IntervalStore {
	return unitIntervals{u}
}

func (u *Unit) Activity() domainaudit.Repository {
	return unitActivity{u}
}

func (u *Unit) Outbox() appoutbox.Outbox {
	return unitOutbox{u}
}

func (u *Unit) writable() error {
	if u.done {
		return ErrUnitClosed
	}
	if u.readOnly {
		return ErrReadOnlyUnit
	}
	return nil
}

// Commit re-validates staged writes under the store lock and applies them
// all, or none when any check fails.
func (u *Unit) Commit(ctx context.Context) error {
	if u.done {
		return ErrUnitClosed
	}
	u.done = true
	if u.readOnly {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range u.inserted {
		if _, exists := s.bookings[id]; exists {
			return ErrDuplicateBooking
		}
	}
	for id, staged := range u.saved {
		current, ok := s.bookings[id]
		if !ok || current.Version != staged.expected {
			return domainbooking.ErrConcurrentUpdate
		}
	}

	touched := make(map[domainlistings.ListingID][]domainavailability.Interval)
	view := func(listingID domainlistings.ListingID) []domainavailability.Interval {
		if list, ok := touched[listingID]; ok {
			return list
		}
		list := append([]domainavailability.Interval(nil), s.intervals[listingID]...)
		touched[listingID] = list
		return list
	}
	for _, rel := range u.released {
		list := view(rel.listingID)
		kept := list[:0]
		for _, iv := range list {
			if iv.BookingID != rel.bookingID {
				kept = append(kept, iv)
			}
		}
		touched[rel.listingID] = kept
	}
	for _, res := range u.reserved {
		list := view(res.ListingID)
		for _, iv := range list {
			if iv.Range.Overlaps(res.Range) {
				return domainavailability.ErrOverlappingRange
			}
		}
		touched[res.ListingID] = append(list, res)
	}

	for id, b := range u.inserted {
		b.Version = 1
		s.bookings[id] = b
	}
	for id, staged := range u.saved {
		staged.booking.Version = staged.expected + 1
		s.bookings[id] = staged.booking
	}
	for listingID, list := range touched {
		if len(list) == 0 {
			delete(s.intervals, listingID)
			continue
		}
		s.intervals[listingID] = list
	}
	for _, e := range u.entries {
		e.Sequence = len(s.activity[e.BookingID]) + 1
		s.activity[e.BookingID] = append(s.activity[e.BookingID], e)
	}
	for _, rec := range u.records {
		// Relay order follows commit order.
		_ = s.relay.Add(ctx, rec)
	}
	u.clear()
	return nil
}

func (u *Unit) Rollback(context.Context) error {
	u.done = true
	u.clear()
	return nil
}

func (u *Unit) clear() {
	u.inserted = nil
	u.saved = nil
	u.reserved = nil
	u.released = nil
	u.entries = nil
	u.records = nil
}

type unitBookings struct{ u *Unit }

func (r unitBookings) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	if b, ok := r.u.inserted[id]; ok {
		return cloneBooking(b), nil
	}
	if staged, ok := r.u.saved[id]; ok {
		return cloneBooking(staged.booking), nil
	}
	s := r.u.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, domainbooking.ErrBookingNotFound
	}
	return cloneBooking(b), nil
}

func (r unitBookings) Insert(ctx context.Context, b *domainbooking.Booking) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	if _, ok := r.u.inserted[b.ID]; ok {
		return ErrDuplicateBooking
	}
	s := r.u.store
	s.mu.RLock()
	_, exists := s.bookings[b.ID]
	s.mu.RUnlock()
	if exists {
		return ErrDuplicateBooking
	}
	r.u.inserted[b.ID] = cloneBooking(b)
	b.Version = 1
	return nil
}

func (r unitBookings) Save(ctx context.Context, b *domainbooking.Booking) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	if _, ok := r.u.inserted[b.ID]; ok {
		r.u.inserted[b.ID] = cloneBooking(b)
		return nil
	}
	expected := b.Version
	if staged, ok := r.u.saved[b.ID]; ok {
		expected = staged.expected
	}
	r.u.saved[b.ID] = stagedSave{booking: cloneBooking(b), expected: expected}
	b.Version = expected + 1
	return nil
}

func (r unitBookings) ListCheckedOutBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domainbooking.Booking, error) {
	s := r.u.store
	s.mu.RLock()
	var out []*domainbooking.Booking
	for _, b := range s.bookings {
		if b.IsDeleted() || b.Status != domainbooking.StatusCheckedOut {
			continue
		}
		if b.CheckedOutAt.After(cutoff) {
			continue
		}
		out = append(out, cloneBooking(b))
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].CheckedOutAt.Before(out[j].CheckedOutAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type unitIntervals struct{ u *Unit }

func (r unitIntervals) Overlapping(ctx context.Context, listingID domainlistings.ListingID, rng domainrange.DateRange) ([]domainavailability.Interval, error) {
	s := r.u.store
	s.mu.RLock()
	committed := append([]domainavailability.Interval(nil), s.intervals[listingID]...)
	s.mu.RUnlock()

	var out []domainavailability.Interval
	for _, iv := range committed {
		if r.released(listingID, iv.BookingID) || !iv.Range.Overlaps(rng) {
			continue
		}
		out = append(out, iv)
	}
	for _, iv := range r.u.reserved {
		if iv.ListingID == listingID && iv.Range.Overlaps(rng) {
			out = append(out, iv)
		}
	}
	domainavailability.SortIntervals(out)
	return out, nil
}

func (r unitIntervals) released(listingID domainlistings.ListingID, bookingID domainbooking.BookingID) bool {
	for _, rel := range r.u.released {
		if rel.listingID == listingID && rel.bookingID == bookingID {
			return true
		}
	}
	return false
}

func (r unitIntervals) Reserve(ctx context.Context, interval domainavailability.Interval) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	if err := interval.Range.Validate(); err != nil {
		return err
	}
	existing, err := r.Overlapping(ctx, interval.ListingID, interval.Range)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return domainavailability.ErrOverlappingRange
	}
	r.u.reserved = append(r.u.reserved, interval)
	return nil
}

func (r unitIntervals) Release(ctx context.Context, listingID domainlistings.ListingID, bookingID domainbooking.BookingID) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	kept := r.u.reserved[:0]
	for _, iv := range r.u.reserved {
		if iv.ListingID == listingID && iv.BookingID == bookingID {
			continue
		}
		kept = append(kept, iv)
	}
	r.u.reserved = kept
	r.u.released = append(r.u.released, releaseKey{listingID: listingID, bookingID: bookingID})
	return nil
}

type unitActivity struct{ u *Unit }

func (r unitActivity) Append(ctx context.Context, entry domainaudit.Entry) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	if entry.BookingID == "" {
		return errors.New("memory: activity entry without booking")
	}
	entry.Metadata = cloneMeta(entry.Metadata)
	r.u.entries = append(r.u.entries, entry)
	return nil
}

func (r unitActivity) ListByBooking(ctx context.Context, id domainbooking.BookingID) ([]domainaudit.Entry, error) {
	s := r.u.store
	s.mu.RLock()
	out := make([]domainaudit.Entry, 0, len(s.activity[id]))
	for _, e := range s.activity[id] {
		e.Metadata = cloneMeta(e.Metadata)
		out = append(out, e)
	}
	s.mu.RUnlock()
	next := len(out) + 1
	for _, e := range r.u.entries {
		if e.BookingID != id {
			continue
		}
		e.Sequence = next
		e.Metadata = cloneMeta(e.Metadata)
		next++
		out = append(out, e)
	}
	return out, nil
}

type unitOutbox struct{ u *Unit }

func (o unitOutbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	if err := o.u.writable(); err != nil {
		return err
	}
	o.u.records = append(o.u.records, record)
	return nil
}

func (o unitOutbox) Flush(context.Context) error { return nil }

func cloneBooking(b *domainbooking.Booking) *domainbooking.Booking {
	cp := *b
	cp.ClearEvents()
	return &cp
}

func cloneMeta(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

var (
	_ uow.UoWFactory = (*Store)(nil)
	_ uow.UnitOfWork = (*Unit)(nil)
)

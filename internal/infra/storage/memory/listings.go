package memory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	domainlistings "staybook/internal/domain/listings"
	"staybook/internal/domain/shared/money"
)

// ListingRepository serves listing snapshots from memory. The catalog is
// owned by another service; this is the local stand-in fed from fixtures.
type ListingRepository struct {
	mu    sync.RWMutex
	items map[domainlistings.ListingID]domainlistings.Snapshot
}

func NewListingRepository() *ListingRepository {
	return &ListingRepository{
		items: make(map[domainlistings.ListingID]domainlistings.Snapshot),
	}
}

func (r *ListingRepository) Snapshot(ctx context.Context, id domainlistings.ListingID) (domainlistings.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap, ok := r.items[id]
	if !ok {
		return domainlistings.Snapshot{}, domainlistings.ErrListingNotFound
	}
	return snap, nil
}

// Put stores or replaces a listing after validating it.
func (r *ListingRepository) Put(snap domainlistings.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("memory: listing %s: %w", snap.ID, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[snap.ID] = snap
	return nil
}

// All returns every snapshot ordered by id.
func (r *ListingRepository) All() []domainlistings.Snapshot {
	r.mu.RLock()
	out := make([]domainlistings.Snapshot, 0, len(r.items))
	for _, snap := range r.items {
		out = append(out, snap)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *ListingRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

type listingFixture struct {
	ID            string `yaml:"id"`
	PropertyID    string `yaml:"property_id"`
	HostID        string `yaml:"host_id"`
	Currency      string `yaml:"currency"`
	PricePerNight int64  `yaml:"price_per_night"`
	CleaningFee   int64  `yaml:"cleaning_fee"`
	MaxGuests     int    `yaml:"max_guests"`
}

type fixtureFile struct {
	Listings []listingFixture `yaml:"listings"`
}

// LoadFixtures reads listings from a YAML (or JSON) document. Amounts are in
// minor units of the listing currency.
func (r *ListingRepository) LoadFixtures(data []byte) (int, error) {
	var file fixtureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("memory: parse listing fixtures: %w", err)
	}
	for _, f := range file.Listings {
		rate, err := money.New(f.PricePerNight, f.Currency)
		if err != nil {
			return 0, fmt.Errorf("memory: listing %s: %w", f.ID, err)
		}
		fee, err := money.New(f.CleaningFee, f.Currency)
		if err != nil {
			return 0, fmt.Errorf("memory: listing %s: %w", f.ID, err)
		}
		snap := domainlistings.Snapshot{
			ID:            domainlistings.ListingID(f.ID),
			PropertyID:    domainlistings.PropertyID(f.PropertyID),
			Host:          domainlistings.HostID(f.HostID),
			PricePerNight: rate,
			CleaningFee:   fee,
			MaxGuests:     f.MaxGuests,
		}
		if err := r.Put(snap); err != nil {
			return 0, err
		}
	}
	return len(file.Listings), nil
}

func (r *ListingRepository) LoadFixturesFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("memory: read listing fixtures: %w", err)
	}
	return r.LoadFixtures(data)
}

var _ domainlistings.Reader = (*ListingRepository)(nil)

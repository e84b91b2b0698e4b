package kds

import (
	"context"
	"fmt"

	"github.com/aquamarinepk/aqm"
	"github.com/bblatev/bjs-menu-sub004/pkg/enums/stationtype"
)

// Registry owns station definitions and category-to-station resolution.
// Venue configuration drives it; the registry never invents routing rules.
type Registry struct {
	store  *VenueStore
	repo   StationRepository
	logger aqm.Logger
}

func NewRegistry(store *VenueStore, repo StationRepository, logger aqm.Logger) *Registry {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Registry{store: store, repo: repo, logger: logger}
}

// EnsureDefaults seeds a canonical station set for a venue that has none.
// Idempotent: venues with any station are left untouched.
func (r *Registry) EnsureDefaults(ctx context.Context, venueID VenueID) error {
	if r.store.StationCount(venueID) > 0 {
		return nil
	}

	defaults := []Station{
		{Code: "kitchen", Name: "Kitchen", Type: stationtype.Kitchen, Categories: []string{"appetizers", "mains", "sides"}, AvgCookTimeMinutes: 12, MaxCapacity: 12, Active: true},
		{Code: "bar", Name: "Bar", Type: stationtype.Bar, Categories: []string{"drinks", "beverages", "cocktails"}, AvgCookTimeMinutes: 4, MaxCapacity: 10, Active: true},
		{Code: "grill", Name: "Grill", Type: stationtype.Grill, Categories: []string{"grill", "steaks", "burgers"}, AvgCookTimeMinutes: 15, MaxCapacity: 8, Active: true},
		{Code: "expo", Name: "Expo", Type: stationtype.Expo, Categories: nil, AvgCookTimeMinutes: 2, MaxCapacity: 20, Active: true},
	}

	for i := range defaults {
		d := defaults[i]
		if _, err := r.GetOrCreate(ctx, venueID, d.Code, d.Name, d.Type, d.Categories, d.AvgCookTimeMinutes, d.MaxCapacity); err != nil {
			return fmt.Errorf("cannot seed default station %s: %w", d.Code, err)
		}
	}

	r.logger.Info("seeded default stations", "venue_id", venueID)
	return nil
}

// GetOrCreate upserts a station keyed by (venue, code).
func (r *Registry) GetOrCreate(ctx context.Context, venueID VenueID, code, name string, stype stationtype.Type, categories []string, avgCookTimeMinutes, maxCapacity int) (*Station, error) {
	station := r.store.UpsertStation(venueID, &Station{
		Code:               code,
		Name:               name,
		Type:               stype,
		Categories:         categories,
		AvgCookTimeMinutes: avgCookTimeMinutes,
		MaxCapacity:        maxCapacity,
		Active:             true,
	})

	if r.repo != nil {
		if err := r.repo.Upsert(ctx, station); err != nil {
			return nil, fmt.Errorf("cannot persist station %s: %w", code, err)
		}
	}
	return station, nil
}

// Update applies partial changes to an existing station.
func (r *Registry) Update(ctx context.Context, venueID VenueID, code string, upd StationUpdate) (*Station, error) {
	station, err := r.store.UpdateStation(venueID, code, upd)
	if err != nil {
		return nil, err
	}

	if r.repo != nil {
		if err := r.repo.Upsert(ctx, station); err != nil {
			return nil, fmt.Errorf("cannot persist station %s: %w", code, err)
		}
	}
	return station, nil
}

// Stations returns the venue's stations in registration order.
func (r *Registry) Stations(venueID VenueID) []Station {
	return r.store.Stations(venueID)
}

// Resolve picks the destination station for an item category. Active
// stations are scanned in registration order; the first whose category set
// holds the wildcard or the exact category wins. Unmatched categories fall
// back to the first kitchen-type station, then to the first active station.
func (r *Registry) Resolve(venueID VenueID, category string) (*Station, error) {
	stations := r.store.Stations(venueID)
	if len(stations) == 0 {
		return nil, fmt.Errorf("venue %s has no stations: %w", venueID, ErrRouting)
	}

	var firstActive *Station
	var firstKitchen *Station
	for i := range stations {
		s := &stations[i]
		if !s.Active {
			continue
		}
		if s.Handles(category) {
			return s.Clone(), nil
		}
		if firstActive == nil {
			firstActive = s
		}
		if firstKitchen == nil && s.Type == stationtype.Kitchen {
			firstKitchen = s
		}
	}

	if firstKitchen != nil {
		return firstKitchen.Clone(), nil
	}
	if firstActive != nil {
		return firstActive.Clone(), nil
	}
	return nil, fmt.Errorf("category %q has no destination in venue %s: %w", category, venueID, ErrRouting)
}

package kds

import (
	"context"
	"errors"
	"testing"

	"github.com/aquamarinepk/aqm"
	"github.com/bblatev/bjs-menu-sub004/pkg/enums/stationtype"
	"github.com/google/uuid"
)

func TestRegistryEnsureDefaults(t *testing.T) {
	kit := newTestKit(t)
	ctx := context.Background()

	if err := kit.registry.EnsureDefaults(ctx, kit.venueID); err != nil {
		t.Fatalf("EnsureDefaults() error = %v", err)
	}

	stations := kit.registry.Stations(kit.venueID)
	if len(stations) != 4 {
		t.Fatalf("stations = %d, want 4", len(stations))
	}

	wantCodes := []string{"kitchen", "bar", "grill", "expo"}
	for i, code := range wantCodes {
		if stations[i].Code != code {
			t.Errorf("stations[%d].Code = %q, want %q", i, stations[i].Code, code)
		}
		if !stations[i].Active {
			t.Errorf("station %q is not active", code)
		}
	}
}

func TestRegistryEnsureDefaultsIdempotent(t *testing.T) {
	kit := newTestKit(t)
	ctx := context.Background()

	// A venue that already configured a single custom station keeps it.
	if _, err := kit.registry.GetOrCreate(ctx, kit.venueID, "wok", "Wok", stationtype.Kitchen, []string{"mains"}, 8, 6); err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	if err := kit.registry.EnsureDefaults(ctx, kit.venueID); err != nil {
		t.Fatalf("EnsureDefaults() error = %v", err)
	}

	stations := kit.registry.Stations(kit.venueID)
	if len(stations) != 1 {
		t.Errorf("stations = %d, want 1 (defaults must not overwrite venue config)", len(stations))
	}
}

func TestRegistryGetOrCreatePersists(t *testing.T) {
	logger := aqm.NewNoopLogger()
	store := NewVenueStore(logger)
	repo := NewMockStationRepository()
	registry := NewRegistry(store, repo, logger)
	venueID := uuid.New()

	station, err := registry.GetOrCreate(context.Background(), venueID, "bar", "Bar", stationtype.Bar, []string{"drinks"}, 4, 10)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	persisted, err := repo.List(context.Background(), venueID)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(persisted) != 1 || persisted[0].ID != station.ID {
		t.Error("GetOrCreate() did not persist the station")
	}
}

func TestRegistryGetOrCreatePersistError(t *testing.T) {
	logger := aqm.NewNoopLogger()
	store := NewVenueStore(logger)
	repo := NewMockStationRepository()
	repo.UpsertFunc = func(ctx context.Context, s *Station) error {
		return errors.New("write failed")
	}
	registry := NewRegistry(store, repo, logger)

	_, err := registry.GetOrCreate(context.Background(), uuid.New(), "bar", "Bar", stationtype.Bar, nil, 4, 10)
	if err == nil {
		t.Error("GetOrCreate() should surface repo errors")
	}
}

func TestRegistryUpdate(t *testing.T) {
	kit := newTestKit(t)
	kit.seedStations(t)
	ctx := context.Background()

	inactive := false
	avg := 20
	station, err := kit.registry.Update(ctx, kit.venueID, "grill", StationUpdate{
		Active:             &inactive,
		AvgCookTimeMinutes: &avg,
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if station.Active {
		t.Error("station still active after update")
	}
	if station.AvgCookTimeMinutes != 20 {
		t.Errorf("avg cook time = %d, want 20", station.AvgCookTimeMinutes)
	}

	_, err = kit.registry.Update(ctx, kit.venueID, "nope", StationUpdate{})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestRegistryResolve(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		setup    func(t *testing.T, kit *testKit)
		category string
		wantCode string
		wantErr  error
	}{
		{
			name: "exactCategoryMatch",
			setup: func(t *testing.T, kit *testKit) {
				kit.seedStations(t)
			},
			category: "steaks",
			wantCode: "grill",
		},
		{
			name: "wildcardMatch",
			setup: func(t *testing.T, kit *testKit) {
				if _, err := kit.registry.GetOrCreate(ctx, kit.venueID, "allhands", "All Hands", stationtype.Prep, []string{CategoryAll}, 5, 5); err != nil {
					t.Fatal(err)
				}
			},
			category: "anything",
			wantCode: "allhands",
		},
		{
			name: "registrationOrderWins",
			setup: func(t *testing.T, kit *testKit) {
				if _, err := kit.registry.GetOrCreate(ctx, kit.venueID, "first", "First", stationtype.Prep, []string{"mains"}, 5, 5); err != nil {
					t.Fatal(err)
				}
				if _, err := kit.registry.GetOrCreate(ctx, kit.venueID, "second", "Second", stationtype.Prep, []string{"mains"}, 5, 5); err != nil {
					t.Fatal(err)
				}
			},
			category: "mains",
			wantCode: "first",
		},
		{
			name: "inactiveStationSkipped",
			setup: func(t *testing.T, kit *testKit) {
				kit.seedStations(t)
				inactive := false
				if _, err := kit.registry.Update(ctx, kit.venueID, "grill", StationUpdate{Active: &inactive}); err != nil {
					t.Fatal(err)
				}
			},
			category: "steaks",
			wantCode: "kitchen", // kitchen-type fallback
		},
		{
			name: "kitchenFallbackForUnmatched",
			setup: func(t *testing.T, kit *testKit) {
				kit.seedStations(t)
			},
			category: "desserts",
			wantCode: "kitchen",
		},
		{
			name: "firstActiveFallbackWithoutKitchen",
			setup: func(t *testing.T, kit *testKit) {
				if _, err := kit.registry.GetOrCreate(ctx, kit.venueID, "bar", "Bar", stationtype.Bar, []string{"drinks"}, 4, 10); err != nil {
					t.Fatal(err)
				}
			},
			category: "desserts",
			wantCode: "bar",
		},
		{
			name:     "noStations",
			setup:    func(t *testing.T, kit *testKit) {},
			category: "mains",
			wantErr:  ErrRouting,
		},
		{
			name: "allStationsInactive",
			setup: func(t *testing.T, kit *testKit) {
				if _, err := kit.registry.GetOrCreate(ctx, kit.venueID, "bar", "Bar", stationtype.Bar, []string{"drinks"}, 4, 10); err != nil {
					t.Fatal(err)
				}
				inactive := false
				if _, err := kit.registry.Update(ctx, kit.venueID, "bar", StationUpdate{Active: &inactive}); err != nil {
					t.Fatal(err)
				}
			},
			category: "drinks",
			wantErr:  ErrRouting,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kit := newTestKit(t)
			tt.setup(t, kit)

			station, err := kit.registry.Resolve(kit.venueID, tt.category)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Resolve() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if station.Code != tt.wantCode {
				t.Errorf("Resolve() station = %q, want %q", station.Code, tt.wantCode)
			}
		})
	}
}

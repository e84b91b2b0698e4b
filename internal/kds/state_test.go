package kds

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/bblatev/bjs-menu-sub004/pkg/enums/stationtype"
	"github.com/bblatev/bjs-menu-sub004/pkg/enums/ticketstatus"
	"github.com/google/uuid"
)

func TestVenueStoreUpsertStation(t *testing.T) {
	store := NewVenueStore(aqm.NewNoopLogger())
	venueID := uuid.New()

	first := store.UpsertStation(venueID, &Station{Code: "grill", Name: "Grill", Type: stationtype.Grill, Active: true})
	if first.ID == uuid.Nil {
		t.Error("UpsertStation() did not assign an ID")
	}
	if first.VenueID != venueID {
		t.Errorf("station venue = %v, want %v", first.VenueID, venueID)
	}

	second := store.UpsertStation(venueID, &Station{Code: "grill", Name: "Char Grill", Type: stationtype.Grill, Active: true})
	if second.ID != first.ID {
		t.Error("upsert by code changed station identity")
	}
	if second.Name != "Char Grill" {
		t.Errorf("station name = %q, want Char Grill", second.Name)
	}
	if store.StationCount(venueID) != 1 {
		t.Errorf("station count = %d, want 1", store.StationCount(venueID))
	}
}

func TestVenueStoreUpsertStationPreservesLoad(t *testing.T) {
	kit := newTestKit(t)
	grill, _ := kit.seedStations(t)

	kit.createOrder(t, []TicketItem{{Name: "Steak", Category: "steaks", Quantity: 1}}, false)

	updated := kit.store.UpsertStation(kit.venueID, &Station{Code: grill.Code, Name: "Grill 2", Type: stationtype.Grill, Active: true})
	if updated.CurrentLoad != 1 {
		t.Errorf("load after upsert = %d, want 1", updated.CurrentLoad)
	}
}

func TestVenueStoreCommitTicketsAssignsUniqueCodes(t *testing.T) {
	kit := newTestKit(t)
	grill, kitchen := kit.seedStations(t)

	drafts := []*Ticket{
		{StationID: grill.ID, OrderID: uuid.New(), Status: ticketstatus.New, ItemCount: 1},
		{StationID: kitchen.ID, OrderID: uuid.New(), Status: ticketstatus.New, ItemCount: 1},
	}
	if err := kit.store.CommitTickets(kit.venueID, drafts); err != nil {
		t.Fatalf("CommitTickets() error = %v", err)
	}

	seen := make(map[string]bool)
	for _, d := range drafts {
		if !strings.HasPrefix(d.TicketCode, "TKT-") || len(d.TicketCode) != len("TKT-")+8 {
			t.Errorf("ticket code %q is not TKT- plus 8 hex chars", d.TicketCode)
		}
		if seen[d.TicketCode] {
			t.Errorf("duplicate ticket code %q", d.TicketCode)
		}
		seen[d.TicketCode] = true
		if d.ID == uuid.Nil {
			t.Error("CommitTickets() did not assign an ID")
		}
	}
}

func TestVenueStoreCommitTicketsAtomicOnBadStation(t *testing.T) {
	kit := newTestKit(t)
	grill, _ := kit.seedStations(t)

	drafts := []*Ticket{
		{StationID: grill.ID, OrderID: uuid.New(), Status: ticketstatus.New},
		{StationID: uuid.New(), OrderID: uuid.New(), Status: ticketstatus.New}, // unknown station
	}
	err := kit.store.CommitTickets(kit.venueID, drafts)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("CommitTickets() error = %v, want ErrNotFound", err)
	}

	if got := kit.store.TicketsWhere(kit.venueID, nil); len(got) != 0 {
		t.Errorf("tickets after failed commit = %d, want 0", len(got))
	}
	station, _ := kit.store.StationByCode(kit.venueID, grill.Code)
	if station.CurrentLoad != 0 {
		t.Errorf("grill load after failed commit = %d, want 0", station.CurrentLoad)
	}
}

func TestVenueStoreTransitionReconcilesLoad(t *testing.T) {
	kit := newTestKit(t)
	kit.seedStations(t)

	result := kit.createOrder(t, []TicketItem{{Name: "Steak", Category: "steaks", Quantity: 1}}, false)
	code := result.Tickets[0].TicketCode

	station, _ := kit.store.StationByCode(kit.venueID, "grill")
	if station.CurrentLoad != 1 {
		t.Fatalf("load after create = %d, want 1", station.CurrentLoad)
	}

	_, err := kit.store.Transition(kit.venueID, code, func(tk *Ticket) error {
		tk.Status = ticketstatus.Bumped
		return nil
	})
	if err != nil {
		t.Fatalf("Transition() error = %v", err)
	}

	station, _ = kit.store.StationByCode(kit.venueID, "grill")
	if station.CurrentLoad != 0 {
		t.Errorf("load after bump = %d, want 0", station.CurrentLoad)
	}

	// Back to an active status restores the load.
	_, err = kit.store.Transition(kit.venueID, code, func(tk *Ticket) error {
		tk.Status = ticketstatus.Recalled
		return nil
	})
	if err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	station, _ = kit.store.StationByCode(kit.venueID, "grill")
	if station.CurrentLoad != 1 {
		t.Errorf("load after recall = %d, want 1", station.CurrentLoad)
	}
}

func TestVenueStoreTransitionErrorLeavesTicketUntouched(t *testing.T) {
	kit := newTestKit(t)
	kit.seedStations(t)

	result := kit.createOrder(t, []TicketItem{{Name: "Steak", Category: "steaks", Quantity: 1}}, false)
	code := result.Tickets[0].TicketCode

	boom := errors.New("boom")
	snapshot, err := kit.store.Transition(kit.venueID, code, func(tk *Ticket) error {
		tk.Status = ticketstatus.Bumped
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Transition() error = %v, want boom", err)
	}
	_ = snapshot

	station, _ := kit.store.StationByCode(kit.venueID, "grill")
	if station.CurrentLoad != 1 {
		t.Errorf("load after failed transition = %d, want 1", station.CurrentLoad)
	}
}

func TestVenueStoreTransitionUnknownTicket(t *testing.T) {
	kit := newTestKit(t)
	kit.seedStations(t)

	_, err := kit.store.Transition(kit.venueID, "TKT-deadbeef", func(tk *Ticket) error { return nil })
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Transition() error = %v, want ErrNotFound", err)
	}
}

func TestVenueStoreLoadClampsAtZero(t *testing.T) {
	kit := newTestKit(t)
	grill, _ := kit.seedStations(t)

	// Warm-up insert skips the load increment; without RecomputeLoads the
	// counter sits at zero while an active ticket exists. Transitioning the
	// ticket out must clamp instead of going negative.
	ghost := &Ticket{
		ID:         uuid.New(),
		VenueID:    kit.venueID,
		TicketCode: "TKT-0000fade",
		StationID:  grill.ID,
		OrderID:    uuid.New(),
		Status:     ticketstatus.New,
		CreatedAt:  time.Now(),
	}
	if err := kit.store.LoadTicket(kit.venueID, ghost); err != nil {
		t.Fatalf("LoadTicket() error = %v", err)
	}

	if _, err := kit.store.Transition(kit.venueID, ghost.TicketCode, func(tk *Ticket) error {
		tk.Status = ticketstatus.Voided
		return nil
	}); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}

	station, _ := kit.store.StationByCode(kit.venueID, grill.Code)
	if station.CurrentLoad != 0 {
		t.Errorf("load = %d, want 0 after clamped decrement", station.CurrentLoad)
	}
}

func TestVenueStoreForOrder(t *testing.T) {
	kit := newTestKit(t)
	kit.seedStations(t)

	orderID := uuid.New()
	result, err := kit.router.CreateTickets(context.Background(), kit.venueID, orderID, []TicketItem{
		{Name: "Steak", Category: "steaks", Quantity: 1},
		{Name: "Fries", Category: "sides", Quantity: 1},
	}, "", "", false, "")
	if err != nil {
		t.Fatalf("CreateTickets() error = %v", err)
	}
	if len(result.Tickets) != 2 {
		t.Fatalf("tickets = %d, want 2", len(result.Tickets))
	}

	changed, err := kit.store.ForOrder(kit.venueID, orderID, func(tk *Ticket) bool {
		tk.Status = ticketstatus.Voided
		return true
	})
	if err != nil {
		t.Fatalf("ForOrder() error = %v", err)
	}
	if len(changed) != 2 {
		t.Errorf("changed = %d, want 2", len(changed))
	}

	_, err = kit.store.ForOrder(kit.venueID, uuid.New(), func(tk *Ticket) bool { return true })
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ForOrder(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestVenueStoreSnapshotsAreCopies(t *testing.T) {
	kit := newTestKit(t)
	kit.seedStations(t)

	result := kit.createOrder(t, []TicketItem{{Name: "Steak", Category: "steaks", Quantity: 1}}, false)
	code := result.Tickets[0].TicketCode

	snap, err := kit.store.Ticket(kit.venueID, code)
	if err != nil {
		t.Fatalf("Ticket() error = %v", err)
	}
	snap.Status = ticketstatus.Voided
	snap.Items[0].Name = "mutated"

	fresh, _ := kit.store.Ticket(kit.venueID, code)
	if fresh.Status != ticketstatus.New {
		t.Error("mutating a snapshot changed stored status")
	}
	if fresh.Items[0].Name != "Steak" {
		t.Error("mutating a snapshot changed stored items")
	}
}

func TestVenueStoreConcurrentTransitions(t *testing.T) {
	kit := newTestKit(t)
	kit.seedStations(t)

	const orders = 20
	codes := make([]string, 0, orders)
	for i := 0; i < orders; i++ {
		result := kit.createOrder(t, []TicketItem{{Name: "Steak", Category: "steaks", Quantity: 1}}, false)
		codes = append(codes, result.Tickets[0].TicketCode)
	}

	var wg sync.WaitGroup
	for _, code := range codes {
		wg.Add(1)
		go func(code string) {
			defer wg.Done()
			kit.store.Transition(kit.venueID, code, func(tk *Ticket) error {
				tk.Status = ticketstatus.Bumped
				return nil
			})
		}(code)
	}
	wg.Wait()

	station, _ := kit.store.StationByCode(kit.venueID, "grill")
	if station.CurrentLoad != 0 {
		t.Errorf("load after concurrent bumps = %d, want 0", station.CurrentLoad)
	}
}

func TestVenueStoreWarmupRecomputesLoads(t *testing.T) {
	store := NewVenueStore(aqm.NewNoopLogger())
	venueID := uuid.New()

	station := &Station{
		ID:          uuid.New(),
		VenueID:     venueID,
		Code:        "grill",
		Name:        "Grill",
		Type:        stationtype.Grill,
		CurrentLoad: 99, // stale persisted counter
		Active:      true,
		CreatedAt:   time.Now(),
	}
	store.LoadStation(venueID, station)

	tickets := []*Ticket{
		{ID: uuid.New(), VenueID: venueID, TicketCode: "TKT-00000001", StationID: station.ID, OrderID: uuid.New(), Status: ticketstatus.New, CreatedAt: time.Now()},
		{ID: uuid.New(), VenueID: venueID, TicketCode: "TKT-00000002", StationID: station.ID, OrderID: uuid.New(), Status: ticketstatus.Bumped, CreatedAt: time.Now()},
	}
	for _, tk := range tickets {
		if err := store.LoadTicket(venueID, tk); err != nil {
			t.Fatalf("LoadTicket() error = %v", err)
		}
	}

	store.RecomputeLoads(venueID)
	got, _ := store.StationByCode(venueID, "grill")
	if got.CurrentLoad != 1 {
		t.Errorf("recomputed load = %d, want 1", got.CurrentLoad)
	}

	// Duplicate warm-up inserts are skipped.
	if err := store.LoadTicket(venueID, tickets[0]); err != nil {
		t.Fatalf("LoadTicket(duplicate) error = %v", err)
	}
	if all := store.TicketsWhere(venueID, nil); len(all) != 2 {
		t.Errorf("tickets after duplicate load = %d, want 2", len(all))
	}
}

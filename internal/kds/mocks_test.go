package kds

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/bblatev/bjs-menu-sub004/pkg/enums/stationtype"
	"github.com/bblatev/bjs-menu-sub004/pkg/enums/ticketstatus"
	"github.com/google/uuid"
)

// MockTicketRepository is a test mock for TicketRepository
type MockTicketRepository struct {
	tickets        map[uuid.UUID]*Ticket
	CreateFunc     func(ctx context.Context, t *Ticket) error
	UpdateFunc     func(ctx context.Context, t *Ticket) error
	FindByCodeFunc func(ctx context.Context, venueID VenueID, code string) (*Ticket, error)
	ListFunc       func(ctx context.Context, filter TicketFilter) ([]Ticket, error)
}

func NewMockTicketRepository() *MockTicketRepository {
	return &MockTicketRepository{
		tickets: make(map[uuid.UUID]*Ticket),
	}
}

func (m *MockTicketRepository) Create(ctx context.Context, t *Ticket) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, t)
	}
	m.tickets[t.ID] = t.Clone()
	return nil
}

func (m *MockTicketRepository) Update(ctx context.Context, t *Ticket) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, t)
	}
	if _, exists := m.tickets[t.ID]; !exists {
		return errors.New("ticket not found")
	}
	m.tickets[t.ID] = t.Clone()
	return nil
}

func (m *MockTicketRepository) FindByCode(ctx context.Context, venueID VenueID, code string) (*Ticket, error) {
	if m.FindByCodeFunc != nil {
		return m.FindByCodeFunc(ctx, venueID, code)
	}
	for _, t := range m.tickets {
		if t.VenueID == venueID && t.TicketCode == code {
			return t.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MockTicketRepository) List(ctx context.Context, filter TicketFilter) ([]Ticket, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	result := make([]Ticket, 0, len(m.tickets))
	for _, t := range m.tickets {
		result = append(result, *t.Clone())
	}
	return result, nil
}

// MockStationRepository is a test mock for StationRepository
type MockStationRepository struct {
	stations   map[uuid.UUID]*Station
	UpsertFunc func(ctx context.Context, s *Station) error
	ListFunc   func(ctx context.Context, venueID VenueID) ([]Station, error)
}

func NewMockStationRepository() *MockStationRepository {
	return &MockStationRepository{
		stations: make(map[uuid.UUID]*Station),
	}
}

func (m *MockStationRepository) Upsert(ctx context.Context, s *Station) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, s)
	}
	m.stations[s.ID] = s.Clone()
	return nil
}

func (m *MockStationRepository) List(ctx context.Context, venueID VenueID) ([]Station, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, venueID)
	}
	result := make([]Station, 0, len(m.stations))
	for _, s := range m.stations {
		if s.VenueID == venueID {
			result = append(result, *s.Clone())
		}
	}
	return result, nil
}

// MockBumpHistoryRepository is a test mock for BumpHistoryRepository
type MockBumpHistoryRepository struct {
	records    []BumpHistoryRecord
	AppendFunc func(ctx context.Context, rec *BumpHistoryRecord) error
	ListFunc   func(ctx context.Context, filter HistoryFilter) ([]BumpHistoryRecord, error)
}

func NewMockBumpHistoryRepository() *MockBumpHistoryRepository {
	return &MockBumpHistoryRepository{}
}

func (m *MockBumpHistoryRepository) Append(ctx context.Context, rec *BumpHistoryRecord) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, rec)
	}
	m.records = append(m.records, *rec)
	return nil
}

func (m *MockBumpHistoryRepository) List(ctx context.Context, filter HistoryFilter) ([]BumpHistoryRecord, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	result := make([]BumpHistoryRecord, 0, len(m.records))
	for _, rec := range m.records {
		if rec.VenueID == filter.VenueID {
			result = append(result, rec)
		}
	}
	return result, nil
}

// MockPublisher implements events.Publisher for testing
type MockPublisher struct {
	PublishedEvents []struct {
		Topic string
		Data  []byte
	}
	PublishFunc func(ctx context.Context, topic string, data []byte) error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, data []byte) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, topic, data)
	}
	m.PublishedEvents = append(m.PublishedEvents, struct {
		Topic string
		Data  []byte
	}{topic, data})
	return nil
}

// testKit bundles fully wired components over a fresh in-memory store.
type testKit struct {
	venueID     VenueID
	store       *VenueStore
	registry    *Registry
	router      *Router
	lifecycle   *Lifecycle
	monitor     *Monitor
	expo        *Expo
	performance *Performance
	publisher   *MockPublisher
	history     *MockBumpHistoryRepository
}

func newTestKit(t *testing.T) *testKit {
	t.Helper()

	logger := aqm.NewNoopLogger()
	store := NewVenueStore(logger)
	publisher := NewMockPublisher()
	history := NewMockBumpHistoryRepository()
	registry := NewRegistry(store, nil, logger)
	router := NewRouter(store, registry, nil, publisher, logger)
	lifecycle := NewLifecycle(store, nil, history, publisher, logger)

	return &testKit{
		venueID:     uuid.New(),
		store:       store,
		registry:    registry,
		router:      router,
		lifecycle:   lifecycle,
		monitor:     NewMonitor(store),
		expo:        NewExpo(store),
		performance: NewPerformance(store),
		publisher:   publisher,
		history:     history,
	}
}

// seedStations registers a deterministic two-station layout: a grill that
// handles grill items and a kitchen that handles mains and sides.
func (k *testKit) seedStations(t *testing.T) (grill, kitchen *Station) {
	t.Helper()
	ctx := context.Background()

	grill, err := k.registry.GetOrCreate(ctx, k.venueID, "grill", "Grill", stationtype.Grill, []string{"grill", "steaks"}, 10, 4)
	if err != nil {
		t.Fatalf("GetOrCreate(grill) error = %v", err)
	}
	kitchen, err = k.registry.GetOrCreate(ctx, k.venueID, "kitchen", "Kitchen", stationtype.Kitchen, []string{"mains", "sides"}, 12, 6)
	if err != nil {
		t.Fatalf("GetOrCreate(kitchen) error = %v", err)
	}
	return grill, kitchen
}

// createOrder routes one order through the router and returns its result.
func (k *testKit) createOrder(t *testing.T, items []TicketItem, isRush bool) *CreateResult {
	t.Helper()

	result, err := k.router.CreateTickets(context.Background(), k.venueID, uuid.New(), items, "T7", "Alex", isRush, "")
	if err != nil {
		t.Fatalf("CreateTickets() error = %v", err)
	}
	return result
}

// backdateTicket rewrites a ticket's creation time so wait-based reads see
// an aged ticket. Uses the warm-up insert path with a fresh code.
func (k *testKit) backdateTicket(t *testing.T, station *Station, age time.Duration, status ticketstatus.Status) *Ticket {
	t.Helper()

	now := time.Now()
	createdAt := now.Add(-age)
	ticket := &Ticket{
		ID:          uuid.New(),
		VenueID:     k.venueID,
		TicketCode:  "TKT-" + uuid.New().String()[:8],
		StationID:   station.ID,
		StationCode: station.Code,
		StationName: station.Name,
		OrderID:     uuid.New(),
		Items:       []TicketItem{{Name: "Aged Item", Category: "mains", Quantity: 1}},
		ItemCount:   1,
		Status:      status,
		Priority:    PriorityNormal,
		Course:      "main",
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	if err := k.store.LoadTicket(k.venueID, ticket); err != nil {
		t.Fatalf("LoadTicket() error = %v", err)
	}
	k.store.RecomputeLoads(k.venueID)
	return ticket
}

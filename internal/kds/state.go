package kds

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"
)

// stationState pairs a station with the mutex that serializes every
// status-plus-load mutation for tickets owned by that station. Two stations
// never share a lock, so operations on different stations proceed
// independently.
type stationState struct {
	mu      sync.Mutex
	station *Station
	tickets map[string]*Ticket // by ticket code
}

// venueState holds all mutable state for one venue. The RWMutex guards map
// and slice membership; ticket and load mutation happens under the owning
// stationState mutex.
type venueState struct {
	mu             sync.RWMutex
	stations       []*stationState // registration order
	stationsByCode map[string]*stationState
	stationsByID   map[StationID]*stationState
	ticketOwner    map[string]*stationState // ticket code -> owning station
	orderTickets   map[OrderID][]string     // order id -> ticket codes
	history        []BumpHistoryRecord
}

func newVenueState() *venueState {
	return &venueState{
		stationsByCode: make(map[string]*stationState),
		stationsByID:   make(map[StationID]*stationState),
		ticketOwner:    make(map[string]*stationState),
		orderTickets:   make(map[OrderID][]string),
	}
}

// VenueStore is the in-memory authority for stations, tickets and bump
// history, partitioned by venue. Nothing in here is global: every operation
// takes the venue id it acts on.
type VenueStore struct {
	mu     sync.RWMutex
	venues map[VenueID]*venueState
	logger aqm.Logger
}

func NewVenueStore(logger aqm.Logger) *VenueStore {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &VenueStore{
		venues: make(map[VenueID]*venueState),
		logger: logger,
	}
}

// venue returns the state for a venue, creating it on first use.
func (s *VenueStore) venue(id VenueID) *venueState {
	s.mu.RLock()
	vs := s.venues[id]
	s.mu.RUnlock()
	if vs != nil {
		return vs
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if vs = s.venues[id]; vs == nil {
		vs = newVenueState()
		s.venues[id] = vs
	}
	return vs
}

// peek returns the state for a venue without creating it.
func (s *VenueStore) peek(id VenueID) (*venueState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vs, ok := s.venues[id]
	return vs, ok
}

// UpsertStation registers or updates a station keyed by (venue, code).
// Registration order, identity and current load survive updates.
func (s *VenueStore) UpsertStation(venueID VenueID, station *Station) *Station {
	vs := s.venue(venueID)
	vs.mu.Lock()
	defer vs.mu.Unlock()

	now := time.Now()
	if st, ok := vs.stationsByCode[station.Code]; ok {
		st.mu.Lock()
		st.station.Name = station.Name
		st.station.Type = station.Type
		st.station.Categories = append([]string(nil), station.Categories...)
		st.station.AvgCookTimeMinutes = station.AvgCookTimeMinutes
		st.station.MaxCapacity = station.MaxCapacity
		st.station.Active = station.Active
		st.station.UpdatedAt = now
		out := st.station.Clone()
		st.mu.Unlock()
		return out
	}

	cp := station.Clone()
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	cp.VenueID = venueID
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	if cp.ModelVersion == 0 {
		cp.ModelVersion = 1
	}

	st := &stationState{station: cp, tickets: make(map[string]*Ticket)}
	vs.stations = append(vs.stations, st)
	vs.stationsByCode[cp.Code] = st
	vs.stationsByID[cp.ID] = st
	return cp.Clone()
}

// UpdateStation applies the non-nil fields of upd to an existing station.
func (s *VenueStore) UpdateStation(venueID VenueID, code string, upd StationUpdate) (*Station, error) {
	vs, ok := s.peek(venueID)
	if !ok {
		return nil, fmt.Errorf("venue %s: %w", venueID, ErrNotFound)
	}

	vs.mu.RLock()
	st := vs.stationsByCode[code]
	vs.mu.RUnlock()
	if st == nil {
		return nil, fmt.Errorf("station %s: %w", code, ErrNotFound)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if upd.Name != nil {
		st.station.Name = *upd.Name
	}
	if upd.Type != nil {
		st.station.Type = *upd.Type
	}
	if upd.Categories != nil {
		st.station.Categories = append([]string(nil), upd.Categories...)
	}
	if upd.AvgCookTimeMinutes != nil {
		st.station.AvgCookTimeMinutes = *upd.AvgCookTimeMinutes
	}
	if upd.MaxCapacity != nil {
		st.station.MaxCapacity = *upd.MaxCapacity
	}
	if upd.Active != nil {
		st.station.Active = *upd.Active
	}
	st.station.UpdatedAt = time.Now()
	return st.station.Clone(), nil
}

// Stations returns snapshot copies in registration order.
func (s *VenueStore) Stations(venueID VenueID) []Station {
	vs, ok := s.peek(venueID)
	if !ok {
		return nil
	}

	vs.mu.RLock()
	defer vs.mu.RUnlock()
	out := make([]Station, 0, len(vs.stations))
	for _, st := range vs.stations {
		st.mu.Lock()
		out = append(out, *st.station.Clone())
		st.mu.Unlock()
	}
	return out
}

func (s *VenueStore) StationByCode(venueID VenueID, code string) (*Station, error) {
	vs, ok := s.peek(venueID)
	if !ok {
		return nil, fmt.Errorf("venue %s: %w", venueID, ErrNotFound)
	}

	vs.mu.RLock()
	st := vs.stationsByCode[code]
	vs.mu.RUnlock()
	if st == nil {
		return nil, fmt.Errorf("station %s: %w", code, ErrNotFound)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	return st.station.Clone(), nil
}

func (s *VenueStore) StationCount(venueID VenueID) int {
	vs, ok := s.peek(venueID)
	if !ok {
		return 0
	}
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return len(vs.stations)
}

// CommitTickets inserts a batch of new tickets and applies their load
// increments as one atomic step: either every ticket is registered with a
// unique code and every destination load bumped, or nothing changes.
func (s *VenueStore) CommitTickets(venueID VenueID, drafts []*Ticket) error {
	if len(drafts) == 0 {
		return nil
	}
	vs := s.venue(venueID)
	vs.mu.Lock()
	defer vs.mu.Unlock()

	// Validate destinations before touching anything.
	owners := make([]*stationState, len(drafts))
	for i, t := range drafts {
		st := vs.stationsByID[t.StationID]
		if st == nil {
			return fmt.Errorf("station %s: %w", t.StationID, ErrNotFound)
		}
		owners[i] = st
	}

	now := time.Now()
	for i, t := range drafts {
		code, err := vs.nextTicketCodeLocked()
		if err != nil {
			return err
		}
		t.TicketCode = code
		t.VenueID = venueID
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		t.UpdatedAt = now
		if t.ModelVersion == 0 {
			t.ModelVersion = 1
		}

		st := owners[i]
		st.mu.Lock()
		st.tickets[code] = t
		st.station.CurrentLoad++
		st.mu.Unlock()

		vs.ticketOwner[code] = st
		vs.orderTickets[t.OrderID] = append(vs.orderTickets[t.OrderID], code)
	}
	return nil
}

// nextTicketCodeLocked generates a "TKT-" + 8 hex char code unique within
// the venue, regenerating on collision. Codes are never reused: terminal
// tickets stay indexed.
func (vs *venueState) nextTicketCodeLocked() (string, error) {
	for attempt := 0; attempt < 16; attempt++ {
		var buf [4]byte
		if _, err := rand.Read(buf[:]); err != nil {
			return "", fmt.Errorf("cannot generate ticket code: %w", err)
		}
		code := "TKT-" + hex.EncodeToString(buf[:])
		if _, taken := vs.ticketOwner[code]; !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("cannot generate unique ticket code")
}

// Ticket returns a snapshot of one ticket by code.
func (s *VenueStore) Ticket(venueID VenueID, code string) (*Ticket, error) {
	vs, ok := s.peek(venueID)
	if !ok {
		return nil, fmt.Errorf("venue %s: %w", venueID, ErrNotFound)
	}

	vs.mu.RLock()
	st := vs.ticketOwner[code]
	vs.mu.RUnlock()
	if st == nil {
		return nil, fmt.Errorf("ticket %s: %w", code, ErrNotFound)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	return st.tickets[code].Clone(), nil
}

// Transition runs fn on a ticket under its station lock and reconciles the
// station load with the ticket's active flag in the same critical section.
// The returned snapshot reflects the post-transition state; on error the
// ticket is untouched and the pre-transition snapshot is returned.
func (s *VenueStore) Transition(venueID VenueID, code string, fn func(t *Ticket) error) (*Ticket, error) {
	vs, ok := s.peek(venueID)
	if !ok {
		return nil, fmt.Errorf("venue %s: %w", venueID, ErrNotFound)
	}

	vs.mu.RLock()
	st := vs.ticketOwner[code]
	vs.mu.RUnlock()
	if st == nil {
		return nil, fmt.Errorf("ticket %s: %w", code, ErrNotFound)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	t := st.tickets[code]
	wasActive := t.Status.Active()
	if err := fn(t); err != nil {
		return t.Clone(), err
	}
	t.UpdatedAt = time.Now()

	s.adjustLoadLocked(st, wasActive, t.Status.Active())
	return t.Clone(), nil
}

// ForOrder runs fn on every ticket of an order, each under its own station
// lock, and reconciles loads the same way Transition does. fn reports
// whether it changed the ticket; changed snapshots are returned.
func (s *VenueStore) ForOrder(venueID VenueID, orderID OrderID, fn func(t *Ticket) bool) ([]Ticket, error) {
	vs, ok := s.peek(venueID)
	if !ok {
		return nil, fmt.Errorf("venue %s: %w", venueID, ErrNotFound)
	}

	vs.mu.RLock()
	codes := append([]string(nil), vs.orderTickets[orderID]...)
	owners := make([]*stationState, len(codes))
	for i, code := range codes {
		owners[i] = vs.ticketOwner[code]
	}
	vs.mu.RUnlock()

	if len(codes) == 0 {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}

	var changed []Ticket
	for i, code := range codes {
		st := owners[i]
		st.mu.Lock()
		t := st.tickets[code]
		wasActive := t.Status.Active()
		if fn(t) {
			t.UpdatedAt = time.Now()
			s.adjustLoadLocked(st, wasActive, t.Status.Active())
			changed = append(changed, *t.Clone())
		}
		st.mu.Unlock()
	}
	return changed, nil
}

// adjustLoadLocked applies the load delta implied by an active-flag change.
// Must be called with the station lock held. Load never goes negative: the
// count is clamped to zero and the desync logged, since upstream
// cancellations can leave counters behind.
func (s *VenueStore) adjustLoadLocked(st *stationState, wasActive, isActive bool) {
	switch {
	case wasActive && !isActive:
		if st.station.CurrentLoad == 0 {
			s.logger.Info("station load underflow clamped to zero", "station", st.station.Code)
			return
		}
		st.station.CurrentLoad--
	case !wasActive && isActive:
		st.station.CurrentLoad++
	}
}

// StationTickets returns a station snapshot plus copies of its tickets
// matching pred. Pass a nil pred for all tickets.
func (s *VenueStore) StationTickets(venueID VenueID, stationCode string, pred func(*Ticket) bool) (*Station, []Ticket, error) {
	vs, ok := s.peek(venueID)
	if !ok {
		return nil, nil, fmt.Errorf("venue %s: %w", venueID, ErrNotFound)
	}

	vs.mu.RLock()
	st := vs.stationsByCode[stationCode]
	vs.mu.RUnlock()
	if st == nil {
		return nil, nil, fmt.Errorf("station %s: %w", stationCode, ErrNotFound)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	station := st.station.Clone()
	tickets := make([]Ticket, 0, len(st.tickets))
	for _, t := range st.tickets {
		if pred == nil || pred(t) {
			tickets = append(tickets, *t.Clone())
		}
	}
	sortTicketsByCreation(tickets)
	return station, tickets, nil
}

// TicketsWhere returns copies of every ticket in the venue matching pred,
// scanning stations in registration order.
func (s *VenueStore) TicketsWhere(venueID VenueID, pred func(*Ticket) bool) []Ticket {
	vs, ok := s.peek(venueID)
	if !ok {
		return nil
	}

	vs.mu.RLock()
	defer vs.mu.RUnlock()

	var out []Ticket
	for _, st := range vs.stations {
		st.mu.Lock()
		matched := make([]Ticket, 0)
		for _, t := range st.tickets {
			if pred == nil || pred(t) {
				matched = append(matched, *t.Clone())
			}
		}
		st.mu.Unlock()
		sortTicketsByCreation(matched)
		out = append(out, matched...)
	}
	return out
}

func sortTicketsByCreation(tickets []Ticket) {
	sort.SliceStable(tickets, func(i, j int) bool {
		if tickets[i].CreatedAt.Equal(tickets[j].CreatedAt) {
			return tickets[i].TicketCode < tickets[j].TicketCode
		}
		return tickets[i].CreatedAt.Before(tickets[j].CreatedAt)
	})
}

// AppendHistory records a completion fact. History is append-only.
func (s *VenueStore) AppendHistory(venueID VenueID, rec BumpHistoryRecord) {
	vs := s.venue(venueID)
	vs.mu.Lock()
	defer vs.mu.Unlock()
	vs.history = append(vs.history, rec)
}

// History returns copies of the records matching the filter.
func (s *VenueStore) History(filter HistoryFilter) []BumpHistoryRecord {
	vs, ok := s.peek(filter.VenueID)
	if !ok {
		return nil
	}

	vs.mu.RLock()
	defer vs.mu.RUnlock()
	out := make([]BumpHistoryRecord, 0)
	for _, rec := range vs.history {
		if filter.StationID != nil && rec.StationID != *filter.StationID {
			continue
		}
		if !filter.Since.IsZero() && rec.BumpedAt.Before(filter.Since) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// LoadStation inserts a station during warm-up exactly as persisted,
// keeping its identity and timestamps. Already-registered codes are left
// alone.
func (s *VenueStore) LoadStation(venueID VenueID, station *Station) {
	vs := s.venue(venueID)
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if _, ok := vs.stationsByCode[station.Code]; ok {
		return
	}

	cp := station.Clone()
	st := &stationState{station: cp, tickets: make(map[string]*Ticket)}
	vs.stations = append(vs.stations, st)
	vs.stationsByCode[cp.Code] = st
	vs.stationsByID[cp.ID] = st
}

// LoadTicket inserts a ticket during warm-up without touching load
// counters; call RecomputeLoads afterwards.
func (s *VenueStore) LoadTicket(venueID VenueID, t *Ticket) error {
	vs := s.venue(venueID)
	vs.mu.Lock()
	defer vs.mu.Unlock()

	st := vs.stationsByID[t.StationID]
	if st == nil {
		return fmt.Errorf("station %s: %w", t.StationID, ErrNotFound)
	}
	if _, taken := vs.ticketOwner[t.TicketCode]; taken {
		return nil // already loaded
	}

	cp := t.Clone()
	st.mu.Lock()
	st.tickets[cp.TicketCode] = cp
	st.mu.Unlock()
	vs.ticketOwner[cp.TicketCode] = st
	vs.orderTickets[cp.OrderID] = append(vs.orderTickets[cp.OrderID], cp.TicketCode)
	return nil
}

// RecomputeLoads rederives every station's load from its active tickets.
// Used after warming from the durable store, where persisted counters may
// lag the ticket facts.
func (s *VenueStore) RecomputeLoads(venueID VenueID) {
	vs, ok := s.peek(venueID)
	if !ok {
		return
	}

	vs.mu.RLock()
	defer vs.mu.RUnlock()
	for _, st := range vs.stations {
		st.mu.Lock()
		load := 0
		for _, t := range st.tickets {
			if t.Status.Active() {
				load++
			}
		}
		st.station.CurrentLoad = load
		st.mu.Unlock()
	}
}

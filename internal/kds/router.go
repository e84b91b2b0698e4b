package kds

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"
	"github.com/bblatev/bjs-menu-sub004/pkg/enums/ticketstatus"
	"github.com/bblatev/bjs-menu-sub004/pkg/event"
)

// routeGroup collects the items of one order bound for one station.
type routeGroup struct {
	station *Station
	items   []TicketItem
}

// Router turns a fired order's line items into one ticket per destination
// station.
type Router struct {
	store     *VenueStore
	registry  *Registry
	repo      TicketRepository
	publisher events.Publisher
	logger    aqm.Logger
}

func NewRouter(store *VenueStore, registry *Registry, repo TicketRepository, publisher events.Publisher, logger aqm.Logger) *Router {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Router{store: store, registry: registry, repo: repo, publisher: publisher, logger: logger}
}

type RoutedTicket struct {
	TicketCode  string `json:"ticket_code"`
	StationCode string `json:"station_code"`
	StationName string `json:"station_name,omitempty"`
	ItemCount   int    `json:"item_count"`
}

type CreateResult struct {
	OrderID    OrderID            `json:"order_id"`
	Tickets    []RoutedTicket     `json:"tickets"`
	Advisories []CapacityAdvisory `json:"advisories,omitempty"`
}

// CreateTickets partitions items by destination station and commits one
// ticket per station group. Ticket creation and load increments are
// all-or-nothing: a routing failure leaves no orphaned ticket and no
// incremented counter.
func (r *Router) CreateTickets(ctx context.Context, venueID VenueID, orderID OrderID, items []TicketItem, tableNumber, serverName string, isRush bool, notes string) (*CreateResult, error) {
	result := &CreateResult{OrderID: orderID, Tickets: []RoutedTicket{}}
	if len(items) == 0 {
		return result, nil
	}

	var stationOrder []StationID
	groups := make(map[StationID]*routeGroup)

	for _, item := range items {
		station, err := r.registry.Resolve(venueID, item.Category)
		if err != nil {
			return nil, err
		}
		g := groups[station.ID]
		if g == nil {
			g = &routeGroup{station: station}
			groups[station.ID] = g
			stationOrder = append(stationOrder, station.ID)
		}
		g.items = append(g.items, item)
	}

	priority := PriorityNormal
	if isRush {
		priority = PriorityRush
	}

	drafts := make([]*Ticket, 0, len(stationOrder))
	for _, stationID := range stationOrder {
		g := groups[stationID]

		itemCount := 0
		for _, item := range g.items {
			itemCount += item.Quantity
		}
		course := g.items[0].Course
		if course == "" {
			course = "main"
		}

		drafts = append(drafts, &Ticket{
			StationID:   g.station.ID,
			OrderID:     orderID,
			Items:       g.items,
			ItemCount:   itemCount,
			Status:      ticketstatus.New,
			Priority:    priority,
			Course:      course,
			IsRush:      isRush,
			Notes:       notes,
			StationCode: g.station.Code,
			StationName: g.station.Name,
			TableNumber: tableNumber,
			ServerName:  serverName,
		})
	}

	if err := r.store.CommitTickets(venueID, drafts); err != nil {
		return nil, err
	}

	for _, t := range drafts {
		result.Tickets = append(result.Tickets, RoutedTicket{
			TicketCode:  t.TicketCode,
			StationCode: t.StationCode,
			StationName: t.StationName,
			ItemCount:   t.ItemCount,
		})

		if r.repo != nil {
			if err := r.repo.Create(ctx, t); err != nil {
				r.logger.Errorf("cannot persist ticket %s: %v", t.TicketCode, err)
			}
		}
		r.publishCreated(ctx, t)
	}

	result.Advisories = r.capacityAdvisories(venueID, stationOrder, groups)
	return result, nil
}

// capacityAdvisories reports stations now past their advisory capacity.
// Over-capacity tickets are accepted regardless; this is display signal.
func (r *Router) capacityAdvisories(venueID VenueID, stationOrder []StationID, groups map[StationID]*routeGroup) []CapacityAdvisory {
	var advisories []CapacityAdvisory
	seen := make(map[string]bool)
	for _, stationID := range stationOrder {
		code := groups[stationID].station.Code
		if seen[code] {
			continue
		}
		seen[code] = true

		station, err := r.store.StationByCode(venueID, code)
		if err != nil {
			continue
		}
		if station.MaxCapacity > 0 && station.CurrentLoad > station.MaxCapacity {
			advisories = append(advisories, CapacityAdvisory{
				StationCode: station.Code,
				CurrentLoad: station.CurrentLoad,
				MaxCapacity: station.MaxCapacity,
			})
			r.logger.Info("station over advisory capacity",
				"station", station.Code, "load", station.CurrentLoad, "max", station.MaxCapacity)
		}
	}
	return advisories
}

func (r *Router) publishCreated(ctx context.Context, t *Ticket) {
	if r.publisher == nil {
		return
	}

	payload := event.TicketCreatedEvent{
		TicketEventMetadata: event.TicketEventMetadata{
			EventType:   event.EventTicketCreated,
			OccurredAt:  time.Now().UTC(),
			VenueID:     t.VenueID.String(),
			TicketID:    t.ID.String(),
			TicketCode:  t.TicketCode,
			OrderID:     t.OrderID.String(),
			StationID:   t.StationID.String(),
			StationCode: t.StationCode,
			StationName: t.StationName,
			TableNumber: t.TableNumber,
			ServerName:  t.ServerName,
		},
		Status:    t.Status.Code(),
		Priority:  int(t.Priority),
		Course:    t.Course,
		ItemCount: t.ItemCount,
		IsRush:    t.IsRush,
		Notes:     t.Notes,
	}

	data, _ := json.Marshal(payload)
	if err := r.publisher.Publish(ctx, event.TicketsTopic, data); err != nil {
		r.logger.Errorf("cannot publish ticket.created event: %v", err)
	}
}

package kds

import (
	"sort"
	"time"

	"github.com/bblatev/bjs-menu-sub004/pkg/enums/alertkind"
)

// overdueFactor is the multiple of a station's cook-time target past which
// a ticket counts as overdue on displays and in the overview.
const overdueFactor = 1.5

// approachFactor is the fraction of the target at which an informational
// heads-up alert appears.
const approachFactor = 0.8

// Monitor is the read side for cook-time SLAs: station displays, the alert
// feed and the per-station overview. All reads are snapshots and never
// block ticket mutation.
type Monitor struct {
	store *VenueStore
}

func NewMonitor(store *VenueStore) *Monitor {
	return &Monitor{store: store}
}

type DisplayTicket struct {
	Ticket
	WaitSeconds int64 `json:"wait_seconds"`
	IsOverdue   bool  `json:"is_overdue"`
}

type StationDisplay struct {
	Station Station         `json:"station"`
	Tickets []DisplayTicket `json:"tickets"`
}

// StationDisplay returns the station's active tickets ordered for the
// terminal: priority descending, then oldest first.
func (m *Monitor) StationDisplay(venueID VenueID, stationCode string) (*StationDisplay, error) {
	station, tickets, err := m.store.StationTickets(venueID, stationCode, func(t *Ticket) bool {
		return t.Status.Active()
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	target := station.TargetSeconds()
	display := &StationDisplay{Station: *station, Tickets: make([]DisplayTicket, 0, len(tickets))}
	for _, t := range tickets {
		wait := int64(now.Sub(t.CreatedAt) / time.Second)
		display.Tickets = append(display.Tickets, DisplayTicket{
			Ticket:      t,
			WaitSeconds: wait,
			IsOverdue:   float64(wait) > overdueFactor*float64(target),
		})
	}

	sort.SliceStable(display.Tickets, func(i, j int) bool {
		if display.Tickets[i].Priority != display.Tickets[j].Priority {
			return display.Tickets[i].Priority > display.Tickets[j].Priority
		}
		return display.Tickets[i].CreatedAt.Before(display.Tickets[j].CreatedAt)
	})
	return display, nil
}

type Alert struct {
	Type             alertkind.Type     `json:"type"`
	Severity         alertkind.Severity `json:"severity"`
	TicketCode       string             `json:"ticket_code"`
	StationCode      string             `json:"station_code"`
	OrderID          OrderID            `json:"order_id"`
	ElapsedSeconds   int64              `json:"elapsed_seconds"`
	TargetSeconds    int64              `json:"target_seconds"`
	OverdueSeconds   int64              `json:"overdue_seconds,omitempty"`
	RemainingSeconds int64              `json:"remaining_seconds,omitempty"`
}

// Alerts classifies every active ticket against its station's target. Pass
// an empty stationCode to cover the whole venue. Results come back sorted
// critical, warning, info; ties keep ticket order.
func (m *Monitor) Alerts(venueID VenueID, stationCode string) ([]Alert, error) {
	targets := make(map[StationID]int64)
	codes := make(map[StationID]string)
	for _, s := range m.store.Stations(venueID) {
		targets[s.ID] = s.TargetSeconds()
		codes[s.ID] = s.Code
	}

	var tickets []Ticket
	if stationCode != "" {
		_, stationTickets, err := m.store.StationTickets(venueID, stationCode, func(t *Ticket) bool {
			return t.Status.Active()
		})
		if err != nil {
			return nil, err
		}
		tickets = stationTickets
	} else {
		tickets = m.store.TicketsWhere(venueID, func(t *Ticket) bool {
			return t.Status.Active()
		})
	}

	now := time.Now()
	alerts := make([]Alert, 0)
	for _, t := range tickets {
		target := targets[t.StationID]
		elapsed := int64(now.Sub(t.CreatedAt) / time.Second)

		switch {
		case elapsed > target:
			severity := alertkind.Warn
			if elapsed > 2*target {
				severity = alertkind.Critical
			}
			alerts = append(alerts, Alert{
				Type:           alertkind.Overdue,
				Severity:       severity,
				TicketCode:     t.TicketCode,
				StationCode:    codes[t.StationID],
				OrderID:        t.OrderID,
				ElapsedSeconds: elapsed,
				TargetSeconds:  target,
				OverdueSeconds: elapsed - target,
			})
		case float64(elapsed) > approachFactor*float64(target):
			alerts = append(alerts, Alert{
				Type:             alertkind.Warning,
				Severity:         alertkind.Info,
				TicketCode:       t.TicketCode,
				StationCode:      codes[t.StationID],
				OrderID:          t.OrderID,
				ElapsedSeconds:   elapsed,
				TargetSeconds:    target,
				RemainingSeconds: target - elapsed,
			})
		}
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Severity.Rank() < alerts[j].Severity.Rank()
	})
	return alerts, nil
}

type StationOverview struct {
	StationID    StationID `json:"station_id"`
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	CurrentLoad  int       `json:"current_load"`
	MaxCapacity  int       `json:"max_capacity"`
	Utilization  float64   `json:"utilization"`
	OverdueCount int       `json:"overdue_count"`
}

// Overview summarizes every station for the management dashboard. Load
// comes from the incrementally maintained counter, not a ticket scan.
func (m *Monitor) Overview(venueID VenueID) []StationOverview {
	now := time.Now()
	stations := m.store.Stations(venueID)

	out := make([]StationOverview, 0, len(stations))
	for _, s := range stations {
		overview := StationOverview{
			StationID:   s.ID,
			Code:        s.Code,
			Name:        s.Name,
			CurrentLoad: s.CurrentLoad,
			MaxCapacity: s.MaxCapacity,
		}
		if s.MaxCapacity > 0 {
			overview.Utilization = float64(s.CurrentLoad) / float64(s.MaxCapacity) * 100
		}

		target := s.TargetSeconds()
		_, active, err := m.store.StationTickets(venueID, s.Code, func(t *Ticket) bool {
			return t.Status.Active()
		})
		if err == nil {
			for _, t := range active {
				elapsed := int64(now.Sub(t.CreatedAt) / time.Second)
				if float64(elapsed) > overdueFactor*float64(target) {
					overview.OverdueCount++
				}
			}
		}
		out = append(out, overview)
	}
	return out
}

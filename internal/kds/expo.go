package kds

import (
	"sort"
	"time"

	"github.com/bblatev/bjs-menu-sub004/pkg/enums/ticketstatus"
)

// expoWindow bounds how long a bumped ticket stays on the pass display.
const expoWindow = 30 * time.Minute

// Expo groups recently completed tickets by order for the pass. Nothing
// here is persisted; the grouping is computed on demand.
type Expo struct {
	store *VenueStore
}

func NewExpo(store *VenueStore) *Expo {
	return &Expo{store: store}
}

type ExpoGroup struct {
	OrderID     OrderID   `json:"order_id"`
	TableNumber string    `json:"table_number,omitempty"`
	ServerName  string    `json:"server_name,omitempty"`
	ReadyAt     time.Time `json:"ready_at"`
	TotalItems  int       `json:"total_items"`
	Tickets     []Ticket  `json:"tickets"`
}

// ExpoDisplay returns the orders with tickets bumped inside the window,
// oldest ready first. ReadyAt is the earliest bump in the group.
func (e *Expo) ExpoDisplay(venueID VenueID) []ExpoGroup {
	cutoff := time.Now().Add(-expoWindow)
	bumped := e.store.TicketsWhere(venueID, func(t *Ticket) bool {
		return t.Status == ticketstatus.Bumped && t.BumpedAt != nil && t.BumpedAt.After(cutoff)
	})

	var orderIDs []OrderID
	groups := make(map[OrderID]*ExpoGroup)
	for _, t := range bumped {
		g := groups[t.OrderID]
		if g == nil {
			g = &ExpoGroup{
				OrderID:     t.OrderID,
				TableNumber: t.TableNumber,
				ServerName:  t.ServerName,
				ReadyAt:     *t.BumpedAt,
			}
			groups[t.OrderID] = g
			orderIDs = append(orderIDs, t.OrderID)
		}
		if t.BumpedAt.Before(g.ReadyAt) {
			g.ReadyAt = *t.BumpedAt
		}
		g.TotalItems += t.ItemCount
		g.Tickets = append(g.Tickets, t)
	}

	out := make([]ExpoGroup, 0, len(orderIDs))
	for _, id := range orderIDs {
		out = append(out, *groups[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ReadyAt.Before(out[j].ReadyAt)
	})
	return out
}

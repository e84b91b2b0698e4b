package kds

import (
	"context"
	"time"

	"github.com/bblatev/bjs-menu-sub004/pkg/enums/ticketstatus"
)

type TicketFilter struct {
	VenueID   *VenueID
	StationID *StationID
	Status    *ticketstatus.Status
	OrderID   *OrderID
	Limit     int
	Offset    int
}

type TicketRepository interface {
	Create(ctx context.Context, t *Ticket) error
	Update(ctx context.Context, t *Ticket) error
	FindByCode(ctx context.Context, venueID VenueID, code string) (*Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]Ticket, error)
}

type StationRepository interface {
	Upsert(ctx context.Context, s *Station) error
	List(ctx context.Context, venueID VenueID) ([]Station, error)
}

type HistoryFilter struct {
	VenueID   VenueID
	StationID *StationID
	Since     time.Time
}

// BumpHistoryRepository is append-only; records are never updated or
// deleted once written.
type BumpHistoryRepository interface {
	Append(ctx context.Context, rec *BumpHistoryRecord) error
	List(ctx context.Context, filter HistoryFilter) ([]BumpHistoryRecord, error)
}

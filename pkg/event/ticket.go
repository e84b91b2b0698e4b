package event

import "time"

const (
	TicketsTopic             = "kds.tickets"
	EventTicketCreated       = "kds.ticket.created"
	EventTicketStatusChanged = "kds.ticket.status_changed"
)

type TicketEventMetadata struct {
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	VenueID    string    `json:"venue_id"`
	TicketID   string    `json:"ticket_id"`
	TicketCode string    `json:"ticket_code"`
	OrderID    string    `json:"order_id"`
	StationID  string    `json:"station_id"`

	// Denormalized data for display boards
	StationCode string `json:"station_code,omitempty"`
	StationName string `json:"station_name,omitempty"`
	TableNumber string `json:"table_number,omitempty"`
	ServerName  string `json:"server_name,omitempty"`
}

type TicketCreatedEvent struct {
	TicketEventMetadata
	Status    string `json:"status"`
	Priority  int    `json:"priority"`
	Course    string `json:"course"`
	ItemCount int    `json:"item_count"`
	IsRush    bool   `json:"is_rush"`
	Notes     string `json:"notes,omitempty"`
}

type TicketStatusChangedEvent struct {
	TicketEventMetadata
	NewStatus      string     `json:"new_status"`
	PreviousStatus string     `json:"previous_status"`
	Priority       int        `json:"priority"`
	Reason         string     `json:"reason,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	FiredAt        *time.Time `json:"fired_at,omitempty"`
	BumpedAt       *time.Time `json:"bumped_at,omitempty"`
	RecalledAt     *time.Time `json:"recalled_at,omitempty"`
	CookTimeSecs   int64      `json:"cook_time_seconds,omitempty"`
}

package event

import "time"

const (
	OrdersFiredTopic     = "orders.fired"
	EventOrderFired      = "order.fired"
	EventOrderCancelled  = "order.cancelled"
	EventOrderCourseFire = "order.course_fired"
)

// OrderFiredItem is one line item of a fired order, in the canonical field
// names the order service and this service agree on.
type OrderFiredItem struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Quantity int    `json:"quantity"`
	Course   string `json:"course,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// OrderFiredEvent is published by the order service when an order is sent to
// the kitchen. This event is consumed by the KDS to route tickets.
type OrderFiredEvent struct {
	EventType   string           `json:"event_type"`
	OccurredAt  time.Time        `json:"occurred_at"`
	VenueID     string           `json:"venue_id"`
	OrderID     string           `json:"order_id"`
	Items       []OrderFiredItem `json:"items"`
	TableNumber string           `json:"table_number,omitempty"`
	ServerName  string           `json:"server_name,omitempty"`
	IsRush      bool             `json:"is_rush"`
	Notes       string           `json:"notes,omitempty"`

	// Course carries the course label on order.course_fired events.
	Course string `json:"course,omitempty"`
}

package kds

import (
	"time"

	"github.com/bblatev/bjs-menu-sub004/pkg/enums/ticketstatus"
	"github.com/google/uuid"
)

type TicketID = uuid.UUID
type OrderID = uuid.UUID
type StationID = uuid.UUID
type VenueID = uuid.UUID
type StaffID = uuid.UUID

// Priority orders tickets on a station display. Recalled tickets outrank
// rush tickets so they are re-cooked first.
type Priority int

const (
	PriorityNormal   Priority = 1
	PriorityRush     Priority = 2
	PriorityRecalled Priority = 3
)

// TicketItem is one line item routed onto a ticket. Items on the same
// ticket share a destination station.
type TicketItem struct {
	Name     string `bson:"name" json:"name"`
	Category string `bson:"category" json:"category"`
	Quantity int    `bson:"quantity" json:"quantity"`
	Course   string `bson:"course,omitempty" json:"course,omitempty"`
	Notes    string `bson:"notes,omitempty" json:"notes,omitempty"`
}

type Ticket struct {
	ID         TicketID            `bson:"_id" json:"id"`
	VenueID    VenueID             `bson:"venue_id" json:"venue_id"`
	TicketCode string              `bson:"ticket_code" json:"ticket_code"`
	StationID  StationID           `bson:"station_id" json:"station_id"`
	OrderID    OrderID             `bson:"order_id" json:"order_id"`
	Items      []TicketItem        `bson:"items" json:"items"`
	ItemCount  int                 `bson:"item_count" json:"item_count"`
	Status     ticketstatus.Status `bson:"status" json:"status"`
	Priority   Priority            `bson:"priority" json:"priority"`
	Course     string              `bson:"course" json:"course"`
	IsRush     bool                `bson:"is_rush" json:"is_rush"`
	Notes      string              `bson:"notes,omitempty" json:"notes,omitempty"`

	// Denormalized data for display purposes
	StationCode string `bson:"station_code,omitempty" json:"station_code,omitempty"`
	StationName string `bson:"station_name,omitempty" json:"station_name,omitempty"`
	TableNumber string `bson:"table_number,omitempty" json:"table_number,omitempty"`
	ServerName  string `bson:"server_name,omitempty" json:"server_name,omitempty"`

	// WasRecalled stays true once a ticket has been recalled, so the bump
	// history can attribute the final cook time correctly.
	WasRecalled  bool   `bson:"was_recalled" json:"was_recalled"`
	RecallReason string `bson:"recall_reason,omitempty" json:"recall_reason,omitempty"`

	CreatedAt  time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `bson:"updated_at" json:"updated_at"`
	StartedAt  *time.Time `bson:"started_at,omitempty" json:"started_at,omitempty"`
	StartedBy  *StaffID   `bson:"started_by,omitempty" json:"started_by,omitempty"`
	FiredAt    *time.Time `bson:"fired_at,omitempty" json:"fired_at,omitempty"`
	BumpedAt   *time.Time `bson:"bumped_at,omitempty" json:"bumped_at,omitempty"`
	BumpedBy   *StaffID   `bson:"bumped_by,omitempty" json:"bumped_by,omitempty"`
	RecalledAt *time.Time `bson:"recalled_at,omitempty" json:"recalled_at,omitempty"`
	VoidedAt   *time.Time `bson:"voided_at,omitempty" json:"voided_at,omitempty"`

	// CookTimeSeconds is set when the ticket is bumped.
	CookTimeSeconds int64 `bson:"cook_time_seconds,omitempty" json:"cook_time_seconds,omitempty"`

	ModelVersion int `bson:"model_version" json:"model_version"`
}

// Clone returns a deep copy safe to hand out of the store.
func (t *Ticket) Clone() *Ticket {
	cp := *t
	if t.Items != nil {
		cp.Items = make([]TicketItem, len(t.Items))
		copy(cp.Items, t.Items)
	}
	cp.StartedAt = cloneTime(t.StartedAt)
	cp.StartedBy = cloneStaffID(t.StartedBy)
	cp.FiredAt = cloneTime(t.FiredAt)
	cp.BumpedAt = cloneTime(t.BumpedAt)
	cp.BumpedBy = cloneStaffID(t.BumpedBy)
	cp.RecalledAt = cloneTime(t.RecalledAt)
	cp.VoidedAt = cloneTime(t.VoidedAt)
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

func cloneStaffID(id *StaffID) *StaffID {
	if id == nil {
		return nil
	}
	cp := *id
	return &cp
}

// BumpHistoryRecord is an append-only completion fact. Records are never
// mutated or deleted; they are the sole input to performance metrics.
type BumpHistoryRecord struct {
	ID              uuid.UUID `bson:"_id" json:"id"`
	VenueID         VenueID   `bson:"venue_id" json:"venue_id"`
	TicketID        TicketID  `bson:"ticket_id" json:"ticket_id"`
	OrderID         OrderID   `bson:"order_id" json:"order_id"`
	StationID       StationID `bson:"station_id" json:"station_id"`
	StationCode     string    `bson:"station_code" json:"station_code"`
	CookTimeSeconds int64     `bson:"cook_time_seconds" json:"cook_time_seconds"`
	ItemCount       int       `bson:"item_count" json:"item_count"`
	WasRush         bool      `bson:"was_rush" json:"was_rush"`
	WasRecalled     bool      `bson:"was_recalled" json:"was_recalled"`
	BumpedAt        time.Time `bson:"bumped_at" json:"bumped_at"`
}

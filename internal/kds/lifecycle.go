package kds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"
	"github.com/bblatev/bjs-menu-sub004/pkg/event"
	"github.com/bblatev/bjs-menu-sub004/pkg/enums/ticketstatus"
	"github.com/google/uuid"
)

// Lifecycle drives tickets through the state machine. Every transition
// mutates ticket status and station load as one atomic step inside the
// store; persistence and event publication follow the committed fact.
type Lifecycle struct {
	store     *VenueStore
	repo      TicketRepository
	history   BumpHistoryRepository
	publisher events.Publisher
	logger    aqm.Logger
}

func NewLifecycle(store *VenueStore, repo TicketRepository, history BumpHistoryRepository, publisher events.Publisher, logger aqm.Logger) *Lifecycle {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Lifecycle{store: store, repo: repo, history: history, publisher: publisher, logger: logger}
}

// Start moves a new or recalled ticket to in progress.
func (l *Lifecycle) Start(ctx context.Context, venueID VenueID, code string, staffID StaffID) (*Ticket, error) {
	var previous ticketstatus.Status
	t, err := l.store.Transition(venueID, code, func(t *Ticket) error {
		if t.Status != ticketstatus.New && t.Status != ticketstatus.Recalled {
			return fmt.Errorf("cannot start ticket in status %s: %w", t.Status, ErrInvalidTransition)
		}
		previous = t.Status
		now := time.Now()
		t.Status = ticketstatus.InProgress
		t.StartedAt = &now
		if staffID != uuid.Nil {
			t.StartedBy = &staffID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.persist(ctx, t)
	l.publishStatusChange(ctx, t, previous, "")
	return t, nil
}

// Bump completes a ticket from any non-terminal state, records the cook
// time and appends the completion fact to the bump history.
func (l *Lifecycle) Bump(ctx context.Context, venueID VenueID, code string, staffID StaffID) (*Ticket, error) {
	var previous ticketstatus.Status
	t, err := l.store.Transition(venueID, code, func(t *Ticket) error {
		switch t.Status {
		case ticketstatus.Bumped:
			return fmt.Errorf("ticket %s: %w", code, ErrAlreadyBumped)
		case ticketstatus.Voided:
			return fmt.Errorf("cannot bump voided ticket %s: %w", code, ErrInvalidTransition)
		}
		previous = t.Status
		now := time.Now()
		t.Status = ticketstatus.Bumped
		t.BumpedAt = &now
		if staffID != uuid.Nil {
			t.BumpedBy = &staffID
		}
		t.CookTimeSeconds = int64(now.Sub(t.CreatedAt) / time.Second)
		return nil
	})
	if err != nil {
		return nil, err
	}

	rec := BumpHistoryRecord{
		ID:              uuid.New(),
		VenueID:         venueID,
		TicketID:        t.ID,
		OrderID:         t.OrderID,
		StationID:       t.StationID,
		StationCode:     t.StationCode,
		CookTimeSeconds: t.CookTimeSeconds,
		ItemCount:       t.ItemCount,
		WasRush:         t.IsRush,
		WasRecalled:     t.WasRecalled,
		BumpedAt:        *t.BumpedAt,
	}
	l.store.AppendHistory(venueID, rec)
	if l.history != nil {
		if err := l.history.Append(ctx, &rec); err != nil {
			l.logger.Errorf("cannot persist bump history for %s: %v", code, err)
		}
	}

	l.persist(ctx, t)
	l.publishStatusChange(ctx, t, previous, "")
	return t, nil
}

// Recall reopens a bumped ticket. Recalled tickets take top priority.
func (l *Lifecycle) Recall(ctx context.Context, venueID VenueID, code string, reason string) (*Ticket, error) {
	var previous ticketstatus.Status
	t, err := l.store.Transition(venueID, code, func(t *Ticket) error {
		if t.Status != ticketstatus.Bumped {
			return fmt.Errorf("cannot recall ticket in status %s: %w", t.Status, ErrInvalidTransition)
		}
		previous = t.Status
		now := time.Now()
		t.Status = ticketstatus.Recalled
		t.RecalledAt = &now
		t.RecallReason = reason
		t.WasRecalled = true
		t.Priority = PriorityRecalled
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.persist(ctx, t)
	l.publishStatusChange(ctx, t, previous, reason)
	return t, nil
}

// Void cancels a ticket. Voiding a ticket that is already voided is an
// idempotent success, so order-service retries are harmless.
func (l *Lifecycle) Void(ctx context.Context, venueID VenueID, code string, reason string) (*Ticket, error) {
	var previous ticketstatus.Status
	t, err := l.store.Transition(venueID, code, func(t *Ticket) error {
		return voidTicket(t, reason, &previous)
	})
	if errors.Is(err, errVoidNoop) {
		return t, nil
	}
	if err != nil {
		return nil, err
	}

	l.persist(ctx, t)
	l.publishStatusChange(ctx, t, previous, reason)
	return t, nil
}

// VoidOrder voids every still-voidable ticket of an order. Used when the
// order subsystem cancels an order it fired earlier.
func (l *Lifecycle) VoidOrder(ctx context.Context, venueID VenueID, orderID OrderID, reason string) ([]Ticket, error) {
	previous := make(map[TicketID]ticketstatus.Status)
	changed, err := l.store.ForOrder(venueID, orderID, func(t *Ticket) bool {
		var prev ticketstatus.Status
		if voidTicket(t, reason, &prev) != nil {
			return false
		}
		previous[t.ID] = prev
		return true
	})
	if err != nil {
		return nil, err
	}

	for i := range changed {
		t := &changed[i]
		l.persist(ctx, t)
		l.publishStatusChange(ctx, t, previous[t.ID], reason)
	}
	return changed, nil
}

// voidTicket applies the void transition in place. Shared by Void and
// VoidOrder so both enforce the same legality rules.
func voidTicket(t *Ticket, reason string, previous *ticketstatus.Status) error {
	switch t.Status {
	case ticketstatus.Voided:
		return errVoidNoop
	case ticketstatus.Bumped:
		return fmt.Errorf("cannot void bumped ticket %s: %w", t.TicketCode, ErrInvalidTransition)
	}
	*previous = t.Status
	now := time.Now()
	t.Status = ticketstatus.Voided
	t.VoidedAt = &now
	if reason != "" {
		if t.Notes != "" {
			t.Notes += "; "
		}
		t.Notes += "void: " + reason
	}
	return nil
}

// Fire stamps fired_at on the order's tickets matching the course, telling
// stations to begin a held course. Status and load are untouched; an empty
// course fires the whole order.
func (l *Lifecycle) Fire(ctx context.Context, venueID VenueID, orderID OrderID, course string) (int, error) {
	changed, err := l.store.ForOrder(venueID, orderID, func(t *Ticket) bool {
		if t.Status != ticketstatus.New && t.Status != ticketstatus.InProgress {
			return false
		}
		if course != "" && t.Course != course {
			return false
		}
		now := time.Now()
		t.FiredAt = &now
		return true
	})
	if err != nil {
		return 0, err
	}

	for i := range changed {
		t := &changed[i]
		l.persist(ctx, t)
		l.publishStatusChange(ctx, t, t.Status, "")
	}
	return len(changed), nil
}

func (l *Lifecycle) persist(ctx context.Context, t *Ticket) {
	if l.repo == nil {
		return
	}
	// The in-memory store is the serving authority; a lagging durable write
	// is logged and reconciled at the next warm-up, not surfaced to the
	// terminal that made a legal transition.
	if err := l.repo.Update(ctx, t); err != nil {
		l.logger.Errorf("cannot persist ticket %s: %v", t.TicketCode, err)
	}
}

func (l *Lifecycle) publishStatusChange(ctx context.Context, t *Ticket, previous ticketstatus.Status, reason string) {
	if l.publisher == nil {
		return
	}

	payload := event.TicketStatusChangedEvent{
		TicketEventMetadata: event.TicketEventMetadata{
			EventType:   event.EventTicketStatusChanged,
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
		NewStatus:      t.Status.Code(),
		PreviousStatus: previous.Code(),
		Priority:       int(t.Priority),
		Reason:         reason,
		Notes:          t.Notes,
		StartedAt:      t.StartedAt,
		FiredAt:        t.FiredAt,
		BumpedAt:       t.BumpedAt,
		RecalledAt:     t.RecalledAt,
		CookTimeSecs:   t.CookTimeSeconds,
	}

	data, _ := json.Marshal(payload)
	if err := l.publisher.Publish(ctx, event.TicketsTopic, data); err != nil {
		l.logger.Errorf("cannot publish ticket.status_changed event: %v", err)
	}
}

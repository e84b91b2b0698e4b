package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"
	"github.com/bblatev/bjs-menu-sub004/internal/kds"
	"github.com/bblatev/bjs-menu-sub004/pkg/event"
	"github.com/google/uuid"
)

// OrderSubscriber consumes order events and drives ticket creation and
// lifecycle changes. Malformed payloads are logged and dropped so a bad
// message never wedges the subscription.
type OrderSubscriber struct {
	subscriber events.Subscriber
	registry   *kds.Registry
	router     *kds.Router
	lifecycle  *kds.Lifecycle
	logger     aqm.Logger
}

func NewOrderSubscriber(
	subscriber events.Subscriber,
	registry *kds.Registry,
	router *kds.Router,
	lifecycle *kds.Lifecycle,
	logger aqm.Logger,
) *OrderSubscriber {
	return &OrderSubscriber{
		subscriber: subscriber,
		registry:   registry,
		router:     router,
		lifecycle:  lifecycle,
		logger:     logger,
	}
}

func (s *OrderSubscriber) Start(ctx context.Context) error {
	s.logger.Infof("Starting OrderSubscriber for topic: %s", event.OrdersFiredTopic)

	if err := s.subscriber.Subscribe(ctx, event.OrdersFiredTopic, s.handleEvent); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", event.OrdersFiredTopic, err)
	}

	s.logger.Info("OrderSubscriber started successfully")
	return nil
}

func (s *OrderSubscriber) handleEvent(ctx context.Context, msg []byte) error {
	var evt event.OrderFiredEvent
	if err := json.Unmarshal(msg, &evt); err != nil {
		s.logger.Errorf("Failed to unmarshal order event: %v", err)
		return nil
	}

	switch evt.EventType {
	case event.EventOrderFired:
		return s.handleFired(ctx, &evt)
	case event.EventOrderCourseFire:
		return s.handleCourseFired(ctx, &evt)
	case event.EventOrderCancelled:
		return s.handleCancelled(ctx, &evt)
	default:
		s.logger.Infof("Unknown order event type: %s", evt.EventType)
	}

	return nil
}

func (s *OrderSubscriber) handleFired(ctx context.Context, evt *event.OrderFiredEvent) error {
	venueID, orderID, ok := s.parseIDs(evt)
	if !ok {
		return nil
	}

	if len(evt.Items) == 0 {
		return nil
	}

	if err := s.registry.EnsureDefaults(ctx, venueID); err != nil {
		s.logger.Errorf("Failed to ensure default stations: %v", err)
		return err
	}

	items := make([]kds.TicketItem, 0, len(evt.Items))
	for _, it := range evt.Items {
		items = append(items, kds.TicketItem{
			Name:     it.Name,
			Category: it.Category,
			Quantity: it.Quantity,
			Course:   it.Course,
			Notes:    it.Notes,
		})
	}

	result, err := s.router.CreateTickets(ctx, venueID, orderID, items, evt.TableNumber, evt.ServerName, evt.IsRush, evt.Notes)
	if err != nil {
		s.logger.Errorf("Failed to create tickets for order %s: %v", evt.OrderID, err)
		return err
	}

	s.logger.Infof("Created %d tickets for order %s", len(result.Tickets), evt.OrderID)
	return nil
}

func (s *OrderSubscriber) handleCourseFired(ctx context.Context, evt *event.OrderFiredEvent) error {
	venueID, orderID, ok := s.parseIDs(evt)
	if !ok {
		return nil
	}

	count, err := s.lifecycle.Fire(ctx, venueID, orderID, evt.Course)
	if err != nil {
		if errors.Is(err, kds.ErrNotFound) {
			s.logger.Infof("No tickets for order %s, nothing to fire", evt.OrderID)
			return nil
		}
		s.logger.Errorf("Failed to fire course for order %s: %v", evt.OrderID, err)
		return err
	}

	s.logger.Infof("Fired %d tickets for order %s course %q", count, evt.OrderID, evt.Course)
	return nil
}

func (s *OrderSubscriber) handleCancelled(ctx context.Context, evt *event.OrderFiredEvent) error {
	venueID, orderID, ok := s.parseIDs(evt)
	if !ok {
		return nil
	}

	voided, err := s.lifecycle.VoidOrder(ctx, venueID, orderID, "order cancelled")
	if err != nil {
		if errors.Is(err, kds.ErrNotFound) {
			s.logger.Infof("No tickets for cancelled order %s", evt.OrderID)
			return nil
		}
		s.logger.Errorf("Failed to void tickets for order %s: %v", evt.OrderID, err)
		return err
	}

	s.logger.Infof("Voided %d tickets for cancelled order %s", len(voided), evt.OrderID)
	return nil
}

func (s *OrderSubscriber) parseIDs(evt *event.OrderFiredEvent) (kds.VenueID, kds.OrderID, bool) {
	venueID, err := uuid.Parse(evt.VenueID)
	if err != nil {
		s.logger.Errorf("Invalid venue_id: %v", err)
		return kds.VenueID{}, kds.OrderID{}, false
	}

	orderID, err := uuid.Parse(evt.OrderID)
	if err != nil {
		s.logger.Errorf("Invalid order_id: %v", err)
		return kds.VenueID{}, kds.OrderID{}, false
	}

	return venueID, orderID, true
}

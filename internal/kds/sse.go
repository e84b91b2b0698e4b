package kds

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"
)

// streamEvent is one published payload queued for SSE delivery.
type streamEvent struct {
	topic string
	data  []byte
}

// Broadcaster fans published ticket events out to connected SSE clients
// (station terminals and the expo display). It implements events.Publisher
// so it can sit next to the NATS publisher behind a fanout.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]chan streamEvent
	logger      aqm.Logger
}

func NewBroadcaster(logger aqm.Logger) *Broadcaster {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Broadcaster{
		subscribers: make(map[string]chan streamEvent),
		logger:      logger,
	}
}

// Publish queues the event for every connected subscriber. A subscriber
// that cannot keep up loses events rather than blocking the writer.
func (b *Broadcaster) Publish(ctx context.Context, topic string, msg []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subscribers {
		select {
		case ch <- streamEvent{topic: topic, data: msg}:
		default:
			b.logger.Info("subscriber channel full, dropping event", "subscriber_id", id)
		}
	}
	return nil
}

func (b *Broadcaster) subscribe(id string) chan streamEvent {
	ch := make(chan streamEvent, 100)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return ch
}

func (b *Broadcaster) unsubscribe(id string) {
	b.mu.Lock()
	ch, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Count returns the number of connected subscribers.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// ServeHTTP implements the SSE endpoint the display boards poll into.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	subscriberID := uuid.New().String()
	b.logger.Info("new SSE connection", "subscriber_id", subscriberID)

	eventChan := b.subscribe(subscriberID)
	defer b.unsubscribe(subscriberID)

	// Establish the connection and configure client reconnection.
	fmt.Fprintf(w, ": connected\n\n")
	fmt.Fprintf(w, "retry: 2000\n\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			b.logger.Info("SSE client disconnected", "subscriber_id", subscriberID)
			return

		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}

		case evt, ok := <-eventChan:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\n", evt.topic)
			fmt.Fprintf(w, "data: %s\n\n", evt.data)
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}
}

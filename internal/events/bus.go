// Package events provides the in-process event bus.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType identifies the kind of an event
type EventType string

const (
	SimulationCompleted EventType = "SIMULATION_COMPLETED"
	SweepProgress       EventType = "SWEEP_PROGRESS"
	SweepCompleted      EventType = "SWEEP_COMPLETED"
	ArchiveUploaded     EventType = "ARCHIVE_UPLOADED"
	SystemStatus        EventType = "SYSTEM_STATUS"
)

// AllTypes lists every event type the bus carries.
var AllTypes = []EventType{SimulationCompleted, SweepProgress, SweepCompleted, ArchiveUploaded, SystemStatus}

// Event is one published event
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	Data      EventData `json:"data"`
}

// subscriberBuffer is the per-subscriber queue length; a full queue drops events.
const subscriberBuffer = 64

// Bus fans events out to subscribers without blocking the publisher.
// A nil *Bus is valid and discards everything.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[chan Event]map[EventType]bool // nil filter = all types
	log         zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subscribers: make(map[chan Event]map[EventType]bool),
		log:         log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers a subscriber for the given types (all types when none
// are given). The returned cancel function unsubscribes and closes the channel;
// it is safe to call more than once.
func (b *Bus) Subscribe(types ...EventType) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	if b == nil {
		close(ch)
		return ch, func() {}
	}

	var filter map[EventType]bool
	if len(types) > 0 {
		filter = make(map[EventType]bool, len(types))
		for _, t := range types {
			filter[t] = true
		}
	}

	b.mu.Lock()
	b.subscribers[ch] = filter
	total := len(b.subscribers)
	b.mu.Unlock()

	b.log.Debug().Int("total_subscribers", total).Msg("Subscriber added")

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, ch)
			close(ch)
			b.mu.Unlock()
		})
	}
}

// Emit publishes data to every matching subscriber
func (b *Bus) Emit(module string, data EventData) {
	if b == nil || data == nil {
		return
	}

	event := Event{
		Type:      data.EventType(),
		Timestamp: time.Now(),
		Module:    module,
		Data:      data,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch, filter := range b.subscribers {
		if filter != nil && !filter[event.Type] {
			continue
		}
		select {
		case ch <- event:
		default:
			b.log.Warn().
				Str("event_type", string(event.Type)).
				Msg("Subscriber channel full, event dropped")
		}
	}
}

// Subscribers returns the number of active subscribers
func (b *Bus) Subscribers() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

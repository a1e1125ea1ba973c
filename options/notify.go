package options

import (
	"context"
	"fmt"
	"time"

	"github.com/asaidimu/go-events"
	"github.com/google/uuid"
	"github.com/liamcoop/formlogic/internal/logger"
)

// Notifier receives fire-and-forget resolution outcomes.
type Notifier interface {
	OptionsLoaded(fieldID string, count int)
	OptionsFailed(fieldID string, reason string)
}

// EventType names an options event.
type EventType string

const (
	EventOptionsLoaded EventType = "options.loaded"
	EventOptionsFailed EventType = "options.failed"
)

// Event is the payload published on the event bus.
type Event struct {
	ID      string    `json:"id"`
	Type    EventType `json:"type"`
	FieldID string    `json:"field_id"`
	Count   int       `json:"count,omitempty"`
	Reason  string    `json:"reason,omitempty"`
	At      time.Time `json:"at"`
}

// EventHandler consumes events delivered by an EventBusNotifier.
type EventHandler func(ctx context.Context, event Event) error

// EventBusNotifier publishes events on a typed event bus.
type EventBusNotifier struct {
	bus *events.TypedEventBus[Event]
}

// NewEventBusNotifier creates a notifier with its own bus.
func NewEventBusNotifier() (*EventBusNotifier, error) {
	bus, err := events.NewTypedEventBus[Event](events.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create event bus: %w", err)
	}
	return &EventBusNotifier{bus: bus}, nil
}

// Subscribe registers handler for one event type and returns a function
// that removes it.
func (n *EventBusNotifier) Subscribe(eventType EventType, handler EventHandler) func() {
	return n.bus.Subscribe(string(eventType), handler)
}

func (n *EventBusNotifier) OptionsLoaded(fieldID string, count int) {
	n.emit(Event{Type: EventOptionsLoaded, FieldID: fieldID, Count: count})
}

func (n *EventBusNotifier) OptionsFailed(fieldID string, reason string) {
	n.emit(Event{Type: EventOptionsFailed, FieldID: fieldID, Reason: reason})
}

func (n *EventBusNotifier) emit(event Event) {
	event.ID = uuid.NewString()
	event.At = time.Now().UTC()
	n.bus.Emit(string(event.Type), event)
}

// LogNotifier writes events to the structured logger.
type LogNotifier struct{}

func (LogNotifier) OptionsLoaded(fieldID string, count int) {
	logger.Debug("options loaded", "field_id", fieldID, "count", count)
}

func (LogNotifier) OptionsFailed(fieldID string, reason string) {
	logger.Warn("options failed", "field_id", fieldID, "reason", reason)
}

// NopNotifier discards events.
type NopNotifier struct{}

func (NopNotifier) OptionsLoaded(string, int)    {}
func (NopNotifier) OptionsFailed(string, string) {}

// MultiNotifier fans events out to several notifiers.
type MultiNotifier []Notifier

func (m MultiNotifier) OptionsLoaded(fieldID string, count int) {
	for _, n := range m {
		n.OptionsLoaded(fieldID, count)
	}
}

func (m MultiNotifier) OptionsFailed(fieldID string, reason string) {
	for _, n := range m {
		n.OptionsFailed(fieldID, reason)
	}
}

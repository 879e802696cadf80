package events

import (
	"github.com/kelindar/event"
)

// Bus wraps the kelindar/event dispatcher for in-process event
// broadcasting between the synchronization engine and its observers.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers
// Usage: bus.Publish(GroupSyncedEvent{...})
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case GroupSyncedEvent:
		event.Publish(b.dispatcher, e)
	case MessageDroppedEvent:
		event.Publish(b.dispatcher, e)
	case PipelineFlushedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function. The handler's
// parameter type determines which events it receives.
// Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e GroupSyncedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(GroupSyncedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(MessageDroppedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PipelineFlushedEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Return a no-op function if handler type is not recognized
		return func() {}
	}
}

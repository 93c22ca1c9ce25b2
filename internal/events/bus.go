package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting.
// Each subscriber receives events in publish order on its own goroutine,
// so a slow subscriber never blocks the publisher.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// Usage: bus.Publish(FrameAvailableEvent{...})
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case FrameAvailableEvent:
		event.Publish(b.dispatcher, e)
	case DeviceDisconnectedEvent:
		event.Publish(b.dispatcher, e)
	case CaptureStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case CaptureWarningEvent:
		event.Publish(b.dispatcher, e)
	case DeviceHotplugEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers a handler; its parameter type selects the events it
// receives. Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e DeviceDisconnectedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(FrameAvailableEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DeviceDisconnectedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CaptureStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CaptureWarningEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DeviceHotplugEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}

// Close stops delivery to every subscriber.
func (b *Bus) Close() error {
	return b.dispatcher.Close()
}

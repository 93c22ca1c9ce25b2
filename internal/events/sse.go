package events

import "github.com/kelindar/event"

// SubscribeToChannel bridges callback subscriptions to a channel for select
// loops such as SSE handlers. Events are dropped when ch is full, so a stalled
// HTTP client cannot back up the dispatcher.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}

// Package eventbus provides an in-process publish/subscribe bus for payout
// lifecycle events.
package eventbus

import "context"

// Event is implemented by every payout lifecycle event.
type Event interface {
	Type() string
}

// Bus is the contract for publishing and subscribing to events.
type Bus interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType string, handler func(context.Context, Event))
}

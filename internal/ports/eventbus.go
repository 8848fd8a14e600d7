// Package ports define the EventBus interface for event-driven communication.
// The event bus carries the player's outbound notifications to adapters.
package ports

import (
	"github.com/rhinomusic/rhino/internal/domain"
)

// EventBus is the interface for publishing and subscribing to events.
//
// The event bus decouples event producers (services) from event consumers
// (control surfaces, persistence, logging). Multiple subscribers can listen to
// the same event, and subscribers don't know about publishers.
//
// Thread-safety: Implementations must be thread-safe as events may be published and
// subscribed from multiple goroutines simultaneously.
//
// Example usage:
//
//	// In service: Publish an event
//	bus.Publish(domain.NewShuffleChangedEvent(true))
//
//	// In an adapter: Subscribe to events
//	subID := bus.Subscribe(domain.EventShuffleChanged, func(event domain.Event) {
//	    e := event.(domain.ShuffleChangedEvent)
//	    props.SetShuffle(e.Shuffled)
//	})
//
//	// Later: Unsubscribe
//	bus.Unsubscribe(subID)
type EventBus interface {
	// Publish publishes an event to all subscribers of that event type.
	// Handlers run synchronously on the publishing goroutine, in subscription order.
	//
	// Handlers should process events quickly or dispatch to a background goroutine.
	Publish(event domain.Event)

	// Subscribe registers a handler for events of the specified type.
	// Each subscription gets a unique SubscriptionID.
	Subscribe(eventType domain.EventType, handler domain.EventHandler) domain.SubscriptionID

	// Unsubscribe removes a previously registered event handler.
	// If the subscription ID is invalid or already unsubscribed, this is a no-op.
	Unsubscribe(id domain.SubscriptionID)

	// SubscribeAll registers a handler that receives all events regardless of type.
	// This is useful for logging and broadcasting.
	SubscribeAll(handler domain.EventHandler) domain.SubscriptionID

	// HasSubscribers returns true if there are any active subscriptions for the given event type.
	HasSubscribers(eventType domain.EventType) bool

	// Close shuts down the event bus and cleans up resources.
	Close() error
}

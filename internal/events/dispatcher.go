package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher interface allows event publication/subscription.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, name string, handler EventHandler)
}

// HandlerError attributes a failure to the subscriber that produced it.
type HandlerError struct {
	Subscriber string
	EventType  EventType
	Err        error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s handling %s: %v", e.Subscriber, e.EventType, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

type subscription struct {
	name    string
	handler EventHandler
}

// inMemoryDispatcher is a simple synchronous dispatcher.
type inMemoryDispatcher struct {
	mu        sync.RWMutex
	listeners map[EventType][]subscription
}

// NewInMemoryDispatcher creates a dispatcher instance.
func NewInMemoryDispatcher() Dispatcher {
	return &inMemoryDispatcher{
		listeners: make(map[EventType][]subscription),
	}
}

// Publish synchronously invokes every handler for the event in subscription
// order. A failing handler does not stop the others; all failures are joined
// into the returned error.
func (d *inMemoryDispatcher) Publish(ctx context.Context, event Event) error {
	d.mu.RLock()
	subs := append([]subscription{}, d.listeners[event.Type]...)
	d.mu.RUnlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.handler(ctx, event); err != nil {
			errs = append(errs, &HandlerError{Subscriber: sub.name, EventType: event.Type, Err: err})
		}
	}
	return errors.Join(errs...)
}

// Subscribe registers a handler for the given event type.
func (d *inMemoryDispatcher) Subscribe(eventType EventType, name string, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[eventType] = append(d.listeners[eventType], subscription{name: name, handler: handler})
}

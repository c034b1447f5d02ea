package worker

import (
	"github.com/pediamatch/intake-service/internal/events"
)

// Subscriber attaches its handlers to the event bus.
type Subscriber interface {
	Register(d events.Dispatcher)
}

// StartNotificationWorker registers notification handlers in order. Nil
// subscribers are skipped so optional integrations can be left unset.
func StartNotificationWorker(d events.Dispatcher, subs ...Subscriber) {
	if d == nil {
		return
	}
	for _, sub := range subs {
		if sub == nil {
			continue
		}
		sub.Register(d)
	}
}

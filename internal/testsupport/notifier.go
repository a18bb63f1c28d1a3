package testsupport

import (
	"context"
	"sync"

	"mixcraft/internal/notifications"
)

// Published is one recorded notification.
type Published struct {
	Event   notifications.Event
	Payload notifications.Payload
}

// Notifier records every published event.
type Notifier struct {
	mu     sync.Mutex
	events []Published
}

// NewNotifier returns an empty recorder.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Publish implements notifications.Service.
func (n *Notifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	copied := make(notifications.Payload, len(payload))
	for k, v := range payload {
		copied[k] = v
	}
	n.mu.Lock()
	n.events = append(n.events, Published{Event: event, Payload: copied})
	n.mu.Unlock()
	return nil
}

// Events returns the recorded events of the given type, or all of them when
// none is given.
func (n *Notifier) Events(filter ...notifications.Event) []Published {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(filter) == 0 {
		return append([]Published(nil), n.events...)
	}
	var out []Published
	for _, event := range n.events {
		for _, want := range filter {
			if event.Event == want {
				out = append(out, event)
				break
			}
		}
	}
	return out
}

// Count reports how many events of the given type were recorded.
func (n *Notifier) Count(event notifications.Event) int {
	return len(n.Events(event))
}

// Package broadcast fans a single domain.AlertSink out to many live
// subscribers (the websocket alert stream), while still forwarding every
// alert to an inner sink such as internal/siem's Exporter.
package broadcast

import (
	"context"
	"sync"

	"github.com/sentinel/edr/internal/domain"
)

// subscriberBuffer bounds how many alerts a slow websocket reader may lag
// behind before the hub drops its oldest unread alert rather than block
// the pipeline.
const subscriberBuffer = 64

// Hub implements domain.AlertSink, forwarding every Emit to an inner sink
// (typically internal/siem's Exporter) and to any number of live
// subscriber channels.
type Hub struct {
	inner domain.AlertSink

	mu          sync.Mutex
	subscribers map[chan domain.Alert]struct{}
}

// NewHub wraps inner (may be nil) with subscriber fanout.
func NewHub(inner domain.AlertSink) *Hub {
	return &Hub{inner: inner, subscribers: make(map[chan domain.Alert]struct{})}
}

// Emit implements domain.AlertSink.
func (h *Hub) Emit(ctx context.Context, a domain.Alert) error {
	h.mu.Lock()
	for ch := range h.subscribers {
		select {
		case ch <- a:
		default:
			// Slow subscriber: drop the oldest queued alert and retry once.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- a:
			default:
			}
		}
	}
	h.mu.Unlock()

	if h.inner != nil {
		return h.inner.Emit(ctx, a)
	}
	return nil
}

// Subscribe registers a new live listener and returns its channel plus an
// unsubscribe function the caller must run when done.
func (h *Hub) Subscribe() (<-chan domain.Alert, func()) {
	ch := make(chan domain.Alert, subscriberBuffer)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	unsubscribe := func() {
		h.mu.Lock()
		delete(h.subscribers, ch)
		h.mu.Unlock()
		close(ch)
	}
	return ch, unsubscribe
}

// SubscriberCount reports how many live listeners are attached.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

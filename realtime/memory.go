package realtime

import (
	"context"
	"fmt"
	"sync"
)

// MemoryHub is an in-process Channel implementation. All participants of a
// process share one hub; events published for a document fan out to every
// subscriber of that document, including the publisher (sessions filter their
// own user id on receipt).
//
// MemoryHub doubles as the test stand-in for a networked channel.
type MemoryHub struct {
	mu     sync.RWMutex
	subs   map[string]map[int]*memorySub // documentID -> subID -> sub
	nextID int
	closed bool
}

type memorySub struct {
	handler Handler
	events  chan Event
	done    chan struct{}
}

// NewMemoryHub creates an empty hub.
func NewMemoryHub() *MemoryHub {
	return &MemoryHub{
		subs: make(map[string]map[int]*memorySub),
	}
}

// Subscribe registers handler for the document's events. Events are delivered
// on a dedicated goroutine per subscriber so one slow handler cannot stall the
// others.
func (h *MemoryHub) Subscribe(ctx context.Context, documentID string, handler Handler) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return fmt.Errorf("hub is closed")
	}

	sub := &memorySub{
		handler: handler,
		events:  make(chan Event, 64),
		done:    make(chan struct{}),
	}
	id := h.nextID
	h.nextID++
	if h.subs[documentID] == nil {
		h.subs[documentID] = make(map[int]*memorySub)
	}
	h.subs[documentID][id] = sub
	h.mu.Unlock()

	go func() {
		defer func() {
			h.mu.Lock()
			if subs, ok := h.subs[documentID]; ok {
				delete(subs, id)
				if len(subs) == 0 {
					delete(h.subs, documentID)
				}
			}
			h.mu.Unlock()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.done:
				return
			case ev := <-sub.events:
				// Handler errors are the subscriber's problem; the hub
				// keeps delivering.
				_ = handler(ev)
			}
		}
	}()

	return nil
}

// Publish fans the event out to every subscriber of its document. Subscribers
// whose buffers are full miss the event rather than blocking the publisher.
func (h *MemoryHub) Publish(ctx context.Context, event Event) error {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return fmt.Errorf("hub is closed")
	}
	targets := make([]*memorySub, 0, len(h.subs[event.DocumentID]))
	for _, sub := range h.subs[event.DocumentID] {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		select {
		case sub.events <- event:
		default:
			// Lagging subscriber; presence and cursor traffic is
			// last-write-wins so dropping is acceptable.
		}
	}
	return nil
}

// IsConnected reports whether the hub accepts events.
func (h *MemoryHub) IsConnected() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return !h.closed
}

// Close ends all subscriptions.
func (h *MemoryHub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	for _, subs := range h.subs {
		for _, sub := range subs {
			close(sub.done)
		}
	}
	h.subs = make(map[string]map[int]*memorySub)
	return nil
}

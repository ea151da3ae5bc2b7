// Package changefeed fans out row-level change events to in-process observers.
//
// Delivery is at-least-once and unordered across tables. A subscriber that
// falls behind loses events; a RESYNC event tells observers to re-read
// whatever they derive from the store.
package changefeed

import (
	"sync"

	"github.com/rs/zerolog"

	"dispatch/internal/domain"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 64

// Filter selects the events a subscriber receives.
type Filter func(ev domain.ChangeEvent) bool

type subscription struct {
	table  string
	filter Filter
	ch     chan domain.ChangeEvent
	once   sync.Once
}

// Hub distributes events to subscribers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*subscription
	next   uint64
	buffer int
	closed bool
	log    zerolog.Logger
}

// NewHub creates a new Hub. buffer <= 0 uses DefaultBuffer.
func NewHub(buffer int, log zerolog.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		subs:   make(map[uint64]*subscription),
		buffer: buffer,
		log:    log.With().Str("component", "changefeed").Logger(),
	}
}

// Subscribe registers for events on table ("" for every table) that pass
// filter (nil for all). RESYNC events bypass both. The returned function
// unsubscribes and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(table string, filter Filter) (<-chan domain.ChangeEvent, func()) {
	sub := &subscription{
		table:  table,
		filter: filter,
		ch:     make(chan domain.ChangeEvent, h.buffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	id := h.next
	h.next++
	h.subs[id] = sub
	h.mu.Unlock()

	return sub.ch, func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
		sub.once.Do(func() { close(sub.ch) })
	}
}

// Publish hands ev to every matching subscriber without blocking.
func (h *Hub) Publish(ev domain.ChangeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		if !sub.matches(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			h.log.Warn().
				Str("table", ev.Table).
				Str("type", string(ev.Type)).
				Str("id", ev.ID).
				Msg("subscriber lagging, change event dropped")
		}
	}
}

// Close unsubscribes everyone. Publish becomes a no-op.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		sub.once.Do(func() { close(sub.ch) })
	}
}

// Subscribers returns the number of active subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (s *subscription) matches(ev domain.ChangeEvent) bool {
	if ev.Type == domain.ChangeResync {
		return true
	}
	if s.table != "" && s.table != ev.Table {
		return false
	}
	return s.filter == nil || s.filter(ev)
}

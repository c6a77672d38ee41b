package session

import (
	"context"
	"sync"

	"projectflow/gateway"
)

// Hub implements gateway.Auth over an in-process session slot. The binary
// seats a verified session in it; SignOut clears the slot. Every transition
// is fanned out to every subscriber.
type Hub struct {
	mu      sync.Mutex
	current *gateway.Session
	subs    map[int]func(*gateway.Session)
	nextID  int
}

// NewHub builds an empty, signed-out Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]func(*gateway.Session))}
}

// CurrentSession returns a copy of the seated session, or nil.
func (h *Hub) CurrentSession(ctx context.Context) (*gateway.Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return nil, nil
	}
	copied := *h.current
	return &copied, nil
}

// OnChange registers a callback fired on every session transition.
func (h *Hub) OnChange(fn func(*gateway.Session)) gateway.Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.subs[id] = fn
	return &hubSubscription{hub: h, id: id}
}

// SetSession seats a session and notifies subscribers.
func (h *Hub) SetSession(sess gateway.Session) {
	copied := sess
	h.emit(&copied)
}

// SignOut clears the seated session and notifies subscribers with nil.
func (h *Hub) SignOut(ctx context.Context) error {
	h.emit(nil)
	return nil
}

func (h *Hub) emit(sess *gateway.Session) {
	h.mu.Lock()
	h.current = sess
	fns := make([]func(*gateway.Session), 0, len(h.subs))
	for _, fn := range h.subs {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		if sess == nil {
			fn(nil)
			continue
		}
		copied := *sess
		fn(&copied)
	}
}

type hubSubscription struct {
	hub *Hub
	id  int
}

func (s *hubSubscription) Unsubscribe() error {
	s.hub.mu.Lock()
	delete(s.hub.subs, s.id)
	s.hub.mu.Unlock()
	return nil
}

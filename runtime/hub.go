// Package runtime handles event fan-out and session registration.
// It orchestrates delivery without containing business logic or domain rules.
package runtime

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"chat-core/contract"
	"chat-core/domain"
	"chat-core/domain/event"
	"chat-core/observability"
)

// roomTopic holds the live subscribers of one room behind its own lock, so
// publishing to one room never blocks publishing to another.
type roomTopic struct {
	mu    sync.Mutex
	sinks map[string]contract.EventSink // session id -> sink
	order []string                      // stable delivery order
	dead  bool                          // topic removed from the hub map, never revived
}

// Hub is the in-memory registry mapping rooms to live sessions.
//
// The hub-level lock only guards the room map; each room serializes its own
// subscribe/unsubscribe/publish. Within a room, events are delivered to every
// subscriber (the sender's session included) in the order Publish was called.
// A failing recipient is removed and closed after the room lock is released;
// the publisher never observes recipient failures.
type Hub struct {
	mu      sync.RWMutex
	log     *slog.Logger
	relay   contract.EventRelay
	monitor *observability.Monitor
	rooms   map[domain.RoomID]*roomTopic
}

func NewHub(log *slog.Logger, relay contract.EventRelay, monitor *observability.Monitor) *Hub {
	if relay == nil {
		relay = NoopRelay{}
	}
	return &Hub{
		log:     log,
		relay:   relay,
		monitor: monitor,
		rooms:   make(map[domain.RoomID]*roomTopic),
	}
}

func (h *Hub) topic(roomID domain.RoomID, create bool) *roomTopic {
	if !create {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return h.rooms[roomID]
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.rooms[roomID]
	if !ok {
		t = &roomTopic{sinks: make(map[string]contract.EventSink)}
		h.rooms[roomID] = t
	}
	return t
}

// Subscribe registers a session's sink under a room, creating the room entry
// on the fly. A concurrent Unsubscribe can retire the room entry between the
// map lookup and the topic lock, so a topic found dead is abandoned and the
// lookup repeated against the fresh entry.
func (h *Hub) Subscribe(roomID domain.RoomID, sessionID string, sink contract.EventSink) {
	for {
		t := h.topic(roomID, true)

		t.mu.Lock()
		if t.dead {
			t.mu.Unlock()
			continue
		}
		if _, ok := t.sinks[sessionID]; !ok {
			t.sinks[sessionID] = sink
			t.order = append(t.order, sessionID)
		}
		t.mu.Unlock()
		return
	}
}

// Unsubscribe removes a session from a room. It is idempotent: teardown may
// race between the read pump, the write pump, and a failed delivery, and
// whichever path gets here first wins. Empty room entries are dropped to
// keep the map from leaking.
func (h *Hub) Unsubscribe(roomID domain.RoomID, sessionID string) {
	t := h.topic(roomID, false)
	if t == nil {
		return
	}

	t.mu.Lock()
	if _, ok := t.sinks[sessionID]; !ok {
		t.mu.Unlock()
		return
	}
	delete(t.sinks, sessionID)
	for i, id := range t.order {
		if id == sessionID {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	empty := len(t.sinks) == 0
	t.mu.Unlock()

	if empty {
		h.mu.Lock()
		if cur, ok := h.rooms[roomID]; ok && cur == t {
			cur.mu.Lock()
			if len(cur.sinks) == 0 {
				cur.dead = true
				delete(h.rooms, roomID)
			}
			cur.mu.Unlock()
		}
		h.mu.Unlock()
	}
}

// Publish delivers the event to every current subscriber of the room, in
// subscription order, holding the room lock so concurrent publishes for the
// same room are mutually exclusive. Failed recipients are collected and torn
// down after the lock is released, never blocking delivery to the others.
func (h *Hub) Publish(ctx context.Context, roomID domain.RoomID, e event.DomainEvent) {
	t := h.topic(roomID, false)
	if t != nil {
		var failed []string
		var failedSinks []contract.EventSink

		t.mu.Lock()
		for _, sessionID := range t.order {
			sink := t.sinks[sessionID]
			if err := sink.Consume(ctx, e); err != nil {
				h.log.Warn("Dropping subscriber after failed delivery",
					"room_id", roomID, "session_id", sessionID, "err", err)
				failed = append(failed, sessionID)
				failedSinks = append(failedSinks, sink)
				if h.monitor != nil {
					h.monitor.IncrDropped()
				}
				continue
			}
			if h.monitor != nil {
				h.monitor.IncrDelivered()
			}
		}
		t.mu.Unlock()

		for i, sessionID := range failed {
			h.Unsubscribe(roomID, sessionID)
			if closer, ok := failedSinks[i].(io.Closer); ok {
				_ = closer.Close()
			}
		}
	}

	if err := h.relay.Forward(ctx, e); err != nil {
		h.log.Warn("Relay forward failed", "room_id", roomID, "err", err)
	}
}

// Subscribers reports how many sessions are live in a room.
func (h *Hub) Subscribers(roomID domain.RoomID) int {
	t := h.topic(roomID, false)
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sinks)
}

// Shutdown closes every registered sink. Used on graceful server stop.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	var closers []io.Closer
	for _, t := range h.rooms {
		t.mu.Lock()
		for _, sink := range t.sinks {
			if closer, ok := sink.(io.Closer); ok {
				closers = append(closers, closer)
			}
		}
		t.sinks = make(map[string]contract.EventSink)
		t.order = nil
		t.dead = true
		t.mu.Unlock()
	}
	h.rooms = make(map[domain.RoomID]*roomTopic)
	h.mu.Unlock()

	for _, closer := range closers {
		_ = closer.Close()
	}
}

// Package hub routes encoded frames to live connections grouped into rooms.
//
// Rooms are named "channel:<id>" (everyone who joined a channel) and
// "user:<id>" (every connection of one user). Publish enqueues into each
// subscriber's buffer without blocking; a subscriber whose buffer is full is
// treated as a slow consumer and dropped. Delivery is at most once.
//
// Publish runs synchronously in the caller's goroutine, so frames published
// in order by one goroutine reach every subscriber in that order.
package hub

import (
	"sync"

	"github.com/dalemusser/stratachat/internal/app/realtime/events"
	"github.com/dalemusser/stratachat/internal/app/system/metrics"
	"go.uber.org/zap"
)

// Subscriber is a live connection as seen by the hub.
type Subscriber interface {
	ID() string
	// Enqueue must not block. It returns false when the frame could not be queued.
	Enqueue(events.Frame) bool
	// Close tears the connection down. It may be called more than once.
	Close()
}

// ChannelRoom names the room of a channel.
func ChannelRoom(channelID string) string { return "channel:" + channelID }

// UserRoom names the personal room of a user.
func UserRoom(userID string) string { return "user:" + userID }

// Hub is the broadcast router. Construct with New.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]Subscriber
	rooms  map[string]map[string]struct{} // room → subscriber ids
	joined map[string]map[string]struct{} // subscriber id → rooms
	closed bool
	log    *zap.Logger
}

// New returns an empty hub.
func New(logger *zap.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]Subscriber),
		rooms:  make(map[string]map[string]struct{}),
		joined: make(map[string]map[string]struct{}),
		log:    logger,
	}
}

// Register adds s. Returns false after Shutdown.
func (h *Hub) Register(s Subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.subs[s.ID()] = s
	h.joined[s.ID()] = make(map[string]struct{})
	metrics.LiveConnections.Inc()
	return true
}

// Unregister removes the subscriber and all of its room subscriptions.
// Unknown ids are a no-op.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unregisterLocked(id)
}

func (h *Hub) unregisterLocked(id string) bool {
	if _, ok := h.subs[id]; !ok {
		return false
	}
	for room := range h.joined[id] {
		members := h.rooms[room]
		delete(members, id)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(h.joined, id)
	delete(h.subs, id)
	metrics.LiveConnections.Dec()
	return true
}

// Subscribe adds subscriber id to room. Returns false for unknown subscribers.
func (h *Hub) Subscribe(room, id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	rooms, ok := h.joined[id]
	if !ok {
		return false
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		h.rooms[room] = members
	}
	members[id] = struct{}{}
	rooms[room] = struct{}{}
	return true
}

// Unsubscribe removes subscriber id from room.
func (h *Hub) Unsubscribe(room, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[room]; ok {
		delete(members, id)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if rooms, ok := h.joined[id]; ok {
		delete(rooms, room)
	}
}

// IsSubscribed reports whether subscriber id is in room.
func (h *Hub) IsSubscribed(room, id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[room][id]
	return ok
}

// Publish enqueues frame to every subscriber of room except exceptID
// (pass "" to exclude nobody). Returns how many subscribers accepted it.
func (h *Hub) Publish(room string, frame events.Frame, exceptID string) int {
	h.mu.RLock()
	targets := make([]Subscriber, 0, len(h.rooms[room]))
	for id := range h.rooms[room] {
		if id == exceptID {
			continue
		}
		if s, ok := h.subs[id]; ok {
			targets = append(targets, s)
		}
	}
	h.mu.RUnlock()

	delivered := 0
	var slow []Subscriber
	for _, s := range targets {
		if s.Enqueue(frame) {
			delivered++
		} else {
			slow = append(slow, s)
		}
	}
	h.drop(slow)
	return delivered
}

// Send enqueues frame to a single subscriber.
func (h *Hub) Send(id string, frame events.Frame) bool {
	h.mu.RLock()
	s, ok := h.subs[id]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	if !s.Enqueue(frame) {
		h.drop([]Subscriber{s})
		return false
	}
	return true
}

func (h *Hub) drop(slow []Subscriber) {
	for _, s := range slow {
		h.mu.Lock()
		removed := h.unregisterLocked(s.ID())
		h.mu.Unlock()
		if removed {
			metrics.SlowConsumersDropped.Inc()
			h.log.Warn("dropping slow consumer", zap.String("conn_id", s.ID()))
		}
		s.Close()
	}
}

// RoomSize returns the number of subscribers in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Shutdown closes every subscriber and refuses new registrations.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	subs := make([]Subscriber, 0, len(h.subs))
	for id, s := range h.subs {
		subs = append(subs, s)
		h.unregisterLocked(id)
	}
	h.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
	h.log.Info("hub shut down", zap.Int("closed_connections", len(subs)))
}

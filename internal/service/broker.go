package service

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"chatzone/internal/model"
)

// Broker tracks which live sessions are subscribed to which rooms and
// broadcasts events to them.
type Broker struct {
	registry *Registry

	mu        sync.RWMutex
	rooms     map[string]map[string]struct{}
	bySession map[string]map[string]struct{}
}

// NewBroker creates a broker and hooks it into session removal.
func NewBroker(registry *Registry) *Broker {
	b := &Broker{
		registry:  registry,
		rooms:     make(map[string]map[string]struct{}),
		bySession: make(map[string]map[string]struct{}),
	}
	registry.OnRemove(func(s model.Session) {
		b.LeaveAll(s.ID)
	})
	return b
}

// Join subscribes a live session to a room. Joining twice is a no-op.
func (b *Broker) Join(sessionID, roomID string) error {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return fmt.Errorf("join: %w: empty room id", ErrInvalidEvent)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// Checked under b.mu so a concurrent removal hook cannot run between the
	// check and the insert.
	if _, ok := b.registry.Get(sessionID); !ok {
		return ErrSessionNotFound
	}

	members, ok := b.rooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		b.rooms[roomID] = members
	}
	members[sessionID] = struct{}{}

	joined, ok := b.bySession[sessionID]
	if !ok {
		joined = make(map[string]struct{})
		b.bySession[sessionID] = joined
	}
	joined[roomID] = struct{}{}

	slog.Debug("room joined", "session_id", sessionID, "room_id", roomID)
	return nil
}

// Leave unsubscribes a session from a room. Leaving twice is a no-op.
func (b *Broker) Leave(sessionID, roomID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.leaveLocked(sessionID, roomID)
}

// LeaveAll removes a session from every room it joined.
func (b *Broker) LeaveAll(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for roomID := range b.bySession[sessionID] {
		b.leaveLocked(sessionID, roomID)
	}
	delete(b.bySession, sessionID)
}

func (b *Broker) leaveLocked(sessionID, roomID string) {
	if members, ok := b.rooms[roomID]; ok {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(b.rooms, roomID)
		}
	}
	if joined, ok := b.bySession[sessionID]; ok {
		delete(joined, roomID)
		if len(joined) == 0 {
			delete(b.bySession, sessionID)
		}
	}
}

// Broadcast sends an event to every session in the room except
// excludeSessionID and returns how many sessions accepted it.
func (b *Broker) Broadcast(roomID string, event model.EventType, payload any, excludeSessionID string) int {
	frame, err := model.EncodeFrame(event, payload)
	if err != nil {
		slog.Error("encode broadcast", "room_id", roomID, "event", event, "error", err)
		return 0
	}

	b.mu.RLock()
	targets := make([]string, 0, len(b.rooms[roomID]))
	for id := range b.rooms[roomID] {
		if id != excludeSessionID {
			targets = append(targets, id)
		}
	}
	b.mu.RUnlock()

	delivered := 0
	for _, id := range targets {
		if err := b.registry.Send(id, frame); err == nil {
			delivered++
		}
	}
	return delivered
}

// Members returns the session ids currently subscribed to a room.
func (b *Broker) Members(roomID string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]string, 0, len(b.rooms[roomID]))
	for id := range b.rooms[roomID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RoomsOf returns the rooms a session has joined.
func (b *Broker) RoomsOf(sessionID string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]string, 0, len(b.bySession[sessionID]))
	for id := range b.bySession[sessionID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// InRoom reports whether a session is subscribed to a room.
func (b *Broker) InRoom(sessionID, roomID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.rooms[roomID][sessionID]
	return ok
}

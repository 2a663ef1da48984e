package service

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"chatzone/internal/model"

	"github.com/google/uuid"
)

// PresenceNotifier is told about 0↔1 session transitions of a user.
type PresenceNotifier interface {
	UserOnline(userID string)
	UserOffline(userID string)
}

type sessionEntry struct {
	session model.Session
	sender  Sender
	order   uint64
}

// Registry tracks live sessions per user. A user is online while it has at
// least one session.
type Registry struct {
	// seq serializes each mutation together with its hooks and presence
	// events, so a user's online/offline events are never reordered.
	seq sync.Mutex

	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	byUser   map[string]map[string]*sessionEntry
	counter  uint64

	presence PresenceNotifier
	onRemove []func(model.Session)
	now      func() time.Time
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*sessionEntry),
		byUser:   make(map[string]map[string]*sessionEntry),
		now:      time.Now,
	}
}

// UsePresence sets the receiver of online/offline transitions.
func (r *Registry) UsePresence(p PresenceNotifier) {
	r.seq.Lock()
	defer r.seq.Unlock()
	r.presence = p
}

// OnRemove adds a hook that runs after a session is removed and before the
// offline event for its user fires.
func (r *Registry) OnRemove(fn func(model.Session)) {
	r.seq.Lock()
	defer r.seq.Unlock()
	r.onRemove = append(r.onRemove, fn)
}

// Register records a new session for userID.
func (r *Registry) Register(userID string, sender Sender) *model.Session {
	r.seq.Lock()
	defer r.seq.Unlock()

	r.mu.Lock()
	r.counter++
	entry := &sessionEntry{
		session: model.Session{
			ID:        uuid.NewString(),
			UserID:    userID,
			CreatedAt: r.now(),
		},
		sender: sender,
		order:  r.counter,
	}
	r.sessions[entry.session.ID] = entry
	set, ok := r.byUser[userID]
	if !ok {
		set = make(map[string]*sessionEntry)
		r.byUser[userID] = set
	}
	set[entry.session.ID] = entry
	first := len(set) == 1
	total := len(r.sessions)
	r.mu.Unlock()

	slog.Info("session registered", "session_id", entry.session.ID, "user_id", userID, "sessions", total)

	if first && r.presence != nil {
		r.presence.UserOnline(userID)
	}
	s := entry.session
	return &s
}

// Unregister removes a session. It reports false if the session was not
// live. Removal hooks and the offline event have run when it returns.
func (r *Registry) Unregister(sessionID string) bool {
	r.seq.Lock()
	defer r.seq.Unlock()

	r.mu.Lock()
	entry, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.sessions, sessionID)
	userID := entry.session.UserID
	last := false
	if set, ok := r.byUser[userID]; ok {
		delete(set, sessionID)
		if len(set) == 0 {
			delete(r.byUser, userID)
			last = true
		}
	}
	total := len(r.sessions)
	r.mu.Unlock()

	slog.Info("session unregistered", "session_id", sessionID, "user_id", userID, "sessions", total)

	for _, hook := range r.onRemove {
		hook(entry.session)
	}
	if last && r.presence != nil {
		r.presence.UserOffline(userID)
	}
	return true
}

// Get returns a copy of a live session.
func (r *Registry) Get(sessionID string) (model.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.sessions[sessionID]
	if !ok {
		return model.Session{}, false
	}
	return entry.session, true
}

// SessionsFor returns the live session ids of a user, oldest first.
func (r *Registry) SessionsFor(userID string) []string {
	r.mu.RLock()
	entries := make([]*sessionEntry, 0, len(r.byUser[userID]))
	for _, e := range r.byUser[userID] {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].order < entries[j].order })
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.session.ID
	}
	return ids
}

// ResolveOnePeer picks the most recently registered session of a user.
func (r *Registry) ResolveOnePeer(userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var newest *sessionEntry
	for _, e := range r.byUser[userID] {
		if newest == nil || e.order > newest.order {
			newest = e
		}
	}
	if newest == nil {
		return "", false
	}
	return newest.session.ID, true
}

// IsOnline reports whether the user has any live session.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// SessionCount returns the number of live sessions of a user.
func (r *Registry) SessionCount(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID])
}

// All returns the ids of every live session.
func (r *Registry) All() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Send delivers a frame to one session. It returns ErrSessionNotFound if
// the session is gone.
func (r *Registry) Send(sessionID string, frame []byte) error {
	r.mu.RLock()
	entry, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}
	if err := entry.sender.Send(frame); err != nil {
		slog.Debug("send dropped", "session_id", sessionID, "error", err)
		return err
	}
	return nil
}

// Emit encodes and delivers one event to one session.
func (r *Registry) Emit(sessionID string, event model.EventType, payload any) error {
	frame, err := model.EncodeFrame(event, payload)
	if err != nil {
		return err
	}
	return r.Send(sessionID, frame)
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chatzone/internal/model"
	"chatzone/internal/worker"
)

// LastSeenSource answers last-seen lookups for users this process has not
// seen go offline.
type LastSeenSource interface {
	LastSeen(ctx context.Context, userID string) (*time.Time, error)
}

// PresencePublisher broadcasts user-online and user-offline to every live
// session of other users and mirrors transitions to the configured sinks.
type PresencePublisher struct {
	registry *Registry
	pool     Submitter
	sinks    []PresenceSink
	fallback LastSeenSource
	now      func() time.Time

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

// NewPresencePublisher creates a publisher and attaches it to the registry.
func NewPresencePublisher(registry *Registry, pool Submitter, sinks ...PresenceSink) *PresencePublisher {
	p := &PresencePublisher{
		registry: registry,
		pool:     pool,
		sinks:    sinks,
		now:      time.Now,
		lastSeen: make(map[string]time.Time),
	}
	registry.UsePresence(p)
	return p
}

// WithLastSeenSource sets where Info looks up users unknown to this process.
func (p *PresencePublisher) WithLastSeenSource(src LastSeenSource) *PresencePublisher {
	p.fallback = src
	return p
}

func (p *PresencePublisher) UserOnline(userID string) {
	at := p.now()
	p.mu.Lock()
	delete(p.lastSeen, userID)
	p.mu.Unlock()

	p.publish(model.EvtUserOnline, model.PresenceEvent{UserID: userID, Online: true, Timestamp: at})
	p.mirror(userID, true, at)
}

func (p *PresencePublisher) UserOffline(userID string) {
	at := p.now()
	p.mu.Lock()
	p.lastSeen[userID] = at
	p.mu.Unlock()

	p.publish(model.EvtUserOffline, model.PresenceEvent{UserID: userID, Online: false, Timestamp: at, LastSeen: &at})
	p.mirror(userID, false, at)
}

func (p *PresencePublisher) publish(event model.EventType, payload model.PresenceEvent) {
	frame, err := model.EncodeFrame(event, payload)
	if err != nil {
		slog.Error("encode presence", "user_id", payload.UserID, "error", err)
		return
	}
	own := make(map[string]struct{})
	for _, id := range p.registry.SessionsFor(payload.UserID) {
		own[id] = struct{}{}
	}
	for _, id := range p.registry.All() {
		if _, skip := own[id]; skip {
			continue
		}
		_ = p.registry.Send(id, frame)
	}
	slog.Info("presence changed", "user_id", payload.UserID, "online", payload.Online)
}

func (p *PresencePublisher) mirror(userID string, online bool, at time.Time) {
	if p.pool == nil {
		return
	}
	for _, sink := range p.sinks {
		sink := sink
		err := p.pool.Submit(worker.Task{
			Name:     "presence.mirror",
			MaxTries: 3,
			Run: func(ctx context.Context) error {
				return sink.SetPresence(ctx, userID, online, at)
			},
		})
		if err != nil {
			slog.Warn("presence mirror not queued", "user_id", userID, "error", err)
		}
	}
}

// Info returns the current presence of a user.
func (p *PresencePublisher) Info(ctx context.Context, userID string) (model.PresenceInfo, error) {
	info := model.PresenceInfo{
		UserID:   userID,
		Sessions: p.registry.SessionCount(userID),
	}
	info.Online = info.Sessions > 0
	if info.Online {
		return info, nil
	}

	p.mu.Lock()
	at, ok := p.lastSeen[userID]
	p.mu.Unlock()
	if ok {
		info.LastSeen = &at
		return info, nil
	}
	if p.fallback != nil {
		seen, err := p.fallback.LastSeen(ctx, userID)
		if err != nil {
			return info, fmt.Errorf("last seen %s: %w", userID, err)
		}
		info.LastSeen = seen
	}
	return info, nil
}

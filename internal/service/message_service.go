package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"chatzone/internal/model"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Announcing a message twice within announceTTL is a no-op, so the REST
// hook and the websocket alias can both be used.
const (
	announceMemory = 10000
	announceTTL    = 10 * time.Minute
)

// AnnounceResult reports what happened to a freshly sent message.
type AnnounceResult struct {
	MessageID    string `json:"messageId"`
	RoomID       string `json:"roomId"`
	LiveSessions int    `json:"liveSessions"`
	FanoutQueued bool   `json:"fanoutQueued"`
	Duplicate    bool   `json:"duplicate,omitempty"`
}

// MessageService handles sends of messages the chat API already stored,
// whether the API or the sending client reports them.
type MessageService struct {
	rooms    RoomStore
	messages MessageStore
	broker   *Broker
	status   *StatusCoordinator
	fanout   *Fanout

	mu        sync.Mutex
	announced *expirable.LRU[string, struct{}]
}

func NewMessageService(rooms RoomStore, messages MessageStore, broker *Broker, status *StatusCoordinator, fanout *Fanout) *MessageService {
	return &MessageService{
		rooms:     rooms,
		messages:  messages,
		broker:    broker,
		status:    status,
		fanout:    fanout,
		announced: expirable.NewLRU[string, struct{}](announceMemory, nil, announceTTL),
	}
}

// Announce delivers a persisted message to the live sessions of its room
// and hands notification fan-out to the worker pool.
func (s *MessageService) Announce(ctx context.Context, requesterID, messageID string) (*AnnounceResult, error) {
	return s.announce(ctx, requesterID, messageID, "")
}

// AnnounceFromSession is Announce for a message sent over a websocket; the
// sending session does not get it back.
func (s *MessageService) AnnounceFromSession(ctx context.Context, requesterID, messageID, sessionID string) (*AnnounceResult, error) {
	return s.announce(ctx, requesterID, messageID, sessionID)
}

func (s *MessageService) announce(ctx context.Context, requesterID, messageID, excludeSessionID string) (*AnnounceResult, error) {
	if s.rooms == nil {
		return nil, ErrRoomNotFound
	}
	messageID = strings.TrimSpace(messageID)
	msg, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("load message %s: %w", messageID, err)
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	if msg.SenderID != requesterID {
		return nil, ErrNotSender
	}

	room, err := s.rooms.GetRoom(ctx, msg.ChatID)
	if err != nil {
		return nil, fmt.Errorf("load room %s: %w", msg.ChatID, err)
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	if !room.HasParticipant(requesterID) {
		return nil, ErrNotSender
	}

	if !s.markAnnounced(msg.ID) {
		return &AnnounceResult{MessageID: msg.ID, RoomID: room.ID, Duplicate: true}, nil
	}

	res := &AnnounceResult{
		MessageID:    msg.ID,
		RoomID:       room.ID,
		LiveSessions: s.broker.Broadcast(room.ID, model.EvtMessageReceived, msg, excludeSessionID),
	}
	if err := s.fanout.Enqueue(msg, room); err != nil {
		slog.Warn("fan-out dropped", "message_id", msg.ID, "error", err)
	} else {
		res.FanoutQueued = true
	}
	return res, nil
}

func (s *MessageService) markAnnounced(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.announced.Contains(messageID) {
		return false
	}
	s.announced.Add(messageID, struct{}{})
	return true
}

// MarkSeen is the REST path of a seen acknowledgment. The change is
// broadcast to every session of the room.
func (s *MessageService) MarkSeen(ctx context.Context, viewerUserID, messageID string) (*model.StatusChange, error) {
	return s.status.MarkSeen(ctx, messageID, "", viewerUserID, "")
}

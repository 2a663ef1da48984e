package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chatzone/internal/model"
	"chatzone/internal/worker"
)

// StatusStore keeps per-viewer message status. Advance must be atomic and
// forward-only: a viewer that reached seen also counts as delivered.
type StatusStore interface {
	Advance(ctx context.Context, messageID, viewerUserID string, status model.MessageStatus) (model.StatusTransition, error)
	Aggregate(ctx context.Context, messageID string) (model.MessageStatus, error)
}

// StatusCoordinator drives sent → delivered → seen per (message, viewer)
// and tells the room about every forward step.
type StatusCoordinator struct {
	messages MessageStore
	rooms    RoomStore
	store    StatusStore
	broker   *Broker
	pool     Submitter
	now      func() time.Time
}

// NewStatusCoordinator creates a coordinator. rooms may be nil, in which
// case viewers are not checked against the chat's participants.
func NewStatusCoordinator(messages MessageStore, rooms RoomStore, store StatusStore, broker *Broker, pool Submitter) *StatusCoordinator {
	return &StatusCoordinator{
		messages: messages,
		rooms:    rooms,
		store:    store,
		broker:   broker,
		pool:     pool,
		now:      time.Now,
	}
}

// MarkDelivered records that viewerUserID received the message. It returns
// nil when nothing changed.
func (c *StatusCoordinator) MarkDelivered(ctx context.Context, messageID, roomID, viewerUserID, fromSessionID string) (*model.StatusChange, error) {
	return c.mark(ctx, messageID, roomID, viewerUserID, fromSessionID, model.StatusDelivered)
}

// MarkSeen records that viewerUserID read the message. It returns nil when
// nothing changed.
func (c *StatusCoordinator) MarkSeen(ctx context.Context, messageID, roomID, viewerUserID, fromSessionID string) (*model.StatusChange, error) {
	return c.mark(ctx, messageID, roomID, viewerUserID, fromSessionID, model.StatusSeen)
}

// Aggregate returns the highest status any viewer reached, or sent.
func (c *StatusCoordinator) Aggregate(ctx context.Context, messageID string) (model.MessageStatus, error) {
	agg, err := c.store.Aggregate(ctx, messageID)
	if err != nil {
		return "", err
	}
	msg, err := c.messages.GetMessage(ctx, messageID)
	if err != nil {
		return "", fmt.Errorf("load message %s: %w", messageID, err)
	}
	if msg != nil {
		agg = model.MaxStatus(agg, model.MessageStatus(msg.Status))
	}
	return agg, nil
}

func (c *StatusCoordinator) mark(ctx context.Context, messageID, roomID, viewerUserID, fromSessionID string, status model.MessageStatus) (*model.StatusChange, error) {
	messageID = strings.TrimSpace(messageID)
	roomID = strings.TrimSpace(roomID)
	if messageID == "" || viewerUserID == "" {
		return nil, fmt.Errorf("mark %s: %w: message id and viewer required", status, ErrInvalidEvent)
	}

	msg, err := c.messages.GetMessage(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("load message %s: %w", messageID, err)
	}
	if msg == nil {
		slog.Debug("status for unknown message ignored", "message_id", messageID, "status", status)
		return nil, nil
	}
	if roomID == "" {
		roomID = msg.ChatID
	} else if msg.ChatID != "" && msg.ChatID != roomID {
		slog.Debug("status room mismatch ignored", "message_id", messageID, "room_id", roomID, "chat_id", msg.ChatID)
		return nil, nil
	}
	if viewerUserID == msg.SenderID {
		return nil, nil
	}

	// The store table is bounded, so the persisted message is the floor.
	floor := msg.StatusFor(viewerUserID)
	if c.rooms != nil {
		room, err := c.rooms.GetRoom(ctx, msg.ChatID)
		if err != nil {
			return nil, fmt.Errorf("load room %s: %w", msg.ChatID, err)
		}
		if room == nil || !room.HasParticipant(viewerUserID) {
			slog.Debug("status from non-participant ignored", "message_id", messageID, "user_id", viewerUserID)
			return nil, nil
		}
		if len(room.Participants) == 2 {
			// The only possible viewer: the message status is theirs.
			floor = model.MaxStatus(floor, model.MessageStatus(msg.Status))
		}
	}
	if floor.AtLeast(status) {
		return nil, nil
	}

	tr, err := c.store.Advance(ctx, messageID, viewerUserID, status)
	if err != nil {
		return nil, fmt.Errorf("advance %s to %s: %w", messageID, status, err)
	}
	if !tr.Changed() {
		return nil, nil
	}

	change := &model.StatusChange{
		MessageID:    messageID,
		Status:       tr.Current,
		ViewerUserID: viewerUserID,
		Aggregate:    model.MaxStatus(tr.Aggregate, model.MessageStatus(msg.Status)),
	}
	if tr.Current == model.StatusSeen {
		change.SeenBy = viewerUserID
	}
	c.broker.Broadcast(roomID, model.EvtMessageStatus, change, fromSessionID)
	c.persist(messageID, viewerUserID, tr.Current)
	return change, nil
}

func (c *StatusCoordinator) persist(messageID, viewerUserID string, status model.MessageStatus) {
	if c.pool == nil {
		return
	}
	at := c.now()
	err := c.pool.Submit(worker.Task{
		Name:     "status.record",
		MaxTries: 5,
		Run: func(ctx context.Context) error {
			return c.messages.RecordStatus(ctx, messageID, viewerUserID, status, at)
		},
	})
	if err != nil {
		slog.Warn("status persist not queued", "message_id", messageID, "error", err)
	}
}

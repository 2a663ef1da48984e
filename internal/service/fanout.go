package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chatzone/internal/model"
	"chatzone/internal/worker"
)

// Fanout turns one sent message into in-app notifications and pushes for
// every participant except the sender and those who muted the chat.
type Fanout struct {
	notifications NotificationStore
	push          PushGateway
	pool          Submitter
	pushTries     uint
	now           func() time.Time
}

func NewFanout(notifications NotificationStore, push PushGateway, pool Submitter, pushTries uint) *Fanout {
	if pushTries == 0 {
		pushTries = 1
	}
	return &Fanout{
		notifications: notifications,
		push:          push,
		pool:          pool,
		pushTries:     pushTries,
		now:           time.Now,
	}
}

// Recipients returns participants minus the sender minus the mute list.
func Recipients(msg *model.Message, room *model.Room) []model.Participant {
	out := make([]model.Participant, 0, len(room.Participants))
	for _, p := range room.Participants {
		if p.ID == "" || p.ID == msg.SenderID || room.IsMutedBy(p.ID) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// OnMessageSent persists a notification for each recipient and queues a push
// for those with a device token. Failures are logged, never returned. It
// returns the recipient ids.
func (f *Fanout) OnMessageSent(ctx context.Context, msg *model.Message, room *model.Room) []string {
	senderName := msg.SenderID
	if sender, ok := room.Participant(msg.SenderID); ok && sender.Username != "" {
		senderName = sender.Username
	}
	body := msg.Preview()

	recipients := Recipients(msg, room)
	ids := make([]string, 0, len(recipients))
	for _, p := range recipients {
		ids = append(ids, p.ID)

		n := &model.Notification{
			Recipient:   p.ID,
			Type:        model.NotificationMessage,
			Title:       fmt.Sprintf("%s sent you a message", senderName),
			Body:        body,
			RelatedChat: room.ID,
			RelatedUser: msg.SenderID,
			CreatedAt:   f.now(),
		}
		if err := f.notifications.CreateNotification(ctx, n); err != nil {
			slog.Error("create notification", "recipient", p.ID, "message_id", msg.ID, "error", err)
		}

		if p.PushToken != "" {
			f.queuePush(p, senderName, body, map[string]string{
				"chatId":    room.ID,
				"messageId": msg.ID,
			})
		}
	}
	slog.Debug("fan-out done", "message_id", msg.ID, "room_id", room.ID, "recipients", len(ids))
	return ids
}

// Enqueue runs OnMessageSent on the worker pool.
func (f *Fanout) Enqueue(msg *model.Message, room *model.Room) error {
	err := f.pool.Submit(worker.Task{
		Name: "fanout.message",
		Run: func(ctx context.Context) error {
			f.OnMessageSent(ctx, msg, room)
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("enqueue fan-out for %s: %w", msg.ID, err)
	}
	return nil
}

func (f *Fanout) queuePush(p model.Participant, title, body string, data map[string]string) {
	token := p.PushToken
	err := f.pool.Submit(worker.Task{
		Name:     "push.send",
		MaxTries: f.pushTries,
		Run: func(ctx context.Context) error {
			return f.push.Send(ctx, token, title, body, data)
		},
	})
	if err != nil {
		slog.Warn("push not queued", "recipient", p.ID, "error", err)
	}
}

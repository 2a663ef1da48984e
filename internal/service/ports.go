package service

import (
	"context"
	"time"

	"chatzone/internal/model"
	"chatzone/internal/worker"
)

// Sender pushes one encoded frame to one client. Implementations must not
// block; a full outbound buffer drops the frame.
type Sender interface {
	Send(frame []byte) error
}

// Submitter hands work to the background pool.
type Submitter interface {
	Submit(task worker.Task) error
}

// RoomStore reads chat rooms. A missing room is (nil, nil).
type RoomStore interface {
	GetRoom(ctx context.Context, roomID string) (*model.Room, error)
}

// MessageStore reads messages and persists status transitions. A missing or
// deleted message is (nil, nil).
type MessageStore interface {
	GetMessage(ctx context.Context, messageID string) (*model.Message, error)
	RecordStatus(ctx context.Context, messageID, viewerUserID string, status model.MessageStatus, at time.Time) error
}

// NotificationStore persists in-app notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
}

// PresenceSink mirrors presence transitions somewhere outside the process.
type PresenceSink interface {
	SetPresence(ctx context.Context, userID string, online bool, at time.Time) error
}

// PushGateway delivers a push notification to one device token.
type PushGateway interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) error
}

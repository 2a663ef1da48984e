package model

import "time"

type NotificationType string

const (
	NotificationMessage NotificationType = "message"
	NotificationCall    NotificationType = "call"
)

// Notification is the in-app record persisted for each fan-out recipient.
type Notification struct {
	Recipient   string           `json:"recipient"`
	Type        NotificationType `json:"type"`
	Title       string           `json:"title"`
	Body        string           `json:"message"`
	RelatedChat string           `json:"relatedChat,omitempty"`
	RelatedUser string           `json:"relatedUser,omitempty"`
	IsRead      bool             `json:"isRead"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// PushRequest is one push delivery handed to the gateway.
type PushRequest struct {
	Token string            `json:"token"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

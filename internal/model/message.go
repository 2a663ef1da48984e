package model

import (
	"slices"
	"time"
)

// MessageStatus is the per-viewer delivery state of a message.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusSeen      MessageStatus = "seen"
)

// Rank orders statuses: sent < delivered < seen. Unknown values rank 0.
func (s MessageStatus) Rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusSeen:
		return 3
	}
	return 0
}

// Valid reports whether s is one of the known statuses.
func (s MessageStatus) Valid() bool {
	return s.Rank() > 0
}

// AtLeast reports whether s has reached other.
func (s MessageStatus) AtLeast(other MessageStatus) bool {
	return s.Rank() >= other.Rank()
}

// StatusFromRank is the inverse of Rank.
func StatusFromRank(rank int) MessageStatus {
	switch rank {
	case 1:
		return StatusSent
	case 2:
		return StatusDelivered
	case 3:
		return StatusSeen
	}
	return ""
}

// MaxStatus returns the later of two statuses.
func MaxStatus(a, b MessageStatus) MessageStatus {
	if a.Rank() >= b.Rank() {
		return a
	}
	return b
}

// Message is the read-only view of a persisted chat message.
type Message struct {
	ID        string    `json:"_id"`
	ChatID    string    `json:"chat"`
	SenderID  string    `json:"sender"`
	Text      string    `json:"text"`
	Type      string    `json:"type"`
	HasMedia  bool      `json:"hasMedia,omitempty"`
	Status    string    `json:"status"`
	SeenBy    []string  `json:"seenBy,omitempty"`
	Edited    bool      `json:"edited"`
	CreatedAt time.Time `json:"createdAt"`
}

// StatusFor is the status the store already holds for one viewer. Only
// seen is recorded per viewer, so anything else reads as sent.
func (m *Message) StatusFor(viewerUserID string) MessageStatus {
	if slices.Contains(m.SeenBy, viewerUserID) {
		return StatusSeen
	}
	return StatusSent
}

// Preview is the short text used in notifications.
func (m *Message) Preview() string {
	if m.Text != "" {
		return m.Text
	}
	return "sent a media file"
}

// StatusChange is broadcast to a room when a viewer moves a message forward.
type StatusChange struct {
	MessageID    string        `json:"messageId"`
	Status       MessageStatus `json:"status"`
	ViewerUserID string        `json:"viewerUserId"`
	SeenBy       string        `json:"seenBy,omitempty"`
	Aggregate    MessageStatus `json:"aggregate,omitempty"`
}

// StatusTransition is the outcome of advancing one viewer's status.
type StatusTransition struct {
	Previous  MessageStatus
	Current   MessageStatus
	Aggregate MessageStatus
}

// Changed reports whether the viewer moved forward.
func (t StatusTransition) Changed() bool {
	return t.Current.Rank() > t.Previous.Rank()
}

package model

import "time"

// Session is one live transport connection belonging to one user.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Rooms     []string  `json:"rooms,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// PresenceEvent is the payload of user-online and user-offline.
type PresenceEvent struct {
	UserID    string     `json:"userId"`
	Online    bool       `json:"online"`
	Timestamp time.Time  `json:"timestamp"`
	LastSeen  *time.Time `json:"lastSeen,omitempty"`
}

// PresenceInfo is the read side of presence exposed over REST.
type PresenceInfo struct {
	UserID   string     `json:"userId"`
	Online   bool       `json:"online"`
	Sessions int        `json:"sessions"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

package model

type RoomType string

const (
	RoomPrivate RoomType = "private"
	RoomGroup   RoomType = "group"
)

// Participant is a chat member as the notification fan-out needs it.
type Participant struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	PushToken string `json:"-"`
}

// Room is a chat conversation loaded from the data store. Live
// subscriptions are tracked by the broker, not here.
type Room struct {
	ID           string        `json:"id"`
	Type         RoomType      `json:"type"`
	Name         string        `json:"name,omitempty"`
	Participants []Participant `json:"participants"`
	MutedBy      []string      `json:"mutedBy,omitempty"`
}

// HasParticipant reports whether userID is a member of the room.
func (r *Room) HasParticipant(userID string) bool {
	for _, p := range r.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}

// Participant returns the member with the given id.
func (r *Room) Participant(userID string) (Participant, bool) {
	for _, p := range r.Participants {
		if p.ID == userID {
			return p, true
		}
	}
	return Participant{}, false
}

// IsMutedBy reports whether userID muted the room.
func (r *Room) IsMutedBy(userID string) bool {
	for _, id := range r.MutedBy {
		if id == userID {
			return true
		}
	}
	return false
}

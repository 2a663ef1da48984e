package service

import (
	"strings"

	"chatzone/internal/model"
)

// TypingRelay forwards typing indicators to the other sessions of a room.
// Nothing is stored; receivers expire stale indicators themselves.
type TypingRelay struct {
	broker *Broker
}

func NewTypingRelay(broker *Broker) *TypingRelay {
	return &TypingRelay{broker: broker}
}

// Start relays typing:start and returns the number of receiving sessions.
func (t *TypingRelay) Start(roomID, userID, displayName, fromSessionID string) int {
	return t.relay(model.EvtTypingStart, roomID, userID, displayName, fromSessionID)
}

// Stop relays typing:stop and returns the number of receiving sessions.
func (t *TypingRelay) Stop(roomID, userID, displayName, fromSessionID string) int {
	return t.relay(model.EvtTypingStop, roomID, userID, displayName, fromSessionID)
}

func (t *TypingRelay) relay(event model.EventType, roomID, userID, displayName, fromSessionID string) int {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" || userID == "" {
		return 0
	}
	return t.broker.Broadcast(roomID, event, model.TypingEvent{
		UserID:   userID,
		UserName: displayName,
		Chat:     roomID,
	}, fromSessionID)
}

package model

import (
	"encoding/json"
	"strings"
)

// EventType names a websocket frame.
type EventType string

// Inbound client events
const (
	EvtJoinRoom         EventType = "join-room"
	EvtLeaveRoom        EventType = "leave-room"
	EvtJoinChat         EventType = "join-chat"
	EvtLeaveChat        EventType = "leave-chat"
	EvtTypingStart      EventType = "typing:start"
	EvtTypingStop       EventType = "typing:stop"
	EvtMessageDelivered EventType = "message-delivered"
	EvtMessageSeen      EventType = "message-seen"
	EvtMessageReaction  EventType = "message-reaction"
	EvtMessageUpdated   EventType = "message:updated"
	EvtSendMessage      EventType = "send-message"
	EvtCallInitiated    EventType = "call-initiated"
	EvtCallAccepted     EventType = "call-accepted"
	EvtCallRejected     EventType = "call-rejected"
	EvtCallEnded        EventType = "call-ended"
	EvtWebRTCOffer      EventType = "webrtc-offer"
	EvtWebRTCAnswer     EventType = "webrtc-answer"
	EvtICECandidate     EventType = "ice-candidate"
)

// Outbound server events
const (
	EvtConnected       EventType = "connected"
	EvtUserOnline      EventType = "user-online"
	EvtUserOffline     EventType = "user-offline"
	EvtMessageStatus   EventType = "message-status"
	EvtMessageReceived EventType = "message:received"
	EvtReactionUpdate  EventType = "reaction-update"
	EvtIncomingCall    EventType = "incoming-call"
	EvtCallBusy        EventType = "call-busy"
	EvtPeerUnreachable EventType = "peer-unreachable"
	EvtError           EventType = "error"
)

// Envelope is the websocket frame format in both directions.
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// EncodeFrame marshals one outbound envelope.
func EncodeFrame(event EventType, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: event, Payload: data})
}

// RoomRef is the payload of join-room/leave-room. Clients send either a
// bare chat id string or an object.
type RoomRef struct {
	RoomID string `json:"roomId"`
	ChatID string `json:"chatId"`
}

// ParseRoomRef accepts `"chatId"`, `{"roomId": ...}` or `{"chatId": ...}`.
func ParseRoomRef(raw json.RawMessage) (string, error) {
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return strings.TrimSpace(id), nil
	}
	var ref RoomRef
	if err := json.Unmarshal(raw, &ref); err != nil {
		return "", err
	}
	return firstNonEmpty(ref.RoomID, ref.ChatID), nil
}

// TypingPayload is sent with typing:start and typing:stop.
type TypingPayload struct {
	Chat     string `json:"chat"`
	ChatID   string `json:"chatId"`
	UserName string `json:"userName"`
}

func (p TypingPayload) Room() string { return firstNonEmpty(p.Chat, p.ChatID) }

// TypingEvent is what other room members receive.
type TypingEvent struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	Chat     string `json:"chat"`
}

// StatusPayload is sent with message-delivered and message-seen.
type StatusPayload struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
}

// ReactionPayload is sent with message-reaction.
type ReactionPayload struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
}

// ReactionEvent is relayed as reaction-update.
type ReactionEvent struct {
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
	UserID    string `json:"userId"`
}

// SendMessagePayload announces a message the chat API already stored. The
// id comes from messageId or from the embedded message document.
type SendMessagePayload struct {
	ChatID    string          `json:"chatId"`
	MessageID string          `json:"messageId"`
	Message   json.RawMessage `json:"message"`
}

// ID returns the announced message id.
func (p SendMessagePayload) ID() string {
	if id := strings.TrimSpace(p.MessageID); id != "" {
		return id
	}
	var doc struct {
		MongoID string `json:"_id"`
		ID      string `json:"id"`
	}
	if len(p.Message) == 0 || json.Unmarshal(p.Message, &doc) != nil {
		return ""
	}
	return firstNonEmpty(doc.MongoID, doc.ID)
}

// MessageUpdatedPayload carries an edited message to the room.
type MessageUpdatedPayload struct {
	ChatID  string          `json:"chatId"`
	Message json.RawMessage `json:"message"`
}

// CallInitiatedPayload starts a call.
type CallInitiatedPayload struct {
	ReceiverID    string          `json:"receiverId"`
	CallType      CallType        `json:"callType"`
	CallerName    string          `json:"callerName"`
	SignalingData json.RawMessage `json:"signalingData,omitempty"`
}

// IncomingCallEvent is delivered to exactly one receiver session.
type IncomingCallEvent struct {
	CallerID      string          `json:"callerId"`
	CallerName    string          `json:"callerName"`
	CallType      CallType        `json:"callType"`
	SignalingData json.RawMessage `json:"signalingData,omitempty"`
	SocketID      string          `json:"socketId"`
}

// CallAnswerPayload is sent with call-accepted and call-rejected.
type CallAnswerPayload struct {
	CallerID      string          `json:"callerId"`
	SignalingData json.RawMessage `json:"signalingData,omitempty"`
}

// CallBusyEvent tells a caller the receiver is already in another call.
type CallBusyEvent struct {
	UserID string `json:"userId"`
}

// CallAcceptedEvent goes back to the caller.
type CallAcceptedEvent struct {
	SignalingData json.RawMessage `json:"signalingData,omitempty"`
	AcceptedBy    string          `json:"acceptedBy"`
}

// CallRejectedEvent goes back to the caller.
type CallRejectedEvent struct {
	RejectedBy string `json:"rejectedBy"`
}

// CallEndedPayload is sent with call-ended.
type CallEndedPayload struct {
	OtherUserID string `json:"otherUserId"`
}

// CallEndedEvent goes to the counterpart. Reason is set when the relay
// ends the call itself.
type CallEndedEvent struct {
	EndedBy string `json:"endedBy"`
	Reason  string `json:"reason,omitempty"`
}

// SignalPayload is the inbound shape of webrtc-offer, webrtc-answer and
// ice-candidate. Exactly one of the data fields is set.
type SignalPayload struct {
	To        string          `json:"to"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// SignalEvent is the outbound shape; From is always the relaying session's user.
type SignalEvent struct {
	From      string          `json:"from"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// UnreachableEvent reports a routing miss back to the origin session.
type UnreachableEvent struct {
	Event  EventType `json:"event"`
	UserID string    `json:"userId"`
}

// ErrorEvent reports a dropped inbound frame.
type ErrorEvent struct {
	Event  EventType `json:"event,omitempty"`
	Reason string    `json:"reason"`
}

// ConnectedEvent is sent to a session right after it registers.
type ConnectedEvent struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

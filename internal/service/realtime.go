package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"chatzone/internal/model"
)

// Deps are the collaborators of the realtime core.
type Deps struct {
	Rooms         RoomStore
	Messages      MessageStore
	Notifications NotificationStore
	Push          PushGateway
	StatusStore   StatusStore
	Pool          Submitter
	PresenceSinks []PresenceSink
	LastSeen      LastSeenSource
	PushTries     uint
}

// Realtime wires the relay components together and is what the transports
// talk to.
type Realtime struct {
	Registry *Registry
	Broker   *Broker
	Presence *PresencePublisher
	Typing   *TypingRelay
	Status   *StatusCoordinator
	Calls    *CallRelay
	Fanout   *Fanout
	Messages *MessageService

	rooms RoomStore
}

// NewRealtime builds the realtime core. Removal hooks are registered in
// order: room cleanup first, then call teardown.
func NewRealtime(d Deps) *Realtime {
	registry := NewRegistry()
	broker := NewBroker(registry)
	calls := NewCallRelay(registry)
	presence := NewPresencePublisher(registry, d.Pool, d.PresenceSinks...)
	if d.LastSeen != nil {
		presence.WithLastSeenSource(d.LastSeen)
	}
	status := NewStatusCoordinator(d.Messages, d.Rooms, d.StatusStore, broker, d.Pool)
	fanout := NewFanout(d.Notifications, d.Push, d.Pool, d.PushTries)

	return &Realtime{
		Registry: registry,
		Broker:   broker,
		Presence: presence,
		Typing:   NewTypingRelay(broker),
		Status:   status,
		Calls:    calls,
		Fanout:   fanout,
		Messages: NewMessageService(d.Rooms, d.Messages, broker, status, fanout),
		rooms:    d.Rooms,
	}
}

// Connect registers a session for an authenticated user.
func (rt *Realtime) Connect(userID string, sender Sender) *model.Session {
	s := rt.Registry.Register(userID, sender)
	_ = rt.Registry.Emit(s.ID, model.EvtConnected, model.ConnectedEvent{SessionID: s.ID, UserID: userID})
	return s
}

// Disconnect removes a session from the registry, its rooms and any call.
// Everything is cleaned up when it returns.
func (rt *Realtime) Disconnect(sessionID string) {
	rt.Registry.Unregister(sessionID)
}

// Session returns a live session with its joined rooms.
func (rt *Realtime) Session(sessionID string) (model.Session, bool) {
	s, ok := rt.Registry.Get(sessionID)
	if !ok {
		return s, false
	}
	s.Rooms = rt.Broker.RoomsOf(sessionID)
	return s, true
}

// Dispatch handles one inbound frame. Malformed frames are answered with an
// error event and the wrapped ErrInvalidEvent is returned; the session stays
// open.
func (rt *Realtime) Dispatch(ctx context.Context, sessionID string, env model.Envelope) error {
	session, ok := rt.Registry.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	err := rt.dispatch(ctx, session, env)
	if errors.Is(err, ErrInvalidEvent) {
		_ = rt.Registry.Emit(sessionID, model.EvtError, model.ErrorEvent{Event: env.Type, Reason: err.Error()})
	}
	return err
}

func (rt *Realtime) dispatch(ctx context.Context, s model.Session, env model.Envelope) error {
	from := CallParty{UserID: s.UserID, SessionID: s.ID}

	switch env.Type {
	case model.EvtJoinRoom, model.EvtJoinChat:
		roomID, err := model.ParseRoomRef(env.Payload)
		if err != nil || roomID == "" {
			return invalid(env.Type, "room id required")
		}
		if err := rt.authorizeJoin(ctx, s.UserID, roomID); err != nil {
			return err
		}
		return rt.Broker.Join(s.ID, roomID)

	case model.EvtLeaveRoom, model.EvtLeaveChat:
		roomID, err := model.ParseRoomRef(env.Payload)
		if err != nil || roomID == "" {
			return invalid(env.Type, "room id required")
		}
		rt.Broker.Leave(s.ID, roomID)
		return nil

	case model.EvtTypingStart, model.EvtTypingStop:
		p, err := decode[model.TypingPayload](env)
		if err != nil {
			return err
		}
		roomID := p.Room()
		if roomID == "" {
			return invalid(env.Type, "chat required")
		}
		if !rt.Broker.InRoom(s.ID, roomID) {
			return invalid(env.Type, "not in room")
		}
		if env.Type == model.EvtTypingStart {
			rt.Typing.Start(roomID, s.UserID, p.UserName, s.ID)
		} else {
			rt.Typing.Stop(roomID, s.UserID, p.UserName, s.ID)
		}
		return nil

	case model.EvtMessageDelivered, model.EvtMessageSeen:
		p, err := decode[model.StatusPayload](env)
		if err != nil {
			return err
		}
		if p.MessageID == "" {
			return invalid(env.Type, "messageId required")
		}
		if env.Type == model.EvtMessageDelivered {
			_, err = rt.Status.MarkDelivered(ctx, p.MessageID, p.ChatID, s.UserID, s.ID)
		} else {
			_, err = rt.Status.MarkSeen(ctx, p.MessageID, p.ChatID, s.UserID, s.ID)
		}
		return err

	case model.EvtMessageReaction:
		p, err := decode[model.ReactionPayload](env)
		if err != nil {
			return err
		}
		if p.ChatID == "" || p.MessageID == "" {
			return invalid(env.Type, "chatId and messageId required")
		}
		if !rt.Broker.InRoom(s.ID, p.ChatID) {
			return invalid(env.Type, "not in room")
		}
		rt.Broker.Broadcast(p.ChatID, model.EvtReactionUpdate, model.ReactionEvent{
			MessageID: p.MessageID,
			Emoji:     p.Emoji,
			UserID:    s.UserID,
		}, s.ID)
		return nil

	case model.EvtMessageUpdated:
		p, err := decode[model.MessageUpdatedPayload](env)
		if err != nil {
			return err
		}
		if p.ChatID == "" || len(p.Message) == 0 {
			return invalid(env.Type, "chatId and message required")
		}
		if !rt.Broker.InRoom(s.ID, p.ChatID) {
			return invalid(env.Type, "not in room")
		}
		rt.Broker.Broadcast(p.ChatID, model.EvtMessageUpdated, p.Message, s.ID)
		return nil

	case model.EvtSendMessage, model.EvtMessageReceived:
		p, err := decode[model.SendMessagePayload](env)
		if err != nil {
			return err
		}
		messageID := p.ID()
		if messageID == "" {
			return invalid(env.Type, "message id required")
		}
		// The stored message decides the room; chatId is informational.
		_, err = rt.Messages.AnnounceFromSession(ctx, s.UserID, messageID, s.ID)
		if errors.Is(err, ErrMessageNotFound) || errors.Is(err, ErrRoomNotFound) || errors.Is(err, ErrNotSender) {
			return invalid(env.Type, err.Error())
		}
		return err

	case model.EvtCallInitiated:
		p, err := decode[model.CallInitiatedPayload](env)
		if err != nil {
			return err
		}
		return rt.Calls.Initiate(ctx, from, p.ReceiverID, p.CallType, p.CallerName, p.SignalingData)

	case model.EvtCallAccepted:
		p, err := decode[model.CallAnswerPayload](env)
		if err != nil {
			return err
		}
		return rt.Calls.Accept(ctx, from, p.CallerID, p.SignalingData)

	case model.EvtCallRejected:
		p, err := decode[model.CallAnswerPayload](env)
		if err != nil {
			return err
		}
		return rt.Calls.Reject(ctx, from, p.CallerID)

	case model.EvtCallEnded:
		p, err := decode[model.CallEndedPayload](env)
		if err != nil {
			return err
		}
		return rt.Calls.End(ctx, from, p.OtherUserID)

	case model.EvtWebRTCOffer:
		p, err := decode[model.SignalPayload](env)
		if err != nil {
			return err
		}
		if len(p.Offer) == 0 {
			return invalid(env.Type, "offer required")
		}
		return rt.Calls.RelayOffer(from, p.To, p.Offer)

	case model.EvtWebRTCAnswer:
		p, err := decode[model.SignalPayload](env)
		if err != nil {
			return err
		}
		if len(p.Answer) == 0 {
			return invalid(env.Type, "answer required")
		}
		return rt.Calls.RelayAnswer(from, p.To, p.Answer)

	case model.EvtICECandidate:
		p, err := decode[model.SignalPayload](env)
		if err != nil {
			return err
		}
		if len(p.Candidate) == 0 {
			return invalid(env.Type, "candidate required")
		}
		return rt.Calls.RelayICECandidate(from, p.To, p.Candidate)
	}

	return invalid(env.Type, "unknown event")
}

// authorizeJoin checks chat membership when a room store is configured.
func (rt *Realtime) authorizeJoin(ctx context.Context, userID, roomID string) error {
	if rt.rooms == nil {
		return nil
	}
	room, err := rt.rooms.GetRoom(ctx, roomID)
	if err != nil {
		slog.Error("load room for join", "room_id", roomID, "error", err)
		return fmt.Errorf("load room %s: %w", roomID, err)
	}
	if room == nil || !room.HasParticipant(userID) {
		return invalid(model.EvtJoinRoom, "not a participant")
	}
	return nil
}

func decode[T any](env model.Envelope) (T, error) {
	var v T
	if len(env.Payload) == 0 {
		return v, invalid(env.Type, "payload required")
	}
	if err := json.Unmarshal(env.Payload, &v); err != nil {
		return v, invalid(env.Type, "malformed payload")
	}
	return v, nil
}

func invalid(event model.EventType, reason string) error {
	return fmt.Errorf("%s: %w: %s", event, ErrInvalidEvent, reason)
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chatzone/internal/model"
)

// CallParty identifies one side of a call: the user and the session it
// signals from.
type CallParty struct {
	UserID    string
	SessionID string
}

type callState string

const (
	callRinging callState = "ringing"
	callActive  callState = "active"
)

// ReasonDisconnected is set on call-ended when a bound session went away.
const ReasonDisconnected = "disconnected"

// A call nobody picked up within ringTimeout no longer makes its parties busy.
const ringTimeout = 60 * time.Second

type activeCall struct {
	caller    CallParty
	receiver  CallParty
	callType  model.CallType
	state     callState
	startedAt time.Time
}

func (c *activeCall) other(userID string) CallParty {
	if c.caller.UserID == userID {
		return c.receiver
	}
	return c.caller
}

func (c *activeCall) bindsSession(sessionID string) bool {
	return c.caller.SessionID == sessionID || c.receiver.SessionID == sessionID
}

// CallRelay routes call signaling point to point. It keeps just enough
// context per call to pick the right device and to end the call when a
// bound session disconnects.
type CallRelay struct {
	registry *Registry
	now      func() time.Time

	mu    sync.Mutex
	calls map[string]*activeCall // by user id, both parties
}

// NewCallRelay creates a relay and hooks it into session removal.
func NewCallRelay(registry *Registry) *CallRelay {
	r := &CallRelay{
		registry: registry,
		now:      time.Now,
		calls:    make(map[string]*activeCall),
	}
	registry.OnRemove(r.sessionGone)
	return r
}

// Initiate rings exactly one session of receiverID. With no live session
// the caller gets peer-unreachable and ErrPeerUnreachable is returned. A
// receiver already in another call is left alone; the caller gets call-busy
// and ErrPeerBusy.
func (r *CallRelay) Initiate(_ context.Context, from CallParty, receiverID string, callType model.CallType, callerName string, signalingData json.RawMessage) error {
	if receiverID == "" || receiverID == from.UserID {
		return fmt.Errorf("call-initiated: %w: bad receiver", ErrInvalidEvent)
	}
	if callType == "" {
		callType = model.CallAudio
	}
	if !callType.Valid() {
		return fmt.Errorf("call-initiated: %w: call type %q", ErrInvalidEvent, callType)
	}

	target, ok := r.registry.ResolveOnePeer(receiverID)
	if !ok {
		return r.unreachable(from, model.EvtCallInitiated, receiverID)
	}

	call := &activeCall{
		caller:    from,
		receiver:  CallParty{UserID: receiverID, SessionID: target},
		callType:  callType,
		state:     callRinging,
		startedAt: r.now(),
	}

	r.mu.Lock()
	if r.busyLocked(from.UserID, receiverID) {
		r.mu.Unlock()
		return fmt.Errorf("call-initiated: %w: caller already in a call", ErrInvalidEvent)
	}
	if r.busyLocked(receiverID, from.UserID) {
		r.mu.Unlock()
		return r.busy(from, receiverID)
	}
	r.dropLocked(from.UserID)
	r.dropLocked(receiverID)
	r.calls[from.UserID] = call
	r.calls[receiverID] = call
	r.mu.Unlock()

	err := r.registry.Emit(target, model.EvtIncomingCall, model.IncomingCallEvent{
		CallerID:      from.UserID,
		CallerName:    callerName,
		CallType:      callType,
		SignalingData: signalingData,
		SocketID:      from.SessionID,
	})
	if err != nil {
		r.mu.Lock()
		if r.calls[from.UserID] == call {
			r.dropLocked(from.UserID)
		}
		r.mu.Unlock()
		return r.unreachable(from, model.EvtCallInitiated, receiverID)
	}

	slog.Info("call initiated", "caller_id", from.UserID, "receiver_id", receiverID, "call_type", callType)
	return nil
}

// Accept tells the caller that from picked up, and binds the call to the
// accepting session.
func (r *CallRelay) Accept(_ context.Context, from CallParty, callerID string, signalingData json.RawMessage) error {
	if callerID == "" {
		return fmt.Errorf("call-accepted: %w: caller id required", ErrInvalidEvent)
	}
	r.mu.Lock()
	if call, ok := r.calls[from.UserID]; ok && call.other(from.UserID).UserID == callerID {
		call.receiver = from
		call.state = callActive
	}
	r.mu.Unlock()

	return r.deliver(from, model.EvtCallAccepted, callerID, model.CallAcceptedEvent{
		SignalingData: signalingData,
		AcceptedBy:    from.UserID,
	})
}

// Reject tells the caller that from declined and forgets the call.
func (r *CallRelay) Reject(_ context.Context, from CallParty, callerID string) error {
	if callerID == "" {
		return fmt.Errorf("call-rejected: %w: caller id required", ErrInvalidEvent)
	}
	err := r.deliver(from, model.EvtCallRejected, callerID, model.CallRejectedEvent{RejectedBy: from.UserID})
	r.forget(from.UserID, callerID)
	return err
}

// End tells the other party the call is over and forgets it.
func (r *CallRelay) End(_ context.Context, from CallParty, otherUserID string) error {
	if otherUserID == "" {
		return fmt.Errorf("call-ended: %w: other user id required", ErrInvalidEvent)
	}
	err := r.deliver(from, model.EvtCallEnded, otherUserID, model.CallEndedEvent{EndedBy: from.UserID})
	r.forget(from.UserID, otherUserID)
	return err
}

// RelayOffer forwards an SDP offer.
func (r *CallRelay) RelayOffer(from CallParty, toUserID string, offer json.RawMessage) error {
	return r.signal(from, model.EvtWebRTCOffer, toUserID, model.SignalEvent{From: from.UserID, Offer: offer})
}

// RelayAnswer forwards an SDP answer.
func (r *CallRelay) RelayAnswer(from CallParty, toUserID string, answer json.RawMessage) error {
	return r.signal(from, model.EvtWebRTCAnswer, toUserID, model.SignalEvent{From: from.UserID, Answer: answer})
}

// RelayICECandidate forwards one ICE candidate.
func (r *CallRelay) RelayICECandidate(from CallParty, toUserID string, candidate json.RawMessage) error {
	return r.signal(from, model.EvtICECandidate, toUserID, model.SignalEvent{From: from.UserID, Candidate: candidate})
}

// ActiveCalls returns the number of calls being tracked.
func (r *CallRelay) ActiveCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls) / 2
}

func (r *CallRelay) signal(from CallParty, event model.EventType, toUserID string, payload model.SignalEvent) error {
	if toUserID == "" {
		return fmt.Errorf("%s: %w: recipient required", event, ErrInvalidEvent)
	}
	return r.deliver(from, event, toUserID, payload)
}

func (r *CallRelay) deliver(from CallParty, event model.EventType, toUserID string, payload any) error {
	target, ok := r.resolve(from.UserID, toUserID)
	if !ok {
		return r.unreachable(from, event, toUserID)
	}
	if err := r.registry.Emit(target, event, payload); err != nil {
		return r.unreachable(from, event, toUserID)
	}
	return nil
}

// resolve prefers the session bound to a call between the two users and
// falls back to the peer's newest session.
func (r *CallRelay) resolve(fromUserID, toUserID string) (string, bool) {
	r.mu.Lock()
	var bound string
	if call, ok := r.calls[fromUserID]; ok {
		if peer := call.other(fromUserID); peer.UserID == toUserID {
			bound = peer.SessionID
		}
	}
	r.mu.Unlock()

	if bound != "" {
		if s, ok := r.registry.Get(bound); ok && s.UserID == toUserID {
			return bound, true
		}
	}
	return r.registry.ResolveOnePeer(toUserID)
}

func (r *CallRelay) unreachable(from CallParty, event model.EventType, userID string) error {
	slog.Info("peer unreachable", "event", event, "from_user_id", from.UserID, "user_id", userID)
	if from.SessionID != "" {
		_ = r.registry.Emit(from.SessionID, model.EvtPeerUnreachable, model.UnreachableEvent{Event: event, UserID: userID})
	}
	return ErrPeerUnreachable
}

func (r *CallRelay) busy(from CallParty, userID string) error {
	slog.Info("peer busy", "from_user_id", from.UserID, "user_id", userID)
	if from.SessionID != "" {
		_ = r.registry.Emit(from.SessionID, model.EvtCallBusy, model.CallBusyEvent{UserID: userID})
	}
	return ErrPeerBusy
}

// busyLocked reports whether userID is in a call with someone other than
// peerID. Unanswered calls stop counting after ringTimeout.
func (r *CallRelay) busyLocked(userID, peerID string) bool {
	call, ok := r.calls[userID]
	if !ok || call.other(userID).UserID == peerID {
		return false
	}
	return call.state == callActive || r.now().Sub(call.startedAt) < ringTimeout
}

func (r *CallRelay) forget(userID, otherUserID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if call, ok := r.calls[userID]; ok && call.other(userID).UserID == otherUserID {
		r.dropLocked(userID)
	}
}

func (r *CallRelay) dropLocked(userID string) {
	call, ok := r.calls[userID]
	if !ok {
		return
	}
	delete(r.calls, call.caller.UserID)
	delete(r.calls, call.receiver.UserID)
}

// sessionGone ends a call whose bound session disconnected.
func (r *CallRelay) sessionGone(s model.Session) {
	r.mu.Lock()
	call, ok := r.calls[s.UserID]
	if !ok || !call.bindsSession(s.ID) {
		r.mu.Unlock()
		return
	}
	r.dropLocked(s.UserID)
	peer := call.other(s.UserID)
	r.mu.Unlock()

	target := peer.SessionID
	if _, ok := r.registry.Get(target); !ok {
		if target, ok = r.registry.ResolveOnePeer(peer.UserID); !ok {
			return
		}
	}
	_ = r.registry.Emit(target, model.EvtCallEnded, model.CallEndedEvent{
		EndedBy: s.UserID,
		Reason:  ReasonDisconnected,
	})
	slog.Info("call ended by disconnect", "user_id", s.UserID, "peer_id", peer.UserID,
		"call_type", call.callType, "state", call.state, "duration", r.now().Sub(call.startedAt))
}

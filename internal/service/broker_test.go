package service

import (
	"testing"

	"chatzone/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroker_BroadcastExcludesSender(t *testing.T) {
	reg := NewRegistry()
	broker := NewBroker(reg)

	sa, sb, sc := &recordingSender{}, &recordingSender{}, &recordingSender{}
	a := reg.Register("ua", sa)
	b := reg.Register("ub", sb)
	c := reg.Register("uc", sc)
	for _, s := range []*model.Session{a, b, c} {
		require.NoError(t, broker.Join(s.ID, "room-1"))
	}

	n := broker.Broadcast("room-1", model.EvtReactionUpdate, map[string]string{"k": "v"}, a.ID)
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, sa.count(model.EvtReactionUpdate))
	assert.Equal(t, 1, sb.count(model.EvtReactionUpdate))
	assert.Equal(t, 1, sc.count(model.EvtReactionUpdate))

	broker.Leave(b.ID, "room-1")
	n = broker.Broadcast("room-1", model.EvtReactionUpdate, map[string]string{"k": "v"}, a.ID)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, sb.count(model.EvtReactionUpdate))
	assert.Equal(t, 2, sc.count(model.EvtReactionUpdate))
}

func TestBroker_JoinLeaveIdempotent(t *testing.T) {
	reg := NewRegistry()
	broker := NewBroker(reg)
	s := reg.Register("u1", &recordingSender{})

	require.NoError(t, broker.Join(s.ID, "r1"))
	require.NoError(t, broker.Join(s.ID, "r1"))
	require.NoError(t, broker.Join(s.ID, "r2"))
	assert.Equal(t, []string{s.ID}, broker.Members("r1"))
	assert.Equal(t, []string{"r1", "r2"}, broker.RoomsOf(s.ID))

	broker.Leave(s.ID, "r1")
	broker.Leave(s.ID, "r1")
	broker.Leave(s.ID, "never-joined")
	assert.Empty(t, broker.Members("r1"))
	assert.Equal(t, []string{"r2"}, broker.RoomsOf(s.ID))
}

func TestBroker_JoinRequiresLiveSession(t *testing.T) {
	reg := NewRegistry()
	broker := NewBroker(reg)

	assert.ErrorIs(t, broker.Join("ghost", "r1"), ErrSessionNotFound)

	s := reg.Register("u1", &recordingSender{})
	assert.ErrorIs(t, broker.Join(s.ID, "  "), ErrInvalidEvent)
}

func TestBroker_UnregisterLeavesAllRooms(t *testing.T) {
	reg := NewRegistry()
	broker := NewBroker(reg)
	s := reg.Register("u1", &recordingSender{})
	other := reg.Register("u2", &recordingSender{})

	require.NoError(t, broker.Join(s.ID, "r1"))
	require.NoError(t, broker.Join(s.ID, "r2"))
	require.NoError(t, broker.Join(other.ID, "r1"))

	reg.Unregister(s.ID)

	assert.Empty(t, broker.RoomsOf(s.ID))
	assert.Equal(t, []string{other.ID}, broker.Members("r1"))
	assert.Empty(t, broker.Members("r2"))
	assert.False(t, broker.InRoom(s.ID, "r1"))
}

func TestTypingRelay_StartStop(t *testing.T) {
	reg := NewRegistry()
	broker := NewBroker(reg)
	typing := NewTypingRelay(broker)

	s1, s2 := &recordingSender{}, &recordingSender{}
	a := reg.Register("u1", s1)
	b := reg.Register("u2", s2)
	require.NoError(t, broker.Join(a.ID, "chat-1"))
	require.NoError(t, broker.Join(b.ID, "chat-1"))

	assert.Equal(t, 1, typing.Start("chat-1", "u1", "Alice", a.ID))
	assert.Equal(t, 1, typing.Stop("chat-1", "u1", "Alice", a.ID))
	assert.Equal(t, 0, typing.Start("", "u1", "Alice", a.ID))

	assert.Empty(t, s1.of(model.EvtTypingStart))
	starts := s2.of(model.EvtTypingStart)
	require.Len(t, starts, 1)
	assert.Equal(t, model.TypingEvent{UserID: "u1", UserName: "Alice", Chat: "chat-1"}, payloadOf[model.TypingEvent](t, starts[0]))
	assert.Len(t, s2.of(model.EvtTypingStop), 1)
}

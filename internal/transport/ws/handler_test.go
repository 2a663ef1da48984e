package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chatzone/internal/config"
	"chatzone/internal/model"
	"chatzone/internal/service"
	"chatzone/internal/worker"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noMessages struct{}

func (noMessages) GetMessage(context.Context, string) (*model.Message, error) { return nil, nil }
func (noMessages) RecordStatus(context.Context, string, string, model.MessageStatus, time.Time) error {
	return nil
}

type testServer struct {
	srv  *httptest.Server
	hub  *Hub
	rt   *service.Realtime
	auth *service.AuthService
}

func newTestServer(t *testing.T, cfg config.WSConfig) *testServer {
	t.Helper()
	pool := worker.NewPool(worker.Config{Workers: 1, QueueSize: 16})
	pool.Start(context.Background())
	t.Cleanup(func() { _ = pool.Stop(context.Background()) })

	rt := service.NewRealtime(service.Deps{
		Messages:    noMessages{},
		Push:        service.NoopPushGateway{},
		StatusStore: service.NewMemoryStatusStore(10, time.Minute),
		Pool:        pool,
	})
	auth := service.NewAuthService("ws-test")
	hub := NewHub()

	r := mux.NewRouter()
	r.HandleFunc("/v1/ws", NewHandler(hub, rt, auth, cfg).Serve).Methods("GET")
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		hub.CloseAll()
		srv.Close()
	})
	return &testServer{srv: srv, hub: hub, rt: rt, auth: auth}
}

func (s *testServer) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	conn := s.open(t, userID)

	env := readEvent(t, conn, model.EvtConnected)
	var ev model.ConnectedEvent
	require.NoError(t, json.Unmarshal(env.Payload, &ev))
	require.Equal(t, userID, ev.UserID)
	return conn
}

func (s *testServer) open(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	token, err := s.auth.GenerateToken(userID, time.Hour)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/v1/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event model.EventType, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(model.Envelope{Type: event, Payload: raw}))
}

// readEvent skips frames until one of the wanted type arrives.
func readEvent(t *testing.T, conn *websocket.Conn, event model.EventType) model.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var env model.Envelope
		require.NoError(t, conn.ReadJSON(&env))
		if env.Type == event {
			return env
		}
	}
}

func TestHandler_RejectsMissingOrBadToken(t *testing.T) {
	s := newTestServer(t, config.WSConfig{SendBuffer: 8})

	resp, err := http.Get(s.srv.URL + "/v1/ws")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/v1/ws?token=garbage"
	_, resp, err = websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandler_TypingAndOfflineEndToEnd(t *testing.T) {
	s := newTestServer(t, config.WSConfig{SendBuffer: 32, MaxMessageBytes: 4096, EventsPerSecond: 100, EventBurst: 100})

	c1 := s.dial(t, "U1")
	c2 := s.dial(t, "U2")

	send(t, c1, model.EvtJoinRoom, "R")
	send(t, c2, model.EvtJoinRoom, map[string]string{"roomId": "R"})
	require.Eventually(t, func() bool { return len(s.rt.Broker.Members("R")) == 2 }, 2*time.Second, 10*time.Millisecond)

	send(t, c1, model.EvtTypingStart, model.TypingPayload{Chat: "R", UserName: "Alice"})
	env := readEvent(t, c2, model.EvtTypingStart)
	var typing model.TypingEvent
	require.NoError(t, json.Unmarshal(env.Payload, &typing))
	assert.Equal(t, model.TypingEvent{UserID: "U1", UserName: "Alice", Chat: "R"}, typing)

	send(t, c1, model.EvtTypingStop, model.TypingPayload{Chat: "R", UserName: "Alice"})
	readEvent(t, c2, model.EvtTypingStop)

	require.NoError(t, c1.Close())
	env = readEvent(t, c2, model.EvtUserOffline)
	var presence model.PresenceEvent
	require.NoError(t, json.Unmarshal(env.Payload, &presence))
	assert.Equal(t, "U1", presence.UserID)

	require.Eventually(t, func() bool { return !s.rt.Registry.IsOnline("U1") }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, len(s.rt.Broker.Members("R")))
}

func TestHandler_MalformedAndRateLimited(t *testing.T) {
	s := newTestServer(t, config.WSConfig{SendBuffer: 32, EventsPerSecond: 0.001, EventBurst: 1})
	c := s.dial(t, "U1")

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte("not json")))
	env := readEvent(t, c, model.EvtError)
	var ev model.ErrorEvent
	require.NoError(t, json.Unmarshal(env.Payload, &ev))
	assert.Equal(t, "malformed frame", ev.Reason)

	send(t, c, model.EvtLeaveRoom, "R") // uses the only token
	send(t, c, model.EvtLeaveRoom, "R")
	env = readEvent(t, c, model.EvtError)
	require.NoError(t, json.Unmarshal(env.Payload, &ev))
	assert.Equal(t, "rate limited", ev.Reason)
	assert.Equal(t, model.EvtLeaveRoom, ev.Event)

	// Still connected.
	_, live := s.rt.Session(s.rt.Registry.SessionsFor("U1")[0])
	assert.True(t, live)
}

func TestHub_CloseAllWaitsForDisconnects(t *testing.T) {
	s := newTestServer(t, config.WSConfig{SendBuffer: 32})
	c1 := s.dial(t, "U1")
	s.dial(t, "U2")
	require.Equal(t, 2, s.rt.Registry.Count())

	s.hub.CloseAll()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, s.hub.Wait(ctx))

	assert.Equal(t, 0, s.hub.Count())
	assert.Equal(t, 0, s.rt.Registry.Count())
	assert.False(t, s.rt.Registry.IsOnline("U1"))

	require.NoError(t, c1.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		if _, _, err := c1.ReadMessage(); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), err.Error())
			break
		}
	}

	// Late connections are turned away.
	late := s.open(t, "U3")
	require.NoError(t, late.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := late.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))
	assert.Equal(t, 0, s.rt.Registry.Count())
}

func TestHub_WaitHonoursContext(t *testing.T) {
	hub := NewHub()
	require.True(t, hub.add(newConnection("U1", 1)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, hub.Wait(ctx), context.DeadlineExceeded)
}

func TestConnection_SendAfterClose(t *testing.T) {
	c := newConnection("U1", 1)
	require.NoError(t, c.Send([]byte("a")))
	assert.ErrorIs(t, c.Send([]byte("b")), ErrSendBufferFull)
	c.Close()
	c.Close()
	assert.ErrorIs(t, c.Send([]byte("c")), ErrConnectionClosed)
}

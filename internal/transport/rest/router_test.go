package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chatzone/internal/config"
	"chatzone/internal/model"
	"chatzone/internal/service"
	"chatzone/internal/transport/ws"
	"chatzone/internal/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	room *model.Room
	msg  *model.Message
}

func (s stubStore) GetRoom(_ context.Context, id string) (*model.Room, error) {
	if s.room != nil && s.room.ID == id {
		return s.room, nil
	}
	return nil, nil
}

func (s stubStore) GetMessage(_ context.Context, id string) (*model.Message, error) {
	if s.msg != nil && s.msg.ID == id {
		return s.msg, nil
	}
	return nil, nil
}

func (stubStore) RecordStatus(context.Context, string, string, model.MessageStatus, time.Time) error {
	return nil
}

func (stubStore) CreateNotification(context.Context, *model.Notification) error { return nil }

type discard struct{}

func (discard) Send([]byte) error { return nil }

type fixture struct {
	handler http.Handler
	rt      *service.Realtime
	auth    *service.AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := &config.Config{
		CORSAllowedOrigins: "https://chat.example",
		CORSAllowedMethods: "GET, POST, PUT, OPTIONS",
		CORSAllowedHeaders: "Content-Type, Authorization",
		WS:                 config.WSConfig{SendBuffer: 8},
	}
	store := stubStore{
		room: &model.Room{ID: "R", Participants: []model.Participant{{ID: "U1"}, {ID: "U2"}}},
		msg:  &model.Message{ID: "m1", ChatID: "R", SenderID: "U1", Text: "hi"},
	}

	pool := worker.NewPool(worker.Config{Workers: 1, QueueSize: 16})
	pool.Start(context.Background())
	t.Cleanup(func() { _ = pool.Stop(context.Background()) })

	rt := service.NewRealtime(service.Deps{
		Rooms:         store,
		Messages:      store,
		Notifications: store,
		Push:          service.NoopPushGateway{},
		StatusStore:   service.NewMemoryStatusStore(10, time.Minute),
		Pool:          pool,
	})
	auth := service.NewAuthService("rest-test")
	return &fixture{
		handler: NewRouter(&Container{Config: cfg, AuthService: auth, Realtime: rt, WSHub: ws.NewHub()}),
		rt:      rt,
		auth:    auth,
	}
}

func (f *fixture) do(t *testing.T, method, path, userID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if userID != "" {
		token, err := f.auth.GenerateToken(userID, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestRouter_HealthAndCORS(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = f.do(t, http.MethodOptions, "/v1/presence/U1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://chat.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_RequiresToken(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/v1/presence/U1", "").Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/presence/U1", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_Presence(t *testing.T) {
	f := newFixture(t)
	f.rt.Connect("U1", discard{})

	rec := f.do(t, http.MethodGet, "/v1/presence/U1", "U2")
	require.Equal(t, http.StatusOK, rec.Code)
	var info model.PresenceInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.True(t, info.Online)
	assert.Equal(t, 1, info.Sessions)

	rec = f.do(t, http.MethodGet, "/v1/presence?ids=U1,U3", "U2")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Users []model.PresenceInfo `json:"users"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Users, 2)
	assert.True(t, list.Users[0].Online)
	assert.False(t, list.Users[1].Online)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/v1/presence", "U2").Code)
}

func TestRouter_RoomSessions(t *testing.T) {
	f := newFixture(t)
	s := f.rt.Connect("U1", discard{})
	require.NoError(t, f.rt.Broker.Join(s.ID, "R"))

	rec := f.do(t, http.MethodGet, "/v1/rooms/R/sessions", "U1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"roomId":"R","sessions":1}`, rec.Body.String())
}

func TestRouter_Messages(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/messages/m1/sent", "U1")
	require.Equal(t, http.StatusAccepted, rec.Code)
	var res service.AnnounceResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "R", res.RoomID)
	assert.True(t, res.FanoutQueued)

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodPost, "/v1/messages/m1/sent", "U2").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/v1/messages/zz/sent", "U1").Code)

	rec = f.do(t, http.MethodPut, "/v1/messages/m1/seen", "U2")
	require.Equal(t, http.StatusOK, rec.Code)
	var seen struct {
		Changed bool               `json:"changed"`
		Status  model.StatusChange `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &seen))
	assert.True(t, seen.Changed)
	assert.Equal(t, model.StatusSeen, seen.Status.Status)

	rec = f.do(t, http.MethodPut, "/v1/messages/m1/seen", "U2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"messageId":"m1","changed":false}`, rec.Body.String())
}

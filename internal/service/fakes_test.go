package service

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"chatzone/internal/model"
	"chatzone/internal/worker"

	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu     sync.Mutex
	frames []model.Envelope
}

func (s *recordingSender) Send(frame []byte) error {
	var env model.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, env)
	return nil
}

func (s *recordingSender) all() []model.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Envelope, len(s.frames))
	copy(out, s.frames)
	return out
}

func (s *recordingSender) of(event model.EventType) []model.Envelope {
	var out []model.Envelope
	for _, env := range s.all() {
		if env.Type == event {
			out = append(out, env)
		}
	}
	return out
}

func (s *recordingSender) count(event model.EventType) int {
	return len(s.of(event))
}

func (s *recordingSender) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = nil
}

func payloadOf[T any](t *testing.T, env model.Envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Payload, &v))
	return v
}

// inlinePool runs every task synchronously, once.
type inlinePool struct {
	mu    sync.Mutex
	names []string
	full  bool
}

func (p *inlinePool) Submit(task worker.Task) error {
	if p.full {
		return worker.ErrQueueFull
	}
	p.mu.Lock()
	p.names = append(p.names, task.Name)
	p.mu.Unlock()
	_ = task.Run(context.Background())
	return nil
}

func (p *inlinePool) submitted(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, got := range p.names {
		if got == name {
			n++
		}
	}
	return n
}

type recordedStatus struct {
	MessageID string
	Viewer    string
	Status    model.MessageStatus
}

type fakeMessageStore struct {
	mu       sync.Mutex
	messages map[string]*model.Message
	recorded []recordedStatus
	err      error
}

func newFakeMessageStore(msgs ...*model.Message) *fakeMessageStore {
	s := &fakeMessageStore{messages: make(map[string]*model.Message)}
	for _, m := range msgs {
		s.messages[m.ID] = m
	}
	return s
}

func (s *fakeMessageStore) GetMessage(_ context.Context, id string) (*model.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	cp.SeenBy = slices.Clone(m.SeenBy)
	return &cp, nil
}

// RecordStatus mirrors the repository: status only moves forward and seen
// viewers are appended once.
func (s *fakeMessageStore) RecordStatus(_ context.Context, id, viewer string, status model.MessageStatus, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorded = append(s.recorded, recordedStatus{MessageID: id, Viewer: viewer, Status: status})
	if m, ok := s.messages[id]; ok {
		m.Status = string(model.MaxStatus(model.MessageStatus(m.Status), status))
		if status == model.StatusSeen && !slices.Contains(m.SeenBy, viewer) {
			m.SeenBy = append(m.SeenBy, viewer)
		}
	}
	return nil
}

type fakeRoomStore struct {
	rooms map[string]*model.Room
	err   error
}

func newFakeRoomStore(rooms ...*model.Room) *fakeRoomStore {
	s := &fakeRoomStore{rooms: make(map[string]*model.Room)}
	for _, r := range rooms {
		s.rooms[r.ID] = r
	}
	return s
}

func (s *fakeRoomStore) GetRoom(_ context.Context, id string) (*model.Room, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.rooms[id], nil
}

type fakeNotificationStore struct {
	mu      sync.Mutex
	created []*model.Notification
	err     error
}

func (s *fakeNotificationStore) CreateNotification(_ context.Context, n *model.Notification) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, n)
	return nil
}

type pushCall struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

type fakePush struct {
	mu    sync.Mutex
	calls []pushCall
	err   error
}

func (p *fakePush) Send(_ context.Context, token, title, body string, data map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, pushCall{Token: token, Title: title, Body: body, Data: data})
	return p.err
}

type presenceWrite struct {
	UserID string
	Online bool
}

type fakeSink struct {
	mu     sync.Mutex
	writes []presenceWrite
}

func (s *fakeSink) SetPresence(_ context.Context, userID string, online bool, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, presenceWrite{UserID: userID, Online: online})
	return nil
}

type fixedLastSeen struct {
	at time.Time
}

func (f fixedLastSeen) LastSeen(context.Context, string) (*time.Time, error) {
	if f.at.IsZero() {
		return nil, nil
	}
	at := f.at
	return &at, nil
}

var errStoreDown = errors.New("store down")

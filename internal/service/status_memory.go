package service

import (
	"context"
	"sync"
	"time"

	"chatzone/internal/model"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type messageStatuses struct {
	viewers   map[string]model.MessageStatus
	aggregate model.MessageStatus
}

// MemoryStatusStore keeps statuses of recently acknowledged messages in a
// bounded table whose entries expire after ttl.
type MemoryStatusStore struct {
	mu    sync.Mutex
	table *expirable.LRU[string, *messageStatuses]
}

func NewMemoryStatusStore(size int, ttl time.Duration) *MemoryStatusStore {
	if size < 1 {
		size = 1
	}
	return &MemoryStatusStore{
		table: expirable.NewLRU[string, *messageStatuses](size, nil, ttl),
	}
}

func (s *MemoryStatusStore) Advance(_ context.Context, messageID, viewerUserID string, status model.MessageStatus) (model.StatusTransition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.table.Get(messageID)
	if !ok {
		entry = &messageStatuses{
			viewers:   make(map[string]model.MessageStatus),
			aggregate: model.StatusSent,
		}
	}

	prev, ok := entry.viewers[viewerUserID]
	if !ok {
		prev = model.StatusSent
	}
	tr := model.StatusTransition{
		Previous:  prev,
		Current:   model.MaxStatus(prev, status),
		Aggregate: entry.aggregate,
	}
	if tr.Changed() {
		entry.viewers[viewerUserID] = tr.Current
		entry.aggregate = model.MaxStatus(entry.aggregate, tr.Current)
		tr.Aggregate = entry.aggregate
	}
	s.table.Add(messageID, entry)
	return tr, nil
}

func (s *MemoryStatusStore) Aggregate(_ context.Context, messageID string) (model.MessageStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.table.Peek(messageID); ok {
		return entry.aggregate, nil
	}
	return model.StatusSent, nil
}

// Len returns the number of tracked messages.
func (s *MemoryStatusStore) Len() int {
	return s.table.Len()
}
